package dataflows

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// Reddit dump categories under <data>/reddit_data.
const (
	RedditGlobalNews  = "global_news"
	RedditCompanyNews = "company_news"
)

var redditSubreddits = map[string][]string{
	RedditGlobalNews:  {"worldnews", "economics", "finance"},
	RedditCompanyNews: {"stocks", "investing", "wallstreetbets", "StockMarket"},
}

// tickerToCompany widens company post matching beyond the bare ticker.
var tickerToCompany = map[string]string{
	"AAPL": "Apple", "MSFT": "Microsoft", "GOOGL": "Google", "AMZN": "Amazon",
	"TSLA": "Tesla", "NVDA": "Nvidia", "TSM": "Taiwan Semiconductor", "JPM": "JPMorgan",
	"JNJ": "Johnson & Johnson", "V": "Visa", "WMT": "Walmart", "META": "Meta",
	"AMD": "AMD", "INTC": "Intel", "QCOM": "Qualcomm", "BABA": "Alibaba",
	"ADBE": "Adobe", "NFLX": "Netflix", "CRM": "Salesforce", "PYPL": "PayPal",
	"PLTR": "Palantir", "MU": "Micron", "SQ": "Block", "ZM": "Zoom",
	"CSCO": "Cisco", "SHOP": "Shopify", "ORCL": "Oracle", "X": "Twitter",
	"SPOT": "Spotify", "AVGO": "Broadcom", "ASML": "ASML", "TWLO": "Twilio",
	"SNAP": "Snap Inc.", "TEAM": "Atlassian", "SQSP": "Squarespace", "UBER": "Uber",
	"ROKU": "Roku", "PINS": "Pinterest",
}

// RedditPost is one post of a dump or API listing.
type RedditPost struct {
	Title      string  `json:"title"`
	Selftext   string  `json:"selftext"`
	URL        string  `json:"url"`
	Ups        int     `json:"ups"`
	Score      int     `json:"score"`
	CreatedUTC float64 `json:"created_utc"`
}

func (p RedditPost) upvotes() int {
	if p.Ups != 0 {
		return p.Ups
	}
	return p.Score
}

func (p RedditPost) day() string {
	return time.Unix(int64(p.CreatedUTC), 0).UTC().Format(dateLayout)
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data RedditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// RedditClient reads local jsonl dumps, one file per subreddit, and falls
// back to the public listing API when no dump directory exists.
type RedditClient struct {
	client  *resty.Client
	limiter *rate.Limiter
	cache   *CacheManager
	dataDir string
	remote  bool
}

func NewRedditClient(dataDir, cacheDir, userAgent string, cacheEnabled, remote bool) *RedditClient {
	client := resty.New()
	client.SetBaseURL("https://www.reddit.com")
	client.SetTimeout(30 * time.Second)
	client.SetHeader("User-Agent", userAgent)

	return &RedditClient{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(1), 2),
		cache:   NewCacheManager(filepath.Join(cacheDir, "reddit"), time.Hour, cacheEnabled),
		dataDir: filepath.Join(dataDir, "reddit_data"),
		remote:  remote,
	}
}

// TopPosts returns up to maxLimit top voted posts of category on day. ticker
// filters company posts by ticker or company name.
func (rc *RedditClient) TopPosts(ctx context.Context, category, day string, maxLimit int, ticker string) ([]RedditPost, error) {
	dir := filepath.Join(rc.dataDir, category)
	files, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		if _, statErr := os.Stat(dir); errors.Is(statErr, os.ErrNotExist) && rc.remote {
			return rc.remoteTop(ctx, category, day, maxLimit, ticker)
		}
		return nil, nil
	}
	sort.Strings(files)

	perFile := maxLimit / len(files)
	if perFile < 1 {
		perFile = 1
	}

	var out []RedditPost
	for _, path := range files {
		posts, err := readRedditDump(path, day, ticker)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(posts, func(i, j int) bool { return posts[i].upvotes() > posts[j].upvotes() })
		if len(posts) > perFile {
			posts = posts[:perFile]
		}
		out = append(out, posts...)
	}
	return out, nil
}

func readRedditDump(path, day, ticker string) ([]RedditPost, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var posts []RedditPost
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var p RedditPost
		if err := json.Unmarshal([]byte(line), &p); err != nil {
			continue
		}
		if p.day() != day || !mentions(p, ticker) {
			continue
		}
		posts = append(posts, p)
	}
	return posts, scanner.Err()
}

func mentions(p RedditPost, ticker string) bool {
	if ticker == "" {
		return true
	}
	terms := []string{strings.ToLower(ticker)}
	if name, ok := tickerToCompany[strings.ToUpper(ticker)]; ok {
		for _, alt := range strings.Split(name, " OR ") {
			terms = append(terms, strings.ToLower(alt))
		}
	}
	text := strings.ToLower(p.Title + " " + p.Selftext)
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

func (rc *RedditClient) remoteTop(ctx context.Context, category, day string, maxLimit int, ticker string) ([]RedditPost, error) {
	cacheKey := map[string]interface{}{"category": category, "day": day, "limit": maxLimit, "ticker": ticker}
	var cached []RedditPost
	if rc.cache.Get("reddit", "top", cacheKey, &cached) {
		return cached, nil
	}

	subs := redditSubreddits[category]
	perSub := maxLimit / len(subs)
	if perSub < 1 {
		perSub = 1
	}

	var out []RedditPost
	for _, sub := range subs {
		path := fmt.Sprintf("/r/%s/top.json", sub)
		params := map[string]string{"t": "month", "limit": "100"}
		if ticker != "" {
			path = fmt.Sprintf("/r/%s/search.json", sub)
			params = map[string]string{"q": ticker, "restrict_sr": "1", "sort": "top", "t": "month", "limit": "100"}
		}

		var listing redditListing
		err := WithRetry(ctx, DefaultRetryConfig(), func() error {
			if err := rc.limiter.Wait(ctx); err != nil {
				return permanent(err)
			}
			resp, err := rc.client.R().SetContext(ctx).SetQueryParams(params).Get(path)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", url.PathEscape(sub), err)
			}
			if resp.StatusCode() == 429 || resp.StatusCode() >= 500 {
				return fmt.Errorf("reddit HTTP error %d", resp.StatusCode())
			}
			if resp.StatusCode() != 200 {
				return permanent(fmt.Errorf("reddit HTTP error %d", resp.StatusCode()))
			}
			return json.Unmarshal(resp.Body(), &listing)
		})
		if err != nil {
			return nil, err
		}

		var posts []RedditPost
		for _, c := range listing.Data.Children {
			if c.Data.day() == day && mentions(c.Data, ticker) {
				posts = append(posts, c.Data)
			}
		}
		sort.SliceStable(posts, func(i, j int) bool { return posts[i].upvotes() > posts[j].upvotes() })
		if len(posts) > perSub {
			posts = posts[:perSub]
		}
		out = append(out, posts...)
	}

	_ = rc.cache.Set("reddit", "top", cacheKey, out)
	return out, nil
}

func formatRedditPosts(header string, posts []RedditPost) string {
	if len(posts) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, p := range posts {
		if p.Selftext == "" {
			fmt.Fprintf(&sb, "### %s\n\n", p.Title)
		} else {
			fmt.Fprintf(&sb, "### %s\n\n%s\n\n", p.Title, p.Selftext)
		}
	}
	return header + sb.String()
}
