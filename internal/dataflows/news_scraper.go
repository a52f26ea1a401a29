package dataflows

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/dyike/cortexdesk/models"
)

const googleSearchURL = "https://www.google.com/search"

// NewsScraperClient scrapes Google News search results
type NewsScraperClient struct {
	client   *resty.Client
	cache    *CacheManager
	baseURL  string
	maxPages int
}

func NewNewsScraperClient(cacheDir string, cacheEnabled bool) *NewsScraperClient {
	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetHeader("User-Agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")

	return &NewsScraperClient{
		client:   client,
		cache:    NewCacheManager(filepath.Join(cacheDir, "news_scraper"), 2*time.Hour, cacheEnabled),
		baseURL:  googleSearchURL,
		maxPages: 3,
	}
}

// buildSearchURL constructs a news search restricted to [start, end].
func (ns *NewsScraperClient) buildSearchURL(query string, start, end time.Time, page int) string {
	values := url.Values{}
	values.Set("q", query)
	values.Set("tbm", "nws")
	values.Set("tbs", fmt.Sprintf("cdr:1,cd_min:%s,cd_max:%s", start.Format("01/02/2006"), end.Format("01/02/2006")))
	values.Set("start", strconv.Itoa(page*10))
	return ns.baseURL + "?" + values.Encode()
}

// Search returns articles for query published between start and end.
func (ns *NewsScraperClient) Search(ctx context.Context, query string, start, end time.Time) ([]models.NewsArticle, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}

	cacheKey := map[string]string{"q": query, "start": start.Format(dateLayout), "end": end.Format(dateLayout)}
	var cached []models.NewsArticle
	if ns.cache.Get("google_news", "search", cacheKey, &cached) {
		return cached, nil
	}

	var result []models.NewsArticle
	for page := 0; page < ns.maxPages; page++ {
		var articles []models.NewsArticle
		err := WithRetry(ctx, DefaultRetryConfig(), func() error {
			resp, err := ns.client.R().SetContext(ctx).Get(ns.buildSearchURL(query, start, end, page))
			if err != nil {
				return fmt.Errorf("failed to fetch Google News: %w", err)
			}
			if resp.StatusCode() == 429 || resp.StatusCode() >= 500 {
				return fmt.Errorf("HTTP error %d when fetching Google News", resp.StatusCode())
			}
			if resp.StatusCode() != 200 {
				return permanent(fmt.Errorf("HTTP error %d when fetching Google News", resp.StatusCode()))
			}

			doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
			if err != nil {
				return permanent(fmt.Errorf("failed to parse HTML: %w", err))
			}
			articles = parseGoogleNewsHTML(doc)
			return nil
		})
		if err != nil {
			return nil, err
		}
		if len(articles) == 0 {
			break
		}
		result = append(result, articles...)
	}

	_ = ns.cache.Set("google_news", "search", cacheKey, result)
	return result, nil
}

// parseGoogleNewsHTML extracts articles from a news search result page
func parseGoogleNewsHTML(doc *goquery.Document) []models.NewsArticle {
	var articles []models.NewsArticle
	doc.Find("div.SoaBEf, div.WlydOe").Each(func(i int, s *goquery.Selection) {
		title := firstText(s, "div.MBeuO", "[role='heading']", "h3")
		if title == "" {
			return
		}
		href, _ := s.Find("a").First().Attr("href")

		source := firstText(s, ".NUnG9d span", ".NUnG9d", ".CEMjEf span")
		if source == "" {
			source = "Google News"
		}

		articles = append(articles, models.NewsArticle{
			Title:   title,
			Summary: firstText(s, ".GI74Re", ".Y3v8qd", ".st"),
			Source:  source,
			URL:     cleanGoogleURL(href),
		})
	})
	return articles
}

func firstText(s *goquery.Selection, selectors ...string) string {
	for _, sel := range selectors {
		if t := strings.TrimSpace(s.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

// cleanGoogleURL removes Google redirect wrapper
func cleanGoogleURL(googleURL string) string {
	if strings.HasPrefix(googleURL, "/url?") {
		if u, err := url.Parse(googleURL); err == nil {
			if q := u.Query().Get("q"); q != "" {
				return q
			}
		}
	}
	if strings.HasPrefix(googleURL, "/") {
		return "https://www.google.com" + googleURL
	}
	return googleURL
}

func formatGoogleNews(query string, from, to time.Time, articles []models.NewsArticle) string {
	if len(articles) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, a := range articles {
		fmt.Fprintf(&sb, "### %s (source: %s) \n\n%s\n\n", a.Title, a.Source, a.Summary)
	}
	return fmt.Sprintf("## %s Google News, from %s to %s:\n\n%s", query, from.Format(dateLayout), to.Format(dateLayout), sb.String())
}
