package dataflows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/dyike/cortexdesk/models"
)

// Finnhub dataset names, also the directory names of the local dumps.
const (
	finnhubNews         = "news_data"
	finnhubInsiderSenti = "insider_senti"
	finnhubInsiderTrans = "insider_trans"
)

// FinnhubClient reads the local Finnhub dumps and falls back to the REST API
// when an API key is configured.
type FinnhubClient struct {
	client  *resty.Client
	limiter *rate.Limiter
	cache   *CacheManager
	dataDir string
	apiKey  string
}

func NewFinnhubClient(dataDir, cacheDir, apiKey string, cacheEnabled bool) *FinnhubClient {
	client := resty.New()
	client.SetBaseURL("https://finnhub.io/api/v1")
	client.SetTimeout(30 * time.Second)

	return &FinnhubClient{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(1), 1),
		cache:   NewCacheManager(filepath.Join(cacheDir, "finnhub"), 6*time.Hour, cacheEnabled),
		dataDir: dataDir,
		apiKey:  apiKey,
	}
}

// FinnhubNews represents news from Finnhub API
type FinnhubNews struct {
	Category string `json:"category"`
	DateTime int64  `json:"datetime"`
	Headline string `json:"headline"`
	ID       int64  `json:"id"`
	Related  string `json:"related"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

// loadLocal reads <data>/finnhub_data/<kind>/<T>_data_formatted.json, a map
// of yyyy-mm-dd to entries, and keeps the days inside [from, to].
func (fc *FinnhubClient) loadLocal(kind, symbol string, from, to time.Time) (map[string]json.RawMessage, error) {
	path := filepath.Join(fc.dataDir, "finnhub_data", kind, NormalizeSymbol(symbol)+"_data_formatted.json")
	var byDay map[string]json.RawMessage
	if err := LoadDataFromFile(path, &byDay); err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage)
	for day, raw := range byDay {
		if day >= from.Format(dateLayout) && day <= to.Format(dateLayout) {
			out[day] = raw
		}
	}
	return out, nil
}

func sortedDays(m map[string]json.RawMessage) []string {
	days := make([]string, 0, len(m))
	for d := range m {
		days = append(days, d)
	}
	sort.Strings(days)
	return days
}

func (fc *FinnhubClient) get(ctx context.Context, path string, params map[string]string, out interface{}) error {
	if fc.apiKey == "" {
		return errors.New("finnhub API key not configured")
	}
	q := map[string]string{"token": fc.apiKey}
	for k, v := range params {
		q[k] = v
	}
	return WithRetry(ctx, DefaultRetryConfig(), func() error {
		if err := fc.limiter.Wait(ctx); err != nil {
			return permanent(err)
		}
		resp, err := fc.client.R().SetContext(ctx).SetQueryParams(q).Get(path)
		if err != nil {
			return fmt.Errorf("finnhub %s: %w", path, err)
		}
		if resp.StatusCode() == 429 || resp.StatusCode() >= 500 {
			return fmt.Errorf("finnhub API error %d", resp.StatusCode())
		}
		if resp.StatusCode() != 200 {
			return permanent(fmt.Errorf("finnhub API error %d: %s", resp.StatusCode(), resp.String()))
		}
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return permanent(fmt.Errorf("failed to parse finnhub response: %w", err))
		}
		return nil
	})
}

// CompanyNews returns articles published in [from, to], oldest day first.
func (fc *FinnhubClient) CompanyNews(ctx context.Context, symbol string, from, to time.Time) ([]models.NewsArticle, error) {
	local, err := fc.loadLocal(finnhubNews, symbol, from, to)
	if err == nil {
		var out []models.NewsArticle
		for _, day := range sortedDays(local) {
			var entries []FinnhubNews
			if err := json.Unmarshal(local[day], &entries); err != nil {
				return nil, fmt.Errorf("decode finnhub news %s: %w", day, err)
			}
			date, _ := time.Parse(dateLayout, day)
			for _, e := range entries {
				out = append(out, models.NewsArticle{Title: e.Headline, Summary: e.Summary, Source: e.Source, URL: e.URL, PublishedAt: date})
			}
		}
		return out, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if fc.apiKey == "" {
		return nil, nil
	}

	symbol = NormalizeSymbol(symbol)
	cacheKey := map[string]string{"symbol": symbol, "from": from.Format(dateLayout), "to": to.Format(dateLayout)}
	var cached []models.NewsArticle
	if fc.cache.Get("finnhub", "company_news", cacheKey, &cached) {
		return cached, nil
	}

	var news []FinnhubNews
	if err := fc.get(ctx, "/company-news", map[string]string{
		"symbol": symbol,
		"from":   from.Format(dateLayout),
		"to":     to.Format(dateLayout),
	}, &news); err != nil {
		return nil, err
	}
	out := make([]models.NewsArticle, 0, len(news))
	for _, n := range news {
		out = append(out, models.NewsArticle{
			Title:       n.Headline,
			Summary:     n.Summary,
			Source:      n.Source,
			URL:         n.URL,
			PublishedAt: time.Unix(n.DateTime, 0).UTC(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PublishedAt.Before(out[j].PublishedAt) })
	_ = fc.cache.Set("finnhub", "company_news", cacheKey, out)
	return out, nil
}

// InsiderSentiment returns monthly sentiment entries, de-duplicated.
func (fc *FinnhubClient) InsiderSentiment(ctx context.Context, symbol string, from, to time.Time) ([]models.InsiderSentiment, error) {
	local, err := fc.loadLocal(finnhubInsiderSenti, symbol, from, to)
	if err == nil {
		var out []models.InsiderSentiment
		seen := make(map[models.InsiderSentiment]bool)
		for _, day := range sortedDays(local) {
			var entries []models.InsiderSentiment
			if err := json.Unmarshal(local[day], &entries); err != nil {
				return nil, fmt.Errorf("decode insider sentiment %s: %w", day, err)
			}
			for _, e := range entries {
				if !seen[e] {
					seen[e] = true
					out = append(out, e)
				}
			}
		}
		return out, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if fc.apiKey == "" {
		return nil, nil
	}

	var resp struct {
		Data []models.InsiderSentiment `json:"data"`
	}
	if err := fc.get(ctx, "/stock/insider-sentiment", map[string]string{
		"symbol": NormalizeSymbol(symbol),
		"from":   from.Format(dateLayout),
		"to":     to.Format(dateLayout),
	}, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// InsiderTransactions returns filings in the window, de-duplicated.
func (fc *FinnhubClient) InsiderTransactions(ctx context.Context, symbol string, from, to time.Time) ([]models.InsiderTransaction, error) {
	local, err := fc.loadLocal(finnhubInsiderTrans, symbol, from, to)
	if err == nil {
		var out []models.InsiderTransaction
		seen := make(map[models.InsiderTransaction]bool)
		for _, day := range sortedDays(local) {
			var entries []models.InsiderTransaction
			if err := json.Unmarshal(local[day], &entries); err != nil {
				return nil, fmt.Errorf("decode insider transactions %s: %w", day, err)
			}
			for _, e := range entries {
				if !seen[e] {
					seen[e] = true
					out = append(out, e)
				}
			}
		}
		return out, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if fc.apiKey == "" {
		return nil, nil
	}

	var resp struct {
		Data []models.InsiderTransaction `json:"data"`
	}
	if err := fc.get(ctx, "/stock/insider-transactions", map[string]string{
		"symbol": NormalizeSymbol(symbol),
		"from":   from.Format(dateLayout),
		"to":     to.Format(dateLayout),
	}, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func formatFinnhubNews(symbol string, from, to time.Time, articles []models.NewsArticle) string {
	if len(articles) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, a := range articles {
		fmt.Fprintf(&sb, "### %s (%s)\n%s\n\n", a.Title, a.PublishedAt.Format(dateLayout), a.Summary)
	}
	return fmt.Sprintf("## %s News, from %s to %s:\n%s", symbol, from.Format(dateLayout), to.Format(dateLayout), sb.String())
}

func formatInsiderSentiment(symbol string, from, to time.Time, entries []models.InsiderSentiment) string {
	if len(entries) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "### %d-%d:\nChange: %v\nMonthly Share Purchase Ratio: %v\n\n", e.Year, e.Month, e.Change, e.MSPR)
	}
	return fmt.Sprintf("## %s Insider Sentiment Data for %s to %s:\n%s", symbol, from.Format(dateLayout), to.Format(dateLayout), sb.String()) +
		"The change field refers to the net buying/selling from all insiders' transactions. " +
		"The mspr field refers to monthly share purchase ratio."
}

func formatInsiderTransactions(symbol string, from, to time.Time, entries []models.InsiderTransaction) string {
	if len(entries) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "### Filing Date: %s, %s:\nChange:%d\nShares: %d\nTransaction Price: %v\nTransaction Code: %s\n\n",
			e.FilingDate, e.Name, e.Change, e.Share, e.TransactionPrice, e.TransactionCode)
	}
	return fmt.Sprintf("## %s insider transactions from %s to %s:\n%s", symbol, from.Format(dateLayout), to.Format(dateLayout), sb.String()) +
		"The change field reflects the variation in share count (a negative number indicates a reduction in holdings) " +
		"while share specifies the total number of shares involved. The transactionPrice denotes the per-share price " +
		"at which the trade was executed, and transactionCode (e.g. S for sale) clarifies the nature of the transaction."
}
