package dataflows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/dyike/cortexdesk/config"
)

// indicatorWarmup is the extra history fetched so long averages are defined
// across the whole window.
const indicatorWarmup = 400

// Interface is the data access layer used by analyst tools. Every method
// returns formatted text and returns "" when no data exists.
type Interface struct {
	online   PriceSource
	longport PriceSource
	offline  PriceSource
	finnhub  *FinnhubClient
	simfin   *SimFinReader
	news     *NewsScraperClient
	reddit   *RedditClient
	research model.BaseChatModel
}

type Option func(*Interface)

func WithOnlinePrices(src PriceSource) Option {
	return func(i *Interface) { i.online = src }
}

func WithOfflinePrices(src PriceSource) Option {
	return func(i *Interface) { i.offline = src }
}

func WithLongport(src PriceSource) Option {
	return func(i *Interface) { i.longport = src }
}

// WithResearchModel sets the model answering the research tools.
func WithResearchModel(m model.BaseChatModel) Option {
	return func(i *Interface) { i.research = m }
}

func WithNewsScraper(ns *NewsScraperClient) Option {
	return func(i *Interface) { i.news = ns }
}

func New(cfg *config.Config, opts ...Option) *Interface {
	i := &Interface{
		online:  NewYahooFinanceClient(cfg.DataCacheDir, cfg.CacheEnabled),
		offline: NewCSVPriceSource(cfg.DataDir),
		finnhub: NewFinnhubClient(cfg.DataDir, cfg.DataCacheDir, cfg.FinnhubAPIKey, cfg.CacheEnabled),
		simfin:  NewSimFinReader(cfg.DataDir),
		news:    NewNewsScraperClient(cfg.DataCacheDir, cfg.CacheEnabled),
		reddit:  NewRedditClient(cfg.DataDir, cfg.DataCacheDir, cfg.RedditUserAgent, cfg.CacheEnabled, cfg.OnlineTools),
	}
	if cfg.LongportAppKey != "" {
		lp, err := NewLongportClient(cfg.LongportAppKey, cfg.LongportAppSecret, cfg.LongportAccessToken)
		if err != nil {
			zap.L().Warn("longport disabled", zap.Error(err))
		} else {
			i.longport = lp
		}
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func parseRange(start, end string) (time.Time, time.Time, error) {
	s, err := time.Parse(dateLayout, start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q: %w", start, err)
	}
	e, err := time.Parse(dateLayout, end)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q: %w", end, err)
	}
	return s, e, nil
}

func (i *Interface) onlineSource(symbol string) PriceSource {
	if i.longport != nil && IsLongportSymbol(symbol) {
		return i.longport
	}
	return i.online
}

// GetYFinData reads the offline price dump between start and end.
func (i *Interface) GetYFinData(ctx context.Context, symbol, start, end string) (string, error) {
	s, e, err := parseRange(start, end)
	if err != nil {
		return "", err
	}
	bars, err := i.offline.History(ctx, symbol, s, e)
	if err != nil {
		return "", err
	}
	return FormatPriceTable(symbol, s, e, bars), nil
}

// GetYFinDataOnline fetches live prices, from Longport for HK and mainland listings.
func (i *Interface) GetYFinDataOnline(ctx context.Context, symbol, start, end string) (string, error) {
	s, e, err := parseRange(start, end)
	if err != nil {
		return "", err
	}
	bars, err := i.onlineSource(symbol).History(ctx, symbol, s, e)
	if err != nil {
		return "", err
	}
	return FormatPriceTable(symbol, s, e, bars), nil
}

// GetStockStatsIndicatorsWindow reports indicator for each day of the window
// ending at currDate. Unknown indicators return ErrUnsupportedIndicator.
func (i *Interface) GetStockStatsIndicatorsWindow(ctx context.Context, symbol, indicator, currDate string, lookback int, online bool) (string, error) {
	if _, ok := IndicatorDescriptions[indicator]; !ok {
		_, err := CalculateIndicator(indicator, nil)
		return "", err
	}
	before, curr, err := lookbackRange(currDate, lookback)
	if err != nil {
		return "", err
	}

	src := i.offline
	if online {
		src = i.onlineSource(symbol)
	}
	bars, err := src.History(ctx, symbol, before.AddDate(0, 0, -indicatorWarmup), curr)
	if err != nil {
		return "", err
	}
	if len(bars) == 0 {
		return "", nil
	}

	values, err := CalculateIndicator(indicator, bars)
	if err != nil {
		return "", err
	}
	tradingDays := make(map[string]bool, len(bars))
	for _, b := range bars {
		tradingDays[b.Date.Format(dateLayout)] = true
	}
	return FormatIndicatorWindow(indicator, curr, lookback, values, tradingDays, online), nil
}

func (i *Interface) GetFinnhubNews(ctx context.Context, ticker, currDate string, lookback int) (string, error) {
	before, curr, err := lookbackRange(currDate, lookback)
	if err != nil {
		return "", err
	}
	articles, err := i.finnhub.CompanyNews(ctx, ticker, before, curr)
	if err != nil {
		return "", err
	}
	return formatFinnhubNews(ticker, before, curr, articles), nil
}

func (i *Interface) GetFinnhubCompanyInsiderSentiment(ctx context.Context, ticker, currDate string, lookback int) (string, error) {
	before, curr, err := lookbackRange(currDate, lookback)
	if err != nil {
		return "", err
	}
	entries, err := i.finnhub.InsiderSentiment(ctx, ticker, before, curr)
	if err != nil {
		return "", err
	}
	return formatInsiderSentiment(ticker, before, curr, entries), nil
}

func (i *Interface) GetFinnhubCompanyInsiderTransactions(ctx context.Context, ticker, currDate string, lookback int) (string, error) {
	before, curr, err := lookbackRange(currDate, lookback)
	if err != nil {
		return "", err
	}
	entries, err := i.finnhub.InsiderTransactions(ctx, ticker, before, curr)
	if err != nil {
		return "", err
	}
	return formatInsiderTransactions(ticker, before, curr, entries), nil
}

func (i *Interface) GetSimFinBalanceSheet(_ context.Context, ticker, freq, currDate string) (string, error) {
	return i.simfin.Latest(BalanceSheet, ticker, freq, currDate)
}

func (i *Interface) GetSimFinCashflow(_ context.Context, ticker, freq, currDate string) (string, error) {
	return i.simfin.Latest(CashFlow, ticker, freq, currDate)
}

func (i *Interface) GetSimFinIncomeStatements(_ context.Context, ticker, freq, currDate string) (string, error) {
	return i.simfin.Latest(IncomeStatement, ticker, freq, currDate)
}

func (i *Interface) GetGoogleNews(ctx context.Context, query, currDate string, lookback int) (string, error) {
	before, curr, err := lookbackRange(currDate, lookback)
	if err != nil {
		return "", err
	}
	query = strings.ReplaceAll(query, " ", "+")
	articles, err := i.news.Search(ctx, query, before, curr)
	if err != nil {
		return "", err
	}
	return formatGoogleNews(query, before, curr, articles), nil
}

func (i *Interface) redditWindow(ctx context.Context, category, ticker, currDate string, lookback, maxPerDay int) ([]RedditPost, time.Time, time.Time, error) {
	before, curr, err := lookbackRange(currDate, lookback)
	if err != nil {
		return nil, before, curr, err
	}
	var posts []RedditPost
	for d := before; !d.After(curr); d = d.AddDate(0, 0, 1) {
		day, err := i.reddit.TopPosts(ctx, category, d.Format(dateLayout), maxPerDay, ticker)
		if err != nil {
			return nil, before, curr, err
		}
		posts = append(posts, day...)
	}
	return posts, before, curr, nil
}

func (i *Interface) GetRedditGlobalNews(ctx context.Context, currDate string, lookback, maxPerDay int) (string, error) {
	posts, before, curr, err := i.redditWindow(ctx, RedditGlobalNews, "", currDate, lookback, maxPerDay)
	if err != nil {
		return "", err
	}
	header := fmt.Sprintf("## Global News Reddit, from %s to %s:\n", before.Format(dateLayout), curr.Format(dateLayout))
	return formatRedditPosts(header, posts), nil
}

func (i *Interface) GetRedditCompanyNews(ctx context.Context, ticker, currDate string, lookback, maxPerDay int) (string, error) {
	posts, before, curr, err := i.redditWindow(ctx, RedditCompanyNews, ticker, currDate, lookback, maxPerDay)
	if err != nil {
		return "", err
	}
	header := fmt.Sprintf("## %s News Reddit, from %s to %s:\n\n", ticker, before.Format(dateLayout), curr.Format(dateLayout))
	return formatRedditPosts(header, posts), nil
}

func (i *Interface) ask(ctx context.Context, prompt string) (string, error) {
	if i.research == nil {
		return "", fmt.Errorf("no research model configured")
	}
	msg, err := i.research.Generate(ctx, []*schema.Message{schema.SystemMessage(prompt)})
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

// GetStockNewsLLM asks the research model for recent social media discussion of ticker.
func (i *Interface) GetStockNewsLLM(ctx context.Context, ticker, currDate string) (string, error) {
	return i.ask(ctx, fmt.Sprintf(
		"Can you search Social Media for %s from 7 days before %s to %s? Make sure you only get the data posted during that period.",
		ticker, currDate, currDate))
}

func (i *Interface) GetGlobalNewsLLM(ctx context.Context, currDate string) (string, error) {
	return i.ask(ctx, fmt.Sprintf(
		"Can you search global or macroeconomics news from 7 days before %s to %s that would be informative for trading purposes? "+
			"Make sure you only get the data posted during that period.",
		currDate, currDate))
}

func (i *Interface) GetFundamentalsLLM(ctx context.Context, ticker, currDate string) (string, error) {
	return i.ask(ctx, fmt.Sprintf(
		"Can you search Fundamental for discussions on %s during of the month before %s to the month of %s. "+
			"Make sure you only get the data posted during that period. List as a table, with PE/PS/Cash flow/ etc",
		ticker, currDate, currDate))
}
