package dataflows

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dyike/cortexdesk/models"
)

// PriceSource returns daily bars between start and end inclusive, oldest first.
type PriceSource interface {
	History(ctx context.Context, symbol string, start, end time.Time) ([]models.PriceBar, error)
}

// YahooFinanceClient handles Yahoo Finance data operations
type YahooFinanceClient struct {
	cache *CacheManager
}

// NewYahooFinanceClient creates a new Yahoo Finance client
func NewYahooFinanceClient(cacheDir string, cacheEnabled bool) *YahooFinanceClient {
	cache := NewCacheManager(filepath.Join(cacheDir, "yahoo_finance"), 24*time.Hour, cacheEnabled)
	return &YahooFinanceClient{
		cache: cache,
	}
}

// History gets historical price data for a symbol
func (yf *YahooFinanceClient) History(ctx context.Context, symbol string, start, end time.Time) ([]models.PriceBar, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	symbol = NormalizeSymbol(symbol)

	cacheKey := map[string]interface{}{
		"symbol": symbol,
		"start":  start.Format(dateLayout),
		"end":    end.Format(dateLayout),
	}

	var cached []models.PriceBar
	if yf.cache.Get("yahoo", "historical", cacheKey, &cached) {
		return cached, nil
	}

	var result []models.PriceBar
	err := WithRetry(ctx, DefaultRetryConfig(), func() error {
		// the chart API treats end as exclusive
		until := end.AddDate(0, 0, 1)
		params := &chart.Params{
			Symbol:   symbol,
			Start:    datetime.New(&start),
			End:      datetime.New(&until),
			Interval: datetime.OneDay,
		}

		iter := chart.Get(params)

		result = result[:0]
		for iter.Next() {
			bar := iter.Bar()
			result = append(result, models.PriceBar{
				Symbol:   symbol,
				Date:     time.Unix(int64(bar.Timestamp), 0).UTC(),
				Open:     bar.Open,
				High:     bar.High,
				Low:      bar.Low,
				Close:    bar.Close,
				AdjClose: bar.AdjClose,
				Volume:   int64(bar.Volume),
			})
		}

		if err := iter.Err(); err != nil {
			return fmt.Errorf("failed to get historical data for %s: %w", symbol, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	_ = yf.cache.Set("yahoo", "historical", cacheKey, result)
	return result, nil
}

// CSVPriceSource reads the offline Yahoo Finance dumps under
// <dataDir>/market_data/price_data/<SYMBOL>-YFin-data-*.csv.
type CSVPriceSource struct {
	dir string
}

func NewCSVPriceSource(dataDir string) *CSVPriceSource {
	return &CSVPriceSource{dir: filepath.Join(dataDir, "market_data", "price_data")}
}

func (c *CSVPriceSource) path(symbol string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(c.dir, NormalizeSymbol(symbol)+"-YFin-data-*.csv"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", os.ErrNotExist
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}

// History returns an empty slice when no dump exists for symbol.
func (c *CSVPriceSource) History(_ context.Context, symbol string, start, end time.Time) ([]models.PriceBar, error) {
	path, err := c.path(symbol)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bars, err := readPriceCSV(f, NormalizeSymbol(symbol))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return filterBars(bars, start, end), nil
}

func readPriceCSV(r io.Reader, symbol string) ([]models.PriceBar, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, err
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	for _, required := range []string{"Date", "Open", "High", "Low", "Close", "Volume"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	var bars []models.PriceBar
	for row := 2; ; row++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		bar, err := parsePriceRow(rec, col, symbol)
		if err != nil {
			zap.L().Warn("skipping price row", zap.String("symbol", symbol), zap.Int("row", row), zap.Error(err))
			continue
		}
		bars = append(bars, bar)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

func parsePriceRow(rec []string, col map[string]int, symbol string) (models.PriceBar, error) {
	raw := rec[col["Date"]]
	if len(raw) < 10 {
		return models.PriceBar{}, fmt.Errorf("bad date %q", raw)
	}
	date, err := time.Parse(dateLayout, raw[:10])
	if err != nil {
		return models.PriceBar{}, fmt.Errorf("bad date %q", raw)
	}
	bar := models.PriceBar{Symbol: symbol, Date: date}

	fields := []struct {
		name string
		dst  *decimal.Decimal
	}{
		{"Open", &bar.Open},
		{"High", &bar.High},
		{"Low", &bar.Low},
		{"Close", &bar.Close},
	}
	for _, f := range fields {
		if *f.dst, err = decimal.NewFromString(strings.TrimSpace(rec[col[f.name]])); err != nil {
			return models.PriceBar{}, fmt.Errorf("%s: %w", f.name, err)
		}
	}
	bar.AdjClose = bar.Close
	if i, ok := col["Adj Close"]; ok {
		if bar.AdjClose, err = decimal.NewFromString(strings.TrimSpace(rec[i])); err != nil {
			return models.PriceBar{}, fmt.Errorf("Adj Close: %w", err)
		}
	}
	vol, err := strconv.ParseFloat(strings.TrimSpace(rec[col["Volume"]]), 64)
	if err != nil {
		return models.PriceBar{}, fmt.Errorf("Volume: %w", err)
	}
	bar.Volume = int64(vol)
	return bar, nil
}

func filterBars(bars []models.PriceBar, start, end time.Time) []models.PriceBar {
	var out []models.PriceBar
	for _, b := range bars {
		d := b.Date.Format(dateLayout)
		if d >= start.Format(dateLayout) && d <= end.Format(dateLayout) {
			out = append(out, b)
		}
	}
	return out
}

// FormatPriceTable renders bars as a CSV block with a short header.
// No bars render as "".
func FormatPriceTable(symbol string, start, end time.Time, bars []models.PriceBar) string {
	if len(bars) == 0 {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Stock data for %s from %s to %s\n", NormalizeSymbol(symbol), start.Format(dateLayout), end.Format(dateLayout))
	fmt.Fprintf(&sb, "# Total records: %d\n\n", len(bars))
	sb.WriteString("Date,Open,High,Low,Close,Adj Close,Volume\n")
	for _, b := range bars {
		fmt.Fprintf(&sb, "%s,%s,%s,%s,%s,%s,%d\n",
			b.Date.Format(dateLayout),
			b.Open.StringFixed(2),
			b.High.StringFixed(2),
			b.Low.StringFixed(2),
			b.Close.StringFixed(2),
			b.AdjClose.StringFixed(2),
			b.Volume)
	}
	return sb.String()
}
