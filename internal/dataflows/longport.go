package dataflows

import (
	"context"
	"errors"
	"strings"
	"time"

	lpconfig "github.com/longportapp/openapi-go/config"
	"github.com/longportapp/openapi-go/quote"

	"github.com/dyike/cortexdesk/models"
)

// LongportClient serves daily candlesticks for HK and mainland listings.
type LongportClient struct {
	quoteCtx *quote.QuoteContext
}

func NewLongportClient(appKey, appSecret, accessToken string) (*LongportClient, error) {
	if appKey == "" || appSecret == "" || accessToken == "" {
		return nil, errors.New("longport API credentials not configured")
	}

	conf, err := lpconfig.New(lpconfig.WithConfigKey(appKey, appSecret, accessToken))
	if err != nil {
		return nil, err
	}

	quoteContext, err := quote.NewFromCfg(conf)
	if err != nil {
		return nil, err
	}

	return &LongportClient{quoteCtx: quoteContext}, nil
}

// IsLongportSymbol reports whether symbol trades on a Longport served exchange.
func IsLongportSymbol(symbol string) bool {
	s := NormalizeSymbol(symbol)
	for _, suffix := range []string{".HK", ".SH", ".SZ", ".SG"} {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}

func (lpc *LongportClient) History(ctx context.Context, symbol string, start, end time.Time) ([]models.PriceBar, error) {
	if lpc.quoteCtx == nil {
		return nil, errors.New("quote context is nil")
	}
	symbol = NormalizeSymbol(symbol)

	days := int(time.Since(start).Hours()/24) + 1
	if days > 1000 {
		days = 1000
	}
	if days < 1 {
		days = 1
	}
	sticks, err := lpc.quoteCtx.Candlesticks(ctx, symbol, quote.PeriodDay, int32(days), quote.AdjustTypeNo)
	if err != nil {
		return nil, err
	}

	bars := make([]models.PriceBar, 0, len(sticks))
	for _, s := range sticks {
		if s == nil || s.Close == nil {
			continue
		}
		bar := models.PriceBar{
			Symbol: symbol,
			Date:   time.Unix(s.Timestamp, 0).UTC(),
			Close:  *s.Close,
			Volume: s.Volume,
		}
		bar.AdjClose = bar.Close
		if s.Open != nil {
			bar.Open = *s.Open
		}
		if s.High != nil {
			bar.High = *s.High
		}
		if s.Low != nil {
			bar.Low = *s.Low
		}
		bars = append(bars, bar)
	}
	return filterBars(bars, start, end), nil
}
