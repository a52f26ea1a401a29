package agenttest

import (
	"context"
	"fmt"
	"sync"

	"github.com/dyike/cortexdesk/internal/tools"
)

// StubData answers every data request with a fixed line naming the call.
type StubData struct {
	mu    sync.Mutex
	calls []string
}

var _ tools.DataSource = (*StubData)(nil)

func (d *StubData) record(format string, args ...any) (string, error) {
	call := fmt.Sprintf(format, args...)
	d.mu.Lock()
	d.calls = append(d.calls, call)
	d.mu.Unlock()
	return "stub " + call, nil
}

// Calls returns the requests seen so far.
func (d *StubData) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *StubData) GetYFinData(_ context.Context, symbol, start, end string) (string, error) {
	return d.record("prices %s %s..%s", symbol, start, end)
}
func (d *StubData) GetYFinDataOnline(_ context.Context, symbol, start, end string) (string, error) {
	return d.record("prices %s %s..%s", symbol, start, end)
}
func (d *StubData) GetStockStatsIndicatorsWindow(_ context.Context, symbol, indicator, currDate string, lookback int, _ bool) (string, error) {
	return d.record("%s %s %s %d", indicator, symbol, currDate, lookback)
}
func (d *StubData) GetFinnhubNews(_ context.Context, ticker, currDate string, lookback int) (string, error) {
	return d.record("finnhub news %s %s %d", ticker, currDate, lookback)
}
func (d *StubData) GetFinnhubCompanyInsiderSentiment(_ context.Context, ticker, currDate string, lookback int) (string, error) {
	return d.record("insider sentiment %s %s %d", ticker, currDate, lookback)
}
func (d *StubData) GetFinnhubCompanyInsiderTransactions(_ context.Context, ticker, currDate string, lookback int) (string, error) {
	return d.record("insider transactions %s %s %d", ticker, currDate, lookback)
}
func (d *StubData) GetSimFinBalanceSheet(_ context.Context, ticker, freq, currDate string) (string, error) {
	return d.record("balance sheet %s %s %s", ticker, freq, currDate)
}
func (d *StubData) GetSimFinCashflow(_ context.Context, ticker, freq, currDate string) (string, error) {
	return d.record("cashflow %s %s %s", ticker, freq, currDate)
}
func (d *StubData) GetSimFinIncomeStatements(_ context.Context, ticker, freq, currDate string) (string, error) {
	return d.record("income %s %s %s", ticker, freq, currDate)
}
func (d *StubData) GetGoogleNews(_ context.Context, query, currDate string, lookback int) (string, error) {
	return d.record("google %s %s %d", query, currDate, lookback)
}
func (d *StubData) GetRedditGlobalNews(_ context.Context, currDate string, lookback, maxPerDay int) (string, error) {
	return d.record("reddit global %s %d %d", currDate, lookback, maxPerDay)
}
func (d *StubData) GetRedditCompanyNews(_ context.Context, ticker, currDate string, lookback, maxPerDay int) (string, error) {
	return d.record("reddit %s %s %d %d", ticker, currDate, lookback, maxPerDay)
}
func (d *StubData) GetStockNewsLLM(_ context.Context, ticker, currDate string) (string, error) {
	return d.record("stock news %s %s", ticker, currDate)
}
func (d *StubData) GetGlobalNewsLLM(_ context.Context, currDate string) (string, error) {
	return d.record("global news %s", currDate)
}
func (d *StubData) GetFundamentalsLLM(_ context.Context, ticker, currDate string) (string, error) {
	return d.record("fundamentals %s %s", ticker, currDate)
}
