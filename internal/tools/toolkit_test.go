package tools

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cloudwego/eino/components/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/cortexdesk/consts"
	"github.com/dyike/cortexdesk/internal/dataflows"
)

type fakeData struct {
	calls []string
	err   error
}

func (f *fakeData) record(format string, args ...any) (string, error) {
	call := fmt.Sprintf(format, args...)
	f.calls = append(f.calls, call)
	if f.err != nil {
		return "", f.err
	}
	return "data:" + call, nil
}

func (f *fakeData) GetYFinData(_ context.Context, symbol, start, end string) (string, error) {
	return f.record("yfin %s %s %s", symbol, start, end)
}
func (f *fakeData) GetYFinDataOnline(_ context.Context, symbol, start, end string) (string, error) {
	return f.record("yfin-online %s %s %s", symbol, start, end)
}
func (f *fakeData) GetStockStatsIndicatorsWindow(_ context.Context, symbol, indicator, currDate string, lookback int, online bool) (string, error) {
	return f.record("ind %s %s %s %d %t", symbol, indicator, currDate, lookback, online)
}
func (f *fakeData) GetFinnhubNews(_ context.Context, ticker, currDate string, lookback int) (string, error) {
	return f.record("finnhub-news %s %s %d", ticker, currDate, lookback)
}
func (f *fakeData) GetFinnhubCompanyInsiderSentiment(_ context.Context, ticker, currDate string, lookback int) (string, error) {
	return f.record("senti %s %s %d", ticker, currDate, lookback)
}
func (f *fakeData) GetFinnhubCompanyInsiderTransactions(_ context.Context, ticker, currDate string, lookback int) (string, error) {
	return f.record("trans %s %s %d", ticker, currDate, lookback)
}
func (f *fakeData) GetSimFinBalanceSheet(_ context.Context, ticker, freq, currDate string) (string, error) {
	return f.record("balance %s %s %s", ticker, freq, currDate)
}
func (f *fakeData) GetSimFinCashflow(_ context.Context, ticker, freq, currDate string) (string, error) {
	return f.record("cashflow %s %s %s", ticker, freq, currDate)
}
func (f *fakeData) GetSimFinIncomeStatements(_ context.Context, ticker, freq, currDate string) (string, error) {
	return f.record("income %s %s %s", ticker, freq, currDate)
}
func (f *fakeData) GetGoogleNews(_ context.Context, query, currDate string, lookback int) (string, error) {
	return f.record("google %s %s %d", query, currDate, lookback)
}
func (f *fakeData) GetRedditGlobalNews(_ context.Context, currDate string, lookback, maxPerDay int) (string, error) {
	return f.record("reddit-global %s %d %d", currDate, lookback, maxPerDay)
}
func (f *fakeData) GetRedditCompanyNews(_ context.Context, ticker, currDate string, lookback, maxPerDay int) (string, error) {
	return f.record("reddit-company %s %s %d %d", ticker, currDate, lookback, maxPerDay)
}
func (f *fakeData) GetStockNewsLLM(_ context.Context, ticker, currDate string) (string, error) {
	return f.record("stock-llm %s %s", ticker, currDate)
}
func (f *fakeData) GetGlobalNewsLLM(_ context.Context, currDate string) (string, error) {
	return f.record("global-llm %s", currDate)
}
func (f *fakeData) GetFundamentalsLLM(_ context.Context, ticker, currDate string) (string, error) {
	return f.record("fund-llm %s %s", ticker, currDate)
}

func toolNames(t *testing.T, ts []tool.BaseTool) []string {
	t.Helper()
	var names []string
	for _, tl := range ts {
		info, err := tl.Info(context.Background())
		require.NoError(t, err)
		names = append(names, info.Name)
	}
	return names
}

func findTool(t *testing.T, ts []tool.BaseTool, name string) tool.InvokableTool {
	t.Helper()
	for _, tl := range ts {
		info, err := tl.Info(context.Background())
		require.NoError(t, err)
		if info.Name == name {
			inv, ok := tl.(tool.InvokableTool)
			require.True(t, ok)
			return inv
		}
	}
	t.Fatalf("tool %s not found", name)
	return nil
}

func TestForAnalystToolsets(t *testing.T) {
	cases := []struct {
		analyst string
		online  bool
		want    []string
	}{
		{consts.AnalystMarket, true, []string{toolYFinOnline, toolIndicatorsOnline}},
		{consts.AnalystMarket, false, []string{toolYFin, toolIndicators}},
		{consts.AnalystSocial, true, []string{toolStockNewsLLM}},
		{consts.AnalystSocial, false, []string{toolRedditStock}},
		{consts.AnalystNews, true, []string{toolGlobalNewsLLM, toolGoogleNews}},
		{consts.AnalystNews, false, []string{toolFinnhubNews, toolRedditNews, toolGoogleNews}},
		{consts.AnalystFundamentals, true, []string{toolFundamentalsLLM}},
		{consts.AnalystFundamentals, false, []string{
			toolInsiderSentiment, toolInsiderTransactions,
			toolSimFinBalanceSheet, toolSimFinCashflow, toolSimFinIncome,
		}},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s/online=%t", tc.analyst, tc.online), func(t *testing.T) {
			ts, err := NewToolkit(&fakeData{}, tc.online).ForAnalyst(tc.analyst)
			require.NoError(t, err)
			assert.Equal(t, tc.want, toolNames(t, ts))
		})
	}

	_, err := NewToolkit(&fakeData{}, true).ForAnalyst("astrology")
	assert.Error(t, err)
}

func TestToolsForwardArguments(t *testing.T) {
	ctx := context.Background()
	data := &fakeData{}
	market, err := NewToolkit(data, false).ForAnalyst(consts.AnalystMarket)
	require.NoError(t, err)

	out, err := findTool(t, market, toolIndicators).InvokableRun(ctx,
		`{"symbol":"ACME","indicator":"rsi","curr_date":"2024-05-10"}`)
	require.NoError(t, err)
	assert.Equal(t, "data:ind ACME rsi 2024-05-10 30 false", out)

	news, err := NewToolkit(data, false).ForAnalyst(consts.AnalystNews)
	require.NoError(t, err)
	_, err = findTool(t, news, toolFinnhubNews).InvokableRun(ctx,
		`{"ticker":"ACME","start_date":"2024-05-03","end_date":"2024-05-10"}`)
	require.NoError(t, err)
	assert.Equal(t, "finnhub-news ACME 2024-05-10 7", data.calls[len(data.calls)-1])

	fund, err := NewToolkit(data, false).ForAnalyst(consts.AnalystFundamentals)
	require.NoError(t, err)
	_, err = findTool(t, fund, toolSimFinCashflow).InvokableRun(ctx,
		`{"ticker":"ACME","freq":"quarterly","curr_date":"2024-05-10"}`)
	require.NoError(t, err)
	assert.Equal(t, "cashflow ACME quarterly 2024-05-10", data.calls[len(data.calls)-1])
}

func TestToolErrorsAreSoftExceptUnsupportedIndicator(t *testing.T) {
	ctx := context.Background()

	data := &fakeData{err: errors.New("upstream 503")}
	social, err := NewToolkit(data, false).ForAnalyst(consts.AnalystSocial)
	require.NoError(t, err)
	out, err := findTool(t, social, toolRedditStock).InvokableRun(ctx, `{"ticker":"ACME","curr_date":"2024-05-10"}`)
	require.NoError(t, err)
	assert.Equal(t, "", out)

	data.err = fmt.Errorf("%w: stochrsi", dataflows.ErrUnsupportedIndicator)
	market, err := NewToolkit(data, true).ForAnalyst(consts.AnalystMarket)
	require.NoError(t, err)
	_, err = findTool(t, market, toolIndicatorsOnline).InvokableRun(ctx,
		`{"symbol":"ACME","indicator":"stochrsi","curr_date":"2024-05-10","look_back_days":5}`)
	require.ErrorIs(t, err, dataflows.ErrUnsupportedIndicator)
}

func TestLookbackBetween(t *testing.T) {
	curr, days := lookbackBetween("2024-05-01", "2024-05-10")
	assert.Equal(t, "2024-05-10", curr)
	assert.Equal(t, 9, days)

	_, days = lookbackBetween("garbage", "2024-05-10")
	assert.Equal(t, newsLookbackDays, days)
}
