package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dyike/cortexdesk/config"
	"github.com/dyike/cortexdesk/consts"
	"github.com/dyike/cortexdesk/internal/agents/agenttest"
	"github.com/dyike/cortexdesk/internal/llm"
	"github.com/dyike/cortexdesk/internal/memory"
	"github.com/dyike/cortexdesk/internal/storage"
	"github.com/dyike/cortexdesk/models"
)

func answer(text string) agenttest.Responder {
	return func([]*schema.Message) (*schema.Message, error) {
		return agenttest.Reply(text), nil
	}
}

// newTestApp wires the commands to scripted models, stub data and a
// temporary database.
func newTestApp(t *testing.T, quick, deep agenttest.Responder) (*app, *bytes.Buffer) {
	t.Helper()
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	cfg.OnlineTools = false
	cfg.CacheEnabled = false
	require.NoError(t, cfg.EnsureDirectories())

	out := &bytes.Buffer{}
	a := &app{cfg: cfg, logger: zap.NewNop(), out: out}
	a.openEngine = func(a *app) (*engine, error) {
		store, err := storage.Open(a.cfg.DBPath)
		if err != nil {
			return nil, err
		}
		memories, err := memory.NewSet(context.Background(), memory.WithPersister(store))
		if err != nil {
			return nil, err
		}
		return &engine{
			logger:   a.logger,
			store:    store,
			models:   &llm.Models{Quick: agenttest.NewFuncModel(quick), Deep: agenttest.NewFuncModel(deep)},
			memories: memories,
			data:     &agenttest.StubData{},
		}, nil
	}
	return a, out
}

func execute(t *testing.T, a *app, args ...string) error {
	t.Helper()
	root := newRootCmd(a)
	buf := a.out.(*bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

func listSessions(t *testing.T, a *app) []models.SessionRecord {
	t.Helper()
	store, err := storage.Open(a.cfg.DBPath)
	require.NoError(t, err)
	defer store.Close()
	sessions, err := store.ListSessions(context.Background(), "", 50)
	require.NoError(t, err)
	return sessions
}

func TestAnalyzeReflectAndHistory(t *testing.T) {
	a, out := newTestApp(t,
		answer("Trim exposure. FINAL TRANSACTION PROPOSAL: **SELL**"),
		answer("Exit the position. FINAL TRANSACTION PROPOSAL: **SELL**"))

	err := execute(t, a, "analyze", "acme", "--date", "2024-05-10", "--analysts", "market,news", "-q", "--reports=false")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "ACME")
	assert.Contains(t, out.String(), "SELL")

	sessions := listSessions(t, a)
	require.Len(t, sessions, 1)
	sess := sessions[0]
	assert.Equal(t, "ACME", sess.Symbol)
	assert.Equal(t, "2024-05-10", sess.TradeDate)
	assert.Equal(t, storage.StatusDone, sess.Status)
	assert.Equal(t, models.SignalSell, sess.Signal)

	report := filepath.Join(storage.ReportDir(a.cfg.ResultsDir, "ACME", "2024-05-10"), "complete_report.md")
	data, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.Contains(t, string(data), "**Signal:** SELL")

	out.Reset()
	require.NoError(t, execute(t, a, "reflect", sess.ID, "--returns", "-0.042"))
	assert.Contains(t, out.String(), "reflected")

	store, err := storage.Open(a.cfg.DBPath)
	require.NoError(t, err)
	counts, err := store.CountMemories(context.Background())
	require.NoError(t, err)
	store.Close()
	for _, role := range consts.AllMemories {
		assert.Equal(t, 1, counts[role], role)
	}

	err = execute(t, a, "reflect", sess.ID, "--returns", "0.3")
	require.ErrorIs(t, err, storage.ErrAlreadyReflected)
	store, err = storage.Open(a.cfg.DBPath)
	require.NoError(t, err)
	counts, err = store.CountMemories(context.Background())
	require.NoError(t, err)
	store.Close()
	for _, role := range consts.AllMemories {
		assert.Equal(t, 1, counts[role], "second reflection stored nothing for %s", role)
	}

	out.Reset()
	require.NoError(t, execute(t, a, "history", "--symbol", "acme"))
	assert.Contains(t, out.String(), sess.ID)
	assert.Contains(t, out.String(), "-0.042")

	out.Reset()
	require.NoError(t, execute(t, a, "history", "show", sess.ID))
	assert.Contains(t, out.String(), "FINAL TRANSACTION PROPOSAL")
}

func TestAnalyzeFailureIsRecorded(t *testing.T) {
	a, out := newTestApp(t, answer("still thinking"), answer("no verdict yet"))

	err := execute(t, a, "analyze", "acme", "--date", "2024-05-10", "--analysts", "fundamentals", "-q")
	require.ErrorIs(t, err, models.ErrUnparseableSignal)
	assert.Contains(t, out.String(), "run failed")

	sessions := listSessions(t, a)
	require.Len(t, sessions, 1)
	assert.Equal(t, storage.StatusError, sessions[0].Status)
	assert.NotEmpty(t, sessions[0].Error)

	err = execute(t, a, "reflect", sessions[0].ID, "--returns", "0.01")
	assert.ErrorContains(t, err, "did not finish")
}

func TestAnalyzeRejectsBadFlags(t *testing.T) {
	a, _ := newTestApp(t, answer("x"), answer("x"))

	assert.Error(t, execute(t, a, "analyze", "acme", "--date", "10/05/2024"))
	assert.ErrorContains(t, execute(t, a, "analyze", "acme", "--analysts", "market,astrology"), "astrology")
	assert.Error(t, execute(t, a, "analyze", "acme", "--date", time.Now().AddDate(0, 0, 3).Format(time.DateOnly)))
	assert.Empty(t, listSessions(t, a))
}

func TestBatch(t *testing.T) {
	a, out := newTestApp(t,
		answer("FINAL TRANSACTION PROPOSAL: **HOLD**"),
		answer("Wait for earnings. FINAL TRANSACTION PROPOSAL: **HOLD**"))

	err := execute(t, a, "batch", "acme,init", "acme", "--date", "2024-05-10", "--analysts", "news", "--concurrency", "2")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "INIT")

	sessions := listSessions(t, a)
	require.Len(t, sessions, 2)
	var symbols []string
	for _, s := range sessions {
		symbols = append(symbols, s.Symbol)
		assert.Equal(t, models.SignalHold, s.Signal)
	}
	assert.ElementsMatch(t, []string{"ACME", "INIT"}, symbols)
}

func TestConfigCommands(t *testing.T) {
	a, out := newTestApp(t, answer("x"), answer("x"))
	a.cfg.OpenAIAPIKey = "sk-abcdefghijklmnop"

	require.NoError(t, execute(t, a, "config", "show"))
	assert.Contains(t, out.String(), "sk-****mnop")
	assert.NotContains(t, out.String(), "sk-abcdefghijklmnop")

	out.Reset()
	require.NoError(t, execute(t, a, "config", "validate"))
	assert.Contains(t, out.String(), "configuration is valid")

	path := filepath.Join(t.TempDir(), "desk.json")
	require.NoError(t, execute(t, a, "config", "init", "--path", path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-abcdefghijklmnop")
	assert.Contains(t, string(data), `"max_debate_rounds"`)
}

func TestResolveDate(t *testing.T) {
	now := time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)

	got, err := resolveDate("", now)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-10", got)

	got, err = resolveDate(" 2024-01-02 ", now)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02", got)

	_, err = resolveDate("2024-05-11", now)
	assert.ErrorContains(t, err, "future")
	_, err = resolveDate("yesterday", now)
	assert.Error(t, err)
}

func TestDedupeTickers(t *testing.T) {
	assert.Equal(t, []string{"AAPL", "MSFT", "0700.HK"}, dedupeTickers([]string{"aapl,msft", " AAPL ", "0700.hk", ","}))
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", mask(""))
	assert.Equal(t, "****", mask("short"))
	assert.Equal(t, "sk-****wxyz", mask("sk-0123456789wxyz"))
}

func TestInteractiveChoices(t *testing.T) {
	base := config.DefaultConfigWithRoot(t.TempDir())
	choices := interactiveChoices{
		Ticker:   "acme",
		Analysts: []string{"News Analyst", "Market Analyst"},
		Depth:    researchDepths[2].label,
		Online:   false,
	}
	cfg, err := choices.apply(base)
	require.NoError(t, err)
	assert.Equal(t, []string{consts.AnalystNews, consts.AnalystMarket}, cfg.SelectedAnalysts)
	assert.Equal(t, 5, cfg.MaxDebateRounds)
	assert.Equal(t, 5, cfg.MaxRiskDiscussRounds)
	assert.False(t, cfg.OnlineTools)
	assert.Equal(t, consts.DefaultAnalysts, base.SelectedAnalysts, "base config untouched")

	_, err = interactiveChoices{Depth: researchDepths[0].label}.apply(base)
	assert.Error(t, err, "no analysts selected")

	assert.NoError(t, validateTicker("0700.HK"))
	assert.Error(t, validateTicker("not a ticker"))
}

func TestRenderEvent(t *testing.T) {
	ts := time.Date(2024, 5, 10, 9, 30, 0, 0, time.Local)
	line := renderEvent(models.AgentEvent{Kind: models.EventNodeError, Agent: "Trader", Err: "boom", Timestamp: ts})
	assert.Contains(t, line, "09:30:00")
	assert.Contains(t, line, "Trader")
	assert.Contains(t, line, "boom")

	line = renderEvent(models.AgentEvent{Kind: models.EventToolCall, Node: "get_YFin_data", Detail: strings.Repeat("x", 200), Timestamp: ts})
	assert.Contains(t, line, "get_YFin_data")
	assert.Contains(t, line, "…")
}

func TestDataPricesOffline(t *testing.T) {
	a, out := newTestApp(t, answer("x"), answer("x"))

	var sb strings.Builder
	sb.WriteString("Date,Open,High,Low,Close,Adj Close,Volume\n")
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&sb, "%s,10,11,9,10.5,10.5,1000\n", day.AddDate(0, 0, i).Format(time.DateOnly))
	}
	dir := filepath.Join(a.cfg.DataDir, "market_data", "price_data")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ACME-YFin-data-2015-01-01-2025-03-25.csv"), []byte(sb.String()), 0o644))

	require.NoError(t, execute(t, a, "data", "prices", "acme", "--online=false", "--date", "2024-05-08", "--lookback", "3"))
	assert.Contains(t, out.String(), "# Stock data for ACME from 2024-05-05 to 2024-05-08")
	assert.Contains(t, out.String(), "2024-05-08,10.00,11.00,9.00,10.50,10.50,1000")

	out.Reset()
	require.NoError(t, execute(t, a, "data", "prices", "nope", "--online=false", "--date", "2024-05-08"))
	assert.Contains(t, out.String(), "no data")
}
