package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/cortexdesk/consts"
	"github.com/dyike/cortexdesk/internal/memory"
	"github.com/dyike/cortexdesk/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func finishedState() *models.TradingState {
	state := models.NewTradingState("ACME", time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC))
	state.AppendMessage(
		schema.AssistantMessage("", []schema.ToolCall{{
			ID:       "call_1",
			Function: schema.FunctionCall{Name: "get_YFin_data", Arguments: `{"symbol":"ACME"}`},
		}}),
		schema.ToolMessage("prices", "call_1"),
		schema.AssistantMessage("market report", nil),
	)
	state.MarketReport = "market report"
	state.InvestmentDebateState.History = "Bull Analyst: up"
	state.InvestmentDebateState.Count = 1
	state.InvestmentPlan = "buy"
	state.TraderInvestmentPlan = "FINAL TRANSACTION PROPOSAL: **BUY**"
	state.FinalTradeDecision = "FINAL TRANSACTION PROPOSAL: **BUY**"
	return state
}

func TestSaveRunAndLoadState(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	id, err := s.CreateSession(ctx, "ACME", "2024-05-10")
	require.NoError(t, err)

	sess, err := s.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, sess.Status)

	state := finishedState()
	require.NoError(t, s.SaveRun(ctx, id, state, models.SignalBuy, nil))

	sess, err = s.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusDone, sess.Status)
	assert.Equal(t, models.SignalBuy, sess.Signal)
	assert.Equal(t, "ACME", sess.Symbol)

	loaded, err := s.LoadState(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, state.FinalTradeDecision, loaded.FinalTradeDecision)
	assert.Equal(t, "Bull Analyst: up", loaded.InvestmentDebateState.History)
	assert.Equal(t, 1, loaded.InvestmentDebateState.Count)
	assert.Len(t, loaded.Messages, 4)
	require.NoError(t, loaded.RequireComplete())

	msgs, err := s.ListMessages(ctx, id)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, `[tool_call:get_YFin_data] {"symbol":"ACME"}`, msgs[1].Content)
	assert.Equal(t, "tool", msgs[2].Role)
	assert.Equal(t, 4, msgs[3].Seq)
}

func TestSaveRunFailure(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	id, err := s.CreateSession(ctx, "ACME", "2024-05-10")
	require.NoError(t, err)

	require.NoError(t, s.SaveRun(ctx, id, nil, "", errors.New("model down")))
	sess, err := s.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusError, sess.Status)
	assert.Equal(t, "model down", sess.Error)

	_, err = s.LoadState(ctx, id)
	assert.Error(t, err)
}

func TestUnknownSession(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	_, err := s.GetSession(ctx, "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = s.LoadState(ctx, "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, s.SaveRun(ctx, "nope", nil, "", nil), ErrSessionNotFound)
}

func TestListSessions(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	for _, sym := range []string{"ACME", "GLOBEX", "ACME"} {
		_, err := s.CreateSession(ctx, sym, "2024-05-10")
		require.NoError(t, err)
	}

	all, err := s.ListSessions(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "ACME", all[0].Symbol)
	assert.Equal(t, "GLOBEX", all[1].Symbol)

	acme, err := s.ListSessions(ctx, "ACME", 10)
	require.NoError(t, err)
	assert.Len(t, acme, 2)

	one, err := s.ListSessions(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
}

func TestMemoryPersistence(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	mem, err := memory.New(ctx, consts.Memory_Trader, memory.WithPersister(s))
	require.NoError(t, err)
	require.NoError(t, mem.Add(ctx, "high inflation, rate hikes", "trim duration"))
	require.NoError(t, mem.Add(ctx, "strong earnings beat", "add on pullbacks"))

	reopened, err := memory.New(ctx, consts.Memory_Trader, memory.WithPersister(s))
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Len())

	matches, err := reopened.Query(ctx, "strong earnings beat", 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "add on pullbacks", matches[0].Recommendation)

	other, err := s.LoadMemories(ctx, consts.Memory_Bull)
	require.NoError(t, err)
	assert.Empty(t, other)

	counts, err := s.CountMemories(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{consts.Memory_Trader: 2}, counts)
}

func TestReembeddedMemoriesAreSaved(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	mem, err := memory.New(ctx, consts.Memory_Bull, memory.WithPersister(s))
	require.NoError(t, err)
	require.NoError(t, mem.Add(ctx, "rate cuts priced in", "fade the rally"))

	_, err = memory.New(ctx, consts.Memory_Bull, memory.WithPersister(s), memory.WithEmbedder(memory.HashEmbedder{}, "hash:v2"))
	require.NoError(t, err)

	recs, err := s.LoadMemories(ctx, consts.Memory_Bull)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "hash:v2", recs[0].Embedder)
	assert.NotEmpty(t, recs[0].Embedding)
	assert.NotZero(t, recs[0].ID)
}

func TestClaimReflection(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	id, err := s.CreateSession(ctx, "ACME", "2024-05-10")
	require.NoError(t, err)

	sess, err := s.GetSession(ctx, id)
	require.NoError(t, err)
	assert.False(t, sess.Reflected)

	require.NoError(t, s.ClaimReflection(ctx, id, -0.042))
	assert.ErrorIs(t, s.ClaimReflection(ctx, id, 0.1), ErrAlreadyReflected)

	sess, err = s.GetSession(ctx, id)
	require.NoError(t, err)
	assert.True(t, sess.Reflected)
	assert.Equal(t, -0.042, sess.Returns)

	listed, err := s.ListSessions(ctx, "ACME", 5)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.True(t, listed[0].Reflected)

	require.NoError(t, s.ReleaseReflection(ctx, id))
	require.NoError(t, s.ClaimReflection(ctx, id, 0.1), "released claims can be taken again")

	assert.ErrorIs(t, s.ClaimReflection(ctx, "nope", 0), ErrSessionNotFound)
}

func TestRecorder(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	id, err := s.CreateSession(ctx, "ACME", "2024-05-10")
	require.NoError(t, err)

	r := NewRecorder(s, id, nil)
	r.Events() <- models.AgentEvent{Kind: models.EventNodeStart, Node: consts.Trader, Agent: consts.Agent_Trader, Timestamp: time.Now()}
	r.Events() <- models.AgentEvent{Kind: models.EventNodeError, Node: consts.Trader, Err: "boom", Timestamp: time.Now()}
	r.Close()
	r.Close()
	assert.Equal(t, 2, r.Recorded())

	events, err := s.ListEvents(ctx, id)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.EventNodeStart, events[0].Kind)
	assert.Equal(t, consts.Agent_Trader, events[0].Agent)
	assert.Equal(t, "boom", events[1].Err)
}

func TestWriteReports(t *testing.T) {
	dir := t.TempDir()
	state := finishedState()

	out, err := WriteReports(dir, state, models.SignalBuy)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ACME", "2024-05-10", "reports"), out)

	data, err := os.ReadFile(filepath.Join(out, "market_report.md"))
	require.NoError(t, err)
	assert.Equal(t, "market report", string(data))

	_, err = os.Stat(filepath.Join(out, "news_report.md"))
	assert.True(t, os.IsNotExist(err), "empty sections are skipped")

	full, err := os.ReadFile(filepath.Join(out, "complete_report.md"))
	require.NoError(t, err)
	assert.Contains(t, string(full), "**Signal:** BUY")
	assert.Contains(t, string(full), "## Portfolio Management Decision")
}
