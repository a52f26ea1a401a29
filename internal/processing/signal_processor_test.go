package processing

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/cortexdesk/internal/agents/agenttest"
	"github.com/dyike/cortexdesk/models"
)

func TestProposalTag(t *testing.T) {
	sp := NewSignalProcessor()
	cases := []struct {
		text string
		want models.Signal
	}{
		{"Plan...\nFINAL TRANSACTION PROPOSAL: **BUY**", models.SignalBuy},
		{"final transaction proposal: sell", models.SignalSell},
		{"FINAL TRANSACTION PROPOSAL: **HOLD**.", models.SignalHold},
		{"FINAL TRANSACTION PROPOSAL: **BUY** ... FINAL TRANSACTION PROPOSAL: **SELL**", models.SignalSell},
		{"最終交易提案：**買入**", models.SignalBuy},
		{"最终交易提案: 卖出", models.SignalSell},
		{"最终交易提案：持有", models.SignalHold},
		{"FINAL TRANSACTION PROPOSAL: **SELL** 之后 最终交易提案：买入", models.SignalBuy},
	}
	for _, tc := range cases {
		got, err := sp.ProcessSignal(context.Background(), tc.text)
		require.NoError(t, err, tc.text)
		assert.Equal(t, tc.want, got, tc.text)
	}
}

func TestProposalTagSkipsModel(t *testing.T) {
	cm := agenttest.NewScriptedModel(agenttest.Reply("SELL"))
	sp := NewSignalProcessor(WithModel(cm))
	got, err := sp.ProcessSignal(context.Background(), "FINAL TRANSACTION PROPOSAL: **BUY**")
	require.NoError(t, err)
	assert.Equal(t, models.SignalBuy, got)
	assert.Empty(t, cm.Inputs())
}

func TestModelFallbackNormalizes(t *testing.T) {
	cm := agenttest.NewScriptedModel(agenttest.Reply("  **Sell**. "))
	sp := NewSignalProcessor(WithModel(cm))
	got, err := sp.ProcessSignal(context.Background(), "We should reduce exposure to ACME.")
	require.NoError(t, err)
	assert.Equal(t, models.SignalSell, got)

	in := cm.LastInput()
	require.Len(t, in, 2)
	assert.Equal(t, schema.System, in[0].Role)
	assert.Equal(t, "We should reduce exposure to ACME.", in[1].Content)
}

func TestModelFallbackRetries(t *testing.T) {
	cm := agenttest.NewScriptedModel(agenttest.Reply("I think buying"), agenttest.Reply("HOLD"))
	sp := NewSignalProcessor(WithModel(cm), WithMaxAttempts(2))
	got, err := sp.ProcessSignal(context.Background(), "mixed picture")
	require.NoError(t, err)
	assert.Equal(t, models.SignalHold, got)
	assert.Len(t, cm.Inputs(), 2)
}

func TestFailsClosed(t *testing.T) {
	sp := NewSignalProcessor()
	_, err := sp.ProcessSignal(context.Background(), "no decision here")
	assert.ErrorIs(t, err, models.ErrUnparseableSignal)

	cm := agenttest.NewScriptedModel(agenttest.Reply("BUY OR SELL"), agenttest.Reply("maybe"))
	sp = NewSignalProcessor(WithModel(cm), WithMaxAttempts(2))
	_, err = sp.ProcessSignal(context.Background(), "no decision here")
	assert.ErrorIs(t, err, models.ErrUnparseableSignal)
	assert.Equal(t, 0, cm.Remaining())
}

func TestModelErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	cm := agenttest.NewFuncModel(func([]*schema.Message) (*schema.Message, error) { return nil, boom })
	sp := NewSignalProcessor(WithModel(cm))
	_, err := sp.ProcessSignal(context.Background(), "text")
	assert.ErrorIs(t, err, boom)
}

func TestProcessTradingDecision(t *testing.T) {
	sp := NewSignalProcessor()
	state := agenttest.NewState("ACME")
	_, err := sp.ProcessTradingDecision(context.Background(), state)
	assert.ErrorIs(t, err, models.ErrIncompleteState)

	state.FinalTradeDecision = "FINAL TRANSACTION PROPOSAL: **HOLD**"
	d, err := sp.ProcessTradingDecision(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, models.SignalHold, d.Action)
	assert.Equal(t, "ACME", d.Symbol)
	assert.Equal(t, "2024-05-10", d.Date)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "BUY", Normalize(" **buy**.\n"))
	assert.Equal(t, "HOLD", Normalize("Hold"))
}

func TestProcessSignalIsStable(t *testing.T) {
	ctx := context.Background()
	cm := agenttest.NewFuncModel(func([]*schema.Message) (*schema.Message, error) {
		return agenttest.Reply("hold"), nil
	})
	sp := NewSignalProcessor(WithModel(cm))

	for _, text := range []string{
		"Keep watching. FINAL TRANSACTION PROPOSAL: **SELL**",
		"Nothing decisive this week, wait for the print.",
	} {
		first, err := sp.ProcessSignal(ctx, text)
		require.NoError(t, err)
		second, err := sp.ProcessSignal(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, first, second, text)

		again, err := sp.ProcessSignal(ctx, string(first))
		require.NoError(t, err)
		assert.Equal(t, first, again, "a bare signal maps to itself")
	}
}
