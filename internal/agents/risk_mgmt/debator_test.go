package risk_mgmt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/cortexdesk/consts"
	"github.com/dyike/cortexdesk/internal/agents"
	"github.com/dyike/cortexdesk/internal/agents/agenttest"
	"github.com/dyike/cortexdesk/models"
)

func TestRiskRoundUpdatesOnlyOwnResponse(t *testing.T) {
	ctx := context.Background()
	cm := agenttest.NewScriptedModel(
		agenttest.Reply("Go all in."),
		agenttest.Reply("Hedge first."),
		agenttest.Reply("Size it moderately."),
	)
	deps := &agents.Deps{QuickModel: cm}
	risky, err := NewRiskyAnalystNode(deps)
	require.NoError(t, err)
	safe, err := NewSafeAnalystNode(deps)
	require.NoError(t, err)
	neutral, err := NewNeutralAnalystNode(deps)
	require.NoError(t, err)

	state := agenttest.WithReports(agenttest.NewState("ACME"), "m", "s", "n", "f")
	state.TraderInvestmentPlan = "FINAL TRANSACTION PROPOSAL: **BUY**"
	risk := state.RiskDebateState

	out, err := agenttest.RunNode(ctx, state, risky)
	require.NoError(t, err)
	assert.Equal(t, consts.RiskyAnalyst, out)
	assert.Equal(t, models.SpeakerRisky, risk.LatestSpeaker)
	assert.Equal(t, "Risky Analyst: Go all in.", risk.CurrentRiskyResponse)
	assert.Empty(t, risk.CurrentSafeResponse)
	assert.Empty(t, risk.CurrentNeutralResponse)

	_, err = agenttest.RunNode(ctx, state, safe)
	require.NoError(t, err)
	assert.Equal(t, models.SpeakerSafe, risk.LatestSpeaker)
	assert.Equal(t, "Risky Analyst: Go all in.", risk.CurrentRiskyResponse)
	assert.Equal(t, "Safe Analyst: Hedge first.", risk.CurrentSafeResponse)
	assert.Contains(t, agenttest.Text(cm.LastInput()), "Risky Analyst: Go all in.")

	_, err = agenttest.RunNode(ctx, state, neutral)
	require.NoError(t, err)
	assert.Equal(t, models.SpeakerNeutral, risk.LatestSpeaker)
	assert.Equal(t, 3, risk.Count)
	assert.Equal(t, "\nNeutral Analyst: Size it moderately.", risk.NeutralHistory)
	assert.Equal(t, "\nRisky Analyst: Go all in.\nSafe Analyst: Hedge first.\nNeutral Analyst: Size it moderately.", risk.History)
	prompt := agenttest.Text(cm.LastInput())
	assert.Contains(t, prompt, "Hedge first.")
	assert.Contains(t, prompt, "FINAL TRANSACTION PROPOSAL: **BUY**")
}

func TestDebatorRequiresTraderPlan(t *testing.T) {
	cm := agenttest.NewScriptedModel(agenttest.Reply("unused"))
	node, err := NewSafeAnalystNode(&agents.Deps{QuickModel: cm})
	require.NoError(t, err)

	_, err = agenttest.RunNode(context.Background(), agenttest.NewState("ACME"), node)
	require.ErrorIs(t, err, models.ErrInvariantViolation)
	assert.Empty(t, cm.Inputs())
}
