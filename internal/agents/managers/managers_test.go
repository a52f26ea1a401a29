package managers

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

func TestResearchManagerWritesPlan(t *testing.T) {
	quick := agenttest.NewScriptedModel()
	deep := agenttest.NewScriptedModel(agenttest.Reply("Recommendation: Buy."))
	node, err := NewResearchManagerNode(&agents.Deps{QuickModel: quick, DeepModel: deep})
	require.NoError(t, err)

	state := agenttest.NewState("ACME")
	debate := state.InvestmentDebateState
	debate.History = "Bull Analyst: up\nBear Analyst: down"
	debate.Count = 2

	out, err := agenttest.RunNode(context.Background(), state, node)
	require.NoError(t, err)
	assert.Equal(t, consts.ResearchManager, out)
	assert.Equal(t, "Recommendation: Buy.", state.InvestmentPlan)
	assert.Equal(t, "Recommendation: Buy.", debate.JudgeDecision)
	assert.Equal(t, 2, debate.Count)
	assert.Equal(t, "Bull Analyst: up\nBear Analyst: down", debate.History)
	assert.Empty(t, quick.Inputs(), "judges run on the deep model")
	assert.Contains(t, agenttest.Text(deep.LastInput()), "Bear Analyst: down")
}

func TestRiskManagerIssuesFinalDecision(t *testing.T) {
	deep := agenttest.NewScriptedModel(agenttest.Reply("Hold for now. FINAL TRANSACTION PROPOSAL: **HOLD**"))
	node, err := NewRiskManagerNode(&agents.Deps{QuickModel: agenttest.NewScriptedModel(), DeepModel: deep})
	require.NoError(t, err)

	state := agenttest.WithReports(agenttest.NewState("ACME"), "market view", "s", "n", "f")
	state.TraderInvestmentPlan = "trader says buy"
	state.RiskDebateState.History = "Risky Analyst: go"
	state.RiskDebateState.Count = 3

	out, err := agenttest.RunNode(context.Background(), state, node)
	require.NoError(t, err)
	assert.Equal(t, consts.RiskJudge, out)
	assert.Equal(t, "Hold for now. FINAL TRANSACTION PROPOSAL: **HOLD**", state.FinalTradeDecision)
	assert.Equal(t, state.FinalTradeDecision, state.RiskDebateState.JudgeDecision)
	assert.Equal(t, models.SpeakerJudge, state.RiskDebateState.LatestSpeaker)
	assert.Equal(t, 3, state.RiskDebateState.Count)
	assert.Equal(t, consts.Agent_PortfolioManager, state.Sender)

	prompt := agenttest.Text(deep.LastInput())
	assert.Contains(t, prompt, "trader says buy")
	assert.Contains(t, prompt, "market view")
	assert.Contains(t, prompt, "Risky Analyst: go")
}

func TestRiskManagerRequiresTraderPlan(t *testing.T) {
	deep := agenttest.NewScriptedModel(agenttest.Reply("unused"))
	node, err := NewRiskManagerNode(&agents.Deps{DeepModel: deep})
	require.NoError(t, err)

	_, err = agenttest.RunNode(context.Background(), agenttest.NewState("ACME"), node)
	assert.ErrorIs(t, err, models.ErrInvariantViolation)
}
