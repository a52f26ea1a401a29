package managers

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/cortexdesk/consts"
	"github.com/dyike/cortexdesk/internal/agents"
	"github.com/dyike/cortexdesk/internal/utils"
	"github.com/dyike/cortexdesk/models"
)

// NewRiskManagerNode judges the risk debate and issues the final decision. It
// refines the trader's plan using the four analyst reports.
func NewRiskManagerNode(deps *agents.Deps) (*compose.Graph[string, string], error) {
	tplText, err := utils.LoadPrompt(utils.PromptRiskManager)
	if err != nil {
		return nil, err
	}
	tpl := prompt.FromMessages(schema.FString, schema.UserMessage(tplText))

	load := func(ctx context.Context, state *models.TradingState) ([]*schema.Message, error) {
		if state.RiskDebateState == nil {
			return nil, fmt.Errorf("%w: risk debate state missing", models.ErrInvariantViolation)
		}
		if err := state.RequireTraderPlan(); err != nil {
			return nil, err
		}
		lessons, err := deps.Lessons(ctx, consts.Memory_RiskManager, state)
		if err != nil {
			return nil, err
		}
		vars := agents.ReportVars(state)
		vars["trader_plan"] = state.TraderInvestmentPlan
		vars["past_memories"] = lessons
		vars["history"] = state.RiskDebateState.History
		return tpl.Format(ctx, vars)
	}

	store := func(_ context.Context, state *models.TradingState, reply *schema.Message) error {
		risk := state.RiskDebateState
		risk.JudgeDecision = reply.Content
		risk.LatestSpeaker = models.SpeakerJudge
		state.FinalTradeDecision = reply.Content
		state.AppendMessage(reply)
		state.Sender = consts.Agent_PortfolioManager
		return nil
	}

	return agents.NewRoleNode(consts.RiskJudge, deps.DeepModel, load, store)
}
