package trader

import (
	"context"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/cortexdesk/consts"
	"github.com/dyike/cortexdesk/internal/agents"
	"github.com/dyike/cortexdesk/internal/utils"
	"github.com/dyike/cortexdesk/models"
)

// NewTraderNode turns the investment plan into a transaction proposal.
func NewTraderNode(deps *agents.Deps) (*compose.Graph[string, string], error) {
	system, err := utils.LoadPrompt(utils.PromptTraderSystem)
	if err != nil {
		return nil, err
	}
	user, err := utils.LoadPrompt(utils.PromptTraderUser)
	if err != nil {
		return nil, err
	}
	tpl := prompt.FromMessages(schema.FString,
		schema.SystemMessage(system),
		schema.UserMessage(user),
	)

	load := func(ctx context.Context, state *models.TradingState) ([]*schema.Message, error) {
		if err := state.RequireInvestmentPlan(); err != nil {
			return nil, err
		}
		lessons, err := deps.Lessons(ctx, consts.Memory_Trader, state)
		if err != nil {
			return nil, err
		}
		return tpl.Format(ctx, map[string]any{
			"past_memories":   lessons,
			"company":         state.CompanyOfInterest,
			"investment_plan": state.InvestmentPlan,
		})
	}

	store := func(_ context.Context, state *models.TradingState, reply *schema.Message) error {
		state.TraderInvestmentPlan = reply.Content
		state.AppendMessage(reply)
		state.Sender = consts.Agent_Trader
		return nil
	}

	return agents.NewRoleNode(consts.Trader, deps.QuickModel, load, store)
}
