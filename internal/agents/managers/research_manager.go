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

// NewResearchManagerNode judges the bull/bear debate and writes the investment
// plan. Transcripts and the turn count are left as they are.
func NewResearchManagerNode(deps *agents.Deps) (*compose.Graph[string, string], error) {
	tplText, err := utils.LoadPrompt(utils.PromptResearchManager)
	if err != nil {
		return nil, err
	}
	tpl := prompt.FromMessages(schema.FString, schema.UserMessage(tplText))

	load := func(ctx context.Context, state *models.TradingState) ([]*schema.Message, error) {
		if state.InvestmentDebateState == nil {
			return nil, fmt.Errorf("%w: investment debate state missing", models.ErrInvariantViolation)
		}
		lessons, err := deps.Lessons(ctx, consts.Memory_InvestJudge, state)
		if err != nil {
			return nil, err
		}
		return tpl.Format(ctx, map[string]any{
			"past_memories": lessons,
			"history":       state.InvestmentDebateState.History,
		})
	}

	store := func(_ context.Context, state *models.TradingState, reply *schema.Message) error {
		state.InvestmentDebateState.JudgeDecision = reply.Content
		state.InvestmentPlan = reply.Content
		state.AppendMessage(reply)
		state.Sender = consts.Agent_ResearchManager
		return nil
	}

	return agents.NewRoleNode(consts.ResearchManager, deps.DeepModel, load, store)
}
