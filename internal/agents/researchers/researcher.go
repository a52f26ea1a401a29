package researchers

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/cortexdesk/internal/agents"
	"github.com/dyike/cortexdesk/internal/utils"
	"github.com/dyike/cortexdesk/models"
)

type side struct {
	key      string
	prefix   string
	memory   string
	prompt   string
	ownTrail func(*models.InvestDebateState) *string
}

// newResearcherNode builds one side of the investment debate. A turn reads the
// opponent's last argument and appends "<prefix>: <argument>" to both the
// shared and the side's own transcript.
func newResearcherNode(s side, deps *agents.Deps) (*compose.Graph[string, string], error) {
	tplText, err := utils.LoadPrompt(s.prompt)
	if err != nil {
		return nil, err
	}
	tpl := prompt.FromMessages(schema.FString, schema.UserMessage(tplText))

	load := func(ctx context.Context, state *models.TradingState) ([]*schema.Message, error) {
		debate := state.InvestmentDebateState
		if debate == nil {
			return nil, fmt.Errorf("%w: investment debate state missing", models.ErrInvariantViolation)
		}
		lessons, err := deps.Lessons(ctx, s.memory, state)
		if err != nil {
			return nil, err
		}
		vars := agents.ReportVars(state)
		vars["history"] = debate.History
		vars["current_response"] = debate.CurrentResponse
		vars["past_memories"] = lessons
		return tpl.Format(ctx, vars)
	}

	store := func(_ context.Context, state *models.TradingState, reply *schema.Message) error {
		debate := state.InvestmentDebateState
		argument := agents.Label(s.prefix, reply.Content)
		debate.History = agents.AppendTurn(debate.History, argument)
		own := s.ownTrail(debate)
		*own = agents.AppendTurn(*own, argument)
		debate.CurrentResponse = argument
		debate.Count++
		return nil
	}

	return agents.NewRoleNode(s.key, deps.QuickModel, load, store)
}
