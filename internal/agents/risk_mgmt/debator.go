package risk_mgmt

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

type stance struct {
	key     string
	prefix  string
	speaker models.Speaker
	prompt  string
	// own returns the stance's transcript and current response fields.
	own func(*models.RiskDebateState) (history *string, current *string)
}

// newDebatorNode builds one risk debator. A turn sees the other two stances'
// latest responses and only ever updates its own current response.
func newDebatorNode(s stance, deps *agents.Deps) (*compose.Graph[string, string], error) {
	tplText, err := utils.LoadPrompt(s.prompt)
	if err != nil {
		return nil, err
	}
	tpl := prompt.FromMessages(schema.FString, schema.UserMessage(tplText))

	load := func(ctx context.Context, state *models.TradingState) ([]*schema.Message, error) {
		risk := state.RiskDebateState
		if risk == nil {
			return nil, fmt.Errorf("%w: risk debate state missing", models.ErrInvariantViolation)
		}
		if err := state.RequireTraderPlan(); err != nil {
			return nil, err
		}
		vars := agents.ReportVars(state)
		vars["trader_decision"] = state.TraderInvestmentPlan
		vars["history"] = risk.History
		vars["current_risky_response"] = risk.CurrentRiskyResponse
		vars["current_safe_response"] = risk.CurrentSafeResponse
		vars["current_neutral_response"] = risk.CurrentNeutralResponse
		return tpl.Format(ctx, vars)
	}

	store := func(_ context.Context, state *models.TradingState, reply *schema.Message) error {
		risk := state.RiskDebateState
		argument := agents.Label(s.prefix, reply.Content)
		risk.History = agents.AppendTurn(risk.History, argument)
		history, current := s.own(risk)
		*history = agents.AppendTurn(*history, argument)
		*current = argument
		risk.LatestSpeaker = s.speaker
		risk.Count++
		return nil
	}

	return agents.NewRoleNode(s.key, deps.QuickModel, load, store)
}
