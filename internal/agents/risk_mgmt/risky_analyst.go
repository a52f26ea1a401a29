package risk_mgmt

import (
	"github.com/cloudwego/eino/compose"

	"github.com/dyike/cortexdesk/consts"
	"github.com/dyike/cortexdesk/internal/agents"
	"github.com/dyike/cortexdesk/internal/utils"
	"github.com/dyike/cortexdesk/models"
)

func NewRiskyAnalystNode(deps *agents.Deps) (*compose.Graph[string, string], error) {
	return newDebatorNode(stance{
		key:     consts.RiskyAnalyst,
		prefix:  consts.Prefix_Risky,
		speaker: models.SpeakerRisky,
		prompt:  utils.PromptRiskyAnalyst,
		own: func(r *models.RiskDebateState) (*string, *string) {
			return &r.RiskyHistory, &r.CurrentRiskyResponse
		},
	}, deps)
}
