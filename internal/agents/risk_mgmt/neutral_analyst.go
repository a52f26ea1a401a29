package risk_mgmt

import (
	"github.com/cloudwego/eino/compose"

	"github.com/dyike/cortexdesk/consts"
	"github.com/dyike/cortexdesk/internal/agents"
	"github.com/dyike/cortexdesk/internal/utils"
	"github.com/dyike/cortexdesk/models"
)

func NewNeutralAnalystNode(deps *agents.Deps) (*compose.Graph[string, string], error) {
	return newDebatorNode(stance{
		key:     consts.NeutralAnalyst,
		prefix:  consts.Prefix_Neutral,
		speaker: models.SpeakerNeutral,
		prompt:  utils.PromptNeutralAnalyst,
		own: func(r *models.RiskDebateState) (*string, *string) {
			return &r.NeutralHistory, &r.CurrentNeutralResponse
		},
	}, deps)
}
