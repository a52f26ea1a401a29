package risk_mgmt

import (
	"github.com/cloudwego/eino/compose"

	"github.com/dyike/cortexdesk/consts"
	"github.com/dyike/cortexdesk/internal/agents"
	"github.com/dyike/cortexdesk/internal/utils"
	"github.com/dyike/cortexdesk/models"
)

func NewSafeAnalystNode(deps *agents.Deps) (*compose.Graph[string, string], error) {
	return newDebatorNode(stance{
		key:     consts.SafeAnalyst,
		prefix:  consts.Prefix_Safe,
		speaker: models.SpeakerSafe,
		prompt:  utils.PromptSafeAnalyst,
		own: func(r *models.RiskDebateState) (*string, *string) {
			return &r.SafeHistory, &r.CurrentSafeResponse
		},
	}, deps)
}
