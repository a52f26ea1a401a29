package researchers

import (
	"github.com/cloudwego/eino/compose"

	"github.com/dyike/cortexdesk/consts"
	"github.com/dyike/cortexdesk/internal/agents"
	"github.com/dyike/cortexdesk/internal/utils"
	"github.com/dyike/cortexdesk/models"
)

func NewBullResearcherNode(deps *agents.Deps) (*compose.Graph[string, string], error) {
	return newResearcherNode(side{
		key:    consts.BullResearcher,
		prefix: consts.Prefix_Bull,
		memory: consts.Memory_Bull,
		prompt: utils.PromptBullResearcher,
		ownTrail: func(d *models.InvestDebateState) *string {
			return &d.BullHistory
		},
	}, deps)
}
