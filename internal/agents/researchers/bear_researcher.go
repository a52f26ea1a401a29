package researchers

import (
	"github.com/cloudwego/eino/compose"

	"github.com/dyike/cortexdesk/consts"
	"github.com/dyike/cortexdesk/internal/agents"
	"github.com/dyike/cortexdesk/internal/utils"
	"github.com/dyike/cortexdesk/models"
)

func NewBearResearcherNode(deps *agents.Deps) (*compose.Graph[string, string], error) {
	return newResearcherNode(side{
		key:    consts.BearResearcher,
		prefix: consts.Prefix_Bear,
		memory: consts.Memory_Bear,
		prompt: utils.PromptBearResearcher,
		ownTrail: func(d *models.InvestDebateState) *string {
			return &d.BearHistory
		},
	}, deps)
}
