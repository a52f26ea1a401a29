package graph

import (
	"strings"

	"github.com/dyike/cortexdesk/consts"
	"github.com/dyike/cortexdesk/models"
)

// ConditionalLogic decides who speaks next in the two debates. Each bull or
// bear turn and each risky, safe or neutral turn increments the debate count,
// so a round is 2 turns in the investment debate and 3 in the risk debate.
type ConditionalLogic struct {
	MaxDebateRounds      int
	MaxRiskDiscussRounds int
}

func NewConditionalLogic(debateRounds, riskRounds int) *ConditionalLogic {
	return &ConditionalLogic{
		MaxDebateRounds:      debateRounds,
		MaxRiskDiscussRounds: riskRounds,
	}
}

func (cl *ConditionalLogic) ShouldContinueDebate(state *models.TradingState) bool {
	return state.InvestmentDebateState.Count < 2*cl.MaxDebateRounds
}

func (cl *ConditionalLogic) ShouldContinueRiskDiscussion(state *models.TradingState) bool {
	return state.RiskDebateState.Count < 3*cl.MaxRiskDiscussRounds
}

// DebateNext picks the next investment debate node. The bull opens; after
// that the side that did not speak last answers.
func (cl *ConditionalLogic) DebateNext(state *models.TradingState) string {
	if !cl.ShouldContinueDebate(state) {
		return consts.ResearchManager
	}
	if strings.HasPrefix(state.InvestmentDebateState.CurrentResponse, consts.Prefix_Bull) {
		return consts.BearResearcher
	}
	return consts.BullResearcher
}

// RiskNext rotates risky, safe, neutral until the budget is spent.
func (cl *ConditionalLogic) RiskNext(state *models.TradingState) string {
	if !cl.ShouldContinueRiskDiscussion(state) {
		return consts.RiskJudge
	}
	switch state.RiskDebateState.LatestSpeaker {
	case models.SpeakerRisky:
		return consts.SafeAnalyst
	case models.SpeakerSafe:
		return consts.NeutralAnalyst
	default:
		return consts.RiskyAnalyst
	}
}
