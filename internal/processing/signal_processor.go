package processing

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/dyike/cortexdesk/internal/utils"
	"github.com/dyike/cortexdesk/models"
)

// Chinese action tokens accepted after the Chinese proposal tag.
var chineseActions = map[string]models.Signal{
	"買入": models.SignalBuy,
	"买入": models.SignalBuy,
	"賣出": models.SignalSell,
	"卖出": models.SignalSell,
	"持有": models.SignalHold,
}

// SignalProcessor reduces the risk manager's decision text to BUY, SELL or HOLD.
type SignalProcessor struct {
	proposalPatterns []*regexp.Regexp
	model            model.BaseChatModel
	maxAttempts      int
	logger           *zap.Logger
}

type Option func(*SignalProcessor)

// WithModel enables LLM extraction when the text carries no proposal tag.
func WithModel(cm model.BaseChatModel) Option {
	return func(sp *SignalProcessor) { sp.model = cm }
}

func WithMaxAttempts(n int) Option {
	return func(sp *SignalProcessor) {
		if n > 0 {
			sp.maxAttempts = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(sp *SignalProcessor) {
		if l != nil {
			sp.logger = l
		}
	}
}

func NewSignalProcessor(opts ...Option) *SignalProcessor {
	sp := &SignalProcessor{
		proposalPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)FINAL\s+TRANSACTION\s+PROPOSAL\s*[:：]\s*\**\s*(BUY|SELL|HOLD)\b`),
			regexp.MustCompile(`(?i)(?:最終交易提案|最终交易提案)\s*[:：]?\s*\**\s*(BUY|SELL|HOLD|買入|买入|賣出|卖出|持有)`),
		},
		maxAttempts: 2,
		logger:      zap.L(),
	}
	for _, opt := range opts {
		opt(sp)
	}
	return sp
}

// ProcessSignal extracts the action from text. A proposal tag wins, the last
// one when there are several, then a bare action word; otherwise the model is
// asked. Nothing
// recognisable yields ErrUnparseableSignal rather than a default.
func (sp *SignalProcessor) ProcessSignal(ctx context.Context, text string) (models.Signal, error) {
	if sig, ok := sp.extractProposal(text); ok {
		return sig, nil
	}
	// a bare action, such as an earlier result, maps to itself
	if sig, err := models.ParseSignal(Normalize(text)); err == nil {
		return sig, nil
	}
	if sp.model == nil || strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: no proposal tag", models.ErrUnparseableSignal)
	}

	instruction, err := utils.LoadPrompt(utils.PromptSignalExtraction)
	if err != nil {
		return "", err
	}
	msgs := []*schema.Message{
		schema.SystemMessage(instruction),
		schema.UserMessage(text),
	}
	var last string
	for attempt := 1; attempt <= sp.maxAttempts; attempt++ {
		reply, err := sp.model.Generate(ctx, msgs)
		if err != nil {
			return "", fmt.Errorf("signal extraction: %w", err)
		}
		last = reply.Content
		if sig, err := models.ParseSignal(Normalize(last)); err == nil {
			return sig, nil
		}
		sp.logger.Warn("signal extraction returned no action",
			zap.Int("attempt", attempt),
			zap.String("output", last))
	}
	return "", fmt.Errorf("%w: model answered %q after %d attempts", models.ErrUnparseableSignal, last, sp.maxAttempts)
}

// ProcessTradingDecision extracts the signal from the final state.
func (sp *SignalProcessor) ProcessTradingDecision(ctx context.Context, state *models.TradingState) (*models.TradingDecision, error) {
	if err := state.RequireComplete(); err != nil {
		return nil, err
	}
	sig, err := sp.ProcessSignal(ctx, state.FinalTradeDecision)
	if err != nil {
		return nil, err
	}
	return &models.TradingDecision{
		Symbol:    state.CompanyOfInterest,
		Date:      state.TradeDate,
		Action:    sig,
		Reasoning: state.FinalTradeDecision,
	}, nil
}

// extractProposal returns the action of the last proposal tag in text.
func (sp *SignalProcessor) extractProposal(text string) (models.Signal, bool) {
	lastPos := -1
	var token string
	for _, pattern := range sp.proposalPatterns {
		for _, loc := range pattern.FindAllStringSubmatchIndex(text, -1) {
			if loc[0] > lastPos {
				lastPos = loc[0]
				token = text[loc[2]:loc[3]]
			}
		}
	}
	if lastPos < 0 {
		return "", false
	}
	if sig, ok := chineseActions[token]; ok {
		return sig, true
	}
	sig, err := models.ParseSignal(token)
	return sig, err == nil
}

// Normalize trims model output down to a bare action word.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("*", "", ".", "").Replace(s)
	return strings.ToUpper(strings.TrimSpace(s))
}
