package graph

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dyike/cortexdesk/consts"
	"github.com/dyike/cortexdesk/internal/memory"
	"github.com/dyike/cortexdesk/internal/utils"
	"github.com/dyike/cortexdesk/models"
)

// reflectedRole pairs a memory store with the text the role produced.
type reflectedRole struct {
	store string
	text  func(*models.TradingState) string
}

var reflectedRoles = []reflectedRole{
	{consts.Memory_Bull, func(s *models.TradingState) string { return s.InvestmentDebateState.BullHistory }},
	{consts.Memory_Bear, func(s *models.TradingState) string { return s.InvestmentDebateState.BearHistory }},
	{consts.Memory_Trader, func(s *models.TradingState) string { return s.TraderInvestmentPlan }},
	{consts.Memory_InvestJudge, func(s *models.TradingState) string { return s.InvestmentDebateState.JudgeDecision }},
	{consts.Memory_RiskManager, func(s *models.TradingState) string { return s.RiskDebateState.JudgeDecision }},
}

// Reflector critiques each role's contribution once the realised return is
// known and stores the lesson in that role's memory.
type Reflector struct {
	model    model.BaseChatModel
	memories *memory.Set
	logger   *zap.Logger
}

func NewReflector(cm model.BaseChatModel, memories *memory.Set, logger *zap.Logger) *Reflector {
	if logger == nil {
		logger = zap.L()
	}
	return &Reflector{model: cm, memories: memories, logger: logger}
}

// Reflect asks for the five role lessons concurrently and stores them only
// once every lesson is in, so a failed reflection writes no memory at all.
func (r *Reflector) Reflect(ctx context.Context, state *models.TradingState, returns float64) error {
	if state == nil {
		return models.ErrIncompleteState
	}
	if err := state.RequireComplete(); err != nil {
		return err
	}
	if r.model == nil {
		return fmt.Errorf("reflection: chat model is nil")
	}
	system, err := utils.LoadPrompt(utils.PromptReflection)
	if err != nil {
		return err
	}
	situation := state.Situation()

	stores := make([]memory.Store, len(reflectedRoles))
	for i, role := range reflectedRoles {
		stores[i] = r.memories.Get(role.store)
		if stores[i] == nil {
			return fmt.Errorf("reflection: memory %s not configured", role.store)
		}
	}

	lessons := make([]string, len(reflectedRoles))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, role := range reflectedRoles {
		text := role.text(state)
		eg.Go(func() error {
			lesson, err := r.reflectOn(egCtx, system, situation, text, returns)
			if err != nil {
				return fmt.Errorf("reflect %s: %w", role.store, err)
			}
			lessons[i] = lesson
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	for i, store := range stores {
		if err := store.Add(ctx, situation, lessons[i]); err != nil {
			return fmt.Errorf("remember %s: %w", store.Name(), err)
		}
		r.logger.Debug("stored reflection",
			zap.String("memory", store.Name()),
			zap.Int("lesson_len", len(lessons[i])))
	}
	return nil
}

func (r *Reflector) reflectOn(ctx context.Context, system, situation, text string, returns float64) (string, error) {
	msgs := []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(ReflectionInput(returns, text, situation)),
	}
	reply, err := r.model.Generate(ctx, msgs)
	if err != nil {
		return "", err
	}
	return reply.Content, nil
}

// ReflectionInput is the user message sent for one role.
func ReflectionInput(returns float64, decision, situation string) string {
	return "Returns: " + strconv.FormatFloat(returns, 'f', -1, 64) +
		"\n\nAnalysis/Decision: " + decision +
		"\n\nObjective Market Reports for Reference: " + situation
}
