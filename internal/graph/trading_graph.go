package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/compose"
	"go.uber.org/zap"

	"github.com/dyike/cortexdesk/config"
	"github.com/dyike/cortexdesk/internal/agents"
	"github.com/dyike/cortexdesk/internal/llm"
	"github.com/dyike/cortexdesk/internal/memory"
	"github.com/dyike/cortexdesk/internal/processing"
	"github.com/dyike/cortexdesk/internal/tools"
	"github.com/dyike/cortexdesk/models"
)

// TradingAgentsGraph runs the committee for one ticker and date at a time and
// reflects on completed runs.
type TradingAgentsGraph struct {
	config    *config.Config
	deps      *agents.Deps
	toolkit   *tools.Toolkit
	signals   *processing.SignalProcessor
	reflector *Reflector
	logger    *zap.Logger
	handlers  []callbacks.Handler
}

type Option func(*TradingAgentsGraph)

// WithCallbacks attaches eino callback handlers to every run.
func WithCallbacks(handlers ...callbacks.Handler) Option {
	return func(g *TradingAgentsGraph) {
		g.handlers = append(g.handlers, handlers...)
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(g *TradingAgentsGraph) {
		if l != nil {
			g.logger = l
		}
	}
}

func NewTradingAgentsGraph(cfg *config.Config, ms *llm.Models, memories *memory.Set, data tools.DataSource, opts ...Option) (*TradingAgentsGraph, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if ms == nil || ms.Quick == nil || ms.Deep == nil {
		return nil, fmt.Errorf("quick and deep chat models are required")
	}
	if data == nil {
		return nil, fmt.Errorf("data source is required")
	}

	g := &TradingAgentsGraph{
		config: cfg.Clone(),
		deps: &agents.Deps{
			QuickModel:    ms.Quick,
			DeepModel:     ms.Deep,
			Memories:      memories,
			MaxToolRounds: cfg.MaxToolRounds,
		},
		toolkit: tools.NewToolkit(data, cfg.OnlineTools),
		logger:  zap.L(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.signals = processing.NewSignalProcessor(
		processing.WithModel(ms.Quick),
		processing.WithMaxAttempts(cfg.SignalMaxAttempts),
		processing.WithLogger(g.logger),
	)
	g.reflector = NewReflector(ms.Quick, memories, g.logger)
	return g, nil
}

func (g *TradingAgentsGraph) Config() *config.Config { return g.config.Clone() }

// Propagate runs the full committee and extracts the trading signal from the
// risk manager's decision. The state is returned even when the run fails so
// callers can inspect how far it got.
func (g *TradingAgentsGraph) Propagate(ctx context.Context, ticker, date string) (*models.TradingState, models.Signal, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, "", fmt.Errorf("ticker is required")
	}
	tradeDate, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, "", fmt.Errorf("invalid trade date %q: %w", date, err)
	}

	state := models.NewTradingState(ticker, tradeDate)
	runner, err := NewTradingOrchestrator(ctx, state, orchestratorParams{
		deps:     g.deps,
		toolkit:  g.toolkit,
		logic:    NewConditionalLogic(g.config.MaxDebateRounds, g.config.MaxRiskDiscussRounds),
		analysts: g.config.SelectedAnalysts,
		maxSteps: g.config.MaxRecurLimit,
	})
	if err != nil {
		return nil, "", err
	}

	g.logger.Info("committee started",
		zap.String("ticker", ticker),
		zap.String("date", state.TradeDate),
		zap.Strings("analysts", g.config.SelectedAnalysts))

	var invokeOpts []compose.Option
	if len(g.handlers) > 0 {
		invokeOpts = append(invokeOpts, compose.WithCallbacks(g.handlers...))
	}
	if _, err := runner.Invoke(ctx, ticker, invokeOpts...); err != nil {
		return state, "", fmt.Errorf("committee run for %s on %s: %w", ticker, state.TradeDate, err)
	}

	decision, err := g.signals.ProcessTradingDecision(ctx, state)
	if err != nil {
		return state, "", err
	}
	g.logger.Info("committee finished",
		zap.String("ticker", decision.Symbol),
		zap.String("date", decision.Date),
		zap.String("signal", string(decision.Action)))
	return state, decision.Action, nil
}

// ProcessSignal reduces a decision text to BUY, SELL or HOLD.
func (g *TradingAgentsGraph) ProcessSignal(ctx context.Context, text string) (models.Signal, error) {
	return g.signals.ProcessSignal(ctx, text)
}

// ReflectAndRemember stores one lesson per role given the realised return of
// the position opened on state's decision.
func (g *TradingAgentsGraph) ReflectAndRemember(ctx context.Context, state *models.TradingState, returns float64) error {
	return g.reflector.Reflect(ctx, state, returns)
}
