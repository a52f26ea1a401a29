package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/cloudwego/eino-ext/devops"
	"go.uber.org/zap"

	"github.com/dyike/cortexdesk/config"
	"github.com/dyike/cortexdesk/internal/dataflows"
	"github.com/dyike/cortexdesk/internal/graph"
	"github.com/dyike/cortexdesk/internal/llm"
	"github.com/dyike/cortexdesk/internal/memory"
	"github.com/dyike/cortexdesk/internal/storage"
	"github.com/dyike/cortexdesk/internal/tools"
	"github.com/dyike/cortexdesk/models"
)

// engine is everything a committee run needs beyond its config: models,
// persisted memories, data adapters and the session store.
type engine struct {
	logger   *zap.Logger
	store    *storage.Store
	models   *llm.Models
	memories *memory.Set
	data     tools.DataSource
}

var devopsOnce sync.Once

func openEngine(a *app) (*engine, error) {
	ctx := context.Background()
	cfg := a.cfg
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	if cfg.EinoDebugEnabled {
		devopsOnce.Do(func() {
			if err := devops.Init(ctx); err != nil {
				a.logger.Warn("eino devops init failed", zap.Error(err))
				return
			}
			a.logger.Info("eino visual debug enabled", zap.Int("port", cfg.EinoDebugPort))
		})
	}

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	ms, err := llm.NewModels(ctx, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}
	emb, err := llm.NewEmbedder(ctx, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}
	memOpts := []memory.Option{memory.WithPersister(store)}
	if emb != nil {
		memOpts = append(memOpts, memory.WithEmbedder(emb, cfg.LLMProvider+":"+cfg.EmbeddingModel))
	}
	memories, err := memory.NewSet(ctx, memOpts...)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load memories: %w", err)
	}

	return &engine{
		logger:   a.logger,
		store:    store,
		models:   ms,
		memories: memories,
		data:     dataflows.New(cfg, dataflows.WithResearchModel(ms.Quick)),
	}, nil
}

func (e *engine) Close() error {
	return e.store.Close()
}

func (e *engine) newGraph(cfg *config.Config, opts ...graph.Option) (*graph.TradingAgentsGraph, error) {
	opts = append(opts, graph.WithLogger(e.logger))
	return graph.NewTradingAgentsGraph(cfg, e.models, e.memories, e.data, opts...)
}

// runResult is the outcome of one analyze run. Err is the run failure, if
// any; the session is persisted either way.
type runResult struct {
	SessionID string
	Ticker    string
	Date      string
	State     *models.TradingState
	Signal    models.Signal
	ReportDir string
	Usage     models.TokenUsage
	Err       error
}

// analyze runs the committee once under a new session. Progress events go to
// the session's event log and, when progress is set, to the caller.
func (e *engine) analyze(ctx context.Context, cfg *config.Config, ticker, date string, progress func(models.AgentEvent)) (*runResult, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	sessionID, err := e.store.CreateSession(ctx, ticker, date)
	if err != nil {
		return nil, err
	}
	res := &runResult{SessionID: sessionID, Ticker: ticker, Date: date}
	log := e.logger.With(zap.String("session", sessionID), zap.String("ticker", ticker))

	rec := storage.NewRecorder(e.store, sessionID, log)
	events := make(chan models.AgentEvent, 64)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for ev := range events {
			if progress != nil {
				progress(ev)
			}
			rec.Events() <- ev
		}
	}()

	cb := graph.NewLoggerCallback(log, events)
	g, err := e.newGraph(cfg, graph.WithCallbacks(cb))
	if err == nil {
		res.State, res.Signal, res.Err = g.Propagate(ctx, ticker, date)
	} else {
		res.Err = err
	}
	close(events)
	<-drained
	rec.Close()
	res.Usage = cb.Usage()

	// the run may have been cancelled; the outcome is still worth keeping
	saveCtx := context.WithoutCancel(ctx)
	if err := e.store.SaveRun(saveCtx, sessionID, res.State, res.Signal, res.Err); err != nil {
		return res, fmt.Errorf("save session %s: %w", sessionID, err)
	}
	if res.Err == nil {
		dir, err := storage.WriteReports(cfg.ResultsDir, res.State, res.Signal)
		if err != nil {
			log.Warn("write reports", zap.Error(err))
		}
		res.ReportDir = dir
	}
	log.Info("run saved",
		zap.String("signal", string(res.Signal)),
		zap.Int("events", rec.Recorded()),
		zap.Int("tokens", res.Usage.TotalTokens))
	return res, nil
}

// reflect loads a finished session and stores one lesson per role.
func (e *engine) reflect(ctx context.Context, cfg *config.Config, sessionID string, returns float64) (*models.SessionRecord, error) {
	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != storage.StatusDone {
		return sess, fmt.Errorf("session %s did not finish (status %s)", sessionID, sess.Status)
	}
	if sess.Reflected {
		return sess, fmt.Errorf("%w: %s (returns %s)", storage.ErrAlreadyReflected, sessionID, strconv.FormatFloat(sess.Returns, 'f', -1, 64))
	}
	state, err := e.store.LoadState(ctx, sessionID)
	if err != nil {
		return sess, err
	}
	g, err := e.newGraph(cfg)
	if err != nil {
		return sess, err
	}

	if err := e.store.ClaimReflection(ctx, sessionID, returns); err != nil {
		return sess, err
	}
	if err := g.ReflectAndRemember(ctx, state, returns); err != nil {
		if rerr := e.store.ReleaseReflection(context.WithoutCancel(ctx), sessionID); rerr != nil {
			e.logger.Warn("release reflection claim", zap.String("session", sessionID), zap.Error(rerr))
		}
		if errors.Is(err, models.ErrIncompleteState) {
			return sess, fmt.Errorf("session %s has no final decision: %w", sessionID, err)
		}
		return sess, err
	}
	sess.Reflected, sess.Returns = true, returns
	return sess, nil
}
