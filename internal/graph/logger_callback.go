package graph

import (
	"context"
	"sync"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	ecmodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/dyike/cortexdesk/consts"
	"github.com/dyike/cortexdesk/models"
)

var nodeAgents = map[string]string{
	consts.MarketAnalyst:       consts.Agent_MarketAnalyst,
	consts.SocialMediaAnalyst:  consts.Agent_SocialAnalyst,
	consts.NewsAnalyst:         consts.Agent_NewsAnalyst,
	consts.FundamentalsAnalyst: consts.Agent_FundamentalsAnalyst,
	consts.MarketTools:         consts.Agent_MarketAnalyst,
	consts.SocialMediaTools:    consts.Agent_SocialAnalyst,
	consts.NewsTools:           consts.Agent_NewsAnalyst,
	consts.FundamentalsTools:   consts.Agent_FundamentalsAnalyst,
	consts.BullResearcher:      consts.Agent_BullResearcher,
	consts.BearResearcher:      consts.Agent_BearResearcher,
	consts.ResearchManager:     consts.Agent_ResearchManager,
	consts.Trader:              consts.Agent_Trader,
	consts.RiskyAnalyst:        consts.Agent_RiskyAnalyst,
	consts.SafeAnalyst:         consts.Agent_SafeAnalyst,
	consts.NeutralAnalyst:      consts.Agent_NeutralAnalyst,
	consts.RiskJudge:           consts.Agent_PortfolioManager,
}

// LoggerCallback logs committee progress, forwards it as AgentEvents and
// totals chat-model token usage.
type LoggerCallback struct {
	logger *zap.Logger
	out    chan<- models.AgentEvent

	mu    sync.Mutex
	usage models.TokenUsage
}

var _ callbacks.Handler = (*LoggerCallback)(nil)

// NewLoggerCallback returns a handler. out may be nil; when set, the caller
// must keep draining it for the duration of the run.
func NewLoggerCallback(logger *zap.Logger, out chan<- models.AgentEvent) *LoggerCallback {
	if logger == nil {
		logger = zap.L()
	}
	return &LoggerCallback{logger: logger, out: out}
}

// Usage returns the token totals seen so far.
func (cb *LoggerCallback) Usage() models.TokenUsage {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.usage
}

func (cb *LoggerCallback) push(ctx context.Context, ev models.AgentEvent) {
	if cb.out == nil {
		return
	}
	ev.Timestamp = time.Now()
	select {
	case cb.out <- ev:
	case <-ctx.Done():
	}
}

func isRoleNode(info *callbacks.RunInfo) (string, bool) {
	if info == nil || info.Component != compose.ComponentOfGraph {
		return "", false
	}
	agent, ok := nodeAgents[info.Name]
	return agent, ok
}

func (cb *LoggerCallback) OnStart(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
	if agent, ok := isRoleNode(info); ok {
		cb.logger.Info("node start", zap.String("node", info.Name))
		cb.push(ctx, models.AgentEvent{Kind: models.EventNodeStart, Node: info.Name, Agent: agent})
		return ctx
	}
	if info != nil && info.Component == components.ComponentOfTool {
		args := ""
		if in := tool.ConvCallbackInput(input); in != nil {
			args = in.ArgumentsInJSON
		}
		cb.logger.Debug("tool call", zap.String("tool", info.Name), zap.String("args", args))
		cb.push(ctx, models.AgentEvent{Kind: models.EventToolCall, Node: info.Name, Detail: args})
	}
	return ctx
}

func (cb *LoggerCallback) OnEnd(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
	if agent, ok := isRoleNode(info); ok {
		cb.logger.Info("node end", zap.String("node", info.Name))
		cb.push(ctx, models.AgentEvent{Kind: models.EventNodeEnd, Node: info.Name, Agent: agent})
		return ctx
	}
	if info != nil && info.Component == components.ComponentOfChatModel {
		if out := ecmodel.ConvCallbackOutput(output); out != nil {
			cb.addUsage(out)
		}
	}
	return ctx
}

func (cb *LoggerCallback) addUsage(out *ecmodel.CallbackOutput) {
	usage := out.TokenUsage
	if usage == nil && out.Message != nil && out.Message.ResponseMeta != nil && out.Message.ResponseMeta.Usage != nil {
		u := out.Message.ResponseMeta.Usage
		usage = &ecmodel.TokenUsage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.usage.Calls++
	if usage != nil {
		cb.usage.PromptTokens += usage.PromptTokens
		cb.usage.CompletionTokens += usage.CompletionTokens
		cb.usage.TotalTokens += usage.TotalTokens
	}
}

func (cb *LoggerCallback) OnError(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
	name := ""
	if info != nil {
		name = info.Name
	}
	cb.logger.Error("node failed", zap.String("node", name), zap.Error(err))
	if agent, ok := isRoleNode(info); ok {
		cb.push(ctx, models.AgentEvent{Kind: models.EventNodeError, Node: name, Agent: agent, Err: err.Error()})
	}
	return ctx
}

func (cb *LoggerCallback) OnStartWithStreamInput(ctx context.Context, _ *callbacks.RunInfo,
	input *schema.StreamReader[callbacks.CallbackInput]) context.Context {
	input.Close()
	return ctx
}

func (cb *LoggerCallback) OnEndWithStreamOutput(ctx context.Context, _ *callbacks.RunInfo,
	output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
	output.Close()
	return ctx
}
