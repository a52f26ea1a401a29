// Package agenttest drives committee nodes with scripted chat models.
package agenttest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/cortexdesk/models"
)

// Responder produces a reply for one model call.
type Responder func(input []*schema.Message) (*schema.Message, error)

// ScriptedModel is a chat model that replays queued replies in order, or asks
// a Responder once the queue is empty. Every input is recorded.
type ScriptedModel struct {
	mu        sync.Mutex
	replies   []*schema.Message
	responder Responder
	inputs    [][]*schema.Message
	tools     [][]*schema.ToolInfo
}

var _ model.ToolCallingChatModel = (*ScriptedModel)(nil)

func NewScriptedModel(replies ...*schema.Message) *ScriptedModel {
	return &ScriptedModel{replies: replies}
}

// NewFuncModel answers every call with fn. Safe for concurrent use.
func NewFuncModel(fn Responder) *ScriptedModel {
	return &ScriptedModel{responder: fn}
}

func (m *ScriptedModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	m.inputs = append(m.inputs, input)
	if len(m.replies) > 0 {
		reply := m.replies[0]
		m.replies = m.replies[1:]
		m.mu.Unlock()
		return reply, nil
	}
	responder := m.responder
	m.mu.Unlock()

	if responder == nil {
		return nil, fmt.Errorf("scripted model exhausted after %d calls", len(m.Inputs()))
	}
	return responder(input)
}

func (m *ScriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// WithTools records the bound tools and keeps sharing the reply queue.
func (m *ScriptedModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tools = append(m.tools, tools)
	return m, nil
}

// Inputs returns the prompts seen so far.
func (m *ScriptedModel) Inputs() [][]*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]*schema.Message(nil), m.inputs...)
}

// LastInput returns the most recent prompt, or nil.
func (m *ScriptedModel) LastInput() []*schema.Message {
	in := m.Inputs()
	if len(in) == 0 {
		return nil
	}
	return in[len(in)-1]
}

func (m *ScriptedModel) BoundTools() [][]*schema.ToolInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]*schema.ToolInfo(nil), m.tools...)
}

func (m *ScriptedModel) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.replies)
}

// Reply is a plain assistant message.
func Reply(content string) *schema.Message {
	return schema.AssistantMessage(content, nil)
}

// ToolCall is an assistant message requesting one tool.
func ToolCall(id, name, args string) *schema.Message {
	return schema.AssistantMessage("", []schema.ToolCall{{
		ID:       id,
		Type:     "function",
		Function: schema.FunctionCall{Name: name, Arguments: args},
	}})
}

// NewState returns a fresh state for ticker on 2024-05-10.
func NewState(ticker string) *models.TradingState {
	return models.NewTradingState(ticker, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC))
}

// WithReports fills the four analyst reports.
func WithReports(state *models.TradingState, market, sentiment, news, fundamentals string) *models.TradingState {
	state.MarketReport = market
	state.SentimentReport = sentiment
	state.NewsReport = news
	state.FundamentalsReport = fundamentals
	return state
}

// RunNode runs a single role subgraph against state and returns its output.
func RunNode(ctx context.Context, state *models.TradingState, node *compose.Graph[string, string]) (string, error) {
	g := compose.NewGraph[string, string](compose.WithGenLocalState(func(context.Context) *models.TradingState {
		return state
	}))
	if err := g.AddGraphNode("node", node, compose.WithNodeName("node")); err != nil {
		return "", err
	}
	_ = g.AddEdge(compose.START, "node")
	_ = g.AddEdge("node", compose.END)
	r, err := g.Compile(ctx, compose.WithGraphName("agenttest"))
	if err != nil {
		return "", err
	}
	return r.Invoke(ctx, state.CompanyOfInterest)
}

// Text joins the contents of a prompt for assertions.
func Text(msgs []*schema.Message) string {
	var out string
	for _, m := range msgs {
		out += m.Content + "\n"
	}
	return out
}
