package agents

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/cortexdesk/internal/memory"
	"github.com/dyike/cortexdesk/models"
)

// Subgraph node keys shared by every role.
const (
	NodeLoad   = "load"
	NodeAgent  = "agent"
	NodeRouter = "router"
)

// LoadFunc builds the prompt for one turn from the shared state.
type LoadFunc func(ctx context.Context, state *models.TradingState) ([]*schema.Message, error)

// StoreFunc folds the model reply back into the shared state.
type StoreFunc func(ctx context.Context, state *models.TradingState, reply *schema.Message) error

// NewRoleNode wires load → agent → router. The subgraph reads and writes the
// parent graph's *models.TradingState and outputs the role's node key.
func NewRoleNode(key string, cm model.BaseChatModel, load LoadFunc, store StoreFunc) (*compose.Graph[string, string], error) {
	if cm == nil {
		return nil, fmt.Errorf("%s: chat model is nil", key)
	}
	g := compose.NewGraph[string, string]()

	loadFn := func(ctx context.Context, _ string, _ ...any) (output []*schema.Message, err error) {
		err = compose.ProcessState[*models.TradingState](ctx, func(ctx context.Context, state *models.TradingState) error {
			output, err = load(ctx, state)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("%s load: %w", key, err)
		}
		return output, nil
	}
	routerFn := func(ctx context.Context, input *schema.Message, _ ...any) (string, error) {
		if input == nil {
			return "", fmt.Errorf("%s: empty model reply", key)
		}
		err := compose.ProcessState[*models.TradingState](ctx, func(ctx context.Context, state *models.TradingState) error {
			return store(ctx, state, input)
		})
		if err != nil {
			return "", fmt.Errorf("%s: %w", key, err)
		}
		return key, nil
	}

	if err := g.AddLambdaNode(NodeLoad, compose.InvokableLambdaWithOption(loadFn)); err != nil {
		return nil, err
	}
	if err := g.AddChatModelNode(NodeAgent, cm); err != nil {
		return nil, err
	}
	if err := g.AddLambdaNode(NodeRouter, compose.InvokableLambdaWithOption(routerFn)); err != nil {
		return nil, err
	}
	_ = g.AddEdge(compose.START, NodeLoad)
	_ = g.AddEdge(NodeLoad, NodeAgent)
	_ = g.AddEdge(NodeAgent, NodeRouter)
	_ = g.AddEdge(NodeRouter, compose.END)
	return g, nil
}

// Deps carries what the role constructors need.
type Deps struct {
	QuickModel    model.ToolCallingChatModel
	DeepModel     model.ToolCallingChatModel
	Memories      *memory.Set
	MaxToolRounds int
}

// Lessons returns past lessons for the current situation from the named store.
// A missing store or an empty memory yields "".
func (d *Deps) Lessons(ctx context.Context, store string, state *models.TradingState) (string, error) {
	return memory.Recall(ctx, d.Memories.Get(store), state.Situation())
}

// AppendTurn appends one labelled line to a transcript. Every turn starts
// with a newline, the first one included, and the argument is kept verbatim.
func AppendTurn(transcript, line string) string {
	return transcript + "\n" + line
}

// Label prefixes a debate argument with its speaker.
func Label(prefix, content string) string {
	return prefix + ": " + content
}

// ReportVars returns the four analyst reports as prompt variables.
func ReportVars(state *models.TradingState) map[string]any {
	return map[string]any{
		"market_report":       state.MarketReport,
		"sentiment_report":    state.SentimentReport,
		"news_report":         state.NewsReport,
		"fundamentals_report": state.FundamentalsReport,
	}
}
