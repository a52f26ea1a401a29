package analysts

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/cortexdesk/consts"
	"github.com/dyike/cortexdesk/internal/agents"
	"github.com/dyike/cortexdesk/internal/tools"
	"github.com/dyike/cortexdesk/internal/utils"
	"github.com/dyike/cortexdesk/models"
)

// Spec describes one analyst: its graph keys, the report it owns and its prompt.
type Spec struct {
	Name     string
	NodeKey  string
	ToolsKey string
	Agent    string
	Report   models.ReportKind
	Prompt   string
}

var specs = map[string]Spec{
	consts.AnalystMarket: {
		Name:     consts.AnalystMarket,
		NodeKey:  consts.MarketAnalyst,
		ToolsKey: consts.MarketTools,
		Agent:    consts.Agent_MarketAnalyst,
		Report:   models.MarketReport,
		Prompt:   utils.PromptMarketAnalyst,
	},
	consts.AnalystSocial: {
		Name:     consts.AnalystSocial,
		NodeKey:  consts.SocialMediaAnalyst,
		ToolsKey: consts.SocialMediaTools,
		Agent:    consts.Agent_SocialAnalyst,
		Report:   models.SentimentReport,
		Prompt:   utils.PromptSocialAnalyst,
	},
	consts.AnalystNews: {
		Name:     consts.AnalystNews,
		NodeKey:  consts.NewsAnalyst,
		ToolsKey: consts.NewsTools,
		Agent:    consts.Agent_NewsAnalyst,
		Report:   models.NewsReport,
		Prompt:   utils.PromptNewsAnalyst,
	},
	consts.AnalystFundamentals: {
		Name:     consts.AnalystFundamentals,
		NodeKey:  consts.FundamentalsAnalyst,
		ToolsKey: consts.FundamentalsTools,
		Agent:    consts.Agent_FundamentalsAnalyst,
		Report:   models.FundamentalsReport,
		Prompt:   utils.PromptFundamentalAnalyst,
	},
}

// Lookup returns the spec for a short analyst name such as "market".
func Lookup(name string) (Spec, error) {
	spec, ok := specs[name]
	if !ok {
		return Spec{}, fmt.Errorf("unknown analyst %q", name)
	}
	return spec, nil
}

// NeedsTools reports whether the analyst is waiting on tool results.
func NeedsTools(state *models.TradingState, spec Spec) bool {
	sess, ok := state.Analysts[spec.Name]
	return ok && sess.Phase == models.AnalystAwaitingToolResult
}

// NewAnalystNode builds the analyst subgraph. Each pass replays the analyst's
// private tool exchange; a reply without tool calls becomes the report.
func NewAnalystNode(ctx context.Context, spec Spec, deps *agents.Deps, tk *tools.Toolkit) (*compose.Graph[string, string], error) {
	ts, err := tk.ForAnalyst(spec.Name)
	if err != nil {
		return nil, err
	}
	infos := make([]*schema.ToolInfo, 0, len(ts))
	names := make([]string, 0, len(ts))
	for _, t := range ts {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s tool info: %w", spec.NodeKey, err)
		}
		infos = append(infos, info)
		names = append(names, info.Name)
	}
	cm, err := deps.QuickModel.WithTools(infos)
	if err != nil {
		return nil, fmt.Errorf("%s bind tools: %w", spec.NodeKey, err)
	}

	collaboration, err := utils.LoadPrompt(utils.PromptCollaboration)
	if err != nil {
		return nil, err
	}
	systemMessage, err := utils.LoadPrompt(spec.Prompt)
	if err != nil {
		return nil, err
	}
	tpl := prompt.FromMessages(schema.FString,
		schema.SystemMessage(collaboration),
		schema.MessagesPlaceholder("messages", false),
	)

	load := func(ctx context.Context, state *models.TradingState) ([]*schema.Message, error) {
		sess := state.AnalystSession(spec.Name)
		if sess.Phase == models.AnalystDone {
			return nil, fmt.Errorf("%w: %s ran after finishing", models.ErrInvariantViolation, spec.NodeKey)
		}
		history := make([]*schema.Message, 0, len(sess.Exchange)+1)
		if len(state.Messages) > 0 {
			history = append(history, state.Messages[0])
		} else {
			history = append(history, schema.UserMessage(state.CompanyOfInterest))
		}
		history = append(history, sess.Exchange...)
		return tpl.Format(ctx, map[string]any{
			"tool_names":     strings.Join(names, ", "),
			"system_message": systemMessage,
			"current_date":   state.TradeDate,
			"ticker":         state.CompanyOfInterest,
			"messages":       history,
		})
	}

	store := func(_ context.Context, state *models.TradingState, reply *schema.Message) error {
		sess := state.AnalystSession(spec.Name)
		state.AppendMessage(reply)
		state.Sender = spec.Agent
		if len(reply.ToolCalls) > 0 {
			if sess.ToolRounds >= deps.MaxToolRounds {
				return fmt.Errorf("%w: %s requested tools after %d rounds", models.ErrToolBudgetExceeded, spec.NodeKey, sess.ToolRounds)
			}
			sess.ToolRounds++
			sess.Exchange = append(sess.Exchange, reply)
			sess.Phase = models.AnalystAwaitingToolResult
			return nil
		}
		if err := state.SetReport(spec.Report, reply.Content); err != nil {
			return err
		}
		sess.Phase = models.AnalystDone
		return nil
	}

	return agents.NewRoleNode(spec.NodeKey, cm, load, store)
}

// NewToolsNode executes the analyst's pending tool calls and records the
// results in its exchange so the next analyst pass can read them.
func NewToolsNode(ctx context.Context, spec Spec, tk *tools.Toolkit) (*compose.Graph[string, string], error) {
	ts, err := tk.ForAnalyst(spec.Name)
	if err != nil {
		return nil, err
	}
	return newToolsGraph(ctx, spec, ts)
}

func newToolsGraph(ctx context.Context, spec Spec, ts []tool.BaseTool) (*compose.Graph[string, string], error) {
	tn, err := compose.NewToolNode(ctx, &compose.ToolsNodeConfig{Tools: ts})
	if err != nil {
		return nil, fmt.Errorf("%s tools node: %w", spec.ToolsKey, err)
	}

	pending := func(ctx context.Context, _ string, _ ...any) (output *schema.Message, err error) {
		err = compose.ProcessState[*models.TradingState](ctx, func(_ context.Context, state *models.TradingState) error {
			sess := state.AnalystSession(spec.Name)
			if sess.Phase != models.AnalystAwaitingToolResult || len(sess.Exchange) == 0 {
				return fmt.Errorf("%w: %s has no pending tool calls", models.ErrInvariantViolation, spec.ToolsKey)
			}
			output = sess.Exchange[len(sess.Exchange)-1]
			if len(output.ToolCalls) == 0 {
				return fmt.Errorf("%w: %s last exchange message has no tool calls", models.ErrInvariantViolation, spec.ToolsKey)
			}
			return nil
		})
		return output, err
	}
	record := func(ctx context.Context, results []*schema.Message, _ ...any) (string, error) {
		err := compose.ProcessState[*models.TradingState](ctx, func(_ context.Context, state *models.TradingState) error {
			sess := state.AnalystSession(spec.Name)
			sess.Exchange = append(sess.Exchange, results...)
			state.AppendMessage(results...)
			sess.Phase = models.AnalystPending
			return nil
		})
		return spec.ToolsKey, err
	}

	g := compose.NewGraph[string, string]()
	if err := g.AddLambdaNode(agents.NodeLoad, compose.InvokableLambdaWithOption(pending)); err != nil {
		return nil, err
	}
	if err := g.AddToolsNode("tools", tn); err != nil {
		return nil, err
	}
	if err := g.AddLambdaNode(agents.NodeRouter, compose.InvokableLambdaWithOption(record)); err != nil {
		return nil, err
	}
	_ = g.AddEdge(compose.START, agents.NodeLoad)
	_ = g.AddEdge(agents.NodeLoad, "tools")
	_ = g.AddEdge("tools", agents.NodeRouter)
	_ = g.AddEdge(agents.NodeRouter, compose.END)
	return g, nil
}
