package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/dyike/cortexdesk/consts"
	"github.com/dyike/cortexdesk/internal/agents"
	"github.com/dyike/cortexdesk/internal/agents/analysts"
	"github.com/dyike/cortexdesk/internal/agents/managers"
	"github.com/dyike/cortexdesk/internal/agents/researchers"
	"github.com/dyike/cortexdesk/internal/agents/risk_mgmt"
	"github.com/dyike/cortexdesk/internal/agents/trader"
	"github.com/dyike/cortexdesk/internal/tools"
	"github.com/dyike/cortexdesk/models"
)

const graphName = "cortexdesk-committee"

// orchestratorParams is everything needed to assemble one committee graph.
type orchestratorParams struct {
	deps     *agents.Deps
	toolkit  *tools.Toolkit
	logic    *ConditionalLogic
	analysts []string
	maxSteps int
}

// readState runs fn against the graph's local state.
func readState[T any](ctx context.Context, fn func(*models.TradingState) T) (out T, err error) {
	err = compose.ProcessState[*models.TradingState](ctx, func(_ context.Context, state *models.TradingState) error {
		out = fn(state)
		return nil
	})
	return out, err
}

// NewTradingOrchestrator compiles the committee graph around state. Every node
// reads and writes state directly; branches only look at it to pick the next
// speaker.
func NewTradingOrchestrator(ctx context.Context, state *models.TradingState, p orchestratorParams) (compose.Runnable[string, string], error) {
	if len(p.analysts) == 0 {
		return nil, fmt.Errorf("no analysts selected")
	}

	g := compose.NewGraph[string, string](
		compose.WithGenLocalState(func(context.Context) *models.TradingState {
			return state
		}),
	)

	specs := make([]analysts.Spec, 0, len(p.analysts))
	for _, name := range p.analysts {
		spec, err := analysts.Lookup(name)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}

	// 分析师节点及其工具节点
	for _, spec := range specs {
		node, err := analysts.NewAnalystNode(ctx, spec, p.deps, p.toolkit)
		if err != nil {
			return nil, err
		}
		toolsNode, err := analysts.NewToolsNode(ctx, spec, p.toolkit)
		if err != nil {
			return nil, err
		}
		if err := g.AddGraphNode(spec.NodeKey, node, compose.WithNodeName(spec.NodeKey)); err != nil {
			return nil, err
		}
		if err := g.AddGraphNode(spec.ToolsKey, toolsNode, compose.WithNodeName(spec.ToolsKey)); err != nil {
			return nil, err
		}
	}

	type roleCtor func(*agents.Deps) (*compose.Graph[string, string], error)
	roles := []struct {
		key  string
		ctor roleCtor
	}{
		{consts.BullResearcher, researchers.NewBullResearcherNode},
		{consts.BearResearcher, researchers.NewBearResearcherNode},
		{consts.ResearchManager, managers.NewResearchManagerNode},
		{consts.Trader, trader.NewTraderNode},
		{consts.RiskyAnalyst, risk_mgmt.NewRiskyAnalystNode},
		{consts.SafeAnalyst, risk_mgmt.NewSafeAnalystNode},
		{consts.NeutralAnalyst, risk_mgmt.NewNeutralAnalystNode},
		{consts.RiskJudge, managers.NewRiskManagerNode},
	}
	for _, r := range roles {
		node, err := r.ctor(p.deps)
		if err != nil {
			return nil, err
		}
		if err := g.AddGraphNode(r.key, node, compose.WithNodeName(r.key)); err != nil {
			return nil, err
		}
	}

	debateOut := map[string]bool{
		consts.BullResearcher:  true,
		consts.BearResearcher:  true,
		consts.ResearchManager: true,
	}
	riskOut := map[string]bool{
		consts.RiskyAnalyst:   true,
		consts.SafeAnalyst:    true,
		consts.NeutralAnalyst: true,
		consts.RiskJudge:      true,
	}
	debateHandOff := func(ctx context.Context, _ string) (string, error) {
		return readState(ctx, p.logic.DebateNext)
	}
	riskHandOff := func(ctx context.Context, _ string) (string, error) {
		return readState(ctx, p.logic.RiskNext)
	}

	// Analysts run in the selected order, each looping through its tools node
	// until it writes its report. The last one hands off to the debate.
	_ = g.AddEdge(compose.START, specs[0].NodeKey)
	for i, spec := range specs {
		spec := spec
		outMap := map[string]bool{spec.ToolsKey: true}
		var next string
		if i+1 < len(specs) {
			next = specs[i+1].NodeKey
			outMap[next] = true
		} else {
			for k := range debateOut {
				outMap[k] = true
			}
		}
		handOff := func(ctx context.Context, _ string) (string, error) {
			return readState(ctx, func(state *models.TradingState) string {
				if analysts.NeedsTools(state, spec) {
					return spec.ToolsKey
				}
				if next != "" {
					return next
				}
				return p.logic.DebateNext(state)
			})
		}
		if err := g.AddBranch(spec.NodeKey, compose.NewGraphBranch(handOff, outMap)); err != nil {
			return nil, err
		}
		if err := g.AddEdge(spec.ToolsKey, spec.NodeKey); err != nil {
			return nil, err
		}
	}

	// 投资辩论
	_ = g.AddBranch(consts.BullResearcher, compose.NewGraphBranch(debateHandOff, debateOut))
	_ = g.AddBranch(consts.BearResearcher, compose.NewGraphBranch(debateHandOff, debateOut))
	_ = g.AddEdge(consts.ResearchManager, consts.Trader)

	// 风险辩论
	_ = g.AddBranch(consts.Trader, compose.NewGraphBranch(riskHandOff, riskOut))
	_ = g.AddBranch(consts.RiskyAnalyst, compose.NewGraphBranch(riskHandOff, riskOut))
	_ = g.AddBranch(consts.SafeAnalyst, compose.NewGraphBranch(riskHandOff, riskOut))
	_ = g.AddBranch(consts.NeutralAnalyst, compose.NewGraphBranch(riskHandOff, riskOut))
	_ = g.AddEdge(consts.RiskJudge, compose.END)

	opts := []compose.GraphCompileOption{
		compose.WithGraphName(graphName),
		compose.WithNodeTriggerMode(compose.AnyPredecessor),
	}
	if p.maxSteps > 0 {
		opts = append(opts, compose.WithMaxRunSteps(p.maxSteps))
	}
	r, err := g.Compile(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("compile committee graph: %w", err)
	}
	return r, nil
}
