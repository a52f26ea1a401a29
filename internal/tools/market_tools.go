package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	t_utils "github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/cortexdesk/internal/dataflows"
)

const defaultIndicatorLookback = 30

func priceRangeParams() *schema.ParamsOneOf {
	return schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
		"symbol": {
			Type:     "string",
			Desc:     "Ticker symbol of the company, e.g. AAPL, TSM, 700.HK",
			Required: true,
		},
		"start_date": {
			Type:     "string",
			Desc:     "Start date in yyyy-mm-dd format",
			Required: true,
		},
		"end_date": {
			Type:     "string",
			Desc:     "End date in yyyy-mm-dd format",
			Required: true,
		},
	})
}

func (tk *Toolkit) yfinTool() tool.BaseTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name:        toolYFin,
			Desc:        "Retrieve the stock price data for a given ticker symbol from the local Yahoo Finance dump.",
			ParamsOneOf: priceRangeParams(),
		},
		func(ctx context.Context, in PriceRangeInput) (string, error) {
			out, err := tk.data.GetYFinData(ctx, in.Symbol, in.StartDate, in.EndDate)
			return soften(toolYFin, out, err)
		},
	)
}

func (tk *Toolkit) yfinOnlineTool() tool.BaseTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name:        toolYFinOnline,
			Desc:        "Retrieve the latest stock price data for a given ticker symbol from Yahoo Finance (Longport for HK and mainland listings).",
			ParamsOneOf: priceRangeParams(),
		},
		func(ctx context.Context, in PriceRangeInput) (string, error) {
			out, err := tk.data.GetYFinDataOnline(ctx, in.Symbol, in.StartDate, in.EndDate)
			return soften(toolYFinOnline, out, err)
		},
	)
}

func indicatorList() string {
	names := dataflows.SupportedIndicators()
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func (tk *Toolkit) indicatorTool(online bool) tool.BaseTool {
	name := toolIndicators
	desc := "Retrieve stock stats indicators for a given ticker symbol and indicator, computed from the local price dump."
	if online {
		name = toolIndicatorsOnline
		desc = "Retrieve stock stats indicators for a given ticker symbol and indicator, computed from live prices."
	}
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: name,
			Desc: desc,
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"symbol": {
					Type:     "string",
					Desc:     "Ticker symbol of the company",
					Required: true,
				},
				"indicator": {
					Type:     "string",
					Desc:     fmt.Sprintf("Technical indicator to report, one of: %s", indicatorList()),
					Required: true,
				},
				"curr_date": {
					Type:     "string",
					Desc:     "The current trading date you are trading on, yyyy-mm-dd",
					Required: true,
				},
				"look_back_days": {
					Type:     "integer",
					Desc:     fmt.Sprintf("How many days to look back (default %d)", defaultIndicatorLookback),
					Required: false,
				},
			}),
		},
		func(ctx context.Context, in IndicatorInput) (string, error) {
			lookback := in.LookBackDays
			if lookback <= 0 {
				lookback = defaultIndicatorLookback
			}
			out, err := tk.data.GetStockStatsIndicatorsWindow(ctx, in.Symbol, in.Indicator, in.CurrDate, lookback, online)
			return soften(name, out, err)
		},
	)
}
