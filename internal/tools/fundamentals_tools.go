package tools

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	t_utils "github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
)

func (tk *Toolkit) fundamentalsLLMTool() tool.BaseTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name:        toolFundamentalsLLM,
			Desc:        "Retrieve the latest fundamental information about a given stock.",
			ParamsOneOf: tickerDateParams(),
		},
		func(ctx context.Context, in TickerDateInput) (string, error) {
			out, err := tk.data.GetFundamentalsLLM(ctx, in.Ticker, in.CurrDate)
			return soften(toolFundamentalsLLM, out, err)
		},
	)
}

func (tk *Toolkit) insiderSentimentTool() tool.BaseTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name:        toolInsiderSentiment,
			Desc:        "Retrieve insider sentiment information about a company for the past 30 days.",
			ParamsOneOf: tickerDateParams(),
		},
		func(ctx context.Context, in TickerDateInput) (string, error) {
			out, err := tk.data.GetFinnhubCompanyInsiderSentiment(ctx, in.Ticker, in.CurrDate, insiderLookbackDays)
			return soften(toolInsiderSentiment, out, err)
		},
	)
}

func (tk *Toolkit) insiderTransactionsTool() tool.BaseTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name:        toolInsiderTransactions,
			Desc:        "Retrieve insider transaction information about a company for the past 30 days.",
			ParamsOneOf: tickerDateParams(),
		},
		func(ctx context.Context, in TickerDateInput) (string, error) {
			out, err := tk.data.GetFinnhubCompanyInsiderTransactions(ctx, in.Ticker, in.CurrDate, insiderLookbackDays)
			return soften(toolInsiderTransactions, out, err)
		},
	)
}

type statementFunc func(ctx context.Context, ticker, freq, currDate string) (string, error)

func (tk *Toolkit) simfinTool(name, statement string, fetch statementFunc) tool.BaseTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: name,
			Desc: fmt.Sprintf("Retrieve the most recent %s of a company.", statement),
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"ticker": {
					Type:     "string",
					Desc:     "Ticker of the company",
					Required: true,
				},
				"freq": {
					Type:     "string",
					Desc:     "Reporting frequency: annual or quarterly",
					Enum:     []string{"annual", "quarterly"},
					Required: true,
				},
				"curr_date": currDateParam,
			}),
		},
		func(ctx context.Context, in StatementInput) (string, error) {
			out, err := fetch(ctx, in.Ticker, in.Freq, in.CurrDate)
			return soften(name, out, err)
		},
	)
}
