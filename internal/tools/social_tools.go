package tools

import (
	"context"

	"github.com/cloudwego/eino/components/tool"
	t_utils "github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
)

func tickerDateParams() *schema.ParamsOneOf {
	return schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
		"ticker": {
			Type:     "string",
			Desc:     "Ticker of a company, e.g. AAPL, TSM",
			Required: true,
		},
		"curr_date": currDateParam,
	})
}

func (tk *Toolkit) redditStockTool() tool.BaseTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name:        toolRedditStock,
			Desc:        "Retrieve the latest Reddit posts about a given stock for the week before the given date.",
			ParamsOneOf: tickerDateParams(),
		},
		func(ctx context.Context, in TickerDateInput) (string, error) {
			out, err := tk.data.GetRedditCompanyNews(ctx, in.Ticker, in.CurrDate, newsLookbackDays, redditPostsPerDay)
			return soften(toolRedditStock, out, err)
		},
	)
}

func (tk *Toolkit) stockNewsLLMTool() tool.BaseTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name:        toolStockNewsLLM,
			Desc:        "Retrieve the latest social media discussion and news about a given stock.",
			ParamsOneOf: tickerDateParams(),
		},
		func(ctx context.Context, in TickerDateInput) (string, error) {
			out, err := tk.data.GetStockNewsLLM(ctx, in.Ticker, in.CurrDate)
			return soften(toolStockNewsLLM, out, err)
		},
	)
}
