package tools

import (
	"context"
	"time"

	"github.com/cloudwego/eino/components/tool"
	t_utils "github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
)

var currDateParam = &schema.ParameterInfo{
	Type:     "string",
	Desc:     "Current date in yyyy-mm-dd format",
	Required: true,
}

func (tk *Toolkit) googleNewsTool() tool.BaseTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: toolGoogleNews,
			Desc: "Retrieve the latest news from Google News based on a query and date range.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {
					Type:     "string",
					Desc:     "Query to search with",
					Required: true,
				},
				"curr_date": currDateParam,
				"look_back_days": {
					Type:     "integer",
					Desc:     "How many days to look back (default 7)",
					Required: false,
				},
			}),
		},
		func(ctx context.Context, in QueryInput) (string, error) {
			lookback := in.LookBackDays
			if lookback <= 0 {
				lookback = newsLookbackDays
			}
			out, err := tk.data.GetGoogleNews(ctx, in.Query, in.CurrDate, lookback)
			return soften(toolGoogleNews, out, err)
		},
	)
}

// lookbackBetween converts a start/end pair into (end, days back from end).
func lookbackBetween(start, end string) (string, int) {
	s, err1 := time.Parse("2006-01-02", start)
	e, err2 := time.Parse("2006-01-02", end)
	if err1 != nil || err2 != nil || e.Before(s) {
		return end, newsLookbackDays
	}
	return end, int(e.Sub(s).Hours() / 24)
}

func (tk *Toolkit) finnhubNewsTool() tool.BaseTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: toolFinnhubNews,
			Desc: "Retrieve the latest news about a given stock from Finnhub within a date range.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"ticker": {
					Type:     "string",
					Desc:     "Search query of a company, e.g. 'AAPL, TSM, etc.'",
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
			}),
		},
		func(ctx context.Context, in TickerRangeInput) (string, error) {
			curr, lookback := lookbackBetween(in.StartDate, in.EndDate)
			out, err := tk.data.GetFinnhubNews(ctx, in.Ticker, curr, lookback)
			return soften(toolFinnhubNews, out, err)
		},
	)
}

func (tk *Toolkit) redditNewsTool() tool.BaseTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: toolRedditNews,
			Desc: "Retrieve global news from Reddit within the week before the given date.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"curr_date": currDateParam,
			}),
		},
		func(ctx context.Context, in DateInput) (string, error) {
			out, err := tk.data.GetRedditGlobalNews(ctx, in.CurrDate, newsLookbackDays, redditPostsPerDay)
			return soften(toolRedditNews, out, err)
		},
	)
}

func (tk *Toolkit) globalNewsLLMTool() tool.BaseTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: toolGlobalNewsLLM,
			Desc: "Retrieve the latest macroeconomics news for the week before the given date.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"curr_date": currDateParam,
			}),
		},
		func(ctx context.Context, in DateInput) (string, error) {
			out, err := tk.data.GetGlobalNewsLLM(ctx, in.CurrDate)
			return soften(toolGlobalNewsLLM, out, err)
		},
	)
}
