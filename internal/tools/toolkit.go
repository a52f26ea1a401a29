package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"go.uber.org/zap"

	"github.com/dyike/cortexdesk/consts"
	"github.com/dyike/cortexdesk/internal/dataflows"
)

// DataSource is the data surface the analyst tools read from.
// *dataflows.Interface satisfies it.
type DataSource interface {
	GetYFinData(ctx context.Context, symbol, start, end string) (string, error)
	GetYFinDataOnline(ctx context.Context, symbol, start, end string) (string, error)
	GetStockStatsIndicatorsWindow(ctx context.Context, symbol, indicator, currDate string, lookback int, online bool) (string, error)
	GetFinnhubNews(ctx context.Context, ticker, currDate string, lookback int) (string, error)
	GetFinnhubCompanyInsiderSentiment(ctx context.Context, ticker, currDate string, lookback int) (string, error)
	GetFinnhubCompanyInsiderTransactions(ctx context.Context, ticker, currDate string, lookback int) (string, error)
	GetSimFinBalanceSheet(ctx context.Context, ticker, freq, currDate string) (string, error)
	GetSimFinCashflow(ctx context.Context, ticker, freq, currDate string) (string, error)
	GetSimFinIncomeStatements(ctx context.Context, ticker, freq, currDate string) (string, error)
	GetGoogleNews(ctx context.Context, query, currDate string, lookback int) (string, error)
	GetRedditGlobalNews(ctx context.Context, currDate string, lookback, maxPerDay int) (string, error)
	GetRedditCompanyNews(ctx context.Context, ticker, currDate string, lookback, maxPerDay int) (string, error)
	GetStockNewsLLM(ctx context.Context, ticker, currDate string) (string, error)
	GetGlobalNewsLLM(ctx context.Context, currDate string) (string, error)
	GetFundamentalsLLM(ctx context.Context, ticker, currDate string) (string, error)
}

var _ DataSource = (*dataflows.Interface)(nil)

const (
	newsLookbackDays    = 7
	insiderLookbackDays = 30
	redditPostsPerDay   = 5
)

// Toolkit hands each analyst its tool set. online picks live sources over
// the local data dumps.
type Toolkit struct {
	data   DataSource
	online bool
}

func NewToolkit(data DataSource, online bool) *Toolkit {
	return &Toolkit{data: data, online: online}
}

func (tk *Toolkit) Online() bool { return tk.online }

// ForAnalyst returns the tools bound to the named analyst, in prompt order.
func (tk *Toolkit) ForAnalyst(analyst string) ([]tool.BaseTool, error) {
	switch analyst {
	case consts.AnalystMarket:
		if tk.online {
			return []tool.BaseTool{tk.yfinOnlineTool(), tk.indicatorTool(true)}, nil
		}
		return []tool.BaseTool{tk.yfinTool(), tk.indicatorTool(false)}, nil
	case consts.AnalystSocial:
		if tk.online {
			return []tool.BaseTool{tk.stockNewsLLMTool()}, nil
		}
		return []tool.BaseTool{tk.redditStockTool()}, nil
	case consts.AnalystNews:
		if tk.online {
			return []tool.BaseTool{tk.globalNewsLLMTool(), tk.googleNewsTool()}, nil
		}
		return []tool.BaseTool{tk.finnhubNewsTool(), tk.redditNewsTool(), tk.googleNewsTool()}, nil
	case consts.AnalystFundamentals:
		if tk.online {
			return []tool.BaseTool{tk.fundamentalsLLMTool()}, nil
		}
		return []tool.BaseTool{
			tk.insiderSentimentTool(),
			tk.insiderTransactionsTool(),
			tk.simfinTool(toolSimFinBalanceSheet, "balance sheet", tk.data.GetSimFinBalanceSheet),
			tk.simfinTool(toolSimFinCashflow, "cash flow statement", tk.data.GetSimFinCashflow),
			tk.simfinTool(toolSimFinIncome, "income statement", tk.data.GetSimFinIncomeStatements),
		}, nil
	}
	return nil, fmt.Errorf("no tools for analyst %q", analyst)
}

// soften turns adapter failures into an empty result so one flaky source
// does not abort the run. Unsupported indicators are configuration errors
// and still fail.
func soften(name, out string, err error) (string, error) {
	if err == nil {
		return out, nil
	}
	if errors.Is(err, dataflows.ErrUnsupportedIndicator) {
		return "", err
	}
	zap.L().Warn("tool returned no data", zap.String("tool", name), zap.Error(err))
	return "", nil
}
