package tools

// Tool names exposed to the analysts.
const (
	toolYFin                = "get_YFin_data"
	toolYFinOnline          = "get_YFin_data_online"
	toolIndicators          = "get_stockstats_indicators_report"
	toolIndicatorsOnline    = "get_stockstats_indicators_report_online"
	toolStockNewsLLM        = "get_stock_news_openai"
	toolRedditStock         = "get_reddit_stock_info"
	toolGlobalNewsLLM       = "get_global_news_openai"
	toolGoogleNews          = "get_google_news"
	toolFinnhubNews         = "get_finnhub_news"
	toolRedditNews          = "get_reddit_news"
	toolFundamentalsLLM     = "get_fundamentals_openai"
	toolInsiderSentiment    = "get_finnhub_company_insider_sentiment"
	toolInsiderTransactions = "get_finnhub_company_insider_transactions"
	toolSimFinBalanceSheet  = "get_simfin_balance_sheet"
	toolSimFinCashflow      = "get_simfin_cashflow"
	toolSimFinIncome        = "get_simfin_income_stmt"
)

type PriceRangeInput struct {
	Symbol    string `json:"symbol"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type IndicatorInput struct {
	Symbol       string `json:"symbol"`
	Indicator    string `json:"indicator"`
	CurrDate     string `json:"curr_date"`
	LookBackDays int    `json:"look_back_days"`
}

type TickerDateInput struct {
	Ticker   string `json:"ticker"`
	CurrDate string `json:"curr_date"`
}

type DateInput struct {
	CurrDate string `json:"curr_date"`
}

type QueryInput struct {
	Query        string `json:"query"`
	CurrDate     string `json:"curr_date"`
	LookBackDays int    `json:"look_back_days"`
}

type TickerRangeInput struct {
	Ticker    string `json:"ticker"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type StatementInput struct {
	Ticker   string `json:"ticker"`
	Freq     string `json:"freq"`
	CurrDate string `json:"curr_date"`
}
