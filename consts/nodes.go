package consts

const (
	// 分析师节点
	MarketAnalyst       = "market_analyst"
	SocialMediaAnalyst  = "social_media_analyst"
	NewsAnalyst         = "news_analyst"
	FundamentalsAnalyst = "fundamentals_analyst"

	// 分析师工具节点
	MarketTools       = "tools_market"
	SocialMediaTools  = "tools_social"
	NewsTools         = "tools_news"
	FundamentalsTools = "tools_fundamentals"

	// 研究员节点
	BullResearcher  = "bull_researcher"
	BearResearcher  = "bear_researcher"
	ResearchManager = "research_manager"

	// 交易员节点
	Trader = "trader"

	// 风险分析节点
	RiskyAnalyst   = "risky_analyst"
	SafeAnalyst    = "safe_analyst"
	NeutralAnalyst = "neutral_analyst"
	RiskJudge      = "risk_judge"
)

// Short analyst names accepted on the command line and in config.
const (
	AnalystMarket       = "market"
	AnalystSocial       = "social"
	AnalystNews         = "news"
	AnalystFundamentals = "fundamentals"
)

// DefaultAnalysts is the default analyst order.
var DefaultAnalysts = []string{AnalystMarket, AnalystSocial, AnalystNews, AnalystFundamentals}
