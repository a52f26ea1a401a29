package consts

const (
	// Analyst Team
	Agent_MarketAnalyst       = "Market Analyst"
	Agent_SocialAnalyst       = "Social Analyst"
	Agent_NewsAnalyst         = "News Analyst"
	Agent_FundamentalsAnalyst = "Fundamentals Analyst"
	// Research Team
	Agent_BullResearcher  = "Bull Researcher"
	Agent_BearResearcher  = "Bear Researcher"
	Agent_ResearchManager = "Research Manager"
	// Trading Team
	Agent_Trader = "Trader"
	// Risk Management Team
	Agent_RiskyAnalyst   = "Risky Analyst"
	Agent_NeutralAnalyst = "Neutral Analyst"
	Agent_SafeAnalyst    = "Safe Analyst"
	// Portfolio Management Team
	Agent_PortfolioManager = "Portfolio Manager"
)

// Debate transcript prefixes.
const (
	Prefix_Bull    = "Bull Analyst"
	Prefix_Bear    = "Bear Analyst"
	Prefix_Risky   = "Risky Analyst"
	Prefix_Safe    = "Safe Analyst"
	Prefix_Neutral = "Neutral Analyst"
)

// Memory store names, one per reflecting role.
const (
	Memory_Bull        = "bull_memory"
	Memory_Bear        = "bear_memory"
	Memory_Trader      = "trader_memory"
	Memory_InvestJudge = "invest_judge_memory"
	Memory_RiskManager = "risk_manager_memory"
)

// AllMemories lists the memory stores in reflection order.
var AllMemories = []string{Memory_Bull, Memory_Bear, Memory_Trader, Memory_InvestJudge, Memory_RiskManager}

const (
	State_Pending   = "pending"
	State_Streaming = "streaming"
	State_Done      = "done"
	State_Error     = "error"
)

// MemoryMatches is the number of past lessons retrieved before each prompt.
const MemoryMatches = 2
