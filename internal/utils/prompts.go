package utils

import (
	"embed"
	"fmt"
)

//go:embed prompts
var promptFiles embed.FS

// Prompt paths, relative to the prompts directory and without extension.
const (
	PromptCollaboration      = "analysts/collaboration"
	PromptMarketAnalyst      = "analysts/market_analyst"
	PromptSocialAnalyst      = "analysts/social_analyst"
	PromptNewsAnalyst        = "analysts/news_analyst"
	PromptFundamentalAnalyst = "analysts/fundamentals_analyst"
	PromptBullResearcher     = "researchers/bull_researcher"
	PromptBearResearcher     = "researchers/bear_researcher"
	PromptResearchManager    = "managers/research_manager"
	PromptRiskManager        = "managers/risk_manager"
	PromptTraderSystem       = "trader/trader_system"
	PromptTraderUser         = "trader/trader_user"
	PromptRiskyAnalyst       = "risk_mgmt/risky_analyst"
	PromptSafeAnalyst        = "risk_mgmt/safe_analyst"
	PromptNeutralAnalyst     = "risk_mgmt/neutral_analyst"
	PromptReflection         = "graph/reflection"
	PromptSignalExtraction   = "graph/signal_extraction"
)

// LoadPrompt loads a prompt from the embedded markdown files
func LoadPrompt(path string) (string, error) {
	content, err := promptFiles.ReadFile(fmt.Sprintf("prompts/%s.md", path))
	if err != nil {
		return "", fmt.Errorf("failed to load prompt %s: %w", path, err)
	}
	return string(content), nil
}
