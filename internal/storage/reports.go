package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dyike/cortexdesk/models"
)

// ReportSection is one markdown file of a run's report directory.
type ReportSection struct {
	File    string
	Title   string
	Content string
}

// ReportSections lists the non-empty report sections of state in pipeline order.
func ReportSections(state *models.TradingState) []ReportSection {
	all := []ReportSection{
		{"market_report.md", "Market Analysis", state.MarketReport},
		{"sentiment_report.md", "Social Sentiment", state.SentimentReport},
		{"news_report.md", "News Analysis", state.NewsReport},
		{"fundamentals_report.md", "Fundamentals Analysis", state.FundamentalsReport},
		{"investment_plan.md", "Research Team Decision", state.InvestmentPlan},
		{"trader_investment_plan.md", "Trading Team Plan", state.TraderInvestmentPlan},
		{"final_trade_decision.md", "Portfolio Management Decision", state.FinalTradeDecision},
	}
	out := all[:0]
	for _, sec := range all {
		if strings.TrimSpace(sec.Content) != "" {
			out = append(out, sec)
		}
	}
	return out
}

// ReportDir is results/<ticker>/<date>/reports.
func ReportDir(resultsDir, ticker, date string) string {
	return filepath.Join(resultsDir, ticker, date, "reports")
}

// WriteReports writes one markdown file per section plus a combined
// complete_report.md and returns the directory.
func WriteReports(resultsDir string, state *models.TradingState, signal models.Signal) (string, error) {
	dir := ReportDir(resultsDir, state.CompanyOfInterest, state.TradeDate)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	var full strings.Builder
	fmt.Fprintf(&full, "# Trading Analysis Report: %s (%s)\n\n", state.CompanyOfInterest, state.TradeDate)
	if signal != "" {
		fmt.Fprintf(&full, "**Signal:** %s\n\n", signal)
	}
	for _, sec := range ReportSections(state) {
		if err := os.WriteFile(filepath.Join(dir, sec.File), []byte(sec.Content), 0o644); err != nil {
			return "", fmt.Errorf("write %s: %w", sec.File, err)
		}
		fmt.Fprintf(&full, "## %s\n\n%s\n\n", sec.Title, strings.TrimSpace(sec.Content))
	}
	if err := os.WriteFile(filepath.Join(dir, "complete_report.md"), []byte(full.String()), 0o644); err != nil {
		return "", fmt.Errorf("write complete report: %w", err)
	}
	return dir, nil
}
