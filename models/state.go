package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
)

// Speaker identifies the most recent participant of the risk debate.
type Speaker string

const (
	SpeakerNone    Speaker = ""
	SpeakerRisky   Speaker = "Risky"
	SpeakerSafe    Speaker = "Safe"
	SpeakerNeutral Speaker = "Neutral"
	SpeakerJudge   Speaker = "Judge"
)

// InvestDebateState represents the investment debate state
type InvestDebateState struct {
	BullHistory     string `json:"bull_history"`     // Bullish conversation history
	BearHistory     string `json:"bear_history"`     // Bearish conversation history
	History         string `json:"history"`          // Conversation history
	CurrentResponse string `json:"current_response"` // Latest response
	JudgeDecision   string `json:"judge_decision"`   // Final judge decision
	Count           int    `json:"count"`            // Length of current conversation
}

// RiskDebateState represents the risk management team debate state
type RiskDebateState struct {
	RiskyHistory           string  `json:"risky_history"`            // Risky Agent's conversation history
	SafeHistory            string  `json:"safe_history"`             // Safe Agent's conversation history
	NeutralHistory         string  `json:"neutral_history"`          // Neutral Agent's conversation history
	History                string  `json:"history"`                  // Overall conversation history
	LatestSpeaker          Speaker `json:"latest_speaker"`           // Analyst that spoke last
	CurrentRiskyResponse   string  `json:"current_risky_response"`   // Latest response by risky analyst
	CurrentSafeResponse    string  `json:"current_safe_response"`    // Latest response by safe analyst
	CurrentNeutralResponse string  `json:"current_neutral_response"` // Latest response by neutral analyst
	JudgeDecision          string  `json:"judge_decision"`           // Judge's decision
	Count                  int     `json:"count"`                    // Length of current conversation
}

// AnalystPhase is the tool-calling state of a single analyst.
type AnalystPhase string

const (
	AnalystPending            AnalystPhase = "pending"
	AnalystAwaitingToolResult AnalystPhase = "awaiting_tool_result"
	AnalystDone               AnalystPhase = "done"
)

// AnalystSession keeps the private tool exchange of one analyst. The exchange
// is replayed to the model on every pass until the analyst stops requesting tools.
type AnalystSession struct {
	Phase      AnalystPhase      `json:"phase"`
	Exchange   []*schema.Message `json:"exchange"`
	ToolRounds int               `json:"tool_rounds"`
}

type TradingState struct {
	Messages          []*schema.Message `json:"messages"`
	CompanyOfInterest string            `json:"company_of_interest"`
	TradeDate         string            `json:"trade_date"`
	Sender            string            `json:"sender"`

	MarketReport       string `json:"market_report"`
	SentimentReport    string `json:"sentiment_report"`
	NewsReport         string `json:"news_report"`
	FundamentalsReport string `json:"fundamentals_report"`

	InvestmentDebateState *InvestDebateState `json:"investment_debate_state"`
	RiskDebateState       *RiskDebateState   `json:"risk_debate_state"`

	InvestmentPlan       string `json:"investment_plan"`
	TraderInvestmentPlan string `json:"trader_investment_plan"`
	FinalTradeDecision   string `json:"final_trade_decision"`

	Analysts map[string]*AnalystSession `json:"analysts"`
}

func NewTradingState(symbol string, date time.Time) *TradingState {
	tradeDate := date.Format("2006-01-02")
	return &TradingState{
		Messages: []*schema.Message{
			schema.UserMessage(symbol),
		},
		CompanyOfInterest:     symbol,
		TradeDate:             tradeDate,
		InvestmentDebateState: &InvestDebateState{},
		RiskDebateState:       &RiskDebateState{},
		Analysts:              make(map[string]*AnalystSession),
	}
}

// Situation joins the four reports in the fixed market, sentiment, news,
// fundamentals order. It is the memory query key and the reflection context.
func (s *TradingState) Situation() string {
	return strings.Join([]string{
		s.MarketReport,
		s.SentimentReport,
		s.NewsReport,
		s.FundamentalsReport,
	}, "\n\n")
}

// AnalystSession returns the session for the analyst, creating it on first use.
func (s *TradingState) AnalystSession(name string) *AnalystSession {
	if s.Analysts == nil {
		s.Analysts = make(map[string]*AnalystSession)
	}
	sess, ok := s.Analysts[name]
	if !ok {
		sess = &AnalystSession{Phase: AnalystPending}
		s.Analysts[name] = sess
	}
	return sess
}

// ReportField returns a pointer to the report owned by the given report kind.
func (s *TradingState) ReportField(kind ReportKind) (*string, error) {
	switch kind {
	case MarketReport:
		return &s.MarketReport, nil
	case SentimentReport:
		return &s.SentimentReport, nil
	case NewsReport:
		return &s.NewsReport, nil
	case FundamentalsReport:
		return &s.FundamentalsReport, nil
	}
	return nil, fmt.Errorf("%w: unknown report kind %q", ErrInvariantViolation, kind)
}

// SetReport writes a report exactly once.
func (s *TradingState) SetReport(kind ReportKind, content string) error {
	field, err := s.ReportField(kind)
	if err != nil {
		return err
	}
	if *field != "" {
		return fmt.Errorf("%w: %s already written", ErrInvariantViolation, kind)
	}
	*field = content
	return nil
}

// AppendMessage appends to the message log; the log is never rewritten.
func (s *TradingState) AppendMessage(msgs ...*schema.Message) {
	for _, m := range msgs {
		if m != nil {
			s.Messages = append(s.Messages, m)
		}
	}
}

func (s *TradingState) RequireInvestmentPlan() error {
	if strings.TrimSpace(s.InvestmentPlan) == "" {
		return fmt.Errorf("%w: investment plan read before research manager ran", ErrInvariantViolation)
	}
	return nil
}

func (s *TradingState) RequireTraderPlan() error {
	if strings.TrimSpace(s.TraderInvestmentPlan) == "" {
		return fmt.Errorf("%w: trader plan read before trader ran", ErrInvariantViolation)
	}
	return nil
}

// RequireComplete reports whether the decision pipeline has fully completed.
func (s *TradingState) RequireComplete() error {
	if strings.TrimSpace(s.FinalTradeDecision) == "" {
		return ErrIncompleteState
	}
	if s.InvestmentDebateState == nil || s.RiskDebateState == nil {
		return fmt.Errorf("%w: debate state missing", ErrIncompleteState)
	}
	return nil
}

// ReportKind names one of the four analyst reports.
type ReportKind string

const (
	MarketReport       ReportKind = "market_report"
	SentimentReport    ReportKind = "sentiment_report"
	NewsReport         ReportKind = "news_report"
	FundamentalsReport ReportKind = "fundamentals_report"
)
