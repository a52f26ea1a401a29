package models

import (
	"fmt"
	"strings"
)

// Signal is the canonical trading action.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// ParseSignal accepts exactly one of BUY, SELL or HOLD, ignoring case and
// surrounding whitespace.
func ParseSignal(s string) (Signal, error) {
	switch Signal(strings.ToUpper(strings.TrimSpace(s))) {
	case SignalBuy:
		return SignalBuy, nil
	case SignalSell:
		return SignalSell, nil
	case SignalHold:
		return SignalHold, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnparseableSignal, s)
}

type TradingDecision struct {
	Symbol    string `json:"symbol"`
	Date      string `json:"date"`
	Action    Signal `json:"action"`
	Reasoning string `json:"reasoning"`
}
