package models

import "errors"

var (
	// ErrInvariantViolation marks a pipeline ordering or ownership bug, such as a
	// report being written twice or a plan being read before it exists.
	ErrInvariantViolation = errors.New("state invariant violated")

	// ErrIncompleteState is returned when reflecting on a run whose final trade
	// decision has not been produced.
	ErrIncompleteState = errors.New("trading state incomplete: final trade decision not set")

	// ErrUnparseableSignal is returned when no BUY/SELL/HOLD token can be extracted.
	ErrUnparseableSignal = errors.New("unable to extract trading signal")

	// ErrToolBudgetExceeded is returned when an analyst keeps requesting tools
	// beyond the configured number of rounds.
	ErrToolBudgetExceeded = errors.New("analyst exceeded tool round budget")
)
