package transform

import "fmt"

// Strategy is the classification mode of a Transformer
type Strategy int

const (
	// StrategyValidate checks successful results with a validator
	StrategyValidate Strategy = iota + 1
	// StrategyDelegate hands failures to a custom handler
	StrategyDelegate
	// StrategyRewrite maps error kinds to target kinds
	StrategyRewrite
	// StrategyRegex maps error kinds to target kinds chosen by message pattern
	StrategyRegex
)

var strategyNames = map[Strategy]string{
	StrategyValidate: "validate",
	StrategyDelegate: "delegate",
	StrategyRewrite:  "rewrite",
	StrategyRegex:    "regex",
}

// String returns the strategy name
func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// Group selects which rule set applies to a classification call
type Group string

// DefaultGroup is used when no group is given
const DefaultGroup Group = "default"

// Outcome describes how a classification call ended
type Outcome string

// Classification outcomes
const (
	OutcomeUnmatched        Outcome = "unmatched"
	OutcomeRewritten        Outcome = "rewritten"
	OutcomeDelegated        Outcome = "delegated"
	OutcomeValidated        Outcome = "validated"
	OutcomeValidationFailed Outcome = "validation_failed"
)
