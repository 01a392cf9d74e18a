// Package engine interprets inbound chat messages for the expense tracker.
//
// Every message from a sender resolves to exactly one Result: a registration
// attempt, a rejection because the sender is unknown, a parse failure, or a
// fully categorized expense. The engine owns interpretation only; persistence
// and reply delivery belong to the caller.
package engine

import "khata/internal/core"

// Outcome tags the variant carried by a Result.
type Outcome int

const (
	OutcomeRegistration Outcome = iota
	OutcomeUnregistered
	OutcomeParseError
	OutcomeExpense
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRegistration:
		return "registration"
	case OutcomeUnregistered:
		return "unregistered"
	case OutcomeParseError:
		return "parse_error"
	case OutcomeExpense:
		return "expense"
	default:
		return "unknown"
	}
}

// Registration carries the outcome of a "register <Name>" command.
type Registration struct {
	Success bool
	Name    string
}

// Expense carries a successfully parsed and categorized expense. Description
// holds the full original message text, not just the matched fragment.
type Expense struct {
	Amount      core.Money
	Category    Category
	Description string
	PartnerName string
}

// Result is the single outcome produced per processed message. Outcome
// selects which of the variant fields is meaningful: Registration for
// OutcomeRegistration, Expense for OutcomeExpense, Reason for
// OutcomeParseError.
type Result struct {
	Outcome      Outcome
	Registration Registration
	Expense      Expense
	Reason       string
}
