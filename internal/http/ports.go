package http

import (
	"context"

	"khata/internal/core"
	"khata/internal/engine"
)

// MessageProcessor interprets one inbound chat message.
type MessageProcessor interface {
	Process(ctx context.Context, in core.IncomingMessage) engine.Result
}

// ExpenseRecorder persists an interpreted expense and returns its ledger ID.
type ExpenseRecorder interface {
	RecordExpense(ctx context.Context, exp engine.Expense, phone, rawMessage string) (int64, error)
}

// ExpenseReader serves the dashboard and export read paths.
type ExpenseReader interface {
	ListExpenses(ctx context.Context, limit int) ([]core.ExpenseEntry, error)
	CategorySummary(ctx context.Context) ([]core.CategoryTotal, error)
	PartnerSummary(ctx context.Context) ([]core.PartnerTotal, error)
	Totals(ctx context.Context) (core.Money, int64, error)
}
