// Package ledger defines the outbound port for the audit-ledger mirror.
package ledger

import (
	"context"

	"khata/internal/core"
)

// Appender writes one recorded expense to the firm's audit ledger.
type Appender interface {
	Append(ctx context.Context, e core.ExpenseEntry) error
}
