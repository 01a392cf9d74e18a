// Package worker mirrors recorded expenses from SQLite to the audit ledger.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"khata/internal/amqp"
	"khata/internal/core"
	"khata/internal/ledger"
	"khata/internal/storage"
)

// SyncWorker handles ledger sync messages and sweeps for expenses whose
// publish was lost.
type SyncWorker struct {
	storage   *storage.SQLiteRepository
	ledger    ledger.Appender
	batchSize int
}

func NewSyncWorker(storage *storage.SQLiteRepository, appender ledger.Appender, batchSize int) *SyncWorker {
	return &SyncWorker{
		storage:   storage,
		ledger:    appender,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes a single mirror request from AMQP.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.LedgerSyncMessage) error {
	slog.InfoContext(ctx, "Processing ledger sync message", "id", msg.ID)

	entry, err := w.storage.GetExpense(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("get expense from storage: %w", err)
	}

	return w.mirror(ctx, *entry)
}

// ProcessPendingExpenses mirrors any expenses still marked pending. It runs
// on a timer so a lost AMQP message only delays, never loses, a ledger row.
func (w *SyncWorker) ProcessPendingExpenses(ctx context.Context) error {
	pending, err := w.storage.GetPendingSyncExpenses(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending expenses: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Sweeping pending expenses", "count", len(pending))

	for _, entry := range pending {
		if err := w.mirror(ctx, entry); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror pending expense", "id", entry.ID, "error", err)
			// Keep going; one bad row must not block the batch.
		}
	}
	return nil
}

func (w *SyncWorker) mirror(ctx context.Context, entry core.ExpenseEntry) error {
	if err := w.ledger.Append(ctx, entry); err != nil {
		if markErr := w.storage.MarkSyncError(ctx, entry.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to record sync error", "id", entry.ID, "error", markErr)
		}
		return fmt.Errorf("append to ledger: %w", err)
	}
	return w.storage.MarkSynced(ctx, entry.ID)
}
