// Package services orchestrates writes that span SQLite and the AMQP queue.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"khata/internal/amqp"
	"khata/internal/core"
	"khata/internal/engine"
	"khata/internal/storage"
)

// ExpenseService saves expenses locally and queues them for the audit-ledger
// mirror.
type ExpenseService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewExpenseService(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *ExpenseService {
	return &ExpenseService{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

// RecordExpense persists an engine expense outcome and publishes a sync
// message. The publish is best-effort: the expense is already durable in
// SQLite and the worker's periodic sweep catches missed messages.
func (s *ExpenseService) RecordExpense(ctx context.Context, exp engine.Expense, phone, rawMessage string) (int64, error) {
	entry := core.ExpenseEntry{
		Amount:       exp.Amount,
		Category:     string(exp.Category),
		Description:  exp.Description,
		PartnerName:  exp.PartnerName,
		PartnerPhone: phone,
		RawMessage:   rawMessage,
	}

	id, err := s.storage.CreateExpense(ctx, entry)
	if err != nil {
		return 0, fmt.Errorf("save expense: %w", err)
	}

	if s.amqpClient == nil {
		slog.DebugContext(ctx, "AMQP client not configured, skipping sync message", "id", id)
		return id, nil
	}
	if err := s.amqpClient.PublishLedgerSync(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger sync message", "id", id, "error", err)
		// Don't fail the request - the expense is saved locally.
	}

	return id, nil
}

// Close closes both storage and AMQP connections.
func (s *ExpenseService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close expense service: %v", errs)
	}

	return nil
}
