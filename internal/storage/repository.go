// Package storage persists partners and expenses in SQLite. The repository
// doubles as the engine's partner registry: the upsert is a single
// INSERT ... ON CONFLICT statement, which gives the atomic
// create-or-overwrite the registration flow relies on.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"khata/internal/core"

	_ "modernc.org/sqlite"
)

// Sync status values for the audit-ledger mirror.
const (
	SyncPending = "pending"
	SyncDone    = "synced"
	SyncError   = "error"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// LookupPartner implements engine.PartnerRegistry. A missing sender returns
// (nil, nil).
func (r *SQLiteRepository) LookupPartner(ctx context.Context, phone string) (*core.Partner, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT phone, name, created_at FROM partners WHERE phone = ?`, phone)

	var p core.Partner
	if err := row.Scan(&p.Phone, &p.Name, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup partner: %w", err)
	}
	return &p, nil
}

// UpsertPartner implements engine.PartnerRegistry. Re-registration replaces
// the stored name; no history is kept.
func (r *SQLiteRepository) UpsertPartner(ctx context.Context, phone, name string) error {
	p := core.Partner{Phone: phone, Name: name}
	if err := p.Validate(); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO partners (phone, name) VALUES (?, ?)
		 ON CONFLICT(phone) DO UPDATE SET name = excluded.name`,
		phone, name)
	if err != nil {
		return fmt.Errorf("upsert partner: %w", err)
	}

	slog.InfoContext(ctx, "Partner registered", "phone", phone, "name", name)
	return nil
}

// CreateExpense stores an expense and returns its sequence identifier.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.ExpenseEntry) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses
		   (amount_paise, category, description, partner_name, partner_phone, raw_message, sync_status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Amount.Paise, e.Category, e.Description, e.PartnerName, e.PartnerPhone, e.RawMessage, SyncPending)
	if err != nil {
		return 0, fmt.Errorf("create expense: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", id,
		"amount_paise", e.Amount.Paise,
		"category", e.Category,
		"partner", e.PartnerName)

	return id, nil
}

// GetExpense retrieves a single expense by ID.
func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (*core.ExpenseEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, amount_paise, category, description, partner_name, partner_phone, raw_message, created_at
		 FROM expenses WHERE id = ?`, id)

	var e core.ExpenseEntry
	if err := row.Scan(&e.ID, &e.Amount.Paise, &e.Category, &e.Description,
		&e.PartnerName, &e.PartnerPhone, &e.RawMessage, &e.CreatedAt); err != nil {
		return nil, fmt.Errorf("get expense %d: %w", id, err)
	}
	return &e, nil
}

// ListExpenses returns the most recent expenses, newest first. A limit of 0
// means no limit.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, limit int) ([]core.ExpenseEntry, error) {
	query := `SELECT id, amount_paise, category, description, partner_name, partner_phone, raw_message, created_at
	          FROM expenses ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.ExpenseEntry
	for rows.Next() {
		var e core.ExpenseEntry
		if err := rows.Scan(&e.ID, &e.Amount.Paise, &e.Category, &e.Description,
			&e.PartnerName, &e.PartnerPhone, &e.RawMessage, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CategorySummary returns per-category totals.
func (r *SQLiteRepository) CategorySummary(ctx context.Context) ([]core.CategoryTotal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT category, SUM(amount_paise), COUNT(*)
		 FROM expenses GROUP BY category ORDER BY SUM(amount_paise) DESC`)
	if err != nil {
		return nil, fmt.Errorf("category summary: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryTotal
	for rows.Next() {
		var ct core.CategoryTotal
		if err := rows.Scan(&ct.Category, &ct.Total.Paise, &ct.Count); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

// PartnerSummary returns per-partner totals.
func (r *SQLiteRepository) PartnerSummary(ctx context.Context) ([]core.PartnerTotal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT partner_name, SUM(amount_paise), COUNT(*)
		 FROM expenses GROUP BY partner_name ORDER BY SUM(amount_paise) DESC`)
	if err != nil {
		return nil, fmt.Errorf("partner summary: %w", err)
	}
	defer rows.Close()

	var out []core.PartnerTotal
	for rows.Next() {
		var pt core.PartnerTotal
		if err := rows.Scan(&pt.PartnerName, &pt.Total.Paise, &pt.Count); err != nil {
			return nil, fmt.Errorf("scan partner total: %w", err)
		}
		out = append(out, pt)
	}
	return out, rows.Err()
}

// Totals returns the grand total and expense count.
func (r *SQLiteRepository) Totals(ctx context.Context) (core.Money, int64, error) {
	var total sql.NullInt64
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT SUM(amount_paise), COUNT(*) FROM expenses`).Scan(&total, &count)
	if err != nil {
		return core.Money{}, 0, fmt.Errorf("totals: %w", err)
	}
	return core.Money{Paise: total.Int64}, count, nil
}

// GetPendingSyncExpenses returns expenses not yet mirrored to the audit
// ledger, oldest first.
func (r *SQLiteRepository) GetPendingSyncExpenses(ctx context.Context, limit int) ([]core.ExpenseEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, amount_paise, category, description, partner_name, partner_phone, raw_message, created_at
		 FROM expenses WHERE sync_status = ? ORDER BY id ASC LIMIT ?`,
		SyncPending, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync expenses: %w", err)
	}
	defer rows.Close()

	var out []core.ExpenseEntry
	for rows.Next() {
		var e core.ExpenseEntry
		if err := rows.Scan(&e.ID, &e.Amount.Paise, &e.Category, &e.Description,
			&e.PartnerName, &e.PartnerPhone, &e.RawMessage, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkSynced marks an expense as mirrored to the audit ledger.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET sync_status = ?, synced_at = ? WHERE id = ?`,
		SyncDone, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark expense synced: %w", err)
	}
	slog.InfoContext(ctx, "Expense marked as synced", "id", id)
	return nil
}

// MarkSyncError flags an expense whose mirror attempt failed. The periodic
// sweep does not retry errored rows automatically; they stay visible for
// operator attention.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET sync_status = ? WHERE id = ?`, SyncError, id)
	if err != nil {
		return fmt.Errorf("mark expense sync error: %w", err)
	}
	slog.WarnContext(ctx, "Expense marked with sync error", "id", id)
	return nil
}
