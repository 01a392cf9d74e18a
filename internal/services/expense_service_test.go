package services

import (
	"context"
	"path/filepath"
	"testing"

	"khata/internal/core"
	"khata/internal/engine"
	"khata/internal/storage"
)

func TestRecordExpenseWithoutAMQP(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "khata.db"))
	if err != nil {
		t.Fatalf("repository: %v", err)
	}
	svc := NewExpenseService(repo, nil)
	defer svc.Close()

	exp := engine.Expense{
		Amount:      core.Money{Paise: 500000},
		Category:    engine.CategoryRent,
		Description: "Paid 5000 rent",
		PartnerName: "Asha",
	}
	id, err := svc.RecordExpense(context.Background(), exp, "+91111", "Paid 5000 rent")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if id != 1 {
		t.Fatalf("id = %d, want 1", id)
	}

	got, err := repo.GetExpense(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Category != "rent" || got.RawMessage != "Paid 5000 rent" || got.PartnerPhone != "+91111" {
		t.Fatalf("stored entry = %+v", got)
	}
}

func TestCloseWithNilComponents(t *testing.T) {
	svc := &ExpenseService{}
	if err := svc.Close(); err != nil {
		t.Fatalf("Close with nil components: %v", err)
	}
}
