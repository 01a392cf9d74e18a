package memory

import (
	"context"
	"testing"

	"khata/internal/core"
)

func TestAppendAndSnapshot(t *testing.T) {
	s := New()
	e := core.ExpenseEntry{
		ID:           1,
		Amount:       core.Money{Paise: 500000},
		Category:     "rent",
		Description:  "Paid 5000 rent",
		PartnerName:  "Asha",
		PartnerPhone: "+91111",
	}
	if err := s.Append(context.Background(), e); err != nil {
		t.Fatalf("append: %v", err)
	}

	got := s.Entries()
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("entries = %+v", got)
	}

	// Snapshot is a copy.
	got[0].Description = "mutated"
	if s.Entries()[0].Description != "Paid 5000 rent" {
		t.Fatal("snapshot aliases internal storage")
	}
}

func TestAppendRejectsInvalid(t *testing.T) {
	s := New()
	err := s.Append(context.Background(), core.ExpenseEntry{Category: "rent"})
	if err == nil {
		t.Fatal("invalid entry accepted")
	}
	if len(s.Entries()) != 0 {
		t.Fatal("invalid entry stored")
	}
}
