// Package memory provides an in-memory ledger used in tests and when no
// spreadsheet is configured.
package memory

import (
	"context"
	"sync"

	"khata/internal/core"
)

type Store struct {
	mu      sync.Mutex
	entries []core.ExpenseEntry
}

func New() *Store {
	return &Store{}
}

// Append stores the entry.
func (s *Store) Append(_ context.Context, e core.ExpenseEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

// Entries returns a snapshot of everything appended so far.
func (s *Store) Entries() []core.ExpenseEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.ExpenseEntry(nil), s.entries...)
}
