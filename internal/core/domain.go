package core

import (
	"errors"
	"strings"
	"time"
)

type (
	// Money is a rupee amount held in paise to avoid floating-point drift.
	Money struct {
		Paise int64
	}

	// IncomingMessage is a single inbound chat message. Created once per
	// webhook request and discarded after processing.
	IncomingMessage struct {
		Body     string
		SenderID string
	}

	// Partner binds a sender identity (phone number) to a display name.
	Partner struct {
		Phone     string
		Name      string
		CreatedAt time.Time
	}

	// ExpenseEntry is a recorded expense as persisted in the ledger.
	ExpenseEntry struct {
		ID           int64
		Amount       Money
		Category     string
		Description  string
		PartnerName  string
		PartnerPhone string
		RawMessage   string
		CreatedAt    time.Time
	}

	// CategoryTotal aggregates spending for one category.
	CategoryTotal struct {
		Category string
		Total    Money
		Count    int64
	}

	// PartnerTotal aggregates spending for one partner.
	PartnerTotal struct {
		PartnerName string
		Total       Money
		Count       int64
	}

	// Summary is the firm-wide spending overview served by the read APIs.
	Summary struct {
		Total      Money
		Count      int64
		ByCategory []CategoryTotal
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyPhone       = errors.New("empty phone number")
	ErrEmptyName        = errors.New("empty partner name")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptyDescription = errors.New("empty description")
)

func (m Money) Validate() error {
	if m.Paise < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (p Partner) Validate() error {
	if strings.TrimSpace(p.Phone) == "" {
		return ErrEmptyPhone
	}
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (e ExpenseEntry) Validate() error {
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if strings.TrimSpace(e.Description) == "" {
		return ErrEmptyDescription
	}
	if len(e.Description) > 500 {
		return errors.New("description too long (max 500 characters)")
	}
	if strings.TrimSpace(e.PartnerPhone) == "" {
		return ErrEmptyPhone
	}
	return nil
}
