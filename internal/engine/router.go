package engine

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"khata/internal/core"
)

// PartnerRegistry is the engine's view of partner persistence. Lookup returns
// nil without error when the sender is unknown. UpsertPartner must be
// create-or-overwrite as a single atomic operation; the engine adds no
// locking of its own.
type PartnerRegistry interface {
	LookupPartner(ctx context.Context, senderID string) (*core.Partner, error)
	UpsertPartner(ctx context.Context, senderID, name string) error
}

// Engine routes each inbound message to exactly one Result. It holds no
// per-sender state between calls: registration status is re-read from the
// registry on every message.
type Engine struct {
	registry PartnerRegistry
}

func New(registry PartnerRegistry) *Engine {
	return &Engine{registry: registry}
}

const registerCommand = "register"

const amountNotFoundReason = "Could not find an amount in your message."

// Process interprets one inbound message and returns its Result. It never
// returns an error: registry failures degrade (lookup failure reads as
// unregistered, upsert failure as a failed registration) so the caller always
// has a reply to send.
func (e *Engine) Process(ctx context.Context, in core.IncomingMessage) Result {
	msg := strings.TrimSpace(in.Body)

	// Registration commands are honored regardless of current registration
	// state: re-registering overwrites the stored name.
	if name, isCommand := splitRegisterCommand(msg); isCommand {
		if name == "" {
			return Result{Outcome: OutcomeRegistration, Registration: Registration{Success: false}}
		}
		if err := e.registry.UpsertPartner(ctx, in.SenderID, name); err != nil {
			slog.ErrorContext(ctx, "Partner upsert failed", "sender", in.SenderID, "error", err)
			return Result{Outcome: OutcomeRegistration, Registration: Registration{Success: false}}
		}
		return Result{Outcome: OutcomeRegistration, Registration: Registration{Success: true, Name: name}}
	}

	partner, err := e.registry.LookupPartner(ctx, in.SenderID)
	if err != nil {
		slog.WarnContext(ctx, "Partner lookup failed, treating sender as unregistered",
			"sender", in.SenderID, "error", err)
		partner = nil
	}
	if partner == nil {
		return Result{Outcome: OutcomeUnregistered}
	}

	amount, ok := ExtractAmount(msg)
	if !ok {
		return Result{Outcome: OutcomeParseError, Reason: amountNotFoundReason}
	}

	return Result{
		Outcome: OutcomeExpense,
		Expense: Expense{
			Amount:      amount,
			Category:    Classify(msg),
			Description: msg,
			PartnerName: partner.Name,
		},
	}
}

// splitRegisterCommand reports whether the trimmed message starts with the
// register command word, and if so returns the remainder as the display name
// (empty when no name token follows).
func splitRegisterCommand(msg string) (name string, isCommand bool) {
	if msg == "" {
		return "", false
	}
	end := strings.IndexFunc(msg, unicode.IsSpace)
	first := msg
	rest := ""
	if end >= 0 {
		first = msg[:end]
		rest = msg[end:]
	}
	if !strings.EqualFold(first, registerCommand) {
		return "", false
	}
	return strings.TrimSpace(rest), true
}
