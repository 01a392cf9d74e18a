package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"khata/internal/core"
)

// fakeRegistry is an in-memory PartnerRegistry with switchable failures.
type fakeRegistry struct {
	mu         sync.Mutex
	partners   map[string]string
	lookupErr  error
	upsertErr  error
	upsertCall int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{partners: make(map[string]string)}
}

func (f *fakeRegistry) LookupPartner(_ context.Context, senderID string) (*core.Partner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	name, ok := f.partners[senderID]
	if !ok {
		return nil, nil
	}
	return &core.Partner{Phone: senderID, Name: name}, nil
}

func (f *fakeRegistry) UpsertPartner(_ context.Context, senderID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertCall++
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.partners[senderID] = name
	return nil
}

func inbound(body, sender string) core.IncomingMessage {
	return core.IncomingMessage{Body: body, SenderID: sender}
}

func TestProcessRegistration(t *testing.T) {
	ctx := context.Background()
	reg := newFakeRegistry()
	eng := New(reg)

	res := eng.Process(ctx, inbound("register Asha", "+911234567890"))
	if res.Outcome != OutcomeRegistration {
		t.Fatalf("outcome = %v, want registration", res.Outcome)
	}
	if !res.Registration.Success || res.Registration.Name != "Asha" {
		t.Fatalf("registration = %+v, want success with name Asha", res.Registration)
	}
	if reg.partners["+911234567890"] != "Asha" {
		t.Fatalf("registry holds %q, want Asha", reg.partners["+911234567890"])
	}

	// Re-registration overwrites the prior name without error.
	res = eng.Process(ctx, inbound("register Asha Verma", "+911234567890"))
	if !res.Registration.Success || res.Registration.Name != "Asha Verma" {
		t.Fatalf("re-registration = %+v, want success with name Asha Verma", res.Registration)
	}
	if reg.partners["+911234567890"] != "Asha Verma" {
		t.Fatalf("registry holds %q after overwrite, want Asha Verma", reg.partners["+911234567890"])
	}
}

func TestProcessRegistrationIdempotent(t *testing.T) {
	ctx := context.Background()
	reg := newFakeRegistry()
	eng := New(reg)

	for i := 0; i < 2; i++ {
		res := eng.Process(ctx, inbound("register Rahul", "+911111111111"))
		if !res.Registration.Success {
			t.Fatalf("attempt %d: registration failed", i+1)
		}
	}
	if reg.partners["+911111111111"] != "Rahul" {
		t.Fatalf("registry holds %q, want Rahul", reg.partners["+911111111111"])
	}
}

func TestProcessRegistrationMalformed(t *testing.T) {
	cases := []string{"register", "REGISTER", "  register  "}
	for _, in := range cases {
		reg := newFakeRegistry()
		res := New(reg).Process(context.Background(), inbound(in, "+91999"))
		if res.Outcome != OutcomeRegistration {
			t.Fatalf("Process(%q) outcome = %v, want registration", in, res.Outcome)
		}
		if res.Registration.Success {
			t.Fatalf("Process(%q) succeeded, want failure", in)
		}
		if reg.upsertCall != 0 {
			t.Fatalf("Process(%q) mutated the registry", in)
		}
	}
}

func TestProcessRegistrationCaseInsensitive(t *testing.T) {
	reg := newFakeRegistry()
	res := New(reg).Process(context.Background(), inbound("Register Meena", "+91888"))
	if !res.Registration.Success || res.Registration.Name != "Meena" {
		t.Fatalf("registration = %+v, want success with name Meena", res.Registration)
	}
}

func TestProcessUnregistered(t *testing.T) {
	reg := newFakeRegistry()
	eng := New(reg)

	// Even an expense-shaped message short-circuits before extraction.
	res := eng.Process(context.Background(), inbound("Paid 5000 rent", "+91777"))
	if res.Outcome != OutcomeUnregistered {
		t.Fatalf("outcome = %v, want unregistered", res.Outcome)
	}
}

func TestProcessExpense(t *testing.T) {
	ctx := context.Background()
	reg := newFakeRegistry()
	reg.partners["+91666"] = "Asha"
	eng := New(reg)

	res := eng.Process(ctx, inbound("Paid 5000 rent", "+91666"))
	if res.Outcome != OutcomeExpense {
		t.Fatalf("outcome = %v, want expense", res.Outcome)
	}
	exp := res.Expense
	if exp.Amount.Paise != 500000 {
		t.Errorf("amount = %d paise, want 500000", exp.Amount.Paise)
	}
	if exp.Category != CategoryRent {
		t.Errorf("category = %q, want rent", exp.Category)
	}
	if exp.Description != "Paid 5000 rent" {
		t.Errorf("description = %q, want the original message", exp.Description)
	}
	if exp.PartnerName != "Asha" {
		t.Errorf("partner = %q, want Asha", exp.PartnerName)
	}
}

func TestProcessParseError(t *testing.T) {
	reg := newFakeRegistry()
	reg.partners["+91555"] = "Rahul"

	res := New(reg).Process(context.Background(), inbound("paid for chai", "+91555"))
	if res.Outcome != OutcomeParseError {
		t.Fatalf("outcome = %v, want parse_error", res.Outcome)
	}
	if res.Reason == "" {
		t.Fatal("parse error carries no reason")
	}
}

func TestProcessRegistryFailures(t *testing.T) {
	t.Run("lookup failure reads as unregistered", func(t *testing.T) {
		reg := newFakeRegistry()
		reg.partners["+91444"] = "Asha"
		reg.lookupErr = errors.New("database locked")

		res := New(reg).Process(context.Background(), inbound("Paid 200 tea", "+91444"))
		if res.Outcome != OutcomeUnregistered {
			t.Fatalf("outcome = %v, want unregistered", res.Outcome)
		}
	})

	t.Run("upsert failure yields failed registration", func(t *testing.T) {
		reg := newFakeRegistry()
		reg.upsertErr = errors.New("database locked")

		res := New(reg).Process(context.Background(), inbound("register Asha", "+91333"))
		if res.Outcome != OutcomeRegistration || res.Registration.Success {
			t.Fatalf("result = %+v, want failed registration", res)
		}
	})
}
