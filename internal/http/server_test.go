package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"khata/internal/core"
	"khata/internal/engine"
)

type stubRegistry struct {
	mu       sync.Mutex
	partners map[string]string
}

func newStubRegistry() *stubRegistry {
	return &stubRegistry{partners: make(map[string]string)}
}

func (s *stubRegistry) LookupPartner(_ context.Context, senderID string) (*core.Partner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.partners[senderID]
	if !ok {
		return nil, nil
	}
	return &core.Partner{Phone: senderID, Name: name}, nil
}

func (s *stubRegistry) UpsertPartner(_ context.Context, senderID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partners[senderID] = name
	return nil
}

type stubRecorder struct {
	mu     sync.Mutex
	nextID int64
	calls  []engine.Expense
	err    error
}

func (s *stubRecorder) RecordExpense(_ context.Context, exp engine.Expense, phone, raw string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.nextID++
	s.calls = append(s.calls, exp)
	return s.nextID, nil
}

type stubReader struct {
	entries []core.ExpenseEntry
}

func (s *stubReader) ListExpenses(_ context.Context, limit int) ([]core.ExpenseEntry, error) {
	if limit > 0 && limit < len(s.entries) {
		return s.entries[:limit], nil
	}
	return s.entries, nil
}

func (s *stubReader) CategorySummary(_ context.Context) ([]core.CategoryTotal, error) {
	totals := map[string]*core.CategoryTotal{}
	var order []string
	for _, e := range s.entries {
		t, ok := totals[e.Category]
		if !ok {
			t = &core.CategoryTotal{Category: e.Category}
			totals[e.Category] = t
			order = append(order, e.Category)
		}
		t.Total.Paise += e.Amount.Paise
		t.Count++
	}
	out := make([]core.CategoryTotal, 0, len(order))
	for _, c := range order {
		out = append(out, *totals[c])
	}
	return out, nil
}

func (s *stubReader) PartnerSummary(_ context.Context) ([]core.PartnerTotal, error) {
	totals := map[string]*core.PartnerTotal{}
	var order []string
	for _, e := range s.entries {
		t, ok := totals[e.PartnerName]
		if !ok {
			t = &core.PartnerTotal{PartnerName: e.PartnerName}
			totals[e.PartnerName] = t
			order = append(order, e.PartnerName)
		}
		t.Total.Paise += e.Amount.Paise
		t.Count++
	}
	out := make([]core.PartnerTotal, 0, len(order))
	for _, p := range order {
		out = append(out, *totals[p])
	}
	return out, nil
}

func (s *stubReader) Totals(_ context.Context) (core.Money, int64, error) {
	var total core.Money
	for _, e := range s.entries {
		total.Paise += e.Amount.Paise
	}
	return total, int64(len(s.entries)), nil
}

func newTestServer(t *testing.T) (*Server, *stubRegistry, *stubRecorder) {
	t.Helper()
	registry := newStubRegistry()
	recorder := &stubRecorder{}
	reader := &stubReader{entries: []core.ExpenseEntry{
		{
			ID:           1,
			Amount:       core.Money{Paise: 500000},
			Category:     "rent",
			Description:  "Paid 5000 rent",
			PartnerName:  "Asha",
			PartnerPhone: "+911111",
			RawMessage:   "Paid 5000 rent",
			CreatedAt:    time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			ID:           2,
			Amount:       core.Money{Paise: 30000},
			Category:     "travel",
			Description:  "Travel 300 auto",
			PartnerName:  "Rahul",
			PartnerPhone: "+912222",
			RawMessage:   "Travel 300 auto",
			CreatedAt:    time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC),
		},
	}}

	srv := NewServer(":0", nil, engine.New(registry), recorder, reader)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv, registry, recorder
}

func postWebhook(srv *Server, body, from string) *httptest.ResponseRecorder {
	form := url.Values{}
	form.Set("Body", body)
	form.Set("From", from)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestWebhookRegistrationAndExpense(t *testing.T) {
	srv, _, recorder := newTestServer(t)

	rr := postWebhook(srv, "register Rahul", "whatsapp:+911234")
	if rr.Code != http.StatusOK {
		t.Fatalf("register status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/xml") {
		t.Fatalf("content type = %q", ct)
	}
	if !strings.Contains(rr.Body.String(), "Welcome Rahul!") {
		t.Fatalf("register reply = %q", rr.Body.String())
	}

	rr = postWebhook(srv, "Paid 5000 rent", "whatsapp:+911234")
	if rr.Code != http.StatusOK {
		t.Fatalf("expense status = %d", rr.Code)
	}
	respBody := rr.Body.String()
	if !strings.Contains(respBody, "<Response>") || !strings.Contains(respBody, "<Message>") {
		t.Fatalf("reply is not TwiML: %q", respBody)
	}
	if !strings.Contains(respBody, "Recorded #1") || !strings.Contains(respBody, "5,000.00") {
		t.Fatalf("expense reply = %q", respBody)
	}

	if len(recorder.calls) != 1 {
		t.Fatalf("recorded calls = %d, want 1", len(recorder.calls))
	}
	if recorder.calls[0].Category != engine.CategoryRent {
		t.Fatalf("recorded category = %q", recorder.calls[0].Category)
	}
}

func TestWebhookUnregisteredSender(t *testing.T) {
	srv, _, recorder := newTestServer(t)

	rr := postWebhook(srv, "Paid 5000 rent", "whatsapp:+919999")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "register YourName") {
		t.Fatalf("reply = %q", rr.Body.String())
	}
	if len(recorder.calls) != 0 {
		t.Fatalf("unexpected recorded expense for unregistered sender")
	}
}

func TestWebhookParseError(t *testing.T) {
	srv, registry, _ := newTestServer(t)
	registry.partners["+911234"] = "Rahul"

	rr := postWebhook(srv, "no numbers here", "whatsapp:+911234")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Could not find an amount") {
		t.Fatalf("reply = %q", rr.Body.String())
	}
}

func TestWebhookStorageFailure(t *testing.T) {
	srv, registry, recorder := newTestServer(t)
	registry.partners["+911234"] = "Rahul"
	recorder.err = context.DeadlineExceeded

	rr := postWebhook(srv, "Paid 5000 rent", "whatsapp:+911234")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Could not save your expense") {
		t.Fatalf("reply = %q", rr.Body.String())
	}
}

func TestWebhookRejectsBadRequests(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET status = %d, want 405", rr.Code)
	}

	rr = postWebhook(srv, "Paid 5000 rent", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing sender status = %d, want 400", rr.Code)
	}
}

func TestDashboardAndHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("index status = %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Partnership Expenses") || !strings.Contains(body, "Paid 5000 rent") {
		t.Fatalf("index body missing dashboard content")
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		srv.Handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rr.Code)
		}
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "khata_http_requests_total") {
		t.Fatalf("metrics status = %d body = %q", rr.Code, rr.Body.String())
	}
}

func TestExportCSV(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/export", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type = %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("csv lines = %d, want header + 2 rows", len(lines))
	}
	if !strings.HasPrefix(lines[0], "ID,Date,Amount,Category,Description,Partner,Phone") {
		t.Fatalf("csv header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "5,000.00") {
		t.Fatalf("csv row = %q", lines[1])
	}
}

func TestAPISummary(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/summary", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var resp struct {
		TotalPaise int64 `json:"total_paise"`
		Count      int64 `json:"count"`
		ByCategory []struct {
			Category string `json:"category"`
			Label    string `json:"label"`
		} `json:"by_category"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TotalPaise != 530000 || resp.Count != 2 {
		t.Fatalf("summary = %+v", resp)
	}
	if len(resp.ByCategory) != 2 || resp.ByCategory[0].Label != "Rent" {
		t.Fatalf("categories = %+v", resp.ByCategory)
	}
}

func TestAPIExpenses(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/expenses?limit=1", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var resp struct {
		Expenses []apiExpense `json:"expenses"`
		Count    int          `json:"count"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || len(resp.Expenses) != 1 {
		t.Fatalf("expenses = %+v", resp)
	}
	if resp.Expenses[0].AmountPaise != 500000 {
		t.Fatalf("amount = %d", resp.Expenses[0].AmountPaise)
	}
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		want       string
	}{
		{"direct", "203.0.113.7:1234", "", "203.0.113.7"},
		{"trusted proxy honors xff", "127.0.0.1:1234", "198.51.100.9", "198.51.100.9"},
		{"untrusted peer ignores xff", "203.0.113.7:1234", "198.51.100.9", "203.0.113.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := extractClientIP(req); got != tt.want {
				t.Errorf("extractClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
