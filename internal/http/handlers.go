package http

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"khata/internal/core"
	"khata/internal/engine"
	applog "khata/internal/log"
)

// twimlResponse is the Twilio messaging reply envelope.
type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

func writeTwiML(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	_, _ = w.Write([]byte(xml.Header))
	enc := xml.NewEncoder(w)
	_ = enc.Encode(twimlResponse{Message: text})
	_ = enc.Close()
}

// handleWebhook receives inbound WhatsApp messages from Twilio, runs them
// through the interpretation engine, and answers with a TwiML reply.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := applog.FromContext(ctx)

	if err := r.ParseForm(); err != nil {
		logger.ErrorContext(ctx, "Webhook form parse error", applog.FieldError, err.Error())
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}

	msg := core.IncomingMessage{
		Body:     r.Form.Get("Body"),
		SenderID: strings.TrimPrefix(strings.TrimSpace(r.Form.Get("From")), "whatsapp:"),
	}
	if msg.SenderID == "" {
		logger.WarnContext(ctx, "Webhook request without sender")
		http.Error(w, "missing sender", http.StatusBadRequest)
		return
	}

	atomic.AddInt64(&s.metrics.webhookMessages, 1)

	res := s.processor.Process(ctx, msg)

	var expenseID int64
	if res.Outcome == engine.OutcomeExpense {
		id, err := s.recorder.RecordExpense(ctx, res.Expense, msg.SenderID, msg.Body)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to record expense",
				applog.FieldError, err.Error(),
				applog.FieldSender, msg.SenderID)
			writeTwiML(w, storageErrorReply)
			return
		}
		expenseID = id
		atomic.AddInt64(&s.metrics.expensesRecorded, 1)
		s.invalidateDashboard()

		logger.InfoContext(ctx, "Expense recorded",
			applog.FieldExpenseID, id,
			applog.FieldAmountPaise, res.Expense.Amount.Paise,
			applog.FieldCategory, string(res.Expense.Category),
			applog.FieldPartner, res.Expense.PartnerName)
	} else {
		logger.InfoContext(ctx, "Message processed",
			applog.FieldOutcome, res.Outcome.String(),
			applog.FieldSender, msg.SenderID)
	}

	writeTwiML(w, RenderReply(res, expenseID))
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports ready only when the storage read path answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.reader == nil {
		http.Error(w, "storage not configured", http.StatusServiceUnavailable)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if _, _, err := s.reader.Totals(ctx); err != nil {
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleMetrics exposes request counters in a plain text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "khata_uptime_seconds %d\n", int64(time.Since(s.startedAt).Seconds()))
	fmt.Fprintf(w, "khata_http_requests_total %d\n", atomic.LoadInt64(&s.metrics.requestsTotal))
	fmt.Fprintf(w, "khata_webhook_messages_total %d\n", atomic.LoadInt64(&s.metrics.webhookMessages))
	fmt.Fprintf(w, "khata_expenses_recorded_total %d\n", atomic.LoadInt64(&s.metrics.expensesRecorded))
	fmt.Fprintf(w, "khata_rate_limit_hits_total %d\n", atomic.LoadInt64(&s.metrics.rateLimitHits))
	fmt.Fprintf(w, "khata_suspicious_requests_total %d\n", atomic.LoadInt64(&s.metrics.suspiciousRequests))
}
