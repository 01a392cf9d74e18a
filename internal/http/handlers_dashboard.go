package http

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"khata/internal/engine"
	applog "khata/internal/log"
)

const dashboardCacheKey = "dashboard"

const recentExpensesLimit = 20

type categoryRow struct {
	Label  string
	Amount string
	Count  int64
	Width  int
}

type partnerRow struct {
	Name   string
	Amount string
	Count  int64
}

type expenseRow struct {
	ID          int64
	Date        string
	Amount      string
	Category    string
	Description string
	Partner     string
}

// dashboardData is the read model rendered by the index template.
type dashboardData struct {
	Total      string
	Count      int64
	ByCategory []categoryRow
	ByPartner  []partnerRow
	Recent     []expenseRow
}

func (s *Server) invalidateDashboard() {
	s.dashboardCache.Delete(dashboardCacheKey)
}

func (s *Server) loadDashboard(ctx context.Context) (dashboardData, error) {
	if data, found := s.dashboardCache.Get(dashboardCacheKey); found {
		return data, nil
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	total, count, err := s.reader.Totals(cctx)
	if err != nil {
		return dashboardData{}, err
	}
	byCategory, err := s.reader.CategorySummary(cctx)
	if err != nil {
		return dashboardData{}, err
	}
	byPartner, err := s.reader.PartnerSummary(cctx)
	if err != nil {
		return dashboardData{}, err
	}
	recent, err := s.reader.ListExpenses(cctx, recentExpensesLimit)
	if err != nil {
		return dashboardData{}, err
	}

	data := dashboardData{
		Total: total.Format(),
		Count: count,
	}

	var maxPaise int64
	for _, c := range byCategory {
		if c.Total.Paise > maxPaise {
			maxPaise = c.Total.Paise
		}
	}
	for _, c := range byCategory {
		width := 0
		if maxPaise > 0 && c.Total.Paise > 0 {
			width = int((c.Total.Paise*100 + maxPaise/2) / maxPaise) // rounded percent
			if width < 2 {
				width = 2
			}
			if width > 100 {
				width = 100
			}
		}
		data.ByCategory = append(data.ByCategory, categoryRow{
			Label:  engine.Category(c.Category).Label(),
			Amount: c.Total.Format(),
			Count:  c.Count,
			Width:  width,
		})
	}
	for _, p := range byPartner {
		data.ByPartner = append(data.ByPartner, partnerRow{
			Name:   p.PartnerName,
			Amount: p.Total.Format(),
			Count:  p.Count,
		})
	}
	for _, e := range recent {
		data.Recent = append(data.Recent, expenseRow{
			ID:          e.ID,
			Date:        e.CreatedAt.Format("02 Jan 2006 15:04"),
			Amount:      e.Amount.Format(),
			Category:    engine.Category(e.Category).Label(),
			Description: e.Description,
			Partner:     e.PartnerName,
		})
	}

	s.dashboardCache.Set(dashboardCacheKey, data)
	return data, nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if s.templates == nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded")
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	data, err := s.loadDashboard(r.Context())
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Dashboard load error", applog.FieldError, err.Error())
		http.Error(w, "dashboard unavailable", http.StatusInternalServerError)
		return
	}

	if err := s.templates.ExecuteTemplate(w, "dashboard.html", data); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Dashboard template execution failed", applog.FieldError, err.Error())
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleExport streams every expense as a CSV download.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entries, err := s.reader.ListExpenses(ctx, 0)
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Export query failed", applog.FieldError, err.Error(), applog.FieldOperation, applog.OpExport)
		http.Error(w, "export unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="expenses-`+time.Now().Format("2006-01-02")+`.csv"`)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"ID", "Date", "Amount", "Category", "Description", "Partner", "Phone"})
	for _, e := range entries {
		_ = cw.Write([]string{
			strconv.FormatInt(e.ID, 10),
			e.CreatedAt.Format(time.RFC3339),
			e.Amount.Format(),
			engine.Category(e.Category).Label(),
			e.Description,
			e.PartnerName,
			e.PartnerPhone,
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Export write failed", applog.FieldError, err.Error(), applog.FieldOperation, applog.OpExport)
	}
}

type apiExpense struct {
	ID          int64   `json:"id"`
	AmountPaise int64   `json:"amount_paise"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Partner     string  `json:"partner"`
	Phone       string  `json:"phone"`
	CreatedAt   string  `json:"created_at"`
}

func (s *Server) handleAPIExpenses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	entries, err := s.reader.ListExpenses(ctx, limit)
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Expense list query failed", applog.FieldError, err.Error())
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}

	out := make([]apiExpense, 0, len(entries))
	for _, e := range entries {
		out = append(out, apiExpense{
			ID:          e.ID,
			AmountPaise: e.Amount.Paise,
			Amount:      e.Amount.Rupees(),
			Category:    e.Category,
			Description: e.Description,
			Partner:     e.PartnerName,
			Phone:       e.PartnerPhone,
			CreatedAt:   e.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, map[string]any{"expenses": out, "count": len(out)})
}

type apiCategoryTotal struct {
	Category   string  `json:"category"`
	Label      string  `json:"label"`
	TotalPaise int64   `json:"total_paise"`
	Total      float64 `json:"total"`
	Count      int64   `json:"count"`
}

type apiPartnerTotal struct {
	Partner    string  `json:"partner"`
	TotalPaise int64   `json:"total_paise"`
	Total      float64 `json:"total"`
	Count      int64   `json:"count"`
}

func (s *Server) handleAPISummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	total, count, err := s.reader.Totals(ctx)
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Summary totals query failed", applog.FieldError, err.Error())
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	byCategory, err := s.reader.CategorySummary(ctx)
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Summary category query failed", applog.FieldError, err.Error())
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	byPartner, err := s.reader.PartnerSummary(ctx)
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Summary partner query failed", applog.FieldError, err.Error())
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}

	cats := make([]apiCategoryTotal, 0, len(byCategory))
	for _, c := range byCategory {
		cats = append(cats, apiCategoryTotal{
			Category:   c.Category,
			Label:      engine.Category(c.Category).Label(),
			TotalPaise: c.Total.Paise,
			Total:      c.Total.Rupees(),
			Count:      c.Count,
		})
	}
	partners := make([]apiPartnerTotal, 0, len(byPartner))
	for _, p := range byPartner {
		partners = append(partners, apiPartnerTotal{
			Partner:    p.PartnerName,
			TotalPaise: p.Total.Paise,
			Total:      p.Total.Rupees(),
			Count:      p.Count,
		})
	}

	writeJSON(w, map[string]any{
		"total_paise": total.Paise,
		"total":       total.Rupees(),
		"count":       count,
		"by_category": cats,
		"by_partner":  partners,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}
