package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tillerstead/tillerpro/internal/pricing"
)

var printer = message.NewPrinter(language.English)

type quoteListItem struct {
	ID        int64
	CreatedAt string
	Title     string
	Total     float64
}

type quotesViewData struct {
	baseViewData
	Query  string
	Quotes []quoteListItem
}

// quoteDetail is a stored quote. It is read back as saved and never
// recalculated against current prices.
type quoteDetail struct {
	ID        int64
	SessionID string
	CreatedAt string
	Title     string
	Notes     string
	Currency  string
	Lines     []pricing.LineItem
	Breakdown pricing.Breakdown
	Totals    pricing.Totals
}

type quoteDetailViewData struct {
	baseViewData
	Quote quoteDetail
}

type quoteFormValues struct {
	SessionID string
	Title     string
	Notes     string
}

type quoteRequest struct {
	Title string `json:"title"`
	Notes string `json:"notes"`
}

type quoteResponse struct {
	ID       int64          `json:"id"`
	Currency string         `json:"currency"`
	Result   pricing.Result `json:"result"`
}

func (s *server) handleQuotesList(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	quotes, err := s.listQuotes(r.Context(), query)
	if err != nil {
		s.log.Error("list quotes", zap.Error(err))
		http.Error(w, "failed to load quotes", http.StatusInternalServerError)
		return
	}

	s.renderTemplate(w, "quotes.html", quotesViewData{
		Query:  query,
		Quotes: quotes,
	})
}

// handleQuoteCreate turns a session's current budget into a stored quote.
func (s *server) handleQuoteCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	values, err := parseQuoteFormValues(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		quotes, _ := s.listQuotes(r.Context(), "")
		s.renderTemplate(w, "quotes.html", quotesViewData{baseViewData: baseViewData{ErrorMessage: err.Error()}, Quotes: quotes})
		return
	}

	ps, err := s.sessions.Get(r.Context(), values.SessionID)
	if errors.Is(err, errSessionNotFound) {
		w.WriteHeader(http.StatusNotFound)
		quotes, _ := s.listQuotes(r.Context(), "")
		s.renderTemplate(w, "quotes.html", quotesViewData{baseViewData: baseViewData{ErrorMessage: "No project session with that id."}, Quotes: quotes})
		return
	}
	if err != nil {
		http.Error(w, "failed to load session", http.StatusInternalServerError)
		return
	}

	ps.mu.Lock()
	id, _, err := s.createQuote(r.Context(), ps, values.Title, values.Notes)
	ps.mu.Unlock()
	if err != nil {
		s.log.Error("create quote", zap.Error(err))
		http.Error(w, "failed to create quote", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/quotes/"+strconv.FormatInt(id, 10), http.StatusSeeOther)
}

func (s *server) handleSessionQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "body must be a JSON object")
			return
		}
	}

	s.withSession(w, r, func(ps *projectSession) {
		id, result, err := s.createQuote(r.Context(), ps, strings.TrimSpace(req.Title), strings.TrimSpace(req.Notes))
		if err != nil {
			s.log.Error("create quote", zap.String("session", ps.id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to create quote")
			return
		}
		writeJSON(w, http.StatusCreated, quoteResponse{ID: id, Currency: s.currencyOf(ps), Result: result})
	})
}

// createQuote prices the session with current rates and stores the result.
// Caller holds ps.mu.
func (s *server) createQuote(ctx context.Context, ps *projectSession, title, notes string) (int64, pricing.Result, error) {
	budget := ps.calc.Budget()
	if budget == nil {
		return 0, pricing.Result{}, fmt.Errorf("session %s has no price catalog", ps.id)
	}
	if rates, err := s.getRateConfig(ctx); err == nil {
		budget.SetRates(rates)
	}
	result := budget.Estimate()

	if title == "" {
		title = ps.state.String("project.name")
	}
	lines, err := json.Marshal(result.Lines)
	if err != nil {
		return 0, pricing.Result{}, fmt.Errorf("encode quote lines: %w", err)
	}
	breakdown, err := json.Marshal(result.Breakdown)
	if err != nil {
		return 0, pricing.Result{}, fmt.Errorf("encode quote breakdown: %w", err)
	}
	totals, err := json.Marshal(result.Totals)
	if err != nil {
		return 0, pricing.Result{}, fmt.Errorf("encode quote totals: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO quotes (session_id, created_at, title, notes, lines_json, breakdown_json, totals_json, currency)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, ps.id, s.now().UTC().Format("2006-01-02 15:04:05"), title, notes,
		string(lines), string(breakdown), string(totals), s.currencyOf(ps))
	if err != nil {
		return 0, pricing.Result{}, fmt.Errorf("insert quote: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, pricing.Result{}, fmt.Errorf("read quote id: %w", err)
	}

	if err := s.sessions.persist(ctx, ps); err != nil {
		s.log.Warn("save snapshot after quote", zap.String("session", ps.id), zap.Error(err))
	}
	return id, result, nil
}

func (s *server) currencyOf(ps *projectSession) string {
	if c := ps.state.String("budget.total.currency"); c != "" {
		return c
	}
	if c := ps.state.String("preferences.currency"); c != "" {
		return c
	}
	return "USD"
}

func (s *server) handleQuoteDetail(w http.ResponseWriter, r *http.Request) {
	detail, ok := s.loadQuoteDetail(w, r)
	if !ok {
		return
	}
	s.renderTemplate(w, "quote_detail.html", quoteDetailViewData{Quote: detail})
}

func (s *server) handleQuoteText(w http.ResponseWriter, r *http.Request) {
	detail, ok := s.loadQuoteDetail(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, formatQuoteText(detail))
}

func (s *server) loadQuoteDetail(w http.ResponseWriter, r *http.Request) (quoteDetail, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid quote id", http.StatusBadRequest)
		return quoteDetail{}, false
	}
	detail, err := s.getQuoteDetail(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		http.NotFound(w, r)
		return quoteDetail{}, false
	}
	if err != nil {
		s.log.Error("load quote", zap.Int64("id", id), zap.Error(err))
		http.Error(w, "failed to load quote", http.StatusInternalServerError)
		return quoteDetail{}, false
	}
	return detail, true
}

func formatQuoteText(q quoteDetail) string {
	var b strings.Builder
	title := q.Title
	if title == "" {
		title = fmt.Sprintf("Quote #%d", q.ID)
	}
	fmt.Fprintf(&b, "%s\n", title)
	fmt.Fprintf(&b, "Date: %s\n", q.CreatedAt)
	if q.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", q.Notes)
	}

	b.WriteString("\nMaterials:\n")
	for _, l := range q.Lines {
		b.WriteString(printer.Sprintf("- %s: %v %s x %.2f = %.2f\n", l.Description, l.Quantity, l.Unit, l.UnitPrice, l.Amount()))
	}

	bd := q.Breakdown
	b.WriteString("\nBreakdown:\n")
	b.WriteString(printer.Sprintf("Materials: %.2f\n", bd.MaterialCost))
	b.WriteString(printer.Sprintf("Labor: %.2f\n", bd.LaborCost))
	b.WriteString(printer.Sprintf("Overhead: %.2f\n", bd.Overhead))
	b.WriteString(printer.Sprintf("Contingency: %.2f\n", bd.Contingency))
	b.WriteString(printer.Sprintf("Delivery: %.2f\n", bd.DeliveryFee))
	b.WriteString(printer.Sprintf("Margin: %.2f\n", bd.Margin))
	b.WriteString(printer.Sprintf("Tax: %.2f\n", bd.Tax))
	b.WriteString(printer.Sprintf("\nTotal: %.2f %s\n", q.Totals.Total, q.Currency))
	return b.String()
}

func parseQuoteFormValues(r *http.Request) (quoteFormValues, error) {
	values := quoteFormValues{
		SessionID: strings.TrimSpace(r.FormValue("session_id")),
		Title:     strings.TrimSpace(r.FormValue("title")),
		Notes:     strings.TrimSpace(r.FormValue("notes")),
	}
	if values.SessionID == "" {
		return values, fmt.Errorf("session_id is required")
	}
	if _, err := uuid.Parse(values.SessionID); err != nil {
		return values, fmt.Errorf("session_id must be a session UUID")
	}
	if len(values.Title) > 200 {
		return values, fmt.Errorf("title must be 200 characters or fewer")
	}
	return values, nil
}

func (s *server) listQuotes(ctx context.Context, query string) ([]quoteListItem, error) {
	search := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			id,
			created_at,
			COALESCE(title, ''),
			totals_json
		FROM quotes
		WHERE (? = '' OR COALESCE(title, '') LIKE ? OR COALESCE(notes, '') LIKE ?)
		ORDER BY datetime(created_at) DESC, id DESC
	`, query, search, search)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	quotes := make([]quoteListItem, 0)
	for rows.Next() {
		var item quoteListItem
		var createdAt any
		var totalsJSON string
		if err := rows.Scan(&item.ID, &createdAt, &item.Title, &totalsJSON); err != nil {
			return nil, err
		}
		item.CreatedAt = formatCreatedAt(createdAt)
		item.Total = extractTotalFromJSON(totalsJSON)
		quotes = append(quotes, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return quotes, nil
}

func (s *server) getQuoteDetail(ctx context.Context, id int64) (quoteDetail, error) {
	var (
		d                                  quoteDetail
		createdAt                          any
		linesJSON, breakdownJSON, totalsJS string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, created_at, COALESCE(title, ''), COALESCE(notes, ''),
			lines_json, breakdown_json, totals_json, currency
		FROM quotes
		WHERE id = ?
	`, id).Scan(&d.ID, &d.SessionID, &createdAt, &d.Title, &d.Notes, &linesJSON, &breakdownJSON, &totalsJS, &d.Currency)
	if err != nil {
		return quoteDetail{}, fmt.Errorf("query quote %d: %w", id, err)
	}
	d.CreatedAt = formatCreatedAt(createdAt)

	if err := json.Unmarshal([]byte(linesJSON), &d.Lines); err != nil {
		return quoteDetail{}, fmt.Errorf("decode quote lines: %w", err)
	}
	if err := json.Unmarshal([]byte(breakdownJSON), &d.Breakdown); err != nil {
		return quoteDetail{}, fmt.Errorf("decode quote breakdown: %w", err)
	}
	d.Totals.Total = extractTotalFromJSON(totalsJS)
	return d, nil
}

// formatCreatedAt normalizes DATETIME values, which the driver may return as
// time.Time or text.
func formatCreatedAt(v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format("2006-01-02 15:04")
	case string:
		return t
	case []byte:
		return string(t)
	}
	return ""
}

func extractTotalFromJSON(totalsJSON string) float64 {
	var values map[string]any
	if err := json.Unmarshal([]byte(totalsJSON), &values); err != nil {
		return 0
	}

	for _, key := range []string{"total", "grand_total", "estimate"} {
		if total, ok := values[key].(float64); ok {
			return total
		}
	}

	return 0
}
