package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tillerstead/tillerpro/internal/pricing"
)

type baseViewData struct {
	ErrorMessage   string
	SuccessMessage string
}

type loginViewData struct {
	baseViewData
}

type homeViewData struct {
	baseViewData
	Email        string
	ProductCount int
	QuoteCount   int
	Sessions     int
}

type ratesViewData struct {
	baseViewData
	Rates pricing.Rates
}

type product struct {
	ID     int64
	Key    string
	Name   string
	Unit   string
	Price  float64
	Active bool
}

type productsViewData struct {
	baseViewData
	Products []product
}

// loginLimiter throttles login attempts per client address. Addresses idle
// long enough for their bucket to refill are dropped.
type loginLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	idle      time.Duration
	now       func() time.Time
	lastSweep time.Time
	byIP      map[string]*ipLimiter
}

type ipLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

func newLoginLimiter(perSecond float64, burst int, now func() time.Time) *loginLimiter {
	if now == nil {
		now = time.Now
	}
	refill := time.Duration(float64(burst) / perSecond * float64(time.Second))
	return &loginLimiter{
		limit: rate.Limit(perSecond),
		burst: burst,
		idle:  max(refill, time.Minute),
		now:   now,
		byIP:  map[string]*ipLimiter{},
	}
}

func (l *loginLimiter) Allow(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	now := l.now()

	l.mu.Lock()
	if now.Sub(l.lastSweep) >= l.idle {
		l.sweep(now)
	}
	entry, ok := l.byIP[host]
	if !ok {
		entry = &ipLimiter{lim: rate.NewLimiter(l.limit, l.burst)}
		l.byIP[host] = entry
	}
	entry.seen = now
	l.mu.Unlock()
	return entry.lim.AllowN(now, 1)
}

// sweep drops idle addresses. Callers hold l.mu.
func (l *loginLimiter) sweep(now time.Time) {
	for host, e := range l.byIP {
		if now.Sub(e.seen) > l.idle {
			delete(l.byIP, host)
		}
	}
	l.lastSweep = now
}

func (l *loginLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byIP)
}

func (s *server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.auth.FromRequest(r); !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) handleHome(w http.ResponseWriter, r *http.Request) {
	email, _ := s.auth.FromRequest(r)
	data := homeViewData{Email: email}

	ctx := r.Context()
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products WHERE active = 1`).Scan(&data.ProductCount); err != nil {
		s.log.Warn("count products", zap.Error(err))
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM quotes`).Scan(&data.QuoteCount); err != nil {
		s.log.Warn("count quotes", zap.Error(err))
	}
	s.sessions.mu.Lock()
	data.Sessions = len(s.sessions.sessions)
	s.sessions.mu.Unlock()

	s.renderTemplate(w, "home.html", data)
}

func (s *server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.auth.FromRequest(r); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.renderTemplate(w, "login.html", loginViewData{})
}

func (s *server) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow(r.RemoteAddr) {
		w.WriteHeader(http.StatusTooManyRequests)
		s.renderTemplate(w, "login.html", loginViewData{baseViewData: baseViewData{ErrorMessage: "Too many attempts. Wait a minute and try again."}})
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	valid, err := s.auth.ValidateCredentials(r.Context(), email, r.FormValue("password"))
	if err != nil {
		s.log.Error("validate credentials", zap.Error(err))
		http.Error(w, "authentication error", http.StatusInternalServerError)
		return
	}
	if !valid {
		s.log.Info("login rejected", zap.String("email", email))
		w.WriteHeader(http.StatusUnauthorized)
		s.renderTemplate(w, "login.html", loginViewData{baseViewData: baseViewData{ErrorMessage: "Invalid email or password."}})
		return
	}

	s.auth.SetCookie(w, email)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.ClearCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *server) handleAdminRatesForm(w http.ResponseWriter, r *http.Request) {
	rates, err := s.getRateConfig(r.Context())
	if err != nil {
		http.Error(w, "failed to load rate config", http.StatusInternalServerError)
		return
	}
	s.renderTemplate(w, "admin_rates.html", ratesViewData{Rates: rates})
}

func (s *server) handleAdminRatesSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	rates, err := parseRateConfigForm(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		s.renderTemplate(w, "admin_rates.html", ratesViewData{
			baseViewData: baseViewData{ErrorMessage: err.Error()},
			Rates:        rates,
		})
		return
	}

	if err := s.updateRateConfig(r.Context(), rates); err != nil {
		http.Error(w, "failed to save rate config", http.StatusInternalServerError)
		return
	}

	s.renderTemplate(w, "admin_rates.html", ratesViewData{
		baseViewData: baseViewData{SuccessMessage: "Rates saved. New sessions use them immediately."},
		Rates:        rates,
	})
}

func (s *server) handleAdminProductsForm(w http.ResponseWriter, r *http.Request) {
	s.renderProducts(w, r, baseViewData{})
}

func (s *server) handleAdminProductsCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	p, err := parseProductForm(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		s.renderProducts(w, r, baseViewData{ErrorMessage: err.Error()})
		return
	}

	if _, err := s.db.ExecContext(r.Context(), `
		INSERT INTO products (key, name, unit, price, active)
		VALUES (?, ?, ?, ?, ?)
	`, p.Key, p.Name, p.Unit, p.Price, p.Active); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		s.renderProducts(w, r, baseViewData{ErrorMessage: fmt.Sprintf("could not add %s: key already exists", p.Key)})
		return
	}
	s.renderProducts(w, r, baseViewData{SuccessMessage: "Product added."})
}

func (s *server) handleAdminProductsUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid product id", http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	p, err := parseProductForm(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		s.renderProducts(w, r, baseViewData{ErrorMessage: err.Error()})
		return
	}

	res, err := s.db.ExecContext(r.Context(), `
		UPDATE products
		SET key = ?, name = ?, unit = ?, price = ?, active = ?
		WHERE id = ?
	`, p.Key, p.Name, p.Unit, p.Price, p.Active, id)
	if err != nil {
		http.Error(w, "failed to update product", http.StatusInternalServerError)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		http.NotFound(w, r)
		return
	}
	s.renderProducts(w, r, baseViewData{SuccessMessage: "Product updated."})
}

func (s *server) renderProducts(w http.ResponseWriter, r *http.Request, base baseViewData) {
	products, err := s.listProducts(r.Context())
	if err != nil {
		http.Error(w, "failed to load products", http.StatusInternalServerError)
		return
	}
	s.renderTemplate(w, "admin_products.html", productsViewData{baseViewData: base, Products: products})
}

func parseRateConfigForm(r *http.Request) (pricing.Rates, error) {
	rates := pricing.Rates{
		Currency:   strings.ToUpper(strings.TrimSpace(r.FormValue("currency"))),
		TaxEnabled: r.FormValue("tax_enabled") == "1",
	}
	if rates.Currency == "" {
		rates.Currency = "USD"
	}

	var err error
	if rates.LaborHourly, err = parsePositiveFloat(r.FormValue("labor_hourly"), "labor_hourly"); err != nil {
		return rates, err
	}
	if rates.OverheadFixed, err = parseNonNegativeFloat(r.FormValue("overhead_fixed"), "overhead_fixed"); err != nil {
		return rates, err
	}
	if rates.OverheadPercent, err = parsePercent(r.FormValue("overhead_percent"), "overhead_percent"); err != nil {
		return rates, err
	}
	if rates.ContingencyPercent, err = parsePercent(r.FormValue("contingency_percent"), "contingency_percent"); err != nil {
		return rates, err
	}
	if rates.MarginPercent, err = parsePercent(r.FormValue("margin_percent"), "margin_percent"); err != nil {
		return rates, err
	}
	if rates.TaxPercent, err = parsePercent(r.FormValue("tax_percent"), "tax_percent"); err != nil {
		return rates, err
	}
	if rates.DeliveryFee, err = parseNonNegativeFloat(r.FormValue("delivery_fee"), "delivery_fee"); err != nil {
		return rates, err
	}

	return rates, nil
}

func parseProductForm(r *http.Request) (product, error) {
	p := product{
		Key:    strings.TrimSpace(r.FormValue("key")),
		Name:   strings.TrimSpace(r.FormValue("name")),
		Unit:   strings.TrimSpace(r.FormValue("unit")),
		Active: r.FormValue("active") == "1",
	}
	if p.Key == "" {
		return p, fmt.Errorf("key is required")
	}
	if p.Name == "" {
		return p, fmt.Errorf("name is required")
	}
	if p.Unit == "" {
		return p, fmt.Errorf("unit is required")
	}

	var err error
	p.Price, err = parseNonNegativeFloat(r.FormValue("price"), "price")
	if err != nil {
		return p, err
	}
	return p, nil
}

func parseNonNegativeFloat(raw, field string) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", field)
	}
	if value < 0 {
		return 0, fmt.Errorf("%s must be 0 or more", field)
	}
	return value, nil
}

func parsePercent(raw, field string) (float64, error) {
	value, err := parseNonNegativeFloat(raw, field)
	if err != nil {
		return 0, err
	}
	if value > 100 {
		return 0, fmt.Errorf("%s must be between 0 and 100", field)
	}
	return value, nil
}

func parsePositiveFloat(raw, field string) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", field)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", field)
	}
	return value, nil
}

func (s *server) getRateConfig(ctx context.Context) (pricing.Rates, error) {
	var rc pricing.Rates
	err := s.db.QueryRowContext(ctx, `
		SELECT
			labor_hourly,
			overhead_fixed,
			overhead_percent,
			contingency_percent,
			margin_percent,
			tax_enabled,
			tax_percent,
			delivery_fee,
			currency
		FROM rate_config
		WHERE id = 1
	`).Scan(
		&rc.LaborHourly,
		&rc.OverheadFixed,
		&rc.OverheadPercent,
		&rc.ContingencyPercent,
		&rc.MarginPercent,
		&rc.TaxEnabled,
		&rc.TaxPercent,
		&rc.DeliveryFee,
		&rc.Currency,
	)
	if err != nil {
		return pricing.Rates{}, fmt.Errorf("query rate config: %w", err)
	}
	return rc, nil
}

func (s *server) updateRateConfig(ctx context.Context, rc pricing.Rates) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rate_config (
			id, labor_hourly, overhead_fixed, overhead_percent, contingency_percent,
			margin_percent, tax_enabled, tax_percent, delivery_fee, currency
		)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			labor_hourly = excluded.labor_hourly,
			overhead_fixed = excluded.overhead_fixed,
			overhead_percent = excluded.overhead_percent,
			contingency_percent = excluded.contingency_percent,
			margin_percent = excluded.margin_percent,
			tax_enabled = excluded.tax_enabled,
			tax_percent = excluded.tax_percent,
			delivery_fee = excluded.delivery_fee,
			currency = excluded.currency
	`, rc.LaborHourly, rc.OverheadFixed, rc.OverheadPercent, rc.ContingencyPercent,
		rc.MarginPercent, rc.TaxEnabled, rc.TaxPercent, rc.DeliveryFee, rc.Currency)
	if err != nil {
		return fmt.Errorf("update rate config: %w", err)
	}
	return nil
}

func (s *server) listProducts(ctx context.Context) ([]product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, key, name, unit, price, active
		FROM products
		ORDER BY key
	`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := make([]product, 0)
	for rows.Next() {
		var p product
		if err := rows.Scan(&p.ID, &p.Key, &p.Name, &p.Unit, &p.Price, &p.Active); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}
