package main

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/tillerstead/tillerpro/internal/auth"
	"github.com/tillerstead/tillerpro/internal/metrics"
	"github.com/tillerstead/tillerpro/internal/pricing"
	"github.com/tillerstead/tillerpro/internal/snapshots"
)

//go:embed templates/*.html
var templateFS embed.FS

type serverDeps struct {
	db        *sql.DB
	snapshots snapshots.Repository
	fallback  *pricing.Catalog
	metrics   *metrics.Metrics
	log       *zap.Logger
	secret    string
	loginRate float64
	burst     int
	idleTTL   time.Duration
	now       func() time.Time
}

type server struct {
	db       *sql.DB
	auth     *auth.Service
	sessions *sessionManager
	fallback *pricing.Catalog
	metrics  *metrics.Metrics
	log      *zap.Logger
	limiter  *loginLimiter
	now      func() time.Time
}

func newServer(d serverDeps) *server {
	if d.log == nil {
		d.log = zap.NewNop()
	}
	if d.metrics == nil {
		d.metrics = metrics.New()
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.loginRate <= 0 || d.burst <= 0 {
		d.loginRate, d.burst = 0.2, 5
	}
	if d.idleTTL <= 0 {
		d.idleTTL = 30 * time.Minute
	}

	s := &server{
		db:       d.db,
		auth:     auth.NewService(d.db, d.secret),
		fallback: d.fallback,
		metrics:  d.metrics,
		log:      d.log.Named("http"),
		limiter:  newLoginLimiter(d.loginRate, d.burst, d.now),
		now:      d.now,
	}
	s.sessions = newSessionManager(d.snapshots, s.catalog, d.metrics, d.log)
	s.sessions.idleTTL = d.idleTTL
	s.sessions.now = d.now
	return s
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/calculators", s.handleCalculators)
		r.Post("/estimate/{kind}", s.handleEstimate)

		r.Post("/sessions", s.handleSessionCreate)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Delete("/", s.handleSessionDelete)
			r.Get("/state", s.handleStateGet)
			r.Put("/state", s.handleStatePut)
			r.Get("/summary", s.handleSummary)
			r.Get("/materials", s.handleMaterials)
			r.Get("/export.csv", s.handleExportCSV)
			r.Get("/tools/{tool}", s.handleToolGet)
			r.Post("/tools/{tool}/fields", s.handleToolFields)
			r.Post("/tools/{tool}/calculate", s.handleToolCalculate)
			r.Post("/quote", s.handleSessionQuote)
		})
	})

	r.Get("/login", s.handleLoginForm)
	r.Post("/login", s.handleLoginSubmit)
	r.Post("/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/", s.handleHome)
		r.Get("/admin/rates", s.handleAdminRatesForm)
		r.Post("/admin/rates", s.handleAdminRatesSubmit)
		r.Get("/admin/products", s.handleAdminProductsForm)
		r.Post("/admin/products", s.handleAdminProductsCreate)
		r.Post("/admin/products/{id}", s.handleAdminProductsUpdate)
		r.Get("/quotes", s.handleQuotesList)
		r.Post("/quotes", s.handleQuoteCreate)
		r.Get("/quotes/{id}", s.handleQuoteDetail)
		r.Get("/quotes/{id}/text", s.handleQuoteText)
	})

	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// catalog builds the live price list from the products and rate_config
// tables, falling back to the file catalog for whatever is not stored.
func (s *server) catalog(ctx context.Context) (*pricing.Catalog, error) {
	c := &pricing.Catalog{}
	if s.fallback != nil {
		c.Rates = s.fallback.Rates
		for _, p := range s.fallback.Products {
			c.Set(p)
		}
	}
	if s.db == nil {
		return c, nil
	}

	rates, err := s.getRateConfig(ctx)
	switch {
	case err == nil:
		c.Rates = rates
	case !errors.Is(err, sql.ErrNoRows):
		return nil, err
	}

	products, err := s.listProducts(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		if p.Active {
			c.Set(pricing.Product{Key: p.Key, Name: p.Name, Unit: p.Unit, Price: p.Price})
		}
	}
	return c, nil
}

func (s *server) renderTemplate(w http.ResponseWriter, page string, data any) {
	templates, err := template.ParseFS(templateFS,
		"templates/layout.html",
		"templates/"+page,
	)
	if err != nil {
		s.log.Error("parse template", zap.String("page", page), zap.Error(err))
		http.Error(w, "failed to parse template", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, "layout.html", data); err != nil {
		s.log.Error("render template", zap.String("page", page), zap.Error(err))
		http.Error(w, "failed to render template", http.StatusInternalServerError)
		return
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
