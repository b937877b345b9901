package calculator

import (
	"time"

	"go.uber.org/zap"

	"github.com/tillerstead/tillerpro/internal/pricing"
)

// Observer is notified after every calculation attempt.
type Observer interface {
	ObserveCalculation(domain string, err error)
}

type options struct {
	log     *zap.Logger
	now     func() time.Time
	obs     Observer
	catalog *pricing.Catalog
	rates   pricing.Rates
}

// Option configures modules and sessions.
type Option func(*options)

// WithLogger sets the logger. Modules log under their domain name.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithClock overrides the calculatedAt time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithObserver records calculation outcomes, e.g. as metrics.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.obs = obs
	}
}

// WithBudget enables the budget estimator for a session.
func WithBudget(catalog *pricing.Catalog, rates pricing.Rates) Option {
	return func(o *options) {
		o.catalog = catalog
		o.rates = rates
	}
}

func buildOptions(opts []Option) options {
	o := options{log: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
