package calculator

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Session wires every calculator module to one project store.
type Session struct {
	store   Store
	log     *zap.Logger
	order   []string
	modules map[string]*Module
	budget  *BudgetEstimator
}

// NewSession builds modules in derivation order. With WithBudget it also
// keeps budget.* current.
func NewSession(store Store, specs []Spec, opts ...Option) (*Session, error) {
	ordered, err := Order(specs)
	if err != nil {
		return nil, err
	}
	o := buildOptions(opts)

	s := &Session{
		store:   store,
		log:     o.log,
		modules: make(map[string]*Module, len(ordered)),
	}
	for _, spec := range ordered {
		m, err := NewModule(store, spec, opts...)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("build %s module: %w", spec.Domain, err)
		}
		s.modules[spec.Domain] = m
		s.order = append(s.order, spec.Domain)
	}
	if o.catalog != nil {
		s.budget = NewBudgetEstimator(store, o.catalog, o.rates, o.log)
	}
	return s, nil
}

// Domains lists module domains in derivation order.
func (s *Session) Domains() []string {
	return append([]string(nil), s.order...)
}

// Module returns the module for domain.
func (s *Session) Module(domain string) (*Module, bool) {
	m, ok := s.modules[domain]
	return m, ok
}

// Tools describes every module.
func (s *Session) Tools() []ToolInfo {
	out := make([]ToolInfo, 0, len(s.order))
	for _, d := range s.order {
		out = append(out, s.modules[d].Spec().Info())
	}
	return out
}

// Restore restores every module in derivation order and returns the results
// of those that auto-calculated.
func (s *Session) Restore() (map[string]*Result, error) {
	results := map[string]*Result{}
	var errs []error
	for _, d := range s.order {
		res, err := s.modules[d].Restore()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if res != nil {
			results[d] = res
		}
	}
	return results, errors.Join(errs...)
}

// SetFields applies several field values to one module.
func (s *Session) SetFields(domain string, values map[string]any) error {
	m, ok := s.modules[domain]
	if !ok {
		return fmt.Errorf("unknown calculator %q", domain)
	}
	for name, v := range values {
		if err := m.SetField(name, v); err != nil {
			return err
		}
	}
	return nil
}

// Calculate runs one module.
func (s *Session) Calculate(domain string) (*Result, error) {
	m, ok := s.modules[domain]
	if !ok {
		return nil, fmt.Errorf("unknown calculator %q", domain)
	}
	return m.Calculate()
}

// Materials lists purchasable materials from the calculated results.
func (s *Session) Materials() []Material {
	return Materials(s.store)
}

// Budget returns the estimator, or nil when the session has no catalog.
func (s *Session) Budget() *BudgetEstimator {
	return s.budget
}

// Close unsubscribes every module.
func (s *Session) Close() {
	for _, m := range s.modules {
		m.Close()
	}
	if s.budget != nil {
		s.budget.Close()
	}
}
