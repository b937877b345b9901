package calculator

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tillerstead/tillerpro/internal/formulas"
	"github.com/tillerstead/tillerpro/internal/projectstate"
)

// ErrOutOfRange reports a calculation whose results overflowed. The project
// state is JSON, which cannot hold NaN or infinities.
var ErrOutOfRange = errors.New("result out of range")

// Result is a successful calculation.
type Result struct {
	Domain     string         `json:"domain"`
	Inputs     map[string]any `json:"inputs"`
	Calculated map[string]any `json:"calculated"`
	Notes      []string       `json:"notes,omitempty"`
	Warnings   []string       `json:"warnings,omitempty"`
}

// Module runs one calculator domain against a shared store. It writes only
// its own subtree and derives empty inputs from other domains.
type Module struct {
	spec  Spec
	store Store
	log   *zap.Logger
	now   func() time.Time
	obs   Observer

	mu     sync.Mutex
	form   Form
	last   *Result
	unsubs []func()
}

// NewModule builds a module and subscribes it to store changes.
func NewModule(store Store, spec Spec, opts ...Option) (*Module, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	m := &Module{
		spec:  spec,
		store: store,
		log:   o.log.Named(spec.Domain),
		now:   o.now,
		obs:   o.obs,
		form:  Form{},
	}
	m.unsubs = append(m.unsubs,
		store.On(projectstate.EventChange, m.onChange),
		store.On(projectstate.EventReset, m.onReset),
	)
	return m, nil
}

// Spec returns the module's spec.
func (m *Module) Spec() Spec {
	return m.spec
}

// Close unsubscribes the module from the store.
func (m *Module) Close() {
	m.mu.Lock()
	unsubs := m.unsubs
	m.unsubs = nil
	m.mu.Unlock()
	for _, u := range unsubs {
		u()
	}
}

// Form returns a copy of the current input values.
func (m *Module) Form() Form {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.form.clone()
}

// Last returns the most recent successful result, or nil.
func (m *Module) Last() *Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// SetField sets an input value as a user would. An empty string clears it.
func (m *Module) SetField(name string, raw any) error {
	f, ok := m.spec.field(name)
	if !ok {
		return fmt.Errorf("%s: unknown field %q", m.spec.Domain, name)
	}
	v, err := f.Normalize(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", m.spec.Domain, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if v == nil {
		delete(m.form, name)
		return nil
	}
	m.form[name] = v
	return nil
}

// Restore loads this domain's stored inputs, derives empty fields from other
// domains, and calculates when every required input is present. It returns
// nil without error when inputs are still incomplete.
func (m *Module) Restore() (*Result, error) {
	m.mu.Lock()
	for _, f := range m.spec.Fields {
		if f.Path == "" {
			continue
		}
		if v := m.store.Get(m.spec.statePath(f)); !projectstate.IsEmpty(v) {
			m.form[f.Name] = v
		}
	}
	m.mu.Unlock()

	for _, d := range m.spec.Derivations {
		m.sync(d)
	}

	m.mu.Lock()
	missing := m.spec.missing(m.effective())
	m.mu.Unlock()
	if len(missing) > 0 {
		m.log.Debug("restore incomplete", zap.Strings("missing", missing))
		return nil, nil
	}

	res, err := m.Calculate()
	if errors.Is(err, formulas.ErrValidation) {
		return nil, nil
	}
	return res, err
}

// Calculate validates the form, runs the formula and saves inputs and
// results to the store in one update. On error nothing is written.
func (m *Module) Calculate() (*Result, error) {
	m.mu.Lock()
	form := m.effective()
	m.mu.Unlock()

	if missing := m.spec.missing(form); len(missing) > 0 {
		err := &formulas.ValidationError{Tool: m.spec.Domain, Fields: missing}
		m.log.Info("validation failed", zap.Strings("fields", missing))
		m.observe(err)
		return nil, err
	}

	out, err := m.spec.Compute(form)
	if err != nil {
		m.log.Info("calculation rejected", zap.Error(err))
		m.observe(err)
		if errors.Is(err, formulas.ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("calculate %s: %w", m.spec.Domain, err)
	}

	if bad := nonFinite("", out.Calculated); len(bad) > 0 {
		err := fmt.Errorf("calculate %s: %s: %w", m.spec.Domain, strings.Join(bad, ", "), ErrOutOfRange)
		m.log.Info("calculation rejected", zap.Error(err))
		m.observe(err)
		return nil, err
	}

	calculated := make(map[string]any, len(out.Calculated)+1)
	for k, v := range out.Calculated {
		calculated[k] = v
	}
	calculated["calculatedAt"] = m.now().UTC().Format(time.RFC3339)

	inputs := map[string]any{}
	writes := map[string]any{m.spec.Domain + ".calculated": calculated}
	for _, f := range m.spec.Fields {
		v, ok := form[f.Name]
		if !ok || projectstate.IsEmpty(v) {
			continue
		}
		inputs[f.Name] = v
		if f.Path != "" {
			writes[m.spec.statePath(f)] = v
		}
	}
	m.store.Update(writes)

	seeds := make([]string, 0, len(out.Seed))
	for p := range out.Seed {
		seeds = append(seeds, p)
	}
	sort.Strings(seeds)
	for _, p := range seeds {
		if m.store.SetIfAbsent(p, out.Seed[p]) {
			m.log.Debug("seeded", zap.String("path", p))
		}
	}

	res := &Result{
		Domain:     m.spec.Domain,
		Inputs:     inputs,
		Calculated: calculated,
		Notes:      out.Notes,
		Warnings:   out.Warnings,
	}
	m.mu.Lock()
	m.last = res
	m.mu.Unlock()

	m.observe(nil)
	return res, nil
}

// effective returns the form with defaults filled in. Callers hold m.mu.
func (m *Module) effective() Form {
	form := m.form.clone()
	for _, f := range m.spec.Fields {
		if f.Default != nil && form.Empty(f.Name) {
			form[f.Name] = f.Default
		}
	}
	return form
}

func (m *Module) onChange(c projectstate.Change) {
	if ownsPath(m.spec.Domain, c.Path) {
		return
	}
	for _, d := range m.spec.Derivations {
		for _, w := range d.Watch {
			if projectstate.PathOverlaps(w, c.Path) {
				m.sync(d)
				break
			}
		}
	}
}

func (m *Module) onReset(projectstate.Change) {
	m.mu.Lock()
	m.form = Form{}
	m.last = nil
	m.mu.Unlock()
}

// sync fills one empty field. A value already stored at the field's own path
// wins over the derivation; a derived value is also published with
// SetIfAbsent so downstream domains can read it.
func (m *Module) sync(d Derivation) {
	f, _ := m.spec.field(d.Field)

	m.mu.Lock()
	if !m.form.Empty(d.Field) {
		m.mu.Unlock()
		return
	}
	if f.Path != "" {
		if cur := m.store.Get(m.spec.statePath(f)); !projectstate.IsEmpty(cur) {
			m.form[d.Field] = cur
			m.mu.Unlock()
			return
		}
	}
	v, ok := d.Derive(m.store)
	if !ok || projectstate.IsEmpty(v) {
		m.mu.Unlock()
		return
	}
	m.form[d.Field] = v
	m.mu.Unlock()

	m.log.Debug("derived field", zap.String("field", d.Field), zap.Any("value", v))
	if f.Path != "" {
		m.store.SetIfAbsent(m.spec.statePath(f), v)
	}
}

func (m *Module) observe(err error) {
	if m.obs != nil {
		m.obs.ObserveCalculation(m.spec.Domain, err)
	}
}

func ownsPath(domain, path string) bool {
	return projectstate.PathOverlaps(domain, path)
}

// nonFinite lists the keys under v holding NaN or an infinity, sorted.
func nonFinite(prefix string, v any) []string {
	var out []string
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			out = append(out, prefix)
		}
	case float32:
		return nonFinite(prefix, float64(t))
	case map[string]any:
		for k, child := range t {
			p := k
			if prefix != "" {
				p = prefix + "." + k
			}
			out = append(out, nonFinite(p, child)...)
		}
	case []any:
		for i, child := range t {
			out = append(out, nonFinite(fmt.Sprintf("%s[%d]", prefix, i), child)...)
		}
	}
	sort.Strings(out)
	return out
}
