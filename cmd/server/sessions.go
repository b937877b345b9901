package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tillerstead/tillerpro/internal/calculator"
	"github.com/tillerstead/tillerpro/internal/metrics"
	"github.com/tillerstead/tillerpro/internal/pricing"
	"github.com/tillerstead/tillerpro/internal/projectstate"
	"github.com/tillerstead/tillerpro/internal/snapshots"
)

var errSessionNotFound = errors.New("session not found")

// projectSession is one state tree and its calculator modules. mu serializes
// callers; the tree has a single writer.
type projectSession struct {
	mu    sync.Mutex
	id    string
	state *projectstate.Store
	calc  *calculator.Session

	lastUsed time.Time // guarded by sessionManager.mu
}

// sessionManager keeps live sessions in memory and persists each tree as a
// snapshot after it changes through the API.
type sessionManager struct {
	repo    snapshots.Repository
	catalog func(context.Context) (*pricing.Catalog, error)
	metrics *metrics.Metrics
	log     *zap.Logger
	// idleTTL bounds how long an unused session stays in memory. Zero keeps
	// sessions until Evict.
	idleTTL time.Duration
	now     func() time.Time

	mu        sync.Mutex
	sessions  map[string]*projectSession
	lastSweep time.Time
}

func newSessionManager(repo snapshots.Repository, catalog func(context.Context) (*pricing.Catalog, error), m *metrics.Metrics, log *zap.Logger) *sessionManager {
	return &sessionManager{
		repo:     repo,
		catalog:  catalog,
		metrics:  m,
		log:      log.Named("sessions"),
		now:      time.Now,
		sessions: map[string]*projectSession{},
	}
}

// Create starts an empty project and stores its first snapshot.
func (m *sessionManager) Create(ctx context.Context) (*projectSession, error) {
	ps, err := m.build(ctx, uuid.NewString(), nil)
	if err != nil {
		return nil, err
	}
	if err := m.persist(ctx, ps); err != nil {
		ps.calc.Close()
		return nil, err
	}
	m.track(ps)
	return ps, nil
}

// Get returns a live session, restoring it from its snapshot when needed.
func (m *sessionManager) Get(ctx context.Context, id string) (*projectSession, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errSessionNotFound
	}

	m.mu.Lock()
	m.sweepLocked()
	ps, ok := m.sessions[id]
	if ok {
		ps.lastUsed = m.now()
	}
	m.mu.Unlock()
	if ok {
		return ps, nil
	}

	snap, err := m.repo.Load(ctx, id)
	if errors.Is(err, snapshots.ErrNotFound) {
		return nil, errSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	ps, err = m.build(ctx, id, snap.State)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[id]; ok {
		ps.calc.Close()
		existing.lastUsed = m.now()
		return existing, nil
	}
	ps.lastUsed = m.now()
	m.sessions[id] = ps
	m.setGauge()
	return ps, nil
}

// build loads state into a fresh store before any module subscribes, then
// lets modules restore their forms.
func (m *sessionManager) build(ctx context.Context, id string, state []byte) (*projectSession, error) {
	log := m.log.With(zap.String("session", id))

	store := projectstate.New(projectstate.WithLogger(log))
	if state != nil {
		if err := store.LoadJSON(state); err != nil {
			return nil, fmt.Errorf("restore session %s: %w", id, err)
		}
	}

	catalog, err := m.catalog(ctx)
	if err != nil {
		return nil, err
	}

	calc, err := calculator.NewSession(store, calculator.DefaultSpecs(),
		calculator.WithLogger(log),
		calculator.WithObserver(m.metrics),
		calculator.WithBudget(catalog, catalog.Rates),
	)
	if err != nil {
		return nil, err
	}

	if state != nil {
		if _, err := calc.Restore(); err != nil {
			log.Warn("restore left some calculators uncalculated", zap.Error(err))
		}
	}
	return &projectSession{id: id, state: store, calc: calc}, nil
}

// Replace swaps the whole tree, restores modules and saves the snapshot.
func (m *sessionManager) Replace(ctx context.Context, ps *projectSession, state []byte) (map[string]*calculator.Result, error) {
	if err := ps.state.LoadJSON(state); err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	results, err := ps.calc.Restore()
	if err != nil {
		m.log.Warn("restore left some calculators uncalculated", zap.String("session", ps.id), zap.Error(err))
	}
	if err := m.persist(ctx, ps); err != nil {
		return nil, err
	}
	return results, nil
}

func (m *sessionManager) persist(ctx context.Context, ps *projectSession) error {
	data, err := ps.state.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode session %s: %w", ps.id, err)
	}
	return m.repo.Save(ctx, ps.id, data)
}

func (m *sessionManager) track(ps *projectSession) {
	m.mu.Lock()
	m.sweepLocked()
	ps.lastUsed = m.now()
	m.sessions[ps.id] = ps
	m.setGauge()
	m.mu.Unlock()
}

// Evict drops a session from memory. Its snapshot stays.
func (m *sessionManager) Evict(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ps, ok := m.sessions[id]; ok {
		ps.calc.Close()
		delete(m.sessions, id)
		m.setGauge()
	}
}

// sweepLocked evicts sessions idle past idleTTL, at most once per idleTTL.
// Sessions busy with a request are skipped. Their snapshots stay, so the next
// Get restores them. Callers hold m.mu.
func (m *sessionManager) sweepLocked() {
	if m.idleTTL <= 0 {
		return
	}
	now := m.now()
	if now.Sub(m.lastSweep) < m.idleTTL {
		return
	}
	m.lastSweep = now

	evicted := 0
	for id, ps := range m.sessions {
		if now.Sub(ps.lastUsed) <= m.idleTTL || !ps.mu.TryLock() {
			continue
		}
		ps.calc.Close()
		ps.mu.Unlock()
		delete(m.sessions, id)
		evicted++
	}
	if evicted > 0 {
		m.log.Debug("evicted idle sessions", zap.Int("count", evicted))
		m.setGauge()
	}
}

func (m *sessionManager) setGauge() {
	if m.metrics != nil {
		m.metrics.SetSessions(len(m.sessions))
	}
}
