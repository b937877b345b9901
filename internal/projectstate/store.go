package projectstate

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tillerstead/tillerpro/internal/units"
)

// Version is the schema version stamped on every tree.
const Version = "1.0.0"

const maxDispatchDepth = 64

// EventKind names a store notification.
type EventKind string

const (
	EventChange EventKind = "change"
	EventDelete EventKind = "delete"
	EventReset  EventKind = "reset"
)

// Change describes a single store notification.
type Change struct {
	Kind  EventKind
	Path  string
	Value any
}

// Handler receives store notifications.
type Handler func(Change)

type subscription struct {
	id uint64
	fn Handler
}

// Store is a path-addressable project state tree with change notification.
type Store struct {
	mu   sync.RWMutex
	tree map[string]any

	subMu  sync.Mutex
	subs   map[EventKind][]subscription
	nextID uint64
	depth  atomic.Int32

	log *zap.Logger
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for recovered handler panics.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the time source used for the created timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns a store holding a fresh project tree.
func New(opts ...Option) *Store {
	s := &Store{
		subs: make(map[EventKind][]subscription),
		log:  zap.NewNop(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("projectstate")
	s.tree = initialTree(s.now())
	return s
}

func initialTree(now time.Time) map[string]any {
	return map[string]any{
		"version": Version,
		"created": now.UTC().Format(time.RFC3339),
		"project": map[string]any{
			"id":     "proj_" + strconv.FormatInt(now.UnixMilli(), 10),
			"name":   "Untitled Project",
			"type":   "bathroom",
			"status": "planning",
			"rooms":  []any{},
		},
		"preferences": map[string]any{
			"units":    "imperial",
			"currency": "USD",
		},
	}
}

// Get returns a copy of the value at path, or nil when any segment is missing.
func (s *Store) Get(path string) any {
	segs, ok := splitPath(path)
	if !ok {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := lookup(s.tree, segs)
	if !ok {
		return nil
	}
	return clone(v)
}

// Float returns the numeric value at path.
func (s *Store) Float(path string) (float64, bool) {
	segs, ok := splitPath(path)
	if !ok {
		return 0, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := lookup(s.tree, segs)
	if !ok {
		return 0, false
	}
	return units.ToFloat(v)
}

// String returns the value at path formatted as a string, or "" when absent.
func (s *Store) String(path string) string {
	switch v := s.Get(path).(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Set writes value at path, creating intermediate maps, and notifies change
// subscribers with the exact path. Writes through a scalar are dropped.
func (s *Store) Set(path string, value any) {
	segs, ok := splitPath(path)
	if !ok {
		return
	}

	v := clone(value)
	s.mu.Lock()
	_, ok = put(s.tree, segs, v)
	s.mu.Unlock()

	if !ok {
		s.log.Debug("dropped write through non-container", zap.String("path", path))
		return
	}
	s.dispatch(Change{Kind: EventChange, Path: path, Value: clone(v)})
}

// SetIfAbsent writes value only when the current value at path is empty and
// reports whether it wrote.
func (s *Store) SetIfAbsent(path string, value any) bool {
	segs, ok := splitPath(path)
	if !ok {
		return false
	}

	v := clone(value)
	s.mu.Lock()
	if cur, found := lookup(s.tree, segs); found && !IsEmpty(cur) {
		s.mu.Unlock()
		return false
	}
	_, ok = put(s.tree, segs, v)
	s.mu.Unlock()

	if !ok {
		return false
	}
	s.dispatch(Change{Kind: EventChange, Path: path, Value: clone(v)})
	return true
}

// Update applies several writes as one step. Subscribers are notified once per
// written path, in path order, after every write is visible.
func (s *Store) Update(values map[string]any) {
	paths := make([]string, 0, len(values))
	for p := range values {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	written := make([]Change, 0, len(paths))
	s.mu.Lock()
	for _, p := range paths {
		segs, ok := splitPath(p)
		if !ok {
			continue
		}
		v := clone(values[p])
		if _, ok := put(s.tree, segs, v); ok {
			written = append(written, Change{Kind: EventChange, Path: p, Value: clone(v)})
		}
	}
	s.mu.Unlock()

	for _, c := range written {
		s.dispatch(c)
	}
}

// Delete removes the value at path.
func (s *Store) Delete(path string) {
	segs, ok := splitPath(path)
	if !ok {
		return
	}

	s.mu.Lock()
	removed := remove(s.tree, segs)
	s.mu.Unlock()

	if removed {
		s.dispatch(Change{Kind: EventDelete, Path: path})
	}
}

// Reset discards the tree and starts a fresh project.
func (s *Store) Reset() {
	s.mu.Lock()
	s.tree = initialTree(s.now())
	s.mu.Unlock()

	s.dispatch(Change{Kind: EventReset})
}

// Snapshot returns a deep copy of the whole tree.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.tree).(map[string]any)
}

// Restore replaces the tree verbatim and notifies reset subscribers.
func (s *Store) Restore(tree map[string]any) {
	next, _ := clone(tree).(map[string]any)
	if next == nil {
		next = map[string]any{}
	}
	migrate(next)

	s.mu.Lock()
	s.tree = next
	s.mu.Unlock()

	s.dispatch(Change{Kind: EventReset})
}

// migrate upgrades trees written before the schema was versioned.
func migrate(tree map[string]any) {
	if v, _ := tree["version"].(string); v == Version {
		return
	}
	project, _ := tree["project"].(map[string]any)
	if project == nil {
		project = map[string]any{}
		tree["project"] = project
	}
	if name, ok := tree["projectName"].(string); ok && name != "" {
		if IsEmpty(project["name"]) {
			project["name"] = name
		}
		delete(tree, "projectName")
	}
	if _, ok := project["rooms"]; !ok {
		project["rooms"] = []any{}
	}
	tree["version"] = Version
}

// MarshalJSON encodes the tree.
func (s *Store) MarshalJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.Marshal(s.tree)
}

// LoadJSON restores the tree from its JSON encoding.
func (s *Store) LoadJSON(data []byte) error {
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("decode project state: %w", err)
	}
	s.Restore(tree)
	return nil
}

// On registers handler for kind and returns a func that removes it.
func (s *Store) On(kind EventKind, handler Handler) func() {
	s.subMu.Lock()
	s.nextID++
	id := s.nextID
	s.subs[kind] = append(s.subs[kind], subscription{id: id, fn: handler})
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			list := s.subs[kind]
			for i, sub := range list {
				if sub.id == id {
					s.subs[kind] = append(list[:i:i], list[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Store) dispatch(c Change) {
	if s.depth.Add(1) > maxDispatchDepth {
		s.depth.Add(-1)
		s.log.Error("notification depth exceeded, dropping event", zap.String("event", string(c.Kind)), zap.String("path", c.Path))
		return
	}
	defer s.depth.Add(-1)

	s.subMu.Lock()
	handlers := append([]subscription(nil), s.subs[c.Kind]...)
	s.subMu.Unlock()

	for _, sub := range handlers {
		s.invoke(sub, c)
	}
}

func (s *Store) invoke(sub subscription, c Change) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("event handler panicked",
				zap.String("event", string(c.Kind)),
				zap.String("path", c.Path),
				zap.Any("panic", r),
			)
		}
	}()
	sub.fn(c)
}

// IsEmpty reports whether v counts as absent for populate-if-absent writes.
// Booleans are never empty.
func IsEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case bool:
		return false
	case string:
		return strings.TrimSpace(x) == ""
	case map[string]any:
		return len(x) == 0
	case []any:
		return len(x) == 0
	default:
		if f, ok := units.ToFloat(v); ok {
			return f == 0
		}
		return false
	}
}
