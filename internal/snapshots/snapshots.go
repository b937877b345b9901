// Package snapshots persists serialized project state trees by session id.
package snapshots

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned by Load when no snapshot exists for an id.
var ErrNotFound = errors.New("snapshot not found")

// Snapshot is one stored state tree.
type Snapshot struct {
	ID        string          `json:"id"`
	State     json.RawMessage `json:"state"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Repository stores the latest state tree per session. Save overwrites.
type Repository interface {
	Save(ctx context.Context, id string, state []byte) error
	Load(ctx context.Context, id string) (Snapshot, error)
	Delete(ctx context.Context, id string) error
}

type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func validState(state []byte) bool {
	return len(state) > 0 && json.Valid(state)
}
