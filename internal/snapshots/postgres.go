package snapshots

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBPool is the subset of pgxpool.Pool used here, so tests can mock it.
type DBPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore keeps snapshots in a Postgres JSONB column.
type PGStore struct {
	pool DBPool
	now  func() time.Time
}

func NewPGStore(pool DBPool, opts ...Option) *PGStore {
	o := buildOptions(opts)
	return &PGStore{pool: pool, now: o.now}
}

const (
	sqlUpsertSnapshot = `
		INSERT INTO snapshots (id, state, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at`
	sqlSelectSnapshot = `SELECT state, updated_at FROM snapshots WHERE id = $1`
	sqlDeleteSnapshot = `DELETE FROM snapshots WHERE id = $1`
)

func (s *PGStore) Save(ctx context.Context, id string, state []byte) error {
	if !validState(state) {
		return fmt.Errorf("save snapshot %s: state is not valid JSON", id)
	}
	if _, err := s.pool.Exec(ctx, sqlUpsertSnapshot, id, state, s.now().UTC()); err != nil {
		return fmt.Errorf("save snapshot %s: %w", id, err)
	}
	return nil
}

func (s *PGStore) Load(ctx context.Context, id string) (Snapshot, error) {
	var (
		state []byte
		at    time.Time
	)
	err := s.pool.QueryRow(ctx, sqlSelectSnapshot, id).Scan(&state, &at)
	if errors.Is(err, pgx.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot %s: %w", id, err)
	}
	return Snapshot{ID: id, State: state, UpdatedAt: at}, nil
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, sqlDeleteSnapshot, id); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", id, err)
	}
	return nil
}
