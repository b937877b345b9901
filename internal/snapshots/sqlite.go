package snapshots

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLStore keeps snapshots in the snapshots table of a SQLite database.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLStore(db *sql.DB, opts ...Option) *SQLStore {
	o := buildOptions(opts)
	return &SQLStore{db: db, now: o.now}
}

func (s *SQLStore) Save(ctx context.Context, id string, state []byte) error {
	if !validState(state) {
		return fmt.Errorf("save snapshot %s: state is not valid JSON", id)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, state, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			state = excluded.state,
			updated_at = excluded.updated_at
	`, id, string(state), s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", id, err)
	}
	return nil
}

func (s *SQLStore) Load(ctx context.Context, id string) (Snapshot, error) {
	var state, updated string
	err := s.db.QueryRowContext(ctx, `SELECT state, updated_at FROM snapshots WHERE id = ?`, id).Scan(&state, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot %s: %w", id, err)
	}

	at, err := time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return Snapshot{}, fmt.Errorf("parse snapshot %s timestamp: %w", id, err)
	}
	return Snapshot{ID: id, State: []byte(state), UpdatedAt: at}, nil
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", id, err)
	}
	return nil
}
