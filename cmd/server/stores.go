package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/tillerstead/tillerpro/internal/config"
	"github.com/tillerstead/tillerpro/internal/db"
	"github.com/tillerstead/tillerpro/internal/migrations"
	"github.com/tillerstead/tillerpro/internal/snapshots"
)

// stores holds the SQLite admin database and the snapshot repository, which
// lives in SQLite or Postgres depending on database.driver.
type stores struct {
	db        *sql.DB
	pool      *pgxpool.Pool
	snapshots snapshots.Repository
}

func openStores(ctx context.Context, cfg *config.Config, log *zap.Logger) (*stores, error) {
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	st := &stores{db: database}

	switch cfg.Database.Driver {
	case config.DriverPostgres:
		pool, err := db.OpenPostgres(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			database.Close()
			return nil, err
		}
		st.pool = pool
		st.snapshots = snapshots.NewPGStore(pool)
		log.Info("snapshots stored in postgres")
	default:
		st.snapshots = snapshots.NewSQLStore(database)
		log.Info("snapshots stored in sqlite", zap.String("path", cfg.Database.Path))
	}
	return st, nil
}

// migrate applies SQLite migrations and, when configured, the Postgres
// snapshot schema.
func (s *stores) migrate() error {
	if err := migrations.Up(s.db, migrations.SQLite); err != nil {
		return err
	}
	if s.pool == nil {
		return nil
	}
	pg := db.SQLFromPool(s.pool)
	defer pg.Close()
	if err := migrations.Up(pg, migrations.Postgres); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	return nil
}

func (s *stores) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
	_ = s.db.Close()
}
