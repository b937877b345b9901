package migrations

import (
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed sql
var files embed.FS

const (
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// goose keeps its dialect and filesystem in package globals.
var mu sync.Mutex

// Up runs all pending embedded migrations for dialect.
func Up(db *sql.DB, dialect string) error {
	gooseDialect, dir, err := resolve(dialect)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()

	goose.SetBaseFS(files)
	if err := goose.SetDialect(gooseDialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("run goose up migrations: %w", err)
	}

	return nil
}

// Version returns the current schema version.
func Version(db *sql.DB, dialect string) (int64, error) {
	gooseDialect, _, err := resolve(dialect)
	if err != nil {
		return 0, err
	}

	mu.Lock()
	defer mu.Unlock()

	if err := goose.SetDialect(gooseDialect); err != nil {
		return 0, fmt.Errorf("set goose dialect: %w", err)
	}
	v, err := goose.GetDBVersion(db)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

func resolve(dialect string) (string, string, error) {
	switch dialect {
	case SQLite:
		return "sqlite3", "sql/sqlite", nil
	case Postgres:
		return "postgres", "sql/postgres", nil
	}
	return "", "", fmt.Errorf("unknown migration dialect %q", dialect)
}
