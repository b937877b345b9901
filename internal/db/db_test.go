package db

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenSetsPragmas(t *testing.T) {
	database, err := Open(filepath.Join(t.TempDir(), "tillerpro.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer database.Close()

	var mode string
	if err := database.QueryRow(`PRAGMA journal_mode`).Scan(&mode); err != nil {
		t.Fatalf("read journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("journal_mode=%q, want wal", mode)
	}
}

func TestOpenPostgresRejectsBadURL(t *testing.T) {
	if _, err := OpenPostgres(context.Background(), "postgres://%zz", 4); err == nil {
		t.Fatalf("expected parse error")
	}
}
