package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/tillerstead/tillerpro/internal/metrics"
	"github.com/tillerstead/tillerpro/internal/migrations"
	"github.com/tillerstead/tillerpro/internal/pricing"
	"github.com/tillerstead/tillerpro/internal/seed"
	"github.com/tillerstead/tillerpro/internal/snapshots"
)

const (
	testAdminEmail    = "owner@tillerstead.com"
	testAdminPassword = "grout-lines"
)

var testNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// newTestServer returns a server over a migrated, seeded in-memory database.
func newTestServer(t *testing.T) *server {
	t.Helper()

	db := openTestDB(t)
	require.NoError(t, migrations.Up(db, migrations.SQLite))

	catalog, err := pricing.DefaultCatalog()
	require.NoError(t, err)
	_, err = seed.Run(db, seed.Config{AdminEmail: testAdminEmail, AdminPassword: testAdminPassword, Catalog: catalog})
	require.NoError(t, err)

	return newServer(serverDeps{
		db:        db,
		snapshots: snapshots.NewSQLStore(db),
		fallback:  catalog,
		metrics:   metrics.New(),
		secret:    "test-secret",
		loginRate: 0.001,
		burst:     3,
		now:       func() time.Time { return testNow },
	})
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func postForm(h http.Handler, path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "192.0.2.10:5000"
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func doRaw(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
