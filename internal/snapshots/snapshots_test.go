package snapshots

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/tillerstead/tillerpro/internal/migrations"
)

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

// flexibleSQL builds a whitespace-insensitive regex for a query.
func flexibleSQL(query string) string {
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(strings.TrimSpace(query)), `\s+`)
}

func newSQLStore(t *testing.T) *SQLStore {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migrations.Up(db, migrations.SQLite))
	return NewSQLStore(db, WithClock(clock))
}

func TestSQLStore_SaveLoadOverwrite(t *testing.T) {
	ctx := context.Background()
	s := newSQLStore(t)

	_, err := s.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save(ctx, "abc", []byte(`{"tile":{"wastePercent":10}}`)))
	require.NoError(t, s.Save(ctx, "abc", []byte(`{"tile":{"wastePercent":15}}`)))

	snap, err := s.Load(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", snap.ID)
	assert.JSONEq(t, `{"tile":{"wastePercent":15}}`, string(snap.State))
	assert.True(t, snap.UpdatedAt.Equal(fixedNow))

	require.NoError(t, s.Delete(ctx, "abc"))
	_, err = s.Load(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLStore_RejectsInvalidJSON(t *testing.T) {
	s := newSQLStore(t)
	assert.Error(t, s.Save(context.Background(), "abc", []byte(`{"tile":`)))
	assert.Error(t, s.Save(context.Background(), "abc", nil))
}

func TestPGStore_Save(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	state := []byte(`{"grout":{"jointWidth":0.125}}`)
	mock.ExpectExec(flexibleSQL(sqlUpsertSnapshot)).
		WithArgs("abc", state, fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	s := NewPGStore(mock, WithClock(clock))
	require.NoError(t, s.Save(context.Background(), "abc", state))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStore_SaveError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(flexibleSQL(sqlUpsertSnapshot)).
		WithArgs("abc", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	s := NewPGStore(mock, WithClock(clock))
	err = s.Save(context.Background(), "abc", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStore_Load(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"state", "updated_at"}).
		AddRow([]byte(`{"project":{"name":"Hall Bath"}}`), fixedNow)
	mock.ExpectQuery(flexibleSQL(sqlSelectSnapshot)).
		WithArgs("abc").
		WillReturnRows(rows)

	s := NewPGStore(mock)
	snap, err := s.Load(context.Background(), "abc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"project":{"name":"Hall Bath"}}`, string(snap.State))
	assert.True(t, snap.UpdatedAt.Equal(fixedNow))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStore_LoadNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(flexibleSQL(sqlSelectSnapshot)).
		WithArgs("gone").
		WillReturnError(pgx.ErrNoRows)

	s := NewPGStore(mock)
	_, err = s.Load(context.Background(), "gone")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStore_Delete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(flexibleSQL(sqlDeleteSnapshot)).
		WithArgs("abc").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, NewPGStore(mock).Delete(context.Background(), "abc"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
