package sqlxrepos

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tadris/core/setting"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func TestLookup(t *testing.T) {
	db, mock := newMockDB(t)
	l := NewLookup(db)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM "users" WHERE LOWER("email") = LOWER($1) AND id::text <> $2)`)).
		WithArgs("sara@test.test", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	found, err := l.ExistsExcluding(ctx, "users", "email", "sara@test.test", "u1")
	require.NoError(t, err)
	assert.True(t, found)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM "groups" WHERE "id" = $1)`)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	found, err = l.Exists(ctx, "groups", "id", int64(7))
	require.NoError(t, err)
	assert.False(t, found)

	_, err = l.Exists(ctx, "users", "password_hash", "x")
	assert.True(t, errors.Is(err, ErrUnknownColumn))
	_, err = l.Exists(ctx, "pg_roles", "id", 1)
	assert.True(t, errors.Is(err, ErrUnknownColumn))

	mock.ExpectQuery("SELECT EXISTS").WillReturnError(errors.New("connection reset"))
	_, err = l.Exists(ctx, "sessions", "id", int64(1))
	assert.EqualError(t, err, "checking sessions.id: connection reset")

	assert.NoError(t, mock.ExpectationsWereMet())
}

var settingCols = []string{"key", "type", "group_name", "description", "is_public", "value", "updated_at"}

func TestSettingStore_Get(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewSettingStore(db)
	ctx := context.Background()
	now := time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM settings WHERE key = $1")).WithArgs("maintenance_mode").
		WillReturnRows(sqlmock.NewRows(settingCols).AddRow("maintenance_mode", "boolean", "general", "", true, []byte("true"), now))
	desc, found, err := store.GetDescriptor(ctx, "maintenance_mode")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, setting.Descriptor{Key: "maintenance_mode", Type: setting.TypeBoolean, Group: "general", IsPublic: true}, desc)

	mock.ExpectQuery(regexp.QuoteMeta("FROM settings WHERE key = $1")).WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(settingCols))
	_, found, err = store.GetDescriptor(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	mock.ExpectQuery(regexp.QuoteMeta("FROM settings WHERE key = $1")).WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(settingCols))
	_, err = store.GetSetting(ctx, "missing")
	assert.Equal(t, setting.ErrNotFound, err)

	mock.ExpectQuery(regexp.QuoteMeta("FROM settings WHERE key = $1")).WithArgs("site_name").
		WillReturnRows(sqlmock.NewRows(settingCols).AddRow("site_name", "string", "general", "", true, nil, now))
	s, err := store.GetSetting(ctx, "site_name")
	require.NoError(t, err)
	assert.Nil(t, s.Value)

	mock.ExpectQuery(regexp.QuoteMeta("FROM settings WHERE key = $1")).WillReturnError(errors.New("timeout"))
	_, _, err = store.GetDescriptor(ctx, "x")
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingStore_ListAndSave(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewSettingStore(db)
	ctx := context.Background()
	now := time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM settings WHERE ($1 = FALSE OR is_public) ORDER BY group_name, key")).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows(settingCols).
			AddRow("site_name", "string", "general", "اسم الموقع", true, []byte(`"تدريس"`), now))
	settings, err := store.ListSettings(ctx, true)
	require.NoError(t, err)
	require.Len(t, settings, 1)
	v, err := settings[0].Decoded()
	require.NoError(t, err)
	assert.Equal(t, "تدريس", v)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO settings")).
		WithArgs("max_students", "integer", defaultGroup, "", false, []byte("30"), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	err = store.SaveSetting(ctx, setting.Setting{
		Descriptor: setting.Descriptor{Key: "max_students", Type: setting.TypeInteger},
		Value:      json.RawMessage("30"),
		UpdatedAt:  now,
	})
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCounterStore(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewCounterStore(db)
	ctx := context.Background()
	start := time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO rate_limit_counters")).
		WithArgs("login", "ip:10.0.0.1", start, start.Add(time.Minute)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))
	count, err := store.IncrementAndCheck(ctx, "login", "ip:10.0.0.1", start, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO rate_limit_counters")).WillReturnError(errors.New("down"))
	_, err = store.IncrementAndCheck(ctx, "login", "ip:10.0.0.1", start, time.Minute)
	assert.EqualError(t, err, "incrementing login counter: down")

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM rate_limit_counters WHERE expires_at <= $1")).
		WithArgs(start).
		WillReturnResult(sqlmock.NewResult(0, 12))
	n, err := store.PruneExpired(ctx, start)
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)

	assert.NoError(t, mock.ExpectationsWereMet())
}
