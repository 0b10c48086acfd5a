package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/hongbao/apperr"
	"github.com/cppla/hongbao/config"
	"github.com/cppla/hongbao/models"
)

// clock hands out increasing timestamps so created_at ordering is deterministic.
type clock struct {
	t time.Time
}

func newClock(year int) *clock {
	return &clock{t: time.Date(year, time.February, 10, 8, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func intPtr(v int) *int { return &v }

func TestSQLStoreAddAndList(t *testing.T) {
	ctx := context.Background()
	clk := newClock(2025)
	s := NewSQLStore(openTestDB(t), WithClock(clk.Now))

	before := clk.t
	first, err := s.Add(ctx, 1, 100, "grandpa", "")
	require.NoError(t, err)
	second, err := s.Add(ctx, 1, 50, "uncle", "lunar new year")
	require.NoError(t, err)
	_, err = s.Add(ctx, 2, 999, "someone else", "")
	require.NoError(t, err)

	assert.NotZero(t, first.ID)
	assert.Equal(t, 2025, first.Year)
	assert.False(t, first.CreatedAt.Before(before))

	records, err := s.List(ctx, 1, intPtr(2025))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, second.ID, records[0].ID, "newest first")
	assert.Equal(t, first.ID, records[1].ID)
	assert.Equal(t, "lunar new year", records[0].Note)

	total, err := s.Total(ctx, 1, intPtr(2025))
	require.NoError(t, err)
	assert.Equal(t, int64(150), total)
}

func TestSQLStoreRejectsNonPositiveAmount(t *testing.T) {
	ctx := context.Background()
	s := NewSQLStore(openTestDB(t))

	for _, amount := range []int64{0, -5} {
		_, err := s.Add(ctx, 1, amount, "", "")
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	}

	records, err := s.List(ctx, 1, nil)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.NotNil(t, records)
}

func TestSQLStoreSanitizesText(t *testing.T) {
	s := NewSQLStore(openTestDB(t))
	rec, err := s.Add(context.Background(), 1, 8, "  <b>aunt</b> ", "<script>x()</script>ok")
	require.NoError(t, err)
	assert.Equal(t, "aunt", rec.Source)
	assert.Equal(t, "ok", rec.Note)

	rec, err = s.Add(context.Background(), 1, 8, "&lt;script&gt;alert(1)&lt;/script&gt;", "<b>x</b>&lt;img src=x onerror=alert(1)&gt;")
	require.NoError(t, err)
	assert.Equal(t, "", rec.Source)
	assert.Equal(t, "x", rec.Note)

	records, err := s.List(context.Background(), 1, nil)
	require.NoError(t, err)
	for _, r := range records {
		assert.NotContains(t, r.Source, "<")
		assert.NotContains(t, r.Note, "<")
	}
}

func TestSQLStoreRemove(t *testing.T) {
	ctx := context.Background()
	s := NewSQLStore(openTestDB(t))

	rec, err := s.Add(ctx, 1, 100, "grandpa", "")
	require.NoError(t, err)

	err = s.Remove(ctx, rec.ID, 2)
	assert.ErrorIs(t, err, apperr.ErrRecordNotFound)
	records, err := s.List(ctx, 1, nil)
	require.NoError(t, err)
	assert.Len(t, records, 1, "foreign delete must not remove the record")

	require.NoError(t, s.Remove(ctx, rec.ID, 1))
	assert.ErrorIs(t, s.Remove(ctx, rec.ID, 1), apperr.ErrRecordNotFound)
}

func TestSQLStoreRemoveAllAndYear(t *testing.T) {
	ctx := context.Background()
	clk := newClock(2024)
	db := openTestDB(t)
	s := NewSQLStore(db, WithClock(clk.Now))

	_, err := s.Add(ctx, 1, 10, "", "")
	require.NoError(t, err)
	clk.t = time.Date(2025, time.January, 29, 0, 0, 0, 0, time.UTC)
	_, err = s.Add(ctx, 1, 100, "grandpa", "")
	require.NoError(t, err)
	_, err = s.Add(ctx, 1, 50, "uncle", "")
	require.NoError(t, err)
	_, err = s.Add(ctx, 2, 1, "", "")
	require.NoError(t, err)

	years, err := s.Years(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{2025, 2024}, years)

	n, err := s.RemoveYear(ctx, 1, 2024)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.RemoveAll(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	records, err := s.List(ctx, 1, nil)
	require.NoError(t, err)
	assert.Empty(t, records)
	total, err := s.Total(ctx, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)

	n, err = s.RemoveAll(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, n)

	other, err := s.Total(ctx, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), other)
}

func TestSQLStorePublicRecords(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	users := NewUserStore(db)
	s := NewSQLStore(db, WithClock(newClock(2025).Now))

	alice := &models.User{Username: "alice", Email: "alice@x.com", PasswordHash: "h"}
	bob := &models.User{Username: "bob", Email: "bob@x.com", PasswordHash: "h"}
	require.NoError(t, users.Create(ctx, alice))
	require.NoError(t, users.Create(ctx, bob))
	_, err := users.SetVisibility(ctx, alice.ID, true)
	require.NoError(t, err)

	_, err = s.Add(ctx, alice.ID, 100, "", "")
	require.NoError(t, err)
	_, err = s.Add(ctx, bob.ID, 500, "", "")
	require.NoError(t, err)

	records, err := s.PublicRecords(ctx, 2025)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "alice", records[0].OwnerLabel())

	none, err := s.PublicRecords(ctx, 2026)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLStoreHidesStorageErrors(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	s := NewSQLStore(db)

	mock.ExpectQuery("SELECT COALESCE").WillReturnError(assert.AnError)
	_, err = s.Total(context.Background(), 1, nil)
	require.Error(t, err)
	e := apperr.As(err)
	assert.Equal(t, apperr.KindInternal, e.Kind)
	assert.Equal(t, "internal error", e.Message)
	assert.ErrorIs(t, err, assert.AnError)

	mock.ExpectExec("DELETE FROM `red_packets`").WillReturnError(assert.AnError)
	err = s.Remove(context.Background(), 3, 1)
	assert.True(t, apperr.IsKind(err, apperr.KindInternal))

	mock.ExpectExec("DELETE FROM `red_packets`").WillReturnResult(sqlmock.NewResult(0, 0))
	err = s.Remove(context.Background(), 3, 1)
	assert.ErrorIs(t, err, apperr.ErrRecordNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
