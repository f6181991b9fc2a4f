package db

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/nabd-ai/vertex-backend/pkg/config"
	"github.com/nabd-ai/vertex-backend/pkg/logger"
)

type ledgerRow struct {
	ID    int
	Label string
}

func openMemory(t *testing.T) *Client {
	t.Helper()
	client, err := New(context.Background(), config.DBConfig{
		Driver: config.DBDriverSQLite,
		DSN:    "file:" + t.Name() + "?mode=memory&cache=shared",
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.DB().AutoMigrate(&ledgerRow{}))
	return client
}

func countRows(t *testing.T, c *Client) int64 {
	t.Helper()
	var n int64
	require.NoError(t, c.DB().Model(&ledgerRow{}).Count(&n).Error)
	return n
}

func TestWithTxCommitAndRollback(t *testing.T) {
	client := openMemory(t)
	ctx := context.Background()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&ledgerRow{Label: "kept"}).Error
	}))
	assert.EqualValues(t, 1, countRows(t, client))

	boom := errors.New("boom")
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		require.NoError(t, tx.Create(&ledgerRow{Label: "dropped"}).Error)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.EqualValues(t, 1, countRows(t, client))
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	client := openMemory(t)
	assert.Panics(t, func() {
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			tx.Create(&ledgerRow{Label: "half"})
			panic("handler bug")
		})
	})
	assert.Zero(t, countRows(t, client))
	assert.NoError(t, client.Ping(context.Background()))
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(context.Background(), config.DBConfig{Driver: "postgres"}, nil)
	assert.Error(t, err)
	_, err = New(context.Background(), config.DBConfig{Driver: "mysql", DSN: "x"}, nil)
	assert.ErrorContains(t, err, "unsupported driver")
}

func TestDialectorFor(t *testing.T) {
	for _, driver := range []string{"", config.DBDriverPostgres, config.DBDriverSQLite} {
		d, err := dialectorFor(driver, "file::memory:")
		require.NoError(t, err, driver)
		assert.NotNil(t, d, driver)
	}
}

func TestQueryLoggerReportsSlowAndFailedStatements(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "db-test", Output: &buf, Format: logger.FormatJSON})
	ql := newQueryLogger(logg, 10*time.Millisecond)
	ctx := context.Background()
	stmt := func() (string, int64) { return "SELECT 1", 1 }

	ql.Trace(ctx, time.Now(), stmt, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String(), "missing rows are not failures")

	ql.Trace(ctx, time.Now().Add(-time.Second), stmt, nil)
	assert.Contains(t, buf.String(), `"slow query"`)
	assert.Contains(t, buf.String(), `"sql":"SELECT 1"`)

	buf.Reset()
	ql.Trace(ctx, time.Now(), stmt, errors.New("relation does not exist"))
	assert.Contains(t, buf.String(), `"query failed"`)

	buf.Reset()
	ql.LogMode(gormlogger.Silent).Trace(ctx, time.Now(), stmt, errors.New("ignored"))
	assert.Empty(t, buf.String())

	assert.Equal(t, gormlogger.Discard, newQueryLogger(nil, time.Second))
}

func TestIsUniqueViolation(t *testing.T) {
	conn := openMemory(t).DB()
	require.NoError(t, conn.Exec(`CREATE TABLE pairing_codes (code TEXT UNIQUE)`).Error)
	require.NoError(t, conn.Exec(`INSERT INTO pairing_codes (code) VALUES ('A')`).Error)

	err := conn.Exec(`INSERT INTO pairing_codes (code) VALUES ('A')`).Error
	assert.True(t, IsUniqueViolation(err, ""))
	assert.True(t, IsUniqueViolation(err, "pairing_codes.code"))
	assert.False(t, IsUniqueViolation(err, "other_code"))
	assert.False(t, IsUniqueViolation(errors.New("boom"), ""))
	assert.False(t, IsUniqueViolation(nil, ""))
}
