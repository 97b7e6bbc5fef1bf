package database

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (sqlmock.Sqlmock, *gorm.DB) {
	t.Helper()

	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	// gorm.Open pings the connection during initialization; with
	// MonitorPingsOption enabled that ping must be expected.
	mock.ExpectPing()
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{})
	require.NoError(t, err)

	return mock, gormDB
}

func TestNewPool(t *testing.T) {
	_, gormDB := setupMockDB(t)

	p, err := NewPool(gormDB, DefaultPoolConfig(), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, gormDB, p.DB())
	assert.GreaterOrEqual(t, p.Stats().MaxOpenConnections, 0)
}

func TestNewPool_NilDB(t *testing.T) {
	_, err := NewPool(nil, DefaultPoolConfig(), zap.NewNop())
	require.Error(t, err)
}

func TestPool_Ping(t *testing.T) {
	mock, gormDB := setupMockDB(t)
	p, err := NewPool(gormDB, DefaultPoolConfig(), zap.NewNop())
	require.NoError(t, err)

	mock.ExpectPing()
	require.NoError(t, p.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(sql.ErrConnDone)
	require.Error(t, p.Ping(context.Background()))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPool_WithTransaction(t *testing.T) {
	mock, gormDB := setupMockDB(t)
	p, err := NewPool(gormDB, DefaultPoolConfig(), zap.NewNop())
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()
	require.NoError(t, p.WithTransaction(context.Background(), func(tx *gorm.DB) error {
		return nil
	}))

	mock.ExpectBegin()
	mock.ExpectRollback()
	require.Error(t, p.WithTransaction(context.Background(), func(tx *gorm.DB) error {
		return assert.AnError
	}))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPool_Close(t *testing.T) {
	mock, gormDB := setupMockDB(t)
	p, err := NewPool(gormDB, DefaultPoolConfig(), zap.NewNop())
	require.NoError(t, err)

	mock.ExpectClose()
	require.NoError(t, p.Close())
	// Second close is a no-op.
	require.NoError(t, p.Close())
	require.Error(t, p.Ping(context.Background()))
}
