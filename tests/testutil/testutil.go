// Package testutil provides common test utilities for the kiosk backend.
// It contains an sqlmock-backed database, router request helpers and fake
// Airtable and Shopify upstreams.
package testutil

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockDB wraps a GORM postgres session over sqlmock.
type MockDB struct {
	DB    *gorm.DB
	Mock  sqlmock.Sqlmock
	SqlDB *sql.DB
}

// NewMockDB opens GORM on an sqlmock connection. Pings are monitored, so
// callers that ping must expect it; the ping issued by gorm.Open is already
// consumed. The connection is closed when the test finishes.
func NewMockDB(t *testing.T) *MockDB {
	t.Helper()

	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err, "Failed to create sqlmock")
	t.Cleanup(func() { _ = sqlDB.Close() })

	mock.ExpectPing()
	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       sqlDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err, "Failed to open GORM connection")

	return &MockDB{DB: gormDB, Mock: mock, SqlDB: sqlDB}
}

// ExpectationsWereMet fails the test on any unmet database expectation.
func (m *MockDB) ExpectationsWereMet(t *testing.T) {
	t.Helper()
	require.NoError(t, m.Mock.ExpectationsWereMet(), "Unmet database expectations")
}
