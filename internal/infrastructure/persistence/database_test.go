package persistence

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/SWFTstudios/onlyatthekiosk-website/tests/testutil"
)

// newMockDatabase wraps an sqlmock-backed GORM session in a Database
func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock) {
	mockDB := testutil.NewMockDB(t)
	return &Database{DB: mockDB.DB}, mockDB.Mock
}

func TestDatabase_Stats(t *testing.T) {
	db, _ := newMockDatabase(t)

	stats, err := db.Stats()
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, stats.OpenConnections, 0)
	assert.Equal(t, stats.OpenConnections, stats.InUse+stats.Idle)
}

func TestDatabase_Ping(t *testing.T) {
	db, mock := newMockDatabase(t)

	mock.ExpectPing()

	assert.NoError(t, db.Ping())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_Close(t *testing.T) {
	db, mock := newMockDatabase(t)

	mock.ExpectClose()

	assert.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_Transaction(t *testing.T) {
	t.Run("commits on success", func(t *testing.T) {
		db, mock := newMockDatabase(t)

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "products" WHERE shopify_product_id = \$1`).
			WithArgs("42").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := db.Transaction(func(tx *gorm.DB) error {
			return tx.Exec(`DELETE FROM "products" WHERE shopify_product_id = ?`, "42").Error
		})

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, mock := newMockDatabase(t)

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := db.Transaction(func(tx *gorm.DB) error {
			return assert.AnError
		})

		assert.ErrorIs(t, err, assert.AnError)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestNewSQLiteDatabase(t *testing.T) {
	db, err := NewSQLiteDatabase(":memory:")
	require.NoError(t, err)
	defer db.Close()

	type kv struct {
		Key   string `gorm:"primaryKey"`
		Value string
	}
	require.NoError(t, db.AutoMigrate(&kv{}))
	require.NoError(t, db.DB.Create(&kv{Key: "a", Value: "1"}).Error)

	var got kv
	require.NoError(t, db.DB.First(&got, "key = ?", "a").Error)
	assert.Equal(t, "1", got.Value)
	assert.NoError(t, db.Ping())
}
