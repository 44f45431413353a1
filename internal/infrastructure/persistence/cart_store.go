package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/cart"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCartStore implements cart.Store on a single key/value table
type GormCartStore struct {
	db *gorm.DB
}

// NewGormCartStore creates a new GormCartStore
func NewGormCartStore(db *gorm.DB) *GormCartStore {
	return &GormCartStore{db: db}
}

// Get returns the stored value for key
func (s *GormCartStore) Get(ctx context.Context, key string) (string, bool, error) {
	var row models.CartStorageModel
	if err := s.db.WithContext(ctx).First(&row, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return row.Value, true, nil
}

// Set inserts or replaces the value for key
func (s *GormCartStore) Set(ctx context.Context, key, value string) error {
	row := models.CartStorageModel{Key: key, Value: value, UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
}

// Delete removes the given keys; absent keys are ignored
func (s *GormCartStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Where("key IN ?", keys).Delete(&models.CartStorageModel{}).Error
}

var _ cart.Store = (*GormCartStore)(nil)
