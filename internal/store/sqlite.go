package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/vesaa/fleetsim/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const workingSlot = "working"

// SQLiteMedium keeps the working document as a single row in a sqlite
// database. Each Replace is one upsert inside a transaction.
type SQLiteMedium struct {
	db *gorm.DB
}

// OpenSQLite opens the database at path and runs AutoMigrate.
func OpenSQLite(path string) (*SQLiteMedium, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.AutoMigrate(&models.StoredDocument{}); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}
	return &SQLiteMedium{db: db}, nil
}

func (s *SQLiteMedium) Driver() string { return "sqlite" }

func (s *SQLiteMedium) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLiteMedium) Load(ctx context.Context) ([]byte, error) {
	var doc models.StoredDocument
	err := s.db.WithContext(ctx).Where("slot = ?", workingSlot).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(doc.Body), nil
}

func (s *SQLiteMedium) Replace(ctx context.Context, raw []byte) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc := models.StoredDocument{Slot: workingSlot, Body: string(raw), UpdatedAt: time.Now()}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&doc).Error
	})
}

// Delete removes the working row; used by operators and tests to simulate loss.
func (s *SQLiteMedium) Delete(ctx context.Context) error {
	return s.db.WithContext(ctx).Where("slot = ?", workingSlot).Delete(&models.StoredDocument{}).Error
}
