// Package postgres provides a storage.Driver backed by PostgreSQL through gorm.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/papercomputeco/relay/pkg/storage"
)

// SessionRecord is one stored value.
type SessionRecord struct {
	Key       string `gorm:"primaryKey"`
	Value     string `gorm:"type:text;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Driver stores values in the session_records table.
type Driver struct {
	db *gorm.DB
}

// NewDriver connects with dsn and migrates the session_records table.
func NewDriver(dsn string) (*Driver, error) {
	db, err := gorm.Open(pgdriver.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("could not connect to postgres: %w", err)
	}

	return NewDriverWithDB(db)
}

// NewDriverWithDB wraps an existing gorm connection.
func NewDriverWithDB(db *gorm.DB) (*Driver, error) {
	if err := db.AutoMigrate(&SessionRecord{}); err != nil {
		return nil, fmt.Errorf("could not migrate session_records: %w", err)
	}
	return &Driver{db: db}, nil
}

// Get implements storage.Driver.
func (d *Driver) Get(ctx context.Context, key string) (string, error) {
	var rec SessionRecord
	err := d.db.WithContext(ctx).Where("key = ?", key).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("postgres get %s: %w", key, err)
	}
	return rec.Value, nil
}

// Set implements storage.Driver.
func (d *Driver) Set(ctx context.Context, key, value string) error {
	rec := SessionRecord{Key: key, Value: value}
	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("postgres set %s: %w", key, err)
	}
	return nil
}

// Keys implements storage.Driver.
func (d *Driver) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := d.db.WithContext(ctx).
		Model(&SessionRecord{}).
		Where("starts_with(key, ?)", prefix).
		Order("key").
		Pluck("key", &keys).Error
	if err != nil {
		return nil, fmt.Errorf("postgres keys %s: %w", prefix, err)
	}
	return keys, nil
}

// Ping implements storage.Driver.
func (d *Driver) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close implements storage.Driver.
func (d *Driver) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
