package kv

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Entry is one row of the kv_entries table.
type Entry struct {
	Key       string     `gorm:"primaryKey;type:text"`
	Value     []byte     `gorm:"type:bytea;not null"`
	ExpiresAt *time.Time `gorm:"type:timestamptz"`
	UpdatedAt time.Time  `gorm:"type:timestamptz;not null"`
}

func (Entry) TableName() string {
	return "kv_entries"
}

type PostgresStore struct {
	DB *gorm.DB
}

func OpenPostgres(dsn string) (*PostgresStore, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := gdb.AutoMigrate(&Entry{}); err != nil {
		return nil, err
	}
	return &PostgresStore{DB: gdb}, nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var e Entry
	err := s.DB.WithContext(ctx).Where("key = ?", key).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if e.ExpiresAt != nil && !time.Now().Before(*e.ExpiresAt) {
		_ = s.Delete(ctx, key)
		return nil, false, nil
	}
	return e.Value, true, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	e := Entry{Key: key, Value: clone(value), UpdatedAt: now}
	if ttl > 0 {
		exp := now.Add(ttl)
		e.ExpiresAt = &exp
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&e).Error
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	return s.DB.WithContext(ctx).Where("key = ?", key).Delete(&Entry{}).Error
}

func (s *PostgresStore) Close() error {
	sqldb, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqldb.Close()
}
