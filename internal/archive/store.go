// Package archive keeps a history of finished rounds in Postgres.
package archive

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GameResult is one finished round.
type GameResult struct {
	ID         uint      `gorm:"primaryKey"`
	RoomID     string    `gorm:"size:64;not null;index"`
	WinnerName string    `gorm:"size:64;not null"`
	Players    int       `gorm:"not null"`
	Results    []byte    `gorm:"type:jsonb;not null"` // ranked engine.Ranking rows
	FinishedAt time.Time `gorm:"not null;index"`
}

type Store interface {
	Save(ctx context.Context, r *GameResult) error
}

type GormStore struct {
	db *gorm.DB
}

// Open connects to dsn and migrates the results table.
func Open(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&GameResult{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Save(ctx context.Context, r *GameResult) error {
	return s.db.WithContext(ctx).Create(r).Error
}

// Recent returns the newest results for roomID, newest first.
func (s *GormStore) Recent(ctx context.Context, roomID string, limit int) ([]GameResult, error) {
	var out []GameResult
	err := s.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("finished_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
