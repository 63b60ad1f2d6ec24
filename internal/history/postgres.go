package history

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PostgresStore persists summaries in a game_history table. The players
// column is serialized JSON, mirroring the file store shape.
type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to history db: %w", err)
	}
	if err := db.AutoMigrate(&Summary{}); err != nil {
		return nil, fmt.Errorf("migrate history table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Append(ctx context.Context, summary Summary) error {
	if err := p.db.WithContext(ctx).Create(&summary).Error; err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (p *PostgresStore) List(ctx context.Context) ([]Summary, error) {
	var summaries []Summary
	if err := p.db.WithContext(ctx).Order("saved_at").Find(&summaries).Error; err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return summaries, nil
}
