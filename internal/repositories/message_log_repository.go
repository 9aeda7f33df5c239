package repositories

import (
	"context"
	"fmt"

	"whatsapp-messenger/internal/models"

	"gorm.io/gorm"
)

type MessageLogRepository struct {
	db *gorm.DB
}

func NewMessageLogRepository(db *gorm.DB) *MessageLogRepository {
	return &MessageLogRepository{db: db}
}

// Append stores a batch of log entries. Entries are written in chunks; a
// failure part way leaves the earlier chunks in place.
func (r *MessageLogRepository) Append(ctx context.Context, entries []models.MessageLog) error {
	if len(entries) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(&entries, 100).Error; err != nil {
		return fmt.Errorf("append message logs: %w", err)
	}
	return nil
}

// List returns the newest log entries first.
func (r *MessageLogRepository) List(ctx context.Context, limit int) ([]models.MessageLog, error) {
	var logs []models.MessageLog
	if err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list message logs: %w", err)
	}
	return logs, nil
}

func (r *MessageLogRepository) ListByBatch(ctx context.Context, batchID string) ([]models.MessageLog, error) {
	var logs []models.MessageLog
	if err := r.db.WithContext(ctx).Where("batch_id = ?", batchID).Order("created_at ASC").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list batch %s: %w", batchID, err)
	}
	return logs, nil
}

func (r *MessageLogRepository) DeleteAll(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.MessageLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete message logs: %w", result.Error)
	}
	return result.RowsAffected, nil
}
