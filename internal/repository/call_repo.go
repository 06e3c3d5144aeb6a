package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/gchat-dev/gchat-api/internal/models"
)

// CallRepository persists call log rows.
type CallRepository interface {
	Create(ctx context.Context, call *models.CallLog) error
	FindOpen(ctx context.Context, a, b uint) (models.CallLog, error)
	MarkActive(ctx context.Context, callID uint) error
	Close(ctx context.Context, callID uint, status string, endedAt time.Time) error
}

type callRepository struct {
	db *gorm.DB
}

// NewCallRepository constructs a call repository backed by GORM.
func NewCallRepository(db *gorm.DB) CallRepository {
	return &callRepository{db: db}
}

func (r *callRepository) Create(ctx context.Context, call *models.CallLog) error {
	return r.db.WithContext(ctx).Create(call).Error
}

// FindOpen returns the most recent unfinished call between the two users,
// regardless of which side initiated it.
func (r *callRepository) FindOpen(ctx context.Context, a, b uint) (models.CallLog, error) {
	var call models.CallLog
	err := r.db.WithContext(ctx).
		Where("((from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?)) AND status IN (?)",
			a, b, b, a, []string{models.CallStatusPending, models.CallStatusActive}).
		Order("started_at DESC").
		First(&call).Error
	if err != nil {
		return models.CallLog{}, err
	}
	return call, nil
}

func (r *callRepository) MarkActive(ctx context.Context, callID uint) error {
	return r.db.WithContext(ctx).Model(&models.CallLog{}).
		Where("id = ? AND status = ?", callID, models.CallStatusPending).
		Update("status", models.CallStatusActive).Error
}

func (r *callRepository) Close(ctx context.Context, callID uint, status string, endedAt time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var call models.CallLog
		if err := tx.First(&call, callID).Error; err != nil {
			return err
		}

		duration := int64(0)
		if call.Status == models.CallStatusActive {
			duration = int64(endedAt.Sub(call.StartedAt).Seconds())
		}

		return tx.Model(&models.CallLog{}).Where("id = ?", callID).
			Updates(map[string]interface{}{
				"status":   status,
				"ended_at": endedAt,
				"duration": duration,
			}).Error
	})
}
