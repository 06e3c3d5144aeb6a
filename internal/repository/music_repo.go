package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/gchat-dev/gchat-api/internal/models"
)

// MusicHistoryRepository persists per-user music history entries.
type MusicHistoryRepository interface {
	Create(ctx context.Context, entry *models.MusicHistoryEntry) error
	List(ctx context.Context, userID uint) ([]models.MusicHistoryEntry, error)
	Count(ctx context.Context, userID uint) (int64, error)
	Find(ctx context.Context, id uint) (models.MusicHistoryEntry, error)
	Delete(ctx context.Context, id uint) error
	DeleteOldest(ctx context.Context, userID uint) error
}

type musicHistoryRepository struct {
	db *gorm.DB
}

// NewMusicHistoryRepository constructs a music history repository backed by GORM.
func NewMusicHistoryRepository(db *gorm.DB) MusicHistoryRepository {
	return &musicHistoryRepository{db: db}
}

func (r *musicHistoryRepository) Create(ctx context.Context, entry *models.MusicHistoryEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *musicHistoryRepository) List(ctx context.Context, userID uint) ([]models.MusicHistoryEntry, error) {
	var entries []models.MusicHistoryEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("added_at DESC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *musicHistoryRepository) Count(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.MusicHistoryEntry{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

func (r *musicHistoryRepository) Find(ctx context.Context, id uint) (models.MusicHistoryEntry, error) {
	var entry models.MusicHistoryEntry
	if err := r.db.WithContext(ctx).First(&entry, id).Error; err != nil {
		return models.MusicHistoryEntry{}, err
	}
	return entry, nil
}

func (r *musicHistoryRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.MusicHistoryEntry{}, id).Error
}

// DeleteOldest removes the oldest entry for the user, used to cap history size.
func (r *musicHistoryRepository) DeleteOldest(ctx context.Context, userID uint) error {
	var entry models.MusicHistoryEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("added_at ASC").
		First(&entry).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return err
	}
	return r.db.WithContext(ctx).Delete(&models.MusicHistoryEntry{}, entry.ID).Error
}
