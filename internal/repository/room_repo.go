package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/gchat-dev/gchat-api/internal/models"
)

// RoomRepository persists rooms and their membership rows.
type RoomRepository interface {
	Create(ctx context.Context, room *models.Room) error
	Save(ctx context.Context, room *models.Room) error
	FindByID(ctx context.Context, id uint) (models.Room, error)
	FindByName(ctx context.Context, name string) (models.Room, error)
	TouchLastMessage(ctx context.Context, roomID uint, at time.Time) error

	AddMember(ctx context.Context, roomID, userID uint) error
	RemoveMember(ctx context.Context, roomID, userID uint) error
	IsMember(ctx context.Context, roomID, userID uint) (bool, error)
	ListMembers(ctx context.Context, roomID uint) ([]models.User, error)

	ListAvailable(ctx context.Context, userID uint) ([]models.Room, error)
}

type roomRepository struct {
	db *gorm.DB
}

// NewRoomRepository constructs a room repository backed by GORM.
func NewRoomRepository(db *gorm.DB) RoomRepository {
	return &roomRepository{db: db}
}

func (r *roomRepository) Create(ctx context.Context, room *models.Room) error {
	return r.db.WithContext(ctx).Create(room).Error
}

func (r *roomRepository) Save(ctx context.Context, room *models.Room) error {
	return r.db.WithContext(ctx).Save(room).Error
}

func (r *roomRepository) FindByID(ctx context.Context, id uint) (models.Room, error) {
	var room models.Room
	if err := r.db.WithContext(ctx).First(&room, id).Error; err != nil {
		return models.Room{}, err
	}
	return room, nil
}

func (r *roomRepository) FindByName(ctx context.Context, name string) (models.Room, error) {
	var room models.Room
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&room).Error; err != nil {
		return models.Room{}, err
	}
	return room, nil
}

func (r *roomRepository) TouchLastMessage(ctx context.Context, roomID uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Room{}).Where("id = ?", roomID).
		Update("last_message_at", at).Error
}

func (r *roomRepository) AddMember(ctx context.Context, roomID, userID uint) error {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	member := models.RoomMember{RoomID: roomID, UserID: userID, CreatedAt: time.Now().UTC()}
	return r.db.WithContext(ctx).Create(&member).Error
}

func (r *roomRepository) RemoveMember(ctx context.Context, roomID, userID uint) error {
	return r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Delete(&models.RoomMember{}).Error
}

func (r *roomRepository) IsMember(ctx context.Context, roomID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *roomRepository) ListMembers(ctx context.Context, roomID uint) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Joins("JOIN room_members ON room_members.user_id = users.id").
		Where("room_members.room_id = ?", roomID).
		Order("users.username ASC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// ListAvailable returns public group rooms plus private rooms the user belongs
// to, most recently active first.
func (r *roomRepository) ListAvailable(ctx context.Context, userID uint) ([]models.Room, error) {
	var rooms []models.Room
	err := r.db.WithContext(ctx).
		Where("(is_group = ? AND is_private = ?) OR id IN (?)",
			true, false,
			r.db.Model(&models.RoomMember{}).Select("room_id").Where("user_id = ?", userID),
		).
		Order("last_message_at DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	return rooms, nil
}
