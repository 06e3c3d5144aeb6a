package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/gchat-dev/gchat-api/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

// UserRepository persists identities, friendships and friend requests.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	Save(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uint) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	Search(ctx context.Context, query string, excludeID uint, limit int) ([]models.User, error)
	SetPresence(ctx context.Context, id uint, online bool, lastSeen time.Time) error

	ListFriends(ctx context.Context, userID uint) ([]models.User, error)
	AreFriends(ctx context.Context, a, b uint) (bool, error)
	AddFriendship(ctx context.Context, a, b uint) error
	RemoveFriendship(ctx context.Context, a, b uint) error

	PendingRequest(ctx context.Context, fromID, toID uint) (models.FriendRequest, error)
	PendingBetween(ctx context.Context, a, b uint) (models.FriendRequest, error)
	CreateFriendRequest(ctx context.Context, request *models.FriendRequest) error
	SaveFriendRequest(ctx context.Context, request *models.FriendRequest) error
	DeleteFriendRequest(ctx context.Context, id uint) error

	Block(ctx context.Context, blockerID, blockedID uint) error
	Unblock(ctx context.Context, blockerID, blockedID uint) error
	IsBlockedEither(ctx context.Context, a, b uint) (bool, error)
	ListBlocked(ctx context.Context, blockerID uint) ([]models.User, error)

	GetSettings(ctx context.Context, userID uint) (models.UserSettings, error)
	SaveSettings(ctx context.Context, settings *models.UserSettings) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a user repository backed by GORM.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) Save(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *userRepository) FindByID(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) Search(ctx context.Context, query string, excludeID uint, limit int) ([]models.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 30
	}

	var users []models.User
	err := r.db.WithContext(ctx).
		Where("username LIKE ? AND id <> ?", "%"+query+"%", excludeID).
		Order("username ASC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, err
	}

	return users, nil
}

func (r *userRepository) SetPresence(ctx context.Context, id uint, online bool, lastSeen time.Time) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{"is_online": online, "last_seen": lastSeen}).Error
}

func (r *userRepository) ListFriends(ctx context.Context, userID uint) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Joins("JOIN friendships ON friendships.friend_id = users.id").
		Where("friendships.user_id = ?", userID).
		Order("users.username ASC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) AreFriends(ctx context.Context, a, b uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Friendship{}).
		Where("user_id = ? AND friend_id = ?", a, b).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// AddFriendship writes both directions so lookups stay single-row.
func (r *userRepository) AddFriendship(ctx context.Context, a, b uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		edges := []models.Friendship{
			{UserID: a, FriendID: b},
			{UserID: b, FriendID: a},
		}
		for _, edge := range edges {
			var count int64
			if err := tx.Model(&models.Friendship{}).
				Where("user_id = ? AND friend_id = ?", edge.UserID, edge.FriendID).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}
			edge.CreatedAt = time.Now().UTC()
			if err := tx.Create(&edge).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *userRepository) RemoveFriendship(ctx context.Context, a, b uint) error {
	return r.db.WithContext(ctx).
		Where("(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)", a, b, b, a).
		Delete(&models.Friendship{}).Error
}

func (r *userRepository) PendingRequest(ctx context.Context, fromID, toID uint) (models.FriendRequest, error) {
	var request models.FriendRequest
	err := r.db.WithContext(ctx).
		Where("from_user_id = ? AND to_user_id = ? AND status = ?", fromID, toID, models.FriendRequestPending).
		First(&request).Error
	if err != nil {
		return models.FriendRequest{}, err
	}
	return request, nil
}

func (r *userRepository) PendingBetween(ctx context.Context, a, b uint) (models.FriendRequest, error) {
	var request models.FriendRequest
	err := r.db.WithContext(ctx).
		Where("((from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?)) AND status = ?",
			a, b, b, a, models.FriendRequestPending).
		First(&request).Error
	if err != nil {
		return models.FriendRequest{}, err
	}
	return request, nil
}

func (r *userRepository) CreateFriendRequest(ctx context.Context, request *models.FriendRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *userRepository) SaveFriendRequest(ctx context.Context, request *models.FriendRequest) error {
	return r.db.WithContext(ctx).Save(request).Error
}

func (r *userRepository) DeleteFriendRequest(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.FriendRequest{}, id).Error
}

func (r *userRepository) Block(ctx context.Context, blockerID, blockedID uint) error {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.BlockedUser{}).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	edge := models.BlockedUser{BlockerID: blockerID, BlockedID: blockedID, CreatedAt: time.Now().UTC()}
	return r.db.WithContext(ctx).Create(&edge).Error
}

func (r *userRepository) Unblock(ctx context.Context, blockerID, blockedID uint) error {
	return r.db.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Delete(&models.BlockedUser{}).Error
}

// IsBlockedEither reports whether a block edge exists in either direction.
func (r *userRepository) IsBlockedEither(ctx context.Context, a, b uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.BlockedUser{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", a, b, b, a).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *userRepository) ListBlocked(ctx context.Context, blockerID uint) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Joins("JOIN blocked_users ON blocked_users.blocked_id = users.id").
		Where("blocked_users.blocker_id = ?", blockerID).
		Order("users.username ASC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// GetSettings creates a default row on first access.
func (r *userRepository) GetSettings(ctx context.Context, userID uint) (models.UserSettings, error) {
	var settings models.UserSettings
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		settings = models.UserSettings{
			UserID:               userID,
			Theme:                "dark",
			NotificationsEnabled: true,
			SoundEnabled:         true,
			PrivacyLastSeen:      "friends",
			MessagePreview:       true,
		}
		if err := r.db.WithContext(ctx).Create(&settings).Error; err != nil {
			return models.UserSettings{}, err
		}
		return settings, nil
	}
	if err != nil {
		return models.UserSettings{}, err
	}
	return settings, nil
}

func (r *userRepository) SaveSettings(ctx context.Context, settings *models.UserSettings) error {
	return r.db.WithContext(ctx).Save(settings).Error
}
