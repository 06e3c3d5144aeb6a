package models

import "time"

// User represents a registered chat identity.
type User struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Username      string    `gorm:"size:80;uniqueIndex;not null" json:"username"`
	PasswordHash  string    `gorm:"size:128" json:"-"`
	Avatar        string    `gorm:"size:120;default:default.jpg" json:"avatar"`
	Status        string    `gorm:"size:100" json:"status"`
	DisplayName   string    `gorm:"size:120" json:"display_name"`
	Bio           string    `gorm:"type:text" json:"bio"`
	FavoriteMusic string    `gorm:"size:255" json:"favorite_music"`
	StarsBalance  int64     `gorm:"not null;default:100" json:"stars_balance"`
	IsOnline      bool      `gorm:"default:false" json:"is_online"`
	LastSeen      time.Time `json:"last_seen"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// UserSettings stores per-user client preferences, created lazily with defaults.
type UserSettings struct {
	ID                   uint   `gorm:"primaryKey" json:"id"`
	UserID               uint   `gorm:"uniqueIndex;not null" json:"user_id"`
	Theme                string `gorm:"size:16;default:dark" json:"theme"`
	NotificationsEnabled bool   `gorm:"default:true" json:"notifications_enabled"`
	SoundEnabled         bool   `gorm:"default:true" json:"sound_enabled"`
	PrivacyLastSeen      string `gorm:"size:16;default:friends" json:"privacy_last_seen"`
	CompactMode          bool   `gorm:"default:false" json:"compact_mode"`
	MessagePreview       bool   `gorm:"default:true" json:"message_preview"`
}

// Friendship materializes one direction of a symmetric friend relation.
// Acceptance of a request writes both directions so lookups stay single-row.
type Friendship struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	FriendID  uint      `gorm:"primaryKey;autoIncrement:false" json:"friend_id"`
	CreatedAt time.Time `json:"created_at"`
}

// FriendRequestStatus enumerates the lifecycle of a friend request.
const (
	FriendRequestPending  = "pending"
	FriendRequestAccepted = "accepted"
	FriendRequestRejected = "rejected"
)

// FriendRequest records a pending or resolved friend request between two users.
type FriendRequest struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	FromUserID uint      `gorm:"index;not null" json:"from_user_id"`
	ToUserID   uint      `gorm:"index;not null" json:"to_user_id"`
	Status     string    `gorm:"size:16;default:pending" json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// BlockedUser records a one-directional block edge.
type BlockedUser struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BlockerID uint      `gorm:"index;not null" json:"blocker_id"`
	BlockedID uint      `gorm:"index;not null" json:"blocked_id"`
	CreatedAt time.Time `json:"created_at"`
}

// MusicHistoryEntry is a track a user added to their profile history.
type MusicHistoryEntry struct {
	ID      uint      `gorm:"primaryKey" json:"id"`
	UserID  uint      `gorm:"index;not null" json:"user_id"`
	Title   string    `gorm:"size:255;not null" json:"title"`
	Artist  string    `gorm:"size:255" json:"artist"`
	URL     string    `gorm:"size:512" json:"url"`
	AddedAt time.Time `json:"added_at"`
}
