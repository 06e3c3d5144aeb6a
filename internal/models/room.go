package models

import "time"

// Room is a named channel (group) or an implicit two-party conversation.
// Direct rooms use a deterministic key derived from the ordered pair of
// member IDs so the same two users always resolve to the same room.
type Room struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"size:120;uniqueIndex;not null" json:"name"`
	DisplayName   string    `gorm:"size:120" json:"display_name"`
	IsGroup       bool      `json:"is_group"`
	IsPrivate     bool      `gorm:"default:false" json:"is_private"`
	CreatorID     uint      `gorm:"index" json:"creator_id"`
	LastMessageAt time.Time `json:"last_message_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// RoomMember is one row of the room membership set.
type RoomMember struct {
	RoomID    uint      `gorm:"primaryKey;autoIncrement:false" json:"room_id"`
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Message belongs to exactly one room and one author. ReplyToMessageID is a
// nullable self-reference resolved by an explicit lookup at read time.
type Message struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	RoomID           uint      `gorm:"index;not null" json:"room_id"`
	UserID           uint      `gorm:"index;not null" json:"user_id"`
	Content          string    `gorm:"type:text;not null" json:"content"`
	AttachmentPath   string    `gorm:"size:255" json:"attachment_path"`
	IsEdited         bool      `gorm:"default:false" json:"is_edited"`
	IsPinned         bool      `gorm:"default:false" json:"is_pinned"`
	ReplyToMessageID *uint     `gorm:"index" json:"reply_to_message_id"`
	CreatedAt        time.Time `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}
