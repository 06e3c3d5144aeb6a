package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification types pushed to recipients.
const (
	NotifFriendRequest  = "friend_request"
	NotifFriendAccepted = "friend_accepted"
	NotifMessage        = "message"
	NotifCallIncoming   = "call_incoming"
	NotifCallMissed     = "call_missed"
	NotifCallEnded      = "call_ended"
	NotifRoomInvite     = "room_invite"
	NotifStarsReceived  = "stars_received"
	NotifGiftReceived   = "gift_received"
	NotifGiftSold       = "gift_sold"
)

// Notification is an acknowledgment-free event persisted for a recipient.
type Notification struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	RecipientID uint              `gorm:"index;not null" json:"recipient_id"`
	Type        string            `gorm:"size:32;not null" json:"type"`
	FromUserID  *uint             `gorm:"index" json:"from_user_id"`
	Title       string            `gorm:"size:255;not null" json:"title"`
	Message     string            `gorm:"type:text;not null" json:"message"`
	Data        datatypes.JSONMap `gorm:"type:json" json:"data"`
	IsRead      bool              `gorm:"default:false" json:"is_read"`
	CreatedAt   time.Time         `json:"created_at"`
}
