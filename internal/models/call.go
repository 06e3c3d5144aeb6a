package models

import "time"

// Call types and statuses.
const (
	CallTypeAudio = "audio"
	CallTypeVideo = "video"

	CallStatusPending  = "pending"
	CallStatusActive   = "active"
	CallStatusRejected = "rejected"
	CallStatusMissed   = "missed"
	CallStatusEnded    = "ended"
)

// CallLog is the audit trail of a call attempt between two users. Live
// signaling state is transient and never persisted beyond this row.
type CallLog struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	FromUserID uint       `gorm:"index;not null" json:"from_user_id"`
	ToUserID   uint       `gorm:"index;not null" json:"to_user_id"`
	CallType   string     `gorm:"size:16;default:audio" json:"call_type"`
	Status     string     `gorm:"size:16;default:pending" json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at"`
	Duration   int64      `gorm:"default:0" json:"duration"`
}
