package dto

import "time"

// ReplyPreview is the resolved author and content of a reply target. Omitted
// entirely when the target message was deleted.
type ReplyPreview struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// MessageResponse is the serialized representation of a stored message.
type MessageResponse struct {
	ID             uint          `json:"id"`
	Room           string        `json:"room"`
	Username       string        `json:"username"`
	Avatar         string        `json:"avatar"`
	Message        string        `json:"message"`
	AttachmentPath string        `json:"attachment_path,omitempty"`
	IsEdited       bool          `json:"is_edited"`
	RepliedTo      *ReplyPreview `json:"replied_to,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
}
