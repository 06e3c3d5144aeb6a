package dto

import "github.com/gchat-dev/gchat-api/internal/models"

// RoomSummary is one row of a user's room list.
type RoomSummary struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	IsGroup     bool   `json:"is_group"`
	IsPrivate   bool   `json:"is_private"`
}

// NewRoomSummary converts a room model.
func NewRoomSummary(room models.Room) RoomSummary {
	display := room.DisplayName
	if display == "" {
		display = room.Name
	}
	return RoomSummary{
		Name:        room.Name,
		DisplayName: display,
		IsGroup:     room.IsGroup,
		IsPrivate:   room.IsPrivate,
	}
}

// NewRoomSummarySlice converts a slice of rooms.
func NewRoomSummarySlice(rooms []models.Room) []RoomSummary {
	out := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, NewRoomSummary(room))
	}
	return out
}

// CreateRoomRequest creates a group channel.
type CreateRoomRequest struct {
	Name      string `json:"name" validate:"required,min=2,max=120"`
	IsPrivate bool   `json:"is_private"`
}

// RoomInfoResponse carries room metadata, the sorted member list and whether
// the viewer may invite.
type RoomInfoResponse struct {
	Meta      RoomSummary   `json:"meta"`
	Members   []UserSummary `json:"members"`
	CanInvite bool          `json:"can_invite"`
}
