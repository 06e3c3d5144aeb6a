package dto

import (
	"time"

	"github.com/gchat-dev/gchat-api/internal/models"
)

// LoginRequest carries credentials. Unknown usernames are registered on the
// fly, matching the combined login/register form.
type LoginRequest struct {
	Username string `json:"username" validate:"required,min=2,max=80"`
	Password string `json:"password" validate:"required,min=4,max=128"`
}

// AuthResponse returns the signed session token and basic identity.
type AuthResponse struct {
	Token    string `json:"token"`
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// UserSummary is the compact user representation used in lists and pushes.
type UserSummary struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	Avatar      string `json:"avatar"`
}

// NewUserSummary converts a model into the compact view.
func NewUserSummary(user models.User) UserSummary {
	return UserSummary{
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Avatar:      user.Avatar,
	}
}

// NewUserSummarySlice converts a slice of users.
func NewUserSummarySlice(users []models.User) []UserSummary {
	out := make([]UserSummary, 0, len(users))
	for _, user := range users {
		out = append(out, NewUserSummary(user))
	}
	return out
}

// ProfileResponse is the full public profile with the viewer's friend status.
type ProfileResponse struct {
	ID            uint   `json:"id"`
	Username      string `json:"username"`
	DisplayName   string `json:"display_name"`
	Avatar        string `json:"avatar"`
	Status        string `json:"status"`
	Bio           string `json:"bio"`
	FavoriteMusic string `json:"favorite_music"`
	StarsBalance  int64  `json:"stars_balance"`
	FriendStatus  string `json:"friend_status"`
}

// ProfileUpdateRequest carries optional profile field updates. Nil pointers
// leave the current value untouched.
type ProfileUpdateRequest struct {
	Status        *string `json:"status" validate:"omitempty,max=100"`
	DisplayName   *string `json:"display_name" validate:"omitempty,max=120"`
	Bio           *string `json:"bio" validate:"omitempty,max=2000"`
	FavoriteMusic *string `json:"favorite_music" validate:"omitempty,max=255"`
	AvatarPath    *string `json:"avatar_path" validate:"omitempty,max=255"`
}

// SettingsResponse mirrors the persisted per-user preferences.
type SettingsResponse struct {
	Theme                string `json:"theme"`
	NotificationsEnabled bool   `json:"notifications_enabled"`
	SoundEnabled         bool   `json:"sound_enabled"`
	PrivacyLastSeen      string `json:"privacy_last_seen"`
	CompactMode          bool   `json:"compact_mode"`
	MessagePreview       bool   `json:"message_preview"`
}

// NewSettingsResponse converts a settings model.
func NewSettingsResponse(settings models.UserSettings) SettingsResponse {
	return SettingsResponse{
		Theme:                settings.Theme,
		NotificationsEnabled: settings.NotificationsEnabled,
		SoundEnabled:         settings.SoundEnabled,
		PrivacyLastSeen:      settings.PrivacyLastSeen,
		CompactMode:          settings.CompactMode,
		MessagePreview:       settings.MessagePreview,
	}
}

// SettingsUpdateRequest carries optional settings updates.
type SettingsUpdateRequest struct {
	Theme                *string `json:"theme" validate:"omitempty,oneof=dark light"`
	NotificationsEnabled *bool   `json:"notifications_enabled"`
	SoundEnabled         *bool   `json:"sound_enabled"`
	PrivacyLastSeen      *string `json:"privacy_last_seen" validate:"omitempty,oneof=everyone friends nobody"`
	CompactMode          *bool   `json:"compact_mode"`
	MessagePreview       *bool   `json:"message_preview"`
}

// SearchResult is a user search hit annotated with the viewer's friend status.
type SearchResult struct {
	Username     string `json:"username"`
	Avatar       string `json:"avatar"`
	FriendStatus string `json:"friend_status"`
}

// MusicEntryCreateRequest adds a track to the caller's music history.
type MusicEntryCreateRequest struct {
	Title  string `json:"title" validate:"required,min=2,max=255"`
	Artist string `json:"artist" validate:"omitempty,max=255"`
	URL    string `json:"url" validate:"omitempty,url,max=512"`
}

// MusicEntryResponse is a stored music history entry.
type MusicEntryResponse struct {
	ID      uint      `json:"id"`
	Title   string    `json:"title"`
	Artist  string    `json:"artist,omitempty"`
	URL     string    `json:"url,omitempty"`
	AddedAt time.Time `json:"added_at"`
}

// NewMusicEntryResponse converts a model entry.
func NewMusicEntryResponse(entry models.MusicHistoryEntry) MusicEntryResponse {
	return MusicEntryResponse{
		ID:      entry.ID,
		Title:   entry.Title,
		Artist:  entry.Artist,
		URL:     entry.URL,
		AddedAt: entry.AddedAt,
	}
}

// NewMusicEntryResponseSlice converts a slice of entries.
func NewMusicEntryResponseSlice(entries []models.MusicHistoryEntry) []MusicEntryResponse {
	out := make([]MusicEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, NewMusicEntryResponse(entry))
	}
	return out
}
