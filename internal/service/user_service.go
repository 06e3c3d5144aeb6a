package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/gchat-dev/gchat-api/internal/apperrors"
	"github.com/gchat-dev/gchat-api/internal/dto"
	"github.com/gchat-dev/gchat-api/internal/models"
	"github.com/gchat-dev/gchat-api/internal/repository"
)

// Friend statuses reported to viewers.
const (
	FriendStatusNone            = "none"
	FriendStatusFriends         = "friends"
	FriendStatusRequestSent     = "request_sent"
	FriendStatusRequestReceived = "request_received"
)

const musicHistoryCap = 100

// UserService covers profiles, settings, the friend graph, blocks and music
// history.
type UserService interface {
	Profile(ctx context.Context, viewerID uint, username string) (dto.ProfileResponse, error)
	UpdateProfile(ctx context.Context, userID uint, req dto.ProfileUpdateRequest) (models.User, error)
	Settings(ctx context.Context, userID uint) (dto.SettingsResponse, error)
	UpdateSettings(ctx context.Context, userID uint, req dto.SettingsUpdateRequest) (dto.SettingsResponse, error)

	Search(ctx context.Context, viewerID uint, query string) ([]dto.SearchResult, error)
	Friends(ctx context.Context, userID uint) ([]dto.UserSummary, error)
	FriendStatus(ctx context.Context, viewerID, otherID uint) (string, error)

	SendFriendRequest(ctx context.Context, fromID uint, fromUsername, toUsername string) error
	RespondFriendRequest(ctx context.Context, userID uint, username, fromUsername, action string) error
	CancelFriendRequest(ctx context.Context, fromID uint, fromUsername, toUsername string) error
	RemoveFriend(ctx context.Context, userID uint, username string) error

	Block(ctx context.Context, blockerID uint, username string) error
	Unblock(ctx context.Context, blockerID uint, username string) error
	Blocked(ctx context.Context, blockerID uint) ([]dto.UserSummary, error)

	MusicHistory(ctx context.Context, userID uint) ([]dto.MusicEntryResponse, error)
	AddMusicEntry(ctx context.Context, userID uint, req dto.MusicEntryCreateRequest) (dto.MusicEntryResponse, error)
	DeleteMusicEntry(ctx context.Context, userID, entryID uint) error
}

type userService struct {
	users         repository.UserRepository
	music         repository.MusicHistoryRepository
	notifications NotificationService
	sink          EventSink
	validator     *validator.Validate
	sanitizer     *bluemonday.Policy
	logger        zerolog.Logger
}

// NewUserService constructs the user service.
func NewUserService(users repository.UserRepository, music repository.MusicHistoryRepository, notifications NotificationService, sink EventSink, validate *validator.Validate, logger zerolog.Logger) UserService {
	return &userService{
		users:         users,
		music:         music,
		notifications: notifications,
		sink:          sink,
		validator:     validate,
		sanitizer:     bluemonday.StrictPolicy(),
		logger:        logger.With().Str("component", "user_service").Logger(),
	}
}

func (s *userService) Profile(ctx context.Context, viewerID uint, username string) (dto.ProfileResponse, error) {
	user, err := s.findUser(ctx, username)
	if err != nil {
		return dto.ProfileResponse{}, err
	}

	status := FriendStatusNone
	if viewerID != user.ID {
		status, err = s.FriendStatus(ctx, viewerID, user.ID)
		if err != nil {
			return dto.ProfileResponse{}, err
		}
	}

	response := dto.ProfileResponse{
		ID:            user.ID,
		Username:      user.Username,
		DisplayName:   user.DisplayName,
		Avatar:        user.Avatar,
		Status:        user.Status,
		Bio:           user.Bio,
		FavoriteMusic: user.FavoriteMusic,
		FriendStatus:  status,
	}
	if viewerID == user.ID {
		response.StarsBalance = user.StarsBalance
	}

	return response, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID uint, req dto.ProfileUpdateRequest) (models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.User{}, apperrors.New(apperrors.CodeInvalidArgument, "invalid profile fields")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return models.User{}, err
	}

	if req.Status != nil {
		user.Status = strings.TrimSpace(s.sanitizer.Sanitize(*req.Status))
	}
	if req.DisplayName != nil {
		user.DisplayName = strings.TrimSpace(s.sanitizer.Sanitize(*req.DisplayName))
	}
	if req.Bio != nil {
		user.Bio = strings.TrimSpace(s.sanitizer.Sanitize(*req.Bio))
	}
	if req.FavoriteMusic != nil {
		user.FavoriteMusic = strings.TrimSpace(s.sanitizer.Sanitize(*req.FavoriteMusic))
	}
	if req.AvatarPath != nil && *req.AvatarPath != "" {
		user.Avatar = *req.AvatarPath
	}

	if err := s.users.Save(ctx, &user); err != nil {
		return models.User{}, err
	}

	return user, nil
}

func (s *userService) Settings(ctx context.Context, userID uint) (dto.SettingsResponse, error) {
	settings, err := s.users.GetSettings(ctx, userID)
	if err != nil {
		return dto.SettingsResponse{}, err
	}
	return dto.NewSettingsResponse(settings), nil
}

func (s *userService) UpdateSettings(ctx context.Context, userID uint, req dto.SettingsUpdateRequest) (dto.SettingsResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.SettingsResponse{}, apperrors.New(apperrors.CodeInvalidArgument, "invalid settings fields")
	}

	settings, err := s.users.GetSettings(ctx, userID)
	if err != nil {
		return dto.SettingsResponse{}, err
	}

	if req.Theme != nil {
		settings.Theme = *req.Theme
	}
	if req.NotificationsEnabled != nil {
		settings.NotificationsEnabled = *req.NotificationsEnabled
	}
	if req.SoundEnabled != nil {
		settings.SoundEnabled = *req.SoundEnabled
	}
	if req.PrivacyLastSeen != nil {
		settings.PrivacyLastSeen = *req.PrivacyLastSeen
	}
	if req.CompactMode != nil {
		settings.CompactMode = *req.CompactMode
	}
	if req.MessagePreview != nil {
		settings.MessagePreview = *req.MessagePreview
	}

	if err := s.users.SaveSettings(ctx, &settings); err != nil {
		return dto.SettingsResponse{}, err
	}

	return dto.NewSettingsResponse(settings), nil
}

func (s *userService) Search(ctx context.Context, viewerID uint, query string) ([]dto.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []dto.SearchResult{}, nil
	}

	users, err := s.users.Search(ctx, query, viewerID, 30)
	if err != nil {
		return nil, err
	}

	results := make([]dto.SearchResult, 0, len(users))
	for _, user := range users {
		status, err := s.FriendStatus(ctx, viewerID, user.ID)
		if err != nil {
			return nil, err
		}
		results = append(results, dto.SearchResult{
			Username:     user.Username,
			Avatar:       user.Avatar,
			FriendStatus: status,
		})
	}

	return results, nil
}

func (s *userService) Friends(ctx context.Context, userID uint) ([]dto.UserSummary, error) {
	friends, err := s.users.ListFriends(ctx, userID)
	if err != nil {
		return nil, err
	}
	return dto.NewUserSummarySlice(friends), nil
}

// FriendStatus reports the relation between viewer and other: friends, a
// pending request in either direction, or none.
func (s *userService) FriendStatus(ctx context.Context, viewerID, otherID uint) (string, error) {
	friends, err := s.users.AreFriends(ctx, viewerID, otherID)
	if err != nil {
		return "", err
	}
	if friends {
		return FriendStatusFriends, nil
	}

	request, err := s.users.PendingBetween(ctx, viewerID, otherID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return FriendStatusNone, nil
	}
	if err != nil {
		return "", err
	}

	if request.FromUserID == viewerID {
		return FriendStatusRequestSent, nil
	}
	return FriendStatusRequestReceived, nil
}

func (s *userService) SendFriendRequest(ctx context.Context, fromID uint, fromUsername, toUsername string) error {
	if strings.EqualFold(fromUsername, toUsername) {
		return apperrors.New(apperrors.CodeInvalidArgument, "you cannot send a friend request to yourself")
	}

	recipient, err := s.findUser(ctx, toUsername)
	if err != nil {
		return err
	}

	blocked, err := s.users.IsBlockedEither(ctx, fromID, recipient.ID)
	if err != nil {
		return err
	}
	if blocked {
		return apperrors.New(apperrors.CodeForbidden, "you cannot send a friend request to this user")
	}

	status, err := s.FriendStatus(ctx, fromID, recipient.ID)
	if err != nil {
		return err
	}
	switch status {
	case FriendStatusFriends:
		return apperrors.New(apperrors.CodeConflict, "you are already friends")
	case FriendStatusRequestSent:
		return apperrors.New(apperrors.CodeConflict, "friend request already sent")
	case FriendStatusRequestReceived:
		return apperrors.New(apperrors.CodeConflict, "this user already sent you a friend request")
	}

	request := models.FriendRequest{
		FromUserID: fromID,
		ToUserID:   recipient.ID,
		Status:     models.FriendRequestPending,
	}
	if err := s.users.CreateFriendRequest(ctx, &request); err != nil {
		return err
	}

	if err := s.notifications.Notify(ctx, recipient.ID, recipient.Username, models.NotifFriendRequest,
		"Friend request", fromUsername+" sent you a friend request",
		map[string]interface{}{"from": fromUsername}); err != nil {
		s.logger.Warn().Err(err).Msg("failed to store friend request notification")
	}

	s.sink.SendToUser(recipient.Username, dto.Event{
		Type: dto.EventFriendRequestUpdate,
		Data: dto.FriendRequestUpdatePayload{Kind: "incoming", User: fromUsername},
	})

	return nil
}

func (s *userService) RespondFriendRequest(ctx context.Context, userID uint, username, fromUsername, action string) error {
	sender, err := s.findUser(ctx, fromUsername)
	if err != nil {
		return err
	}

	request, err := s.users.PendingRequest(ctx, sender.ID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.New(apperrors.CodeNotFound, "friend request not found")
	}
	if err != nil {
		return err
	}

	switch action {
	case "accept":
		request.Status = models.FriendRequestAccepted
		if err := s.users.SaveFriendRequest(ctx, &request); err != nil {
			return err
		}
		if err := s.users.AddFriendship(ctx, userID, sender.ID); err != nil {
			return err
		}

		if err := s.notifications.Notify(ctx, sender.ID, sender.Username, models.NotifFriendAccepted,
			"Friend request accepted", username+" accepted your friend request",
			map[string]interface{}{"from": username}); err != nil {
			s.logger.Warn().Err(err).Msg("failed to store friend accepted notification")
		}

		s.sink.SendToUser(sender.Username, dto.Event{
			Type: dto.EventFriendRequestUpdate,
			Data: dto.FriendRequestUpdatePayload{Kind: "accepted", User: username},
		})
		s.pushFriendsList(ctx, userID, username)
		s.pushFriendsList(ctx, sender.ID, sender.Username)
		return nil
	case "reject":
		request.Status = models.FriendRequestRejected
		return s.users.SaveFriendRequest(ctx, &request)
	default:
		return apperrors.New(apperrors.CodeInvalidArgument, "action must be accept or reject")
	}
}

func (s *userService) CancelFriendRequest(ctx context.Context, fromID uint, fromUsername, toUsername string) error {
	recipient, err := s.findUser(ctx, toUsername)
	if err != nil {
		return err
	}

	request, err := s.users.PendingRequest(ctx, fromID, recipient.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.New(apperrors.CodeNotFound, "friend request not found")
	}
	if err != nil {
		return err
	}

	if err := s.users.DeleteFriendRequest(ctx, request.ID); err != nil {
		return err
	}

	s.sink.SendToUser(recipient.Username, dto.Event{
		Type: dto.EventFriendRequestUpdate,
		Data: dto.FriendRequestUpdatePayload{Kind: "cancelled", User: fromUsername},
	})

	return nil
}

func (s *userService) RemoveFriend(ctx context.Context, userID uint, username string) error {
	other, err := s.findUser(ctx, username)
	if err != nil {
		return err
	}

	friends, err := s.users.AreFriends(ctx, userID, other.ID)
	if err != nil {
		return err
	}
	if !friends {
		return apperrors.New(apperrors.CodeNotFound, "you are not friends with this user")
	}

	if err := s.users.RemoveFriendship(ctx, userID, other.ID); err != nil {
		return err
	}

	self, err := s.users.FindByID(ctx, userID)
	if err == nil {
		s.pushFriendsList(ctx, userID, self.Username)
	}
	s.pushFriendsList(ctx, other.ID, other.Username)

	return nil
}

func (s *userService) Block(ctx context.Context, blockerID uint, username string) error {
	other, err := s.findUser(ctx, username)
	if err != nil {
		return err
	}
	if other.ID == blockerID {
		return apperrors.New(apperrors.CodeInvalidArgument, "you cannot block yourself")
	}

	// Blocking dissolves any existing friendship and pending requests.
	if err := s.users.RemoveFriendship(ctx, blockerID, other.ID); err != nil {
		return err
	}
	if request, err := s.users.PendingBetween(ctx, blockerID, other.ID); err == nil {
		if err := s.users.DeleteFriendRequest(ctx, request.ID); err != nil {
			return err
		}
	}

	return s.users.Block(ctx, blockerID, other.ID)
}

func (s *userService) Unblock(ctx context.Context, blockerID uint, username string) error {
	other, err := s.findUser(ctx, username)
	if err != nil {
		return err
	}
	return s.users.Unblock(ctx, blockerID, other.ID)
}

func (s *userService) Blocked(ctx context.Context, blockerID uint) ([]dto.UserSummary, error) {
	users, err := s.users.ListBlocked(ctx, blockerID)
	if err != nil {
		return nil, err
	}
	return dto.NewUserSummarySlice(users), nil
}

func (s *userService) MusicHistory(ctx context.Context, userID uint) ([]dto.MusicEntryResponse, error) {
	entries, err := s.music.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	return dto.NewMusicEntryResponseSlice(entries), nil
}

func (s *userService) AddMusicEntry(ctx context.Context, userID uint, req dto.MusicEntryCreateRequest) (dto.MusicEntryResponse, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Artist = strings.TrimSpace(req.Artist)
	if err := s.validator.Struct(req); err != nil {
		return dto.MusicEntryResponse{}, apperrors.New(apperrors.CodeInvalidArgument, "title must be at least 2 characters and url must be valid")
	}

	count, err := s.music.Count(ctx, userID)
	if err != nil {
		return dto.MusicEntryResponse{}, err
	}
	if count >= musicHistoryCap {
		if err := s.music.DeleteOldest(ctx, userID); err != nil {
			return dto.MusicEntryResponse{}, err
		}
	}

	entry := models.MusicHistoryEntry{
		UserID:  userID,
		Title:   req.Title,
		Artist:  req.Artist,
		URL:     req.URL,
		AddedAt: time.Now().UTC(),
	}
	if err := s.music.Create(ctx, &entry); err != nil {
		return dto.MusicEntryResponse{}, err
	}

	return dto.NewMusicEntryResponse(entry), nil
}

func (s *userService) DeleteMusicEntry(ctx context.Context, userID, entryID uint) error {
	entry, err := s.music.Find(ctx, entryID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.New(apperrors.CodeNotFound, "music entry not found")
	}
	if err != nil {
		return err
	}
	if entry.UserID != userID {
		return apperrors.New(apperrors.CodeForbidden, "you can only delete your own entries")
	}

	return s.music.Delete(ctx, entryID)
}

func (s *userService) pushFriendsList(ctx context.Context, userID uint, username string) {
	friends, err := s.Friends(ctx, userID)
	if err != nil {
		s.logger.Warn().Err(err).Str("username", username).Msg("failed to load friends for push")
		return
	}
	s.sink.SendToUser(username, dto.Event{
		Type: dto.EventFriendsList,
		Data: dto.FriendsListPayload{Friends: friends},
	})
}

func (s *userService) findUser(ctx context.Context, username string) (models.User, error) {
	user, err := s.users.FindByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, apperrors.New(apperrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}
