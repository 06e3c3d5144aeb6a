package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/gchat-dev/gchat-api/internal/apperrors"
	"github.com/gchat-dev/gchat-api/internal/dto"
	"github.com/gchat-dev/gchat-api/internal/models"
	"github.com/gchat-dev/gchat-api/internal/repository"
)

const (
	inviteSuggestionsDefault = 8
	inviteSuggestionsMax     = 30
)

// RoomService covers the room registry: group channels, implicit direct
// rooms, membership and invitations.
type RoomService interface {
	ListAvailable(ctx context.Context, userID uint) ([]dto.RoomSummary, error)
	CreateGroup(ctx context.Context, creatorID uint, req dto.CreateRoomRequest) (dto.RoomSummary, error)
	ResolveDirect(ctx context.Context, userID, otherID uint) (models.Room, error)
	ResolveForSend(ctx context.Context, userID uint, username, roomName string) (models.Room, error)
	CanAccess(ctx context.Context, room models.Room, userID uint) (bool, error)
	Invite(ctx context.Context, inviterID uint, inviterUsername, roomName, username string) (models.Room, models.User, []dto.UserSummary, error)
	Info(ctx context.Context, viewerID uint, roomName string) (dto.RoomInfoResponse, error)
	InviteSuggestions(ctx context.Context, viewerID uint, roomName, query string, limit int) ([]dto.UserSummary, error)
}

type roomService struct {
	rooms         repository.RoomRepository
	users         repository.UserRepository
	notifications NotificationService
	validator     *validator.Validate
	logger        zerolog.Logger
}

// NewRoomService constructs the room service.
func NewRoomService(rooms repository.RoomRepository, users repository.UserRepository, notifications NotificationService, validate *validator.Validate, logger zerolog.Logger) RoomService {
	return &roomService{
		rooms:         rooms,
		users:         users,
		notifications: notifications,
		validator:     validate,
		logger:        logger.With().Str("component", "room_service").Logger(),
	}
}

func (s *roomService) ListAvailable(ctx context.Context, userID uint) ([]dto.RoomSummary, error) {
	rooms, err := s.rooms.ListAvailable(ctx, userID)
	if err != nil {
		return nil, err
	}
	return dto.NewRoomSummarySlice(rooms), nil
}

func (s *roomService) CreateGroup(ctx context.Context, creatorID uint, req dto.CreateRoomRequest) (dto.RoomSummary, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return dto.RoomSummary{}, apperrors.New(apperrors.CodeInvalidArgument, "room name must be 2 to 120 characters")
	}

	key := strings.ToLower(strings.ReplaceAll(req.Name, " ", "-"))
	if _, err := s.rooms.FindByName(ctx, key); err == nil {
		return dto.RoomSummary{}, apperrors.New(apperrors.CodeConflict, "a room with this name already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.RoomSummary{}, err
	}

	room := models.Room{
		Name:        key,
		DisplayName: req.Name,
		IsGroup:     true,
		IsPrivate:   req.IsPrivate,
		CreatorID:   creatorID,
	}
	if err := s.rooms.Create(ctx, &room); err != nil {
		return dto.RoomSummary{}, err
	}
	if err := s.rooms.AddMember(ctx, room.ID, creatorID); err != nil {
		return dto.RoomSummary{}, err
	}

	s.logger.Info().Str("room", room.Name).Uint("creator_id", creatorID).Msg("group room created")
	return dto.NewRoomSummary(room), nil
}

// DirectRoomName derives the deterministic key for a two-party room from the
// ordered pair of user IDs, so the same pair always maps to the same room.
func DirectRoomName(a, b uint) string {
	lo, hi := a, b
	if hi < lo {
		lo, hi = hi, lo
	}
	return fmt.Sprintf("dm:%d:%d", lo, hi)
}

// ResolveDirect finds or creates the direct room between two users and
// ensures both are members.
func (s *roomService) ResolveDirect(ctx context.Context, userID, otherID uint) (models.Room, error) {
	name := DirectRoomName(userID, otherID)

	room, err := s.rooms.FindByName(ctx, name)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		room = models.Room{
			Name:      name,
			IsGroup:   false,
			IsPrivate: true,
			CreatorID: userID,
		}
		if err := s.rooms.Create(ctx, &room); err != nil {
			return models.Room{}, err
		}
	} else if err != nil {
		return models.Room{}, err
	}

	if err := s.rooms.AddMember(ctx, room.ID, userID); err != nil {
		return models.Room{}, err
	}
	if err := s.rooms.AddMember(ctx, room.ID, otherID); err != nil {
		return models.Room{}, err
	}

	return room, nil
}

// ResolveForSend maps an inbound room reference to a room the user may post
// into. A reference that names another user resolves to the direct room,
// which requires friendship.
func (s *roomService) ResolveForSend(ctx context.Context, userID uint, username, roomName string) (models.Room, error) {
	roomName = strings.TrimSpace(roomName)

	if room, err := s.rooms.FindByName(ctx, roomName); err == nil {
		allowed, err := s.CanAccess(ctx, room, userID)
		if err != nil {
			return models.Room{}, err
		}
		if !allowed {
			return models.Room{}, apperrors.New(apperrors.CodeForbidden, "you are not a member of this room")
		}
		return room, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Room{}, err
	}

	// Not a known room name: treat it as the other party of a direct chat.
	other, err := s.users.FindByUsername(ctx, roomName)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Room{}, apperrors.New(apperrors.CodeNotFound, "room not found")
	}
	if err != nil {
		return models.Room{}, err
	}
	if other.ID == userID {
		return models.Room{}, apperrors.New(apperrors.CodeInvalidArgument, "you cannot message yourself")
	}

	friends, err := s.users.AreFriends(ctx, userID, other.ID)
	if err != nil {
		return models.Room{}, err
	}
	if !friends {
		return models.Room{}, apperrors.New(apperrors.CodeForbidden, "you can only message friends")
	}

	return s.ResolveDirect(ctx, userID, other.ID)
}

// CanAccess reports whether the user may read and join the room's broadcasts.
// Public group rooms are open to everyone; everything else requires
// membership.
func (s *roomService) CanAccess(ctx context.Context, room models.Room, userID uint) (bool, error) {
	if room.IsGroup && !room.IsPrivate {
		return true, nil
	}
	return s.rooms.IsMember(ctx, room.ID, userID)
}

// Invite adds a friend of the inviter to a private group room. Each failed
// precondition carries its own message so the inviter sees exactly what went
// wrong.
func (s *roomService) Invite(ctx context.Context, inviterID uint, inviterUsername, roomName, username string) (models.Room, models.User, []dto.UserSummary, error) {
	room, err := s.rooms.FindByName(ctx, strings.TrimSpace(roomName))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Room{}, models.User{}, nil, apperrors.New(apperrors.CodeNotFound, "room not found")
	}
	if err != nil {
		return models.Room{}, models.User{}, nil, err
	}

	if !room.IsGroup {
		return models.Room{}, models.User{}, nil, apperrors.New(apperrors.CodeInvalidArgument, "you cannot invite users to a direct chat")
	}
	if !room.IsPrivate {
		return models.Room{}, models.User{}, nil, apperrors.New(apperrors.CodeInvalidArgument, "this room is public, everyone can join")
	}

	isMember, err := s.rooms.IsMember(ctx, room.ID, inviterID)
	if err != nil {
		return models.Room{}, models.User{}, nil, err
	}
	if !isMember {
		return models.Room{}, models.User{}, nil, apperrors.New(apperrors.CodeForbidden, "you are not a member of this room")
	}

	invitee, err := s.users.FindByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Room{}, models.User{}, nil, apperrors.New(apperrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return models.Room{}, models.User{}, nil, err
	}
	if invitee.ID == inviterID {
		return models.Room{}, models.User{}, nil, apperrors.New(apperrors.CodeInvalidArgument, "you cannot invite yourself")
	}

	friends, err := s.users.AreFriends(ctx, inviterID, invitee.ID)
	if err != nil {
		return models.Room{}, models.User{}, nil, err
	}
	if !friends {
		return models.Room{}, models.User{}, nil, apperrors.New(apperrors.CodeForbidden, "you can only invite friends")
	}

	alreadyMember, err := s.rooms.IsMember(ctx, room.ID, invitee.ID)
	if err != nil {
		return models.Room{}, models.User{}, nil, err
	}
	if alreadyMember {
		return models.Room{}, models.User{}, nil, apperrors.New(apperrors.CodeConflict, "this user is already a member")
	}

	if err := s.rooms.AddMember(ctx, room.ID, invitee.ID); err != nil {
		return models.Room{}, models.User{}, nil, err
	}

	if err := s.notifications.Notify(ctx, invitee.ID, invitee.Username, models.NotifRoomInvite,
		"Room invitation", inviterUsername+" added you to "+displayName(room),
		map[string]interface{}{"room": room.Name, "from": inviterUsername}); err != nil {
		s.logger.Warn().Err(err).Msg("failed to store room invite notification")
	}

	members, err := s.rooms.ListMembers(ctx, room.ID)
	if err != nil {
		return models.Room{}, models.User{}, nil, err
	}

	return room, invitee, dto.NewUserSummarySlice(members), nil
}

func (s *roomService) Info(ctx context.Context, viewerID uint, roomName string) (dto.RoomInfoResponse, error) {
	room, err := s.rooms.FindByName(ctx, strings.TrimSpace(roomName))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.RoomInfoResponse{}, apperrors.New(apperrors.CodeNotFound, "room not found")
	}
	if err != nil {
		return dto.RoomInfoResponse{}, err
	}

	allowed, err := s.CanAccess(ctx, room, viewerID)
	if err != nil {
		return dto.RoomInfoResponse{}, err
	}
	if !allowed {
		return dto.RoomInfoResponse{}, apperrors.New(apperrors.CodeForbidden, "you are not a member of this room")
	}

	members, err := s.rooms.ListMembers(ctx, room.ID)
	if err != nil {
		return dto.RoomInfoResponse{}, err
	}

	isMember, err := s.rooms.IsMember(ctx, room.ID, viewerID)
	if err != nil {
		return dto.RoomInfoResponse{}, err
	}

	return dto.RoomInfoResponse{
		Meta:      dto.NewRoomSummary(room),
		Members:   dto.NewUserSummarySlice(members),
		CanInvite: room.IsGroup && room.IsPrivate && isMember,
	}, nil
}

// InviteSuggestions lists the viewer's friends who are not yet members of the
// room, optionally filtered by a substring on username or display name,
// capped at limit.
func (s *roomService) InviteSuggestions(ctx context.Context, viewerID uint, roomName, query string, limit int) ([]dto.UserSummary, error) {
	if limit <= 0 {
		limit = inviteSuggestionsDefault
	}
	if limit > inviteSuggestionsMax {
		limit = inviteSuggestionsMax
	}

	room, err := s.rooms.FindByName(ctx, strings.TrimSpace(roomName))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.New(apperrors.CodeNotFound, "room not found")
	}
	if err != nil {
		return nil, err
	}

	isMember, err := s.rooms.IsMember(ctx, room.ID, viewerID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, apperrors.New(apperrors.CodeForbidden, "you are not a member of this room")
	}

	friends, err := s.users.ListFriends(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(strings.TrimSpace(query))

	suggestions := make([]dto.UserSummary, 0, limit)
	for _, friend := range friends {
		if query != "" &&
			!strings.Contains(strings.ToLower(friend.Username), query) &&
			!strings.Contains(strings.ToLower(friend.DisplayName), query) {
			continue
		}
		member, err := s.rooms.IsMember(ctx, room.ID, friend.ID)
		if err != nil {
			return nil, err
		}
		if member {
			continue
		}
		suggestions = append(suggestions, dto.NewUserSummary(friend))
		if len(suggestions) >= limit {
			break
		}
	}

	return suggestions, nil
}

func displayName(room models.Room) string {
	if room.DisplayName != "" {
		return room.DisplayName
	}
	return room.Name
}
