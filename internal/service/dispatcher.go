package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gchat-dev/gchat-api/internal/apperrors"
	"github.com/gchat-dev/gchat-api/internal/dto"
	"github.com/gchat-dev/gchat-api/internal/models"
	"github.com/gchat-dev/gchat-api/internal/observability"
	"github.com/gchat-dev/gchat-api/internal/repository"
)

const presenceTTL = 5 * time.Minute

// Dispatcher owns the websocket session lifecycle. One reader goroutine per
// connection decodes request envelopes and routes them to the domain
// services; a dedicated writer drains the session's outbound queue so slow
// clients never stall dispatch.
type Dispatcher struct {
	hub           *Hub
	users         repository.UserRepository
	rooms         RoomService
	messages      MessageService
	userSvc       UserService
	notifications NotificationService
	calls         CallService
	redis         *redis.Client
	presenceKey   string
	logger        zerolog.Logger
}

// NewDispatcher constructs the websocket dispatcher.
func NewDispatcher(hub *Hub, users repository.UserRepository, rooms RoomService, messages MessageService, userSvc UserService, notifications NotificationService, calls CallService, redisClient *redis.Client, channelBase string, logger zerolog.Logger) *Dispatcher {
	presenceKey := ""
	if channelBase != "" {
		presenceKey = channelBase + ":presence"
	}

	return &Dispatcher{
		hub:           hub,
		users:         users,
		rooms:         rooms,
		messages:      messages,
		userSvc:       userSvc,
		notifications: notifications,
		calls:         calls,
		redis:         redisClient,
		presenceKey:   presenceKey,
		logger:        logger.With().Str("component", "dispatcher").Logger(),
	}
}

// ServeConnection runs the session until the client disconnects. The caller
// must have authenticated the user already.
func (d *Dispatcher) ServeConnection(conn *websocket.Conn, userID uint, username string) {
	ctx := context.Background()

	user, err := d.users.FindByID(ctx, userID)
	if err != nil {
		d.logger.Warn().Err(err).Uint("user_id", userID).Msg("rejecting session for unknown user")
		_ = conn.Close()
		return
	}

	session := d.hub.NewSession(conn, user.ID, user.Username)
	if first := d.hub.Register(session); first {
		d.markOnline(ctx, user)
	}

	go session.writer(d.logger)

	d.pushRoomsList(ctx, session)
	d.pushFriendsList(ctx, session)
	d.notifications.PushList(ctx, user.ID, user.Username)

	d.readLoop(ctx, session, &user)

	session.close()
	if last := d.hub.Unregister(session); last {
		d.markOffline(ctx, user)
	}
}

func (d *Dispatcher) readLoop(ctx context.Context, session *Session, user *models.User) {
	for {
		var request dto.Request
		if err := session.conn.ReadJSON(&request); err != nil {
			d.logger.Debug().Err(err).Str("username", session.Username).Msg("session read loop ended")
			return
		}

		if err := d.dispatch(ctx, session, user, request); err != nil {
			observability.RequestsDispatched().WithLabelValues(request.Type, "error").Inc()
			session.Push(dto.Event{
				Type: dto.EventError,
				Data: dto.ErrorPayload{Code: string(apperrors.CodeOf(err)), Msg: apperrors.MessageOf(err)},
			})
			continue
		}
		observability.RequestsDispatched().WithLabelValues(request.Type, "ok").Inc()
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, session *Session, user *models.User, request dto.Request) error {
	switch request.Type {
	case dto.RequestJoinRoom:
		var payload dto.JoinRoomRequest
		if err := decode(request.Data, &payload); err != nil {
			return err
		}
		room, err := d.rooms.ResolveForSend(ctx, user.ID, user.Username, payload.Room)
		if err != nil {
			return err
		}
		d.hub.JoinRoom(session, room.Name)
		return nil

	case dto.RequestLeaveRoom:
		var payload dto.LeaveRoomRequest
		if err := decode(request.Data, &payload); err != nil {
			return err
		}
		d.hub.LeaveRoom(session, payload.Room)
		return nil

	case dto.RequestGetRooms:
		d.pushRoomsList(ctx, session)
		return nil

	case dto.RequestGetFriends:
		d.pushFriendsList(ctx, session)
		return nil

	case dto.RequestGetNotifications:
		d.notifications.PushList(ctx, user.ID, user.Username)
		return nil

	case dto.RequestGetHistory:
		var payload dto.HistoryRequest
		if err := decode(request.Data, &payload); err != nil {
			return err
		}
		history, err := d.messages.History(ctx, *user, payload)
		if err != nil {
			return err
		}
		session.Push(dto.Event{Type: dto.EventMessageHistory, Data: history})
		return nil

	case dto.RequestSendMessage:
		var payload dto.SendMessageRequest
		if err := decode(request.Data, &payload); err != nil {
			return err
		}
		room, response, err := d.messages.Post(ctx, *user, payload)
		if err != nil {
			return err
		}
		d.hub.SendToRoom(room.Name, dto.Event{Type: dto.EventNewMessage, Data: response}, nil)
		d.notifyDirectRecipient(ctx, room, *user)
		return nil

	case dto.RequestEditMessage:
		var payload dto.EditMessageRequest
		if err := decode(request.Data, &payload); err != nil {
			return err
		}
		room, update, err := d.messages.Edit(ctx, user.ID, payload)
		if err != nil {
			return err
		}
		d.hub.SendToRoom(room.Name, dto.Event{Type: dto.EventMessageUpdated, Data: update}, nil)
		return nil

	case dto.RequestDeleteMessage:
		var payload dto.DeleteMessageRequest
		if err := decode(request.Data, &payload); err != nil {
			return err
		}
		room, removal, err := d.messages.Delete(ctx, user.ID, payload)
		if err != nil {
			return err
		}
		d.hub.SendToRoom(room.Name, dto.Event{Type: dto.EventMessageDeleted, Data: removal}, nil)
		return nil

	case dto.RequestTyping:
		var payload dto.TypingRequest
		if err := decode(request.Data, &payload); err != nil {
			return err
		}
		room, err := d.rooms.ResolveForSend(ctx, user.ID, user.Username, payload.Room)
		if err != nil {
			return err
		}
		d.hub.SendToRoom(room.Name, dto.Event{
			Type: dto.EventUserTyping,
			Data: dto.TypingPayload{Username: user.Username, IsTyping: payload.IsTyping},
		}, session)
		return nil

	case dto.RequestSearchUsers:
		var payload dto.SearchUsersRequest
		if err := decode(request.Data, &payload); err != nil {
			return err
		}
		results, err := d.userSvc.Search(ctx, user.ID, payload.Query)
		if err != nil {
			return err
		}
		session.Push(dto.Event{Type: dto.EventUserSearchResults, Data: dto.UserSearchResultsPayload{Results: results}})
		return nil

	case dto.RequestFriendRequestSend:
		var payload dto.FriendRequestSendRequest
		if err := decode(request.Data, &payload); err != nil {
			return err
		}
		return d.userSvc.SendFriendRequest(ctx, user.ID, user.Username, payload.ToUsername)

	case dto.RequestFriendRequestRespond:
		var payload dto.FriendRequestRespondRequest
		if err := decode(request.Data, &payload); err != nil {
			return err
		}
		return d.userSvc.RespondFriendRequest(ctx, user.ID, user.Username, payload.FromUsername, payload.Action)

	case dto.RequestFriendRequestCancel:
		var payload dto.FriendRequestCancelRequest
		if err := decode(request.Data, &payload); err != nil {
			return err
		}
		return d.userSvc.CancelFriendRequest(ctx, user.ID, user.Username, payload.ToUsername)

	case dto.RequestFriendRemove:
		var payload dto.FriendRemoveRequest
		if err := decode(request.Data, &payload); err != nil {
			return err
		}
		return d.userSvc.RemoveFriend(ctx, user.ID, payload.Username)

	case dto.RequestInviteUser:
		var payload dto.InviteUserRequest
		if err := decode(request.Data, &payload); err != nil {
			return err
		}
		room, invitee, members, err := d.rooms.Invite(ctx, user.ID, user.Username, payload.Room, payload.Username)
		if err != nil {
			session.Push(dto.Event{
				Type: dto.EventRoomInviteError,
				Data: dto.RoomInviteErrorPayload{
					Room:     payload.Room,
					Username: payload.Username,
					Message:  apperrors.MessageOf(err),
				},
			})
			return nil
		}
		d.hub.SendToRoom(room.Name, dto.Event{
			Type: dto.EventRoomMemberInvited,
			Data: dto.RoomMemberInvitedPayload{Room: room.Name, Username: invitee.Username, Members: members},
		}, nil)
		d.pushRoomsListToUser(ctx, invitee.ID, invitee.Username)
		return nil

	case dto.RequestStartCall:
		var payload dto.StartCallRequest
		if err := decode(request.Data, &payload); err != nil {
			return err
		}
		return d.calls.Start(ctx, *user, payload)

	case dto.RequestRTCOffer:
		var payload dto.RTCOfferRequest
		if err := decode(request.Data, &payload); err != nil {
			return err
		}
		return d.calls.RelayOffer(ctx, *user, payload)

	case dto.RequestRTCAnswer:
		var payload dto.RTCAnswerRequest
		if err := decode(request.Data, &payload); err != nil {
			return err
		}
		return d.calls.RelayAnswer(ctx, *user, payload)

	case dto.RequestRTCIceCandidate:
		var payload dto.RTCIceCandidateRequest
		if err := decode(request.Data, &payload); err != nil {
			return err
		}
		return d.calls.RelayICECandidate(ctx, *user, payload)

	case dto.RequestEndCall:
		var payload dto.EndCallRequest
		if err := decode(request.Data, &payload); err != nil {
			return err
		}
		return d.calls.End(ctx, *user, payload)

	default:
		return apperrors.Newf(apperrors.CodeInvalidArgument, "unknown request type %q", request.Type)
	}
}

// notifyDirectRecipient leaves a message notification for the other party of
// a direct room so closed clients still learn about the conversation.
func (d *Dispatcher) notifyDirectRecipient(ctx context.Context, room models.Room, sender models.User) {
	if room.IsGroup {
		return
	}

	info, err := d.rooms.Info(ctx, sender.ID, room.Name)
	if err != nil {
		return
	}
	for _, member := range info.Members {
		if member.Username == sender.Username {
			continue
		}
		recipient, err := d.users.FindByUsername(ctx, member.Username)
		if err != nil {
			continue
		}
		if err := d.notifications.Notify(ctx, recipient.ID, recipient.Username, models.NotifMessage,
			"New message", sender.Username+" sent you a message",
			map[string]interface{}{"from": sender.Username, "room": room.Name}); err != nil {
			d.logger.Warn().Err(err).Msg("failed to store message notification")
		}
	}
}

func (d *Dispatcher) pushRoomsList(ctx context.Context, session *Session) {
	d.pushRoomsListToUser(ctx, session.UserID, session.Username)
}

func (d *Dispatcher) pushRoomsListToUser(ctx context.Context, userID uint, username string) {
	rooms, err := d.rooms.ListAvailable(ctx, userID)
	if err != nil {
		d.logger.Warn().Err(err).Str("username", username).Msg("failed to load rooms for push")
		return
	}
	d.hub.SendToUser(username, dto.Event{Type: dto.EventRoomsList, Data: dto.RoomsListPayload{Rooms: rooms}})
}

func (d *Dispatcher) pushFriendsList(ctx context.Context, session *Session) {
	friends, err := d.userSvc.Friends(ctx, session.UserID)
	if err != nil {
		d.logger.Warn().Err(err).Str("username", session.Username).Msg("failed to load friends for push")
		return
	}
	session.Push(dto.Event{Type: dto.EventFriendsList, Data: dto.FriendsListPayload{Friends: friends}})
}

func (d *Dispatcher) markOnline(ctx context.Context, user models.User) {
	if err := d.users.SetPresence(ctx, user.ID, true, time.Now().UTC()); err != nil {
		d.logger.Warn().Err(err).Str("username", user.Username).Msg("failed to mark user online")
	}
	if d.redis != nil && d.presenceKey != "" {
		key := d.presenceKey + ":" + user.Username
		if err := d.redis.Set(ctx, key, "online", presenceTTL).Err(); err != nil {
			d.logger.Debug().Err(err).Msg("failed to stamp presence in redis")
		}
	}
}

func (d *Dispatcher) markOffline(ctx context.Context, user models.User) {
	if err := d.users.SetPresence(ctx, user.ID, false, time.Now().UTC()); err != nil {
		d.logger.Warn().Err(err).Str("username", user.Username).Msg("failed to mark user offline")
	}
	if d.redis != nil && d.presenceKey != "" {
		key := d.presenceKey + ":" + user.Username
		if err := d.redis.Del(ctx, key).Err(); err != nil {
			d.logger.Debug().Err(err).Msg("failed to clear presence in redis")
		}
	}
}

func decode(data json.RawMessage, target interface{}) error {
	if len(data) == 0 {
		return apperrors.New(apperrors.CodeInvalidArgument, "missing request payload")
	}
	if err := json.Unmarshal(data, target); err != nil {
		return apperrors.New(apperrors.CodeInvalidArgument, "malformed request payload")
	}
	return nil
}
