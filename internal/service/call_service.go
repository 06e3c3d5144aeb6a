package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/gchat-dev/gchat-api/internal/apperrors"
	"github.com/gchat-dev/gchat-api/internal/dto"
	"github.com/gchat-dev/gchat-api/internal/models"
	"github.com/gchat-dev/gchat-api/internal/observability"
	"github.com/gchat-dev/gchat-api/internal/repository"
)

// CallService relays WebRTC signaling between two users and keeps the call
// log. SDP and ICE payloads pass through opaque and uninspected.
type CallService interface {
	Start(ctx context.Context, caller models.User, req dto.StartCallRequest) error
	RelayOffer(ctx context.Context, from models.User, req dto.RTCOfferRequest) error
	RelayAnswer(ctx context.Context, from models.User, req dto.RTCAnswerRequest) error
	RelayICECandidate(ctx context.Context, from models.User, req dto.RTCIceCandidateRequest) error
	End(ctx context.Context, from models.User, req dto.EndCallRequest) error
}

type callService struct {
	calls         repository.CallRepository
	users         repository.UserRepository
	notifications NotificationService
	sink          EventSink
	logger        zerolog.Logger
}

// NewCallService constructs the call signaling service.
func NewCallService(calls repository.CallRepository, users repository.UserRepository, notifications NotificationService, sink EventSink, logger zerolog.Logger) CallService {
	return &callService{
		calls:         calls,
		users:         users,
		notifications: notifications,
		sink:          sink,
		logger:        logger.With().Str("component", "call_service").Logger(),
	}
}

// Start opens a pending call log entry and rings the callee's sessions.
func (s *callService) Start(ctx context.Context, caller models.User, req dto.StartCallRequest) error {
	callee, err := s.findPeer(ctx, caller.ID, req.To)
	if err != nil {
		return err
	}

	callType := req.CallType
	if callType == "" {
		callType = models.CallTypeAudio
	}

	call := models.CallLog{
		FromUserID: caller.ID,
		ToUserID:   callee.ID,
		CallType:   callType,
		Status:     models.CallStatusPending,
		StartedAt:  time.Now().UTC(),
	}
	if err := s.calls.Create(ctx, &call); err != nil {
		return err
	}

	observability.CallsStarted().WithLabelValues(callType).Inc()

	s.sink.SendToUser(callee.Username, dto.Event{
		Type: dto.EventIncomingCall,
		Data: dto.IncomingCallPayload{From: caller.Username, CallType: callType},
	})

	return nil
}

func (s *callService) RelayOffer(ctx context.Context, from models.User, req dto.RTCOfferRequest) error {
	callee, err := s.findPeer(ctx, from.ID, req.To)
	if err != nil {
		return err
	}

	s.sink.SendToUser(callee.Username, dto.Event{
		Type: dto.EventRTCOffer,
		Data: dto.RTCOfferPayload{From: from.Username, SDP: req.SDP, CallType: req.CallType},
	})
	return nil
}

func (s *callService) RelayAnswer(ctx context.Context, from models.User, req dto.RTCAnswerRequest) error {
	caller, err := s.findPeer(ctx, from.ID, req.To)
	if err != nil {
		return err
	}

	// An answered offer moves the open call to active so duration counts from
	// here on a plain end.
	if call, err := s.calls.FindOpen(ctx, from.ID, caller.ID); err == nil && call.Status == models.CallStatusPending {
		if err := s.calls.MarkActive(ctx, call.ID); err != nil {
			s.logger.Warn().Err(err).Msg("failed to mark call active")
		}
	}

	s.sink.SendToUser(caller.Username, dto.Event{
		Type: dto.EventRTCAnswer,
		Data: dto.RTCAnswerPayload{From: from.Username, SDP: req.SDP},
	})
	return nil
}

func (s *callService) RelayICECandidate(ctx context.Context, from models.User, req dto.RTCIceCandidateRequest) error {
	peer, err := s.findPeer(ctx, from.ID, req.To)
	if err != nil {
		return err
	}

	s.sink.SendToUser(peer.Username, dto.Event{
		Type: dto.EventRTCIceCandidate,
		Data: dto.RTCIceCandidatePayload{From: from.Username, Candidate: req.Candidate},
	})
	return nil
}

// End closes the open call log entry and tells the peer the call is over. A
// missed or rejected outcome also leaves a notification for the caller's
// benefit.
func (s *callService) End(ctx context.Context, from models.User, req dto.EndCallRequest) error {
	peer, err := s.findPeer(ctx, from.ID, req.To)
	if err != nil {
		return err
	}

	status := req.Status
	if status == "" {
		status = models.CallStatusEnded
	}

	now := time.Now().UTC()
	call, err := s.calls.FindOpen(ctx, from.ID, peer.ID)
	if err == nil {
		if err := s.calls.Close(ctx, call.ID, status, now); err != nil {
			s.logger.Warn().Err(err).Msg("failed to close call log")
		}

		if status == models.CallStatusMissed && call.FromUserID == peer.ID {
			if err := s.notifications.Notify(ctx, from.ID, from.Username, models.NotifCallMissed,
				"Missed call", peer.Username+" tried to call you",
				map[string]interface{}{"from": peer.Username, "call_type": call.CallType}); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store missed call notification")
			}
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	s.sink.SendToUser(peer.Username, dto.Event{
		Type: dto.EventCallEnded,
		Data: dto.CallEndedPayload{Status: status},
	})
	return nil
}

func (s *callService) findPeer(ctx context.Context, selfID uint, username string) (models.User, error) {
	username = strings.TrimSpace(username)
	peer, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, apperrors.New(apperrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return models.User{}, err
	}
	if peer.ID == selfID {
		return models.User{}, apperrors.New(apperrors.CodeInvalidArgument, "you cannot call yourself")
	}
	return peer, nil
}
