package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/gchat-dev/gchat-api/internal/apperrors"
	"github.com/gchat-dev/gchat-api/internal/dto"
	"github.com/gchat-dev/gchat-api/internal/models"
	"github.com/gchat-dev/gchat-api/internal/observability"
	"github.com/gchat-dev/gchat-api/internal/repository"
)

// MessageService covers the message ledger: posting, editing, deleting and
// paging history.
type MessageService interface {
	Post(ctx context.Context, sender models.User, req dto.SendMessageRequest) (models.Room, dto.MessageResponse, error)
	Edit(ctx context.Context, userID uint, req dto.EditMessageRequest) (models.Room, dto.MessageUpdatedPayload, error)
	Delete(ctx context.Context, userID uint, req dto.DeleteMessageRequest) (models.Room, dto.MessageDeletedPayload, error)
	History(ctx context.Context, user models.User, req dto.HistoryRequest) (dto.MessageHistoryPayload, error)
}

type messageService struct {
	messages  repository.MessageRepository
	rooms     repository.RoomRepository
	roomSvc   RoomService
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	tracer    trace.Tracer
	logger    zerolog.Logger
}

// NewMessageService constructs the message service.
func NewMessageService(messages repository.MessageRepository, rooms repository.RoomRepository, roomSvc RoomService, validate *validator.Validate, logger zerolog.Logger) MessageService {
	sanitizer := bluemonday.UGCPolicy()
	sanitizer.AllowElements("br")

	return &messageService{
		messages:  messages,
		rooms:     rooms,
		roomSvc:   roomSvc,
		validator: validate,
		sanitizer: sanitizer,
		tracer:    otel.Tracer("github.com/gchat-dev/gchat-api/internal/service/message"),
		logger:    logger.With().Str("component", "message_service").Logger(),
	}
}

func (s *messageService) Post(ctx context.Context, sender models.User, req dto.SendMessageRequest) (models.Room, dto.MessageResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.Room{}, dto.MessageResponse{}, apperrors.New(apperrors.CodeInvalidArgument, "invalid message")
	}

	clean := strings.TrimSpace(s.sanitizer.Sanitize(req.Message))
	attachment := strings.TrimSpace(req.Attachment)
	if clean == "" && attachment == "" {
		return models.Room{}, dto.MessageResponse{}, apperrors.New(apperrors.CodeInvalidArgument, "message must not be empty")
	}

	room, err := s.roomSvc.ResolveForSend(ctx, sender.ID, sender.Username, req.Room)
	if err != nil {
		return models.Room{}, dto.MessageResponse{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "message.post", trace.WithAttributes(
		attribute.String("room", room.Name),
		attribute.String("sender", sender.Username),
	))
	defer span.End()

	message := models.Message{
		RoomID:         room.ID,
		UserID:         sender.ID,
		Content:        clean,
		AttachmentPath: attachment,
	}
	if req.ReplyTo != nil {
		if target, err := s.messages.FindByID(spanCtx, *req.ReplyTo); err == nil && target.RoomID == room.ID {
			message.ReplyToMessageID = req.ReplyTo
		}
	}

	if err := s.messages.Create(spanCtx, &message); err != nil {
		span.RecordError(err)
		return models.Room{}, dto.MessageResponse{}, err
	}
	if err := s.rooms.TouchLastMessage(spanCtx, room.ID, time.Now().UTC()); err != nil {
		s.logger.Warn().Err(err).Str("room", room.Name).Msg("failed to update room activity")
	}

	observability.MessagesSent().Inc()

	message.User = sender
	return room, s.toResponse(spanCtx, room.Name, message), nil
}

func (s *messageService) Edit(ctx context.Context, userID uint, req dto.EditMessageRequest) (models.Room, dto.MessageUpdatedPayload, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.Room{}, dto.MessageUpdatedPayload{}, apperrors.New(apperrors.CodeInvalidArgument, "invalid edit")
	}

	clean := strings.TrimSpace(s.sanitizer.Sanitize(req.NewText))
	if clean == "" {
		return models.Room{}, dto.MessageUpdatedPayload{}, apperrors.New(apperrors.CodeInvalidArgument, "message must not be empty")
	}

	message, err := s.findOwn(ctx, userID, req.MessageID)
	if err != nil {
		return models.Room{}, dto.MessageUpdatedPayload{}, err
	}

	message.Content = clean
	message.IsEdited = true
	if err := s.messages.Save(ctx, &message); err != nil {
		return models.Room{}, dto.MessageUpdatedPayload{}, err
	}

	room, err := s.rooms.FindByID(ctx, message.RoomID)
	if err != nil {
		return models.Room{}, dto.MessageUpdatedPayload{}, err
	}

	return room, dto.MessageUpdatedPayload{ID: message.ID, NewText: clean}, nil
}

func (s *messageService) Delete(ctx context.Context, userID uint, req dto.DeleteMessageRequest) (models.Room, dto.MessageDeletedPayload, error) {
	message, err := s.findOwn(ctx, userID, req.MessageID)
	if err != nil {
		return models.Room{}, dto.MessageDeletedPayload{}, err
	}

	if err := s.messages.Delete(ctx, message.ID); err != nil {
		return models.Room{}, dto.MessageDeletedPayload{}, err
	}

	room, err := s.rooms.FindByID(ctx, message.RoomID)
	if err != nil {
		return models.Room{}, dto.MessageDeletedPayload{}, err
	}

	return room, dto.MessageDeletedPayload{MessageID: message.ID}, nil
}

func (s *messageService) History(ctx context.Context, user models.User, req dto.HistoryRequest) (dto.MessageHistoryPayload, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.MessageHistoryPayload{}, apperrors.New(apperrors.CodeInvalidArgument, "invalid history request")
	}

	room, err := s.roomSvc.ResolveForSend(ctx, user.ID, user.Username, req.Room)
	if err != nil {
		return dto.MessageHistoryPayload{}, err
	}

	messages, err := s.messages.PageByRoom(ctx, room.ID, req.Offset, req.Limit)
	if err != nil {
		return dto.MessageHistoryPayload{}, err
	}

	history := make([]dto.MessageResponse, 0, len(messages))
	for _, message := range messages {
		history = append(history, s.toResponse(ctx, room.Name, message))
	}

	return dto.MessageHistoryPayload{Room: room.Name, History: history}, nil
}

func (s *messageService) findOwn(ctx context.Context, userID, messageID uint) (models.Message, error) {
	message, err := s.messages.FindByID(ctx, messageID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Message{}, apperrors.New(apperrors.CodeNotFound, "message not found")
	}
	if err != nil {
		return models.Message{}, err
	}
	if message.UserID != userID {
		return models.Message{}, apperrors.New(apperrors.CodeForbidden, "you can only modify your own messages")
	}
	return message, nil
}

// toResponse serializes a message, resolving the reply target's author and
// content. A deleted target simply drops the preview.
func (s *messageService) toResponse(ctx context.Context, roomRef string, message models.Message) dto.MessageResponse {
	response := dto.MessageResponse{
		ID:             message.ID,
		Room:           roomRef,
		Username:       message.User.Username,
		Avatar:         message.User.Avatar,
		Message:        message.Content,
		AttachmentPath: message.AttachmentPath,
		IsEdited:       message.IsEdited,
		Timestamp:      message.CreatedAt,
	}

	if message.ReplyToMessageID != nil {
		if target, err := s.messages.FindByID(ctx, *message.ReplyToMessageID); err == nil {
			response.RepliedTo = &dto.ReplyPreview{
				Username: target.User.Username,
				Message:  target.Content,
			}
		}
	}

	return response
}
