package service

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/gchat-dev/gchat-api/internal/dto"
	"github.com/gchat-dev/gchat-api/internal/models"
	"github.com/gchat-dev/gchat-api/internal/repository"
)

// NotificationService persists notifications and refreshes the recipient's
// live notification list.
type NotificationService interface {
	Notify(ctx context.Context, userID uint, username, kind, title, message string, data map[string]interface{}) error
	List(ctx context.Context, userID uint, limit int) ([]dto.NotificationResponse, error)
	PushList(ctx context.Context, userID uint, username string)
	MarkRead(ctx context.Context, userID, notificationID uint) error
	MarkAllRead(ctx context.Context, userID uint) error
}

type notificationService struct {
	repo   repository.NotificationRepository
	sink   EventSink
	logger zerolog.Logger
}

// NewNotificationService constructs the notification service.
func NewNotificationService(repo repository.NotificationRepository, sink EventSink, logger zerolog.Logger) NotificationService {
	return &notificationService{
		repo:   repo,
		sink:   sink,
		logger: logger.With().Str("component", "notification_service").Logger(),
	}
}

// Notify stores the notification and pushes the recipient's refreshed list to
// all their live sessions. A delivery failure never fails the caller.
func (s *notificationService) Notify(ctx context.Context, userID uint, username, kind, title, message string, data map[string]interface{}) error {
	notification := models.Notification{
		RecipientID: userID,
		Type:        kind,
		Title:       title,
		Message:     message,
	}
	if data != nil {
		notification.Data = datatypes.JSONMap(data)
	}

	if err := s.repo.Create(ctx, &notification); err != nil {
		return err
	}

	s.PushList(ctx, userID, username)
	return nil
}

func (s *notificationService) List(ctx context.Context, userID uint, limit int) ([]dto.NotificationResponse, error) {
	notifications, err := s.repo.ListByRecipient(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	return dto.NewNotificationResponseSlice(notifications), nil
}

// PushList delivers the recipient's newest notifications to their sessions.
func (s *notificationService) PushList(ctx context.Context, userID uint, username string) {
	notifications, err := s.List(ctx, userID, 0)
	if err != nil {
		s.logger.Warn().Err(err).Str("username", username).Msg("failed to load notifications for push")
		return
	}

	s.sink.SendToUser(username, dto.Event{
		Type: dto.EventNotificationsList,
		Data: dto.NotificationsListPayload{Notifications: notifications},
	})
}

func (s *notificationService) MarkRead(ctx context.Context, userID, notificationID uint) error {
	return s.repo.MarkRead(ctx, userID, notificationID)
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID uint) error {
	return s.repo.MarkAllRead(ctx, userID)
}
