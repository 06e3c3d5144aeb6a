package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/gchat-dev/gchat-api/internal/service"
	"github.com/gchat-dev/gchat-api/internal/utils"
)

// NotificationHandler wires the notification endpoints.
type NotificationHandler struct {
	service service.NotificationService
	logger  zerolog.Logger
}

// NewNotificationHandler constructs a handler instance.
func NewNotificationHandler(service service.NotificationService, logger zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		logger:  logger.With().Str("component", "notification_handler").Logger(),
	}
}

// Register binds the notification routes.
func (h *NotificationHandler) Register(router fiber.Router) {
	router.Get("/notifications", h.list)
	router.Patch("/notifications/:id/read", h.markRead)
	router.Post("/notifications/read-all", h.markAllRead)
}

func (h *NotificationHandler) list(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	notifications, err := h.service.List(requestContext(c), userIDFromContext(c), limit)
	if err != nil {
		return sendAppError(c, err)
	}
	return utils.SendSuccess(c, "notifications", notifications)
}

func (h *NotificationHandler) markRead(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid notification id")
	}

	if err := h.service.MarkRead(requestContext(c), userIDFromContext(c), uint(id)); err != nil {
		return sendAppError(c, err)
	}
	return utils.SendSuccess(c, "notification marked read", nil)
}

func (h *NotificationHandler) markAllRead(c *fiber.Ctx) error {
	if err := h.service.MarkAllRead(requestContext(c), userIDFromContext(c)); err != nil {
		return sendAppError(c, err)
	}
	return utils.SendSuccess(c, "notifications marked read", nil)
}
