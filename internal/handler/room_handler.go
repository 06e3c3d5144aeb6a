package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/gchat-dev/gchat-api/internal/dto"
	"github.com/gchat-dev/gchat-api/internal/service"
	"github.com/gchat-dev/gchat-api/internal/utils"
)

// RoomHandler wires the room registry endpoints.
type RoomHandler struct {
	rooms  service.RoomService
	sink   service.EventSink
	logger zerolog.Logger
}

// NewRoomHandler creates a room handler instance.
func NewRoomHandler(rooms service.RoomService, sink service.EventSink, logger zerolog.Logger) *RoomHandler {
	return &RoomHandler{
		rooms:  rooms,
		sink:   sink,
		logger: logger.With().Str("component", "room_handler").Logger(),
	}
}

// Register binds room routes under the provided router group.
func (h *RoomHandler) Register(router fiber.Router) {
	router.Get("/rooms", h.list)
	router.Post("/rooms", h.create)
	router.Get("/rooms/:name/info", h.info)
	router.Get("/rooms/:name/invite-suggestions", h.inviteSuggestions)
}

func (h *RoomHandler) list(c *fiber.Ctx) error {
	rooms, err := h.rooms.ListAvailable(requestContext(c), userIDFromContext(c))
	if err != nil {
		return sendAppError(c, err)
	}
	return utils.SendSuccess(c, "rooms", rooms)
}

func (h *RoomHandler) create(c *fiber.Ctx) error {
	var request dto.CreateRoomRequest
	if err := c.BodyParser(&request); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	room, err := h.rooms.CreateGroup(requestContext(c), userIDFromContext(c), request)
	if err != nil {
		return sendAppError(c, err)
	}

	// Open sessions of the creator get the refreshed list without polling.
	if rooms, err := h.rooms.ListAvailable(requestContext(c), userIDFromContext(c)); err == nil {
		h.sink.SendToUser(usernameFromContext(c), dto.Event{
			Type: dto.EventRoomsList,
			Data: dto.RoomsListPayload{Rooms: rooms},
		})
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "room created", room)
}

func (h *RoomHandler) info(c *fiber.Ctx) error {
	info, err := h.rooms.Info(requestContext(c), userIDFromContext(c), c.Params("name"))
	if err != nil {
		return sendAppError(c, err)
	}
	return utils.SendSuccess(c, "room info", info)
}

func (h *RoomHandler) inviteSuggestions(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	suggestions, err := h.rooms.InviteSuggestions(requestContext(c), userIDFromContext(c), c.Params("name"), c.Query("q"), limit)
	if err != nil {
		return sendAppError(c, err)
	}
	return utils.SendSuccess(c, "invite suggestions", suggestions)
}
