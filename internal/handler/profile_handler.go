package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/gchat-dev/gchat-api/internal/dto"
	"github.com/gchat-dev/gchat-api/internal/service"
	"github.com/gchat-dev/gchat-api/internal/utils"
)

// ProfileHandler wires profile, settings, search, block and music history
// endpoints.
type ProfileHandler struct {
	users  service.UserService
	sink   service.EventSink
	logger zerolog.Logger
}

// NewProfileHandler creates a profile handler instance.
func NewProfileHandler(users service.UserService, sink service.EventSink, logger zerolog.Logger) *ProfileHandler {
	return &ProfileHandler{
		users:  users,
		sink:   sink,
		logger: logger.With().Str("component", "profile_handler").Logger(),
	}
}

// Register binds profile routes under the provided router group.
func (h *ProfileHandler) Register(router fiber.Router) {
	router.Get("/users/search", h.search)
	router.Get("/users/:username/profile", h.profile)
	router.Put("/profile", h.updateProfile)
	router.Get("/settings", h.settings)
	router.Put("/settings", h.updateSettings)
	router.Get("/blocks", h.blocked)
	router.Post("/blocks/:username", h.block)
	router.Delete("/blocks/:username", h.unblock)
	router.Get("/music", h.musicHistory)
	router.Post("/music", h.addMusic)
	router.Delete("/music/:id", h.deleteMusic)
}

func (h *ProfileHandler) profile(c *fiber.Ctx) error {
	profile, err := h.users.Profile(requestContext(c), userIDFromContext(c), c.Params("username"))
	if err != nil {
		return sendAppError(c, err)
	}
	return utils.SendSuccess(c, "profile", profile)
}

func (h *ProfileHandler) updateProfile(c *fiber.Ctx) error {
	var request dto.ProfileUpdateRequest
	if err := c.BodyParser(&request); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.users.UpdateProfile(requestContext(c), userIDFromContext(c), request)
	if err != nil {
		return sendAppError(c, err)
	}

	// Everyone chatting with this user sees the change on their next push.
	h.sink.SendToUser(user.Username, dto.Event{
		Type: dto.EventProfileUpdated,
		Data: dto.ProfileUpdatedPayload{
			Username:      user.Username,
			Avatar:        user.Avatar,
			Status:        user.Status,
			Bio:           user.Bio,
			FavoriteMusic: user.FavoriteMusic,
		},
	})

	return utils.SendSuccess(c, "profile updated", dto.NewUserSummary(user))
}

func (h *ProfileHandler) settings(c *fiber.Ctx) error {
	settings, err := h.users.Settings(requestContext(c), userIDFromContext(c))
	if err != nil {
		return sendAppError(c, err)
	}
	return utils.SendSuccess(c, "settings", settings)
}

func (h *ProfileHandler) updateSettings(c *fiber.Ctx) error {
	var request dto.SettingsUpdateRequest
	if err := c.BodyParser(&request); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	settings, err := h.users.UpdateSettings(requestContext(c), userIDFromContext(c), request)
	if err != nil {
		return sendAppError(c, err)
	}
	return utils.SendSuccess(c, "settings updated", settings)
}

func (h *ProfileHandler) search(c *fiber.Ctx) error {
	results, err := h.users.Search(requestContext(c), userIDFromContext(c), c.Query("q"))
	if err != nil {
		return sendAppError(c, err)
	}
	return utils.SendSuccess(c, "search results", results)
}

func (h *ProfileHandler) blocked(c *fiber.Ctx) error {
	blocked, err := h.users.Blocked(requestContext(c), userIDFromContext(c))
	if err != nil {
		return sendAppError(c, err)
	}
	return utils.SendSuccess(c, "blocked users", blocked)
}

func (h *ProfileHandler) block(c *fiber.Ctx) error {
	if err := h.users.Block(requestContext(c), userIDFromContext(c), c.Params("username")); err != nil {
		return sendAppError(c, err)
	}
	return utils.SendSuccess(c, "user blocked", nil)
}

func (h *ProfileHandler) unblock(c *fiber.Ctx) error {
	if err := h.users.Unblock(requestContext(c), userIDFromContext(c), c.Params("username")); err != nil {
		return sendAppError(c, err)
	}
	return utils.SendSuccess(c, "user unblocked", nil)
}

func (h *ProfileHandler) musicHistory(c *fiber.Ctx) error {
	entries, err := h.users.MusicHistory(requestContext(c), userIDFromContext(c))
	if err != nil {
		return sendAppError(c, err)
	}
	return utils.SendSuccess(c, "music history", entries)
}

func (h *ProfileHandler) addMusic(c *fiber.Ctx) error {
	var request dto.MusicEntryCreateRequest
	if err := c.BodyParser(&request); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	entry, err := h.users.AddMusicEntry(requestContext(c), userIDFromContext(c), request)
	if err != nil {
		return sendAppError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "music entry added", entry)
}

func (h *ProfileHandler) deleteMusic(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid entry id")
	}

	if err := h.users.DeleteMusicEntry(requestContext(c), userIDFromContext(c), uint(id)); err != nil {
		return sendAppError(c, err)
	}
	return utils.SendSuccess(c, "music entry deleted", nil)
}
