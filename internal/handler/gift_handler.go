package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/gchat-dev/gchat-api/internal/dto"
	"github.com/gchat-dev/gchat-api/internal/models"
	"github.com/gchat-dev/gchat-api/internal/service"
	"github.com/gchat-dev/gchat-api/internal/utils"
)

// GiftHandler wires the star economy endpoints.
type GiftHandler struct {
	gifts  service.GiftService
	logger zerolog.Logger
}

// NewGiftHandler creates a gift handler instance.
func NewGiftHandler(gifts service.GiftService, logger zerolog.Logger) *GiftHandler {
	return &GiftHandler{
		gifts:  gifts,
		logger: logger.With().Str("component", "gift_handler").Logger(),
	}
}

// Register binds gift and star routes under the provided router group.
func (h *GiftHandler) Register(router fiber.Router) {
	router.Get("/gifts", h.catalog)
	router.Get("/gifts/mine", h.owned)
	router.Get("/gifts/market", h.marketplace)
	router.Post("/gifts/buy", h.buy)
	router.Post("/gifts/sell", h.toggleSale)
	router.Post("/gifts/market/buy", h.buyListed)
	router.Post("/stars/send", h.sendStars)
}

func (h *GiftHandler) catalog(c *fiber.Ctx) error {
	catalog, err := h.gifts.Catalog(requestContext(c))
	if err != nil {
		return sendAppError(c, err)
	}
	return utils.SendSuccess(c, "gift catalog", catalog)
}

func (h *GiftHandler) owned(c *fiber.Ctx) error {
	owned, err := h.gifts.Owned(requestContext(c), userIDFromContext(c))
	if err != nil {
		return sendAppError(c, err)
	}
	return utils.SendSuccess(c, "owned gifts", owned)
}

func (h *GiftHandler) marketplace(c *fiber.Ctx) error {
	listed, err := h.gifts.Marketplace(requestContext(c))
	if err != nil {
		return sendAppError(c, err)
	}
	return utils.SendSuccess(c, "marketplace", listed)
}

func (h *GiftHandler) buy(c *fiber.Ctx) error {
	var request dto.BuyGiftRequest
	if err := c.BodyParser(&request); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.gifts.Buy(requestContext(c), actingUser(c), request)
	if err != nil {
		return sendAppError(c, err)
	}
	return utils.SendSuccess(c, "gift purchased", response)
}

func (h *GiftHandler) toggleSale(c *fiber.Ctx) error {
	var request dto.SellGiftRequest
	if err := c.BodyParser(&request); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.gifts.ToggleSale(requestContext(c), userIDFromContext(c), request)
	if err != nil {
		return sendAppError(c, err)
	}
	return utils.SendSuccess(c, "listing updated", response)
}

func (h *GiftHandler) buyListed(c *fiber.Ctx) error {
	var request dto.PurchaseListedRequest
	if err := c.BodyParser(&request); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.gifts.BuyListed(requestContext(c), actingUser(c), request)
	if err != nil {
		return sendAppError(c, err)
	}
	return utils.SendSuccess(c, "gift purchased", response)
}

func (h *GiftHandler) sendStars(c *fiber.Ctx) error {
	var request dto.SendStarsRequest
	if err := c.BodyParser(&request); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.gifts.SendStars(requestContext(c), actingUser(c), request)
	if err != nil {
		return sendAppError(c, err)
	}
	return utils.SendSuccess(c, "stars sent", response)
}

func actingUser(c *fiber.Ctx) models.User {
	return models.User{ID: userIDFromContext(c), Username: usernameFromContext(c)}
}
