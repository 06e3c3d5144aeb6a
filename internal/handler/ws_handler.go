package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/gchat-dev/gchat-api/internal/service"
)

// WSHandler upgrades authenticated connections and hands them to the
// dispatcher.
type WSHandler struct {
	dispatcher *service.Dispatcher
	logger     zerolog.Logger
}

// NewWSHandler creates a websocket handler instance.
func NewWSHandler(dispatcher *service.Dispatcher, logger zerolog.Logger) *WSHandler {
	return &WSHandler{
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "ws_handler").Logger(),
	}
}

// Register binds the websocket route under the provided router group. The
// group must already run the JWT middleware so identity locals are set.
func (h *WSHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws", websocket.New(h.handleConnection))
}

func (h *WSHandler) handleConnection(conn *websocket.Conn) {
	userID, _ := conn.Locals("user_id").(uint)
	username, _ := conn.Locals("username").(string)
	if userID == 0 || username == "" {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthenticated"))
		_ = conn.Close()
		return
	}

	h.logger.Info().Str("username", username).Msg("websocket connected")
	h.dispatcher.ServeConnection(conn, userID, username)
	h.logger.Info().Str("username", username).Msg("websocket disconnected")
}
