package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"docubot-be/internal/pkg/logger"
	"docubot-be/internal/pkg/serverutils"
	internalWS "docubot-be/internal/websocket"
	"docubot-be/pkg/vectorstore"
)

// CaptureHandler streams a user's capture events over a websocket.
type CaptureHandler struct {
	hub       *internalWS.Hub
	jwtSecret string
	logger    logger.ILogger
}

func NewCaptureHandler(hub *internalWS.Hub, jwtSecret string, log logger.ILogger) *CaptureHandler {
	return &CaptureHandler{
		hub:       hub,
		jwtSecret: jwtSecret,
		logger:    log,
	}
}

func (h *CaptureHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/ws/capture/:user_id", h.ServeWs)
}

// ServeWs authorises the handshake and upgrades it. With a JWT secret
// configured the token's user must match the requested stream.
func (h *CaptureHandler) ServeWs(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	if err := vectorstore.ValidateUserID(userID); err != nil {
		return err
	}

	if h.jwtSecret != "" {
		tokenStr := serverutils.BearerToken(c)
		if tokenStr == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse("Missing token (Query 'token' or Header 'Authorization')"))
		}
		claimed, err := serverutils.ParseToken(h.jwtSecret, tokenStr)
		if err != nil {
			h.logger.Warn("CaptureHandler", "Invalid Token in WS Handshake", map[string]interface{}{"error": err.Error()})
			return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse("Invalid token"))
		}
		if claimed != userID {
			return c.Status(fiber.StatusForbidden).JSON(serverutils.ErrorResponse("Token does not match user"))
		}
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("CaptureHandler", "Starting WebSocket session", map[string]interface{}{"user_id": userID})
		internalWS.ServeWs(h.hub, conn, userID)
		h.logger.Info("CaptureHandler", "WebSocket session ended", map[string]interface{}{"user_id": userID})
	})(c)
}
