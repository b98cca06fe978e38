package handlers

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/SoccerCoachBack/internal/apperr"
	"github.com/saeid-a/SoccerCoachBack/internal/auth"
	"github.com/saeid-a/SoccerCoachBack/internal/middleware"
	notifyws "github.com/saeid-a/SoccerCoachBack/internal/websocket"
)

const wsUserIDKey = "ws_user_id"

// NotificationHandler upgrades authenticated clients onto the notification hub.
type NotificationHandler struct {
	hub *notifyws.Hub
}

func NewNotificationHandler(hub *notifyws.Hub) *NotificationHandler {
	return &NotificationHandler{hub: hub}
}

// RequireUpgrade runs after AuthRequired and hands the user id to the socket.
func (h *NotificationHandler) RequireUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{
			"success": false,
			"message": "WebSocket upgrade required",
			"code":    apperr.CodeValidation,
		})
	}
	identity := middleware.IdentityFrom(c)
	if identity == nil {
		return writeError(c, apperr.Authentication(auth.MessageAuthenticationRequired))
	}
	c.Locals(wsUserIDKey, identity.UserID)
	return c.Next()
}

func (h *NotificationHandler) HandleWebSocket(conn *websocket.Conn) {
	userID, _ := conn.Locals(wsUserIDKey).(int64)
	if userID <= 0 {
		_ = conn.Close()
		return
	}
	client := notifyws.NewClient(h.hub, conn, userID)

	h.hub.Register(client)
	go client.WritePump()
	client.ReadPump()
}
