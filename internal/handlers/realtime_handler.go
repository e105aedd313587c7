package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/logger"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/realtime"
)

type RealtimeHandler struct {
	Hub *realtime.Hub
	Log logger.Logger
}

func NewRealtimeHandler(hub *realtime.Hub, log logger.Logger) *RealtimeHandler {
	return &RealtimeHandler{Hub: hub, Log: log}
}

// Routes mounts /ws/projects. authMiddleware must accept ?token= since browsers
// cannot set headers on websocket upgrades.
func (h *RealtimeHandler) Routes(app fiber.Router, authMiddleware ...fiber.Handler) {
	upgrade := func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	}
	handlers := chain(append([]fiber.Handler{upgrade}, authMiddleware...), websocket.New(h.ProjectUpdates))
	app.Get("/ws/projects", handlers...)
}

// ProjectUpdates streams project_status_update events for the authenticated user.
func (h *RealtimeHandler) ProjectUpdates(c *websocket.Conn) {
	uid, ok := c.Locals("userId").(string)
	userID, err := uuid.Parse(uid)
	if !ok || err != nil {
		_ = c.Close()
		return
	}

	conn := realtime.NewWebSocketConn(c)
	client := realtime.NewClient(userID, conn)
	h.Hub.RegisterClient(client)
	h.Log.Debug("websocket connected", map[string]interface{}{"userId": uid})
	defer func() {
		h.Hub.UnregisterClient(client)
		h.Log.Debug("websocket disconnected", map[string]interface{}{"userId": uid})
	}()

	go func() {
		if err := conn.WritePump(client); err != nil {
			h.Log.WithError(err).Debug("websocket write failed", map[string]interface{}{"userId": uid})
		}
	}()

	// drain client frames until the socket closes
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}
