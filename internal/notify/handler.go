package notify

import (
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/zfogg/clipstream/backend/internal/auth"
	"github.com/zfogg/clipstream/backend/internal/logger"
	"go.uber.org/zap"
)

// Handler upgrades HTTP requests to WebSocket connections
type Handler struct {
	hub         *Hub
	authService *auth.Service
}

// NewHandler creates a WebSocket upgrade handler
func NewHandler(hub *Hub, authService *auth.Service) *Handler {
	return &Handler{hub: hub, authService: authService}
}

// HandleWebSocket authenticates the request and upgrades it.
// The token comes from ?token=... or the Authorization header.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		if auth := c.GetHeader("Authorization"); auth != "" {
			tokenString = strings.TrimPrefix(auth, "Bearer ")
		}
	}
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "authentication_failed",
			"message": "Missing token",
		})
		return
	}

	user, _, err := h.authService.ValidateToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "authentication_failed",
			"message": "Invalid token",
		})
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
		CompressionMode:    websocket.CompressionContextTakeover,
	})
	if err != nil {
		logger.Log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(h.hub, conn, user.ID)
	h.hub.Register(client)

	go client.WritePump()
	client.ReadPump() // blocks until disconnect
}
