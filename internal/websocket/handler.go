package websocket

import (
	"context"
	"net/http"
	"strings"

	"messaging-core/internal/events"
	"messaging-core/internal/services"
	"messaging-core/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Handler struct {
	auth       *services.AuthService
	hub        *Hub
	authorizer *ChannelAuthorizer
	logger     *Logger
}

func NewHandler(auth *services.AuthService, hub *Hub, authorizer *ChannelAuthorizer, logger *Logger) *Handler {
	if logger == nil {
		logger = NewLogger(nil)
	}
	return &Handler{auth: auth, hub: hub, authorizer: authorizer, logger: logger}
}

// Connect upgrades the request and subscribes the caller to their own user
// channel. Further channels are requested with subscribe frames.
func (h *Handler) Connect(c *gin.Context) {
	token := extractToken(c)
	claims, err := h.auth.ParseAccessToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	userID, err := claims.UserID()
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("upgrade failed", userID, "", err)
		return
	}

	client := NewClient(h.hub, conn, userID, h.authorizer, h.logger)
	h.hub.Register(client)
	h.hub.Subscribe(client, events.UserChannel(userID))
	h.logger.Info("connected", userID, client.ID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go client.WritePump()
	client.ReadPump(ctx)
	h.logger.Info("disconnected", userID, client.ID)
}

func extractToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
