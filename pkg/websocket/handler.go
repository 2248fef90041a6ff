package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"carhire/pkg/logger"
)

// ConnectFunc prepares a freshly upgraded and registered client, typically by
// installing its OnMessage and OnClose handlers. The pumps start after it returns.
type ConnectFunc func(c *gin.Context, client *Client)

type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	opts     Options
	log      *logger.Logger
}

func NewHandler(hub *Hub, opts Options, log *logger.Logger) *Handler {
	return &Handler{
		hub:  hub,
		opts: opts,
		log:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    opts.ReadBufferSize,
			WriteBufferSize:   opts.WriteBufferSize,
			HandshakeTimeout:  opts.HandshakeTimeout,
			EnableCompression: opts.EnableCompression,
			CheckOrigin:       originChecker(opts.AllowedOrigins),
		},
	}
}

// Serve upgrades the request of an authenticated user and starts the client pumps.
// The auth middleware must have stored user_id and user_type on the context.
func (h *Handler) Serve(connect ConnectFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		h.upgrade(c, userID, c.GetString("user_type"), connect)
	}
}

// ServePublic upgrades an unauthenticated request, such as a tracking link viewer.
// The client joins no personal room.
func (h *Handler) ServePublic(connect ConnectFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.upgrade(c, "", "public", connect)
	}
}

func (h *Handler) upgrade(c *gin.Context, userID, userType string, connect ConnectFunc) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := NewClient(h.hub, conn, h.opts, userID, userType)
	h.hub.Register(client)
	if connect != nil {
		connect(c, client)
	}

	go client.writePump()
	go client.readPump()
}

func (h *Handler) SendTripUpdate(tripID, updateType string, data interface{}) {
	h.hub.SendToRoom(TripRoom(tripID), NewMessage(updateType, data))
}

func (h *Handler) SendUserNotification(userID, notificationType string, data interface{}) {
	h.hub.SendToUser(userID, NewMessage(notificationType, data))
}

func (h *Handler) GetHub() *Hub {
	return h.hub
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}
