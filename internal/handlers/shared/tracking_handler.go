package handlers

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"carhire/internal/middleware"
	"carhire/internal/services"
	"carhire/internal/utils"
	"carhire/pkg/logger"
	"carhire/pkg/websocket"
)

type TrackingHandler struct {
	links services.TrackingLinkService
	ws    *websocket.Handler
	log   *logger.Logger
}

func NewTrackingHandler(links services.TrackingLinkService, ws *websocket.Handler, log *logger.Logger) *TrackingHandler {
	return &TrackingHandler{links: links, ws: ws, log: log}
}

// CreateLink issues a public link to the caller's live location
func (h *TrackingHandler) CreateLink(c *gin.Context) {
	link, err := h.links.CreateLink(c.Request.Context(), middleware.Subject(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.CreatedResponse(c, "Tracking link created", link)
}

func (h *TrackingHandler) RevokeLink(c *gin.Context) {
	if err := h.links.Revoke(c.Request.Context(), middleware.Subject(c), c.Param("token")); err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.NoContentResponse(c)
}

// WatchPublic streams the public view behind a tracking link. Invalid links are
// rejected with 410 before the upgrade.
func (h *TrackingHandler) WatchPublic(c *gin.Context) {
	userID, token := c.Param("userId"), c.Param("token")
	if _, err := h.links.Validate(c.Request.Context(), userID, token); err != nil {
		respondError(c, h.log, err)
		return
	}

	h.ws.ServePublic(func(_ *gin.Context, client *websocket.Client) {
		sub, err := h.links.Watch(context.Background(), userID, token)
		if err != nil {
			client.Send(websocket.NewMessage(utils.WSTypeError, errorFrame(err)))
			client.Close()
			return
		}
		client.OnClose(sub.Unsubscribe)

		go func() {
			for view := range sub.Views() {
				client.Send(websocket.NewMessage(utils.WSTypePublicLocation, view))
			}
			if err := sub.Err(); err != nil {
				client.Send(websocket.NewMessage(utils.WSTypeError, errorFrame(err)))
			}
			client.Close()
		}()
	})(c)
}

func errorFrame(err error) map[string]string {
	message := err.Error()
	if errors.Is(err, services.ErrTrackingLinkExpired) {
		message = utils.ErrLinkExpired
	}
	return map[string]string{"code": errorCode(err), "message": message}
}
