package handlers

import (
	"github.com/gin-gonic/gin"

	"carhire/internal/middleware"
	"carhire/internal/models"
	"carhire/internal/services"
	"carhire/internal/utils"
	"carhire/pkg/logger"
)

type ChatHandler struct {
	chats services.ChatService
	log   *logger.Logger
}

func NewChatHandler(chats services.ChatService, log *logger.Logger) *ChatHandler {
	return &ChatHandler{chats: chats, log: log}
}

// OpenThread returns the thread between the caller and another user about a car,
// creating it on first contact
func (h *ChatHandler) OpenThread(c *gin.Context) {
	var request struct {
		OtherUserID string         `json:"other_user_id" binding:"required"`
		Car         models.CarInfo `json:"car"`
	}
	if !bindJSON(c, &request) {
		return
	}

	thread, err := h.chats.OpenOrCreateThread(c.Request.Context(), middleware.Subject(c), request.OtherUserID, request.Car)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, "Thread opened", thread)
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	messages, err := h.chats.GetMessages(c.Request.Context(), middleware.Subject(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.SuccessResponseWithMeta(c, "Messages retrieved successfully", messages, &utils.Meta{Count: len(messages)})
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	var request struct {
		Text string `json:"text" binding:"required"`
	}
	if !bindJSON(c, &request) {
		return
	}

	message, err := h.chats.SendMessage(c.Request.Context(), middleware.Subject(c), c.Param("id"), request.Text)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.CreatedResponse(c, "Message sent", message)
}

func (h *ChatHandler) MarkRead(c *gin.Context) {
	if err := h.chats.MarkRead(c.Request.Context(), middleware.Subject(c), c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.NoContentResponse(c)
}

func (h *ChatHandler) DeleteThread(c *gin.Context) {
	if err := h.chats.DeleteThread(c.Request.Context(), middleware.Subject(c), c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.NoContentResponse(c)
}
