package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"carhire/internal/middleware"
	"carhire/internal/services"
	"carhire/internal/utils"
	"carhire/pkg/logger"
)

const maxWebhookBody = 64 << 10

type VIPHandler struct {
	vip services.VIPService
	log *logger.Logger
}

func NewVIPHandler(vip services.VIPService, log *logger.Logger) *VIPHandler {
	return &VIPHandler{vip: vip, log: log}
}

func (h *VIPHandler) ListTiers(c *gin.Context) {
	utils.SuccessResponse(c, "VIP tiers retrieved successfully", h.vip.Tiers())
}

// CreateCheckout starts a gateway payment the client completes with the returned
// secret
func (h *VIPHandler) CreateCheckout(c *gin.Context) {
	var request struct {
		Level int `json:"level" binding:"required,vip_level"`
	}
	if !bindJSON(c, &request) {
		return
	}
	checkout, err := h.vip.CreateCheckout(c.Request.Context(), middleware.Subject(c), request.Level)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.CreatedResponse(c, "Checkout created", checkout)
}

func (h *VIPHandler) Purchase(c *gin.Context) {
	var request struct {
		Level            int    `json:"level" binding:"required,vip_level"`
		PaymentReference string `json:"payment_reference" binding:"required"`
	}
	if !bindJSON(c, &request) {
		return
	}

	subject := middleware.Subject(c)
	receipt, err := h.vip.Purchase(c.Request.Context(), subject, subject.UserID, request.Level, request.PaymentReference)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, "VIP purchase applied", receipt)
}

// HandlePaymentWebhook applies purchases confirmed by the payment gateway
func (h *VIPHandler) HandlePaymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid webhook body")
		return
	}
	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		signature = c.GetHeader("X-Razorpay-Signature")
	}

	receipt, err := h.vip.ApplyWebhook(c.Request.Context(), payload, signature)
	if err != nil {
		h.log.LogSecurityEvent("payment_webhook_rejected", "medium", map[string]interface{}{
			"ip":    c.ClientIP(),
			"error": err.Error(),
		})
		respondError(c, h.log, err)
		return
	}

	if receipt != nil {
		h.log.WithUserID(receipt.UserID).WithField("payment_id", receipt.PaymentID).Info("VIP purchase applied from webhook")
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
