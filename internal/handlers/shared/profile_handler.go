package handlers

import (
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"carhire/internal/middleware"
	"carhire/internal/models"
	"carhire/internal/services"
	"carhire/internal/utils"
	"carhire/pkg/logger"
)

type ProfileHandler struct {
	users     services.UserService
	contacts  services.ContactService
	referrals services.ReferralService
	baseURL   string
	log       *logger.Logger
}

func NewProfileHandler(users services.UserService, contacts services.ContactService, referrals services.ReferralService, baseURL string, log *logger.Logger) *ProfileHandler {
	return &ProfileHandler{
		users:     users,
		contacts:  contacts,
		referrals: referrals,
		baseURL:   strings.TrimRight(baseURL, "/"),
		log:       log,
	}
}

// CreateProfile stores the caller's profile after their first sign-in
func (h *ProfileHandler) CreateProfile(c *gin.Context) {
	var request services.CreateProfileRequest
	if !bindJSON(c, &request) {
		return
	}
	if request.ReferralCode == "" {
		request.ReferralCode = c.Query("ref")
	}

	user, err := h.users.CreateProfile(c.Request.Context(), middleware.Subject(c), request)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.CreatedResponse(c, "Profile created successfully", user)
}

func (h *ProfileHandler) GetProfile(c *gin.Context) {
	user, err := h.users.GetProfile(c.Request.Context(), middleware.Subject(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, "Profile retrieved successfully", user)
}

func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	var request services.UpdateProfileRequest
	if !bindJSON(c, &request) {
		return
	}
	user, err := h.users.UpdateProfile(c.Request.Context(), middleware.Subject(c), request)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, "Profile updated successfully", user)
}

func (h *ProfileHandler) RegisterPushToken(c *gin.Context) {
	var request struct {
		Token    string              `json:"token" binding:"required"`
		Platform models.PushPlatform `json:"platform" binding:"required,push_platform"`
	}
	if !bindJSON(c, &request) {
		return
	}
	if err := h.users.RegisterPushToken(c.Request.Context(), middleware.Subject(c), request.Token, request.Platform); err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, "Push token registered", nil)
}

// RequestContactCode texts a verification code to the given phone number
func (h *ProfileHandler) RequestContactCode(c *gin.Context) {
	var request struct {
		Phone string `json:"phone" binding:"required,phone_number"`
	}
	if !bindJSON(c, &request) {
		return
	}
	if err := h.contacts.RequestCode(c.Request.Context(), middleware.Subject(c), request.Phone); err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, "Verification code sent", nil)
}

func (h *ProfileHandler) VerifyContactCode(c *gin.Context) {
	var request struct {
		Code string `json:"code" binding:"required,numeric_code"`
	}
	if !bindJSON(c, &request) {
		return
	}
	user, err := h.contacts.VerifyCode(c.Request.Context(), middleware.Subject(c), request.Code)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, "Contact phone verified", user)
}

// GetReferrals returns the caller's ledger and shareable signup link
func (h *ProfileHandler) GetReferrals(c *gin.Context) {
	ledger, err := h.referrals.GetLedger(c.Request.Context(), middleware.Subject(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	response := map[string]interface{}{"ledger": ledger}
	if ledger.Code != "" {
		response["link"] = h.baseURL + "/signup?ref=" + url.QueryEscape(ledger.Code)
	}
	utils.SuccessResponse(c, "Referrals retrieved successfully", response)
}
