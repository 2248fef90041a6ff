package utils

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Status    string      `json:"status"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Meta      *Meta       `json:"meta,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type APIError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

type Meta struct {
	Count int `json:"count"`
}

func envelope(c *gin.Context, status string) APIResponse {
	return APIResponse{
		Status:    status,
		RequestID: c.GetString("request_id"),
		Timestamp: time.Now().UTC(),
	}
}

func success(c *gin.Context, code int, message string, data interface{}, meta *Meta) {
	body := envelope(c, StatusSuccess)
	body.Message, body.Data, body.Meta = message, data, meta
	c.JSON(code, body)
}

func failure(c *gin.Context, code int, apiErr *APIError) {
	body := envelope(c, StatusError)
	body.Error = apiErr
	c.AbortWithStatusJSON(code, body)
}

func SuccessResponse(c *gin.Context, message string, data interface{}) {
	success(c, http.StatusOK, message, data, nil)
}

// SuccessResponseWithMeta is used by list endpoints.
func SuccessResponseWithMeta(c *gin.Context, message string, data interface{}, meta *Meta) {
	success(c, http.StatusOK, message, data, meta)
}

func CreatedResponse(c *gin.Context, message string, data interface{}) {
	success(c, http.StatusCreated, message, data, nil)
}

func NoContentResponse(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func ErrorResponse(c *gin.Context, statusCode int, code, message string) {
	failure(c, statusCode, &APIError{Code: code, Message: message})
}

// ValidationErrorResponse reports per-field messages keyed by field name.
func ValidationErrorResponse(c *gin.Context, fields map[string]string) {
	failure(c, http.StatusBadRequest, &APIError{Code: "VALIDATION_ERROR", Message: ErrValidationFailed, Details: fields})
}

func BadRequestResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", message)
}

func UnauthorizedResponse(c *gin.Context) {
	ErrorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED", ErrUnauthorized)
}

func ForbiddenResponse(c *gin.Context) {
	ErrorResponse(c, http.StatusForbidden, "FORBIDDEN", ErrForbidden)
}

func ConflictResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusConflict, "CONFLICT", message)
}

// GoneResponse answers requests for tracking links that expired or were revoked.
func GoneResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusGone, "LINK_EXPIRED", message)
}

func InternalServerErrorResponse(c *gin.Context) {
	ErrorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", ErrInternalServer)
}

func ServiceUnavailableResponse(c *gin.Context) {
	ErrorResponse(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", ErrServiceUnavailable)
}
