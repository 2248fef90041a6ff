package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"carhire/internal/services"
	"carhire/internal/utils"
	"carhire/internal/validators"
	"carhire/pkg/logger"
)

// respondError writes the envelope for a service error according to its kind.
func respondError(c *gin.Context, log *logger.Logger, err error) {
	if errors.Is(err, services.ErrTrackingLinkExpired) {
		utils.GoneResponse(c, utils.ErrLinkExpired)
		return
	}

	switch services.Kind(err) {
	case services.ErrPermissionDenied:
		utils.ErrorResponse(c, http.StatusForbidden, "FORBIDDEN", err.Error())
	case services.ErrNotFound:
		utils.ErrorResponse(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case services.ErrValidation:
		utils.ErrorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case services.ErrStateConflict:
		utils.ConflictResponse(c, err.Error())
	case services.ErrTransientNetwork:
		log.WithRequestID(c.GetString("request_id")).WithError(err).Warn("Transient failure serving request")
		utils.ServiceUnavailableResponse(c)
	default:
		log.WithRequestID(c.GetString("request_id")).WithError(err).Error("Request failed")
		utils.InternalServerErrorResponse(c)
	}
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	err := c.ShouldBindJSON(dest)
	if err == nil {
		return true
	}
	var fields validators.ValidationErrors
	if errors.As(validators.Describe(err), &fields) {
		details := make(map[string]string, len(fields))
		for _, fe := range fields {
			details[fe.Field] = fe.Message
		}
		utils.ValidationErrorResponse(c, details)
		return false
	}
	utils.BadRequestResponse(c, "Invalid request: "+err.Error())
	return false
}

// errorCode names the kind of err for WebSocket error frames.
func errorCode(err error) string {
	if errors.Is(err, services.ErrTrackingLinkExpired) {
		return "LINK_EXPIRED"
	}
	switch services.Kind(err) {
	case services.ErrPermissionDenied:
		return "FORBIDDEN"
	case services.ErrNotFound:
		return "NOT_FOUND"
	case services.ErrValidation:
		return "VALIDATION_ERROR"
	case services.ErrStateConflict:
		return "CONFLICT"
	case services.ErrTransientNetwork:
		return "SERVICE_UNAVAILABLE"
	}
	return "INTERNAL_ERROR"
}
