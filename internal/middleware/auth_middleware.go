package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"carhire/internal/models"
	"carhire/internal/utils"
	"carhire/pkg/logger"
)

const (
	ContextUserID   = "user_id"
	ContextUserType = "user_type"
)

// AuthRequired validates the bearer token and sets the caller on the context.
// Browsers cannot set headers on a WebSocket handshake, so a token query
// parameter is accepted as well.
func AuthRequired(secret string, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			utils.UnauthorizedResponse(c)
			c.Abort()
			return
		}

		claims, err := utils.ValidateToken(tokenString, secret)
		if err != nil {
			log.LogSecurityEvent("invalid_token", "low", map[string]interface{}{
				"path":  c.FullPath(),
				"ip":    c.ClientIP(),
				"error": err.Error(),
			})
			utils.ErrorResponse(c, http.StatusUnauthorized, "INVALID_TOKEN", utils.ErrInvalidToken)
			c.Abort()
			return
		}

		role := models.UserRole(claims.UserType)
		if !role.Valid() {
			role = models.RoleCustomer
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserType, string(role))

		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		token := strings.TrimPrefix(header, "Bearer ")
		if token == header {
			return ""
		}
		return strings.TrimSpace(token)
	}
	return c.Query("token")
}

// RoleRequired admits only callers whose role is one of roles.
func RoleRequired(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := models.UserRole(c.GetString(ContextUserType))
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		utils.ForbiddenResponse(c)
		c.Abort()
	}
}

func AdminRequired() gin.HandlerFunc {
	return RoleRequired(models.RoleAdmin)
}

func DriverRequired() gin.HandlerFunc {
	return RoleRequired(models.RoleDriver)
}

// Subject returns the authenticated caller set by AuthRequired.
func Subject(c *gin.Context) models.Subject {
	return models.Subject{
		UserID: c.GetString(ContextUserID),
		Role:   models.UserRole(c.GetString(ContextUserType)),
	}
}
