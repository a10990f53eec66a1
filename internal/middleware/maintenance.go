package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/smartattend/smartattend-api/internal/models"
	"github.com/smartattend/smartattend-api/internal/service"
	appErrors "github.com/smartattend/smartattend-api/pkg/errors"
	"github.com/smartattend/smartattend-api/pkg/response"
)

// Maintenance short-circuits requests while the platform is in maintenance
// mode. Superadmins stay in so they can turn it back off.
func Maintenance(settings *service.SettingsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if settings == nil {
			c.Next()
			return
		}

		enabled, err := settings.MaintenanceMode(c.Request.Context())
		if err != nil || !enabled {
			c.Next()
			return
		}

		if claimsValue, ok := c.Get(ContextUserKey); ok {
			if claims, ok := claimsValue.(*models.JWTClaims); ok && claims.Role == models.RoleSuperAdmin {
				c.Next()
				return
			}
		}

		response.Error(c, appErrors.Clone(appErrors.ErrServiceUnavailable, "platform is under maintenance"))
		c.Abort()
	}
}
