package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/smartattend/smartattend-api/internal/models"
	appErrors "github.com/smartattend/smartattend-api/pkg/errors"
	"github.com/smartattend/smartattend-api/pkg/response"
)

// TenantHeader lets superadmins act on a specific tenant's data.
const TenantHeader = "X-Tenant-ID"

// RequireTenant rejects requests whose token carries no tenant. Superadmins
// may supply the target tenant via the X-Tenant-ID header instead.
func RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		if claims.TenantID != "" {
			c.Next()
			return
		}
		if claims.Role == models.RoleSuperAdmin && c.GetHeader(TenantHeader) != "" {
			c.Next()
			return
		}

		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "request is not scoped to an organisation"))
		c.Abort()
	}
}

// EffectiveTenantID resolves the tenant a request operates on. Regular users
// are pinned to their token's tenant; superadmins may override per request.
func EffectiveTenantID(c *gin.Context) string {
	claimsValue, exists := c.Get(ContextUserKey)
	if !exists {
		return ""
	}
	claims := claimsValue.(*models.JWTClaims)
	if claims.TenantID != "" {
		return claims.TenantID
	}
	if claims.Role == models.RoleSuperAdmin {
		return c.GetHeader(TenantHeader)
	}
	return ""
}
