package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/smartattend/smartattend-api/internal/middleware"
	"github.com/smartattend/smartattend-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// tenantFromContext resolves the tenant this request operates on. Regular
// users are pinned to their token's tenant; superadmins may target any
// tenant via the X-Tenant-ID header.
func tenantFromContext(c *gin.Context) string {
	return middleware.EffectiveTenantID(c)
}
