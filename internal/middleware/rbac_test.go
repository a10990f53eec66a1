package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/smartattend/smartattend-api/internal/models"
)

func serveWithClaims(t *testing.T, claims *models.JWTClaims, handler gin.HandlerFunc, path string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextUserKey, claims)
		}
		c.Next()
	})
	router.GET("/resource/:id", handler, func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestRBACAllowsRole(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleHR}
	recorder := serveWithClaims(t, claims, RequireRoles(models.RoleHR, models.RoleCorporateAdmin), "/resource/x")
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
}

func TestRBACRejectsRole(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleStudent}
	recorder := serveWithClaims(t, claims, RequireRoles(models.RoleHR), "/resource/x")
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
}

func TestRBACAllowsSelf(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleStudent}
	recorder := serveWithClaims(t, claims, RBAC("HR", "SELF"), "/resource/u1")
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
}

func TestRBACRejectsOtherUser(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleStudent}
	recorder := serveWithClaims(t, claims, RBAC("HR", "SELF"), "/resource/u2")
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
}

func TestRBACNoClaims(t *testing.T) {
	recorder := serveWithClaims(t, nil, RequireRoles(models.RoleHR), "/resource/x")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
}

func TestRequireTenantWithTenantClaims(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleHR, TenantID: "t1"}
	recorder := serveWithClaims(t, claims, RequireTenant(), "/resource/x")
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
}

func TestRequireTenantRejectsUnscopedUser(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleHR}
	recorder := serveWithClaims(t, claims, RequireTenant(), "/resource/x")
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
}

func TestRequireTenantSuperadminHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "root", Role: models.RoleSuperAdmin})
		c.Next()
	})
	router.GET("/resource", RequireTenant(), func(c *gin.Context) {
		c.String(http.StatusOK, EffectiveTenantID(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/resource", nil)
	req.Header.Set(TenantHeader, "t9")
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
	if recorder.Body.String() != "t9" {
		t.Fatalf("unexpected tenant: %s", recorder.Body.String())
	}
}
