package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/smartattend/smartattend-api/internal/middleware"
	"github.com/smartattend/smartattend-api/internal/models"
)

type fakeDashboardSrv struct {
	admin      *models.AdminDashboard
	adminErr   error
	member     *models.MemberDashboard
	memberErr  error
	platform   *models.PlatformOverview
	lastTenant string
	lastUser   string
}

func (f *fakeDashboardSrv) Admin(_ context.Context, tenantID string) (*models.AdminDashboard, error) {
	f.lastTenant = tenantID
	return f.admin, f.adminErr
}

func (f *fakeDashboardSrv) Member(_ context.Context, tenantID, userID string) (*models.MemberDashboard, error) {
	f.lastTenant = tenantID
	f.lastUser = userID
	return f.member, f.memberErr
}

func (f *fakeDashboardSrv) Platform(context.Context) (*models.PlatformOverview, error) {
	return f.platform, nil
}

func TestDashboardHandlerAdminSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeDashboardSrv{
		admin: &models.AdminDashboard{TenantID: "t1", Headcount: 42, GeneratedAt: time.Now()},
	}
	handler := NewDashboardHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/admin", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleSchoolAdmin, TenantID: "t1"})

	handler.Admin(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "t1", srv.lastTenant)
	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, float64(42), envelope.Data["headcount"])
}

func TestDashboardHandlerAdminScopesSuperadminByHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeDashboardSrv{admin: &models.AdminDashboard{TenantID: "t9"}}
	handler := NewDashboardHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	req := httptest.NewRequest(http.MethodGet, "/dashboard/admin", nil)
	req.Header.Set(middleware.TenantHeader, "t9")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "root", Role: models.RoleSuperAdmin})

	handler.Admin(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "t9", srv.lastTenant)
}

func TestDashboardHandlerMemberSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeDashboardSrv{
		member: &models.MemberDashboard{MemberID: "m1"},
	}
	handler := NewDashboardHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/me", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u2", Role: models.RoleStudent, TenantID: "t1"})

	handler.Member(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u2", srv.lastUser)
}

func TestDashboardHandlerMemberWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/me", nil)

	handler.Member(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type responseEnvelope struct {
	Data map[string]interface{} `json:"data"`
	Meta map[string]interface{} `json:"meta"`
}
