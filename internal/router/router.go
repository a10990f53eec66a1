package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/smartattend/smartattend-api/internal/handler"
	"github.com/smartattend/smartattend-api/internal/middleware"
	"github.com/smartattend/smartattend-api/internal/models"
	"github.com/smartattend/smartattend-api/internal/repository"
	"github.com/smartattend/smartattend-api/internal/service"
	"github.com/smartattend/smartattend-api/pkg/config"
	"github.com/smartattend/smartattend-api/pkg/logger"
	corsmiddleware "github.com/smartattend/smartattend-api/pkg/middleware/cors"
	reqidmiddleware "github.com/smartattend/smartattend-api/pkg/middleware/requestid"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth       *handler.AuthHandler
	Tenant     *handler.TenantHandler
	User       *handler.UserHandler
	Approval   *handler.ApprovalHandler
	Department *handler.DepartmentHandler
	Member     *handler.MemberHandler
	Schedule   *handler.ScheduleHandler
	Session    *handler.SessionHandler
	Attendance *handler.AttendanceHandler
	Report     *handler.ReportHandler
	Incident   *handler.IncidentHandler
	Settings   *handler.SettingsHandler
	Dashboard  *handler.DashboardHandler
	Metrics    *handler.MetricsHandler
}

// Deps carries cross-cutting services the middleware chain needs.
type Deps struct {
	Auth        *service.AuthService
	SettingsSvc *service.SettingsService
	MetricsSvc  *service.MetricsService
	Users       *repository.UserRepository
	ReadyCheck  func() error
}

var (
	adminRoles  = []string{string(models.RoleSuperAdmin), string(models.RoleSchoolAdmin), string(models.RoleCorporateAdmin), string(models.RoleHR)}
	markerRoles = append(adminRoles, string(models.RoleFaculty))
)

// Setup builds the gin engine with the full middleware chain and route table.
func Setup(cfg *config.Config, logr *zap.Logger, h Handlers, deps Deps) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.MetricsSvc))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", func(c *gin.Context) {
		if deps.ReadyCheck != nil {
			if err := deps.ReadyCheck(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", h.Metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	// Public auth endpoints stay reachable during maintenance only for
	// superadmins, so the gate sits in front of them as well.
	auth := api.Group("/auth")
	auth.Use(middleware.OptionalJWT(deps.Auth), middleware.Maintenance(deps.SettingsSvc))
	{
		auth.POST("/login", h.Auth.Login)
		auth.POST("/register", h.Auth.Register)
		auth.POST("/refresh", h.Auth.Refresh)
	}

	authed := api.Group("")
	authed.Use(middleware.JWT(deps.Auth), middleware.Maintenance(deps.SettingsSvc))

	me := authed.Group("/auth")
	{
		me.GET("/me", h.Auth.Me)
		me.POST("/logout", h.Auth.Logout)
		me.POST("/change-password", h.Auth.ChangePassword)
	}

	// Platform surface is superadmin territory and crosses tenants.
	platform := authed.Group("/platform", middleware.RBAC(string(models.RoleSuperAdmin)))
	{
		platform.GET("/dashboard", h.Dashboard.Platform)
		platform.GET("/settings", h.Settings.ListPlatform)
		platform.PUT("/settings", h.Settings.UpdatePlatform)
	}

	tenants := authed.Group("/tenants", middleware.RBAC(string(models.RoleSuperAdmin)))
	{
		tenants.GET("", h.Tenant.List)
		tenants.POST("", h.Tenant.Create)
		tenants.GET("/:id", h.Tenant.Get)
		tenants.PUT("/:id", h.Tenant.Update)
		tenants.POST("/:id/suspend", h.Tenant.Suspend)
		tenants.POST("/:id/reactivate", h.Tenant.Reactivate)
	}

	// Everything below is scoped to a tenant, either from the token or
	// from the superadmin tenant header.
	scoped := authed.Group("", middleware.RequireTenant())

	admin := scoped.Group("", middleware.RBAC(adminRoles...))
	{
		admin.GET("/users", h.User.List)
		admin.POST("/users", h.User.Create)
		admin.GET("/users/:id", h.User.Get)
		admin.PUT("/users/:id", h.User.Update)
		admin.DELETE("/users/:id", h.User.Delete)

		admin.GET("/approvals", h.Approval.List)
		admin.GET("/approvals/:id", h.Approval.Get)
		admin.POST("/approvals/:id/decision", h.Approval.Decide)

		admin.POST("/departments", h.Department.Create)
		admin.PUT("/departments/:id", h.Department.Update)
		admin.DELETE("/departments/:id", h.Department.Delete)

		admin.POST("/members", h.Member.Create)
		admin.PUT("/members/:id", h.Member.Update)
		admin.DELETE("/members/:id", h.Member.Deactivate)

		admin.POST("/schedules", h.Schedule.Create)
		admin.PUT("/schedules/:id", h.Schedule.Update)
		admin.DELETE("/schedules/:id", h.Schedule.Delete)
		admin.POST("/courses", h.Schedule.CreateCourse)
		admin.PUT("/courses/:id", h.Schedule.UpdateCourse)
		admin.DELETE("/courses/:id", h.Schedule.DeleteCourse)

		admin.GET("/dashboard/admin", h.Dashboard.Admin)

		admin.GET("/settings", h.Settings.ListTenant)
		admin.PUT("/settings", h.Settings.UpdateTenant)

		admin.PUT("/incidents/:id", h.Incident.Update)

		reports := admin.Group("/reports")
		reports.POST("", middleware.Audit(deps.Users, "REPORT_REQUEST", "report_job"), h.Report.Create)
		reports.GET("", h.Report.List)
		reports.GET("/:id", h.Report.Get)
	}

	markers := scoped.Group("", middleware.RBAC(markerRoles...))
	{
		markers.GET("/departments", h.Department.List)
		markers.GET("/departments/:id", h.Department.Get)
		markers.GET("/members", h.Member.List)
		markers.GET("/members/:id", h.Member.Get)
		markers.GET("/schedules", h.Schedule.List)
		markers.GET("/schedules/:id", h.Schedule.Get)
		markers.GET("/courses", h.Schedule.ListCourses)

		markers.GET("/sessions", h.Session.List)
		markers.GET("/sessions/:id", h.Session.Get)
		markers.POST("/sessions", h.Session.Open)
		markers.POST("/sessions/:id/lock", h.Session.Lock)
		markers.POST("/sessions/:id/close", h.Session.Close)
		markers.GET("/sessions/:id/roster", h.Session.Roster)

		markers.POST("/sessions/:id/attendance", h.Attendance.Mark)
		markers.POST("/sessions/:id/attendance/bulk", middleware.Audit(deps.Users, "ATTENDANCE_BULK", "attendance_session"), h.Attendance.BulkMark)
		markers.GET("/sessions/:id/attendance", h.Attendance.SessionRecords)
		markers.GET("/members/:id/attendance", h.Attendance.History)
		markers.GET("/members/:id/attendance/summary", h.Attendance.Summary)
	}

	// Any tenant user can see their own dashboard and raise incidents.
	scoped.GET("/dashboard/me", h.Dashboard.Member)
	scoped.GET("/incidents", h.Incident.List)
	scoped.GET("/incidents/:id", h.Incident.Get)
	scoped.GET("/incidents/:id/timeline", h.Incident.Timeline)
	scoped.POST("/incidents", h.Incident.Create)

	// Report downloads carry their own expiring signature, so the token is
	// the credential and no JWT is demanded.
	api.GET("/reports/download", h.Report.Download)

	return r
}
