package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"

	_ "github.com/smartattend/smartattend-api/api/swagger"
	"github.com/smartattend/smartattend-api/internal/handler"
	"github.com/smartattend/smartattend-api/internal/repository"
	"github.com/smartattend/smartattend-api/internal/router"
	"github.com/smartattend/smartattend-api/internal/service"
	"github.com/smartattend/smartattend-api/pkg/cache"
	"github.com/smartattend/smartattend-api/pkg/config"
	"github.com/smartattend/smartattend-api/pkg/database"
	"github.com/smartattend/smartattend-api/pkg/jobs"
	"github.com/smartattend/smartattend-api/pkg/logger"
	"github.com/smartattend/smartattend-api/pkg/storage"
)

// @title SmartAttend API
// @version 1.0.0
// @description Multi-tenant attendance management backend
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare report storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	validate := validator.New()
	if err := service.RegisterAttendanceValidators(validate); err != nil {
		logr.Sugar().Fatalw("failed to register validators", "error", err)
	}

	userRepo := repository.NewUserRepository(db)
	tenantRepo := repository.NewTenantRepository(db)
	approvalRepo := repository.NewApprovalRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	memberRepo := repository.NewMemberRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	reportRepo := repository.NewReportRepository(db)
	incidentRepo := repository.NewIncidentRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// The report queue is created by the report service, so the gauge
	// reads through a late-bound pointer.
	var reportSvc *service.ReportService
	metricsSvc := service.NewMetricsService(func() int {
		if reportSvc == nil {
			return 0
		}
		return reportSvc.Queue().Pending()
	})

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, true)

	authSvc := service.NewAuthService(userRepo, tenantRepo, approvalRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	tenantSvc := service.NewTenantService(tenantRepo, userRepo, validate, logr)
	userSvc := service.NewUserService(userRepo, validate, logr)
	departmentSvc := service.NewDepartmentService(departmentRepo, validate, logr)
	memberSvc := service.NewMemberService(memberRepo, userRepo, departmentRepo, validate, logr)
	scheduleSvc := service.NewScheduleService(scheduleRepo, courseRepo, departmentRepo, validate, logr)
	incidentSvc := service.NewIncidentService(incidentRepo, validate, logr)
	settingsSvc := service.NewSettingsService(settingsRepo, userRepo, validate, logr)
	dashboardSvc := service.NewDashboardService(dashboardRepo, attendanceRepo, memberRepo, cacheSvc, cfg.Dashboard.CacheTTL, logr)
	approvalSvc := service.NewApprovalService(approvalRepo, userRepo, dashboardSvc, validate, logr)
	sessionSvc := service.NewSessionService(sessionRepo, scheduleRepo, userRepo, settingsSvc, dashboardSvc, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, sessionRepo, memberRepo, dashboardSvc, validate, logr, cfg.Attendance.BulkMaxItems)
	reportSvc = service.NewReportService(reportRepo, attendanceRepo, store, signer, metricsSvc, validate, logr, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		BufferSize: 64,
		MaxRetries: cfg.Reports.WorkerRetries,
		RetryDelay: 5 * time.Second,
		Logger:     logr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reportSvc.Queue().Start(ctx)
	defer reportSvc.Queue().Stop()

	go func() {
		ticker := time.NewTicker(cfg.Reports.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := reportSvc.Cleanup(ctx, cfg.Reports.SignedURLTTL); err != nil {
					logr.Sugar().Warnw("report cleanup failed", "error", err)
				}
			}
		}
	}()

	handlers := router.Handlers{
		Auth:       handler.NewAuthHandler(authSvc, settingsSvc),
		Tenant:     handler.NewTenantHandler(tenantSvc),
		User:       handler.NewUserHandler(userSvc),
		Approval:   handler.NewApprovalHandler(approvalSvc),
		Department: handler.NewDepartmentHandler(departmentSvc),
		Member:     handler.NewMemberHandler(memberSvc),
		Schedule:   handler.NewScheduleHandler(scheduleSvc),
		Session:    handler.NewSessionHandler(sessionSvc),
		Attendance: handler.NewAttendanceHandler(attendanceSvc),
		Report:     handler.NewReportHandler(reportSvc),
		Incident:   handler.NewIncidentHandler(incidentSvc),
		Settings:   handler.NewSettingsHandler(settingsSvc),
		Dashboard:  handler.NewDashboardHandler(dashboardSvc),
		Metrics:    handler.NewMetricsHandler(metricsSvc),
	}

	engine := router.Setup(cfg, logr, handlers, router.Deps{
		Auth:        authSvc,
		SettingsSvc: settingsSvc,
		MetricsSvc:  metricsSvc,
		Users:       userRepo,
		ReadyCheck:  db.Ping,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown incomplete", "error", err)
	}
}
