package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/medidesk/medidesk-api/api/swagger"
	"github.com/medidesk/medidesk-api/internal/handler"
	"github.com/medidesk/medidesk-api/internal/middleware"
	"github.com/medidesk/medidesk-api/internal/models"
	"github.com/medidesk/medidesk-api/internal/repository"
	"github.com/medidesk/medidesk-api/internal/service"
	"github.com/medidesk/medidesk-api/pkg/cache"
	"github.com/medidesk/medidesk-api/pkg/config"
	"github.com/medidesk/medidesk-api/pkg/database"
	"github.com/medidesk/medidesk-api/pkg/export"
	"github.com/medidesk/medidesk-api/pkg/logger"
	"github.com/medidesk/medidesk-api/pkg/mailer"
	corsmiddleware "github.com/medidesk/medidesk-api/pkg/middleware/cors"
	reqidmiddleware "github.com/medidesk/medidesk-api/pkg/middleware/requestid"
)

// @title MediDesk API
// @version 1.0.0
// @description Appointment scheduling and conflict detection for a small medical office
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
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, slot fast-fail and caching disabled", "error", err)
		redisClient = nil
	}

	loc, err := time.LoadLocation(cfg.Office.Timezone)
	if err != nil {
		logr.Sugar().Warnw("invalid office timezone, using UTC", "timezone", cfg.Office.Timezone)
		loc = time.UTC
	}

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	patientRepo := repository.NewPatientRepository(db)
	medicineRepo := repository.NewMedicineRepository(db)
	busyRepo := repository.NewBusyIntervalRepository(db)
	appointmentRepo := repository.NewAppointmentRepository(db)
	examinationRepo := repository.NewExaminationRepository(db)

	var slotLocker cache.SlotLocker = cache.NoopSlotLocker{}
	var cacheRepo *repository.CacheRepository
	if redisClient != nil {
		slotLocker = cache.NewRedisSlotLocker(redisClient, cfg.Office.SlotLockTTL)
		cacheRepo = repository.NewCacheRepository(redisClient)
	}

	// Services.
	authService := service.NewAuthService(userRepo, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "medidesk-api",
	})
	patientService := service.NewPatientService(patientRepo, logr)
	medicineService := service.NewMedicineService(medicineRepo, logr)
	busyService := service.NewBusyIntervalService(busyRepo, loc, logr)

	var notificationService *service.NotificationService
	var notifier interface {
		AppointmentBooked(ctx context.Context, appt models.AppointmentDetail)
	}
	if cfg.Notifications.Enabled {
		notificationService = service.NewNotificationService(
			mailer.NewSMTPMailer(cfg.Notifications),
			service.NotificationConfig{
				Workers:      cfg.Notifications.WorkerConcurrency,
				MaxRetries:   cfg.Notifications.WorkerRetries,
				VisitMinutes: cfg.Office.VisitMinutes,
			},
			logr,
		)
		notifier = notificationService
	}

	appointmentService := service.NewAppointmentService(appointmentRepo, busyRepo, patientRepo, slotLocker, notifier, logr)
	examinationService := service.NewExaminationService(examinationRepo, appointmentRepo, patientRepo, medicineRepo, logr)

	var dashboardService *service.DashboardService
	if cfg.Dashboard.Enabled {
		if cacheRepo != nil {
			dashboardService = service.NewDashboardService(appointmentRepo, patientRepo, examinationRepo, medicineRepo, cacheRepo, cfg.Dashboard.CacheTTL, loc, logr)
		} else {
			dashboardService = service.NewDashboardService(appointmentRepo, patientRepo, examinationRepo, medicineRepo, nil, cfg.Dashboard.CacheTTL, loc, logr)
		}
	}
	exportService := service.NewExportService(appointmentRepo, busyRepo, export.NewCSVExporter(), export.NewPDFExporter(), logr)
	metricsService := service.NewMetricsService()

	// Handlers.
	authHandler := handler.NewAuthHandler(authService)
	patientHandler := handler.NewPatientHandler(patientService)
	medicineHandler := handler.NewMedicineHandler(medicineService)
	busyHandler := handler.NewBusyIntervalHandler(busyService)
	appointmentHandler := handler.NewAppointmentHandler(appointmentService)
	examinationHandler := handler.NewExaminationHandler(examinationService)
	dashboardHandler := handler.NewDashboardHandler(dashboardService, exportService)
	metricsHandler := handler.NewMetricsHandler(metricsService, db, redisClient)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
			auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
			auth.GET("/me", middleware.JWT(authService), authHandler.Me)
		}

		staff := api.Group("")
		staff.Use(middleware.JWT(authService))
		{
			staff.GET("/patients", patientHandler.List)
			staff.GET("/patients/:id", patientHandler.Get)
			staff.POST("/patients", patientHandler.Create)
			staff.PUT("/patients/:id", patientHandler.Update)
			staff.DELETE("/patients/:id", patientHandler.Delete)

			staff.GET("/medicines", medicineHandler.List)
			staff.GET("/medicines/:id", medicineHandler.Get)

			staff.GET("/appointments", appointmentHandler.List)
			staff.GET("/appointments/availability", appointmentHandler.Availability)
			staff.GET("/appointments/:id", appointmentHandler.Get)
			staff.POST("/appointments", appointmentHandler.Create)
			staff.PUT("/appointments/:id", appointmentHandler.Update)
			staff.POST("/appointments/:id/cancel", appointmentHandler.Cancel)
			staff.DELETE("/appointments/:id", appointmentHandler.Delete)

			staff.GET("/busy-intervals", busyHandler.List)
			staff.GET("/busy-intervals/:id", busyHandler.Get)
			staff.POST("/busy-intervals", busyHandler.Create)
			staff.PUT("/busy-intervals/:id", busyHandler.Update)
			staff.DELETE("/busy-intervals/:id", busyHandler.Delete)

			staff.GET("/examinations", examinationHandler.List)
			staff.GET("/examinations/:id", examinationHandler.Get)

			staff.GET("/dashboard/day-sheet", dashboardHandler.ExportDaySheet)
			if cfg.Dashboard.Enabled {
				staff.GET("/dashboard", dashboardHandler.Snapshot)
			}
		}

		// Clinical records and the medicine catalogue are the doctor's own.
		doctor := api.Group("")
		doctor.Use(middleware.JWT(authService), middleware.RBAC(models.RoleDoctor))
		{
			doctor.POST("/examinations", examinationHandler.Create)
			doctor.PUT("/examinations/:id", examinationHandler.Update)
			doctor.DELETE("/examinations/:id", examinationHandler.Delete)

			doctor.POST("/medicines", medicineHandler.Create)
			doctor.PUT("/medicines/:id", medicineHandler.Update)
			doctor.DELETE("/medicines/:id", medicineHandler.Delete)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if notificationService != nil {
		notificationService.Start(ctx)
		defer notificationService.Stop()
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
