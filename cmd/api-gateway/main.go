package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/carebridge/carebridge-api/api/swagger"
	"github.com/carebridge/carebridge-api/internal/handler"
	"github.com/carebridge/carebridge-api/internal/middleware"
	"github.com/carebridge/carebridge-api/internal/models"
	"github.com/carebridge/carebridge-api/internal/repository"
	"github.com/carebridge/carebridge-api/internal/service"
	"github.com/carebridge/carebridge-api/pkg/cache"
	"github.com/carebridge/carebridge-api/pkg/config"
	"github.com/carebridge/carebridge-api/pkg/database"
	"github.com/carebridge/carebridge-api/pkg/jobs"
	"github.com/carebridge/carebridge-api/pkg/logger"
	corsmiddleware "github.com/carebridge/carebridge-api/pkg/middleware/cors"
	reqidmiddleware "github.com/carebridge/carebridge-api/pkg/middleware/requestid"
	"github.com/carebridge/carebridge-api/pkg/storage"
)

// @title CareBridge API
// @version 1.0.0
// @description Care-management dashboard backend with submission-window enforcement
// @BasePath /
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	facilityTZ, err := time.LoadLocation(cfg.Facility.Timezone)
	if err != nil {
		logr.Sugar().Fatalw("invalid facility timezone", "timezone", cfg.Facility.Timezone, "error", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	patientRepo := repository.NewPatientRepository(db)
	chartRepo := repository.NewChartRepository(db)
	updateRepo := repository.NewUpdateRepository(db)
	overrideRepo := repository.NewOverrideRepository(db)
	vitalsRepo := repository.NewVitalsRepository(db)
	medicationRepo := repository.NewMedicationRepository(db)
	appointmentRepo := repository.NewAppointmentRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)
	reportRepo := repository.NewReportRepository(db)

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, true)
	} else {
		cacheSvc = service.NewCacheService(nil, metricsSvc, cfg.Dashboard.CacheTTL, logr, false)
	}

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "carebridge-api",
		SingleSession:      true,
	})

	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Patients:     patientRepo,
		Appointments: appointmentRepo,
		Charts:       chartRepo,
		Updates:      updateRepo,
		Overrides:    overrideRepo,
		Cache:        cacheSvc,
		Metrics:      metricsSvc,
		Logger:       logr,
		Config: service.DashboardServiceConfig{
			CacheTTL:         cfg.Dashboard.CacheTTL,
			FacilityTimezone: facilityTZ,
		},
	})

	overrideSvc := service.NewOverrideService(overrideRepo, userRepo, dashboardSvc, validate, logr, service.OverrideServiceConfig{
		FetchRetries: cfg.Submissions.OverrideFetchRetries,
		FetchBackoff: cfg.Submissions.OverrideFetchBackoff,
	})

	policy := service.NewSubmissionPolicy(facilityTZ)
	recorder := service.NewSubmissionRecorder(policy, overrideSvc, metricsSvc, logr)

	chartSvc := service.NewChartService(chartRepo, recorder, userRepo, dashboardSvc, validate, logr)
	updateSvc := service.NewUpdateService(updateRepo, recorder, userRepo, dashboardSvc, validate, logr)
	patientSvc := service.NewPatientService(patientRepo, userRepo, validate, logr)
	medicationSvc := service.NewMedicationService(medicationRepo, userRepo, validate, logr)
	vitalsSvc := service.NewVitalsService(vitalsRepo, validate, logr)
	appointmentSvc := service.NewAppointmentService(appointmentRepo, userRepo, validate, logr)
	assessmentSvc := service.NewAssessmentService(assessmentRepo, validate, logr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reportSvc *service.ReportService
	var reportQueue *jobs.Queue
	if cfg.Reports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init report storage", "dir", cfg.Reports.StorageDir, "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SigningSecret, cfg.Reports.ResultTTL)
		exportSvc := service.NewExportService(chartRepo, updateRepo, overrideRepo, patientRepo, store, signer, service.ExportConfig{
			APIPrefix:    cfg.APIPrefix,
			FacilityName: cfg.Facility.Name,
			ResultTTL:    cfg.Reports.ResultTTL,
		}, logr, nil, nil)

		worker := service.NewReportWorker(reportRepo, exportSvc, cfg.Reports.WorkerRetries, logr)
		reportQueue = jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			Logger:     logr,
		})
		reportQueue.Start(ctx)

		reportSvc = service.NewReportService(reportRepo, reportQueue, exportSvc, logr, service.ReportServiceConfig{
			ResultTTL:       cfg.Reports.ResultTTL,
			CleanupInterval: cfg.Reports.CleanupInterval,
			MaxRetries:      cfg.Reports.WorkerRetries,
		})
		reportSvc.RecoverPendingJobs(ctx)
		reportSvc.StartCleanup(ctx)
	}

	authHandler := handler.NewAuthHandler(authSvc)
	patientHandler := handler.NewPatientHandler(patientSvc)
	chartHandler := handler.NewChartHandler(chartSvc)
	updateHandler := handler.NewUpdateHandler(updateSvc)
	overrideHandler := handler.NewOverrideHandler(overrideSvc)
	vitalsHandler := handler.NewVitalsHandler(vitalsSvc)
	medicationHandler := handler.NewMedicationHandler(medicationSvc)
	appointmentHandler := handler.NewAppointmentHandler(appointmentSvc)
	assessmentHandler := handler.NewAssessmentHandler(assessmentSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
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
			auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
			auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
			auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
		}

		secured := api.Group("")
		secured.Use(middleware.JWT(authSvc))
		{
			// Staff can read their own profile, admins can read anyone's.
			secured.GET("/staff/:id", middleware.RBAC(string(models.RoleAdmin), middleware.SelfSubject), authHandler.Profile)

			secured.GET("/patients", patientHandler.List)
			secured.GET("/patients/:id", patientHandler.Get)
			secured.POST("/patients", middleware.RequireRoles(models.RoleAdmin, models.RoleLead), patientHandler.Create)
			secured.PUT("/patients/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleLead), patientHandler.Update)
			secured.DELETE("/patients/:id", middleware.RequireRoles(models.RoleAdmin), patientHandler.Delete)
			secured.GET("/patients/:id/vitals/latest", vitalsHandler.Latest)

			secured.GET("/charts", chartHandler.List)
			secured.POST("/charts", chartHandler.Create)

			secured.GET("/updates", updateHandler.List)
			secured.POST("/updates", updateHandler.Create)

			secured.GET("/overrides", middleware.RequireRoles(models.RoleAdmin, models.RoleLead), overrideHandler.List)
			secured.POST("/overrides", middleware.RequireRoles(models.RoleAdmin, models.RoleLead), overrideHandler.Create)

			secured.GET("/vitals", vitalsHandler.List)
			secured.POST("/vitals", vitalsHandler.Create)

			secured.GET("/medications", medicationHandler.List)
			secured.GET("/medications/:id", medicationHandler.Get)
			secured.POST("/medications", middleware.RequireRoles(models.RoleAdmin, models.RoleLead), medicationHandler.Create)
			secured.PUT("/medications/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleLead), medicationHandler.Update)
			secured.POST("/medications/:id/discontinue", middleware.RequireRoles(models.RoleAdmin, models.RoleLead), medicationHandler.Discontinue)

			secured.GET("/appointments", appointmentHandler.List)
			secured.GET("/appointments/:id", appointmentHandler.Get)
			secured.POST("/appointments", middleware.RequireRoles(models.RoleAdmin, models.RoleLead), appointmentHandler.Create)
			secured.PUT("/appointments/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleLead), appointmentHandler.Update)

			secured.GET("/assessments", assessmentHandler.List)
			secured.GET("/assessments/:id", assessmentHandler.Get)
			secured.POST("/assessments", middleware.RequireRoles(models.RoleAdmin, models.RoleLead), assessmentHandler.Create)

			if cfg.Dashboard.Enabled {
				secured.GET("/dashboard", middleware.RequireRoles(models.RoleAdmin, models.RoleLead), dashboardHandler.Summary)
			}
			secured.GET("/metrics/summary", middleware.RequireRoles(models.RoleAdmin), metricsHandler.Snapshot)
		}

		if reportSvc != nil {
			reportHandler := handler.NewReportHandler(reportSvc)
			api.POST("/reports", middleware.JWT(authSvc), middleware.Audit(userRepo, models.AuditActionReportRequest, "report"), reportHandler.Create)
			api.GET("/reports/:id", middleware.JWT(authSvc), reportHandler.Status)
			// Download is authenticated by the signed token itself; claims are
			// attached when present so request logs can name the caller.
			api.GET("/export/:token", middleware.OptionalJWT(authSvc), reportHandler.Download)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "facility_tz", cfg.Facility.Timezone)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logr.Sugar().Infow("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	cancel()
	if reportQueue != nil {
		reportQueue.Stop()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	logr.Sugar().Infow("server stopped")
}
