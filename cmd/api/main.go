package main

import (
	"context"
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

	_ "github.com/seduc-go/academia-api/api/swagger"
	"github.com/seduc-go/academia-api/internal/handler"
	"github.com/seduc-go/academia-api/internal/middleware"
	"github.com/seduc-go/academia-api/internal/models"
	"github.com/seduc-go/academia-api/internal/repository"
	"github.com/seduc-go/academia-api/internal/service"
	"github.com/seduc-go/academia-api/pkg/cache"
	"github.com/seduc-go/academia-api/pkg/config"
	"github.com/seduc-go/academia-api/pkg/database"
	"github.com/seduc-go/academia-api/pkg/export"
	"github.com/seduc-go/academia-api/pkg/jobs"
	"github.com/seduc-go/academia-api/pkg/logger"
	corsmiddleware "github.com/seduc-go/academia-api/pkg/middleware/cors"
	reqidmiddleware "github.com/seduc-go/academia-api/pkg/middleware/requestid"
	"github.com/seduc-go/academia-api/pkg/storage"
)

// @title Academia GO API
// @version 1.0.0
// @description Enrollment, attendance and document management for the Academia GO fitness program
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	documentStore, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init document storage", "error", err)
	}
	reportStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init report storage", "error", err)
	}

	documentSigner := storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL)
	reportSigner := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	validate := validator.New()
	metrics := service.NewMetricsService()

	studentRepo := repository.NewStudentRepository(db, cfg.Enrollment.SlotCapacity)
	attendanceRepo := repository.NewAttendanceRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	userRepo := repository.NewUserRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close()

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "academia-go-api",
		SingleSession:      false,
	})
	userService := service.NewUserService(userRepo, validate, logr)
	enrollmentService := service.NewEnrollmentService(studentRepo, cacheRepo, validate, logr)
	attendanceService := service.NewAttendanceService(attendanceRepo, studentRepo, cacheRepo, validate, logr)
	documentService := service.NewDocumentService(documentRepo, studentRepo, documentStore, documentSigner, cfg.Documents, validate, logr)

	var dashboardService *service.DashboardService
	if cfg.Dashboard.Enabled {
		dashboardService = service.NewDashboardService(studentRepo, attendanceRepo, cacheRepo, cfg.Dashboard.CacheTTL, logr)
	} else {
		dashboardService = service.NewDashboardService(studentRepo, attendanceRepo, nil, 0, logr)
	}

	exportService := service.NewExportService(studentRepo, attendanceRepo, reportStore, reportSigner, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Reports.SignedURLTTL,
	}, logr, export.NewCSVExporter(), export.NewPDFExporter())

	reportWorker := service.NewReportWorker(reportRepo, exportService, cfg.Reports.WorkerRetries, logr)
	reportQueue := jobs.NewQueue("reports", reportWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		Logger:     logr,
	})
	reportService := service.NewReportService(reportRepo, reportQueue, exportService, logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Reports.SignedURLTTL,
		CleanupInterval: cfg.Reports.CleanupInterval,
		MaxRetries:      cfg.Reports.WorkerRetries,
	})

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reportQueue.Start(rootCtx)
	reportService.RecoverPendingJobs(rootCtx)
	reportService.StartCleanup(rootCtx)

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	studentHandler := handler.NewStudentHandler(enrollmentService, metrics)
	attendanceHandler := handler.NewAttendanceHandler(attendanceService, metrics)
	documentHandler := handler.NewDocumentHandler(documentService)
	dashboardHandler := handler.NewDashboardHandler(dashboardService)
	reportHandler := handler.NewReportHandler(reportService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	authProtected := api.Group("/auth")
	authProtected.Use(middleware.JWT(authService))
	authProtected.POST("/logout", authHandler.Logout)
	authProtected.POST("/change-password", authHandler.ChangePassword)
	authProtected.GET("/me", authHandler.Me)

	// Signed URL downloads authenticate through the token itself.
	api.GET("/reports/download", reportHandler.Download)
	api.GET("/documents/:id/download", documentHandler.Download)

	protected := api.Group("")
	protected.Use(middleware.JWT(authService))

	staff := protected.Group("")
	staff.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher))
	staff.GET("/students", studentHandler.Roster)
	staff.GET("/students/waitlist", studentHandler.Waitlist)
	staff.GET("/students/:id", studentHandler.Get)
	staff.POST("/attendance/check-in", attendanceHandler.CheckIn)
	staff.GET("/attendance/today", attendanceHandler.ListToday)
	staff.GET("/documents", documentHandler.List)
	staff.POST("/documents", documentHandler.Upload)
	staff.GET("/dashboard/summary", dashboardHandler.Summary)
	staff.POST("/reports/export", reportHandler.Export)
	staff.GET("/reports/:id/status", reportHandler.Status)

	admin := protected.Group("")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	admin.POST("/students", studentHandler.Enroll)
	admin.PUT("/students/:id", studentHandler.Update)
	admin.DELETE("/students/:id", studentHandler.Delete)
	admin.POST("/students/slots/promote", studentHandler.Promote)
	admin.PATCH("/students/block", studentHandler.SetBlocked)
	admin.DELETE("/documents/:id", documentHandler.Delete)
	admin.GET("/users", userHandler.List)
	admin.GET("/users/:id", userHandler.Get)
	admin.POST("/users", userHandler.Create)
	admin.PUT("/users/:id", userHandler.Update)
	admin.DELETE("/users/:id", userHandler.Delete)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Sugar().Infow("shutting down")
	cancel()
	reportQueue.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("forced shutdown", "error", err)
	}
}
