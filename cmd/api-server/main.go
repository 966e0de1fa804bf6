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
	"go.uber.org/zap"

	_ "github.com/certilog/certilog-api/api/swagger"
	"github.com/certilog/certilog-api/internal/handler"
	"github.com/certilog/certilog-api/internal/middleware"
	"github.com/certilog/certilog-api/internal/models"
	"github.com/certilog/certilog-api/internal/repository"
	"github.com/certilog/certilog-api/internal/service"
	"github.com/certilog/certilog-api/pkg/cache"
	"github.com/certilog/certilog-api/pkg/config"
	"github.com/certilog/certilog-api/pkg/database"
	"github.com/certilog/certilog-api/pkg/jobs"
	"github.com/certilog/certilog-api/pkg/logger"
	corsmiddleware "github.com/certilog/certilog-api/pkg/middleware/cors"
	reqidmiddleware "github.com/certilog/certilog-api/pkg/middleware/requestid"
	"github.com/certilog/certilog-api/pkg/storage"
)

// @title Certilog API
// @version 1.0.0
// @description Certificate lifecycle management: status transitions, bulk mutations and audit trails
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
		logr.Fatal("connect postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, running without cache", zap.Error(err))
		redisClient = nil
	}

	certificateRepo := repository.NewCertificateRepository(db)
	statusRepo := repository.NewStatusRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	paymentTypeRepo := repository.NewPaymentTypeRepository(db)
	tagRepo := repository.NewTagRepository(db)
	userRepo := repository.NewUserRepository(db)
	exportJobRepo := repository.NewExportJobRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "certilog",
	})
	statusSvc := service.NewStatusService(statusRepo, cacheRepo, cfg.Statuses.CacheTTL, nil, logr)
	certificateSvc := service.NewCertificateService(certificateRepo, statusRepo, auditRepo, metricsSvc, nil, logr)
	bulkSvc := service.NewBulkService(certificateRepo, certificateSvc, metricsSvc, cfg.Bulk.MaxBatchSize, nil, logr)
	auditSvc := service.NewAuditService(auditRepo, certificateRepo, logr)
	catalogSvc := service.NewCatalogService(paymentTypeRepo, tagRepo, nil, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var exportSvc *service.ExportService
	var exportQueue *jobs.Queue
	if cfg.Exports.Enabled {
		fileStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Fatal("init export storage", zap.Error(err))
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc = service.NewExportService(exportJobRepo, certificateRepo, auditRepo, fileStore, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Exports.SignedURLTTL,
		}, nil, logr)
		exportQueue = jobs.NewQueue("exports", exportSvc.HandleJob, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})
		exportSvc.Attach(exportQueue)
		exportQueue.Start(ctx)
		defer exportQueue.Stop()

		go runExportCleanup(ctx, exportSvc, cfg.Exports.CleanupInterval, logr)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	authHandler := handler.NewAuthHandler(authSvc)
	certificateHandler := handler.NewCertificateHandler(certificateSvc, bulkSvc, auditSvc)
	statusHandler := handler.NewStatusHandler(statusSvc)
	catalogHandler := handler.NewCatalogHandler(catalogSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	anyRole := middleware.RequireRoles(models.RoleAdmin, models.RoleManager, models.RoleViewer)
	writer := middleware.RequireRoles(models.RoleAdmin, models.RoleManager)
	admin := middleware.RequireRoles(models.RoleAdmin)

	certificates := protected.Group("/certificates")
	certificates.GET("", anyRole, certificateHandler.List)
	certificates.GET("/:id", anyRole, certificateHandler.Get)
	certificates.POST("", writer, certificateHandler.Create)
	certificates.PATCH("/:id", writer, certificateHandler.Update)
	certificates.POST("/bulk", writer, certificateHandler.Bulk)
	certificates.GET("/:id/events", anyRole, certificateHandler.Events)

	statuses := protected.Group("/statuses")
	statuses.GET("", anyRole, statusHandler.List)
	statuses.GET("/required-fields", anyRole, statusHandler.RequiredFields)
	statuses.GET("/:name", anyRole, statusHandler.Get)
	statuses.POST("", admin, statusHandler.Create)
	statuses.PATCH("/:name", admin, statusHandler.Update)
	statuses.GET("/:name/validations", anyRole, statusHandler.Requirements)
	statuses.POST("/:name/validations", admin, statusHandler.AddRequirement)
	statuses.DELETE("/:name/validations/:validationId", admin, statusHandler.RemoveRequirement)

	paymentTypes := protected.Group("/payment-types")
	paymentTypes.GET("", anyRole, catalogHandler.ListPaymentTypes)
	paymentTypes.POST("", admin, catalogHandler.CreatePaymentType)
	paymentTypes.PATCH("/:id", admin, catalogHandler.UpdatePaymentType)
	paymentTypes.DELETE("/:id", admin, catalogHandler.DeletePaymentType)

	tags := protected.Group("/tags")
	tags.GET("", anyRole, catalogHandler.ListTags)
	tags.POST("", writer, catalogHandler.CreateTag)
	tags.DELETE("/:id", admin, catalogHandler.DeleteTag)

	if exportSvc != nil {
		exportHandler := handler.NewExportHandler(exportSvc)
		exports := protected.Group("/exports")
		exports.POST("", writer, exportHandler.Enqueue)
		exports.GET("/:id", anyRole, exportHandler.Status)
		// Download authenticates via the signed token itself.
		api.GET("/exports/download/:token", exportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func runExportCleanup(ctx context.Context, exports *service.ExportService, interval time.Duration, logr *zap.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := exports.Cleanup(0)
			if err != nil {
				logr.Warn("export cleanup", zap.Error(err))
				continue
			}
			if len(removed) > 0 {
				logr.Info("export cleanup removed files", zap.Int("count", len(removed)))
			}
		}
	}
}
