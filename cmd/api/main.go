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

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/schoolsuite/sms-core-api/api/swagger"
	"github.com/schoolsuite/sms-core-api/internal/handler"
	"github.com/schoolsuite/sms-core-api/internal/middleware"
	"github.com/schoolsuite/sms-core-api/internal/repository"
	"github.com/schoolsuite/sms-core-api/internal/service"
	"github.com/schoolsuite/sms-core-api/pkg/cache"
	"github.com/schoolsuite/sms-core-api/pkg/config"
	"github.com/schoolsuite/sms-core-api/pkg/database"
	"github.com/schoolsuite/sms-core-api/pkg/export"
	"github.com/schoolsuite/sms-core-api/pkg/jobs"
	"github.com/schoolsuite/sms-core-api/pkg/logger"
	"github.com/schoolsuite/sms-core-api/pkg/mail"
	corsmiddleware "github.com/schoolsuite/sms-core-api/pkg/middleware/cors"
	reqidmiddleware "github.com/schoolsuite/sms-core-api/pkg/middleware/requestid"
	"github.com/schoolsuite/sms-core-api/pkg/storage"
)

// @title SMS Core API
// @version 1.0.0
// @description School administration core: admissions, student lifecycle, bulk import, and promotions.
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("redis connection failed", "error", err)
	}
	defer redisClient.Close()

	uploadStore, err := storage.NewLocalStorage(cfg.Storage.UploadDir)
	if err != nil {
		logr.Sugar().Fatalw("upload storage init failed", "error", err)
	}
	letterStore, err := storage.NewLocalStorage(cfg.Storage.LetterDir)
	if err != nil {
		logr.Sugar().Fatalw("letter storage init failed", "error", err)
	}

	validate := validator.New()
	mailer := mail.New(cfg.Mail, logr)

	users := repository.NewUserRepository(db)
	admissions := repository.NewAdmissionRepository(db)
	students := repository.NewStudentRepository(db)
	guardians := repository.NewGuardianRepository(db)
	academics := repository.NewAcademicRepository(db)
	uploads := repository.NewBulkUploadRepository(db)
	promotions := repository.NewPromotionRepository(db)
	failures := repository.NewImportFailureCache(redisClient, cfg.Import.FailureTTL)

	metricsService := service.NewMetricsService()

	queue := jobs.NewQueue("sms-core", jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		BufferSize: cfg.Jobs.BufferSize,
		MaxRetries: cfg.Jobs.MaxRetries,
		RetryDelay: cfg.Jobs.RetryDelay,
		Logger:     logr,
		Observe:    metricsService.ObserveJob,
	})

	authService := service.NewAuthService(users, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
	})
	admissionService := service.NewAdmissionService(
		admissions, students, academics,
		export.NewLetterRenderer(), letterStore, mailer,
		db, validate, logr, metricsService,
		service.AdmissionServiceConfig{
			MaxClassCapacity: cfg.Admissions.MaxClassCapacity,
			SchoolName:       cfg.Mail.SchoolName,
		})
	studentService := service.NewStudentService(students, academics, db, validate, logr, metricsService)
	creationService := service.NewStudentCreationService(admissions, students, guardians, db, queue, mailer, logr, metricsService)
	guardianService := service.NewGuardianService(guardians, mailer, cfg.Mail.SchoolName, logr)
	importService := service.NewImportService(
		uploads, students, academics, failures, uploadStore,
		db, queue, logr, metricsService,
		service.ImportServiceConfig{
			BatchSize:        cfg.Import.BatchSize,
			MaxRows:          cfg.Import.MaxRows,
			ProgressInterval: cfg.Import.ProgressInterval,
		})
	promotionService := service.NewPromotionService(promotions, students, academics, db, queue, validate, logr, metricsService)

	guardianService.RegisterHandlers(queue)
	importService.RegisterHandlers(queue)
	promotionService.RegisterHandlers(queue)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queue.Start(ctx)
	defer queue.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsService.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.Handlers{
		Auth:       handler.NewAuthHandler(authService),
		Admissions: handler.NewAdmissionHandler(admissionService),
		Students:   handler.NewStudentHandler(studentService, creationService),
		Imports:    handler.NewImportHandler(importService),
		Promotions: handler.NewPromotionHandler(promotionService),
	}, authService)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
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
		logr.Sugar().Warnw("server shutdown", "error", err)
	}
}
