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
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/lingua-scheduler-api/api/swagger"
	"github.com/noah-isme/lingua-scheduler-api/internal/handler"
	internalmiddleware "github.com/noah-isme/lingua-scheduler-api/internal/middleware"
	"github.com/noah-isme/lingua-scheduler-api/internal/repository"
	"github.com/noah-isme/lingua-scheduler-api/internal/service"
	"github.com/noah-isme/lingua-scheduler-api/pkg/cache"
	"github.com/noah-isme/lingua-scheduler-api/pkg/config"
	"github.com/noah-isme/lingua-scheduler-api/pkg/database"
	"github.com/noah-isme/lingua-scheduler-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/lingua-scheduler-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/lingua-scheduler-api/pkg/middleware/requestid"
)

// @title Lingua Scheduler API
// @version 1.0.0
// @description Class session scheduling for a language center.
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

	ctx := context.Background()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, logr); err != nil {
			logr.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, weekly cache disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close() //nolint:errcheck
		}
	}

	classRepo := repository.NewClassRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	userRepo := repository.NewUserRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	sessionRepo := repository.NewClassSessionRepository(db)

	metricsSvc := service.NewMetricsService()
	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, "lingua", logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.WeeklyTTL, logr, cfg.Cache.Enabled && redisClient != nil)

	notificationSvc := service.NewNotificationService(notificationRepo, enrollmentRepo, metricsSvc, logr, cfg.Notifications)
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	notificationSvc.Start(workerCtx)
	defer notificationSvc.Stop()

	catalog, err := service.NewTimeSlotCatalogFromConfig(cfg.Scheduler)
	if err != nil {
		logr.Fatal("invalid time slot catalog", zap.Error(err))
	}
	conflicts := service.NewScheduleConflictChecker(sessionRepo)
	allocator := service.NewRoomAllocator(roomRepo, conflicts)
	validate := validator.New()

	generatorSvc := service.NewScheduleGeneratorService(
		classRepo,
		userRepo,
		sessionRepo,
		conflicts,
		allocator,
		service.NewRandomRuleSelector(catalog, 0),
		catalog,
		db,
		notificationSvc,
		cacheSvc,
		metricsSvc,
		validate,
		logr,
		service.ScheduleGeneratorConfig{
			ProposalTTL:     cfg.Scheduler.ProposalTTL,
			MaxWindowDays:   cfg.Scheduler.MaxWindowDays,
			DefaultMaxSlots: cfg.Scheduler.DefaultMaxSlots,
		},
	)
	sessionSvc := service.NewClassSessionService(
		sessionRepo,
		classRepo,
		userRepo,
		roomRepo,
		conflicts,
		allocator,
		catalog,
		notificationSvc,
		cacheSvc,
		metricsSvc,
		validate,
		logr,
		service.ClassSessionConfig{
			MaxSlots:             cfg.Scheduler.DefaultMaxSlots,
			MaxWindowDays:        cfg.Scheduler.MaxWindowDays,
			SuggestionSearchDays: cfg.Scheduler.SuggestionSearchDays,
			WeeklyCacheTTL:       cfg.Cache.WeeklyTTL,
		},
	)
	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	registerRoutes(r, cfg, routeDeps{
		auth:      authSvc,
		generator: handler.NewScheduleGeneratorHandler(generatorSvc),
		sessions:  handler.NewClassSessionHandler(sessionSvc),
		metrics:   handler.NewMetricsHandler(metricsSvc),
	})

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

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logr.Info("shutting down", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
}
