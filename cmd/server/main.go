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

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"momolearn-backend/internal/config"
	"momolearn-backend/internal/database"
	"momolearn-backend/internal/handlers"
	"momolearn-backend/internal/logger"
	"momolearn-backend/internal/metrics"
	"momolearn-backend/internal/middleware"
	"momolearn-backend/internal/repository"
	"momolearn-backend/internal/router"
	"momolearn-backend/internal/services"
	"momolearn-backend/internal/storage"
	"momolearn-backend/internal/websocket"
)

func main() {
	log.Println("🚀 Starting MomoLearn Backend...")
	ctx := context.Background()

	// ──── Step 1: Load and validate configuration ────
	cfg := config.Load()
	if err := cfg.Generator.Validate(); err != nil {
		log.Fatalf("✗ Invalid generator configuration: %v", err)
	}
	if err := cfg.Storage.Validate(); err != nil {
		log.Fatalf("✗ Invalid storage configuration: %v", err)
	}
	log.Println("✓ Environment variables loaded")

	zlog := logger.New(cfg.LogLevel, cfg.LogFile)
	defer zlog.Sync()
	zap.ReplaceGlobals(zlog)

	metrics.Register(prometheus.DefaultRegisterer)

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(ctx, pool, "migrations", zlog); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Step 5: Initialize Blob Storage ────
	blobs, err := newStorageProvider(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("✗ Storage initialization failed: %v", err)
	}
	log.Printf("✓ Storage ready (%s)", cfg.Storage.Type)

	// ──── Step 6: Initialize Question Generator ────
	generator, closeGenerator, err := services.NewQuestionGenerator(ctx, cfg.Generator, zlog)
	if err != nil {
		log.Fatalf("✗ Question generator initialization failed: %v", err)
	}
	defer closeGenerator()
	log.Printf("✓ Question generator ready (%s)", generator.Name())

	// ──── Initialize Repositories ────
	userRepo := repository.NewUserRepo(pool)
	sessionRepo := repository.NewSessionRepo(pool)
	courseRepo := repository.NewCourseRepo(pool)
	uploadRepo := repository.NewUploadRepo(pool)
	studySetRepo := repository.NewStudySetRepo(pool)
	questionRepo := repository.NewQuestionRepo(pool)
	attemptRepo := repository.NewAttemptRepo(pool)

	// ──── Initialize Services ────
	sessionCache := services.NewRedisSessionCache(redisClients.Cache, zlog)
	authService := services.NewAuthService(userRepo, sessionRepo, sessionCache, cfg.SessionTTL, zlog)
	uploadService := services.NewUploadService(uploadRepo, blobs, cfg.Storage.MaxUploadMB, zlog)
	userService := services.NewUserService(userRepo, uploadRepo, blobs, zlog)
	courseService := services.NewCourseService(courseRepo)
	gamificationService := services.NewGamificationService(userRepo, questionRepo, attemptRepo, zlog)
	studySetService := services.NewStudySetService(services.StudySetDeps{
		Sets:      studySetRepo,
		Courses:   courseRepo,
		Uploads:   uploadRepo,
		Blobs:     uploadService,
		Extractor: services.NewPDFTextExtractor(),
		Questions: questionRepo,
		Generator: generator,
		Events:    services.NewRedisStatusPublisher(redisClients.Cache, zlog),
	}, cfg.Generator.DefaultCount, cfg.Generator.StaleAfter, zlog)

	tickets := middleware.NewTicketIssuer(cfg.TicketSecret, middleware.DefaultTicketTTL)
	sessionAuth := middleware.NewSessionAuth(authService, zlog)
	authLimiter := middleware.NewRateLimiter(cfg.AuthRatePerMin, time.Minute)
	defer authLimiter.Stop()

	// ──── Initialize Handlers ────
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	courseHandler := handlers.NewCourseHandler(courseService)
	studySetHandler := handlers.NewStudySetHandler(studySetService)
	attemptHandler := handlers.NewAttemptHandler(gamificationService)
	uploadHandler := handlers.NewUploadHandler(uploadService)
	eventsHandler := handlers.NewEventsHandler(tickets)

	// ──── Step 7: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, tickets, cfg.FrontendURL, zlog)
	log.Println("✓ WebSocket hub started")

	// ──── Step 8: Start HTTP Server ────
	r := router.New(
		sessionAuth,
		authLimiter,
		authHandler,
		userHandler,
		courseHandler,
		studySetHandler,
		attemptHandler,
		uploadHandler,
		eventsHandler,
		wsHub,
		cfg.FrontendURL,
		zlog,
	)

	// Generation runs inside the request, so the write timeout has to
	// cover a full generator call including retries.
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		wsHub.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			zlog.Error("graceful shutdown failed", zap.Error(err))
		}
	}()

	log.Printf("✓ MomoLearn Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  WS:      ws://localhost:%s/ws", cfg.Port)
	log.Printf("  Metrics: http://localhost:%s/metrics", cfg.Port)

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}
}

func newStorageProvider(ctx context.Context, cfg config.StorageConfig) (storage.Provider, error) {
	switch cfg.Type {
	case "minio":
		return storage.NewMinioProvider(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	default:
		return storage.NewLocalProvider(cfg.LocalPath)
	}
}
