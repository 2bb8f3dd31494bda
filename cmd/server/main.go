package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/vnmchuo/noteswise/config"
	"github.com/vnmchuo/noteswise/internal/ai"
	"github.com/vnmchuo/noteswise/internal/auth"
	"github.com/vnmchuo/noteswise/internal/database"
	"github.com/vnmchuo/noteswise/internal/logger"
	"github.com/vnmchuo/noteswise/internal/notes"
	"github.com/vnmchuo/noteswise/internal/provider/elevenlabs"
	"github.com/vnmchuo/noteswise/internal/seeder"
	"github.com/vnmchuo/noteswise/internal/telemetry"
	"github.com/vnmchuo/noteswise/internal/usage"
	"github.com/vnmchuo/noteswise/pkg/ratelimit"
)

const serviceName = "noteswise"

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 2. Init logger
	zlog, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	// 3. Init telemetry
	shutdownTracer, err := telemetry.InitTracer(serviceName, cfg, zlog)
	if err != nil {
		zlog.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdownTracer()
	tracer := otel.GetTracerProvider().Tracer(serviceName)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(registry)

	// 4. Connect PostgreSQL and migrate
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		zlog.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pool.Close()
	if err := database.Migrate(ctx, cfg.PostgresDSN); err != nil {
		zlog.Fatal("failed to migrate database", zap.Error(err))
	}
	zlog.Info("PostgreSQL connected")

	// 5. Connect Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		zlog.Fatal("failed to ping redis", zap.Error(err))
	}
	zlog.Info("Redis connected")

	// 6. Init auth and rate limiting
	authMiddleware := auth.NewMiddleware(auth.NewJWTVerifier(cfg.JWTSecret), rdb, zlog.Named("auth"))
	limiter := ratelimit.NewLimiter(rdb, cfg.DefaultRateLimitRPM)
	generationLimit := ratelimit.Middleware(limiter, auth.GetUserID, zlog.Named("ratelimit"))

	// 7. Init AI
	factory := ai.NewFactory(cfg.AI, ai.DefaultConstructors(), zlog.Named("ai"))
	tts, err := elevenlabs.New(cfg.ElevenLabsAPIKey, cfg.ElevenLabsBaseURL, nil, zlog.Named("elevenlabs"))
	if err != nil {
		zlog.Fatal("failed to init audio provider", zap.Error(err))
	}
	service := ai.NewService(factory, tts, metrics, tracer, zlog.Named("ai"))
	zlog.Info("AI providers configured",
		zap.Strings("available", factory.ListAvailable()),
		zap.String("default", factory.DefaultProvider()))

	// 8. Init usage recorder
	usageStore := usage.NewPostgresStore(pool)
	recorder := usage.NewRecorder(usageStore, 256, zlog.Named("usage"))
	recorderCtx, stopRecorder := context.WithCancel(context.Background())
	go recorder.Process(recorderCtx)

	// 9. Init handlers
	noteStore := notes.NewPostgresStore(pool)
	notesHandler := notes.NewHandler(noteStore, service, tracer, zlog.Named("notes"))
	aiHandler := ai.NewHandler(service, recorder, usageStore, tracer, zlog.Named("ai"))

	// 10. Seed dev user if RUN_SEED=true
	if os.Getenv("RUN_SEED") == "true" {
		if _, err := seeder.SeedDevUser(ctx, noteStore, cfg.JWTSecret, zlog); err != nil {
			zlog.Warn("[Seeder] seeding failed", zap.Error(err))
		}
	}

	// 11. Init Chi router
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(logger.Middleware(zlog))
	r.Use(chimiddleware.Recoverer)

	// Public routes
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"noteswise"}`))
	})
	r.Handle("/metrics", metrics.Handler())

	// Protected routes
	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware)
		aiHandler.Routes(r, generationLimit)
		notesHandler.Routes(r, generationLimit)
	})

	// 12. Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		zlog.Info("NotesWise API starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server error", zap.Error(err))
		}
	}()

	<-quit
	zlog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("forced shutdown", zap.Error(err))
	}
	stopRecorder()
	recorder.Wait()
	zlog.Info("Server stopped")
}
