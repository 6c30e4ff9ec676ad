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

	"github.com/google/uuid"

	"palace-backend/internal/config"
	"palace-backend/internal/database"
	"palace-backend/internal/handlers"
	"palace-backend/internal/middleware"
	"palace-backend/internal/models"
	"palace-backend/internal/recorder"
	"palace-backend/internal/repository"
	"palace-backend/internal/router"
	"palace-backend/internal/services"
	"palace-backend/internal/websocket"
	"palace-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting Palace Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	userRepo := repository.NewUserRepo(pool)
	sessionRepo := repository.NewSessionRepo(pool)
	jobRepo := repository.NewJobRepo(pool)
	practiceRepo := repository.NewPracticeRepo(pool)

	// ──── Step 5: Initialize Analysis Service (Gemini) ────
	analysisService, err := services.NewAnalysisService(
		cfg.GeminiAPIKey,
		cfg.GeminiConcurrentReqs,
		redisClients.Queue,
	)
	if err != nil {
		log.Fatalf("✗ Gemini client initialization failed: %v", err)
	}
	defer analysisService.Close()
	log.Println("✓ Gemini Flash client initialized")

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	authService := services.NewAuthService(userRepo, redisClients.Queue, jwtAuth)

	// ──── Step 6: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, cfg.JWTSecret)
	log.Println("✓ WebSocket hub started")

	// ──── Step 7: Initialize Recorder ────
	// Outbox backlog updates originate in this process, so they go straight
	// to the hub; worker job events still travel over redis pub/sub.
	rec := recorder.New(sessionRepo, recorder.Options{
		AutoSaveInterval: cfg.AutoSaveInterval,
		PromptThreshold:  cfg.PromptThreshold,
		OutboxCapacity:   cfg.OutboxCapacity,
		ShareBaseURL:     cfg.FrontendURL,
		Publish: func(userID uuid.UUID, msg models.WSMessage) {
			wsHub.SendToUser(userID, msg)
		},
	})
	log.Println("✓ Recorder initialized")

	// ──── Initialize Handlers ────
	authHandler := handlers.NewAuthHandler(authService)
	sessionHandler := handlers.NewSessionHandler(rec, sessionRepo, jobRepo, redisClients.Queue)
	trackHandler := handlers.NewTrackHandler(rec)
	analysisHandler := handlers.NewAnalysisHandler(analysisService, rec)
	practiceHandler := handlers.NewPracticeHandler(practiceRepo, jobRepo, redisClients.Queue)

	// ──── Step 8: Start Job Worker Pool ────
	workerPool := worker.NewPool(
		redisClients.Queue,
		analysisService,
		jobRepo,
		sessionRepo,
		practiceRepo,
		cfg.WorkerCount,
	)
	workerPool.Start()
	log.Printf("✓ Worker pool started (%d goroutines)", cfg.WorkerCount)

	// ──── Step 9: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		authHandler,
		sessionHandler,
		trackHandler,
		analysisHandler,
		practiceHandler,
		wsHub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")

		// In-flight requests must finish before the recorder's outbox
		// stops accepting writes.
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)

		workerPool.Stop()
		rec.Stop()
	}()

	log.Printf("✓ Palace Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
