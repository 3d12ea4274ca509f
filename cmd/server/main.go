package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dilemma-game/internal/auth"
	"github.com/dilemma-game/internal/config"
	"github.com/dilemma-game/internal/directory"
	"github.com/dilemma-game/internal/game"
	"github.com/dilemma-game/internal/handler"
	"github.com/dilemma-game/internal/kafka"
	"github.com/dilemma-game/internal/room"
	"github.com/dilemma-game/internal/session"
	"github.com/dilemma-game/internal/stats"
	"github.com/dilemma-game/internal/store"
	"github.com/dilemma-game/internal/websocket"
	"github.com/dilemma-game/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the shared store on Redis, wrapped with the retry policy
	logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
	redisStore, err := store.NewRedis(&cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisStore.Close()
	sharedStore := store.WithRetry(redisStore, &cfg.Store, logger)
	logger.Info("connected to Redis")

	// Initialize PostgreSQL statistics
	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	statsRepo, err := stats.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer statsRepo.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := statsRepo.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka pipeline for result events
	var (
		kafkaProducer *kafka.Producer
		kafkaConsumer *kafka.Consumer
	)
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka pipeline",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		kafkaProducer, err = kafka.NewProducer(&cfg.Kafka, logger)
		if err != nil {
			logger.Warn("failed to create Kafka producer, applying results directly", "error", err)
			kafkaProducer = nil
		}
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, statsRepo, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
			kafkaConsumer = nil
		} else {
			if err := kafkaConsumer.Start(); err != nil {
				logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
				kafkaConsumer = nil
			} else {
				logger.Info("Kafka consumer started successfully")
			}
		}
		if kafkaConsumer == nil && kafkaProducer != nil {
			// Without a consumer the events would never reach PostgreSQL
			kafkaProducer.Close()
			kafkaProducer = nil
		}
	}

	var publisher stats.EventPublisher
	if kafkaProducer != nil {
		publisher = kafkaProducer
	}
	recorder := stats.NewRecorder(statsRepo, publisher, logger)

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	// Initialize services
	playerDir := directory.New(sharedStore, &cfg.Presence, logger)
	authService := auth.New(playerDir, logger)
	gameEngine := game.New(sharedStore, playerDir, recorder, &cfg.Game, logger)
	roomManager := room.New(sharedStore, playerDir, gameEngine, &cfg.Room, logger)
	sessionManager := session.NewManager(gameEngine, playerDir, wsHub, &cfg.Session, logger)
	defer sessionManager.CloseAll()

	// Start background workers
	reaper := worker.NewReaper(roomManager, &cfg.Room, logger)
	if err := reaper.Start(ctx); err != nil {
		logger.Error("failed to start room reaper", "error", err)
		os.Exit(1)
	}

	heartbeat := worker.NewHeartbeatWorker(wsHub, playerDir, &cfg.Presence, logger)
	if err := heartbeat.Start(ctx); err != nil {
		logger.Error("failed to start heartbeat worker", "error", err)
		os.Exit(1)
	}

	roomWatcher := worker.NewRoomWatcher(sharedStore, wsHub, logger)
	if err := roomWatcher.Start(); err != nil {
		logger.Error("failed to start room watcher", "error", err)
		os.Exit(1)
	}

	// Initialize HTTP handler
	httpHandler := handler.NewHandler(
		authService,
		playerDir,
		roomManager,
		gameEngine,
		sessionManager,
		statsRepo,
		wsHub,
		logger,
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		logger.Info("WebSocket endpoint available at /ws")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop WebSocket hub
	wsHub.Stop()

	// Stop Kafka pipeline
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			logger.Error("failed to close Kafka producer", "error", err)
		}
	}

	// Stop background workers
	if err := roomWatcher.Stop(); err != nil {
		logger.Error("failed to stop room watcher", "error", err)
	}
	if err := heartbeat.Stop(); err != nil {
		logger.Error("failed to stop heartbeat worker", "error", err)
	}
	if err := reaper.Stop(); err != nil {
		logger.Error("failed to stop room reaper", "error", err)
	}

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
}
