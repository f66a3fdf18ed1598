package main

import (
	"context"                         // context package is needed for Redis pings and shutdown
	"errors"                          // Error matching
	"marketplace/internal/api"        // Custom package for API handlers
	"marketplace/internal/config"     // Custom package for configuration
	"marketplace/internal/db"         // Database connection
	"marketplace/internal/events"     // Kafka event publisher
	"marketplace/internal/middleware" // Custom package for middleware
	"marketplace/internal/utils"      // Redis cache
	"net/http"                        // HTTP server
	"os"                              // Signals
	"os/signal"                       // Graceful shutdown
	"syscall"                         // SIGTERM
	"time"                            // Timeouts

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if cfg.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}

	if cfg.JWTSecret == "" {
		logrus.Fatal("JWT_SECRET must be set")
	}

	// Connect to the database
	gdb, err := db.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}
	if cfg.DBDriver == "sqlite" {
		// Embedded databases are migrated on start
		if err := db.Migrate(gdb); err != nil {
			logrus.Fatalf("failed to migrate DB: %v", err)
		}
	}

	// Setup Redis client, caching is disabled without REDIS_ADDR
	var rdb redis.UniversalClient
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr, // Redis server address
			Password: cfg.RedisPass, // Redis password
			DB:       cfg.RedisDB,   // Redis database number
		})
		// Test Redis connection
		if _, err := client.Ping(context.Background()).Result(); err != nil {
			logrus.Fatalf("failed to connect to Redis: %v", err)
		}
		defer client.Close()
		rdb = client
	} else {
		logrus.Warn("REDIS_ADDR not set, caching disabled")
	}

	// Domain events, disabled without KAFKA_BROKERS
	pub := events.New(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer func() {
		if err := pub.Close(); err != nil {
			logrus.WithError(err).Error("failed to close event publisher")
		}
	}()

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup Gin
	r := gin.New() // Gin router instance
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(), middleware.Metrics())

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	api.RegisterRoutes(r, api.Deps{
		DB:         gdb,
		Cache:      utils.NewCache(rdb, cfg.CacheTTL),
		Events:     pub,
		JWTSecret:  cfg.JWTSecret,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logrus.WithField("port", cfg.AppPort).Info("Server running") // Log server start
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("server shutdown failed: %v", err)
	}
}
