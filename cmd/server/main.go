package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/scottschroeder/storyestimate/internal/config"
	"github.com/scottschroeder/storyestimate/internal/server"
	"github.com/scottschroeder/storyestimate/internal/storage/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	gin.SetMode(gin.ReleaseMode)

	opts := []server.Option{
		server.WithTokenCost(cfg.TokenHashCost),
		server.WithRateLimit(cfg.RateLimitMax, cfg.RateLimitWindow),
		server.WithCORSOrigin(cfg.CORSOrigin),
		server.WithAccessLog(cfg.AccessLog),
	}

	var closeStore func() error
	switch cfg.Backend {
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			log.Fatalf("Failed to connect to Redis at %s: %v", cfg.RedisAddr, err)
		}
		log.Printf("Connected to Redis at %s", cfg.RedisAddr)
		opts = append(opts, server.WithRedis(rdb))
		closeStore = rdb.Close
	case config.BackendSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("Failed to open SQLite database %s: %v", cfg.SQLitePath, err)
		}
		log.Printf("Opened SQLite database %s", cfg.SQLitePath)
		opts = append(opts, server.WithSQLite(db))
		closeStore = db.Close
	default:
		log.Printf("Using in-memory storage; data is lost on restart")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg.ListenAddr, opts...)
	go func() {
		log.Printf("Starting StoryEstimates server on %s", cfg.ListenAddr)
		if err := srv.Run(); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}
	if closeStore != nil {
		if err := closeStore(); err != nil {
			log.Printf("Failed to close store: %v", err)
		}
	}
	log.Printf("Server stopped")
}
