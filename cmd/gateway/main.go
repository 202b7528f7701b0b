// Package main is the entry point for the logbook session gateway. It loads
// configuration, connects the audit store and rate limiter backends, wires
// the per-browser session machinery, and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maintlog/logbook-gateway/internal/api"
	"github.com/maintlog/logbook-gateway/internal/api/metrics"
	gwmiddleware "github.com/maintlog/logbook-gateway/internal/api/middleware"
	"github.com/maintlog/logbook-gateway/internal/core/ports"
	"github.com/maintlog/logbook-gateway/internal/core/service"
	mongodb "github.com/maintlog/logbook-gateway/internal/infrastructure/db/mongo"
	redisdb "github.com/maintlog/logbook-gateway/internal/infrastructure/db/redis"
	"github.com/maintlog/logbook-gateway/internal/infrastructure/queue"
	"github.com/maintlog/logbook-gateway/internal/infrastructure/sessions"
	"github.com/maintlog/logbook-gateway/internal/pkg/config"
	"github.com/maintlog/logbook-gateway/internal/upstream"
	"github.com/maintlog/logbook-gateway/pkg/logger"
)

func main() {
	cfg := config.Load()

	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Str("upstream", cfg.Upstream.BaseURL).
		Msg("starting logbook gateway")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Audit store (MongoDB) ---
	mongoClient, mongoDB, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("mongodb connection failed")
	}
	defer func() {
		_ = mongoClient.Disconnect(context.Background())
	}()

	// --- Rate limiter backend (Redis) ---
	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer rdb.Close()

	// --- Audit trail pipeline ---
	auditRepo := mongodb.NewAuditRepository(mongoDB)
	dispatcher := queue.NewDispatcher(0, auditRepo, log)
	dispatcher.Start(ctx)

	// --- Per-browser session machinery ---
	factory := func(sessionID string) (ports.SessionStore, *upstream.Client, error) {
		client, err := upstream.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout, log)
		if err != nil {
			return nil, nil, err
		}
		store := service.NewSessionStore(client, dispatcher, log, sessionID, cfg.LoginPath)
		return store, client, nil
	}
	registry := sessions.NewRegistry(factory, cfg.Sessions.TTL, log, func(n int) {
		metrics.SessionsActive.Set(float64(n))
	})
	registry.Start(ctx)

	resolver := gwmiddleware.NewSessionResolver(registry, cfg.JWTSecret, cfg.Sessions.TTL, cfg.LoginPath, log)
	limiter := redisdb.NewLoginLimiter(rdb, cfg.Limiter.Window, cfg.Limiter.MaxAttempts)

	publicClient, err := upstream.NewPublicClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout, log)
	if err != nil {
		log.Fatal().Err(err).Msg("public upstream client failed")
	}

	e := api.NewRouter(api.Dependencies{
		Log:          log,
		Resolver:     resolver,
		Limiter:      limiter,
		AuditRepo:    auditRepo,
		PublicClient: publicClient,
		Mongo:        mongoDB,
		Redis:        rdb,
		LoginPath:    cfg.LoginPath,
	})

	// --- Graceful shutdown: drain in-flight requests on SIGINT/SIGTERM ---
	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down gateway")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("forced shutdown")
		}
	}()

	if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server stopped unexpectedly")
	}
	os.Exit(0)
}
