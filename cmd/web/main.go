package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dunamismax/stylize/internal/config"
	"github.com/dunamismax/stylize/internal/form"
	"github.com/dunamismax/stylize/internal/ratelimit"
	"github.com/dunamismax/stylize/internal/store"
	"github.com/dunamismax/stylize/internal/telemetry"
	"github.com/dunamismax/stylize/internal/transform"
	"github.com/dunamismax/stylize/internal/upload"
	"github.com/dunamismax/stylize/internal/web"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := log.New(os.Stdout, "[web] ", log.LstdFlags|log.Lmsgprefix)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  "stylize-web",
		Exporter:     cfg.Trace.Exporter,
		OTLPEndpoint: cfg.Trace.OTLPEndpoint,
		OTLPInsecure: cfg.Trace.OTLPInsecure,
	}, logger)
	if err != nil {
		logger.Fatalf("tracing setup failed: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Printf("tracing shutdown error: %v", err)
		}
	}()

	if err := upload.Startup(); err != nil {
		logger.Fatalf("image runtime startup failed: %v", err)
	}
	defer upload.Shutdown()

	normalizer, err := upload.NewNormalizer(cfg.Upload.MaxBytes, cfg.Upload.MaxSide, cfg.Upload.MaxPixels)
	if err != nil {
		logger.Fatalf("normalizer setup failed: %v", err)
	}

	backend, err := transform.NewClient(transform.Config{
		BaseURL: cfg.Backend.URL,
		Timeout: cfg.Backend.Timeout,
	})
	if err != nil {
		logger.Fatalf("backend client setup failed: %v", err)
	}

	sessions := store.NewSessionStore(cfg.Web.SessionTTL, func() *form.Controller {
		return form.NewController(backend)
	})

	var limiter web.RateLimiter
	if cfg.RateLimit.Enabled {
		redisClient := redis.NewClient(cfg.Queue.RedisOptions())
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Printf("redis client close error: %v", err)
			}
		}()

		bucket, err := ratelimit.NewRedisTokenBucket(redisClient, ratelimit.Config{
			Capacity: cfg.RateLimit.Capacity,
			Window:   cfg.RateLimit.Window,
		})
		if err != nil {
			logger.Fatalf("rate limiter setup failed: %v", err)
		}
		limiter = bucket
	}

	app, err := web.NewServer(web.Config{
		Logger:          logger,
		Sessions:        sessions,
		Normalizer:      normalizer,
		RateLimiter:     limiter,
		CORSOrigins:     cfg.Web.CORSOrigins,
		MaxRequestBytes: cfg.Web.MaxRequestBytes,
	})
	if err != nil {
		logger.Fatalf("web server setup failed: %v", err)
	}
	go app.Run(ctx)

	httpServer := &http.Server{
		Addr:              cfg.Web.Addr,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Submit waits on the backend.
		WriteTimeout: cfg.Backend.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s backend=%s", cfg.Web.Addr, cfg.Backend.URL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Println("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}
