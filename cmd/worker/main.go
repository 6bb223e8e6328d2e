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
	"github.com/dunamismax/stylize/internal/storage"
	"github.com/dunamismax/stylize/internal/store"
	"github.com/dunamismax/stylize/internal/telemetry"
	"github.com/dunamismax/stylize/internal/transform"
	"github.com/dunamismax/stylize/internal/upload"
	"github.com/dunamismax/stylize/internal/webhook"
	"github.com/dunamismax/stylize/internal/worker"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := log.New(os.Stdout, "[worker] ", log.LstdFlags|log.Lmsgprefix)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  "stylize-worker",
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

	objects, err := storage.NewClient(ctx, storage.Config{
		Endpoint:   cfg.Storage.Endpoint,
		Access:     cfg.Storage.AccessKey,
		Secret:     cfg.Storage.SecretKey,
		Bucket:     cfg.Storage.Bucket,
		UseSSL:     cfg.Storage.UseSSL,
		PresignTTL: cfg.Storage.PresignTTL,
	})
	if err != nil {
		logger.Fatalf("storage setup failed: %v", err)
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		logger.Fatalf("ensure bucket %s failed: %v", objects.Bucket(), err)
	}

	backend, err := transform.NewClient(transform.Config{
		BaseURL: cfg.Backend.URL,
		Timeout: cfg.Backend.Timeout,
	})
	if err != nil {
		logger.Fatalf("backend client setup failed: %v", err)
	}

	normalizer, err := upload.NewNormalizer(cfg.Upload.MaxBytes, cfg.Upload.MaxSide, cfg.Upload.MaxPixels)
	if err != nil {
		logger.Fatalf("normalizer setup failed: %v", err)
	}

	webhookClient := webhook.NewClient(webhook.Config{
		SigningSecret:  cfg.Webhook.SigningSecret,
		Timeout:        cfg.Webhook.Timeout,
		MaxAttempts:    cfg.Webhook.MaxAttempts,
		InitialBackoff: cfg.Webhook.InitialBackoff,
		MaxBackoff:     cfg.Webhook.MaxBackoff,
	})

	srv, err := worker.NewServer(
		logger,
		cfg.Queue,
		cfg.Worker,
		objects,
		backend,
		normalizer,
		webhookClient,
		store.NewMemoryJobStore(),
	)
	if err != nil {
		logger.Fatalf("worker setup failed: %v", err)
	}

	metricsServer := &http.Server{
		Addr:              cfg.Worker.MetricsAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Printf("metrics listening on %s", cfg.Worker.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("metrics server failed: %v", err)
		}
	}()

	logger.Printf(
		"starting worker concurrency=%d max_active_jobs=%d queue=%s redis=%s backend=%s",
		cfg.Worker.Concurrency,
		cfg.Worker.MaxActiveJobs,
		cfg.Queue.Name,
		cfg.Queue.RedisAddr,
		cfg.Backend.URL,
	)

	if err := srv.Start(); err != nil {
		logger.Fatalf("worker failed: %v", err)
	}
	<-ctx.Done()

	logger.Println("shutting down")
	srv.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("metrics shutdown failed: %v", err)
	}
}
