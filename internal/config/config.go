package config

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

type Config struct {
	Web       WebConfig
	Backend   BackendConfig
	Upload    UploadConfig
	Queue     QueueConfig
	Worker    WorkerConfig
	Storage   StorageConfig
	RateLimit RateLimitConfig
	Trace     TraceConfig
	Webhook   WebhookConfig
}

type WebConfig struct {
	Addr        string
	SessionTTL  time.Duration
	CORSOrigins []string
	// MaxRequestBytes caps an upload request body. It may exceed
	// UploadConfig.MaxBytes because oversized images are downscaled.
	MaxRequestBytes int64
}

type BackendConfig struct {
	URL     string
	Timeout time.Duration
}

type UploadConfig struct {
	MaxBytes  int
	MaxSide   int
	MaxPixels int
}

type QueueConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Name          string
	TaskTimeout   time.Duration
}

func (q QueueConfig) RedisClientOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     q.RedisAddr,
		Password: q.RedisPassword,
		DB:       q.RedisDB,
	}
}

func (q QueueConfig) RedisOptions() *redis.Options {
	return &redis.Options{
		Addr:     q.RedisAddr,
		Password: q.RedisPassword,
		DB:       q.RedisDB,
	}
}

type WorkerConfig struct {
	Concurrency   int
	MaxActiveJobs int
	MetricsAddr   string
}

type StorageConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	UseSSL     bool
	PresignTTL time.Duration
}

type RateLimitConfig struct {
	Enabled  bool
	Capacity int
	Window   time.Duration
}

type TraceConfig struct {
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
}

type WebhookConfig struct {
	SigningSecret  string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func Load() Config {
	defaultWorkerSlots := max(1, runtime.NumCPU()/2)

	return Config{
		Web: WebConfig{
			Addr:            env("STYLIZE_WEB_ADDR", ":8080"),
			SessionTTL:      envDuration("STYLIZE_SESSION_TTL", 30*time.Minute),
			CORSOrigins:     envList("STYLIZE_CORS_ORIGINS", nil),
			MaxRequestBytes: int64(envInt("STYLIZE_MAX_REQUEST_BYTES", 64<<20)),
		},
		Backend: BackendConfig{
			URL:     env("STYLIZE_BACKEND_URL", "http://localhost:8000"),
			Timeout: envDuration("STYLIZE_BACKEND_TIMEOUT", 2*time.Minute),
		},
		Upload: UploadConfig{
			MaxBytes:  envInt("STYLIZE_MAX_UPLOAD_BYTES", 15_000_000),
			MaxSide:   envInt("STYLIZE_MAX_SIDE", 4096),
			MaxPixels: envInt("STYLIZE_MAX_PIXELS", 64_000_000),
		},
		Queue: QueueConfig{
			RedisAddr:     env("REDIS_ADDR", "localhost:6379"),
			RedisPassword: env("REDIS_PASSWORD", ""),
			RedisDB:       envInt("REDIS_DB", 0),
			Name:          env("ASYNC_QUEUE", "default"),
			TaskTimeout:   envDuration("ASYNC_TASK_TIMEOUT", 3*time.Minute),
		},
		Worker: WorkerConfig{
			Concurrency:   envInt("WORKER_CONCURRENCY", max(2, runtime.NumCPU())),
			MaxActiveJobs: envInt("WORKER_MAX_ACTIVE_JOBS", defaultWorkerSlots),
			MetricsAddr:   env("WORKER_METRICS_ADDR", ":9091"),
		},
		Storage: StorageConfig{
			Endpoint:   env("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey:  env("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey:  env("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:     env("MINIO_BUCKET", "stylize"),
			UseSSL:     envBool("MINIO_USE_SSL", false),
			PresignTTL: envDuration("MINIO_PRESIGN_TTL", time.Hour),
		},
		RateLimit: RateLimitConfig{
			Enabled:  envBool("RATE_LIMIT_ENABLED", true),
			Capacity: envInt("RATE_LIMIT_CAPACITY", 30),
			Window:   envDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Trace: TraceConfig{
			Exporter:     env("TRACE_EXPORTER", "none"),
			OTLPEndpoint: env("TRACE_OTLP_ENDPOINT", ""),
			OTLPInsecure: envBool("TRACE_OTLP_INSECURE", true),
		},
		Webhook: WebhookConfig{
			SigningSecret:  env("WEBHOOK_SIGNING_SECRET", ""),
			Timeout:        envDuration("WEBHOOK_TIMEOUT", 10*time.Second),
			MaxAttempts:    envInt("WEBHOOK_MAX_ATTEMPTS", 3),
			InitialBackoff: envDuration("WEBHOOK_INITIAL_BACKOFF", time.Second),
			MaxBackoff:     envDuration("WEBHOOK_MAX_BACKOFF", 10*time.Second),
		},
	}
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

// envList splits a comma separated value and drops empty entries.
func envList(key string, fallback []string) []string {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
