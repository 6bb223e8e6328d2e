package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/dunamismax/stylize/internal/config"
	"github.com/dunamismax/stylize/internal/domain"
	"github.com/dunamismax/stylize/internal/form"
	"github.com/dunamismax/stylize/internal/function"
	"github.com/dunamismax/stylize/internal/queue"
	"github.com/dunamismax/stylize/internal/store"
	"github.com/dunamismax/stylize/internal/upload"
	"github.com/dunamismax/stylize/internal/webhook"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type objectStore interface {
	ReadObject(ctx context.Context, objectKey string) ([]byte, error)
	WriteObject(ctx context.Context, objectKey string, data []byte, contentType string) error
	PresignedGetURL(ctx context.Context, objectKey string) (string, error)
}

type webhookSender interface {
	SendJobEvent(ctx context.Context, endpoint string, ev webhook.JobEvent) error
}

type Server struct {
	logger      *log.Logger
	server      *asynq.Server
	sem         chan struct{}
	objects     objectStore
	transformer form.Transformer
	normalizer  *upload.Normalizer
	webhook     webhookSender
	jobs        *store.MemoryJobStore
	metrics     *metrics
	tracer      trace.Tracer
}

func NewServer(
	logger *log.Logger,
	queueCfg config.QueueConfig,
	workerCfg config.WorkerConfig,
	objects objectStore,
	transformer form.Transformer,
	normalizer *upload.Normalizer,
	webhookClient webhookSender,
	jobs *store.MemoryJobStore,
) (*Server, error) {
	if objects == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if transformer == nil {
		return nil, fmt.Errorf("transformer is required")
	}
	if jobs == nil {
		jobs = store.NewMemoryJobStore()
	}

	s := &Server{
		logger: logger,
		server: asynq.NewServer(
			queueCfg.RedisClientOpt(),
			asynq.Config{
				Concurrency: workerCfg.Concurrency,
				Queues: map[string]int{
					queueCfg.Name: 1,
				},
				LogLevel: asynq.InfoLevel,
				ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
					logger.Printf("task failed type=%s err=%v", task.Type(), err)
				}),
			},
		),
		sem:         make(chan struct{}, max(1, workerCfg.MaxActiveJobs)),
		objects:     objects,
		transformer: transformer,
		normalizer:  normalizer,
		webhook:     webhookClient,
		jobs:        jobs,
		metrics:     newMetrics(),
		tracer:      otel.Tracer("stylize/worker"),
	}
	return s, nil
}

// Start begins processing tasks in the background. Call Shutdown to stop.
func (s *Server) Start() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeStylizeImage, s.handleStylizeImage)
	return s.server.Start(mux)
}

func (s *Server) Shutdown() {
	s.server.Shutdown()
}

// Handler serves metrics, health and in-memory job status.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "jobs": s.jobs.Counts()})
	})
	mux.HandleFunc("GET /jobs/{id}", s.handleGetJob)
	return mux
}

type jobResponse struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	Function   string    `json:"function"`
	SourceKey  string    `json:"source_key"`
	OutputKey  string    `json:"output_key"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobs.Get(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return
	}
	writeJSON(w, http.StatusOK, jobResponse{
		ID:         job.ID,
		Status:     job.Status,
		Function:   string(job.Function),
		SourceKey:  job.SourceKey,
		OutputKey:  job.OutputKey,
		HTTPStatus: job.HTTPStatus,
		Error:      job.Error,
		CreatedAt:  job.CreatedAt,
		UpdatedAt:  job.UpdatedAt,
	})
}

func (s *Server) handleStylizeImage(ctx context.Context, task *asynq.Task) error {
	startedAt := time.Now()
	outcome := domain.JobStatusFailed

	payload, err := queue.ParseStylizeImagePayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}

	ctx, span := s.tracer.Start(ctx, "worker.stylize_image", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("job.id", payload.JobID),
		attribute.String("job.function", payload.Function),
		attribute.String("job.source_key", payload.SourceKey),
	)
	defer span.End()
	defer func() {
		s.metrics.jobDuration.WithLabelValues(payload.Function, outcome).Observe(time.Since(startedAt).Seconds())
		s.metrics.jobsTotal.WithLabelValues(payload.Function, outcome).Inc()
	}()

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.metrics.activeJobs.Inc()
	defer func() {
		<-s.sem
		s.metrics.activeJobs.Dec()
	}()

	s.logger.Printf(
		"Working... job_id=%s function=%s source_key=%s options=%d",
		payload.JobID,
		payload.Function,
		payload.SourceKey,
		len(payload.Options),
	)
	s.trackJob(payload)

	result, err := s.stylize(ctx, payload)
	if err != nil {
		status := 0
		var reqErr *form.RequestError
		if errors.As(err, &reqErr) {
			status = reqErr.Status
			s.metrics.backendFailures.WithLabelValues(strconv.Itoa(status)).Inc()
		}

		s.updateJob(payload.JobID, func(j *domain.Job) {
			j.Status = domain.JobStatusFailed
			j.HTTPStatus = status
			j.Error = err.Error()
		})
		span.RecordError(err)
		span.SetStatus(codes.Error, "stylize failed")

		_ = s.dispatchWebhook(ctx, payload, webhook.JobEvent{
			JobID:      payload.JobID,
			Status:     domain.JobStatusFailed,
			Function:   payload.Function,
			SourceKey:  payload.SourceKey,
			HTTPStatus: status,
			Error:      form.Alert(err),
			FinishedAt: time.Now().UTC(),
		})
		// The transform is never resent, so the task must not be retried either.
		return fmt.Errorf("stylize job %s: %v: %w", payload.JobID, err, asynq.SkipRetry)
	}

	s.logger.Printf("Stylized job_id=%s output_key=%s bytes=%d", payload.JobID, payload.OutputKey, len(result.Data))
	s.updateJob(payload.JobID, func(j *domain.Job) {
		j.Status = domain.JobStatusSucceeded
	})

	resultURL, err := s.objects.PresignedGetURL(ctx, payload.OutputKey)
	if err != nil {
		s.logger.Printf("presign result failed job_id=%s err=%v", payload.JobID, err)
	}

	if err := s.dispatchWebhook(ctx, payload, webhook.JobEvent{
		JobID:      payload.JobID,
		Status:     domain.JobStatusSucceeded,
		Function:   payload.Function,
		SourceKey:  payload.SourceKey,
		OutputKey:  payload.OutputKey,
		ResultURL:  resultURL,
		FinishedAt: time.Now().UTC(),
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "webhook dispatch failed")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	outcome = domain.JobStatusSucceeded
	span.SetStatus(codes.Ok, "stylized")
	return nil
}

// stylize drives a fresh form controller the same way the web page does.
func (s *Server) stylize(ctx context.Context, payload queue.StylizeImagePayload) (form.Result, error) {
	src, err := upload.FromObject(ctx, s.objects, payload.SourceKey)
	if err != nil {
		return form.Result{}, fmt.Errorf("load source: %w", err)
	}
	if s.normalizer != nil {
		before := src.Size()
		src, err = s.normalizer.Normalize(ctx, src)
		if err != nil {
			return form.Result{}, err
		}
		if src.Size() != before {
			s.metrics.downscaledSources.Inc()
		}
	}

	c := form.NewController(s.transformer)
	schema, err := c.Select(payload.Function)
	if err != nil {
		return form.Result{}, err
	}
	inputs, err := function.InputsFor(schema, payload.Options)
	if err != nil {
		return form.Result{}, &form.ValidationError{Err: err}
	}
	if err := c.ConfirmOptions(inputs); err != nil {
		return form.Result{}, err
	}
	if err := c.Attach(src); err != nil {
		return form.Result{}, err
	}

	s.metrics.sourceBytesTotal.Add(float64(src.Size()))
	result, err := c.Submit(ctx)
	if err != nil {
		return form.Result{}, err
	}

	if err := s.objects.WriteObject(ctx, payload.OutputKey, result.Data, result.ContentType); err != nil {
		return form.Result{}, fmt.Errorf("store result: %w", err)
	}
	s.metrics.resultBytesTotal.Add(float64(len(result.Data)))
	return result, nil
}

func (s *Server) trackJob(payload queue.StylizeImagePayload) {
	if _, ok := s.jobs.Get(payload.JobID); !ok {
		s.jobs.Create(domain.Job{
			ID:         payload.JobID,
			Status:     domain.JobStatusQueued,
			Function:   function.Function(payload.Function),
			SourceKey:  payload.SourceKey,
			OutputKey:  payload.OutputKey,
			WebhookURL: payload.WebhookURL,
		})
	}
	s.updateJob(payload.JobID, func(j *domain.Job) {
		j.Status = domain.JobStatusProcessing
	})
}

func (s *Server) updateJob(jobID string, fn func(*domain.Job)) {
	if _, err := s.jobs.Update(jobID, fn); err != nil {
		s.logger.Printf("job status update failed job_id=%s err=%v", jobID, err)
	}
}

func (s *Server) dispatchWebhook(ctx context.Context, payload queue.StylizeImagePayload, ev webhook.JobEvent) error {
	if payload.WebhookURL == "" || s.webhook == nil {
		return nil
	}

	if err := s.webhook.SendJobEvent(ctx, payload.WebhookURL, ev); err != nil {
		s.logger.Printf("webhook delivery failed job_id=%s status=%s err=%v", payload.JobID, ev.Status, err)
		return fmt.Errorf("dispatch webhook: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
