package transform

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/dunamismax/stylize/internal/form"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// FieldImage is the multipart field the backend reads the upload from.
const FieldImage = "image"

const (
	defaultTimeout          = 2 * time.Minute
	defaultMaxResponseBytes = 64 << 20
	maxErrorMessageBytes    = 512
)

type Config struct {
	BaseURL          string
	Timeout          time.Duration
	MaxResponseBytes int64
}

type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("transform backend returned status=%d", e.Status)
	}
	return fmt.Sprintf("transform backend returned status=%d: %s", e.Status, e.Message)
}

func (e *StatusError) HTTPStatus() int {
	return e.Status
}

// Client posts uploads to the stylize backend. It never retries.
type Client struct {
	baseURL          *url.URL
	httpClient       *http.Client
	maxResponseBytes int64
	tracer           trace.Tracer
}

func NewClient(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, fmt.Errorf("transform backend url is required")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse transform backend url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("transform backend url must be http or https: %s", raw)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	maxResponse := cfg.MaxResponseBytes
	if maxResponse <= 0 {
		maxResponse = defaultMaxResponseBytes
	}

	return &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxResponseBytes: maxResponse,
		tracer:           otel.Tracer("stylize/transform"),
	}, nil
}

// Endpoint returns the URL a request for this snapshot is sent to.
func (c *Client) Endpoint(req form.Request) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + req.Function.Path()
	u.RawQuery = req.Options.Encode()
	return u.String()
}

func (c *Client) Apply(ctx context.Context, req form.Request) (form.Result, error) {
	ctx, span := c.tracer.Start(ctx, "POST "+req.Function.Path(), trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("stylize.function", string(req.Function)),
		attribute.String("stylize.upload.channel", string(req.Upload.Channel)),
		attribute.Int("stylize.upload.bytes", req.Upload.Size()),
	)

	result, err := c.apply(ctx, req, span)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return form.Result{}, err
	}
	return result, nil
}

func (c *Client) apply(ctx context.Context, req form.Request, span trace.Span) (form.Result, error) {
	body, contentType, err := multipartBody(req)
	if err != nil {
		return form.Result{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(req), body)
	if err != nil {
		return form.Result{}, fmt.Errorf("build transform request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return form.Result{}, fmt.Errorf("send transform request: %w", err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorMessageBytes))
		return form.Result{}, &StatusError{
			Status:  resp.StatusCode,
			Message: strings.TrimSpace(string(msg)),
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseBytes+1))
	if err != nil {
		return form.Result{}, fmt.Errorf("read transform response: %w", err)
	}
	if int64(len(data)) > c.maxResponseBytes {
		return form.Result{}, fmt.Errorf("transform response exceeds %d bytes", c.maxResponseBytes)
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(data)
	}

	return form.Result{
		Function:    req.Function,
		ContentType: ct,
		Data:        data,
	}, nil
}

func multipartBody(req form.Request) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, FieldImage, req.Upload.Name))
	ct := req.Upload.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	header.Set("Content-Type", ct)

	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create multipart part: %w", err)
	}
	if _, err := part.Write(req.Upload.Data); err != nil {
		return nil, "", fmt.Errorf("write multipart part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}
