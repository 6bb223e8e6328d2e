package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/dunamismax/stylize/internal/form"
	"github.com/dunamismax/stylize/internal/function"
	"github.com/dunamismax/stylize/internal/id"
	"github.com/dunamismax/stylize/internal/store"
	"github.com/dunamismax/stylize/internal/upload"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	SessionCookie = "stylize_session"

	// defaultMaxRequestBytes leaves room for images the normalizer can
	// still shrink under the backend limit.
	defaultMaxRequestBytes = 64 << 20
	multipartMemory        = 32 << 20
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

type Config struct {
	Logger          *log.Logger
	Sessions        *store.SessionStore
	Normalizer      *upload.Normalizer
	RateLimiter     RateLimiter
	CORSOrigins     []string
	MaxRequestBytes int64
}

type Server struct {
	logger          *log.Logger
	sessions        *store.SessionStore
	normalizer      *upload.Normalizer
	rateLimiter     RateLimiter
	corsOrigins     []string
	maxRequestBytes int64
	metrics         *metrics
	tracer          trace.Tracer
	page            *template.Template
	mux             *http.ServeMux
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	if cfg.MaxRequestBytes <= 0 {
		cfg.MaxRequestBytes = defaultMaxRequestBytes
	}

	page, err := template.New("index.html.tmpl").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		logger:          cfg.Logger,
		sessions:        cfg.Sessions,
		normalizer:      cfg.Normalizer,
		rateLimiter:     cfg.RateLimiter,
		corsOrigins:     cfg.CORSOrigins,
		maxRequestBytes: cfg.MaxRequestBytes,
		metrics:         newMetrics(cfg.Sessions),
		tracer:          otel.Tracer("stylize/web"),
		page:            page,
		mux:             http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = s.withRateLimit(h)
	h = s.withTracing(h)
	h = s.metrics.withHTTPMetrics(h)
	h = s.withCORS(h)
	return h
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /select", s.handleSelect)
	s.mux.HandleFunc("POST /options", s.handleOptions)
	s.mux.HandleFunc("POST /upload", s.handleUpload)
	s.mux.HandleFunc("POST /submit", s.handleSubmit)
	s.mux.HandleFunc("GET /results/{id}", s.handleResult)
	s.mux.HandleFunc("GET /functions", s.handleFunctions)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.sessions.Len()})
}

func (s *Server) handleFunctions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"functions": function.Schemas()})
}

type pageData struct {
	Placeholder string
	Functions   []function.Schema
	Selected    function.Function
	Schema      function.Schema
	Options     map[string]string
	Pending     *upload.Upload
	State       form.State
	ResultURL   string
	Alert       string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	snap := sess.Controller.Snapshot()

	data := pageData{
		Placeholder: function.Placeholder,
		Functions:   function.Schemas(),
		Selected:    snap.Function,
		Schema:      snap.Schema,
		Options:     snap.Options.Raw(),
		Pending:     snap.Pending,
		State:       snap.Output.State,
		Alert:       sess.TakeAlert(),
	}
	if resultID := sess.CurrentResultID(); resultID != "" && snap.Output.State == form.StateImage {
		data.ResultURL = "/results/" + resultID
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := s.page.Execute(w, data); err != nil {
		s.logger.Printf("render page failed err=%v", err)
	}
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if err := r.ParseForm(); err != nil {
		s.fail(w, r, sess, &form.ValidationError{Err: err})
		return
	}

	if _, err := sess.Controller.Select(r.PostForm.Get("function")); err != nil {
		s.fail(w, r, sess, err)
		return
	}
	s.done(w, r)
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if err := r.ParseForm(); err != nil {
		s.fail(w, r, sess, &form.ValidationError{Err: err})
		return
	}

	schema, _ := sess.Controller.Form()
	if err := sess.Controller.ConfirmOptions(inputsFromForm(schema, r.PostForm)); err != nil {
		s.fail(w, r, sess, err)
		return
	}
	s.done(w, r)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)

	channel, u, err := s.readUpload(w, r)
	if err != nil {
		s.metrics.uploadsTotal.WithLabelValues(string(channel), "rejected").Inc()
		s.fail(w, r, sess, &form.ValidationError{Err: err})
		return
	}

	if s.normalizer != nil {
		u, err = s.normalizer.Normalize(r.Context(), u)
		if err != nil {
			s.metrics.uploadsTotal.WithLabelValues(string(channel), "rejected").Inc()
			s.fail(w, r, sess, &form.ValidationError{Err: err})
			return
		}
	}

	if err := sess.Controller.Attach(u); err != nil {
		s.metrics.uploadsTotal.WithLabelValues(string(channel), "rejected").Inc()
		s.fail(w, r, sess, err)
		return
	}
	s.metrics.uploadsTotal.WithLabelValues(string(channel), "attached").Inc()
	s.done(w, r)
}

func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (upload.Channel, upload.Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxRequestBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return upload.ChannelPicker, upload.Upload{}, fmt.Errorf("%w: request over %d bytes", upload.ErrTooLarge, tooLarge.Limit)
		}
		return upload.ChannelPicker, upload.Upload{}, fmt.Errorf("read upload form: %w", err)
	}

	channel, err := upload.ParseChannel(r.FormValue("channel"))
	if err != nil {
		return upload.ChannelPicker, upload.Upload{}, err
	}
	if channel == upload.ChannelObject {
		return channel, upload.Upload{}, fmt.Errorf("unsupported upload channel: %s", channel)
	}

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return channel, upload.Upload{}, upload.ErrEmpty
	}
	if err != nil {
		return channel, upload.Upload{}, fmt.Errorf("read upload: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return channel, upload.Upload{}, fmt.Errorf("read upload: %w", err)
	}

	u, err := upload.New(channel, header.Filename, data)
	return channel, u, err
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)

	res, err := sess.Controller.Submit(r.Context())
	if err != nil {
		var reqErr *form.RequestError
		if errors.As(err, &reqErr) {
			sess.SyncResult()
			s.logger.Printf("transform failed session=%s status=%d err=%v", shortID(sess.ID), reqErr.Status, reqErr.Err)
		}
		s.metrics.submitsTotal.WithLabelValues(submitLabel(sess.Controller), outcomeLabel(err)).Inc()
		s.fail(w, r, sess, err)
		return
	}

	sess.SyncResult()
	s.metrics.submitsTotal.WithLabelValues(string(res.Function), "image").Inc()
	s.done(w, r)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.existingSession(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	res, ok := sess.Result(r.PathValue("id"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", resultContentType(res.ContentType))
	w.Header().Set("Cache-Control", "private, no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	_, _ = w.Write(res.Data)
}

// resultContentType passes image types through. Anything else the backend
// claims is served as a download so it never renders same-origin.
func resultContentType(ct string) string {
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil || !strings.HasPrefix(mediaType, "image/") || mediaType == "image/svg+xml" {
		return "application/octet-stream"
	}
	return ct
}

// fail shows err as the page alert and sends the browser back to the form.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, sess *store.Session, err error) {
	sess.SetAlert(form.Alert(err))
	s.done(w, r)
}

func (s *Server) done(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) existingSession(r *http.Request) (*store.Session, bool) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil || !id.Valid(cookie.Value) {
		return nil, false
	}
	return s.sessions.Get(cookie.Value)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) *store.Session {
	if sess, ok := s.existingSession(r); ok {
		return sess
	}

	sess := s.sessions.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	return sess
}

// Run sweeps idle sessions until ctx is done.
func (s *Server) Run(ctx context.Context) {
	s.sessions.Run(ctx, time.Minute)
}

func submitLabel(c *form.Controller) string {
	schema, ok := c.Form()
	if !ok {
		return "none"
	}
	return string(schema.Function)
}

func outcomeLabel(err error) string {
	var reqErr *form.RequestError
	if errors.As(err, &reqErr) {
		return "placeholder"
	}
	return "invalid"
}

func shortID(v string) string {
	if len(v) > 8 {
		return v[:8]
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
