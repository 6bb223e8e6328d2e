package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dunamismax/stylize/internal/ratelimit"
)

type countingLimiter struct {
	capacity int
	err      error

	mu       sync.Mutex
	spent    map[string]int
	subjects []string
}

func newCountingLimiter(capacity int) *countingLimiter {
	return &countingLimiter{capacity: capacity, spent: make(map[string]int)}
}

func (l *countingLimiter) Allow(_ context.Context, subject string) (ratelimit.Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.subjects = append(l.subjects, subject)
	if l.err != nil {
		return ratelimit.Decision{}, l.err
	}
	if l.spent[subject] >= l.capacity {
		return ratelimit.Decision{Allowed: false, Remaining: 0, RetryAfter: 3 * time.Second}, nil
	}
	l.spent[subject]++
	return ratelimit.Decision{Allowed: true, Remaining: int64(l.capacity - l.spent[subject])}, nil
}

func (l *countingLimiter) calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.subjects...)
}

func TestRateLimitSurvivesDroppedCookies(t *testing.T) {
	limiter := newCountingLimiter(1)
	env := newTestEnv(t, func(cfg *Config) { cfg.RateLimiter = limiter })

	env.submitFlow()
	if hits := env.backendHits.Load(); hits != 1 {
		t.Fatalf("expected first submit to reach the backend, got %d hits", hits)
	}

	for i := 0; i < 3; i++ {
		env.client = newBrowser()
		page := env.submitFlow()
		if !strings.Contains(page, "429: Something went wrong") {
			t.Fatalf("run %d: expected rate limit alert for a fresh cookie", i)
		}
	}
	if hits := env.backendHits.Load(); hits != 1 {
		t.Fatalf("expected rate limit to hold across new sessions, got %d backend hits", hits)
	}

	for _, subject := range limiter.calls() {
		if subject != "ip:127.0.0.1" {
			t.Fatalf("expected subjects keyed on client address, got %q", subject)
		}
	}
}

func TestRateLimitMetersOnlySubmit(t *testing.T) {
	limiter := newCountingLimiter(5)
	env := newTestEnv(t, func(cfg *Config) { cfg.RateLimiter = limiter })

	env.get("/")
	env.postForm("/select", url.Values{"function": {"edge"}})
	env.upload("picker", "cat.png", pngHeader)
	env.get("/functions")
	if n := len(limiter.calls()); n != 0 {
		t.Fatalf("expected no limiter calls before submit, got %d", n)
	}

	env.postForm("/submit", nil)
	if n := len(limiter.calls()); n != 1 {
		t.Fatalf("expected one limiter call for submit, got %d", n)
	}
}

func TestRateLimitRejectionHeaders(t *testing.T) {
	limiter := newCountingLimiter(0)
	env := newTestEnv(t, func(cfg *Config) { cfg.RateLimiter = limiter })

	req := httptest.NewRequest(http.MethodPost, "/submit", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
		t.Fatalf("expected redirect to the form, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if got := rec.Header().Get("Retry-After"); got != "3" {
		t.Fatalf("expected Retry-After 3, got %q", got)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Fatalf("expected no remaining tokens, got %q", got)
	}
	if calls := limiter.calls(); len(calls) != 1 || calls[0] != "ip:203.0.113.7" {
		t.Fatalf("unexpected limiter subjects %v", calls)
	}
	if hits := env.backendHits.Load(); hits != 0 {
		t.Fatalf("expected rejected submit to skip the backend, got %d hits", hits)
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	limiter := newCountingLimiter(0)
	limiter.err = errors.New("redis unavailable")
	env := newTestEnv(t, func(cfg *Config) { cfg.RateLimiter = limiter })

	page := env.submitFlow()
	if strings.Contains(page, "429: Something went wrong") {
		t.Fatal("expected limiter errors not to reject submits")
	}
	if hits := env.backendHits.Load(); hits != 1 {
		t.Fatalf("expected submit to reach the backend, got %d hits", hits)
	}
}
