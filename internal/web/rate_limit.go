package web

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/dunamismax/stylize/internal/ratelimit"
)

type RateLimiter interface {
	Allow(ctx context.Context, subject string) (ratelimit.Decision, error)
}

// withRateLimit meters submits, the only route that reaches the backend.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	if s.rateLimiter == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/submit" {
			next.ServeHTTP(w, r)
			return
		}

		subject := rateLimitSubject(r)
		decision, err := s.rateLimiter.Allow(r.Context(), subject)
		if err != nil {
			s.logger.Printf("rate limiter check failed subject=%s err=%v", subject, err)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
		if decision.Allowed {
			next.ServeHTTP(w, r)
			return
		}

		retryAfter := max(int(decision.RetryAfter.Round(time.Second).Seconds()), 1)
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		s.metrics.rateLimitRejected.WithLabelValues(routeLabel(r.URL.Path)).Inc()

		if sess, ok := s.existingSession(r); ok {
			sess.SetAlert(strconv.Itoa(http.StatusTooManyRequests) + ": Something went wrong")
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	})
}

// rateLimitSubject keys the bucket on the client address. The session cookie
// is issued by this server on demand, so dropping it must not reset the bucket.
func rateLimitSubject(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
