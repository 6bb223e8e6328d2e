package web

import (
	"net/http"

	"github.com/rs/cors"
)

// withCORS lets other origins read /functions and result images. Without
// configured origins the handler is left as is.
func (s *Server) withCORS(next http.Handler) http.Handler {
	if len(s.corsOrigins) == 0 {
		return next
	}
	return cors.New(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "traceparent", "tracestate"},
		AllowCredentials: true,
		MaxAge:           3600,
	}).Handler(next)
}
