package api

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"coophours/internal/config"
	"coophours/internal/metrics"
	"coophours/internal/models"

	"golang.org/x/time/rate"
)

// SessionTokenHeader carries the opaque session token on every
// authenticated request.
const SessionTokenHeader = "X-Session-Token"

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = r.URL.Path
		}
		metrics.IncHTTP(endpoint, fmt.Sprintf("%d", recorder.status))

		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authorize validates the session token and refreshes the idle window.
func (s *Server) authorize(r *http.Request) (*models.Session, error) {
	token := strings.TrimSpace(r.Header.Get(SessionTokenHeader))
	return s.sessions.Authorize(r.Context(), token)
}

// clientKey buckets callers for rate limiting: the session token when
// present, the remote host otherwise.
func clientKey(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get(SessionTokenHeader)); token != "" {
		return token
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return "unknown"
}

type rateLimiter struct {
	limiters sync.Map
	cfg      config.RateLimitConfig
}

func newRateLimiter(cfg config.RateLimitConfig) *rateLimiter {
	return &rateLimiter{cfg: cfg}
}

func (l *rateLimiter) allow(key string) bool {
	if l.cfg.RPS <= 0 {
		return true
	}
	return l.getLimiter(key).Allow()
}

func (l *rateLimiter) getLimiter(key string) *rate.Limiter {
	if v, ok := l.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}

	burst := l.cfg.Burst
	if burst <= 0 {
		burst = models.RateLimitBurst
	}

	lim := rate.NewLimiter(rate.Limit(l.cfg.RPS), burst)
	actual, loaded := l.limiters.LoadOrStore(key, lim)
	if loaded {
		return actual.(*rate.Limiter)
	}
	return lim
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
