package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/okian/hackjudge/internal/domain/model"
	"github.com/okian/hackjudge/pkg/logger"
	"github.com/okian/hackjudge/pkg/metrics"
)

// MetricsMiddleware records request counts and latency per route pattern.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				endpoint = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		code := strconv.Itoa(status)
		metrics.RecordHTTPRequest(endpoint, r.Method, code)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, code, float64(time.Since(start).Milliseconds()))
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Debug(r.Context(), "http request",
				logger.String("method", r.Method),
				logger.String("path", r.URL.Path),
				logger.Int("status", ww.Status()),
				logger.Int("bytes", ww.BytesWritten()),
				logger.Int64("duration_ms", time.Since(start).Milliseconds()),
				logger.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

type contextKey string

const callerContextKey contextKey = "caller"

// CallerFromContext returns the signed-in caller.
func CallerFromContext(ctx context.Context) (model.Caller, bool) {
	c, ok := ctx.Value(callerContextKey).(model.Caller)
	return c, ok
}

// ContextWithCaller attaches caller to ctx.
func ContextWithCaller(ctx context.Context, c model.Caller) context.Context {
	return context.WithValue(ctx, callerContextKey, c)
}

// authenticate resolves "Authorization: Bearer <code>" to a caller.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := bearer(r)
		if code == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", ErrUnauthorized)
			return
		}
		c, err := s.deps.Resolve(r.Context(), code)
		if err != nil {
			status, _ := statusFor(err)
			if status == http.StatusNotFound || status == http.StatusBadRequest {
				writeError(w, http.StatusUnauthorized, "unauthorized", ErrUnauthorized)
				return
			}
			s.writeServiceError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithCaller(r.Context(), c)))
	})
}

func bearer(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// caller is only called behind authenticate.
func caller(r *http.Request) model.Caller {
	c, _ := CallerFromContext(r.Context())
	return c
}

// limiter keeps one token bucket per client address.
type limiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*rate.Limiter
}

// maxTrackedClients bounds the bucket map; it is reset when full.
const maxTrackedClients = 10_000

func newLimiter(perSecond float64, burst int) *limiter {
	return &limiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		clients: make(map[string]*rate.Limiter),
	}
}

func (l *limiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.clients[key]
	if !ok {
		if len(l.clients) >= maxTrackedClients {
			l.clients = make(map[string]*rate.Limiter)
		}
		lim = rate.NewLimiter(l.limit, l.burst)
		l.clients[key] = lim
	}
	return lim.Allow()
}

func (l *limiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if host, _, err := net.SplitHostPort(key); err == nil {
			key = host
		}
		if !l.allow(key) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate_limited", ErrRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func errField(err error) logger.Field { return logger.Error(err) }

func reqField(r *http.Request) logger.Field {
	return logger.String("request_id", middleware.GetReqID(r.Context()))
}
