package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/okian/hackjudge/pkg/logger"
)

const (
	defaultRequestTimeout = 15 * time.Second
	defaultSignInRate     = 1.0
	defaultSignInBurst    = 5
	defaultMaxUploadBytes = 10 << 20
)

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCORSOrigins limits the origins allowed to call the API.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.corsOrigins = origins
		}
	}
}

// WithRequestTimeout bounds every /api/v1 request.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// WithSignInLimit sets the per-client sign-in rate, in attempts per second,
// and its burst.
func WithSignInLimit(perSecond float64, burst int) Option {
	return func(s *Server) {
		if perSecond > 0 && burst > 0 {
			s.signIn = newLimiter(perSecond, burst)
		}
	}
}

// WithFiles serves uploaded images under prefix, e.g. "/files".
func WithFiles(prefix string, h http.Handler) Option {
	return func(s *Server) {
		prefix = "/" + strings.Trim(prefix, "/")
		if h != nil && prefix != "/" {
			s.filesPrefix = prefix
			s.files = h
		}
	}
}

// WithMaxUploadBytes caps image uploads.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}
