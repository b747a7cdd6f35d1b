package repository

import "time"

const (
	defaultMaxRetries = 8
	defaultKeyPrefix  = "hackjudge"
	defaultMaxConns   = 10
	defaultMinConns   = 1
	defaultConnLife   = 30 * time.Minute
)

// Option configures a store.
type Option func(*settings)

type settings struct {
	maxRetries int
	keyPrefix  string
	maxConns   int32
	now        func() time.Time
}

func newSettings(opts []Option) settings {
	s := settings{
		maxRetries: defaultMaxRetries,
		keyPrefix:  defaultKeyPrefix,
		maxConns:   defaultMaxConns,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithMaxRetries bounds how often TransactionalUpdate retries a lost race.
func WithMaxRetries(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// WithKeyPrefix namespaces Redis keys.
func WithKeyPrefix(prefix string) Option {
	return func(s *settings) {
		if prefix != "" {
			s.keyPrefix = prefix
		}
	}
}

// WithMaxConns caps the Postgres pool size.
func WithMaxConns(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxConns = int32(n)
		}
	}
}

// WithClock overrides the time source used for updated_at stamps.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}
