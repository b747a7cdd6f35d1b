// Package service orchestrates the judging core: it loads records from the
// document store, runs the domain rules on them and writes the results back.
// Every operation takes the Caller it acts for.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/okian/hackjudge/internal/adapters/blob"
	workerpool "github.com/okian/hackjudge/internal/adapters/mq/worker"
	"github.com/okian/hackjudge/internal/adapters/repository"
	"github.com/okian/hackjudge/internal/domain/errs"
	"github.com/okian/hackjudge/internal/domain/model"
	"github.com/okian/hackjudge/internal/domain/roster"
	"github.com/okian/hackjudge/internal/domain/scoring"
	"github.com/okian/hackjudge/pkg/logger"
)

const (
	defaultEventID          = "hello-hacks"
	defaultWriteConcurrency = 8
	tracerName              = "hackjudge/app"
)

// Service implements the operations served by the HTTP API.
type Service struct {
	mu sync.RWMutex

	store   repository.Store
	blobs   blob.Store
	scorer  scoring.Scorer
	writers *workerpool.Pool
	codes   roster.CodeSource
	results singleflight.Group
	tracer  trace.Tracer

	eventID          string
	adminName        string
	adminCode        string
	writeConcurrency int
	now              func() time.Time

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithEventID selects the event the service works on.
func WithEventID(id string) Option {
	return func(s *Service) {
		if id != "" {
			s.eventID = id
		}
	}
}

// WithBootstrapAdmin makes Start create an admin judge with code when no
// record holds that code yet.
func WithBootstrapAdmin(name, code string) Option {
	return func(s *Service) {
		if code != "" {
			s.adminName = name
			s.adminCode = code
		}
	}
}

// WithBlobStore sets where submission images are kept.
func WithBlobStore(b blob.Store) Option {
	return func(s *Service) {
		if b != nil {
			s.blobs = b
		}
	}
}

// WithScorer replaces the review scorer.
func WithScorer(sc scoring.Scorer) Option {
	return func(s *Service) {
		if sc != nil {
			s.scorer = sc
		}
	}
}

// WithWriteConcurrency bounds parallel judge writes.
func WithWriteConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.writeConcurrency = n
		}
	}
}

// WithCodeSource replaces the sign-in code generator.
func WithCodeSource(src roster.CodeSource) Option {
	return func(s *Service) {
		if src != nil {
			s.codes = src
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service on top of store.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:            store,
		blobs:            blob.NewMemoryStore("/files"),
		scorer:           scoring.NewRubricScorer(),
		codes:            roster.RandomCode,
		tracer:           otel.Tracer(tracerName),
		eventID:          defaultEventID,
		writeConcurrency: defaultWriteConcurrency,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.writers = workerpool.NewPool(
		workerpool.WithName("assignment-writer"),
		workerpool.WithSize(s.writeConcurrency),
		workerpool.WithLogger(s.logger.Named("writer")),
	)
	return s
}

// Start checks the store and creates the event document with default
// settings when it does not exist yet.
func (s *Service) Start(ctx context.Context) error {
	const op = "service.start"
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if err := s.store.Ping(ctx); err != nil {
		return storeErr(op, err)
	}
	ev, created, err := s.ensureEvent(ctx)
	if err != nil {
		return err
	}
	if err := s.bootstrapAdmin(ctx); err != nil {
		return err
	}
	s.started = true
	s.logger.Info(ctx, "judging service started",
		logger.String("event", ev.ID),
		logger.String("phase", string(ev.Phase)),
		logger.Bool("created", created),
		logger.Int("writeConcurrency", s.writeConcurrency),
	)
	return nil
}

func (s *Service) bootstrapAdmin(ctx context.Context) error {
	const op = "service.bootstrap_admin"
	if s.adminCode == "" {
		return nil
	}
	_, err := s.resolve(ctx, op, NormalizeCode(s.adminCode))
	if err == nil {
		return nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return err
	}
	name := s.adminName
	if name == "" {
		name = "Admin"
	}
	system := model.Caller{Role: model.RoleAdmin, ID: "system", Name: "system"}
	j, err := s.CreateJudge(ctx, system, JudgeInput{Name: name, Code: s.adminCode, IsAdmin: true})
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "bootstrap admin created", logger.String("judge", j.ID))
	return nil
}

// Stop closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn(context.Background(), "closing store", logger.Error(err))
	}
	s.started = false
	s.logger.Info(context.Background(), "judging service stopped")
}

// Ready reports whether the store answers.
func (s *Service) Ready(ctx context.Context) error {
	return storeErr("service.ready", s.store.Ping(ctx))
}

// EventID returns the event this service serves.
func (s *Service) EventID() string { return s.eventID }

// GetStats returns record counts for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	stats := map[string]any{
		"started":          started,
		"eventId":          s.eventID,
		"writeConcurrency": s.writeConcurrency,
	}
	if !started {
		return stats
	}
	if ev, err := s.loadEvent(ctx); err == nil {
		stats["phase"] = ev.Phase
	}
	for _, name := range []string{repository.CollectionTeams, repository.CollectionJudges, repository.CollectionReviews} {
		records, err := s.store.List(ctx, s.collection(name), repository.Query{})
		if err != nil {
			s.logger.Warn(ctx, "stats list failed", logger.String("collection", name), logger.Error(err))
			continue
		}
		stats[name] = len(records)
	}
	return stats
}

// span starts a trace span for op. Call the returned func with the final
// error.
func (s *Service) span(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := s.tracer.Start(ctx, op, trace.WithAttributes(
		append(attrs, attribute.String("event.id", s.eventID))...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

func callerAttrs(c model.Caller) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("caller.role", string(c.Role)),
		attribute.String("caller.id", c.ID),
	}
}
