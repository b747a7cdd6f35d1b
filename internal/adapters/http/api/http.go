// Package api serves the judging core over HTTP with a chi router.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/okian/hackjudge/internal/adapters/http/swagger"
	service "github.com/okian/hackjudge/internal/app"
	"github.com/okian/hackjudge/internal/domain/aggregation"
	"github.com/okian/hackjudge/internal/domain/allocation"
	"github.com/okian/hackjudge/internal/domain/model"
	"github.com/okian/hackjudge/internal/domain/roster"
	"github.com/okian/hackjudge/pkg/logger"
)

// Dependencies is the service surface the handlers call.
type Dependencies interface {
	StatsProvider

	Ready(ctx context.Context) error
	SignIn(ctx context.Context, code string) (model.Caller, error)
	Resolve(ctx context.Context, code string) (model.Caller, error)

	GetEvent(ctx context.Context, caller model.Caller) (model.Event, error)
	UpdateSettings(ctx context.Context, caller model.Caller, patch model.SettingsPatch) (model.Event, error)
	SetPhase(ctx context.Context, caller model.Caller, to model.Phase) (model.Event, error)
	SetFinals(ctx context.Context, caller model.Caller, sel service.FinalsSelection) (model.Event, error)
	StartFinals(ctx context.Context, caller model.Caller, sel service.FinalsSelection) (model.Event, error)
	RevertFinals(ctx context.Context, caller model.Caller) (model.Event, error)
	SuggestFinals(ctx context.Context, caller model.Caller, topN int) ([]aggregation.Row, error)

	GetRubric(ctx context.Context, caller model.Caller) (model.Rubric, error)
	SaveRubric(ctx context.Context, caller model.Caller, next model.Rubric) (model.Rubric, error)

	ListTeams(ctx context.Context, caller model.Caller, track string) ([]model.Team, error)
	GetTeam(ctx context.Context, caller model.Caller, id string) (model.Team, error)
	CreateTeam(ctx context.Context, caller model.Caller, in service.TeamInput) (model.Team, error)
	UpdateTeam(ctx context.Context, caller model.Caller, id string, patch service.TeamPatch) (model.Team, error)
	UpdateSubmission(ctx context.Context, caller model.Caller, id string, sub model.Submission) (model.Team, error)
	UploadImage(ctx context.Context, caller model.Caller, id, filename string, data []byte) (model.Team, error)
	DeleteTeam(ctx context.Context, caller model.Caller, id string) (service.DeleteTeamReport, error)
	SeedTeams(ctx context.Context, caller model.Caller, rows []roster.SeedTeam, dryRun bool) (service.SeedResult, error)
	TeamFeedback(ctx context.Context, caller model.Caller, teamID string) (service.TeamFeedback, error)

	ListJudges(ctx context.Context, caller model.Caller) ([]model.Judge, error)
	GetJudge(ctx context.Context, caller model.Caller, id string) (model.Judge, error)
	CreateJudge(ctx context.Context, caller model.Caller, in service.JudgeInput) (model.Judge, error)
	UpdateJudge(ctx context.Context, caller model.Caller, id string, patch service.JudgePatch) (model.Judge, error)
	SetCapacity(ctx context.Context, caller model.Caller, id string, capacity *int) (model.Judge, error)
	DeleteJudge(ctx context.Context, caller model.Caller, id string) error
	JudgeQueue(ctx context.Context, caller model.Caller, judgeID string, round model.Round) (service.Queue, error)

	SubmitReview(ctx context.Context, caller model.Caller, in service.ReviewInput) (model.Review, error)
	GetReview(ctx context.Context, caller model.Caller, teamID, judgeID string, round model.Round) (service.ReviewView, error)
	ListReviews(ctx context.Context, caller model.Caller, round model.Round, teamID string) ([]service.ReviewView, error)

	ToggleAssignment(ctx context.Context, caller model.Caller, scope service.AssignmentScope, judgeID, teamID string) (service.AssignmentResult, error)
	BulkFill(ctx context.Context, caller model.Caller, scope service.AssignmentScope, judgeID string) (service.AssignmentResult, error)
	Rebalance(ctx context.Context, caller model.Caller, scope service.AssignmentScope) (service.AssignmentResult, error)
	ClearAssignments(ctx context.Context, caller model.Caller, scope service.AssignmentScope) (service.AssignmentResult, error)
	Coverage(ctx context.Context, caller model.Caller, scope service.AssignmentScope) (allocation.Outcome, error)

	Results(ctx context.Context, caller model.Caller, round model.Round, hideUnderCovered bool) (service.Leaderboard, error)
}

// Server wires HTTP routes for the judging API.
type Server struct {
	deps           Dependencies
	logger         logger.Logger
	corsOrigins    []string
	requestTimeout time.Duration
	signIn         *limiter
	files          http.Handler
	filesPrefix    string
	maxUploadBytes int64

	healthHandler *HealthHandler
	statsHandler  *StatsHandler
}

// NewServer creates the API server.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		deps:           deps,
		corsOrigins:    []string{"*"},
		requestTimeout: defaultRequestTimeout,
		signIn:         newLimiter(defaultSignInRate, defaultSignInBurst),
		maxUploadBytes: defaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("http")
	}
	s.healthHandler = NewHealthHandler(deps)
	s.statsHandler = NewStatsHandler(deps)
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Handle("/metrics", s.healthHandler.MetricsHandler())
	r.Get("/stats", s.statsHandler.HandleStats)
	swagger.Register(r)
	if s.files != nil {
		r.Handle(s.filesPrefix+"/*", http.StripPrefix(s.filesPrefix, s.files))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(s.requestTimeout))

		r.With(s.signIn.middleware).Post("/auth/sign-in", s.handleSignIn)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/me", s.handleMe)

			r.Route("/event", func(r chi.Router) {
				r.Get("/", s.handleGetEvent)
				r.Patch("/", s.handleUpdateSettings)
				r.Put("/phase", s.handleSetPhase)
				r.Put("/finals", s.handleSetFinals)
				r.Post("/finals/start", s.handleStartFinals)
				r.Post("/finals/revert", s.handleRevertFinals)
				r.Get("/finals/suggestions", s.handleSuggestFinals)
			})

			r.Get("/rubric", s.handleGetRubric)
			r.Put("/rubric", s.handleSaveRubric)

			r.Route("/teams", func(r chi.Router) {
				r.Get("/", s.handleListTeams)
				r.Post("/", s.handleCreateTeam)
				r.Post("/seed", s.handleSeedTeams)
				r.Route("/{teamID}", func(r chi.Router) {
					r.Get("/", s.handleGetTeam)
					r.Patch("/", s.handleUpdateTeam)
					r.Delete("/", s.handleDeleteTeam)
					r.Put("/submission", s.handleUpdateSubmission)
					r.Post("/images", s.handleUploadImage)
					r.Get("/feedback", s.handleTeamFeedback)
				})
			})

			r.Route("/judges", func(r chi.Router) {
				r.Get("/", s.handleListJudges)
				r.Post("/", s.handleCreateJudge)
				r.Route("/{judgeID}", func(r chi.Router) {
					r.Get("/", s.handleGetJudge)
					r.Patch("/", s.handleUpdateJudge)
					r.Delete("/", s.handleDeleteJudge)
					r.Put("/capacity", s.handleSetCapacity)
					r.Get("/queue", s.handleJudgeQueue)
				})
			})

			r.Route("/reviews", func(r chi.Router) {
				r.Get("/", s.handleListReviews)
				r.Post("/", s.handleSubmitReview)
				r.Get("/{teamID}/{judgeID}", s.handleGetReview)
			})

			r.Route("/assignments", func(r chi.Router) {
				r.Get("/coverage", s.handleCoverage)
				r.Post("/toggle", s.handleToggle)
				r.Post("/bulk-fill", s.handleBulkFill)
				r.Post("/rebalance", s.handleRebalance)
				r.Post("/clear", s.handleClear)
			})

			r.Get("/results", s.handleResults)
		})
	})
	return r
}

type errorResponse struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Problems []string `json:"problems,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
