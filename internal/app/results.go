package service

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/okian/hackjudge/internal/adapters/repository"
	"github.com/okian/hackjudge/internal/domain/aggregation"
	"github.com/okian/hackjudge/internal/domain/errs"
	"github.com/okian/hackjudge/internal/domain/model"
	"github.com/okian/hackjudge/internal/domain/policy"
	"github.com/okian/hackjudge/internal/domain/roster"
	"github.com/okian/hackjudge/pkg/metrics"
)

// resultsTimeout bounds a shared results computation, which outlives any
// single caller's context.
const resultsTimeout = 30 * time.Second

// Leaderboard is the ranked view of one round.
type Leaderboard struct {
	Round              model.Round       `json:"round"`
	RequiredJudgeCount int               `json:"requiredJudgeCount"`
	Rows               []aggregation.Row `json:"rows"`
	GeneratedAt        time.Time         `json:"generatedAt"`
}

// Results ranks the teams of a round. Finals rows cover only the finals
// teams. Identical concurrent requests share one computation.
func (s *Service) Results(ctx context.Context, caller model.Caller, round model.Round, hideUnderCovered bool) (_ Leaderboard, err error) {
	const op = "service.results"
	ctx, end := s.span(ctx, op, append(callerAttrs(caller),
		attribute.String("round", string(round)),
		attribute.Bool("hide_under_covered", hideUnderCovered))...)
	defer func() { end(err) }()

	round, err = parseRound(op, round)
	if err != nil {
		return Leaderboard{}, err
	}
	ev, err := s.loadEvent(ctx)
	if err != nil {
		return Leaderboard{}, err
	}
	if !policy.CanViewResults(caller.Role, round, ev) {
		return Leaderboard{}, errs.New(op, errs.ErrForbidden, "results are hidden")
	}

	key := string(round) + "|" + strconv.FormatBool(hideUnderCovered)
	ch := s.results.DoChan(key, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), resultsTimeout)
		defer cancel()
		return s.computeResults(shared, ev, round, hideUnderCovered)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return Leaderboard{}, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return Leaderboard{}, res.Err
	}
	board := res.Val.(Leaderboard)

	// Rows are shared between coalesced callers, so copy before renaming.
	rows := make([]aggregation.Row, len(board.Rows))
	copy(rows, board.Rows)
	if ev.AnonymizeTeams && !caller.IsAdmin() {
		for i := range rows {
			rows[i].TeamName = roster.AnonymizedName(rows[i].TeamID)
		}
	}
	board.Rows = rows
	return board, nil
}

func (s *Service) computeResults(ctx context.Context, ev model.Event, round model.Round, hideUnderCovered bool) (Leaderboard, error) {
	start := time.Now()
	defer func() {
		metrics.RecordResultsLatency(string(round), float64(time.Since(start).Microseconds())/1000)
	}()

	teams, err := s.listTeams(ctx)
	if err != nil {
		return Leaderboard{}, err
	}
	required := ev.RequiredJudgeCount
	if round == model.RoundFinals {
		teams = filterTeams(teams, ev.FinalsTeamIDs)
		required = len(ev.FinalsJudgeIDs)
	}
	reviews, err := s.listReviews(ctx, repository.Query{})
	if err != nil {
		return Leaderboard{}, err
	}

	opts := []aggregation.Option{aggregation.WithTeams(teams)}
	if hideUnderCovered {
		opts = append(opts, aggregation.HideUnderCovered())
	}
	return Leaderboard{
		Round:              round,
		RequiredJudgeCount: required,
		Rows:               aggregation.Aggregate(reviews, round, required, opts...),
		GeneratedAt:        s.now().UTC(),
	}, nil
}

func filterTeams(teams []model.Team, ids []string) []model.Team {
	out := make([]model.Team, 0, len(ids))
	for _, t := range teams {
		if model.ContainsID(ids, t.ID) {
			out = append(out, t)
		}
	}
	return out
}
