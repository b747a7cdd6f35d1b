package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	workerpool "github.com/okian/hackjudge/internal/adapters/mq/worker"
	"github.com/okian/hackjudge/internal/adapters/repository"
	"github.com/okian/hackjudge/internal/domain/allocation"
	"github.com/okian/hackjudge/internal/domain/errs"
	"github.com/okian/hackjudge/internal/domain/model"
	"github.com/okian/hackjudge/pkg/logger"
	"github.com/okian/hackjudge/pkg/metrics"
)

// AssignmentScope selects the round and, optionally, one track.
type AssignmentScope struct {
	Round model.Round `json:"round" validate:"omitempty,oneof=prelim finals"`
	Track string      `json:"track,omitempty"`
}

// WriteFailure is a judge whose assignment write failed.
type WriteFailure struct {
	JudgeID string `json:"judgeId"`
	Error   string `json:"error"`
}

// AssignmentResult is the planned outcome plus what was persisted. Skipped
// judges already held their planned set. On a partial failure only the
// Failed judges need a retry.
type AssignmentResult struct {
	Outcome allocation.Outcome `json:"outcome"`
	Updated []string           `json:"updated"`
	Skipped []string           `json:"skipped"`
	Failed  []WriteFailure     `json:"failed"`
}

// ToggleAssignment flips one team in one judge's set.
func (s *Service) ToggleAssignment(ctx context.Context, caller model.Caller, scope AssignmentScope, judgeID, teamID string) (AssignmentResult, error) {
	return s.allocate(ctx, caller, "service.toggle_assignment", allocation.OpToggle, scope,
		func(p *allocation.Planner) (allocation.Outcome, error) { return p.Toggle(judgeID, teamID) })
}

// BulkFill tops up one judge with the least covered teams.
func (s *Service) BulkFill(ctx context.Context, caller model.Caller, scope AssignmentScope, judgeID string) (AssignmentResult, error) {
	return s.allocate(ctx, caller, "service.bulk_fill", allocation.OpBulkFill, scope,
		func(p *allocation.Planner) (allocation.Outcome, error) { return p.BulkFill(judgeID) })
}

// Rebalance redistributes the scope's teams across the non-admin judges.
func (s *Service) Rebalance(ctx context.Context, caller model.Caller, scope AssignmentScope) (AssignmentResult, error) {
	return s.allocate(ctx, caller, "service.rebalance", allocation.OpRebalance, scope,
		func(p *allocation.Planner) (allocation.Outcome, error) { return p.Rebalance(), nil })
}

// ClearAssignments empties the scope's teams from every non-admin judge.
func (s *Service) ClearAssignments(ctx context.Context, caller model.Caller, scope AssignmentScope) (AssignmentResult, error) {
	return s.allocate(ctx, caller, "service.clear_assignments", allocation.OpClearAll, scope,
		func(p *allocation.Planner) (allocation.Outcome, error) { return p.ClearAll(), nil })
}

// Coverage reports per-team judge counts without writing anything.
func (s *Service) Coverage(ctx context.Context, caller model.Caller, scope AssignmentScope) (allocation.Outcome, error) {
	const op = "service.coverage"
	if err := requireAdmin(op, caller); err != nil {
		return allocation.Outcome{}, err
	}
	planner, round, err := s.planner(ctx, op, scope)
	if err != nil {
		return allocation.Outcome{}, err
	}
	out := planner.Report()
	metrics.UpdateCoverageDeficit(string(round), len(out.Deficits))
	return out, nil
}

func (s *Service) planner(ctx context.Context, op string, scope AssignmentScope) (*allocation.Planner, model.Round, error) {
	round, err := parseRound(op, scope.Round)
	if err != nil {
		return nil, "", err
	}
	ev, err := s.loadEvent(ctx)
	if err != nil {
		return nil, "", err
	}
	teams, err := s.listTeams(ctx)
	if err != nil {
		return nil, "", err
	}
	judges, err := s.listJudges(ctx)
	if err != nil {
		return nil, "", err
	}
	required := ev.RequiredJudgeCount
	if round == model.RoundFinals {
		required = len(ev.FinalsJudgeIDs)
	}
	return allocation.New(allocation.Input{
		Teams:              teams,
		Judges:             judges,
		RequiredJudgeCount: required,
		Scope: allocation.Scope{
			Round:          round,
			FinalsTeamIDs:  ev.FinalsTeamIDs,
			FinalsJudgeIDs: ev.FinalsJudgeIDs,
			Track:          scope.Track,
		},
	}), round, nil
}

func (s *Service) allocate(ctx context.Context, caller model.Caller, op string, kind allocation.Op, scope AssignmentScope,
	plan func(p *allocation.Planner) (allocation.Outcome, error)) (_ AssignmentResult, err error) {
	ctx, end := s.span(ctx, op, append(callerAttrs(caller),
		attribute.String("round", string(scope.Round)),
		attribute.String("track", scope.Track))...)
	defer func() { end(err) }()

	if err := requireAdmin(op, caller); err != nil {
		return AssignmentResult{}, err
	}
	planner, round, err := s.planner(ctx, op, scope)
	if err != nil {
		return AssignmentResult{}, err
	}
	if planner.ReadOnly() {
		return AssignmentResult{}, errs.Newf(op, errs.ErrValidation,
			"round %q follows the finals panel; use coverage to inspect it", round)
	}
	out, err := plan(planner)
	if err != nil {
		return AssignmentResult{}, err
	}
	metrics.RecordAllocationRun(string(kind))
	metrics.UpdateCoverageDeficit(string(round), len(out.Deficits))

	res := s.persist(ctx, caller, op, out)
	s.logger.Info(ctx, "assignments written",
		logger.String("op", string(kind)),
		logger.String("round", string(round)),
		logger.Int("changed", len(out.Changes)),
		logger.Int("skipped", len(res.Skipped)),
		logger.Int("failed", len(res.Failed)),
		logger.Int("shortfall", out.Shortfall),
	)
	if len(res.Failed) > 0 {
		return res, errs.Newf(op, errs.ErrStore, "%d of %d judge writes failed", len(res.Failed), len(out.Changes))
	}
	return res, nil
}

// persist replays every change on the judge's freshly read set, so edits
// made since the plan was computed are kept.
func (s *Service) persist(ctx context.Context, caller model.Caller, op string, out allocation.Outcome) AssignmentResult {
	jobs := make([]workerpool.Job, 0, len(out.Changes))
	// Each job owns one slot, so no lock is needed.
	skipped := make([]bool, len(out.Changes))
	for i, c := range out.Changes {
		i, change := i, c
		jobs = append(jobs, workerpool.Job{Key: change.JudgeID, Do: func(ctx context.Context) error {
			_, err := s.mutateJudge(ctx, caller, op, change.JudgeID, func(j *model.Judge) error {
				next := change.Apply(j.AssignedTeamIDs)
				skipped[i] = sameIDs(next, j.AssignedTeamIDs)
				if skipped[i] {
					return repository.ErrSkipWrite
				}
				j.AssignedTeamIDs = next
				return nil
			})
			return err
		}})
	}

	report := s.writers.Run(ctx, jobs)
	res := AssignmentResult{Outcome: out, Updated: []string{}, Skipped: []string{}, Failed: []WriteFailure{}}
	done := make(map[string]struct{}, len(report.Updated))
	for _, key := range report.Updated {
		done[key] = struct{}{}
	}
	for i, c := range out.Changes {
		if _, ok := done[c.JudgeID]; !ok {
			continue
		}
		if skipped[i] {
			res.Skipped = append(res.Skipped, c.JudgeID)
			metrics.RecordAssignmentWrite("skipped")
			continue
		}
		res.Updated = append(res.Updated, c.JudgeID)
		metrics.RecordAssignmentWrite("ok")
	}
	for _, f := range report.Failed {
		res.Failed = append(res.Failed, WriteFailure{JudgeID: f.Key, Error: f.Err.Error()})
		metrics.RecordAssignmentWrite("failed")
	}
	return res
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
