package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"github.com/okian/hackjudge/internal/adapters/repository"
	"github.com/okian/hackjudge/internal/domain/aggregation"
	"github.com/okian/hackjudge/internal/domain/errs"
	"github.com/okian/hackjudge/internal/domain/model"
	"github.com/okian/hackjudge/internal/domain/policy"
	"github.com/okian/hackjudge/internal/domain/rubric"
	"github.com/okian/hackjudge/pkg/logger"
)

func (s *Service) ensureEvent(ctx context.Context) (model.Event, bool, error) {
	const op = "service.ensure_event"
	created := false
	ev, err := updateDoc(ctx, s.store, repository.CollectionEvents, s.eventID, func(cur *model.Event, exists bool) error {
		if exists {
			return repository.ErrSkipWrite
		}
		*cur = model.NewEvent(s.eventID)
		cur.UpdatedAt = s.now()
		created = true
		return nil
	})
	if err != nil {
		return model.Event{}, false, storeErr(op, err)
	}
	ev.Normalize()
	return ev, created, nil
}

// loadEvent reads the event settings. A missing document yields defaults.
func (s *Service) loadEvent(ctx context.Context) (model.Event, error) {
	const op = "service.load_event"
	ev, err := getDoc[model.Event](ctx, s.store, repository.CollectionEvents, s.eventID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.NewEvent(s.eventID), nil
	}
	if err != nil {
		return model.Event{}, storeErr(op, err)
	}
	if ev.ID == "" {
		ev.ID = s.eventID
	}
	ev.Normalize()
	return ev, nil
}

// mutateEvent applies fn to the stored event inside a transactional update.
func (s *Service) mutateEvent(ctx context.Context, caller model.Caller, op string, fn func(ev *model.Event) error) (model.Event, error) {
	ev, err := updateDoc(ctx, s.store, repository.CollectionEvents, s.eventID, func(cur *model.Event, exists bool) error {
		if !exists {
			*cur = model.NewEvent(s.eventID)
		}
		cur.Normalize()
		if err := fn(cur); err != nil {
			return err
		}
		audit := caller.Audit(s.now())
		cur.UpdatedAt = audit.At
		cur.Audit = &audit
		return nil
	})
	if err != nil {
		return model.Event{}, storeErr(op, err)
	}
	if ev.ID == "" {
		ev.ID = s.eventID
	}
	ev.Normalize()
	return ev, nil
}

func requireAdmin(op string, caller model.Caller) error {
	if !caller.IsAdmin() {
		return errs.New(op, errs.ErrForbidden, "admin only")
	}
	return nil
}

// GetEvent returns the event settings. Every signed-in role may read them.
func (s *Service) GetEvent(ctx context.Context, _ model.Caller) (model.Event, error) {
	return s.loadEvent(ctx)
}

// UpdateSettings applies a partial settings change.
func (s *Service) UpdateSettings(ctx context.Context, caller model.Caller, patch model.SettingsPatch) (_ model.Event, err error) {
	const op = "service.update_settings"
	ctx, end := s.span(ctx, op, callerAttrs(caller)...)
	defer func() { end(err) }()

	if err := requireAdmin(op, caller); err != nil {
		return model.Event{}, err
	}
	v := errs.NewValidation(op)
	if patch.RequiredJudgeCount != nil && *patch.RequiredJudgeCount < 1 {
		v.Addf("requiredJudgeCount: must be at least 1")
	}
	if patch.FinalsTopN != nil && *patch.FinalsTopN < 1 {
		v.Addf("finalsTopN: must be at least 1")
	}
	if patch.MaxImages != nil && *patch.MaxImages < 0 {
		v.Addf("maxImages: must not be negative")
	}
	if err := v.Err(); err != nil {
		return model.Event{}, err
	}
	return s.mutateEvent(ctx, caller, op, func(ev *model.Event) error {
		patch.Apply(ev)
		return nil
	})
}

// SetPhase moves the event to another phase.
func (s *Service) SetPhase(ctx context.Context, caller model.Caller, to model.Phase) (_ model.Event, err error) {
	const op = "service.set_phase"
	ctx, end := s.span(ctx, op, append(callerAttrs(caller), attribute.String("phase", string(to)))...)
	defer func() { end(err) }()

	if err := requireAdmin(op, caller); err != nil {
		return model.Event{}, err
	}
	ev, err := s.mutateEvent(ctx, caller, op, func(ev *model.Event) error {
		if err := policy.Transition(*ev, to); err != nil {
			return err
		}
		ev.Phase = to
		return nil
	})
	if err == nil {
		s.logger.Info(ctx, "phase changed", logger.String("phase", string(ev.Phase)), logger.String("by", caller.ID))
	}
	return ev, err
}

// FinalsSelection is the admin's finals shortlist and panel.
type FinalsSelection struct {
	TeamIDs  []string `json:"finalsTeamIds"`
	JudgeIDs []string `json:"finalsJudgeIds"`
}

// SetFinals records the finals shortlist and panel without changing phase.
// Unknown ids are rejected.
func (s *Service) SetFinals(ctx context.Context, caller model.Caller, sel FinalsSelection) (_ model.Event, err error) {
	const op = "service.set_finals"
	ctx, end := s.span(ctx, op, callerAttrs(caller)...)
	defer func() { end(err) }()

	if err := requireAdmin(op, caller); err != nil {
		return model.Event{}, err
	}
	sel, err = s.checkFinals(ctx, op, sel)
	if err != nil {
		return model.Event{}, err
	}
	return s.mutateEvent(ctx, caller, op, func(ev *model.Event) error {
		ev.FinalsTeamIDs = sel.TeamIDs
		ev.FinalsJudgeIDs = sel.JudgeIDs
		return nil
	})
}

// StartFinals stores the selection and enters the finals phase in one write.
func (s *Service) StartFinals(ctx context.Context, caller model.Caller, sel FinalsSelection) (_ model.Event, err error) {
	const op = "service.start_finals"
	ctx, end := s.span(ctx, op, callerAttrs(caller)...)
	defer func() { end(err) }()

	if err := requireAdmin(op, caller); err != nil {
		return model.Event{}, err
	}
	sel, err = s.checkFinals(ctx, op, sel)
	if err != nil {
		return model.Event{}, err
	}
	return s.mutateEvent(ctx, caller, op, func(ev *model.Event) error {
		ev.FinalsTeamIDs = sel.TeamIDs
		ev.FinalsJudgeIDs = sel.JudgeIDs
		if err := policy.Transition(*ev, model.PhaseFinals); err != nil {
			return err
		}
		ev.Phase = model.PhaseFinals
		return nil
	})
}

// RevertFinals returns the event to judging while keeping the finals lists
// and any finals reviews.
func (s *Service) RevertFinals(ctx context.Context, caller model.Caller) (model.Event, error) {
	return s.SetPhase(ctx, caller, model.PhaseJudging)
}

func (s *Service) checkFinals(ctx context.Context, op string, sel FinalsSelection) (FinalsSelection, error) {
	sel.TeamIDs = model.UniqueIDs(sel.TeamIDs)
	sel.JudgeIDs = model.UniqueIDs(sel.JudgeIDs)

	teams, err := s.listTeams(ctx)
	if err != nil {
		return sel, err
	}
	judges, err := s.listJudges(ctx)
	if err != nil {
		return sel, err
	}
	knownTeams := make(map[string]struct{}, len(teams))
	for _, t := range teams {
		knownTeams[t.ID] = struct{}{}
	}
	knownJudges := make(map[string]struct{}, len(judges))
	for _, j := range judges {
		knownJudges[j.ID] = struct{}{}
	}

	v := errs.NewValidation(op)
	for _, id := range sel.TeamIDs {
		if _, ok := knownTeams[id]; !ok {
			v.Addf("finalsTeamIds: unknown team %q", id)
		}
	}
	for _, id := range sel.JudgeIDs {
		if _, ok := knownJudges[id]; !ok {
			v.Addf("finalsJudgeIds: unknown judge %q", id)
		}
	}
	return sel, v.Err()
}

// SuggestFinals returns the top prelim teams as a finals shortlist. topN <= 0
// uses the event's finalsTopN.
func (s *Service) SuggestFinals(ctx context.Context, caller model.Caller, topN int) (_ []aggregation.Row, err error) {
	const op = "service.suggest_finals"
	ctx, end := s.span(ctx, op, callerAttrs(caller)...)
	defer func() { end(err) }()

	if err := requireAdmin(op, caller); err != nil {
		return nil, err
	}
	ev, err := s.loadEvent(ctx)
	if err != nil {
		return nil, err
	}
	teams, err := s.listTeams(ctx)
	if err != nil {
		return nil, err
	}
	reviews, err := s.listReviews(ctx, repository.Query{})
	if err != nil {
		return nil, err
	}
	rows := aggregation.Aggregate(reviews, model.RoundPrelim, ev.RequiredJudgeCount, aggregation.WithTeams(teams))
	return aggregation.FinalsCandidates(teams, rows, topN, ev.FinalsTopN), nil
}

// GetRubric returns the stored rubric, or the default one.
func (s *Service) GetRubric(ctx context.Context, _ model.Caller) (model.Rubric, error) {
	return s.loadRubric(ctx)
}

func (s *Service) loadRubric(ctx context.Context) (model.Rubric, error) {
	const op = "service.load_rubric"
	r, err := getDoc[model.Rubric](ctx, s.store, s.collection(repository.CollectionRubric), rubricDocID)
	if errors.Is(err, repository.ErrNotFound) {
		return rubric.Default(), nil
	}
	if err != nil {
		return model.Rubric{}, storeErr(op, err)
	}
	return r, nil
}

// SaveRubric validates and stores the rubric. Dropping a criterion that
// stored reviews have scored is a conflict.
func (s *Service) SaveRubric(ctx context.Context, caller model.Caller, next model.Rubric) (_ model.Rubric, err error) {
	const op = "service.save_rubric"
	ctx, end := s.span(ctx, op, callerAttrs(caller)...)
	defer func() { end(err) }()

	if err := requireAdmin(op, caller); err != nil {
		return model.Rubric{}, err
	}
	if err := rubric.Validate(next); err != nil {
		return model.Rubric{}, err
	}
	if !rubric.Configured(next) {
		return model.Rubric{}, errs.New(op, errs.ErrValidation, "criteria: at least one criterion is required")
	}

	prev, err := s.loadRubric(ctx)
	if err != nil {
		return model.Rubric{}, err
	}
	if removed := rubric.Removed(prev, next); len(removed) > 0 {
		reviews, err := s.listReviews(ctx, repository.Query{})
		if err != nil {
			return model.Rubric{}, err
		}
		for _, id := range removed {
			for _, r := range reviews {
				if _, used := r.Scores[id]; used {
					return model.Rubric{}, errs.Newf(op, errs.ErrConflict,
						"criterion %q is scored by existing reviews", id)
				}
			}
		}
	}

	audit := caller.Audit(s.now())
	next.UpdatedAt = audit.At
	next.Audit = &audit
	if err := putDoc(ctx, s.store, s.collection(repository.CollectionRubric), rubricDocID, next); err != nil {
		return model.Rubric{}, storeErr(op, err)
	}
	return next, nil
}
