package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"github.com/okian/hackjudge/internal/adapters/repository"
	"github.com/okian/hackjudge/internal/domain/errs"
	"github.com/okian/hackjudge/internal/domain/model"
	"github.com/okian/hackjudge/internal/domain/policy"
	"github.com/okian/hackjudge/internal/domain/roster"
	"github.com/okian/hackjudge/internal/domain/scoring"
	"github.com/okian/hackjudge/pkg/logger"
	"github.com/okian/hackjudge/pkg/metrics"
)

// ReviewInput is one score submission.
type ReviewInput struct {
	TeamID   string             `json:"teamId" validate:"required"`
	JudgeID  string             `json:"judgeId" validate:"required"`
	Round    model.Round        `json:"round" validate:"omitempty,oneof=prelim finals"`
	Scores   map[string]float64 `json:"scores" validate:"required"`
	Feedback string             `json:"feedback" validate:"max=5000"`
}

// ReviewView is a stored review with its display-only normalized total.
type ReviewView struct {
	model.Review
	NormalizedWeighted float64 `json:"normalizedWeighted"`
}

// QueueItem is one team on a judge's to-do list.
type QueueItem struct {
	TeamID string `json:"teamId"`
	Name   string `json:"name"`
	Track  string `json:"track,omitempty"`
	Done   bool   `json:"done"`
}

// Queue is a judge's assigned teams for a round with progress.
type Queue struct {
	JudgeID string      `json:"judgeId"`
	Round   model.Round `json:"round"`
	Items   []QueueItem `json:"items"`
	Done    int         `json:"done"`
	Total   int         `json:"total"`
}

// FeedbackEntry is what a team sees of one review.
type FeedbackEntry struct {
	JudgeName     string             `json:"judgeName"`
	Scores        map[string]float64 `json:"scores"`
	Feedback      string             `json:"feedback"`
	Total         float64            `json:"total"`
	WeightedTotal float64            `json:"weightedTotal"`
}

// RoundFeedback groups a team's reviews of one round.
type RoundFeedback struct {
	Round   model.Round     `json:"round"`
	Reviews []FeedbackEntry `json:"reviews"`
}

// TeamFeedback is the team-facing view of all its reviews.
type TeamFeedback struct {
	TeamID string          `json:"teamId"`
	Rounds []RoundFeedback `json:"rounds"`
}

func (s *Service) listReviews(ctx context.Context, q repository.Query) ([]model.Review, error) {
	reviews, err := listDocs[model.Review](ctx, s.store, s.collection(repository.CollectionReviews), q)
	if err != nil {
		return nil, storeErr("service.list_reviews", err)
	}
	for i := range reviews {
		reviews[i].Round = reviews[i].Round.OrDefault()
	}
	return reviews, nil
}

func parseRound(op string, r model.Round) (model.Round, error) {
	round, ok := model.ParseRound(string(r))
	if !ok {
		return "", errs.Newf(op, errs.ErrValidation, "round: unknown round %q", r)
	}
	return round, nil
}

// SubmitReview validates and stores a review. Resubmitting replaces the
// scores and keeps the original creation time.
func (s *Service) SubmitReview(ctx context.Context, caller model.Caller, in ReviewInput) (_ model.Review, err error) {
	const op = "service.submit_review"
	ctx, end := s.span(ctx, op, append(callerAttrs(caller),
		attribute.String("team.id", in.TeamID),
		attribute.String("judge.id", in.JudgeID),
		attribute.String("round", string(in.Round)))...)
	defer func() {
		if err != nil {
			metrics.RecordReviewRejected(kindLabel(err))
		}
		end(err)
	}()

	v := errs.NewValidation(op)
	if in.TeamID == "" {
		v.Addf("teamId: required")
	}
	if in.JudgeID == "" {
		v.Addf("judgeId: required")
	}
	round, rerr := parseRound(op, in.Round)
	if rerr != nil {
		v.Addf("round: unknown round %q", in.Round)
	}
	if err := v.Err(); err != nil {
		return model.Review{}, err
	}

	if !caller.IsAdmin() && (caller.Role != model.RoleJudge || caller.ID != in.JudgeID) {
		return model.Review{}, errs.New(op, errs.ErrForbidden, "judges may only submit their own reviews")
	}
	ev, err := s.loadEvent(ctx)
	if err != nil {
		return model.Review{}, err
	}
	if !policy.CanSubmitReview(ev) {
		return model.Review{}, errs.New(op, errs.ErrForbidden, "the event is closed")
	}
	team, err := s.getTeam(ctx, op, in.TeamID)
	if err != nil {
		return model.Review{}, err
	}
	judge, err := s.getJudge(ctx, op, in.JudgeID)
	if err != nil {
		return model.Review{}, err
	}
	switch round {
	case model.RoundFinals:
		if !policy.CanScoreFinals(judge.ID, team.ID, ev) {
			return model.Review{}, errs.New(op, errs.ErrForbidden, "judge and team must both be in finals")
		}
	default:
		if !caller.IsAdmin() && !judge.IsAssigned(team.ID) {
			return model.Review{}, errs.New(op, errs.ErrForbidden, "team is not assigned to this judge")
		}
	}

	rb, err := s.loadRubric(ctx)
	if err != nil {
		return model.Review{}, err
	}
	res, err := s.scorer.Score(scoring.Input{Rubric: rb, Scores: in.Scores})
	if err != nil {
		return model.Review{}, err
	}

	now := s.now().UTC()
	audit := caller.Audit(now)
	id := model.ReviewID(team.ID, judge.ID, round)
	review, err := updateDoc(ctx, s.store, s.collection(repository.CollectionReviews), id, func(cur *model.Review, exists bool) error {
		created := now
		if exists && !cur.CreatedAt.IsZero() {
			created = cur.CreatedAt
		}
		*cur = model.Review{
			ID:            id,
			TeamID:        team.ID,
			JudgeID:       judge.ID,
			JudgeName:     judge.Name,
			Round:         round,
			Scores:        res.Scores,
			Feedback:      in.Feedback,
			Total:         res.Total,
			WeightedTotal: res.WeightedTotal,
			CreatedAt:     created,
			CompletedAt:   now,
			Audit:         &audit,
		}
		return nil
	})
	if err != nil {
		return model.Review{}, storeErr(op, err)
	}
	metrics.RecordReviewSubmitted(string(round))
	s.logger.Debug(ctx, "review stored",
		logger.String("review", id),
		logger.Float64("weightedTotal", review.WeightedTotal),
	)
	return review, nil
}

// canReadReview reports whether caller may read a review by judgeID.
func canReadReview(caller model.Caller, judgeID string, ev model.Event) bool {
	switch caller.Role {
	case model.RoleAdmin:
		return true
	case model.RoleJudge:
		return caller.ID == judgeID || policy.CanViewReviewDetails(caller.Role, ev)
	default:
		return false
	}
}

// GetReview returns one review.
func (s *Service) GetReview(ctx context.Context, caller model.Caller, teamID, judgeID string, round model.Round) (ReviewView, error) {
	const op = "service.get_review"
	round, err := parseRound(op, round)
	if err != nil {
		return ReviewView{}, err
	}
	ev, err := s.loadEvent(ctx)
	if err != nil {
		return ReviewView{}, err
	}
	if !canReadReview(caller, judgeID, ev) {
		return ReviewView{}, errs.New(op, errs.ErrForbidden, "review details are hidden")
	}
	r, err := getDoc[model.Review](ctx, s.store, s.collection(repository.CollectionReviews), model.ReviewID(teamID, judgeID, round))
	if errors.Is(err, repository.ErrNotFound) {
		return ReviewView{}, errs.Newf(op, errs.ErrNotFound, "review of %q by %q", teamID, judgeID)
	}
	if err != nil {
		return ReviewView{}, storeErr(op, err)
	}
	rb, err := s.loadRubric(ctx)
	if err != nil {
		return ReviewView{}, err
	}
	r.Round = r.Round.OrDefault()
	return ReviewView{Review: r, NormalizedWeighted: scoring.Normalized(rb, r.WeightedTotal)}, nil
}

// ListReviews returns the reviews of a round, optionally for one team.
// Judges who may not see others' reviews only get their own.
func (s *Service) ListReviews(ctx context.Context, caller model.Caller, round model.Round, teamID string) ([]ReviewView, error) {
	const op = "service.list_reviews"
	round, err := parseRound(op, round)
	if err != nil {
		return nil, err
	}
	if caller.Role == model.RoleTeam {
		return nil, errs.New(op, errs.ErrForbidden, "teams read their reviews through feedback")
	}
	ev, err := s.loadEvent(ctx)
	if err != nil {
		return nil, err
	}
	q := repository.Query{OrderBy: &repository.Order{Field: "completedAt"}}
	if teamID != "" {
		q = q.Where("teamId", teamID)
	}
	if !policy.CanViewReviewDetails(caller.Role, ev) {
		q = q.Where("judgeId", caller.ID)
	}
	reviews, err := s.listReviews(ctx, q)
	if err != nil {
		return nil, err
	}
	rb, err := s.loadRubric(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ReviewView, 0, len(reviews))
	for _, r := range reviews {
		if r.Round != round {
			continue
		}
		out = append(out, ReviewView{Review: r, NormalizedWeighted: scoring.Normalized(rb, r.WeightedTotal)})
	}
	return out, nil
}

// JudgeQueue lists the teams a judge has to score in a round. For finals
// that is every finals team, provided the judge is on the panel.
func (s *Service) JudgeQueue(ctx context.Context, caller model.Caller, judgeID string, round model.Round) (Queue, error) {
	const op = "service.judge_queue"
	round, err := parseRound(op, round)
	if err != nil {
		return Queue{}, err
	}
	if !caller.IsAdmin() && (caller.Role != model.RoleJudge || caller.ID != judgeID) {
		return Queue{}, errs.New(op, errs.ErrForbidden, "judges may only read their own queue")
	}
	ev, err := s.loadEvent(ctx)
	if err != nil {
		return Queue{}, err
	}
	judge, err := s.getJudge(ctx, op, judgeID)
	if err != nil {
		return Queue{}, err
	}
	teams, err := s.listTeams(ctx)
	if err != nil {
		return Queue{}, err
	}
	reviews, err := s.listReviews(ctx, repository.Query{}.Where("judgeId", judgeID))
	if err != nil {
		return Queue{}, err
	}

	var want []string
	switch round {
	case model.RoundFinals:
		if policy.IsFinalsJudge(judgeID, ev) {
			want = ev.FinalsTeamIDs
		}
	default:
		want = judge.AssignedTeamIDs
	}
	wanted := make(map[string]struct{}, len(want))
	for _, id := range want {
		wanted[id] = struct{}{}
	}
	done := make(map[string]struct{}, len(reviews))
	for _, r := range reviews {
		if r.Round == round {
			done[r.TeamID] = struct{}{}
		}
	}

	anonymize := ev.AnonymizeTeams && !caller.IsAdmin()
	q := Queue{JudgeID: judgeID, Round: round, Items: []QueueItem{}}
	for _, t := range teams {
		if _, ok := wanted[t.ID]; !ok {
			continue
		}
		name := t.Name
		if anonymize {
			name = roster.AnonymizedName(t.ID)
		}
		_, isDone := done[t.ID]
		q.Items = append(q.Items, QueueItem{TeamID: t.ID, Name: name, Track: t.Track, Done: isDone})
		if isDone {
			q.Done++
		}
	}
	q.Total = len(q.Items)
	return q, nil
}

// TeamFeedback returns a team's reviews grouped by round, prelim first.
func (s *Service) TeamFeedback(ctx context.Context, caller model.Caller, teamID string) (TeamFeedback, error) {
	const op = "service.team_feedback"
	if !caller.IsAdmin() && !(caller.Role == model.RoleTeam && caller.ID == teamID) {
		return TeamFeedback{}, errs.New(op, errs.ErrForbidden, "teams may only read their own feedback")
	}
	if _, err := s.getTeam(ctx, op, teamID); err != nil {
		return TeamFeedback{}, err
	}
	reviews, err := s.listReviews(ctx, repository.Query{
		OrderBy: &repository.Order{Field: "completedAt"},
	}.Where("teamId", teamID))
	if err != nil {
		return TeamFeedback{}, err
	}

	out := TeamFeedback{TeamID: teamID, Rounds: []RoundFeedback{}}
	for _, round := range []model.Round{model.RoundPrelim, model.RoundFinals} {
		group := RoundFeedback{Round: round, Reviews: []FeedbackEntry{}}
		for _, r := range reviews {
			if r.Round != round {
				continue
			}
			group.Reviews = append(group.Reviews, FeedbackEntry{
				JudgeName:     r.JudgeName,
				Scores:        r.Scores,
				Feedback:      r.Feedback,
				Total:         r.Total,
				WeightedTotal: r.WeightedTotal,
			})
		}
		if len(group.Reviews) > 0 {
			out.Rounds = append(out.Rounds, group)
		}
	}
	return out, nil
}
