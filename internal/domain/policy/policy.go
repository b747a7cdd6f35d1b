// Package policy holds the pure visibility and phase rules of an event.
package policy

import (
	"github.com/okian/hackjudge/internal/domain/errs"
	"github.com/okian/hackjudge/internal/domain/model"
)

// CanViewResults reports whether role may see the leaderboard of round.
func CanViewResults(role model.Role, round model.Round, settings model.Event) bool {
	if role == model.RoleAdmin {
		return true
	}
	switch round.OrDefault() {
	case model.RoundFinals:
		return settings.ShowResultsFinals
	case model.RoundPrelim:
		return settings.ShowResults
	default:
		return false
	}
}

// CanViewReviewDetails reports whether role may read other judges' reviews.
func CanViewReviewDetails(role model.Role, settings model.Event) bool {
	return role == model.RoleAdmin || settings.AllowJudgeSeeOthers
}

// CanSubmitReview is false once the event is closed.
func CanSubmitReview(settings model.Event) bool {
	return settings.Phase != model.PhaseClosed
}

// CanEditSubmission reports whether role may change a team's project fields.
func CanEditSubmission(role model.Role, settings model.Event) bool {
	if role == model.RoleAdmin {
		return true
	}
	return role == model.RoleTeam && !settings.LockSubmissions && settings.Phase != model.PhaseClosed
}

// IsFinalsJudge reports whether judgeID is on the finals panel.
func IsFinalsJudge(judgeID string, settings model.Event) bool {
	return model.ContainsID(settings.FinalsJudgeIDs, judgeID)
}

// IsFinalsTeam reports whether teamID was picked for finals.
func IsFinalsTeam(teamID string, settings model.Event) bool {
	return model.ContainsID(settings.FinalsTeamIDs, teamID)
}

// CanScoreFinals requires both the judge and the team to be listed.
func CanScoreFinals(judgeID, teamID string, settings model.Event) bool {
	return IsFinalsJudge(judgeID, settings) && IsFinalsTeam(teamID, settings)
}

var transitions = map[model.Phase][]model.Phase{
	model.PhaseSubmission: {model.PhaseJudging},
	model.PhaseJudging:    {model.PhaseSubmission, model.PhaseFinals, model.PhaseClosed},
	model.PhaseFinals:     {model.PhaseJudging, model.PhaseClosed},
	model.PhaseClosed:     {model.PhaseJudging, model.PhaseFinals},
}

// Transition checks a phase change. Entering finals also needs at least one
// finals judge and one finals team.
func Transition(settings model.Event, to model.Phase) error {
	const op = "policy.transition"
	from := settings.Phase
	if !to.Valid() {
		return errs.Newf(op, errs.ErrValidation, "unknown phase %q", to)
	}
	if from == to {
		return nil
	}
	allowed := false
	for _, p := range transitions[from] {
		if p == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return errs.Newf(op, errs.ErrValidation, "cannot move from %s to %s", from, to)
	}
	if to == model.PhaseFinals {
		return FinalsReady(settings)
	}
	return nil
}

// FinalsReady checks that a finals panel and shortlist exist.
func FinalsReady(settings model.Event) error {
	v := errs.NewValidation("policy.finals_ready")
	if len(settings.FinalsJudgeIDs) == 0 {
		v.Addf("finalsJudgeIds: select at least one finals judge")
	}
	if len(settings.FinalsTeamIDs) == 0 {
		v.Addf("finalsTeamIds: select at least one finals team")
	}
	return v.Err()
}
