package policy_test

import (
	"errors"
	"testing"

	"github.com/okian/hackjudge/internal/domain/errs"
	"github.com/okian/hackjudge/internal/domain/model"
	"github.com/okian/hackjudge/internal/domain/policy"
	. "github.com/smartystreets/goconvey/convey"
)

func TestResultsVisibility(t *testing.T) {
	Convey("Given prelim results hidden", t, func() {
		s := model.NewEvent("ev")
		s.ShowResults = false

		Convey("Then judges cannot see them and admins always can", func() {
			So(policy.CanViewResults(model.RoleJudge, model.RoundPrelim, s), ShouldBeFalse)
			So(policy.CanViewResults(model.RoleTeam, model.RoundPrelim, s), ShouldBeFalse)
			So(policy.CanViewResults(model.RoleAdmin, model.RoundPrelim, s), ShouldBeTrue)
		})

		Convey("Then finals follow their own flag", func() {
			So(policy.CanViewResults(model.RoleJudge, model.RoundFinals, s), ShouldBeFalse)
			s.ShowResultsFinals = true
			So(policy.CanViewResults(model.RoleJudge, model.RoundFinals, s), ShouldBeTrue)
		})
	})

	Convey("Given review details", t, func() {
		s := model.NewEvent("ev")
		s.AllowJudgeSeeOthers = false
		So(policy.CanViewReviewDetails(model.RoleJudge, s), ShouldBeFalse)
		So(policy.CanViewReviewDetails(model.RoleAdmin, s), ShouldBeTrue)
	})
}

func TestSubmissionGates(t *testing.T) {
	Convey("Given a closed event", t, func() {
		s := model.NewEvent("ev")
		s.Phase = model.PhaseClosed

		Convey("Then nobody can submit reviews", func() {
			So(policy.CanSubmitReview(s), ShouldBeFalse)
		})

		Convey("Then teams cannot edit and admins can", func() {
			So(policy.CanEditSubmission(model.RoleTeam, s), ShouldBeFalse)
			So(policy.CanEditSubmission(model.RoleAdmin, s), ShouldBeTrue)
		})
	})

	Convey("Given locked submissions", t, func() {
		s := model.NewEvent("ev")
		s.LockSubmissions = true
		So(policy.CanEditSubmission(model.RoleTeam, s), ShouldBeFalse)
		So(policy.CanEditSubmission(model.RoleJudge, s), ShouldBeFalse)
		So(policy.CanSubmitReview(s), ShouldBeTrue)
	})
}

func TestFinalsMembership(t *testing.T) {
	Convey("Given a finals panel and shortlist", t, func() {
		s := model.NewEvent("ev")
		s.FinalsJudgeIDs = []string{"j1"}
		s.FinalsTeamIDs = []string{"t1"}

		Convey("Then scoring needs both sides listed", func() {
			So(policy.CanScoreFinals("j1", "t1", s), ShouldBeTrue)
			So(policy.CanScoreFinals("j1", "t2", s), ShouldBeFalse)
			So(policy.CanScoreFinals("j2", "t1", s), ShouldBeFalse)
		})
	})
}

func TestTransition(t *testing.T) {
	Convey("Given an event in judging", t, func() {
		s := model.NewEvent("ev")
		s.Phase = model.PhaseJudging

		Convey("When starting finals without a panel", func() {
			err := policy.Transition(s, model.PhaseFinals)
			So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
			So(errs.ProblemsOf(err), ShouldHaveLength, 2)
		})

		Convey("When starting finals with a panel and shortlist", func() {
			s.FinalsJudgeIDs = []string{"j1"}
			s.FinalsTeamIDs = []string{"t1"}
			So(policy.Transition(s, model.PhaseFinals), ShouldBeNil)
		})

		Convey("When closing or staying put", func() {
			So(policy.Transition(s, model.PhaseClosed), ShouldBeNil)
			So(policy.Transition(s, model.PhaseJudging), ShouldBeNil)
		})
	})

	Convey("Given an event in submission", t, func() {
		s := model.NewEvent("ev")
		So(errors.Is(policy.Transition(s, model.PhaseClosed), errs.ErrValidation), ShouldBeTrue)
		So(errors.Is(policy.Transition(s, "limbo"), errs.ErrValidation), ShouldBeTrue)
	})
}
