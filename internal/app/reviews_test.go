package service_test

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/hackjudge/internal/app"
	"github.com/okian/hackjudge/internal/domain/errs"
	"github.com/okian/hackjudge/internal/domain/model"
)

func TestSubmitReview(t *testing.T) {
	Convey("Given a judge assigned to a team", t, func() {
		f := newFixture()
		a := f.team("Alpha")
		b := f.team("Beta")
		j := f.judge("Judy", "J1")
		k := f.judge("Kim", "J2")
		_, err := f.svc.ToggleAssignment(f.ctx, root, service.AssignmentScope{}, j.ID, a.ID)
		So(err, ShouldBeNil)
		f.phase(model.PhaseJudging)

		submit := func(c model.Caller, in service.ReviewInput) (model.Review, error) {
			return f.svc.SubmitReview(f.ctx, c, in)
		}

		Convey("Resubmitting replaces the earlier review", func() {
			two := model.Rubric{Name: "two", ScaleMax: 5, Criteria: []model.Criterion{
				{ID: "a", Label: "A", Weight: 1}, {ID: "b", Label: "B", Weight: 1},
			}}
			_, err := f.svc.SaveRubric(f.ctx, root, two)
			So(err, ShouldBeNil)

			first, err := submit(asJudge(j), service.ReviewInput{TeamID: a.ID, JudgeID: j.ID, Scores: map[string]float64{"a": 3, "b": 4}})
			So(err, ShouldBeNil)
			So(first.Total, ShouldEqual, 7.0)

			second, err := submit(asJudge(j), service.ReviewInput{TeamID: a.ID, JudgeID: j.ID, Scores: map[string]float64{"a": 5, "b": 5}, Feedback: "solid"})
			So(err, ShouldBeNil)
			So(second.ID, ShouldEqual, first.ID)
			So(second.Total, ShouldEqual, 10.0)
			So(second.CreatedAt, ShouldEqual, first.CreatedAt)

			list, err := f.svc.ListReviews(f.ctx, root, model.RoundPrelim, a.ID)
			So(err, ShouldBeNil)
			So(list, ShouldHaveLength, 1)
			So(list[0].Total, ShouldEqual, 10.0)
			So(list[0].Feedback, ShouldEqual, "solid")
		})

		Convey("Weighted totals are sums of score times weight", func() {
			weighted := model.Rubric{Name: "w", ScaleMax: 5, Criteria: []model.Criterion{
				{ID: "a", Label: "A", Weight: 2}, {ID: "b", Label: "B", Weight: 1},
			}}
			_, err := f.svc.SaveRubric(f.ctx, root, weighted)
			So(err, ShouldBeNil)

			r, err := submit(asJudge(j), service.ReviewInput{TeamID: a.ID, JudgeID: j.ID, Scores: map[string]float64{"a": 4, "b": 2}})
			So(err, ShouldBeNil)
			So(r.Total, ShouldEqual, 6.0)
			So(r.WeightedTotal, ShouldEqual, 10.0)
			So(r.JudgeName, ShouldEqual, "Judy")

			view, err := f.svc.GetReview(f.ctx, asJudge(j), a.ID, j.ID, "")
			So(err, ShouldBeNil)
			So(view.NormalizedWeighted, ShouldAlmostEqual, 10.0/3.0, 1e-9)
		})

		Convey("Out-of-range and missing scores are rejected", func() {
			_, err := submit(asJudge(j), service.ReviewInput{TeamID: a.ID, JudgeID: j.ID, Scores: scores(6, 1, 1, 1)})
			So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
			_, err = submit(asJudge(j), service.ReviewInput{TeamID: a.ID, JudgeID: j.ID, Scores: map[string]float64{"innovation": 1}})
			So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
		})

		Convey("Judges may only score their own assigned teams", func() {
			_, err := submit(asJudge(j), service.ReviewInput{TeamID: b.ID, JudgeID: j.ID, Scores: scores(1, 1, 1, 1)})
			So(errors.Is(err, errs.ErrForbidden), ShouldBeTrue)

			_, err = submit(asJudge(k), service.ReviewInput{TeamID: a.ID, JudgeID: j.ID, Scores: scores(1, 1, 1, 1)})
			So(errors.Is(err, errs.ErrForbidden), ShouldBeTrue)

			_, err = submit(asTeam(a), service.ReviewInput{TeamID: a.ID, JudgeID: j.ID, Scores: scores(5, 5, 5, 5)})
			So(errors.Is(err, errs.ErrForbidden), ShouldBeTrue)
		})

		Convey("Unknown records and rounds are reported", func() {
			_, err := submit(root, service.ReviewInput{TeamID: "ghost", JudgeID: j.ID, Scores: scores(1, 1, 1, 1)})
			So(errors.Is(err, errs.ErrNotFound), ShouldBeTrue)
			_, err = submit(root, service.ReviewInput{TeamID: a.ID, JudgeID: j.ID, Round: "semis", Scores: scores(1, 1, 1, 1)})
			So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
		})

		Convey("Nothing can be submitted once the event is closed", func() {
			f.phase(model.PhaseClosed)
			_, err := submit(root, service.ReviewInput{TeamID: a.ID, JudgeID: j.ID, Scores: scores(1, 1, 1, 1)})
			So(errors.Is(err, errs.ErrForbidden), ShouldBeTrue)
		})

		Convey("Finals scoring needs both the judge and the team in finals", func() {
			_, err := f.svc.StartFinals(f.ctx, root, service.FinalsSelection{TeamIDs: []string{a.ID}, JudgeIDs: []string{k.ID}})
			So(err, ShouldBeNil)

			_, err = submit(asJudge(k), service.ReviewInput{TeamID: a.ID, JudgeID: k.ID, Round: model.RoundFinals, Scores: scores(4, 4, 4, 4)})
			So(err, ShouldBeNil)

			_, err = submit(asJudge(k), service.ReviewInput{TeamID: b.ID, JudgeID: k.ID, Round: model.RoundFinals, Scores: scores(4, 4, 4, 4)})
			So(errors.Is(err, errs.ErrForbidden), ShouldBeTrue)

			_, err = submit(asJudge(j), service.ReviewInput{TeamID: a.ID, JudgeID: j.ID, Round: model.RoundFinals, Scores: scores(4, 4, 4, 4)})
			So(errors.Is(err, errs.ErrForbidden), ShouldBeTrue)

			// prelim and finals reviews of the same pair are separate records
			_, err = submit(root, service.ReviewInput{TeamID: a.ID, JudgeID: k.ID, Scores: scores(1, 1, 1, 1)})
			So(err, ShouldBeNil)
			list, err := f.svc.ListReviews(f.ctx, root, model.RoundFinals, a.ID)
			So(err, ShouldBeNil)
			So(list, ShouldHaveLength, 1)
			So(list[0].ID, ShouldEqual, model.ReviewID(a.ID, k.ID, model.RoundFinals))
		})
	})
}

func TestReviewVisibility(t *testing.T) {
	Convey("Given two judges with one review each", t, func() {
		f := newFixture()
		a := f.team("Alpha")
		j := f.judge("Judy", "J1")
		k := f.judge("Kim", "J2")
		for _, jj := range []model.Judge{j, k} {
			_, err := f.svc.SubmitReview(f.ctx, root, service.ReviewInput{TeamID: a.ID, JudgeID: jj.ID, Scores: scores(3, 3, 3, 3), Feedback: "from " + jj.Name})
			So(err, ShouldBeNil)
		}

		Convey("By default judges see each other's reviews", func() {
			list, err := f.svc.ListReviews(f.ctx, asJudge(j), "", a.ID)
			So(err, ShouldBeNil)
			So(list, ShouldHaveLength, 2)
		})

		Convey("With details hidden judges see only their own", func() {
			off := false
			_, err := f.svc.UpdateSettings(f.ctx, root, model.SettingsPatch{AllowJudgeSeeOthers: &off})
			So(err, ShouldBeNil)

			list, err := f.svc.ListReviews(f.ctx, asJudge(j), "", a.ID)
			So(err, ShouldBeNil)
			So(list, ShouldHaveLength, 1)
			So(list[0].JudgeID, ShouldEqual, j.ID)

			_, err = f.svc.GetReview(f.ctx, asJudge(j), a.ID, k.ID, "")
			So(errors.Is(err, errs.ErrForbidden), ShouldBeTrue)
		})

		Convey("Teams read their feedback grouped by round", func() {
			fb, err := f.svc.TeamFeedback(f.ctx, asTeam(a), a.ID)
			So(err, ShouldBeNil)
			So(fb.Rounds, ShouldHaveLength, 1)
			So(fb.Rounds[0].Round, ShouldEqual, model.RoundPrelim)
			So(fb.Rounds[0].Reviews, ShouldHaveLength, 2)
			So(fb.Rounds[0].Reviews[0].Total, ShouldEqual, 12.0)

			_, err = f.svc.ListReviews(f.ctx, asTeam(a), "", a.ID)
			So(errors.Is(err, errs.ErrForbidden), ShouldBeTrue)

			other := f.team("Beta")
			_, err = f.svc.TeamFeedback(f.ctx, asTeam(other), a.ID)
			So(errors.Is(err, errs.ErrForbidden), ShouldBeTrue)
		})
	})
}

func TestJudgeQueue(t *testing.T) {
	Convey("Given a judge with two assigned teams", t, func() {
		f := newFixture()
		a := f.team("Alpha")
		b := f.team("Beta")
		j := f.judge("Judy", "J1")
		for _, tm := range []model.Team{a, b} {
			_, err := f.svc.ToggleAssignment(f.ctx, root, service.AssignmentScope{}, j.ID, tm.ID)
			So(err, ShouldBeNil)
		}
		_, err := f.svc.SubmitReview(f.ctx, asJudge(j), service.ReviewInput{TeamID: b.ID, JudgeID: j.ID, Scores: scores(2, 2, 2, 2)})
		So(err, ShouldBeNil)

		Convey("The queue tracks progress", func() {
			q, err := f.svc.JudgeQueue(f.ctx, asJudge(j), j.ID, "")
			So(err, ShouldBeNil)
			So(q.Total, ShouldEqual, 2)
			So(q.Done, ShouldEqual, 1)
			So(q.Items[0].Name, ShouldEqual, "Alpha")
			So(q.Items[0].Done, ShouldBeFalse)
			So(q.Items[1].Done, ShouldBeTrue)
		})

		Convey("Names are anonymized when asked", func() {
			on := true
			_, err := f.svc.UpdateSettings(f.ctx, root, model.SettingsPatch{AnonymizeTeams: &on})
			So(err, ShouldBeNil)
			q, err := f.svc.JudgeQueue(f.ctx, asJudge(j), j.ID, "")
			So(err, ShouldBeNil)
			So(q.Items[0].Name, ShouldEqual, "Team ALPH")
		})

		Convey("The finals queue is empty off the panel", func() {
			q, err := f.svc.JudgeQueue(f.ctx, asJudge(j), j.ID, model.RoundFinals)
			So(err, ShouldBeNil)
			So(q.Total, ShouldEqual, 0)
		})

		Convey("Other judges' queues are private", func() {
			k := f.judge("Kim", "J2")
			_, err := f.svc.JudgeQueue(f.ctx, asJudge(k), j.ID, "")
			So(errors.Is(err, errs.ErrForbidden), ShouldBeTrue)
		})
	})
}
