package scoring_test

import (
	"errors"
	"testing"

	"github.com/okian/hackjudge/internal/domain/errs"
	"github.com/okian/hackjudge/internal/domain/model"
	"github.com/okian/hackjudge/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func weighted() model.Rubric {
	return model.Rubric{
		ScaleMax: 5,
		Criteria: []model.Criterion{
			{ID: "a", Label: "A", Weight: 2},
			{ID: "b", Label: "B", Weight: 1},
		},
	}
}

func TestRubricScorer(t *testing.T) {
	Convey("Given a strict scorer and a weighted rubric", t, func() {
		s := scoring.NewRubricScorer()
		r := weighted()

		Convey("When every criterion is scored", func() {
			res, err := s.Score(scoring.Input{Rubric: r, Scores: map[string]float64{"a": 4, "b": 2}})

			Convey("Then total is unweighted and weightedTotal is sum-weighted", func() {
				So(err, ShouldBeNil)
				So(res.Total, ShouldEqual, 6.0)
				So(res.WeightedTotal, ShouldEqual, 10.0)
			})

			Convey("Then the display value is normalized by the weight sum", func() {
				So(scoring.Normalized(r, res.WeightedTotal), ShouldAlmostEqual, 10.0/3.0, 1e-9)
			})
		})

		Convey("When a criterion is missing", func() {
			_, err := s.Score(scoring.Input{Rubric: r, Scores: map[string]float64{"a": 4}})

			Convey("Then it is a validation error naming the criterion", func() {
				So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
				So(errs.ProblemsOf(err), ShouldResemble, []string{"scores.b: missing"})
			})
		})

		Convey("When a score is out of range", func() {
			_, err := s.Score(scoring.Input{Rubric: r, Scores: map[string]float64{"a": 6, "b": -1}})

			Convey("Then it is rejected instead of clamped", func() {
				So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
				So(errs.ProblemsOf(err), ShouldHaveLength, 2)
			})
		})

		Convey("When a score names an unknown criterion", func() {
			_, err := s.Score(scoring.Input{Rubric: r, Scores: map[string]float64{"a": 1, "b": 1, "zz": 3}})
			So(errs.ProblemsOf(err), ShouldResemble, []string{"scores.zz: unknown criterion"})
		})

		Convey("When the rubric has no criteria", func() {
			_, err := s.Score(scoring.Input{Rubric: model.Rubric{ScaleMax: 5}, Scores: map[string]float64{}})
			So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
		})

		Convey("When the boundaries are used", func() {
			res, err := s.Score(scoring.Input{Rubric: r, Scores: map[string]float64{"a": 0, "b": 5}})
			So(err, ShouldBeNil)
			So(res.Total, ShouldEqual, 5.0)
		})
	})

	Convey("Given a lenient scorer", t, func() {
		s := scoring.NewRubricScorer(scoring.WithMissingAsZero())

		Convey("Then absent criteria count as zero", func() {
			res, err := s.Score(scoring.Input{Rubric: weighted(), Scores: map[string]float64{"b": 3}})
			So(err, ShouldBeNil)
			So(res.Scores, ShouldResemble, map[string]float64{"a": 0, "b": 3})
			So(res.WeightedTotal, ShouldEqual, 3.0)
		})
	})
}
