package rubric_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/hackjudge/internal/domain/errs"
	"github.com/okian/hackjudge/internal/domain/model"
	"github.com/okian/hackjudge/internal/domain/rubric"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDefault(t *testing.T) {
	Convey("Given the default rubric", t, func() {
		r := rubric.Default()

		Convey("Then it is configured and valid", func() {
			So(rubric.Configured(r), ShouldBeTrue)
			So(rubric.Validate(r), ShouldBeNil)
			So(r.ScaleMax, ShouldEqual, 5)
			So(rubric.WeightSum(r), ShouldEqual, 4.0)
		})
	})
}

func TestValidate(t *testing.T) {
	Convey("Given a rubric with several defects", t, func() {
		r := model.Rubric{
			ScaleMax: 0,
			Criteria: []model.Criterion{
				{ID: "a", Weight: 1},
				{ID: "a", Weight: 2},
				{ID: "", Weight: 1},
				{ID: "b", Weight: 0},
				{ID: "c", Weight: math.NaN()},
			},
		}
		err := rubric.Validate(r)

		Convey("Then every defect is reported", func() {
			So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
			So(errs.ProblemsOf(err), ShouldHaveLength, 5)
		})
	})

	Convey("Given an empty rubric", t, func() {
		r := model.Rubric{ScaleMax: 5}

		Convey("Then it validates but is not configured", func() {
			So(rubric.Validate(r), ShouldBeNil)
			So(rubric.Configured(r), ShouldBeFalse)
		})
	})
}

func TestRemoved(t *testing.T) {
	Convey("Given a rubric edit that drops a criterion", t, func() {
		prev := rubric.Default()
		next := rubric.Default()
		next.Criteria = next.Criteria[:3]

		So(rubric.Removed(prev, next), ShouldResemble, []string{"impact"})
		So(rubric.Removed(next, prev), ShouldBeEmpty)
	})
}
