package aggregation_test

import (
	"testing"

	"github.com/okian/hackjudge/internal/domain/aggregation"
	"github.com/okian/hackjudge/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func review(team, judge string, round model.Round, total, weighted float64) model.Review {
	return model.Review{
		ID:            model.ReviewID(team, judge, round),
		TeamID:        team,
		JudgeID:       judge,
		Round:         round,
		Total:         total,
		WeightedTotal: weighted,
	}
}

func TestAggregate(t *testing.T) {
	Convey("Given prelim and finals reviews", t, func() {
		reviews := []model.Review{
			review("a", "j1", model.RoundPrelim, 10, 20),
			review("a", "j2", "", 6, 10),
			review("b", "j1", model.RoundPrelim, 12, 24),
			review("b", "j3", model.RoundFinals, 1, 1),
		}

		Convey("When aggregating prelim with a target of 2", func() {
			rows := aggregation.Aggregate(reviews, model.RoundPrelim, 2)

			Convey("Then reviews without a round count as prelim", func() {
				So(rows, ShouldHaveLength, 2)
				So(rows[0].TeamID, ShouldEqual, "b")
				So(rows[0].AvgWeighted, ShouldEqual, 24.0)
				So(rows[1].TeamID, ShouldEqual, "a")
				So(rows[1].ReviewCount, ShouldEqual, 2)
				So(rows[1].AvgRaw, ShouldEqual, 8.0)
				So(rows[1].AvgWeighted, ShouldEqual, 15.0)
			})

			Convey("Then coverage is flagged but rows are kept", func() {
				So(rows[0].MeetsCoverage, ShouldBeFalse)
				So(rows[1].MeetsCoverage, ShouldBeTrue)
			})
		})

		Convey("When hiding under-covered teams", func() {
			rows := aggregation.Aggregate(reviews, model.RoundPrelim, 2, aggregation.HideUnderCovered())
			So(rows, ShouldHaveLength, 1)
			So(rows[0].TeamID, ShouldEqual, "a")
		})

		Convey("When aggregating finals", func() {
			rows := aggregation.Aggregate(reviews, model.RoundFinals, 1)
			So(rows, ShouldHaveLength, 1)
			So(rows[0].TeamID, ShouldEqual, "b")
		})

		Convey("When a team list is supplied", func() {
			teams := []model.Team{{ID: "a", Name: "Alpha"}, {ID: "c", Name: "Gamma"}}
			rows := aggregation.Aggregate(reviews, model.RoundPrelim, 1, aggregation.WithTeams(teams))

			Convey("Then unreviewed teams appear and unknown teams drop out", func() {
				So(rows, ShouldHaveLength, 2)
				So(rows[0].TeamName, ShouldEqual, "Alpha")
				So(rows[1].TeamID, ShouldEqual, "c")
				So(rows[1].ReviewCount, ShouldEqual, 0)
				So(rows[1].AvgWeighted, ShouldEqual, 0.0)
			})
		})
	})

	Convey("Given two teams with equal averages and different review counts", t, func() {
		var reviews []model.Review
		for _, j := range []string{"j1", "j2", "j3", "j4", "j5"} {
			reviews = append(reviews, review("many", j, model.RoundPrelim, 4, 8))
		}
		reviews = append(reviews, review("few", "j1", model.RoundPrelim, 4, 8), review("few", "j2", model.RoundPrelim, 4, 8))
		rows := aggregation.Aggregate(reviews, model.RoundPrelim, 3)

		Convey("Then the more reviewed team ranks higher", func() {
			So(rows[0].TeamID, ShouldEqual, "many")
			So(rows[0].Rank, ShouldEqual, 1)
			So(rows[1].Rank, ShouldEqual, 2)
		})
	})

	Convey("Given two teams with identical standing", t, func() {
		reviews := []model.Review{
			review("z", "j1", model.RoundPrelim, 0.1+0.2, 0.1+0.2),
			review("y", "j1", model.RoundPrelim, 0.3, 0.3),
		}
		rows := aggregation.Aggregate(reviews, model.RoundPrelim, 1)

		Convey("Then they share a rank and order by team id", func() {
			So(rows[0].TeamID, ShouldEqual, "y")
			So(rows[0].Rank, ShouldEqual, 1)
			So(rows[1].Rank, ShouldEqual, 1)
		})
	})

	Convey("Given no reviews", t, func() {
		So(aggregation.Aggregate(nil, model.RoundPrelim, 3), ShouldBeEmpty)
	})
}

func TestFinalsCandidates(t *testing.T) {
	Convey("Given ranked prelim rows", t, func() {
		reviews := []model.Review{
			review("a", "j1", model.RoundPrelim, 5, 5),
			review("b", "j1", model.RoundPrelim, 9, 9),
			review("c", "j1", model.RoundPrelim, 7, 7),
			review("gone", "j1", model.RoundPrelim, 20, 20),
		}
		rows := aggregation.Aggregate(reviews, model.RoundPrelim, 1)
		teams := []model.Team{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}, {ID: "c", Name: "C"}}

		Convey("When asking for the top 2", func() {
			out := aggregation.FinalsCandidates(teams, rows, 2, 5)

			Convey("Then the best known teams are suggested in order", func() {
				So(out, ShouldHaveLength, 2)
				So(out[0].TeamID, ShouldEqual, "b")
				So(out[0].TeamName, ShouldEqual, "B")
				So(out[1].TeamID, ShouldEqual, "c")
			})
		})

		Convey("When topN exceeds the field", func() {
			So(aggregation.FinalsCandidates(teams, rows, 10, 5), ShouldHaveLength, 3)
		})

		Convey("When topN is unset the fallback applies", func() {
			out := aggregation.FinalsCandidates(teams, rows, 0, 1)
			So(out, ShouldHaveLength, 1)
			So(out[0].TeamID, ShouldEqual, "b")
			So(aggregation.FinalsCandidates(teams, rows, -3, 2), ShouldHaveLength, 2)
		})

		Convey("When neither is set every candidate is returned", func() {
			So(aggregation.FinalsCandidates(teams, rows, 0, 0), ShouldHaveLength, 3)
		})
	})
}
