package roster_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/okian/hackjudge/internal/domain/errs"
	"github.com/okian/hackjudge/internal/domain/roster"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Codeinators":            "codeinators",
		"  Team 21  ":            "team-21",
		"Café Olé!!":             "cafe-ole",
		"--JASC--":               "jasc",
		"???":                    "team",
		"":                       "team",
		strings.Repeat("ab ", 30): "ab-ab-ab-ab-ab-ab-ab-ab-ab-ab-ab-ab-ab-a",
	}
	for in, want := range cases {
		assert.Equal(t, want, roster.Slugify(in), "slug of %q", in)
	}
}

func TestUniqueSlug(t *testing.T) {
	Convey("Given ids already taken", t, func() {
		taken := roster.NewRegistry("team-1", "team-1-2")

		So(roster.UniqueSlug("team-1", taken), ShouldEqual, "team-1-3")
		So(roster.UniqueSlug("team-1", taken), ShouldEqual, "team-1-4")
		So(roster.UniqueSlug("fresh", taken), ShouldEqual, "fresh")
	})
}

func TestAnonymizedName(t *testing.T) {
	Convey("Given team ids", t, func() {
		So(roster.AnonymizedName("codeinators"), ShouldEqual, "Team CODE")
		So(roster.AnonymizedName("ab"), ShouldEqual, "Team AB")
	})
}

func TestUniqueCode(t *testing.T) {
	Convey("Given a source that repeats itself", t, func() {
		draws := []string{"AAAA", "AAAA", "BBBB"}
		src := func() (string, error) {
			c := draws[0]
			draws = draws[1:]
			return c, nil
		}
		used := roster.NewRegistry("AAAA")

		Convey("Then used codes are skipped and the new one recorded", func() {
			code, err := roster.UniqueCode(src, used)
			So(err, ShouldBeNil)
			So(code, ShouldEqual, "BBBB")
			So(used.SeenAndRecord("BBBB"), ShouldBeTrue)
		})
	})

	Convey("Given a source that never yields a free code", t, func() {
		used := roster.NewRegistry("ZZZZ")
		_, err := roster.UniqueCode(func() (string, error) { return "ZZZZ", nil }, used)
		So(errors.Is(err, roster.ErrCodeSpaceExhausted), ShouldBeTrue)
	})

	Convey("Given the random source", t, func() {
		code, err := roster.RandomCode()
		So(err, ShouldBeNil)
		So(code, ShouldHaveLength, roster.CodeLength)
		So(strings.Trim(code, "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"), ShouldBeEmpty)
	})
}

func TestPlanSeed(t *testing.T) {
	Convey("Given an existing roster and a seed with colliding names", t, func() {
		used := roster.NewRegistry("JUDG")
		rows := []roster.SeedTeam{
			{Name: "Team 20", Members: []string{"Simon", " ", "Luke"}},
			{Name: "Team 20"},
			{Name: "JASC", Track: " web "},
		}
		plan, err := roster.PlanSeed([]string{"team-20"}, used, rows, nil)

		Convey("Then ids and codes are unique across the roster and the run", func() {
			So(err, ShouldBeNil)
			So(plan, ShouldHaveLength, 3)
			So(plan[0].TeamID, ShouldEqual, "team-20-2")
			So(plan[1].TeamID, ShouldEqual, "team-20-3")
			So(plan[2].TeamID, ShouldEqual, "jasc")
			So(plan[0].Members, ShouldResemble, []string{"Simon", "Luke"})
			So(plan[2].Track, ShouldEqual, "web")

			codes := map[string]bool{"JUDG": true}
			for _, r := range plan {
				So(codes[r.TeamCode], ShouldBeFalse)
				codes[r.TeamCode] = true
			}
			So(used.Size(), ShouldEqual, 4)
		})

		Convey("Then a row converts to a blank team", func() {
			team := plan[0].Team()
			So(team.ImageURLs, ShouldBeEmpty)
			So(team.TeamCode, ShouldEqual, plan[0].TeamCode)
		})
	})

	Convey("Given a seed row without a name", t, func() {
		_, err := roster.PlanSeed(nil, roster.NewRegistry(), []roster.SeedTeam{{Name: " "}}, nil)
		So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
	})
}
