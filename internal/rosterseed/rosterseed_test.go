package rosterseed_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/require"

	"github.com/okian/hackjudge/internal/adapters/http/api"
	"github.com/okian/hackjudge/internal/adapters/repository"
	service "github.com/okian/hackjudge/internal/app"
	"github.com/okian/hackjudge/internal/domain/model"
	"github.com/okian/hackjudge/internal/rosterseed"
	"github.com/okian/hackjudge/pkg/logger"
)

func TestMain(m *testing.M) {
	_ = logger.Init()
	os.Exit(m.Run())
}

const rosterYAML = `
teams:
  - name: Rocket
    members: [Ana, Bo]
    track: ai
  - name: Rocket
  - name: Blue Whale
judges:
  - name: Jo
    code: jo42
    capacity: 2
  - name: Kim
    code: KIM7
`

func TestParseRoster(t *testing.T) {
	Convey("Given roster YAML", t, func() {
		Convey("A well-formed file parses", func() {
			r, err := rosterseed.ParseRoster([]byte(rosterYAML))
			So(err, ShouldBeNil)
			So(r.Teams, ShouldHaveLength, 3)
			So(r.Teams[0].Members, ShouldResemble, []string{"Ana", "Bo"})
			So(*r.Judges[0].Capacity, ShouldEqual, 2)
		})

		Convey("Unknown keys are rejected", func() {
			_, err := rosterseed.ParseRoster([]byte("teams:\n  - name: A\n    colour: red\n"))
			So(errors.Is(err, rosterseed.ErrInvalidRoster), ShouldBeTrue)
		})

		Convey("Every problem is reported", func() {
			_, err := rosterseed.ParseRoster([]byte("teams:\n  - name: ''\njudges:\n  - name: A\n    code: x1\n  - name: B\n    code: X1\n  - name: C\n"))
			So(errors.Is(err, rosterseed.ErrInvalidRoster), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "teams[0].name is required")
			So(err.Error(), ShouldContainSubstring, "judges[1].code repeats judges[0].code")
			So(err.Error(), ShouldContainSubstring, "judges[2].code is required")
		})

		Convey("An empty file is rejected", func() {
			_, err := rosterseed.ParseRoster(nil)
			So(errors.Is(err, rosterseed.ErrInvalidRoster), ShouldBeTrue)
		})
	})
}

func newServer(t *testing.T) (*httptest.Server, *service.Service) {
	svc := service.New(repository.NewMemoryStore(),
		service.WithEventID("seed-test"),
		service.WithBootstrapAdmin("Organizer", "BOSS"),
	)
	require.NoError(t, svc.Start(context.Background()))
	srv := httptest.NewServer(api.NewServer(svc).Handler())
	t.Cleanup(srv.Close)
	return srv, svc
}

func TestSeed(t *testing.T) {
	Convey("Given a running service and a roster", t, func() {
		srv, svc := newServer(t)
		roster, err := rosterseed.ParseRoster([]byte(rosterYAML))
		So(err, ShouldBeNil)
		ctx := context.Background()
		admin := model.Caller{Role: model.RoleAdmin, ID: "system", Name: "system"}
		out := filepath.Join(t.TempDir(), "out", "codes.yaml")
		cfg := &rosterseed.Config{
			BaseURL:    srv.URL,
			AdminCode:  "boss",
			BatchSize:  2,
			Workers:    2,
			Timeout:    5 * time.Second,
			OutputFile: out,
		}

		Convey("A dry run plans teams and writes nothing", func() {
			cfg.DryRun = true
			res, err := rosterseed.Seed(ctx, cfg, roster)
			So(err, ShouldBeNil)
			So(res.Stats.TeamsPlanned, ShouldEqual, 3)
			So(res.Stats.TeamsCreated, ShouldEqual, 0)
			So(res.Stats.JudgesCreated, ShouldEqual, 0)

			teams, err := svc.ListTeams(ctx, admin, "")
			So(err, ShouldBeNil)
			So(teams, ShouldBeEmpty)
		})

		Convey("A real run creates every team and judge", func() {
			res, err := rosterseed.Seed(ctx, cfg, roster)
			So(err, ShouldBeNil)
			So(res.Stats.TeamsCreated, ShouldEqual, 3)
			So(res.Stats.JudgesCreated, ShouldEqual, 2)
			So(res.Credentials, ShouldHaveLength, 5)

			teams, err := svc.ListTeams(ctx, admin, "")
			So(err, ShouldBeNil)
			ids := make([]string, 0, len(teams))
			for _, tm := range teams {
				ids = append(ids, tm.ID)
			}
			So(ids, ShouldContain, "rocket")
			So(ids, ShouldContain, "rocket-2")
			So(ids, ShouldContain, "blue-whale")

			c, err := svc.SignIn(ctx, "JO42")
			So(err, ShouldBeNil)
			So(c.Role, ShouldEqual, model.RoleJudge)

			raw, err := os.ReadFile(out)
			So(err, ShouldBeNil)
			So(string(raw), ShouldContainSubstring, "credentials:")
			So(string(raw), ShouldContainSubstring, "JO42")

			Convey("A rerun counts existing judges instead of failing", func() {
				again, err := rosterseed.Seed(ctx, &rosterseed.Config{BaseURL: srv.URL, AdminCode: "BOSS", Timeout: 5 * time.Second},
					rosterseed.Roster{Judges: roster.Judges})
				So(err, ShouldBeNil)
				So(again.Stats.JudgesExisted, ShouldEqual, 2)
				So(again.Stats.JudgesCreated, ShouldEqual, 0)
			})
		})

		Convey("A non-admin code is refused", func() {
			_, err := svc.CreateJudge(ctx, admin, service.JudgeInput{Name: "Plain", Code: "PLAIN1"})
			So(err, ShouldBeNil)
			cfg.AdminCode = "PLAIN1"
			_, err = rosterseed.Seed(ctx, cfg, roster)
			So(errors.Is(err, rosterseed.ErrNotAdmin), ShouldBeTrue)
		})

		Convey("A wrong code is unauthorized", func() {
			cfg.AdminCode = "NOPE"
			_, err := rosterseed.Seed(ctx, cfg, roster)
			So(errors.Is(err, rosterseed.ErrUnauthorized), ShouldBeTrue)
		})
	})
}
