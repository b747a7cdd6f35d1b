package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/hackjudge/internal/adapters/repository"
	service "github.com/okian/hackjudge/internal/app"
	"github.com/okian/hackjudge/internal/domain/errs"
	"github.com/okian/hackjudge/internal/domain/model"
)

func TestResults(t *testing.T) {
	Convey("Given reviews for three teams", t, func() {
		f := newFixture()
		a := f.team("Alpha")
		b := f.team("Beta")
		c := f.team("Gamma")
		judges := []model.Judge{f.judge("Judy", "J1"), f.judge("Kim", "J2"), f.judge("Lee", "J3")}

		review := func(tm model.Team, j model.Judge, v float64) {
			_, err := f.svc.SubmitReview(f.ctx, root, service.ReviewInput{TeamID: tm.ID, JudgeID: j.ID, Scores: scores(v, v, v, v)})
			So(err, ShouldBeNil)
		}
		for _, j := range judges {
			review(a, j, 4)
		}
		review(b, judges[0], 4)
		review(c, judges[0], 5)

		Convey("Rows are ranked by average then review count", func() {
			board, err := f.svc.Results(f.ctx, root, model.RoundPrelim, false)
			So(err, ShouldBeNil)
			So(board.Rows, ShouldHaveLength, 3)
			So(board.Rows[0].TeamID, ShouldEqual, c.ID)
			So(board.Rows[1].TeamID, ShouldEqual, a.ID)
			So(board.Rows[2].TeamID, ShouldEqual, b.ID)
			So(board.Rows[1].Rank, ShouldEqual, 2)
			So(board.Rows[2].Rank, ShouldEqual, 3)
			So(board.Rows[1].MeetsCoverage, ShouldBeTrue)
			So(board.Rows[1].AvgWeighted, ShouldEqual, 16.0)
		})

		Convey("Under-covered teams can be hidden", func() {
			board, err := f.svc.Results(f.ctx, root, "", true)
			So(err, ShouldBeNil)
			So(board.Rows, ShouldHaveLength, 1)
			So(board.Rows[0].TeamID, ShouldEqual, a.ID)
		})

		Convey("Judges lose access when results are hidden", func() {
			off := false
			_, err := f.svc.UpdateSettings(f.ctx, root, model.SettingsPatch{ShowResults: &off})
			So(err, ShouldBeNil)
			_, err = f.svc.Results(f.ctx, asJudge(judges[0]), "", false)
			So(errors.Is(err, errs.ErrForbidden), ShouldBeTrue)
			_, err = f.svc.Results(f.ctx, root, "", false)
			So(err, ShouldBeNil)
		})

		Convey("Finals results are hidden from judges by default", func() {
			_, err := f.svc.Results(f.ctx, asJudge(judges[0]), model.RoundFinals, false)
			So(errors.Is(err, errs.ErrForbidden), ShouldBeTrue)
		})

		Convey("Anonymized boards hide names from non-admins", func() {
			on := true
			_, err := f.svc.UpdateSettings(f.ctx, root, model.SettingsPatch{AnonymizeTeams: &on})
			So(err, ShouldBeNil)

			board, err := f.svc.Results(f.ctx, asJudge(judges[0]), "", false)
			So(err, ShouldBeNil)
			So(board.Rows[0].TeamName, ShouldEqual, "Team GAMM")

			board, err = f.svc.Results(f.ctx, root, "", false)
			So(err, ShouldBeNil)
			So(board.Rows[0].TeamName, ShouldEqual, "Gamma")
		})

		Convey("Concurrent requests agree", func() {
			var wg sync.WaitGroup
			boards := make([]service.Leaderboard, 8)
			for i := range boards {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					boards[i], _ = f.svc.Results(f.ctx, root, "", false)
				}(i)
			}
			wg.Wait()
			for _, b := range boards {
				So(b.Rows, ShouldHaveLength, 3)
				So(b.Rows[0].TeamID, ShouldEqual, c.ID)
			}
		})

		Convey("Finals boards cover only finals teams", func() {
			f.phase(model.PhaseJudging)
			_, err := f.svc.StartFinals(f.ctx, root, service.FinalsSelection{TeamIDs: []string{a.ID, b.ID}, JudgeIDs: []string{judges[1].ID}})
			So(err, ShouldBeNil)
			_, err = f.svc.SubmitReview(f.ctx, asJudge(judges[1]), service.ReviewInput{
				TeamID: b.ID, JudgeID: judges[1].ID, Round: model.RoundFinals, Scores: scores(5, 5, 5, 5),
			})
			So(err, ShouldBeNil)

			board, err := f.svc.Results(f.ctx, root, model.RoundFinals, false)
			So(err, ShouldBeNil)
			So(board.RequiredJudgeCount, ShouldEqual, 1)
			So(board.Rows, ShouldHaveLength, 2)
			So(board.Rows[0].TeamID, ShouldEqual, b.ID)
			So(board.Rows[1].ReviewCount, ShouldEqual, 0)
		})
	})
}

// gatedReviews holds review listings until release is closed. A listing
// whose context ends first fails with the context error.
type gatedReviews struct {
	repository.Store
	collection string
	entered    chan struct{}
	release    chan struct{}
	once       sync.Once
}

func (g *gatedReviews) List(ctx context.Context, collection string, q repository.Query) ([]repository.Record, error) {
	if collection == g.collection {
		g.once.Do(func() { close(g.entered) })
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-g.release:
		}
	}
	return g.Store.List(ctx, collection, q)
}

func TestResultsCallerCancellation(t *testing.T) {
	Convey("Given a results computation that is still running", t, func() {
		f := newFixture()
		a := f.team("Alpha")
		j := f.judge("Judy", "J1")
		_, err := f.svc.SubmitReview(f.ctx, root, service.ReviewInput{TeamID: a.ID, JudgeID: j.ID, Scores: scores(4, 4, 4, 4)})
		So(err, ShouldBeNil)

		gate := &gatedReviews{
			Store:      f.store,
			collection: repository.EventCollection("test-event", repository.CollectionReviews),
			entered:    make(chan struct{}),
			release:    make(chan struct{}),
		}
		svc := service.New(gate, service.WithEventID("test-event"))

		first, cancelFirst := context.WithCancel(context.Background())
		firstErr := make(chan error, 1)
		go func() {
			_, err := svc.Results(first, root, model.RoundPrelim, false)
			firstErr <- err
		}()
		<-gate.entered

		type outcome struct {
			board service.Leaderboard
			err   error
		}
		second := make(chan outcome, 1)
		go func() {
			board, err := svc.Results(context.Background(), root, model.RoundPrelim, false)
			second <- outcome{board, err}
		}()

		Convey("When the first caller gives up", func() {
			cancelFirst()

			Convey("Then only that caller sees its context error", func() {
				var err error
				select {
				case err = <-firstErr:
				case <-time.After(2 * time.Second):
					err = errors.New("first caller did not return")
				}
				So(errors.Is(err, context.Canceled), ShouldBeTrue)

				time.Sleep(20 * time.Millisecond)
				close(gate.release)
				got := <-second
				So(got.err, ShouldBeNil)
				So(got.board.Rows, ShouldHaveLength, 1)
				So(got.board.Rows[0].TeamID, ShouldEqual, a.ID)
			})
		})
	})
}
