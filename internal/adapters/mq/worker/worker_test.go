package worker_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/hackjudge/internal/adapters/mq/worker"
	"github.com/okian/hackjudge/pkg/logger"
)

func init() {
	_ = logger.Init()
}

func TestPoolRun(t *testing.T) {
	Convey("Given a pool of two", t, func() {
		pool := worker.NewPool(worker.WithSize(2), worker.WithName("test-pool"))
		So(pool.Size(), ShouldEqual, 2)

		Convey("When jobs succeed and fail", func() {
			var running, peak atomic.Int32
			job := func(fail bool) func(context.Context) error {
				return func(context.Context) error {
					n := running.Add(1)
					for {
						p := peak.Load()
						if n <= p || peak.CompareAndSwap(p, n) {
							break
						}
					}
					time.Sleep(10 * time.Millisecond)
					running.Add(-1)
					if fail {
						return errors.New("write failed")
					}
					return nil
				}
			}
			report := pool.Run(context.Background(), []worker.Job{
				{Key: "j1", Do: job(false)},
				{Key: "j2", Do: job(true)},
				{Key: "j3", Do: job(false)},
				{Key: "j4", Do: func(context.Context) error { panic("boom") }},
			})

			Convey("Then the report keeps submission order and concurrency is bounded", func() {
				So(report.Updated, ShouldResemble, []string{"j1", "j3"})
				So(report.FailedKeys(), ShouldResemble, []string{"j2", "j4"})
				So(report.OK(), ShouldBeFalse)
				So(report.Failed[1].Error(), ShouldContainSubstring, "panicked")
				So(peak.Load(), ShouldBeLessThanOrEqualTo, 2)
			})
		})

		Convey("When the context is already cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			var calls atomic.Int32
			report := pool.Run(ctx, []worker.Job{
				{Key: "a", Do: func(context.Context) error { calls.Add(1); return nil }},
				{Key: "b", Do: func(context.Context) error { calls.Add(1); return nil }},
			})

			Convey("Then nothing runs and every job is failed", func() {
				So(calls.Load(), ShouldEqual, 0)
				So(report.Failed, ShouldHaveLength, 2)
				So(errors.Is(report.Failed[0].Err, context.Canceled), ShouldBeTrue)
			})
		})

		Convey("When there are no jobs", func() {
			report := pool.Run(context.Background(), nil)
			So(report.OK(), ShouldBeTrue)
			So(report.Updated, ShouldBeEmpty)
		})
	})
}
