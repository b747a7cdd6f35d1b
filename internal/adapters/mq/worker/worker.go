// Package worker runs batches of independent writes with bounded
// concurrency and reports which succeeded.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/hackjudge/pkg/logger"
	"github.com/okian/hackjudge/pkg/metrics"
)

const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	slowJobThreshold        = 2 * time.Second
)

// Job is one keyed unit of work, e.g. writing one judge's assignment set.
type Job struct {
	Key string
	Do  func(ctx context.Context) error
}

// Failure names a job that did not complete.
type Failure struct {
	Key string `json:"key"`
	Err error  `json:"-"`
}

// Error formats the key with its cause.
func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Key, f.Err)
}

// Report lists job keys in submission order.
type Report struct {
	Updated []string
	Failed  []Failure
}

// OK reports whether every job succeeded.
func (r Report) OK() bool { return len(r.Failed) == 0 }

// FailedKeys returns the keys of failed jobs.
func (r Report) FailedKeys() []string {
	out := make([]string, len(r.Failed))
	for i, f := range r.Failed {
		out[i] = f.Key
	}
	return out
}

// Pool fans jobs out to a bounded set of goroutines.
type Pool struct {
	name   string
	size   int
	logger logger.Logger
}

// NewPool creates a pool. The default size is twice the CPU count.
func NewPool(opts ...Option) *Pool {
	p := &Pool{
		name:   "worker-pool",
		size:   runtime.NumCPU() * defaultWorkerMultiplier,
		logger: logger.Get().Named("worker-pool"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Size returns the concurrency bound.
func (p *Pool) Size() int { return p.size }

type outcome struct {
	err  error
	done bool
}

// Run executes jobs and waits for all of them. Jobs not yet started when
// ctx is cancelled fail with the context error. A panicking job is reported
// as failed.
func (p *Pool) Run(ctx context.Context, jobs []Job) Report {
	results := make([]outcome, len(jobs))
	next := make(chan int)

	workers := p.size
	if workers > len(jobs) {
		workers = len(jobs)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				results[i] = outcome{err: p.runJob(ctx, jobs[i]), done: true}
			}
		}()
	}

feed:
	for i := range jobs {
		select {
		case <-ctx.Done():
			break feed
		case next <- i:
		}
	}
	close(next)
	wg.Wait()

	var report Report
	for i, job := range jobs {
		r := results[i]
		switch {
		case !r.done:
			report.Failed = append(report.Failed, Failure{Key: job.Key, Err: ctx.Err()})
		case r.err != nil:
			report.Failed = append(report.Failed, Failure{Key: job.Key, Err: r.err})
		default:
			report.Updated = append(report.Updated, job.Key)
		}
	}
	if len(report.Failed) > 0 {
		metrics.RecordErrorByComponent(p.name, "job_failed")
		p.logger.Warn(ctx, "batch finished with failures",
			logger.Int("updated", len(report.Updated)),
			logger.Strings("failed", report.FailedKeys()))
	}
	return report
}

func (p *Pool) runJob(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Key, r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	err = job.Do(ctx)
	if took := time.Since(start); took > slowJobThreshold {
		p.logger.Warn(ctx, "slow job", logger.String("key", job.Key), logger.Int64("ms", took.Milliseconds()))
	}
	return err
}
