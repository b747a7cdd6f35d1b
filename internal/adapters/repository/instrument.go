package repository

import (
	"context"
	"errors"
	"time"

	"github.com/okian/hackjudge/pkg/metrics"
)

// Instrumented wraps a Store and records latency and failures per operation.
type Instrumented struct {
	next   Store
	driver string
}

var _ Store = (*Instrumented)(nil)

// Instrument wraps s. driver labels the metrics, e.g. "postgres".
func Instrument(s Store, driver string) *Instrumented {
	return &Instrumented{next: s, driver: driver}
}

func (i *Instrumented) observe(op string, start time.Time, err error) {
	metrics.RecordStoreLatency(i.driver, op, float64(time.Since(start).Microseconds())/1000)
	if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrSkipWrite) {
		metrics.RecordStoreError(i.driver, op)
	}
}

func (i *Instrumented) Get(ctx context.Context, collection, id string) (Document, error) {
	start := time.Now()
	doc, err := i.next.Get(ctx, collection, id)
	i.observe("get", start, err)
	return doc, err
}

func (i *Instrumented) List(ctx context.Context, collection string, q Query) ([]Record, error) {
	start := time.Now()
	out, err := i.next.List(ctx, collection, q)
	i.observe("list", start, err)
	return out, err
}

func (i *Instrumented) Put(ctx context.Context, collection, id string, fields Document, mode Mode) error {
	start := time.Now()
	err := i.next.Put(ctx, collection, id, fields, mode)
	i.observe("put", start, err)
	return err
}

func (i *Instrumented) TransactionalUpdate(ctx context.Context, collection, id string, fn UpdateFunc) (Document, error) {
	start := time.Now()
	doc, err := i.next.TransactionalUpdate(ctx, collection, id, fn)
	i.observe("update", start, err)
	return doc, err
}

func (i *Instrumented) Delete(ctx context.Context, collection, id string) error {
	start := time.Now()
	err := i.next.Delete(ctx, collection, id)
	i.observe("delete", start, err)
	return err
}

func (i *Instrumented) Ping(ctx context.Context) error {
	return i.next.Ping(ctx)
}

func (i *Instrumented) Close() error {
	return i.next.Close()
}
