// Package repository defines the document store used by the judging core
// and its memory, Postgres and Redis implementations.
package repository

import (
	"context"
)

// Document is a JSON object keyed by top-level field name.
type Document map[string]any

// Record is a stored document together with its id.
type Record struct {
	ID   string
	Data Document
}

// Mode selects how Put treats an existing document.
type Mode int

const (
	// Replace overwrites the whole document.
	Replace Mode = iota
	// Merge overwrites only the given top-level fields.
	Merge
)

// Filter matches documents whose top-level Field equals Value.
type Filter struct {
	Field string
	Value any
}

// Order sorts by a top-level field. Ties fall back to the id.
type Order struct {
	Field string
	Desc  bool
}

// Query narrows a List call. The zero value lists everything by id.
type Query struct {
	Filters []Filter
	OrderBy *Order
	Limit   int
}

// Where appends an equality filter.
func (q Query) Where(field string, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Value: value})
	return q
}

// UpdateFunc receives the stored document, or nil with exists false, and
// returns the document to write. Returning ErrSkipWrite leaves the store
// untouched. It may be called more than once when a write races, and must
// not call the store itself.
type UpdateFunc func(current Document, exists bool) (Document, error)

// Store provides read/write access to collections of documents.
type Store interface {
	// Get returns ErrNotFound when the document does not exist.
	Get(ctx context.Context, collection, id string) (Document, error)

	List(ctx context.Context, collection string, q Query) ([]Record, error)

	// Put creates the document or updates it according to mode.
	Put(ctx context.Context, collection, id string, fields Document, mode Mode) error

	// TransactionalUpdate runs a read-modify-write on one document and
	// returns what was written, or the current document on ErrSkipWrite.
	TransactionalUpdate(ctx context.Context, collection, id string, fn UpdateFunc) (Document, error)

	// Delete returns ErrNotFound when the document does not exist.
	Delete(ctx context.Context, collection, id string) error

	Ping(ctx context.Context) error
	Close() error
}

// Collection names under one event.
const (
	CollectionEvents  = "events"
	CollectionTeams   = "teams"
	CollectionJudges  = "judges"
	CollectionReviews = "reviews"
	CollectionRubric  = "rubric"
)

// EventCollection returns the path of a collection nested under an event,
// e.g. events/hello-hacks/teams.
func EventCollection(eventID, name string) string {
	return CollectionEvents + "/" + eventID + "/" + name
}
