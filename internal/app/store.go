package service

import (
	"context"
	"errors"

	"github.com/okian/hackjudge/internal/adapters/repository"
	"github.com/okian/hackjudge/internal/domain/errs"
)

const (
	collectionCodes = "codes"
	rubricDocID     = "default"
)

func (s *Service) collection(name string) string {
	return repository.EventCollection(s.eventID, name)
}

// storeErr classifies a store failure. Errors that already carry a kind pass
// through unchanged.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errs.KindOf(err) != nil {
		return err
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return errs.Wrap(op, errs.ErrNotFound, err)
	case errors.Is(err, repository.ErrConflict):
		return errs.Wrap(op, errs.ErrConflict, err)
	case errors.Is(err, repository.ErrInvalidQuery), errors.Is(err, repository.ErrInvalidInput):
		return errs.Wrap(op, errs.ErrValidation, err)
	default:
		return errs.Wrap(op, errs.ErrStore, err)
	}
}

func getDoc[T any](ctx context.Context, store repository.Store, collection, id string) (T, error) {
	var out T
	doc, err := store.Get(ctx, collection, id)
	if err != nil {
		return out, err
	}
	err = repository.FromDocument(doc, &out)
	return out, err
}

func listDocs[T any](ctx context.Context, store repository.Store, collection string, q repository.Query) ([]T, error) {
	records, err := store.List(ctx, collection, q)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(records))
	for _, r := range records {
		var v T
		if err := repository.FromDocument(r.Data, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func putDoc(ctx context.Context, store repository.Store, collection, id string, v any) error {
	doc, err := repository.ToDocument(v)
	if err != nil {
		return err
	}
	return store.Put(ctx, collection, id, doc, repository.Replace)
}

// updateDoc runs a typed read-modify-write. fn mutates cur in place and may
// return repository.ErrSkipWrite to leave the stored value alone.
func updateDoc[T any](ctx context.Context, store repository.Store, collection, id string, fn func(cur *T, exists bool) error) (T, error) {
	var zero T
	doc, err := store.TransactionalUpdate(ctx, collection, id, func(current repository.Document, exists bool) (repository.Document, error) {
		var v T
		if exists {
			if err := repository.FromDocument(current, &v); err != nil {
				return nil, err
			}
		}
		if err := fn(&v, exists); err != nil {
			return nil, err
		}
		return repository.ToDocument(v)
	})
	if err != nil {
		return zero, err
	}
	if doc == nil {
		return zero, nil
	}
	var out T
	err = repository.FromDocument(doc, &out)
	return out, err
}

// kindLabel names the error kind for metric labels.
func kindLabel(err error) string {
	switch errs.KindOf(err) {
	case errs.ErrValidation:
		return "validation"
	case errs.ErrNotFound:
		return "not_found"
	case errs.ErrConflict:
		return "conflict"
	case errs.ErrForbidden:
		return "forbidden"
	case errs.ErrStore:
		return "store"
	default:
		return "internal"
	}
}
