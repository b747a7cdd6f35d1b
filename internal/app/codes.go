package service

import (
	"context"
	"errors"
	"strings"

	"github.com/okian/hackjudge/internal/adapters/repository"
	"github.com/okian/hackjudge/internal/domain/errs"
	"github.com/okian/hackjudge/internal/domain/model"
	"github.com/okian/hackjudge/internal/domain/roster"
	"github.com/okian/hackjudge/pkg/metrics"
)

// Owner kinds in the code index.
const (
	codeOwnerTeam  = "team"
	codeOwnerJudge = "judge"
)

// codeClaim is the code index entry. Teams and judges share one code space,
// so the entry is keyed by the code itself.
type codeClaim struct {
	Kind    string `json:"kind"`
	OwnerID string `json:"ownerId"`
}

// NormalizeCode trims and upper-cases a sign-in code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *Service) claimCode(ctx context.Context, op, code, kind, ownerID string) error {
	_, err := updateDoc(ctx, s.store, s.collection(collectionCodes), code, func(cur *codeClaim, exists bool) error {
		if exists {
			if cur.Kind == kind && cur.OwnerID == ownerID {
				return repository.ErrSkipWrite
			}
			return errs.Newf(op, errs.ErrConflict, "code %q is already in use", code)
		}
		*cur = codeClaim{Kind: kind, OwnerID: ownerID}
		return nil
	})
	return storeErr(op, err)
}

// releaseCode drops the index entry if ownerID still holds it.
func (s *Service) releaseCode(ctx context.Context, op, code, ownerID string) error {
	if code == "" {
		return nil
	}
	col := s.collection(collectionCodes)
	claim, err := getDoc[codeClaim](ctx, s.store, col, code)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return storeErr(op, err)
	}
	if claim.OwnerID != ownerID {
		return nil
	}
	if err := s.store.Delete(ctx, col, code); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return storeErr(op, err)
	}
	return nil
}

// usedCodes returns a registry of every code in the index.
func (s *Service) usedCodes(ctx context.Context, op string) (roster.Registry, error) {
	records, err := s.store.List(ctx, s.collection(collectionCodes), repository.Query{})
	if err != nil {
		return nil, storeErr(op, err)
	}
	codes := make([]string, len(records))
	for i, r := range records {
		codes[i] = r.ID
	}
	return roster.NewRegistry(codes...), nil
}

// newCode draws a free code and claims it for ownerID. Another writer can
// take the drawn code first, in which case a fresh one is drawn.
func (s *Service) newCode(ctx context.Context, op, kind, ownerID string) (string, error) {
	used, err := s.usedCodes(ctx, op)
	if err != nil {
		return "", err
	}
	const attempts = 5
	for i := 0; i < attempts; i++ {
		code, err := roster.UniqueCode(s.codes, used)
		if err != nil {
			return "", errs.Wrap(op, errs.ErrConflict, err)
		}
		err = s.claimCode(ctx, op, code, kind, ownerID)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, errs.ErrConflict) {
			return "", err
		}
	}
	return "", errs.New(op, errs.ErrConflict, "could not claim a free code")
}

// SignIn resolves a sign-in code to the caller it belongs to.
func (s *Service) SignIn(ctx context.Context, code string) (_ model.Caller, err error) {
	const op = "service.sign_in"
	ctx, end := s.span(ctx, op)
	defer func() { end(err) }()

	c, err := s.resolve(ctx, op, NormalizeCode(code))
	if err != nil {
		metrics.RecordSignIn("rejected")
		return model.Caller{}, err
	}
	metrics.RecordSignIn(string(c.Role))
	return c, nil
}

// Resolve maps a bearer code to its caller without recording a sign-in.
func (s *Service) Resolve(ctx context.Context, code string) (model.Caller, error) {
	return s.resolve(ctx, "service.resolve", NormalizeCode(code))
}

func (s *Service) resolve(ctx context.Context, op, code string) (model.Caller, error) {
	if len(code) == 0 {
		return model.Caller{}, errs.New(op, errs.ErrValidation, "code: required")
	}
	claim, err := getDoc[codeClaim](ctx, s.store, s.collection(collectionCodes), code)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Caller{}, errs.New(op, errs.ErrNotFound, "unknown code")
	}
	if err != nil {
		return model.Caller{}, storeErr(op, err)
	}

	switch claim.Kind {
	case codeOwnerTeam:
		t, err := s.getTeam(ctx, op, claim.OwnerID)
		if err != nil {
			return model.Caller{}, err
		}
		return model.Caller{Role: model.RoleTeam, ID: t.ID, Name: t.Name}, nil
	case codeOwnerJudge:
		j, err := s.getJudge(ctx, op, claim.OwnerID)
		if err != nil {
			return model.Caller{}, err
		}
		role := model.RoleJudge
		if j.IsAdmin {
			role = model.RoleAdmin
		}
		return model.Caller{Role: role, ID: j.ID, Name: j.Name}, nil
	default:
		return model.Caller{}, errs.Newf(op, errs.ErrStore, "code index entry with kind %q", claim.Kind)
	}
}
