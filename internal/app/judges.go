package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/okian/hackjudge/internal/adapters/repository"
	"github.com/okian/hackjudge/internal/domain/allocation"
	"github.com/okian/hackjudge/internal/domain/errs"
	"github.com/okian/hackjudge/internal/domain/model"
	"github.com/okian/hackjudge/pkg/logger"
)

// JudgeInput holds the fields of a new judge.
type JudgeInput struct {
	Name     string `json:"name" validate:"required,max=120"`
	Code     string `json:"code" validate:"required,alphanum,max=16"`
	IsAdmin  bool   `json:"isAdmin"`
	Capacity *int   `json:"capacity,omitempty" validate:"omitempty,min=0"`
}

// JudgePatch changes a judge. Nil fields are left unchanged.
type JudgePatch struct {
	Name    *string `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	Code    *string `json:"code,omitempty" validate:"omitempty,alphanum,max=16"`
	IsAdmin *bool   `json:"isAdmin,omitempty"`
}

func (s *Service) listJudges(ctx context.Context) ([]model.Judge, error) {
	judges, err := listDocs[model.Judge](ctx, s.store, s.collection(repository.CollectionJudges),
		repository.Query{OrderBy: &repository.Order{Field: "name"}})
	return judges, storeErr("service.list_judges", err)
}

func (s *Service) getJudge(ctx context.Context, op, id string) (model.Judge, error) {
	if id == "" {
		return model.Judge{}, errs.New(op, errs.ErrValidation, "judgeId: required")
	}
	j, err := getDoc[model.Judge](ctx, s.store, s.collection(repository.CollectionJudges), id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Judge{}, errs.Newf(op, errs.ErrNotFound, "judge %q", id)
	}
	return j, storeErr(op, err)
}

func (s *Service) mutateJudge(ctx context.Context, caller model.Caller, op, id string, fn func(j *model.Judge) error) (model.Judge, error) {
	j, err := updateDoc(ctx, s.store, s.collection(repository.CollectionJudges), id, func(cur *model.Judge, exists bool) error {
		if !exists {
			return errs.Newf(op, errs.ErrNotFound, "judge %q", id)
		}
		if err := fn(cur); err != nil {
			return err
		}
		audit := caller.Audit(s.now())
		cur.UpdatedAt = audit.At
		cur.Audit = &audit
		return nil
	})
	return j, storeErr(op, err)
}

func viewJudge(caller model.Caller, j model.Judge) model.Judge {
	if caller.IsAdmin() || caller.ID == j.ID {
		return j
	}
	j.Code = ""
	return j
}

// ListJudges returns every judge in name order. Teams may not list judges.
func (s *Service) ListJudges(ctx context.Context, caller model.Caller) ([]model.Judge, error) {
	const op = "service.list_judges"
	if caller.Role == model.RoleTeam {
		return nil, errs.New(op, errs.ErrForbidden, "teams may not list judges")
	}
	judges, err := s.listJudges(ctx)
	if err != nil {
		return nil, err
	}
	for i := range judges {
		judges[i] = viewJudge(caller, judges[i])
	}
	return judges, nil
}

// GetJudge returns one judge.
func (s *Service) GetJudge(ctx context.Context, caller model.Caller, id string) (model.Judge, error) {
	const op = "service.get_judge"
	if caller.Role == model.RoleTeam {
		return model.Judge{}, errs.New(op, errs.ErrForbidden, "teams may not read judges")
	}
	j, err := s.getJudge(ctx, op, id)
	if err != nil {
		return model.Judge{}, err
	}
	return viewJudge(caller, j), nil
}

// CreateJudge adds a judge. The code is required and must be unused.
func (s *Service) CreateJudge(ctx context.Context, caller model.Caller, in JudgeInput) (_ model.Judge, err error) {
	const op = "service.create_judge"
	ctx, end := s.span(ctx, op, callerAttrs(caller)...)
	defer func() { end(err) }()

	if err := requireAdmin(op, caller); err != nil {
		return model.Judge{}, err
	}
	v := errs.NewValidation(op)
	name, code := strings.TrimSpace(in.Name), NormalizeCode(in.Code)
	if name == "" {
		v.Addf("name: required")
	}
	if code == "" {
		v.Addf("code: required")
	}
	if err := allocation.ValidateCapacity(in.Capacity); err != nil {
		v.Addf("capacity: must not be negative")
	}
	if err := v.Err(); err != nil {
		return model.Judge{}, err
	}

	id := uuid.NewString()
	if err := s.claimCode(ctx, op, code, codeOwnerJudge, id); err != nil {
		return model.Judge{}, err
	}
	now := s.now().UTC()
	audit := caller.Audit(now)
	j := model.Judge{
		ID:              id,
		Name:            name,
		Code:            code,
		IsAdmin:         in.IsAdmin,
		AssignedTeamIDs: []string{},
		Capacity:        in.Capacity,
		CreatedAt:       now,
		UpdatedAt:       now,
		Audit:           &audit,
	}
	if err := putDoc(ctx, s.store, s.collection(repository.CollectionJudges), id, j); err != nil {
		_ = s.releaseCode(ctx, op, code, id)
		return model.Judge{}, storeErr(op, err)
	}
	s.logger.Info(ctx, "judge created", logger.String("judge", id), logger.Bool("admin", j.IsAdmin))
	return j, nil
}

// UpdateJudge changes name, code or the admin flag. A new code is claimed
// before the old one is released.
func (s *Service) UpdateJudge(ctx context.Context, caller model.Caller, id string, patch JudgePatch) (_ model.Judge, err error) {
	const op = "service.update_judge"
	ctx, end := s.span(ctx, op, append(callerAttrs(caller), attribute.String("judge.id", id))...)
	defer func() { end(err) }()

	if err := requireAdmin(op, caller); err != nil {
		return model.Judge{}, err
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return model.Judge{}, errs.New(op, errs.ErrValidation, "name: must not be empty")
	}
	if patch.IsAdmin != nil && !*patch.IsAdmin && caller.ID == id {
		return model.Judge{}, errs.New(op, errs.ErrConflict, "admins may not demote themselves")
	}
	prev, err := s.getJudge(ctx, op, id)
	if err != nil {
		return model.Judge{}, err
	}
	newCode := ""
	if patch.Code != nil {
		newCode = NormalizeCode(*patch.Code)
		if newCode == "" {
			return model.Judge{}, errs.New(op, errs.ErrValidation, "code: must not be empty")
		}
		if newCode == prev.Code {
			newCode = ""
		} else if err := s.claimCode(ctx, op, newCode, codeOwnerJudge, id); err != nil {
			return model.Judge{}, err
		}
	}

	j, err := s.mutateJudge(ctx, caller, op, id, func(j *model.Judge) error {
		if patch.Name != nil {
			j.Name = strings.TrimSpace(*patch.Name)
		}
		if newCode != "" {
			j.Code = newCode
		}
		if patch.IsAdmin != nil {
			j.IsAdmin = *patch.IsAdmin
		}
		return nil
	})
	if err != nil {
		if newCode != "" {
			_ = s.releaseCode(ctx, op, newCode, id)
		}
		return model.Judge{}, err
	}
	if newCode != "" {
		if err := s.releaseCode(ctx, op, prev.Code, id); err != nil {
			s.logger.Warn(ctx, "releasing old judge code", logger.String("judge", id), logger.Error(err))
		}
	}
	return j, nil
}

// SetCapacity sets or clears a judge's capacity. Existing assignments are
// not rebalanced.
func (s *Service) SetCapacity(ctx context.Context, caller model.Caller, id string, capacity *int) (_ model.Judge, err error) {
	const op = "service.set_capacity"
	ctx, end := s.span(ctx, op, append(callerAttrs(caller), attribute.String("judge.id", id))...)
	defer func() { end(err) }()

	if err := requireAdmin(op, caller); err != nil {
		return model.Judge{}, err
	}
	if err := allocation.ValidateCapacity(capacity); err != nil {
		return model.Judge{}, err
	}
	return s.mutateJudge(ctx, caller, op, id, func(j *model.Judge) error {
		if capacity == nil {
			j.Capacity = nil
			return nil
		}
		c := *capacity
		j.Capacity = &c
		return nil
	})
}

// DeleteJudge removes a judge and frees its code. Its reviews are kept and
// it is dropped from the finals panel.
func (s *Service) DeleteJudge(ctx context.Context, caller model.Caller, id string) (err error) {
	const op = "service.delete_judge"
	ctx, end := s.span(ctx, op, append(callerAttrs(caller), attribute.String("judge.id", id))...)
	defer func() { end(err) }()

	if err := requireAdmin(op, caller); err != nil {
		return err
	}
	if caller.ID == id {
		return errs.New(op, errs.ErrConflict, "admins may not delete themselves")
	}
	j, err := s.getJudge(ctx, op, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, s.collection(repository.CollectionJudges), id); err != nil {
		return storeErr(op, err)
	}
	if err := s.releaseCode(ctx, op, j.Code, id); err != nil {
		s.logger.Warn(ctx, "releasing judge code", logger.String("judge", id), logger.Error(err))
	}
	_, err = s.mutateEvent(ctx, caller, op, func(ev *model.Event) error {
		if !model.ContainsID(ev.FinalsJudgeIDs, id) {
			return repository.ErrSkipWrite
		}
		ev.FinalsJudgeIDs = model.RemoveID(ev.FinalsJudgeIDs, id)
		return nil
	})
	return err
}
