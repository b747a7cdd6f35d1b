package service

import (
	"context"
	"errors"
	"path"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/okian/hackjudge/internal/adapters/blob"
	workerpool "github.com/okian/hackjudge/internal/adapters/mq/worker"
	"github.com/okian/hackjudge/internal/adapters/repository"
	"github.com/okian/hackjudge/internal/domain/errs"
	"github.com/okian/hackjudge/internal/domain/model"
	"github.com/okian/hackjudge/internal/domain/policy"
	"github.com/okian/hackjudge/internal/domain/roster"
	"github.com/okian/hackjudge/pkg/logger"
)

// TeamInput holds the roster fields of a team.
type TeamInput struct {
	Name     string   `json:"name" validate:"required,max=120"`
	Members  []string `json:"members" validate:"omitempty,dive,max=120"`
	Track    string   `json:"track,omitempty" validate:"omitempty,max=64"`
	TeamCode string   `json:"teamCode,omitempty" validate:"omitempty,alphanum,max=16"`
}

// TeamPatch changes roster fields. Nil fields are left unchanged.
type TeamPatch struct {
	Name    *string  `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	Members []string `json:"members,omitempty" validate:"omitempty,dive,max=120"`
	Track   *string  `json:"track,omitempty" validate:"omitempty,max=64"`
}

// DeleteTeamReport lists the images that could not be removed.
type DeleteTeamReport struct {
	TeamID        string   `json:"teamId"`
	JudgesUpdated []string `json:"judgesUpdated"`
	FailedJudges  []string `json:"failedJudges"`
	FailedImages  []string `json:"failedImages"`
}

func (s *Service) listTeams(ctx context.Context) ([]model.Team, error) {
	teams, err := listDocs[model.Team](ctx, s.store, s.collection(repository.CollectionTeams),
		repository.Query{OrderBy: &repository.Order{Field: "name"}})
	return teams, storeErr("service.list_teams", err)
}

func (s *Service) getTeam(ctx context.Context, op, id string) (model.Team, error) {
	if id == "" {
		return model.Team{}, errs.New(op, errs.ErrValidation, "teamId: required")
	}
	t, err := getDoc[model.Team](ctx, s.store, s.collection(repository.CollectionTeams), id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Team{}, errs.Newf(op, errs.ErrNotFound, "team %q", id)
	}
	return t, storeErr(op, err)
}

// viewTeam hides the sign-in code from everyone but admins and the team.
func viewTeam(caller model.Caller, t model.Team) model.Team {
	if caller.IsAdmin() || (caller.Role == model.RoleTeam && caller.ID == t.ID) {
		return t
	}
	t.TeamCode = ""
	return t
}

// ListTeams returns the roster in name order. An empty track lists every
// team.
func (s *Service) ListTeams(ctx context.Context, caller model.Caller, track string) ([]model.Team, error) {
	teams, err := s.listTeams(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Team, 0, len(teams))
	for _, t := range teams {
		if track != "" && !strings.EqualFold(t.Track, track) {
			continue
		}
		out = append(out, viewTeam(caller, t))
	}
	return out, nil
}

// GetTeam returns one team.
func (s *Service) GetTeam(ctx context.Context, caller model.Caller, id string) (model.Team, error) {
	t, err := s.getTeam(ctx, "service.get_team", id)
	if err != nil {
		return model.Team{}, err
	}
	return viewTeam(caller, t), nil
}

// CreateTeam adds a team with a slug id. A code is generated when none is
// given.
func (s *Service) CreateTeam(ctx context.Context, caller model.Caller, in TeamInput) (_ model.Team, err error) {
	const op = "service.create_team"
	ctx, end := s.span(ctx, op, callerAttrs(caller)...)
	defer func() { end(err) }()

	if err := requireAdmin(op, caller); err != nil {
		return model.Team{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Team{}, errs.New(op, errs.ErrValidation, "name: required")
	}
	teams, err := s.listTeams(ctx)
	if err != nil {
		return model.Team{}, err
	}
	ids := make([]string, len(teams))
	for i, t := range teams {
		ids[i] = t.ID
	}
	taken := roster.NewRegistry(ids...)

	now := s.now().UTC()
	audit := caller.Audit(now)
	t := roster.PlanRow{
		TeamID:   roster.UniqueSlug(roster.Slugify(name), taken),
		Name:     name,
		Members:  model.UniqueIDs(trimAll(in.Members)),
		Track:    strings.TrimSpace(in.Track),
		TeamCode: NormalizeCode(in.TeamCode),
	}.Team()
	t.CreatedAt, t.UpdatedAt, t.Audit = now, now, &audit

	t, err = s.storeTeam(ctx, op, t, taken)
	if err != nil {
		return model.Team{}, err
	}
	s.logger.Info(ctx, "team created", logger.String("team", t.ID), logger.String("by", caller.ID))
	return t, nil
}

// errTeamIDTaken marks a create that lost its id to another writer.
var errTeamIDTaken = errors.New("team id taken")

const teamIDAttempts = 5

// storeTeam claims t's code and writes t only if its id is still free. When
// another writer took the id first, the code claim is released and the next
// free slug is tried. An empty TeamCode gets a generated code.
func (s *Service) storeTeam(ctx context.Context, op string, t model.Team, taken roster.Registry) (model.Team, error) {
	base, requested := roster.Slugify(t.Name), t.TeamCode
	col := s.collection(repository.CollectionTeams)
	for attempt := 1; ; attempt++ {
		var err error
		if requested != "" {
			t.TeamCode, err = requested, s.claimCode(ctx, op, requested, codeOwnerTeam, t.ID)
		} else {
			t.TeamCode, err = s.newCode(ctx, op, codeOwnerTeam, t.ID)
		}
		if err != nil {
			return model.Team{}, err
		}

		_, err = updateDoc(ctx, s.store, col, t.ID, func(cur *model.Team, exists bool) error {
			if exists {
				return errs.Wrap(op, errs.ErrConflict, errTeamIDTaken)
			}
			*cur = t
			return nil
		})
		if err == nil {
			return t, nil
		}
		_ = s.releaseCode(ctx, op, t.TeamCode, t.ID)
		if !errors.Is(err, errTeamIDTaken) || attempt == teamIDAttempts {
			return model.Team{}, storeErr(op, err)
		}
		s.logger.Debug(ctx, "team id taken, retrying", logger.String("team", t.ID))
		t.ID = roster.UniqueSlug(base, taken)
	}
}

// UpdateTeam changes roster fields.
func (s *Service) UpdateTeam(ctx context.Context, caller model.Caller, id string, patch TeamPatch) (_ model.Team, err error) {
	const op = "service.update_team"
	ctx, end := s.span(ctx, op, append(callerAttrs(caller), attribute.String("team.id", id))...)
	defer func() { end(err) }()

	if err := requireAdmin(op, caller); err != nil {
		return model.Team{}, err
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return model.Team{}, errs.New(op, errs.ErrValidation, "name: must not be empty")
	}
	return s.mutateTeam(ctx, caller, op, id, func(t *model.Team) error {
		if patch.Name != nil {
			t.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Members != nil {
			t.Members = model.UniqueIDs(trimAll(patch.Members))
		}
		if patch.Track != nil {
			t.Track = strings.TrimSpace(*patch.Track)
		}
		return nil
	})
}

// UpdateSubmission edits a team's project fields. Teams may edit only
// themselves, and only while submissions are open.
func (s *Service) UpdateSubmission(ctx context.Context, caller model.Caller, id string, sub model.Submission) (_ model.Team, err error) {
	const op = "service.update_submission"
	ctx, end := s.span(ctx, op, append(callerAttrs(caller), attribute.String("team.id", id))...)
	defer func() { end(err) }()

	ev, err := s.checkSubmissionAccess(ctx, op, caller, id)
	if err != nil {
		return model.Team{}, err
	}
	if sub.ImageURLs != nil && len(model.UniqueIDs(sub.ImageURLs)) > ev.MaxImages {
		return model.Team{}, errs.Newf(op, errs.ErrValidation, "imageUrls: at most %d images", ev.MaxImages)
	}
	if sub.TechStack != nil {
		sub.TechStack = model.UniqueIDs(trimAll(sub.TechStack))
	}
	return s.mutateTeam(ctx, caller, op, id, func(t *model.Team) error {
		sub.Apply(t)
		return nil
	})
}

// UploadImage stores an image and appends its URL to the team.
func (s *Service) UploadImage(ctx context.Context, caller model.Caller, id, filename string, data []byte) (_ model.Team, err error) {
	const op = "service.upload_image"
	ctx, end := s.span(ctx, op, append(callerAttrs(caller), attribute.String("team.id", id))...)
	defer func() { end(err) }()

	ev, err := s.checkSubmissionAccess(ctx, op, caller, id)
	if err != nil {
		return model.Team{}, err
	}
	if len(data) == 0 {
		return model.Team{}, errs.New(op, errs.ErrValidation, "image: empty upload")
	}
	t, err := s.getTeam(ctx, op, id)
	if err != nil {
		return model.Team{}, err
	}
	if len(t.ImageURLs) >= ev.MaxImages {
		return model.Team{}, errs.Newf(op, errs.ErrValidation, "imageUrls: at most %d images", ev.MaxImages)
	}

	url, err := s.blobs.Upload(ctx, path.Join("teams", id, path.Base(filename)), data)
	if errors.Is(err, blob.ErrTooLarge) || errors.Is(err, blob.ErrInvalidPath) {
		return model.Team{}, errs.Wrap(op, errs.ErrValidation, err)
	}
	if err != nil {
		return model.Team{}, errs.Wrap(op, errs.ErrStore, err)
	}

	t, err = s.mutateTeam(ctx, caller, op, id, func(t *model.Team) error {
		if len(t.ImageURLs) >= ev.MaxImages {
			return errs.Newf(op, errs.ErrValidation, "imageUrls: at most %d images", ev.MaxImages)
		}
		t.ImageURLs = append(t.ImageURLs, url)
		return nil
	})
	if err != nil {
		if derr := s.blobs.Delete(ctx, url); derr != nil {
			s.logger.Warn(ctx, "orphaned image", logger.String("url", url), logger.Error(derr))
		}
		return model.Team{}, err
	}
	return t, nil
}

func (s *Service) checkSubmissionAccess(ctx context.Context, op string, caller model.Caller, teamID string) (model.Event, error) {
	if !caller.IsAdmin() && !(caller.Role == model.RoleTeam && caller.ID == teamID) {
		return model.Event{}, errs.New(op, errs.ErrForbidden, "teams may only edit their own submission")
	}
	ev, err := s.loadEvent(ctx)
	if err != nil {
		return model.Event{}, err
	}
	if !policy.CanEditSubmission(caller.Role, ev) {
		return model.Event{}, errs.New(op, errs.ErrForbidden, "submissions are locked")
	}
	return ev, nil
}

func (s *Service) mutateTeam(ctx context.Context, caller model.Caller, op, id string, fn func(t *model.Team) error) (model.Team, error) {
	t, err := updateDoc(ctx, s.store, s.collection(repository.CollectionTeams), id, func(cur *model.Team, exists bool) error {
		if !exists {
			return errs.Newf(op, errs.ErrNotFound, "team %q", id)
		}
		if err := fn(cur); err != nil {
			return err
		}
		audit := caller.Audit(s.now())
		cur.UpdatedAt = audit.At
		cur.Audit = &audit
		return nil
	})
	return t, storeErr(op, err)
}

// DeleteTeam removes a team, its images and every reference to it from
// judges and the finals lists. Reviews of the team are kept.
func (s *Service) DeleteTeam(ctx context.Context, caller model.Caller, id string) (_ DeleteTeamReport, err error) {
	const op = "service.delete_team"
	ctx, end := s.span(ctx, op, append(callerAttrs(caller), attribute.String("team.id", id))...)
	defer func() { end(err) }()

	if err := requireAdmin(op, caller); err != nil {
		return DeleteTeamReport{}, err
	}
	t, err := s.getTeam(ctx, op, id)
	if err != nil {
		return DeleteTeamReport{}, err
	}
	if err := s.store.Delete(ctx, s.collection(repository.CollectionTeams), id); err != nil {
		return DeleteTeamReport{}, storeErr(op, err)
	}
	report := DeleteTeamReport{TeamID: id, JudgesUpdated: []string{}, FailedJudges: []string{}, FailedImages: []string{}}

	if err := s.releaseCode(ctx, op, t.TeamCode, id); err != nil {
		s.logger.Warn(ctx, "releasing team code", logger.String("team", id), logger.Error(err))
	}
	for _, url := range t.ImageURLs {
		if err := s.blobs.Delete(ctx, url); err != nil && !errors.Is(err, blob.ErrNotFound) {
			report.FailedImages = append(report.FailedImages, url)
			s.logger.Warn(ctx, "deleting team image", logger.String("url", url), logger.Error(err))
		}
	}

	judges, err := s.listJudges(ctx)
	if err != nil {
		return report, err
	}
	var jobs []workerpool.Job
	for _, j := range judges {
		if !j.IsAssigned(id) {
			continue
		}
		judgeID := j.ID
		jobs = append(jobs, workerpool.Job{Key: judgeID, Do: func(ctx context.Context) error {
			_, err := s.mutateJudge(ctx, caller, op, judgeID, func(j *model.Judge) error {
				if !j.IsAssigned(id) {
					return repository.ErrSkipWrite
				}
				j.AssignedTeamIDs = model.RemoveID(j.AssignedTeamIDs, id)
				return nil
			})
			return err
		}})
	}
	res := s.writers.Run(ctx, jobs)
	report.JudgesUpdated = append(report.JudgesUpdated, res.Updated...)
	report.FailedJudges = append(report.FailedJudges, res.FailedKeys()...)

	if _, err := s.mutateEvent(ctx, caller, op, func(ev *model.Event) error {
		if !model.ContainsID(ev.FinalsTeamIDs, id) {
			return repository.ErrSkipWrite
		}
		ev.FinalsTeamIDs = model.RemoveID(ev.FinalsTeamIDs, id)
		return nil
	}); err != nil {
		return report, err
	}

	s.logger.Info(ctx, "team deleted",
		logger.String("team", id),
		logger.Int("judgesUpdated", len(report.JudgesUpdated)),
		logger.Int("failedImages", len(report.FailedImages)),
	)
	if !res.OK() {
		return report, errs.Newf(op, errs.ErrStore, "%d judge writes failed", len(res.Failed))
	}
	return report, nil
}

// SeedResult is the outcome of a bulk seed.
type SeedResult struct {
	DryRun  bool             `json:"dryRun"`
	Plan    []roster.PlanRow `json:"plan"`
	Created []string         `json:"created"`
	Failed  []string         `json:"failed"`
}

// SeedTeams creates many teams at once with slug ids and generated codes.
// A dry run returns the plan without writing.
func (s *Service) SeedTeams(ctx context.Context, caller model.Caller, rows []roster.SeedTeam, dryRun bool) (_ SeedResult, err error) {
	const op = "service.seed_teams"
	ctx, end := s.span(ctx, op, append(callerAttrs(caller),
		attribute.Int("rows", len(rows)), attribute.Bool("dry_run", dryRun))...)
	defer func() { end(err) }()

	if err := requireAdmin(op, caller); err != nil {
		return SeedResult{}, err
	}
	teams, err := s.listTeams(ctx)
	if err != nil {
		return SeedResult{}, err
	}
	ids := make([]string, len(teams))
	for i, t := range teams {
		ids[i] = t.ID
	}
	used, err := s.usedCodes(ctx, op)
	if err != nil {
		return SeedResult{}, err
	}
	plan, err := roster.PlanSeed(ids, used, rows, s.codes)
	if err != nil {
		return SeedResult{}, err
	}
	res := SeedResult{DryRun: dryRun, Plan: plan, Created: []string{}, Failed: []string{}}
	if dryRun {
		return res, nil
	}

	taken := roster.NewRegistry(ids...)
	for _, row := range plan {
		taken.SeenAndRecord(row.TeamID)
	}
	now := s.now().UTC()
	audit := caller.Audit(now)
	for i, row := range plan {
		t := row.Team()
		t.CreatedAt, t.UpdatedAt, t.Audit = now, now, &audit
		t, err := s.storeTeam(ctx, op, t, taken)
		if err != nil {
			s.logger.Warn(ctx, "seed row failed", logger.String("team", row.TeamID), logger.Error(err))
			res.Failed = append(res.Failed, row.TeamID)
			continue
		}
		res.Plan[i].TeamID = t.ID
		res.Created = append(res.Created, t.ID)
	}
	s.logger.Info(ctx, "roster seeded", logger.Int("created", len(res.Created)), logger.Int("failed", len(res.Failed)))
	if len(res.Failed) > 0 {
		return res, errs.Newf(op, errs.ErrStore, "%d of %d teams failed", len(res.Failed), len(plan))
	}
	return res, nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
