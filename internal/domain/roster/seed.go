package roster

import (
	"strings"

	"github.com/okian/hackjudge/internal/domain/errs"
	"github.com/okian/hackjudge/internal/domain/model"
)

// SeedTeam is one requested team in a bulk seed.
type SeedTeam struct {
	Name    string   `json:"name" yaml:"name" validate:"required,max=120"`
	Members []string `json:"members" yaml:"members" validate:"omitempty,dive,max=120"`
	Track   string   `json:"track,omitempty" yaml:"track,omitempty"`
}

// PlanRow is what a seed will write for one requested team.
type PlanRow struct {
	TeamID   string   `json:"teamId"`
	Name     string   `json:"name"`
	Members  []string `json:"members"`
	Track    string   `json:"track,omitempty"`
	TeamCode string   `json:"teamCode"`
}

// Team turns the row into a blank team record.
func (r PlanRow) Team() model.Team {
	return model.Team{
		ID:        r.TeamID,
		Name:      r.Name,
		Members:   r.Members,
		TechStack: []string{},
		Track:     r.Track,
		TeamCode:  r.TeamCode,
		ImageURLs: []string{},
	}
}

// PlanSeed assigns each requested team an id and a code that collide neither
// with the existing roster nor with each other. usedCodes must hold every
// sign-in code currently in use, judges' included.
func PlanSeed(existingIDs []string, usedCodes Registry, rows []SeedTeam, src CodeSource) ([]PlanRow, error) {
	const op = "roster.plan_seed"
	v := errs.NewValidation(op)
	for i, r := range rows {
		if strings.TrimSpace(r.Name) == "" {
			v.Addf("teams[%d].name: required", i)
		}
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	ids := NewRegistry(existingIDs...)
	plan := make([]PlanRow, 0, len(rows))
	for _, r := range rows {
		name := strings.TrimSpace(r.Name)
		code, err := UniqueCode(src, usedCodes)
		if err != nil {
			return nil, errs.Wrap(op, errs.ErrConflict, err)
		}
		plan = append(plan, PlanRow{
			TeamID:   UniqueSlug(Slugify(name), ids),
			Name:     name,
			Members:  cleanMembers(r.Members),
			Track:    strings.TrimSpace(r.Track),
			TeamCode: code,
		})
	}
	return plan, nil
}

func cleanMembers(in []string) []string {
	out := make([]string, 0, len(in))
	for _, m := range in {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	return out
}
