package allocation

import "github.com/okian/hackjudge/internal/domain/model"

// Op names an allocator operation.
type Op string

// Allocator operations.
const (
	OpToggle    Op = "toggle"
	OpBulkFill  Op = "bulk_fill"
	OpRebalance Op = "rebalance"
	OpClearAll  Op = "clear_all"
	OpReport    Op = "report"
)

// Change is the new assignment set planned for one judge.
type Change struct {
	JudgeID  string   `json:"judgeId"`
	Assigned []string `json:"assignedTeamIds"`

	apply func(current []string) []string
}

// Apply replays the change on the judge's current stored set. Writers call it
// inside a read-modify-write so a concurrent edit to the same judge is
// rebased instead of overwritten.
func (c Change) Apply(current []string) []string {
	if c.apply == nil {
		return model.UniqueIDs(c.Assigned)
	}
	return c.apply(current)
}

// TeamCoverage is how many judges a team has against its target.
type TeamCoverage struct {
	TeamID   string `json:"teamId"`
	Name     string `json:"name"`
	Count    int    `json:"count"`
	Required int    `json:"required"`
	Meets    bool   `json:"meetsCoverage"`
}

// Outcome is the result of an allocator operation.
type Outcome struct {
	Op       Op             `json:"op"`
	Changes  []Change       `json:"changes"`
	Coverage []TeamCoverage `json:"coverage"`
	Deficits []TeamCoverage `json:"deficits"`
	// Shortfall is the total number of missing judge slots across teams.
	Shortfall int `json:"shortfall"`
	// Slack is the number of further assignments pool judges could still
	// take: remaining capacity, bounded by the in-scope teams each judge
	// does not have yet. An unset capacity is unbounded here.
	Slack  int `json:"slack"`
	Passes int `json:"passes,omitempty"`
}

// Feasible reports whether the pool's slack covers the remaining demand.
// A fully covered scope is always feasible.
func (o Outcome) Feasible() bool { return o.Slack >= o.Shortfall }

func (p *Planner) outcome(op Op) Outcome {
	out := Outcome{Op: op, Changes: []Change{}, Coverage: []TeamCoverage{}, Deficits: []TeamCoverage{}}
	for _, s := range p.judges {
		if s.changed {
			out.Changes = append(out.Changes, Change{
				JudgeID:  s.judge.ID,
				Assigned: append([]string{}, s.set...),
				apply:    s.apply,
			})
		}
	}
	cov := p.coverage()
	for _, t := range p.teams {
		tc := TeamCoverage{
			TeamID:   t.ID,
			Name:     t.Name,
			Count:    cov[t.ID],
			Required: p.required,
			Meets:    cov[t.ID] >= p.required,
		}
		out.Coverage = append(out.Coverage, tc)
		if !tc.Meets {
			out.Deficits = append(out.Deficits, tc)
			out.Shortfall += p.required - tc.Count
		}
	}
	out.Slack = p.slack()
	return out
}

func (p *Planner) slack() int {
	total := 0
	for _, s := range p.judges {
		if !s.pool {
			continue
		}
		open := 0
		for _, t := range p.teams {
			if _, ok := s.member[t.ID]; !ok {
				open++
			}
		}
		if room := p.capacity(s, unbounded) - s.load; room < open {
			open = room
		}
		if open > 0 {
			total += open
		}
	}
	return total
}
