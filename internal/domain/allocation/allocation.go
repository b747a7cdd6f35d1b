// Package allocation plans judge-to-team assignments under per-team coverage
// targets and per-judge capacity limits.
//
// A Planner works on an in-memory copy of the roster and never touches the
// store. Every operation returns an Outcome holding the judges whose sets
// changed and the coverage achieved. Falling short of the coverage target is
// reported in the Outcome and is not an error.
package allocation

import (
	"math"
	"sort"
	"strings"

	"github.com/okian/hackjudge/internal/domain/errs"
	"github.com/okian/hackjudge/internal/domain/model"
)

// unbounded stands in for an unset capacity outside a full rebalance.
const unbounded = math.MaxInt

// Scope selects the teams and judges an operation works on. The prelim
// scope covers every team and judge. The finals scope covers FinalsTeamIDs
// and FinalsJudgeIDs. Track narrows the teams further when set.
//
// Finals work is derived from the panel: every finals judge scores every
// finals team, so a finals Planner only reports. Stored assignment sets
// belong to the prelim round and are never read or written for finals.
type Scope struct {
	Round          model.Round
	FinalsTeamIDs  []string
	FinalsJudgeIDs []string
	Track          string
}

// Input is the roster snapshot a Planner starts from.
type Input struct {
	Teams              []model.Team
	Judges             []model.Judge
	RequiredJudgeCount int
	Scope              Scope
}

// Planner holds the working assignment state.
type Planner struct {
	teams    []model.Team
	known    map[string]struct{}
	inScope  map[string]struct{}
	all      bool
	judges   []*slot
	byID     map[string]*slot
	required int
	panel    int
	finals   bool
}

type slot struct {
	judge   model.Judge
	set     []string
	member  map[string]struct{}
	counted bool
	pool    bool
	load    int
	changed bool
	apply   func(current []string) []string
}

// New copies in into a Planner. Teams and judges are put in name order, with
// id as the tie-break, so results do not depend on input order.
func New(in Input) *Planner {
	round := in.Scope.Round.OrDefault()
	p := &Planner{
		known:    make(map[string]struct{}, len(in.Teams)),
		inScope:  make(map[string]struct{}, len(in.Teams)),
		byID:     make(map[string]*slot, len(in.Judges)),
		required: in.RequiredJudgeCount,
		all:      round == model.RoundPrelim && in.Scope.Track == "",
		finals:   round == model.RoundFinals,
	}
	if p.required < 0 {
		p.required = 0
	}

	finalsTeams := idSet(in.Scope.FinalsTeamIDs)
	for _, t := range in.Teams {
		p.known[t.ID] = struct{}{}
		if round == model.RoundFinals {
			if _, ok := finalsTeams[t.ID]; !ok {
				continue
			}
		}
		if in.Scope.Track != "" && !strings.EqualFold(t.Track, in.Scope.Track) {
			continue
		}
		p.teams = append(p.teams, t)
		p.inScope[t.ID] = struct{}{}
	}
	sort.SliceStable(p.teams, func(i, j int) bool {
		return lessByName(p.teams[i].Name, p.teams[i].ID, p.teams[j].Name, p.teams[j].ID)
	})

	finalsJudges := idSet(in.Scope.FinalsJudgeIDs)
	for _, j := range in.Judges {
		s := &slot{judge: j, member: make(map[string]struct{})}
		for _, id := range model.UniqueIDs(j.AssignedTeamIDs) {
			s.set = append(s.set, id)
			s.member[id] = struct{}{}
		}
		s.counted = true
		s.pool = !j.IsAdmin
		if p.finals {
			_, s.counted = finalsJudges[j.ID]
			s.pool = false
			if s.counted {
				p.panel++
			}
		}
		for _, id := range s.set {
			if p.scoped(id) {
				s.load++
			}
		}
		p.judges = append(p.judges, s)
		p.byID[j.ID] = s
	}
	sort.SliceStable(p.judges, func(i, j int) bool {
		a, b := p.judges[i].judge, p.judges[j].judge
		return lessByName(a.Name, a.ID, b.Name, b.ID)
	})
	return p
}

// Toggle flips teamID in the judge's set. Capacity and coverage are not
// checked: this is the manual override.
func (p *Planner) Toggle(judgeID, teamID string) (Outcome, error) {
	const op = "allocation.toggle"
	if err := p.writable(op); err != nil {
		return Outcome{}, err
	}
	s, err := p.judge(op, judgeID)
	if err != nil {
		return Outcome{}, err
	}
	if _, ok := p.known[teamID]; !ok {
		return Outcome{}, errs.Newf(op, errs.ErrNotFound, "team %q", teamID)
	}
	if _, ok := s.member[teamID]; ok {
		s.remove(teamID, p.scoped(teamID))
	} else {
		s.add(teamID, p.scoped(teamID))
	}
	s.changed = true
	s.apply = func(current []string) []string {
		if model.ContainsID(current, teamID) {
			return model.RemoveID(current, teamID)
		}
		return append(model.UniqueIDs(current), teamID)
	}
	return p.outcome(OpToggle), nil
}

// BulkFill adds in-scope teams to one judge, lowest coverage first, until the
// judge is full or every team has reached its target. Other judges are left
// alone. An unset capacity is unbounded here.
func (p *Planner) BulkFill(judgeID string) (Outcome, error) {
	const op = "allocation.bulk_fill"
	if err := p.writable(op); err != nil {
		return Outcome{}, err
	}
	s, err := p.judge(op, judgeID)
	if err != nil {
		return Outcome{}, err
	}
	if !s.pool {
		return Outcome{}, errs.Newf(op, errs.ErrValidation, "judge %q is not in the allocation pool", judgeID)
	}

	coverage := p.coverage()
	order := make([]model.Team, len(p.teams))
	copy(order, p.teams)
	sort.SliceStable(order, func(i, j int) bool {
		return coverage[order[i].ID] < coverage[order[j].ID]
	})

	limit := p.capacity(s, unbounded)
	var added []string
	for _, t := range order {
		if s.load >= limit {
			break
		}
		if coverage[t.ID] >= p.required {
			continue
		}
		if _, ok := s.member[t.ID]; ok {
			continue
		}
		s.add(t.ID, true)
		coverage[t.ID]++
		added = append(added, t.ID)
	}
	if len(added) > 0 {
		s.changed = true
		s.apply = func(current []string) []string {
			return model.UniqueIDs(append(append([]string(nil), current...), added...))
		}
	}
	return p.outcome(OpBulkFill), nil
}

// Rebalance clears every pool judge's in-scope assignments and refills them.
// Teams are visited in name order. Each needy team takes the eligible judge
// with the most remaining slack, ties going to the earlier judge. Passes
// repeat until nothing changes. An unset capacity defaults to an even share.
// On a finals Planner the pool is empty and nothing changes.
func (p *Planner) Rebalance() Outcome {
	p.clearPool()
	share := p.DefaultCapacity()

	var pool []*slot
	for _, s := range p.judges {
		if s.pool {
			pool = append(pool, s)
		}
	}

	coverage := p.coverage()
	passes := 0
	for changed := true; changed; {
		changed = false
		passes++
		for _, t := range p.teams {
			for coverage[t.ID] < p.required {
				best := pickMostSlack(pool, t.ID, func(s *slot) int { return p.capacity(s, share) })
				if best == nil {
					break
				}
				best.add(t.ID, true)
				coverage[t.ID]++
				changed = true
			}
		}
	}

	p.sealScoped()
	out := p.outcome(OpRebalance)
	out.Passes = passes
	return out
}

// ClearAll empties every pool judge's in-scope assignments. Admin judges keep
// theirs. On a finals Planner nothing changes.
func (p *Planner) ClearAll() Outcome {
	p.clearPool()
	p.sealScoped()
	return p.outcome(OpClearAll)
}

// Report returns the current coverage without changing anything.
func (p *Planner) Report() Outcome {
	return p.outcome(OpReport)
}

// DefaultCapacity is ceil(teams × required / poolJudges), the even share used
// for judges without a capacity during a rebalance.
func (p *Planner) DefaultCapacity() int {
	poolSize := 0
	for _, s := range p.judges {
		if s.pool {
			poolSize++
		}
	}
	if poolSize < 1 {
		poolSize = 1
	}
	demand := len(p.teams) * p.required
	return (demand + poolSize - 1) / poolSize
}

// ValidateCapacity accepts nil (unset) or any non-negative value.
func ValidateCapacity(capacity *int) error {
	if capacity != nil && *capacity < 0 {
		return errs.Newf("allocation.set_capacity", errs.ErrValidation, "capacity must be >= 0, got %d", *capacity)
	}
	return nil
}

// ReadOnly reports whether the Planner only reports coverage. Finals scopes
// are read-only.
func (p *Planner) ReadOnly() bool { return p.finals }

func (p *Planner) writable(op string) error {
	if p.finals {
		return errs.New(op, errs.ErrValidation, "finals assignments follow the finals panel and cannot be edited")
	}
	return nil
}

func (p *Planner) judge(op, id string) (*slot, error) {
	s, ok := p.byID[id]
	if !ok {
		return nil, errs.Newf(op, errs.ErrNotFound, "judge %q", id)
	}
	return s, nil
}

func (p *Planner) scoped(teamID string) bool {
	if p.all {
		return true
	}
	_, ok := p.inScope[teamID]
	return ok
}

func (p *Planner) capacity(s *slot, fallback int) int {
	if s.judge.Capacity != nil {
		return *s.judge.Capacity
	}
	return fallback
}

func (p *Planner) coverage() map[string]int {
	cov := make(map[string]int, len(p.teams))
	for _, t := range p.teams {
		cov[t.ID] = 0
	}
	if p.finals {
		for id := range cov {
			cov[id] = p.panel
		}
		return cov
	}
	for _, s := range p.judges {
		if !s.counted {
			continue
		}
		for _, id := range s.set {
			if _, ok := cov[id]; ok {
				cov[id]++
			}
		}
	}
	return cov
}

func (p *Planner) clearPool() {
	for _, s := range p.judges {
		if !s.pool {
			continue
		}
		for _, id := range append([]string(nil), s.set...) {
			if p.scoped(id) {
				s.remove(id, true)
				s.changed = true
			}
		}
	}
}

// sealScoped marks pool judges whose in-scope set differs from the stored one
// and makes their write keep concurrent out-of-scope changes.
func (p *Planner) sealScoped() {
	for _, s := range p.judges {
		if !s.pool {
			continue
		}
		s.changed = !sameSet(s.set, s.judge.AssignedTeamIDs)
		if !s.changed {
			continue
		}
		planned := append([]string(nil), s.set...)
		scoped := p.scoped
		s.apply = func(current []string) []string {
			out := make([]string, 0, len(current)+len(planned))
			for _, id := range current {
				if !scoped(id) {
					out = append(out, id)
				}
			}
			for _, id := range planned {
				if scoped(id) {
					out = append(out, id)
				}
			}
			return model.UniqueIDs(out)
		}
	}
}

func (s *slot) add(teamID string, scoped bool) {
	if _, ok := s.member[teamID]; ok {
		return
	}
	s.member[teamID] = struct{}{}
	s.set = append(s.set, teamID)
	if scoped {
		s.load++
	}
}

func (s *slot) remove(teamID string, scoped bool) {
	if _, ok := s.member[teamID]; !ok {
		return
	}
	delete(s.member, teamID)
	s.set = model.RemoveID(s.set, teamID)
	if scoped {
		s.load--
	}
}

func pickMostSlack(pool []*slot, teamID string, capOf func(*slot) int) *slot {
	var best *slot
	bestSlack := 0
	for _, s := range pool {
		c := capOf(s)
		if s.load >= c {
			continue
		}
		if _, ok := s.member[teamID]; ok {
			continue
		}
		slack := c - s.load
		if best == nil || slack > bestSlack {
			best, bestSlack = s, slack
		}
	}
	return best
}

func lessByName(nameA, idA, nameB, idB string) bool {
	if nameA != nameB {
		return nameA < nameB
	}
	return idA < idB
}

func idSet(ids []string) map[string]struct{} {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

func sameSet(a, b []string) bool {
	a, b = model.UniqueIDs(a), model.UniqueIDs(b)
	if len(a) != len(b) {
		return false
	}
	m := idSet(a)
	for _, id := range b {
		if _, ok := m[id]; !ok {
			return false
		}
	}
	return true
}
