// Package aggregation folds a round's reviews into ranked per-team rows.
//
// Rows are ordered by average weighted total (desc), then review count (desc),
// then team id (asc). Rank numbers are consecutive with ties: rows equal on
// both average and count share a rank and the next distinct row takes the
// next number.
package aggregation

import (
	"math"
	"sort"

	"github.com/okian/hackjudge/internal/domain/model"
)

// scoreScale fixes averages to 9 decimal places before comparing, so the same
// sums reached in a different order compare equal.
const scoreScale = 1e9

// Row is one team's aggregate for a round.
type Row struct {
	Rank          int     `json:"rank"`
	TeamID        string  `json:"teamId"`
	TeamName      string  `json:"teamName,omitempty"`
	ReviewCount   int     `json:"reviewCount"`
	TotalSum      float64 `json:"totalSum"`
	WeightedSum   float64 `json:"weightedSum"`
	AvgRaw        float64 `json:"avgRaw"`
	AvgWeighted   float64 `json:"avgWeighted"`
	MeetsCoverage bool    `json:"meetsCoverage"`
}

type options struct {
	teams           []model.Team
	hideUncovered   bool
	restrictToKnown bool
}

// Option configures Aggregate.
type Option func(*options)

// WithTeams lists the teams to report on. Teams with no reviews appear with a
// zero count, and reviews of teams outside the list are ignored.
func WithTeams(teams []model.Team) Option {
	return func(o *options) {
		o.teams = teams
		o.restrictToKnown = true
	}
}

// HideUnderCovered drops rows that miss the coverage target.
func HideUnderCovered() Option {
	return func(o *options) {
		o.hideUncovered = true
	}
}

// Aggregate sums the reviews of round per team and ranks the result. Reviews
// without a round count as prelim. required is the coverage target used for
// MeetsCoverage.
func Aggregate(reviews []model.Review, round model.Round, required int, opts ...Option) []Row {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	round = round.OrDefault()

	byTeam := make(map[string]*Row)
	for _, t := range o.teams {
		byTeam[t.ID] = &Row{TeamID: t.ID, TeamName: t.Name}
	}

	// one judge counts once per team even if stale duplicates exist
	seen := make(map[string]struct{}, len(reviews))
	for _, r := range reviews {
		if r.Round.OrDefault() != round {
			continue
		}
		key := r.TeamID + "\x00" + r.JudgeID
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		row, ok := byTeam[r.TeamID]
		if !ok {
			if o.restrictToKnown {
				continue
			}
			row = &Row{TeamID: r.TeamID}
			byTeam[r.TeamID] = row
		}
		row.ReviewCount++
		row.TotalSum += r.Total
		row.WeightedSum += r.WeightedTotal
	}

	rows := make([]Row, 0, len(byTeam))
	for _, row := range byTeam {
		div := float64(max(1, row.ReviewCount))
		row.AvgRaw = row.TotalSum / div
		row.AvgWeighted = row.WeightedSum / div
		row.MeetsCoverage = row.ReviewCount >= required
		if o.hideUncovered && !row.MeetsCoverage {
			continue
		}
		rows = append(rows, *row)
	}
	Rank(rows)
	return rows
}

// Rank sorts rows by the leaderboard order and assigns rank numbers.
func Rank(rows []Row) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := fixed(rows[i].AvgWeighted), fixed(rows[j].AvgWeighted)
		if a != b {
			return a > b
		}
		if rows[i].ReviewCount != rows[j].ReviewCount {
			return rows[i].ReviewCount > rows[j].ReviewCount
		}
		return rows[i].TeamID < rows[j].TeamID
	})
	assignRanksWithTies(rows)
}

// FinalsCandidates ranks the prelim rows of the given teams and returns the
// first topN. A topN of zero or less uses fallbackTopN, normally the event's
// finalsTopN. When both are zero or less every candidate is returned. It is a
// suggestion for the admin's finals pick.
func FinalsCandidates(teams []model.Team, prelimRows []Row, topN, fallbackTopN int) []Row {
	if topN <= 0 {
		topN = fallbackTopN
	}
	known := make(map[string]string, len(teams))
	for _, t := range teams {
		known[t.ID] = t.Name
	}
	out := make([]Row, 0, len(prelimRows))
	for _, r := range prelimRows {
		name, ok := known[r.TeamID]
		if !ok {
			continue
		}
		if r.TeamName == "" {
			r.TeamName = name
		}
		out = append(out, r)
	}
	Rank(out)
	if topN > 0 && topN < len(out) {
		out = out[:topN]
	}
	return out
}

func assignRanksWithTies(rows []Row) {
	rank := 0
	for i := range rows {
		if i == 0 || !sameStanding(rows[i-1], rows[i]) {
			rank++
		}
		rows[i].Rank = rank
	}
}

func sameStanding(a, b Row) bool {
	return fixed(a.AvgWeighted) == fixed(b.AvgWeighted) && a.ReviewCount == b.ReviewCount
}

func fixed(x float64) int64 {
	if math.IsNaN(x) {
		return 0
	}
	return int64(math.Round(x * scoreScale))
}
