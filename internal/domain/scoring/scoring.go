// Package scoring turns a judge's per-criterion scores into review totals.
package scoring

import (
	"math"
	"sort"

	"github.com/okian/hackjudge/internal/domain/errs"
	"github.com/okian/hackjudge/internal/domain/model"
	"github.com/okian/hackjudge/internal/domain/rubric"
)

// Option applies a configuration option to the RubricScorer.
type Option func(*RubricScorer)

// WithMissingAsZero scores absent criteria as 0 instead of rejecting them.
func WithMissingAsZero() Option {
	return func(s *RubricScorer) {
		s.missingAsZero = true
	}
}

// Input is one review submission.
type Input struct {
	Rubric model.Rubric
	Scores map[string]float64
}

// Result holds the checked scores and both totals.
//
// WeightedTotal is the sum of score times weight with no normalization. It is
// the value stored on reviews and compared across teams.
type Result struct {
	Scores        map[string]float64
	Total         float64
	WeightedTotal float64
}

// Scorer computes review totals against a rubric.
type Scorer interface {
	Score(in Input) (Result, error)
}

// RubricScorer implements Scorer with strict range checks.
type RubricScorer struct {
	missingAsZero bool
}

// NewRubricScorer creates a scorer. By default a missing criterion and an
// out-of-range score are both validation errors.
func NewRubricScorer(opts ...Option) *RubricScorer {
	s := &RubricScorer{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score validates in.Scores against in.Rubric and computes the totals.
func (s *RubricScorer) Score(in Input) (Result, error) {
	const op = "scoring.score"
	if !rubric.Configured(in.Rubric) {
		return Result{}, errs.New(op, errs.ErrValidation, "rubric is not configured")
	}

	v := errs.NewValidation(op)
	upper := float64(in.Rubric.ScaleMax)
	out := Result{Scores: make(map[string]float64, len(in.Rubric.Criteria))}

	for _, c := range in.Rubric.Criteria {
		val, ok := in.Scores[c.ID]
		if !ok {
			if !s.missingAsZero {
				v.Addf("scores.%s: missing", c.ID)
				continue
			}
			val = 0
		}
		if math.IsNaN(val) || math.IsInf(val, 0) {
			v.Addf("scores.%s: not a number", c.ID)
			continue
		}
		if val < 0 || val > upper {
			v.Addf("scores.%s: %v out of range [0, %d]", c.ID, val, in.Rubric.ScaleMax)
			continue
		}
		out.Scores[c.ID] = val
		out.Total += val
		out.WeightedTotal += val * c.Weight
	}

	for _, id := range unknownIDs(in.Rubric, in.Scores) {
		v.Addf("scores.%s: unknown criterion", id)
	}
	if err := v.Err(); err != nil {
		return Result{}, err
	}
	return out, nil
}

// Normalized rescales a sum-weighted total back onto [0, scaleMax] by
// dividing by the weight sum. It is for showing a single review and is never
// stored or ranked on.
func Normalized(r model.Rubric, weightedTotal float64) float64 {
	sum := rubric.WeightSum(r)
	if sum <= 0 {
		return 0
	}
	return weightedTotal / sum
}

func unknownIDs(r model.Rubric, scores map[string]float64) []string {
	known := rubric.Weights(r)
	var out []string
	for id := range scores {
		if _, ok := known[id]; !ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
