// Package rubric validates and inspects the scoring rubric of an event.
package rubric

import (
	"math"
	"strings"

	"github.com/okian/hackjudge/internal/domain/errs"
	"github.com/okian/hackjudge/internal/domain/model"
)

// Default rubric parameters.
const (
	DefaultName     = "Default"
	DefaultScaleMax = 5
)

// Default returns the rubric an event starts with.
func Default() model.Rubric {
	return model.Rubric{
		Name:     DefaultName,
		ScaleMax: DefaultScaleMax,
		Criteria: []model.Criterion{
			{ID: "innovation", Label: "Innovation", Weight: 1},
			{ID: "technical", Label: "Technical Complexity", Weight: 1},
			{ID: "usability", Label: "Usability & Design", Weight: 1},
			{ID: "impact", Label: "Impact", Weight: 1},
		},
	}
}

// Configured reports whether r can be scored against. A rubric with no
// criteria is treated as not yet set up.
func Configured(r model.Rubric) bool {
	return len(r.Criteria) > 0
}

// Validate checks the scale and every criterion.
func Validate(r model.Rubric) error {
	v := errs.NewValidation("rubric.validate")
	if r.ScaleMax < 1 {
		v.Addf("scaleMax: must be at least 1, got %d", r.ScaleMax)
	}
	seen := make(map[string]struct{}, len(r.Criteria))
	for i, c := range r.Criteria {
		id := strings.TrimSpace(c.ID)
		switch {
		case id == "":
			v.Addf("criteria[%d].id: required", i)
		case id != c.ID:
			v.Addf("criteria[%d].id: must not have surrounding spaces", i)
		}
		if _, dup := seen[id]; dup && id != "" {
			v.Addf("criteria[%d].id: duplicate %q", i, id)
		}
		seen[id] = struct{}{}
		if math.IsNaN(c.Weight) || math.IsInf(c.Weight, 0) || c.Weight <= 0 {
			v.Addf("criteria[%d].weight: must be a positive number, got %v", i, c.Weight)
		}
	}
	return v.Err()
}

// Weights maps criterion id to weight.
func Weights(r model.Rubric) map[string]float64 {
	w := make(map[string]float64, len(r.Criteria))
	for _, c := range r.Criteria {
		w[c.ID] = c.Weight
	}
	return w
}

// WeightSum is the sum of all criterion weights.
func WeightSum(r model.Rubric) float64 {
	var sum float64
	for _, c := range r.Criteria {
		sum += c.Weight
	}
	return sum
}

// Lookup finds a criterion by id.
func Lookup(r model.Rubric, id string) (model.Criterion, bool) {
	for _, c := range r.Criteria {
		if c.ID == id {
			return c, true
		}
	}
	return model.Criterion{}, false
}

// Removed lists the criterion ids of prev that next no longer has.
func Removed(prev, next model.Rubric) []string {
	keep := make(map[string]struct{}, len(next.Criteria))
	for _, c := range next.Criteria {
		keep[c.ID] = struct{}{}
	}
	var out []string
	for _, c := range prev.Criteria {
		if _, ok := keep[c.ID]; !ok {
			out = append(out, c.ID)
		}
	}
	return out
}
