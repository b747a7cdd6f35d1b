package repository

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks field names so a query can be rendered safely by any
// driver.
func (q Query) Validate() error {
	for _, f := range q.Filters {
		if !fieldPattern.MatchString(f.Field) {
			return fmt.Errorf("%w: filter field %q", ErrInvalidQuery, f.Field)
		}
	}
	if q.OrderBy != nil && !fieldPattern.MatchString(q.OrderBy.Field) {
		return fmt.Errorf("%w: order field %q", ErrInvalidQuery, q.OrderBy.Field)
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidQuery)
	}
	return nil
}

// apply filters, orders and limits records in memory. It backs the memory
// and Redis stores.
func (q Query) apply(records []Record) []Record {
	want := make([]any, len(q.Filters))
	for i, f := range q.Filters {
		want[i] = normalize(f.Value)
	}

	out := records[:0]
	for _, r := range records {
		if q.matches(r.Data, want) {
			out = append(out, r)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if q.OrderBy != nil {
			a, aok := out[i].Data[q.OrderBy.Field]
			b, bok := out[j].Data[q.OrderBy.Field]
			switch {
			case aok && !bok:
				return true
			case !aok && bok:
				return false
			case aok && bok:
				if c := compareValues(a, b); c != 0 {
					if q.OrderBy.Desc {
						return c > 0
					}
					return c < 0
				}
			}
		}
		return out[i].ID < out[j].ID
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func (q Query) matches(doc Document, want []any) bool {
	for i, f := range q.Filters {
		got, ok := doc[f.Field]
		if !ok || !equalValues(got, want[i]) {
			return false
		}
	}
	return true
}

// normalize maps a Go value onto its JSON-decoded form so that an int filter
// matches a float64 field.
func normalize(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

func equalValues(a, b any) bool {
	ra, errA := json.Marshal(a)
	rb, errB := json.Marshal(b)
	return errA == nil && errB == nil && string(ra) == string(rb)
}

// compareValues orders numbers, then strings, then booleans. Values of
// different kinds order by kind.
func compareValues(a, b any) int {
	ka, kb := kindRank(a), kindRank(b)
	if ka != kb {
		return ka - kb
	}
	switch x := a.(type) {
	case float64:
		y := b.(float64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case string:
		return strings.Compare(x, b.(string))
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	}
	return 0
}

func kindRank(v any) int {
	switch v.(type) {
	case float64:
		return 0
	case string:
		return 1
	case bool:
		return 2
	}
	return 3
}
