package rosterseed

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidRoster reports a roster file that cannot be seeded.
var ErrInvalidRoster = errors.New("invalid roster")

// LoadRoster reads and validates a roster file.
func LoadRoster(path string) (Roster, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Roster{}, fmt.Errorf("read roster: %w", err)
	}
	return ParseRoster(raw)
}

// ParseRoster decodes YAML, rejecting unknown keys.
func ParseRoster(raw []byte) (Roster, error) {
	var r Roster
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil && !errors.Is(err, io.EOF) {
		return Roster{}, fmt.Errorf("%w: %w", ErrInvalidRoster, err)
	}
	if err := r.Validate(); err != nil {
		return Roster{}, err
	}
	return r, nil
}

// Validate reports every problem at once.
func (r Roster) Validate() error {
	var problems []string
	if len(r.Teams) == 0 && len(r.Judges) == 0 {
		problems = append(problems, "roster has no teams and no judges")
	}
	for i, t := range r.Teams {
		if strings.TrimSpace(t.Name) == "" {
			problems = append(problems, fmt.Sprintf("teams[%d].name is required", i))
		}
	}
	codes := make(map[string]int, len(r.Judges))
	for i, j := range r.Judges {
		if strings.TrimSpace(j.Name) == "" {
			problems = append(problems, fmt.Sprintf("judges[%d].name is required", i))
		}
		code := strings.ToUpper(strings.TrimSpace(j.Code))
		if code == "" {
			problems = append(problems, fmt.Sprintf("judges[%d].code is required", i))
			continue
		}
		if prev, dup := codes[code]; dup {
			problems = append(problems, fmt.Sprintf("judges[%d].code repeats judges[%d].code", i, prev))
			continue
		}
		codes[code] = i
		if j.Capacity != nil && *j.Capacity < 0 {
			problems = append(problems, fmt.Sprintf("judges[%d].capacity must not be negative", i))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRoster, strings.Join(problems, "; "))
	}
	return nil
}

// batches splits teams into chunks of at most size.
func batches(teams []Team, size int) [][]Team {
	if size < 1 {
		size = len(teams)
	}
	var out [][]Team
	for len(teams) > 0 {
		n := min(size, len(teams))
		out = append(out, teams[:n])
		teams = teams[n:]
	}
	return out
}
