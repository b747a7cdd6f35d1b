// Package model contains the judging domain records shared between layers.
package model

// Phase is the event-wide stage of the competition.
type Phase string

// Known phases, in their natural order.
const (
	PhaseSubmission Phase = "submission"
	PhaseJudging    Phase = "judging"
	PhaseFinals     Phase = "finals"
	PhaseClosed     Phase = "closed"
)

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	switch p {
	case PhaseSubmission, PhaseJudging, PhaseFinals, PhaseClosed:
		return true
	default:
		return false
	}
}

// Round is one of the two independent judging passes.
type Round string

// Known rounds.
const (
	RoundPrelim Round = "prelim"
	RoundFinals Round = "finals"
)

// OrDefault maps the empty round to prelim.
func (r Round) OrDefault() Round {
	if r == "" {
		return RoundPrelim
	}
	return r
}

// ParseRound accepts "", "prelim" and "finals".
func ParseRound(s string) (Round, bool) {
	switch r := Round(s).OrDefault(); r {
	case RoundPrelim, RoundFinals:
		return r, true
	default:
		return "", false
	}
}
