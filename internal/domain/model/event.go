package model

import "time"

// Default event settings.
const (
	DefaultEventName          = "Hello Hacks"
	DefaultRequiredJudgeCount = 3
	DefaultFinalsTopN         = 5
	DefaultMaxImages          = 10
)

// Event is the root scope. It holds the phase and every setting the judging
// engine reads.
type Event struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Phase               Phase      `json:"phase"`
	RequiredJudgeCount  int        `json:"requiredJudgeCount"`
	FinalsTopN          int        `json:"finalsTopN"`
	FinalsTeamIDs       []string   `json:"finalsTeamIds"`
	FinalsJudgeIDs      []string   `json:"finalsJudgeIds"`
	ShowResults         bool       `json:"showResults"`
	ShowResultsFinals   bool       `json:"showResultsFinals"`
	AllowJudgeSeeOthers bool       `json:"allowJudgeSeeOthers"`
	AnonymizeTeams      bool       `json:"anonymizeTeams"`
	LockSubmissions     bool       `json:"lockSubmissions"`
	MaxImages           int        `json:"maxImages"`
	UpdatedAt           time.Time  `json:"updatedAt"`
	Audit               *AuditInfo `json:"audit,omitempty"`
}

// NewEvent returns an event with the default settings.
func NewEvent(id string) Event {
	return Event{
		ID:                  id,
		Name:                DefaultEventName,
		Phase:               PhaseSubmission,
		RequiredJudgeCount:  DefaultRequiredJudgeCount,
		FinalsTopN:          DefaultFinalsTopN,
		FinalsTeamIDs:       []string{},
		FinalsJudgeIDs:      []string{},
		ShowResults:         true,
		AllowJudgeSeeOthers: true,
		MaxImages:           DefaultMaxImages,
	}
}

// Normalize fills zero values that have no meaningful zero.
func (e *Event) Normalize() {
	if e.Name == "" {
		e.Name = DefaultEventName
	}
	if !e.Phase.Valid() {
		e.Phase = PhaseSubmission
	}
	if e.RequiredJudgeCount < 1 {
		e.RequiredJudgeCount = DefaultRequiredJudgeCount
	}
	if e.FinalsTopN < 1 {
		e.FinalsTopN = DefaultFinalsTopN
	}
	if e.MaxImages < 0 {
		e.MaxImages = 0
	}
	e.FinalsTeamIDs = UniqueIDs(e.FinalsTeamIDs)
	e.FinalsJudgeIDs = UniqueIDs(e.FinalsJudgeIDs)
}

// SettingsPatch is a partial settings update. Nil fields are left unchanged.
type SettingsPatch struct {
	Name                *string `json:"name,omitempty"`
	RequiredJudgeCount  *int    `json:"requiredJudgeCount,omitempty" validate:"omitempty,min=1"`
	FinalsTopN          *int    `json:"finalsTopN,omitempty" validate:"omitempty,min=1"`
	ShowResults         *bool   `json:"showResults,omitempty"`
	ShowResultsFinals   *bool   `json:"showResultsFinals,omitempty"`
	AllowJudgeSeeOthers *bool   `json:"allowJudgeSeeOthers,omitempty"`
	AnonymizeTeams      *bool   `json:"anonymizeTeams,omitempty"`
	LockSubmissions     *bool   `json:"lockSubmissions,omitempty"`
	MaxImages           *int    `json:"maxImages,omitempty" validate:"omitempty,min=0"`
}

// Apply copies the set fields of p onto e.
func (p SettingsPatch) Apply(e *Event) {
	if p.Name != nil {
		e.Name = *p.Name
	}
	if p.RequiredJudgeCount != nil {
		e.RequiredJudgeCount = *p.RequiredJudgeCount
	}
	if p.FinalsTopN != nil {
		e.FinalsTopN = *p.FinalsTopN
	}
	if p.ShowResults != nil {
		e.ShowResults = *p.ShowResults
	}
	if p.ShowResultsFinals != nil {
		e.ShowResultsFinals = *p.ShowResultsFinals
	}
	if p.AllowJudgeSeeOthers != nil {
		e.AllowJudgeSeeOthers = *p.AllowJudgeSeeOthers
	}
	if p.AnonymizeTeams != nil {
		e.AnonymizeTeams = *p.AnonymizeTeams
	}
	if p.LockSubmissions != nil {
		e.LockSubmissions = *p.LockSubmissions
	}
	if p.MaxImages != nil {
		e.MaxImages = *p.MaxImages
	}
}
