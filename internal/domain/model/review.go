package model

import "time"

// Criterion is one weighted scoring dimension.
type Criterion struct {
	ID     string  `json:"id"`
	Label  string  `json:"label"`
	Weight float64 `json:"weight"`
}

// Rubric is the single active scoring rubric of an event.
type Rubric struct {
	Name      string      `json:"name"`
	ScaleMax  int         `json:"scaleMax"`
	Criteria  []Criterion `json:"criteria"`
	UpdatedAt time.Time   `json:"updatedAt"`
	Audit     *AuditInfo  `json:"audit,omitempty"`
}

// Review is one judge's scores for one team in one round.
type Review struct {
	ID            string             `json:"id"`
	TeamID        string             `json:"teamId"`
	JudgeID       string             `json:"judgeId"`
	JudgeName     string             `json:"judgeName"`
	Round         Round              `json:"round"`
	Scores        map[string]float64 `json:"scores"`
	Feedback      string             `json:"feedback"`
	Total         float64            `json:"total"`
	WeightedTotal float64            `json:"weightedTotal"`
	CreatedAt     time.Time          `json:"createdAt"`
	CompletedAt   time.Time          `json:"completedAt"`
	Audit         *AuditInfo         `json:"audit,omitempty"`
}

// ReviewID is the deterministic key of the review written by judgeID for
// teamID in round.
func ReviewID(teamID, judgeID string, round Round) string {
	return teamID + "__" + judgeID + "__" + string(round.OrDefault())
}
