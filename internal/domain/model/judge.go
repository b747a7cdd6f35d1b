package model

import "time"

// Judge scores teams. A judge flagged IsAdmin also runs the event and is
// left out of automatic allocation.
type Judge struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Code            string     `json:"code"`
	IsAdmin         bool       `json:"isAdmin"`
	AssignedTeamIDs []string   `json:"assignedTeamIds"`
	Capacity        *int       `json:"capacity,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	Audit           *AuditInfo `json:"audit,omitempty"`
}

// IsAssigned reports whether teamID is in the judge's assignment set.
func (j Judge) IsAssigned(teamID string) bool {
	return ContainsID(j.AssignedTeamIDs, teamID)
}
