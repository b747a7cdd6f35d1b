package model

import "time"

// Role is the capability class of a caller.
type Role string

// Known roles.
const (
	RoleAdmin Role = "admin"
	RoleJudge Role = "judge"
	RoleTeam  Role = "team"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleJudge || r == RoleTeam
}

// Caller identifies who performs a request. It is passed explicitly to every
// operation instead of being read from ambient state.
//
// An admin caller is a judge flagged admin, so ID is a judge id for both
// RoleAdmin and RoleJudge and a team id for RoleTeam.
type Caller struct {
	Role Role   `json:"role"`
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// IsAdmin reports whether the caller holds elevated capabilities.
func (c Caller) IsAdmin() bool { return c.Role == RoleAdmin }

// Audit returns the breadcrumb stored on records this caller mutates.
func (c Caller) Audit(at time.Time) AuditInfo {
	return AuditInfo{ActorRole: c.Role, ActorID: c.ID, At: at.UTC()}
}

// AuditInfo records the actor of the last mutation on a record.
type AuditInfo struct {
	ActorRole Role      `json:"actorRole"`
	ActorID   string    `json:"actorId"`
	At        time.Time `json:"at"`
}

// Valid reports whether the breadcrumb names a real actor.
func (a AuditInfo) Valid() bool {
	return a.ActorRole.Valid() && a.ActorID != ""
}
