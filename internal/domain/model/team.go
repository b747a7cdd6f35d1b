package model

import "time"

// Team is a participating project.
type Team struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Members     []string   `json:"members"`
	TechStack   []string   `json:"techStack"`
	Track       string     `json:"track,omitempty"`
	TeamCode    string     `json:"teamCode"`
	Github      string     `json:"github"`
	Devpost     string     `json:"devpost"`
	Description string     `json:"description"`
	ImageURLs   []string   `json:"imageUrls"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	Audit       *AuditInfo `json:"audit,omitempty"`
}

// Submission holds the fields a team edits about its own project.
type Submission struct {
	Github      *string  `json:"github,omitempty" validate:"omitempty,max=512"`
	Devpost     *string  `json:"devpost,omitempty" validate:"omitempty,max=512"`
	Description *string  `json:"description,omitempty" validate:"omitempty,max=5000"`
	TechStack   []string `json:"techStack,omitempty" validate:"omitempty,dive,max=64"`
	ImageURLs   []string `json:"imageUrls,omitempty"`
}

// Apply copies the set fields of s onto t.
func (s Submission) Apply(t *Team) {
	if s.Github != nil {
		t.Github = *s.Github
	}
	if s.Devpost != nil {
		t.Devpost = *s.Devpost
	}
	if s.Description != nil {
		t.Description = *s.Description
	}
	if s.TechStack != nil {
		t.TechStack = s.TechStack
	}
	if s.ImageURLs != nil {
		t.ImageURLs = UniqueIDs(s.ImageURLs)
	}
}
