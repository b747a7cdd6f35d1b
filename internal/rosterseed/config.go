// Package rosterseed loads a roster file and creates its teams and judges
// through the HTTP API.
package rosterseed

import "time"

// Config holds configuration for one seeding run.
type Config struct {
	BaseURL    string        // Base URL of the service
	AdminCode  string        // Sign-in code of an admin judge
	File       string        // Roster YAML file
	BatchSize  int           // Teams per seed request
	Workers    int           // Concurrent judge requests
	Timeout    time.Duration // HTTP request timeout
	DryRun     bool          // Plan teams without writing anything
	OutputFile string        // Where created codes are written; empty skips it
}

// Roster is the file format.
type Roster struct {
	Teams  []Team  `yaml:"teams"`
	Judges []Judge `yaml:"judges"`
}

// Team is one roster row.
type Team struct {
	Name    string   `yaml:"name" json:"name"`
	Members []string `yaml:"members,omitempty" json:"members,omitempty"`
	Track   string   `yaml:"track,omitempty" json:"track,omitempty"`
}

// Judge is one judge to create. Judges need an explicit code.
type Judge struct {
	Name     string `yaml:"name" json:"name"`
	Code     string `yaml:"code" json:"code"`
	IsAdmin  bool   `yaml:"isAdmin,omitempty" json:"isAdmin"`
	Capacity *int   `yaml:"capacity,omitempty" json:"capacity,omitempty"`
}

// Credential is a created team or judge and the code it signs in with.
type Credential struct {
	Kind string `yaml:"kind"`
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Code string `yaml:"code"`
}

// Stats holds run statistics.
type Stats struct {
	TeamsPlanned  int
	TeamsCreated  int
	TeamsFailed   int
	JudgesCreated int
	JudgesExisted int
	JudgesFailed  int
	StartTime     time.Time
	EndTime       time.Time
	Duration      time.Duration
}
