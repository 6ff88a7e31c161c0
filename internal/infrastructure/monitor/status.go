package monitor

import "time"

type Status struct {
	Taskwarrior bool      `json:"taskwarrior"`
	Version     string    `json:"version,omitempty"`
	Breaker     string    `json:"breaker,omitempty"`
	Journal     bool      `json:"journal"`
	JournalSize int       `json:"journal_size"`
	LastCheck   time.Time `json:"last_check"`
}
