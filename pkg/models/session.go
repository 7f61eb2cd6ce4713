package models

import "time"

// SessionStatus is the lifecycle state of a recorded session.
type SessionStatus string

const (
	// SessionActive means the wrapped shell is (or was last known to be) running.
	SessionActive SessionStatus = "active"
	// SessionStopped means the session has ended and its log is final.
	SessionStopped SessionStatus = "stopped"
)

// SessionMetadata describes one continuous run of the wrapped shell, from
// start to stop. It is written when the session starts and mutated once on
// stop; session directories are never deleted automatically.
type SessionMetadata struct {
	SessionID      string        `yaml:"session_id"`
	Host           string        `yaml:"host"`
	Shell          string        `yaml:"shell"`
	CreatedAt      time.Time     `yaml:"created_at"`
	EndedAt        *time.Time    `yaml:"ended_at,omitempty"`
	Status         SessionStatus `yaml:"status"`
	LogPath        string        `yaml:"log_path"`
	UngracefulExit bool          `yaml:"ungraceful_exit,omitempty"`
}

// SessionFilter specifies criteria for querying recorded sessions.
type SessionFilter struct {
	Status SessionStatus
	Since  *time.Time
	Until  *time.Time
}
