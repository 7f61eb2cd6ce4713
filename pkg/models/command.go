package models

import "time"

// CommandEntry is one captured command execution within a session. The
// boundary detector owns the entry while it is open and hands it to the log
// writer once finished.
type CommandEntry struct {
	// Command is the raw command line as typed, without the prompt.
	Command string `json:"command"`
	// Cwd is the working directory at invocation, best-effort. Empty when
	// the shell reports nothing out of band.
	Cwd string `json:"cwd,omitempty"`
	// StartedAt and FinishedAt are UTC; FinishedAt is never before StartedAt.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	// ExitCode is nil when the boundary heuristic could not determine it.
	// Unknown is a valid, reportable state, not a capture failure.
	ExitCode *int `json:"exit_code,omitempty"`
	// Output is the captured output between command start and the next
	// detected boundary.
	Output string `json:"output,omitempty"`
	// Offset is the per-session sequence number, starting at zero and
	// strictly increasing. It feeds event ID derivation.
	Offset int `json:"offset"`
	// Ambiguous marks entries framed by the prompt-regex fallback rather
	// than the unambiguous boundary marker.
	Ambiguous bool `json:"ambiguous,omitempty"`
}

// EntryFilter specifies criteria for reading persisted command entries.
type EntryFilter struct {
	Since *time.Time
	Until *time.Time
	Level string
	Limit int
}
