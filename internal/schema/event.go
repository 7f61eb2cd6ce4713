// Package schema defines the canonical persisted log event (LogEventV1),
// deterministic event ID derivation, and validation/normalization of
// persisted events including legacy timestamp formats.
package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/valter-silva-au/recli/pkg/models"
)

// SchemaVersion is the only version this package writes and validates.
const SchemaVersion = 1

// AppName is the provenance app field stamped on every event.
const AppName = "recli"

// Event levels.
const (
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// ErrorTypeCommandFailed marks events for commands with a known nonzero exit.
const ErrorTypeCommandFailed = "command_failed"

// TagExitUnknown flags entries whose exit status could not be determined.
const TagExitUnknown = "exit:unknown"

// LogEventV1 is the canonical persisted form of a CommandEntry plus
// provenance. Timestamps in newly written events are always RFC3339 UTC;
// legacy events may carry "2006-01-02 15:04:05" and are only valid after
// normalization.
type LogEventV1 struct {
	ID            string          `json:"id"`
	SchemaVersion int             `json:"schema_version"`
	Timestamp     string          `json:"timestamp"`
	Host          string          `json:"host"`
	App           string          `json:"app"`
	SessionID     string          `json:"session_id"`
	Level         string          `json:"level"`
	Command       string          `json:"command"`
	Cwd           string          `json:"cwd,omitempty"`
	ExitCode      *int            `json:"exit_code,omitempty"`
	Offset        int             `json:"offset"`
	DurationMS    int64           `json:"duration_ms"`
	ErrorType     string          `json:"error_type,omitempty"`
	Message       string          `json:"message"`
	Tags          []string        `json:"tags"`
	Raw           json.RawMessage `json:"raw,omitempty"`
}

// MakeID derives the deterministic event ID from the fixed, ordered tuple
// (host, session_id, timestamp, command, offset). The field set and order
// must never change: the same logical event has to produce the same ID
// across repeated validation runs.
func MakeID(host, sessionID, timestamp, command string, offset int) string {
	input := host + "|" + sessionID + "|" + timestamp + "|" + command + "|" + strconv.Itoa(offset)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// ToEvent translates a finished CommandEntry into its canonical persisted
// form. The translation is pure: calling it twice on the same inputs yields
// identical events, including the ID.
func ToEvent(entry models.CommandEntry, meta models.SessionMetadata) LogEventV1 {
	timestamp := entry.StartedAt.UTC().Format(time.RFC3339)

	level := LevelInfo
	errorType := ""
	tags := []string{}
	switch {
	case entry.ExitCode == nil:
		level = LevelWarn
		tags = append(tags, TagExitUnknown)
	case *entry.ExitCode != 0:
		level = LevelError
		errorType = ErrorTypeCommandFailed
	}
	if entry.Ambiguous {
		tags = append(tags, "boundary:heuristic")
	}

	event := LogEventV1{
		ID:            MakeID(meta.Host, meta.SessionID, timestamp, entry.Command, entry.Offset),
		SchemaVersion: SchemaVersion,
		Timestamp:     timestamp,
		Host:          meta.Host,
		App:           AppName,
		SessionID:     meta.SessionID,
		Level:         level,
		Command:       entry.Command,
		Cwd:           entry.Cwd,
		ExitCode:      entry.ExitCode,
		Offset:        entry.Offset,
		DurationMS:    entry.FinishedAt.Sub(entry.StartedAt).Milliseconds(),
		ErrorType:     errorType,
		Message:       fmt.Sprintf("command captured at offset %d", entry.Offset),
		Tags:          tags,
	}

	if entry.Output != "" {
		// Output is provenance, not structure: carry it opaquely so the
		// schema stays stable while downstream tooling evolves.
		raw, err := json.Marshal(struct {
			Output string `json:"output"`
		}{Output: entry.Output})
		if err == nil {
			event.Raw = raw
		}
	}

	return event
}
