package schema

import (
	"fmt"
	"time"
)

// legacyTimestampLayout is the one alternate format accepted from older
// logs, interpreted as UTC.
const legacyTimestampLayout = "2006-01-02 15:04:05"

// TimestampError reports a timestamp that is neither RFC3339 nor the legacy
// format. It is recorded per event during validation and never aborts a
// whole-log run.
type TimestampError struct {
	Value string
}

func (e *TimestampError) Error() string {
	return fmt.Sprintf("timestamp %q is neither RFC3339 nor %q", e.Value, legacyTimestampLayout)
}

// ValidationError reports a structural problem with a single event.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NormalizeTimestamp parses a timestamp as RFC3339, falling back to the
// legacy layout treated as UTC. All format-specific parsing lives here; the
// writer never sees legacy formats.
func NormalizeTimestamp(value string) (string, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC().Format(time.RFC3339), nil
	}
	if t, err := time.Parse(legacyTimestampLayout, value); err == nil {
		return t.UTC().Format(time.RFC3339), nil
	}
	return "", &TimestampError{Value: value}
}

// Validate checks a persisted event and returns its normalized form. The
// input is never mutated; normalized output is a separate value the caller
// persists explicitly, never an implicit rewrite of the source.
func Validate(event LogEventV1) (LogEventV1, error) {
	if event.SchemaVersion != SchemaVersion {
		return event, &ValidationError{
			Field:  "schema_version",
			Reason: fmt.Sprintf("got %d, want %d", event.SchemaVersion, SchemaVersion),
		}
	}

	switch event.Level {
	case LevelInfo, LevelWarn, LevelError:
	default:
		return event, &ValidationError{Field: "level", Reason: fmt.Sprintf("got %q", event.Level)}
	}

	if event.ID == "" {
		return event, &ValidationError{Field: "id", Reason: "empty"}
	}
	if event.SessionID == "" {
		return event, &ValidationError{Field: "session_id", Reason: "empty"}
	}
	if event.Host == "" {
		return event, &ValidationError{Field: "host", Reason: "empty"}
	}
	if event.App == "" {
		return event, &ValidationError{Field: "app", Reason: "empty"}
	}
	if event.Command == "" && event.Message == "" {
		return event, &ValidationError{Field: "command", Reason: "both command and message are empty"}
	}

	normalized, err := NormalizeTimestamp(event.Timestamp)
	if err != nil {
		return event, err
	}

	out := event
	out.Timestamp = normalized
	return out, nil
}
