package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/valter-silva-au/recli/internal/schema"
	"github.com/valter-silva-au/recli/pkg/models"
)

// CommandLog is the append-only persistence for finished command events.
// Appends are mutually exclusive per file; concurrent sessions use distinct
// files and need no cross-session coordination.
type CommandLog interface {
	Append(event schema.LogEventV1) error
	Close() error
}

type jsonlCommandLog struct {
	path       string
	file       *os.File
	mu         sync.Mutex
	nextOffset int
}

// OpenCommandLog opens (creating if absent) the session's commands file for
// appending. When the file already holds records, the offset cursor resumes
// after the last one so a recovered session cannot regress.
func OpenCommandLog(path string) (CommandLog, error) {
	next := 0
	if events, err := ReadCommandLog(path, models.EntryFilter{}); err == nil && len(events) > 0 {
		next = events[len(events)-1].Offset + 1
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening command log: %w", err)
	}
	return &jsonlCommandLog{path: path, file: f, nextOffset: next}, nil
}

// Append writes one event as a whole JSONL record: a single write of the
// full serialized line followed by a sync, so a reader never observes a
// partial record even if the process dies mid-append. Events must arrive in
// strictly increasing offset order.
func (l *jsonlCommandLog) Append(event schema.LogEventV1) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Offset != l.nextOffset {
		return fmt.Errorf("appending event: offset %d out of order, want %d", event.Offset, l.nextOffset)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}
	data = append(data, '\n')

	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("syncing command log: %w", err)
	}

	l.nextOffset++
	return nil
}

// Close closes the underlying file.
func (l *jsonlCommandLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.file.Close(); err != nil {
		return fmt.Errorf("closing command log: %w", err)
	}
	return nil
}

// ReadCommandLog scans a commands file line by line and returns the events
// matching the filter. Blank lines are skipped; an undecodable line is
// skipped rather than aborting the scan, so a partially written trailing
// record never hides the completed ones before it.
func ReadCommandLog(path string, filter models.EntryFilter) ([]schema.LogEventV1, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening command log for reading: %w", err)
	}
	defer func() { _ = f.Close() }()

	var events []schema.LogEventV1
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var event schema.LogEventV1
		if err := json.Unmarshal(line, &event); err != nil {
			continue
		}
		if !matchesEntryFilter(event, filter) {
			continue
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning command log: %w", err)
	}

	if filter.Limit > 0 && len(events) > filter.Limit {
		events = events[len(events)-filter.Limit:]
	}
	return events, nil
}

func matchesEntryFilter(event schema.LogEventV1, filter models.EntryFilter) bool {
	if filter.Level != "" && event.Level != filter.Level {
		return false
	}
	if filter.Since != nil || filter.Until != nil {
		normalized, err := schema.NormalizeTimestamp(event.Timestamp)
		if err != nil {
			return false
		}
		t, _ := time.Parse(time.RFC3339, normalized)
		if filter.Since != nil && t.Before(*filter.Since) {
			return false
		}
		if filter.Until != nil && t.After(*filter.Until) {
			return false
		}
	}
	return true
}
