package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/valter-silva-au/recli/internal/schema"
	"github.com/valter-silva-au/recli/internal/storage"
	"github.com/valter-silva-au/recli/pkg/models"
)

func TestListCommand_NoSessions(t *testing.T) {
	withTestSessions(t)

	origSession := listSession
	defer func() { listSession = origSession }()
	listSession = ""

	err := listCmd.RunE(listCmd, nil)
	if err == nil || !strings.Contains(err.Error(), "no recorded sessions") {
		t.Fatalf("expected no-sessions error, got %v", err)
	}
}

func TestListCommand_UnknownSession(t *testing.T) {
	withTestSessions(t)

	origSession := listSession
	defer func() { listSession = origSession }()
	listSession = "20990101_000000_deadbeef"

	err := listCmd.RunE(listCmd, nil)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestListCommand_DefaultsToMostRecentSession(t *testing.T) {
	store := withTestSessions(t)
	stoppedSession(t, store)
	newest := stoppedSession(t, store)

	log, err := storage.OpenCommandLog(store.CommandLogPath(newest))
	if err != nil {
		t.Fatalf("opening command log: %v", err)
	}
	exit := 0
	entry := models.CommandEntry{
		Command:    "uptime",
		StartedAt:  time.Now().UTC(),
		FinishedAt: time.Now().UTC(),
		ExitCode:   &exit,
	}
	meta, err := store.Get(newest)
	if err != nil {
		t.Fatalf("getting session: %v", err)
	}
	if err := log.Append(schema.ToEvent(entry, *meta)); err != nil {
		t.Fatalf("appending: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("closing: %v", err)
	}

	origSession := listSession
	defer func() { listSession = origSession }()
	listSession = ""

	if err := listCmd.RunE(listCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTruncateCommand(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"short unchanged", "ls -la", "ls -la"},
		{"newlines flattened", "echo a\necho b", "echo a echo b"},
		{"long truncated", strings.Repeat("x", 100), strings.Repeat("x", 77) + "..."},
		{"boundary kept", strings.Repeat("y", 80), strings.Repeat("y", 80)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncateCommand(tt.input); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
