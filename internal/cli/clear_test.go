package cli

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/valter-silva-au/recli/internal/storage"
	"github.com/valter-silva-au/recli/pkg/models"
)

func TestClearCommand_Registration(t *testing.T) {
	found := false
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == "clear" {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected 'clear' command to be registered")
	}
}

// withTestSessions swaps in a store over a temp directory and restores the
// package state afterwards.
func withTestSessions(t *testing.T) storage.SessionStore {
	t.Helper()

	origSessions := Sessions
	t.Cleanup(func() { Sessions = origSessions })

	Sessions = storage.NewSessionStore(filepath.Join(t.TempDir(), "logs"))
	return Sessions
}

func stoppedSession(t *testing.T, store storage.SessionStore) string {
	t.Helper()
	meta, err := store.Begin("devbox", "/bin/bash")
	if err != nil {
		t.Fatalf("beginning session: %v", err)
	}
	if err := store.End(meta.SessionID); err != nil {
		t.Fatalf("ending session: %v", err)
	}
	return meta.SessionID
}

func TestClearCommand_NilStore(t *testing.T) {
	origSessions := Sessions
	defer func() { Sessions = origSessions }()
	Sessions = nil

	err := clearCmd.RunE(clearCmd, nil)
	if err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Fatalf("expected initialization error, got %v", err)
	}
}

func TestClearCommand_RequiresExactlyOneTarget(t *testing.T) {
	withTestSessions(t)

	origAll, origSession := clearAll, clearSession
	defer func() { clearAll, clearSession = origAll, origSession }()

	clearAll, clearSession = false, ""
	if err := clearCmd.RunE(clearCmd, nil); err == nil {
		t.Error("expected error with no target")
	}

	clearAll, clearSession = true, "some-session"
	if err := clearCmd.RunE(clearCmd, nil); err == nil {
		t.Error("expected error with both targets")
	}
}

func TestClearCommand_RemovesOneSession(t *testing.T) {
	store := withTestSessions(t)
	id := stoppedSession(t, store)
	keep := stoppedSession(t, store)

	origAll, origSession := clearAll, clearSession
	defer func() { clearAll, clearSession = origAll, origSession }()
	clearAll, clearSession = false, id

	if err := clearCmd.RunE(clearCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := store.Get(id); err == nil {
		t.Error("expected cleared session to be gone")
	}
	if _, err := store.Get(keep); err != nil {
		t.Errorf("expected other session kept: %v", err)
	}
}

func TestClearCommand_RefusesActiveSession(t *testing.T) {
	store := withTestSessions(t)
	meta, err := store.Begin("devbox", "/bin/bash")
	if err != nil {
		t.Fatalf("beginning session: %v", err)
	}

	origAll, origSession := clearAll, clearSession
	defer func() { clearAll, clearSession = origAll, origSession }()

	clearAll, clearSession = false, meta.SessionID
	err = clearCmd.RunE(clearCmd, nil)
	if err == nil || !strings.Contains(err.Error(), "active") {
		t.Fatalf("expected active-session refusal, got %v", err)
	}

	clearAll, clearSession = true, ""
	err = clearCmd.RunE(clearCmd, nil)
	if err == nil || !strings.Contains(err.Error(), "active") {
		t.Fatalf("expected active-session refusal for --all, got %v", err)
	}
}

func TestClearCommand_RemovesAll(t *testing.T) {
	store := withTestSessions(t)
	stoppedSession(t, store)
	stoppedSession(t, store)

	origAll, origSession := clearAll, clearSession
	defer func() { clearAll, clearSession = origAll, origSession }()
	clearAll, clearSession = true, ""

	if err := clearCmd.RunE(clearCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	remaining, err := store.List(models.SessionFilter{})
	if err != nil {
		t.Fatalf("listing sessions: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("expected no sessions left, got %d", len(remaining))
	}
}
