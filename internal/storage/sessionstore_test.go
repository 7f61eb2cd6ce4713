package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/valter-silva-au/recli/pkg/models"
)

func newTestStore(t *testing.T) SessionStore {
	t.Helper()
	return NewSessionStore(filepath.Join(t.TempDir(), "logs"))
}

func TestSessionStore_BeginEndLifecycle(t *testing.T) {
	store := newTestStore(t)

	meta, err := store.Begin("devbox", "/bin/bash")
	if err != nil {
		t.Fatalf("beginning session: %v", err)
	}
	if meta.SessionID == "" {
		t.Fatal("expected non-empty session ID")
	}
	if meta.Status != models.SessionActive {
		t.Errorf("expected status active, got %s", meta.Status)
	}
	if meta.Host != "devbox" || meta.Shell != "/bin/bash" {
		t.Errorf("expected host/shell preserved, got %s/%s", meta.Host, meta.Shell)
	}
	if meta.LogPath != store.CommandLogPath(meta.SessionID) {
		t.Errorf("expected log path %s, got %s", store.CommandLogPath(meta.SessionID), meta.LogPath)
	}

	active, err := store.Active()
	if err != nil {
		t.Fatalf("checking active: %v", err)
	}
	if active == nil || active.SessionID != meta.SessionID {
		t.Fatalf("expected session %s active, got %+v", meta.SessionID, active)
	}

	pid, err := store.ActivePid()
	if err != nil {
		t.Fatalf("reading active pid: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("expected pid %d, got %d", os.Getpid(), pid)
	}

	if err := store.End(meta.SessionID); err != nil {
		t.Fatalf("ending session: %v", err)
	}

	got, err := store.Get(meta.SessionID)
	if err != nil {
		t.Fatalf("getting ended session: %v", err)
	}
	if got.Status != models.SessionStopped {
		t.Errorf("expected status stopped, got %s", got.Status)
	}
	if got.EndedAt == nil {
		t.Error("expected ended_at to be set")
	}
	if got.UngracefulExit {
		t.Error("graceful end must not set the ungraceful flag")
	}

	active, err = store.Active()
	if err != nil {
		t.Fatalf("checking active after end: %v", err)
	}
	if active != nil {
		t.Errorf("expected no active session, got %s", active.SessionID)
	}
}

func TestSessionStore_ZeroCommandSessionStillStops(t *testing.T) {
	store := newTestStore(t)

	meta, err := store.Begin("devbox", "/bin/zsh")
	if err != nil {
		t.Fatalf("beginning session: %v", err)
	}
	// No command was ever appended; the commands file may not even exist.
	if err := store.End(meta.SessionID); err != nil {
		t.Fatalf("ending empty session: %v", err)
	}

	got, err := store.Get(meta.SessionID)
	if err != nil {
		t.Fatalf("getting session: %v", err)
	}
	if got.Status != models.SessionStopped {
		t.Errorf("expected stopped, got %s", got.Status)
	}
}

func TestSessionStore_SecondBeginRejectedWhileActive(t *testing.T) {
	store := newTestStore(t)

	meta, err := store.Begin("devbox", "/bin/bash")
	if err != nil {
		t.Fatalf("beginning first session: %v", err)
	}

	_, err = store.Begin("devbox", "/bin/bash")
	if err == nil {
		t.Fatal("expected second begin to fail while first is active")
	}
	if !strings.Contains(err.Error(), "already active") {
		t.Errorf("unexpected error: %v", err)
	}

	if err := store.End(meta.SessionID); err != nil {
		t.Fatalf("ending session: %v", err)
	}
	if _, err := store.Begin("devbox", "/bin/bash"); err != nil {
		t.Fatalf("expected begin to succeed after end: %v", err)
	}
}

func TestSessionStore_EndUnknownSession(t *testing.T) {
	store := newTestStore(t)

	err := store.End("20250101_000000_deadbeef")
	if err == nil {
		t.Fatal("expected error ending unknown session")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSessionStore_ListFiltersAndOrders(t *testing.T) {
	store := newTestStore(t)

	var ids []string
	for i := 0; i < 3; i++ {
		meta, err := store.Begin("devbox", "/bin/bash")
		if err != nil {
			t.Fatalf("beginning session %d: %v", i, err)
		}
		ids = append(ids, meta.SessionID)
		if i < 2 {
			if err := store.End(meta.SessionID); err != nil {
				t.Fatalf("ending session %d: %v", i, err)
			}
		}
	}

	all, err := store.List(models.SessionFilter{})
	if err != nil {
		t.Fatalf("listing sessions: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].CreatedAt.Before(all[i].CreatedAt) {
			t.Errorf("expected newest-first ordering at position %d", i)
		}
	}

	stopped, err := store.List(models.SessionFilter{Status: models.SessionStopped})
	if err != nil {
		t.Fatalf("listing stopped sessions: %v", err)
	}
	if len(stopped) != 2 {
		t.Errorf("expected 2 stopped sessions, got %d", len(stopped))
	}

	active, err := store.List(models.SessionFilter{Status: models.SessionActive})
	if err != nil {
		t.Fatalf("listing active sessions: %v", err)
	}
	if len(active) != 1 || active[0].SessionID != ids[2] {
		t.Errorf("expected only session %s active, got %+v", ids[2], active)
	}
}

func TestSessionStore_ListEmptyBase(t *testing.T) {
	store := NewSessionStore(filepath.Join(t.TempDir(), "never-created"))

	sessions, err := store.List(models.SessionFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("expected no sessions, got %d", len(sessions))
	}
}

func TestSessionStore_RecoverAbandonedSession(t *testing.T) {
	base := filepath.Join(t.TempDir(), "logs")
	store := NewSessionStore(base)

	meta, err := store.Begin("devbox", "/bin/bash")
	if err != nil {
		t.Fatalf("beginning session: %v", err)
	}

	// Simulate a crashed recorder: the pid file names a process that no
	// longer exists while the metadata still says active.
	deadPid := findDeadPid(t)
	record := fmt.Sprintf("%d %s", deadPid, meta.SessionID)
	if err := os.WriteFile(filepath.Join(base, "session.pid"), []byte(record), 0o600); err != nil {
		t.Fatalf("writing stale pid file: %v", err)
	}

	recovered, err := store.Recover()
	if err != nil {
		t.Fatalf("recovering: %v", err)
	}
	if len(recovered) != 1 || recovered[0].SessionID != meta.SessionID {
		t.Fatalf("expected session %s recovered, got %+v", meta.SessionID, recovered)
	}

	got, err := store.Get(meta.SessionID)
	if err != nil {
		t.Fatalf("getting recovered session: %v", err)
	}
	if got.Status != models.SessionStopped {
		t.Errorf("expected stopped, got %s", got.Status)
	}
	if !got.UngracefulExit {
		t.Error("expected ungraceful exit flag")
	}
	if got.EndedAt == nil {
		t.Error("expected ended_at to be set")
	}

	if _, err := os.Stat(filepath.Join(base, "session.pid")); !os.IsNotExist(err) {
		t.Error("expected stale pid file to be removed")
	}
}

func TestSessionStore_RecoverSparesLiveSession(t *testing.T) {
	store := newTestStore(t)

	meta, err := store.Begin("devbox", "/bin/bash")
	if err != nil {
		t.Fatalf("beginning session: %v", err)
	}

	recovered, err := store.Recover()
	if err != nil {
		t.Fatalf("recovering: %v", err)
	}
	if len(recovered) != 0 {
		t.Fatalf("expected no recovered sessions, got %+v", recovered)
	}

	got, err := store.Get(meta.SessionID)
	if err != nil {
		t.Fatalf("getting session: %v", err)
	}
	if got.Status != models.SessionActive {
		t.Errorf("live session must stay active, got %s", got.Status)
	}
}

func TestSessionStore_RemoveAndRemoveAll(t *testing.T) {
	store := newTestStore(t)

	var ids []string
	for i := 0; i < 2; i++ {
		meta, err := store.Begin("devbox", "/bin/bash")
		if err != nil {
			t.Fatalf("beginning session %d: %v", i, err)
		}
		if err := store.End(meta.SessionID); err != nil {
			t.Fatalf("ending session %d: %v", i, err)
		}
		ids = append(ids, meta.SessionID)
	}

	if err := store.Remove(ids[0]); err != nil {
		t.Fatalf("removing session: %v", err)
	}
	if _, err := store.Get(ids[0]); err == nil {
		t.Error("expected removed session to be gone")
	}
	if err := store.Remove(ids[0]); err == nil {
		t.Error("expected error removing an already removed session")
	}

	removed, err := store.RemoveAll()
	if err != nil {
		t.Fatalf("removing all: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}

	remaining, err := store.List(models.SessionFilter{})
	if err != nil {
		t.Fatalf("listing after removal: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("expected no sessions left, got %d", len(remaining))
	}
}

// findDeadPid scans high pid values for one that maps to no running process.
func findDeadPid(t *testing.T) int {
	t.Helper()
	for pid := 1 << 22; pid > 1<<20; pid -= 7919 {
		if !processExists(pid) {
			return pid
		}
	}
	t.Fatal("could not find a free pid")
	return 0
}
