// Package storage owns the on-disk layout of recorded sessions: the
// per-session directory with its metadata file, and the append-only command
// log inside it.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/valter-silva-au/recli/pkg/models"
	"gopkg.in/yaml.v3"
)

// SessionStore defines the interface for session identity and directory
// lifecycle. It exclusively owns session directories; append access to the
// commands file inside a directory belongs to the CommandLog.
type SessionStore interface {
	Begin(host, shell string) (*models.SessionMetadata, error)
	End(sessionID string) error
	Get(sessionID string) (*models.SessionMetadata, error)
	List(filter models.SessionFilter) ([]models.SessionMetadata, error)
	Active() (*models.SessionMetadata, error)
	ActivePid() (int, error)
	Recover() ([]models.SessionMetadata, error)
	Remove(sessionID string) error
	RemoveAll() (int, error)
	CommandLogPath(sessionID string) string
}

const (
	metadataFile   = "metadata.yaml"
	commandLogFile = "commands.jsonl"
	pidFile        = "session.pid"
)

type fileSessionStore struct {
	basePath string
}

// NewSessionStore creates a SessionStore rooted at basePath. Each session
// lives in basePath/<session_id>/ with a YAML metadata file and a JSONL
// command log.
func NewSessionStore(basePath string) SessionStore {
	return &fileSessionStore{basePath: basePath}
}

func (s *fileSessionStore) sessionDir(id string) string {
	return filepath.Join(s.basePath, id)
}

func (s *fileSessionStore) metadataPath(id string) string {
	return filepath.Join(s.sessionDir(id), metadataFile)
}

// CommandLogPath returns the append-only commands file for a session.
func (s *fileSessionStore) CommandLogPath(id string) string {
	return filepath.Join(s.sessionDir(id), commandLogFile)
}

func (s *fileSessionStore) pidPath() string {
	return filepath.Join(s.basePath, pidFile)
}

// generateID returns a collision-resistant session identifier. The UTC
// stamp keeps directories sortable; the UUID fragment makes concurrent
// sessions on the same host distinct even within one second.
func generateID(now time.Time) string {
	return now.UTC().Format("20060102_150405") + "_" + uuid.NewString()[:8]
}

// Begin allocates a new session: identifier, directory, initial metadata
// with status active, and the pid file pointing at this recorder process.
// Fails when another session is already active on this store.
func (s *fileSessionStore) Begin(host, shell string) (*models.SessionMetadata, error) {
	if err := os.MkdirAll(s.basePath, 0o755); err != nil {
		return nil, fmt.Errorf("beginning session: creating log root: %w", err)
	}

	unlock, err := s.lockBase()
	if err != nil {
		return nil, fmt.Errorf("beginning session: acquiring lock: %w", err)
	}
	defer func() { _ = unlock() }()

	if active, err := s.Active(); err != nil {
		return nil, fmt.Errorf("beginning session: %w", err)
	} else if active != nil {
		return nil, fmt.Errorf("beginning session: session %s already active", active.SessionID)
	}

	now := time.Now().UTC()
	id := generateID(now)

	// Safe under repeated invocation: a directory surviving a prior
	// crash-recovery run is not an error.
	if err := os.MkdirAll(s.sessionDir(id), 0o755); err != nil {
		return nil, fmt.Errorf("beginning session: creating directory: %w", err)
	}

	meta := &models.SessionMetadata{
		SessionID: id,
		Host:      host,
		Shell:     shell,
		CreatedAt: now,
		Status:    models.SessionActive,
		LogPath:   s.CommandLogPath(id),
	}
	if err := s.saveMetadata(meta); err != nil {
		return nil, fmt.Errorf("beginning session: writing metadata: %w", err)
	}

	pidRecord := fmt.Sprintf("%d %s", os.Getpid(), id)
	if err := os.WriteFile(s.pidPath(), []byte(pidRecord), 0o600); err != nil {
		return nil, fmt.Errorf("beginning session: writing pid file: %w", err)
	}

	return meta, nil
}

// End marks a session stopped and records the final timestamp. Ending a
// session that does not exist is a distinct error, never a silent no-op.
func (s *fileSessionStore) End(sessionID string) error {
	meta, err := s.Get(sessionID)
	if err != nil {
		return fmt.Errorf("ending session: %w", err)
	}

	now := time.Now().UTC()
	meta.Status = models.SessionStopped
	meta.EndedAt = &now
	if err := s.saveMetadata(meta); err != nil {
		return fmt.Errorf("ending session: writing metadata: %w", err)
	}

	// Drop the pid file only when it names this session; a newer session
	// may already own it.
	if _, id, err := s.readPidFile(); err == nil && id == sessionID {
		_ = os.Remove(s.pidPath())
	}

	return nil
}

// Get loads the metadata for a session by ID.
func (s *fileSessionStore) Get(sessionID string) (*models.SessionMetadata, error) {
	data, err := os.ReadFile(s.metadataPath(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("session %s not found", sessionID)
		}
		return nil, fmt.Errorf("reading session metadata: %w", err)
	}

	var meta models.SessionMetadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parsing session metadata: %w", err)
	}
	return &meta, nil
}

// List returns sessions matching the filter, newest first.
func (s *fileSessionStore) List(filter models.SessionFilter) ([]models.SessionMetadata, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	var result []models.SessionMetadata
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Get(entry.Name())
		if err != nil {
			continue // not a session directory
		}
		if filter.Status != "" && meta.Status != filter.Status {
			continue
		}
		if filter.Since != nil && meta.CreatedAt.Before(*filter.Since) {
			continue
		}
		if filter.Until != nil && meta.CreatedAt.After(*filter.Until) {
			continue
		}
		result = append(result, *meta)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// Active returns the session named by the pid file when its recorder
// process is still alive, nil otherwise.
func (s *fileSessionStore) Active() (*models.SessionMetadata, error) {
	pid, sessionID, err := s.readPidFile()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if !processExists(pid) {
		return nil, nil
	}

	meta, err := s.Get(sessionID)
	if err != nil {
		return nil, nil // pid file points at a removed session
	}
	if meta.Status != models.SessionActive {
		return nil, nil
	}
	return meta, nil
}

// ActivePid returns the pid of the live recorder process, or an error when
// no session is active.
func (s *fileSessionStore) ActivePid() (int, error) {
	pid, _, err := s.readPidFile()
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("no active session")
		}
		return 0, err
	}
	if !processExists(pid) {
		return 0, fmt.Errorf("no active session")
	}
	return pid, nil
}

// Recover closes sessions left active by a prior crash: any session whose
// metadata says active but whose recorder process is gone is marked stopped
// with the ungraceful flag. Returns the sessions it closed.
func (s *fileSessionStore) Recover() ([]models.SessionMetadata, error) {
	sessions, err := s.List(models.SessionFilter{Status: models.SessionActive})
	if err != nil {
		return nil, fmt.Errorf("recovering sessions: %w", err)
	}

	live, _ := s.Active()

	var recovered []models.SessionMetadata
	for i := range sessions {
		meta := sessions[i]
		if live != nil && live.SessionID == meta.SessionID {
			continue
		}

		now := time.Now().UTC()
		meta.Status = models.SessionStopped
		meta.EndedAt = &now
		meta.UngracefulExit = true
		if err := s.saveMetadata(&meta); err != nil {
			return recovered, fmt.Errorf("recovering session %s: %w", meta.SessionID, err)
		}
		recovered = append(recovered, meta)
	}

	if live == nil {
		_ = os.Remove(s.pidPath())
	}
	return recovered, nil
}

// Remove deletes one session directory.
func (s *fileSessionStore) Remove(sessionID string) error {
	if _, err := s.Get(sessionID); err != nil {
		return fmt.Errorf("removing session: %w", err)
	}
	if err := os.RemoveAll(s.sessionDir(sessionID)); err != nil {
		return fmt.Errorf("removing session: %w", err)
	}
	return nil
}

// RemoveAll deletes every recorded session directory, returning the count.
func (s *fileSessionStore) RemoveAll() (int, error) {
	sessions, err := s.List(models.SessionFilter{})
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, meta := range sessions {
		if err := s.Remove(meta.SessionID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (s *fileSessionStore) saveMetadata(meta *models.SessionMetadata) error {
	data, err := yaml.Marshal(meta)
	if err != nil {
		return err
	}
	return os.WriteFile(s.metadataPath(meta.SessionID), data, 0o600)
}

func (s *fileSessionStore) readPidFile() (pid int, sessionID string, err error) {
	data, err := os.ReadFile(s.pidPath())
	if err != nil {
		return 0, "", err
	}
	fields := strings.Fields(strings.TrimSpace(string(data)))
	if len(fields) != 2 {
		return 0, "", fmt.Errorf("malformed pid file %s", s.pidPath())
	}
	pid, err = strconv.Atoi(fields[0])
	if err != nil {
		return 0, "", fmt.Errorf("parsing pid file: %w", err)
	}
	return pid, fields[1], nil
}

// lockBase acquires an exclusive lock guarding session creation so two
// recorders starting at once cannot both claim the pid file.
func (s *fileSessionStore) lockBase() (unlock func() error, err error) {
	f, err := os.OpenFile(filepath.Join(s.basePath, ".lock"), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	// syscall.Flock is Unix-specific, matching the PTY driver's platform.
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("acquiring lock: %w", err)
	}

	return func() error {
		defer f.Close()
		return syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	}, nil
}

// processExists checks liveness by sending signal 0.
func processExists(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}
