// Package internal provides the App struct that wires the recorder's
// components together and initializes the CLI layer.
package internal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/valter-silva-au/recli/internal/cli"
	"github.com/valter-silva-au/recli/internal/core"
	"github.com/valter-silva-au/recli/internal/observability"
	"github.com/valter-silva-au/recli/internal/schema"
	"github.com/valter-silva-au/recli/internal/storage"
	"github.com/valter-silva-au/recli/pkg/models"
)

// App holds all service dependencies for the recorder.
type App struct {
	BasePath string

	ConfigMgr core.ConfigurationManager
	Config    *models.GlobalConfig

	Sessions storage.SessionStore
	EventLog observability.EventLog
}

// ResolveBasePath returns the recorder's data root.
func ResolveBasePath() string {
	return core.DefaultBasePath()
}

// NewApp creates and wires all components. basePath is the root directory
// where configuration and logs live (typically ~/.recli).
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath}

	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("creating data root: %w", err)
	}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	cfg, err := app.ConfigMgr.LoadGlobalConfig()
	if err != nil {
		return nil, err
	}
	app.Config = cfg

	// --- Storage ---
	app.Sessions = storage.NewSessionStore(cfg.LogDir)

	// --- Observability ---
	eventLogPath := filepath.Join(basePath, "recli_events.jsonl")
	app.EventLog, err = observability.NewJSONLEventLog(eventLogPath)
	if err != nil {
		// Non-fatal: recording works without the diagnostic log.
		app.EventLog = nil
	}

	// --- Crash recovery ---
	// Sessions left active by a dead recorder are closed before any command
	// runs, so status/list never report a phantom active session.
	recovered, err := app.Sessions.Recover()
	if err != nil {
		return nil, fmt.Errorf("recovering abandoned sessions: %w", err)
	}
	for _, meta := range recovered {
		if app.EventLog != nil {
			_ = app.EventLog.Write(observability.Event{
				Level:     schema.LevelWarn,
				Type:      observability.TypeSessionRecovered,
				SessionID: meta.SessionID,
				Message:   "session left active by a previous run was closed as abandoned",
			})
		}
	}

	// --- Wire CLI package-level variables ---
	cli.BasePath = basePath
	cli.Config = app.Config
	cli.Sessions = app.Sessions
	cli.EventLog = app.EventLog

	return app, nil
}
