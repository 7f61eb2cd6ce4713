package cli

import (
	"github.com/valter-silva-au/recli/internal/observability"
	"github.com/valter-silva-au/recli/internal/storage"
	"github.com/valter-silva-au/recli/pkg/models"
)

// Service instances, set during app initialization in app.go.
var (
	// BasePath is the recorder's data root (typically ~/.recli).
	BasePath string

	// Config is the resolved global configuration.
	Config *models.GlobalConfig

	// Sessions is the session metadata store.
	Sessions storage.SessionStore

	// EventLog receives diagnostic events. May be nil when the diagnostic
	// log could not be opened; commands must tolerate that.
	EventLog observability.EventLog
)
