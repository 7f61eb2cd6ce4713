package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/recli/internal/capture"
	"github.com/valter-silva-au/recli/internal/observability"
	"github.com/valter-silva-au/recli/internal/schema"
	"github.com/valter-silva-au/recli/internal/storage"
	"github.com/valter-silva-au/recli/pkg/models"
)

var startShell string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a recorded shell session",
	Long: `Start a new session: spawn the configured shell inside a pseudo-terminal
and record executed commands until the shell exits.

The terminal behaves exactly as the bare shell would; recording is passive.
Press Ctrl-X (configurable) to end the session without typing "exit".

Exit codes and working directories are taken from OSC 133 / OSC 7 shell
integration when the shell emits it; without integration, boundaries fall
back to prompt heuristics and exit codes are recorded as unknown.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Sessions == nil || Config == nil {
			return fmt.Errorf("recorder not initialized")
		}

		shell := startShell
		if shell == "" {
			shell = Config.Shell
		}

		meta, err := Sessions.Begin(Config.Host, shell)
		if err != nil {
			return err
		}

		commandLog, err := storage.OpenCommandLog(meta.LogPath)
		if err != nil {
			// The session directory exists but is unusable; close the
			// session so it is not left dangling as active.
			_ = Sessions.End(meta.SessionID)
			return fmt.Errorf("opening command log: %w", err)
		}
		defer func() { _ = commandLog.Close() }()

		detector, err := capture.NewDetector(Config.Detector, func(entry models.CommandEntry) {
			event := schema.ToEvent(entry, *meta)
			if appendErr := commandLog.Append(event); appendErr != nil {
				// Fatal to this append, but prior records stay intact and
				// the session keeps running.
				writeDiagnostic(observability.Event{
					Level:     schema.LevelError,
					Type:      observability.TypeWriteFailed,
					SessionID: meta.SessionID,
					Message:   appendErr.Error(),
				})
				fmt.Fprintf(os.Stderr, "\r\nrecli: %v\r\n", appendErr)
			}
		})
		if err != nil {
			_ = Sessions.End(meta.SessionID)
			return fmt.Errorf("configuring detector: %w", err)
		}

		driver := capture.NewDriver(shell, sessionEnv(meta.SessionID), Config.Hotkey, detector)

		// The hotkey raises a pause event; the CLI consumes it as a stop
		// request for the wrapped shell.
		go func() {
			for range driver.Hotkey() {
				driver.Shutdown()
			}
		}()

		writeDiagnostic(observability.Event{
			Level:     schema.LevelInfo,
			Type:      observability.TypeSessionStarted,
			SessionID: meta.SessionID,
			Message:   "session started",
			Data:      map[string]any{"shell": shell},
		})

		shellExit, runErr := driver.Run()

		endErr := Sessions.End(meta.SessionID)

		writeDiagnostic(observability.Event{
			Level:     schema.LevelInfo,
			Type:      observability.TypeSessionStopped,
			SessionID: meta.SessionID,
			Message:   "session stopped",
			Data:      map[string]any{"shell_exit": shellExit},
		})

		if runErr != nil {
			return runErr
		}
		if endErr != nil {
			return endErr
		}

		fmt.Printf("session %s ended, log saved to %s\n", meta.SessionID, meta.LogPath)
		return nil
	},
}

// sessionEnv extends the inherited environment with the session identifier
// so shell integration snippets can tag their marker output.
func sessionEnv(sessionID string) []string {
	return append(os.Environ(), "RECLI_SESSION_ID="+sessionID)
}

func writeDiagnostic(event observability.Event) {
	if EventLog == nil {
		return
	}
	_ = EventLog.Write(event)
}

func init() {
	startCmd.Flags().StringVar(&startShell, "shell", "", "shell to wrap (default: configured shell, then $SHELL)")
	rootCmd.AddCommand(startCmd)
}
