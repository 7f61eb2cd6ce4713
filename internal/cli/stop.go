package cli

import (
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the active session",
	Long: `Signal the active recorder process to end its session. The recorder
flushes any in-flight command entry (with an unknown exit code), marks the
session stopped, and restores the terminal before exiting.

Fails when no session is active.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Sessions == nil {
			return fmt.Errorf("recorder not initialized")
		}

		active, err := Sessions.Active()
		if err != nil {
			return fmt.Errorf("checking active session: %w", err)
		}
		if active == nil {
			return fmt.Errorf("no active session")
		}

		pid, err := Sessions.ActivePid()
		if err != nil {
			return fmt.Errorf("stopping session %s: %w", active.SessionID, err)
		}

		if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
			return fmt.Errorf("stopping session %s: signalling pid %d: %w", active.SessionID, pid, err)
		}

		fmt.Printf("stop requested for session %s (pid %d)\n", active.SessionID, pid)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)
}
