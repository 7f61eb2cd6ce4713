package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	clearAll     bool
	clearSession string
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete recorded history",
	Long: `Delete recorded session directories. Deletion is always explicit: pass
--all for everything or --session for one session. The active session
cannot be cleared while it is running.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Sessions == nil {
			return fmt.Errorf("recorder not initialized")
		}
		if clearAll == (clearSession != "") {
			return fmt.Errorf("specify exactly one of --all or --session")
		}

		active, err := Sessions.Active()
		if err != nil {
			return fmt.Errorf("checking active session: %w", err)
		}

		if clearSession != "" {
			if active != nil && active.SessionID == clearSession {
				return fmt.Errorf("session %s is active; stop it before clearing", clearSession)
			}
			if err := Sessions.Remove(clearSession); err != nil {
				return err
			}
			fmt.Printf("removed session %s\n", clearSession)
			return nil
		}

		if active != nil {
			return fmt.Errorf("session %s is active; stop it before clearing all history", active.SessionID)
		}
		removed, err := Sessions.RemoveAll()
		if err != nil {
			return err
		}
		fmt.Printf("removed %d session(s)\n", removed)
		return nil
	},
}

func init() {
	clearCmd.Flags().BoolVar(&clearAll, "all", false, "remove all recorded sessions")
	clearCmd.Flags().StringVar(&clearSession, "session", "", "remove one session by ID")
	rootCmd.AddCommand(clearCmd)
}
