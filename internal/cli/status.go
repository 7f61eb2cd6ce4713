package cli

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/valter-silva-au/recli/pkg/models"
)

var (
	statusTitleStyle = lipgloss.NewStyle().Bold(true)
	statusDimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	statusWarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report recorder status",
	Long: `Report whether a session is currently active, and show the most recent
sessions. Sessions recovered after an abnormal exit are marked ungraceful.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Sessions == nil {
			return fmt.Errorf("recorder not initialized")
		}

		active, err := Sessions.Active()
		if err != nil {
			return fmt.Errorf("checking active session: %w", err)
		}

		if active != nil {
			fmt.Println(statusTitleStyle.Render("ACTIVE SESSION"))
			fmt.Printf("  %s\n", active.SessionID)
			fmt.Printf("  shell:   %s\n", active.Shell)
			fmt.Printf("  started: %s\n", active.CreatedAt.Format(time.RFC3339))
			fmt.Printf("  log:     %s\n", active.LogPath)
		} else {
			fmt.Println("no active session")
		}

		recent, err := Sessions.List(models.SessionFilter{})
		if err != nil {
			return fmt.Errorf("listing sessions: %w", err)
		}
		if len(recent) == 0 {
			return nil
		}
		if len(recent) > 5 {
			recent = recent[:5]
		}

		fmt.Println()
		fmt.Println(statusTitleStyle.Render("RECENT SESSIONS"))
		for _, meta := range recent {
			line := fmt.Sprintf("  %s  %s  %s", meta.SessionID, meta.Status, meta.CreatedAt.Format(time.RFC3339))
			if meta.UngracefulExit {
				line += "  " + statusWarnStyle.Render("(ungraceful exit)")
			}
			if active != nil && meta.SessionID == active.SessionID {
				fmt.Println(line)
			} else {
				fmt.Println(statusDimStyle.Render(line))
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
