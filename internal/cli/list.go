package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/valter-silva-au/recli/internal/schema"
	"github.com/valter-silva-au/recli/internal/storage"
	"github.com/valter-silva-au/recli/pkg/models"
)

var (
	listSession string
	listLimit   int
	listJSON    bool
)

var (
	listHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230"))
	listErrorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	listWarnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent command entries",
	Long: `List captured command entries for a session, oldest first. Without
--session the most recent session is used.

Exit codes the boundary detector could not determine are shown as "?" —
unknown is recorded data, not an error.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Sessions == nil {
			return fmt.Errorf("recorder not initialized")
		}

		sessionID := listSession
		if sessionID == "" {
			sessions, err := Sessions.List(models.SessionFilter{})
			if err != nil {
				return fmt.Errorf("listing sessions: %w", err)
			}
			if len(sessions) == 0 {
				return fmt.Errorf("no recorded sessions")
			}
			sessionID = sessions[0].SessionID
		} else if _, err := Sessions.Get(sessionID); err != nil {
			return err
		}

		events, err := storage.ReadCommandLog(Sessions.CommandLogPath(sessionID), models.EntryFilter{
			Limit: listLimit,
		})
		if err != nil {
			return fmt.Errorf("reading command log: %w", err)
		}

		if listJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(events)
		}

		if len(events) == 0 {
			fmt.Printf("no command entries in session %s\n", sessionID)
			return nil
		}

		fmt.Printf("session %s: %d entries\n\n", sessionID, len(events))
		fmt.Println(listHeaderStyle.Render(fmt.Sprintf("  %-4s %-20s %-5s %s", "OFF", "TIMESTAMP", "EXIT", "COMMAND")))
		for _, event := range events {
			exit := "?"
			if event.ExitCode != nil {
				exit = fmt.Sprintf("%d", *event.ExitCode)
			}
			line := fmt.Sprintf("  %-4d %-20s %-5s %s", event.Offset, event.Timestamp, exit, truncateCommand(event.Command))
			switch event.Level {
			case schema.LevelError:
				fmt.Println(listErrorStyle.Render(line))
			case schema.LevelWarn:
				fmt.Println(listWarnStyle.Render(line))
			default:
				fmt.Println(line)
			}
		}

		return nil
	},
}

func truncateCommand(command string) string {
	command = strings.ReplaceAll(command, "\n", " ")
	if len(command) > 80 {
		return command[:77] + "..."
	}
	return command
}

func init() {
	listCmd.Flags().StringVar(&listSession, "session", "", "session ID (default: most recent)")
	listCmd.Flags().IntVar(&listLimit, "limit", 20, "maximum entries to show (0 = all)")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "output raw events as JSON")
	rootCmd.AddCommand(listCmd)
}
