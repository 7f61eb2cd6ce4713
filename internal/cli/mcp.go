package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/recli/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve recorded sessions over MCP",
	Long: `Run an MCP (Model Context Protocol) server on stdio exposing read-only
tools over the session store: list_sessions, get_session, and list_commands.
External tooling consumes the log schema through this surface; nothing here
mutates session state.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Sessions == nil {
			return fmt.Errorf("recorder not initialized")
		}
		server := mcp.NewServer(Sessions, appVersion)
		return server.Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
