// ABOUTME: MCP command for starting the Model Context Protocol server.
// ABOUTME: Exposes feed operations as MCP tools over stdio.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	feedzmcp "github.com/feedz/cli/internal/mcp"
)

func (a *app) newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server",
		Args:  cobra.NoArgs,
		RunE:  a.runMCP,
	}
}

func (a *app) runMCP(cmd *cobra.Command, args []string) error {
	deps := feedzmcp.Deps{
		Config:     a.cfg,
		ConfigPath: a.cfgPath,
		Factory:    a.clientFactory(),
		WorkDir:    a.workDir,
		Logger:     a.logger,
		Version:    version,
	}

	if a.cfg.History {
		store, dbPath, err := openStore()
		if err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v, history will not be recorded\n", err)
		} else {
			defer func() { _ = store.Close() }()
			deps.Store = store
			deps.DatabasePath = dbPath
		}
	}

	server, err := feedzmcp.NewServer(deps)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Starting MCP server (stdio)...")
	return server.Serve(cmd.Context())
}
