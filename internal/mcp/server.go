// ABOUTME: MCP server setup and initialization.
// ABOUTME: Wires together feed tools, the history journal, and resources.
package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/feedz/cli/internal/commands"
	"github.com/feedz/cli/internal/config"
	"github.com/feedz/cli/internal/history"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Deps are the collaborators the MCP server drives.
type Deps struct {
	Config     *config.Config
	ConfigPath string
	Factory    commands.ClientFactory
	// Store is nil when history is disabled.
	Store        *history.Store
	DatabasePath string
	// WorkDir receives downloaded packages.
	WorkDir string
	Logger  *slog.Logger
	Version string
}

// Server wraps the MCP runtime and feed integrations.
type Server struct {
	mcp  *mcp.Server
	deps Deps
}

// NewServer sets up the MCP server with all tools and resources.
func NewServer(deps Deps) (*Server, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Factory == nil {
		return nil, fmt.Errorf("client factory is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if deps.Version == "" {
		deps.Version = "1.0.0"
	}

	impl := &mcp.Implementation{Name: "feedz", Version: deps.Version}
	srv := mcp.NewServer(impl, nil)

	server := &Server{mcp: srv, deps: deps}
	server.registerTools()
	server.registerResources()

	return server, nil
}

// Serve starts the MCP server over stdio.
func (s *Server) Serve(ctx context.Context) error {
	transport := &mcp.StdioTransport{}
	return s.mcp.Run(ctx, transport)
}

// journal returns the store as a handler journal, or nil when history is off.
func (s *Server) journal() commands.Journal {
	if s.deps.Store == nil {
		return nil
	}
	return s.deps.Store
}
