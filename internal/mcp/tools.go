// ABOUTME: MCP tool definitions and handlers.
// ABOUTME: Binds tool input through the CLI option binder and runs the same handlers.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/feedz/cli/internal/commands"
	"github.com/feedz/cli/internal/history"
	"github.com/feedz/cli/internal/options"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) registerTools() {
	s.registerListPackagesTool()
	s.registerDownloadPackageTool()
	s.registerPushPackagesTool()
	s.registerListHistoryTool()
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func scopeProps() map[string]any {
	return map[string]any{
		"organisation": stringProp("The slug of the organisation"),
		"repository":   stringProp("The slug of the repository"),
		"pat":          stringProp("Personal access token to use for authentication"),
		"region":       stringProp("The region hosting the repository"),
	}
}

func (s *Server) registerListPackagesTool() {
	props := scopeProps()
	props["package_id"] = stringProp("Only list versions of this package id")

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_packages",
		Description: "List packages in a feedz.io repository, mirroring the CLI 'list' command.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": props,
			"required":   []string{"organisation", "repository"},
		},
	}, s.handleListPackages)
}

func (s *Server) registerDownloadPackageTool() {
	props := scopeProps()
	props["package_id"] = stringProp("The id of the package to download")
	props["version"] = stringProp("The version to download. Defaults to the latest release")
	props["similar_package_path"] = stringProp("A local package or directory that may already hold the same content")
	props["timeout"] = map[string]any{
		"type":        "integer",
		"minimum":     1,
		"description": "Time to wait for the download in seconds (default 1800)",
	}

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "download_package",
		Description: "Download a package into the server's working directory, mirroring the CLI 'download' command.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": props,
			"required":   []string{"organisation", "repository", "package_id"},
		},
	}, s.handleDownloadPackage)
}

func (s *Server) registerPushPackagesTool() {
	props := scopeProps()
	props["files"] = map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "string"},
		"minItems":    1,
		"description": "Package files to push, in order",
	}
	props["force"] = map[string]any{
		"type":        "boolean",
		"description": "Overwrite any existing package with the same id and version",
	}
	props["timeout"] = map[string]any{
		"type":        "integer",
		"minimum":     1,
		"description": "Time to wait for each push in seconds (default 1800)",
	}

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "push_packages",
		Description: "Push package files to a feedz.io repository, mirroring the CLI 'push' command.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": props,
			"required":   []string{"organisation", "repository", "pat", "files"},
		},
	}, s.handlePushPackages)
}

func (s *Server) registerListHistoryTool() {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"limit": map[string]any{
				"type":        "integer",
				"minimum":     1,
				"description": "Number of rows to return (default 20).",
			},
			"since": stringProp("Natural language or ISO date filter (e.g. 'yesterday', '2025-01-01')."),
			"command": map[string]any{
				"type":        "string",
				"enum":        []string{"push", "download", "list"},
				"description": "Only return operations of this command.",
			},
		},
	}

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_history",
		Description: "Query the local journal of push, download and list operations. Requires history = true in the config.",
		InputSchema: schema,
	}, s.handleListHistory)
}

// ScopeInput identifies the repository a tool acts on.
type ScopeInput struct {
	Organisation string  `json:"organisation"`
	Repository   string  `json:"repository"`
	PAT          *string `json:"pat,omitempty"`
	Region       *string `json:"region,omitempty"`
}

type ListPackagesInput struct {
	ScopeInput
	PackageID *string `json:"package_id,omitempty"`
}

type DownloadPackageInput struct {
	ScopeInput
	PackageID          string  `json:"package_id"`
	Version            *string `json:"version,omitempty"`
	SimilarPackagePath *string `json:"similar_package_path,omitempty"`
	Timeout            *int    `json:"timeout,omitempty"`
}

type PushPackagesInput struct {
	ScopeInput
	Files   []string `json:"files"`
	Force   bool     `json:"force,omitempty"`
	Timeout *int     `json:"timeout,omitempty"`
}

// CommandOutput reports a handler run.
type CommandOutput struct {
	ExitCode int      `json:"exit_code"`
	Lines    []string `json:"lines,omitempty"`
	Log      []string `json:"log,omitempty"`
}

// argv renders tool input as command-line tokens for the option binder.
type argv []string

func (a *argv) add(name, value string) {
	*a = append(*a, "--"+name+"="+value)
}

func (a *argv) addOptional(name string, value *string) {
	if value != nil {
		a.add(name, *value)
	}
}

func (a *argv) addScope(in ScopeInput) {
	a.add("organisation", in.Organisation)
	a.add("repository", in.Repository)
	a.addOptional("pat", in.PAT)
	a.addOptional("region", in.Region)
}

func (a *argv) addTimeout(timeout *int) {
	if timeout != nil {
		a.add("timeout", strconv.Itoa(*timeout))
	}
}

func (s *Server) handleListPackages(ctx context.Context, _ *mcp.CallToolRequest, input ListPackagesInput) (*mcp.CallToolResult, CommandOutput, error) {
	var args argv
	args.addScope(input.ScopeInput)
	args.addOptional("id", input.PackageID)

	opts, err := options.BindList(args)
	if err != nil {
		return nil, CommandOutput{}, bindError(err)
	}

	var out bytes.Buffer
	return s.run(&out, func(logger *slog.Logger) int {
		return commands.NewList(s.deps.Factory, logger, s.journal(), &out).Handle(ctx, opts)
	})
}

func (s *Server) handleDownloadPackage(ctx context.Context, _ *mcp.CallToolRequest, input DownloadPackageInput) (*mcp.CallToolResult, CommandOutput, error) {
	var args argv
	args.addScope(input.ScopeInput)
	args.add("id", input.PackageID)
	args.addOptional("version", input.Version)
	args.addOptional("similar-package-path", input.SimilarPackagePath)
	args.addTimeout(input.Timeout)

	opts, err := options.BindDownload(args)
	if err != nil {
		return nil, CommandOutput{}, bindError(err)
	}

	return s.run(nil, func(logger *slog.Logger) int {
		return commands.NewDownload(s.deps.Factory, logger, s.journal(), s.deps.WorkDir).Handle(ctx, opts)
	})
}

func (s *Server) handlePushPackages(ctx context.Context, _ *mcp.CallToolRequest, input PushPackagesInput) (*mcp.CallToolResult, CommandOutput, error) {
	var args argv
	args.addScope(input.ScopeInput)
	for _, file := range input.Files {
		args.add("file", file)
	}
	if input.Force {
		args = append(args, "--force")
	}
	args.addTimeout(input.Timeout)

	opts, err := options.BindPush(args)
	if err != nil {
		return nil, CommandOutput{}, bindError(err)
	}

	return s.run(nil, func(logger *slog.Logger) int {
		return commands.NewPush(s.deps.Factory, logger, s.journal()).Handle(ctx, opts)
	})
}

// run executes a handler with a captured logger and reports its output.
func (s *Server) run(out *bytes.Buffer, handle func(*slog.Logger) int) (*mcp.CallToolResult, CommandOutput, error) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	}))

	code := handle(logger)
	output := CommandOutput{ExitCode: code, Log: splitLines(logs.String())}
	if out != nil {
		output.Lines = splitLines(out.String())
	}
	s.deps.Logger.Debug("mcp tool finished", "exit_code", code)

	result, err := buildToolResult(output)
	if err != nil {
		return nil, output, err
	}
	result.IsError = code != commands.ExitOK
	return result, output, nil
}

func bindError(err error) error {
	var verr *options.ValidationError
	if errors.As(err, &verr) {
		return fmt.Errorf("invalid input: %s", strings.Join(verr.Problems, "; "))
	}
	return err
}

type ListHistoryInput struct {
	Limit   *int    `json:"limit,omitempty"`
	Since   *string `json:"since,omitempty"`
	Command *string `json:"command,omitempty"`
}

type ListHistoryOutput struct {
	Count      int             `json:"count"`
	Limit      int             `json:"limit"`
	Since      *time.Time      `json:"since,omitempty"`
	Command    string          `json:"command,omitempty"`
	Operations []history.Entry `json:"operations"`
}

func (s *Server) handleListHistory(ctx context.Context, _ *mcp.CallToolRequest, input ListHistoryInput) (*mcp.CallToolResult, ListHistoryOutput, error) {
	if s.deps.Store == nil {
		return nil, ListHistoryOutput{}, fmt.Errorf("history is disabled, run 'feedz config set history true' to enable it")
	}

	limit := 20
	if input.Limit != nil && *input.Limit > 0 {
		limit = *input.Limit
	}

	var sinceTime *time.Time
	if input.Since != nil && *input.Since != "" {
		parsed, err := dateparse.ParseLocal(*input.Since)
		if err != nil {
			return nil, ListHistoryOutput{}, fmt.Errorf("invalid since value: %w", err)
		}
		sinceTime = &parsed
	}

	command := ""
	if input.Command != nil {
		command = *input.Command
	}

	entries, err := s.deps.Store.Query(ctx, history.Filter{Limit: limit, Since: sinceTime, Command: command})
	if err != nil {
		return nil, ListHistoryOutput{}, err
	}

	output := ListHistoryOutput{
		Count:      len(entries),
		Limit:      limit,
		Since:      sinceTime,
		Command:    command,
		Operations: entries,
	}

	result, err := buildToolResult(output)
	if err != nil {
		return nil, output, err
	}
	return result, output, nil
}

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func buildToolResult(payload any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil
}
