// ABOUTME: Root command and CLI setup for the feedz application.
// ABOUTME: Configures Cobra commands, resolves paths, and maps outcomes to exit codes.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/feedz/cli/internal/commands"
	"github.com/feedz/cli/internal/config"
	"github.com/feedz/cli/internal/options"
)

const programName = "feedz"

// version is overridden at build time with -ldflags "-X".
var version = "dev"

// app carries the state shared by every command of one invocation.
type app struct {
	stdout  io.Writer
	stderr  io.Writer
	stdin   io.Reader
	logger  *slog.Logger
	cfg     *config.Config
	cfgPath string
	workDir string

	exitCode int
	journal  commands.Journal

	// Nil fields use the feedz.io implementations.
	factory         commands.ClientFactory
	pushHandler     commands.Handler[options.Push]
	downloadHandler commands.Handler[options.Download]
	listHandler     commands.Handler[options.List]
}

// usageError marks failures that should be followed by the usage banner.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// Execute runs the CLI against the process arguments and streams.
func Execute() int {
	return Run(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
}

// Run dispatches args to a command and returns the process exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return newApp(stdout, stderr, os.Stdin).run(ctx, args)
}

func newApp(stdout, stderr io.Writer, stdin io.Reader) *app {
	return &app{
		stdout: stdout,
		stderr: stderr,
		stdin:  stdin,
		logger: newLogger("info", "text", stderr),
	}
}

func (a *app) run(ctx context.Context, args []string) (code int) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("application terminated unexpectedly", "panic", fmt.Sprint(r))
			code = commands.ExitFailure
		}
	}()

	a.exitCode = commands.ExitOK
	settingsErr := a.loadSettings()

	root := a.newRootCmd()
	root.SetArgs(args)
	if settingsErr != nil {
		if !runsWithoutConfig(root, args) {
			a.logger.Error("unable to load configuration", "error", settingsErr)
			return commands.ExitFailure
		}
		a.logger.Warn("ignoring configuration that could not be loaded", "error", settingsErr)
	}

	if err := root.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(a.stderr, "Error: %v\n", err)
		var uerr *usageError
		if errors.As(err, &uerr) {
			_, _ = fmt.Fprintln(a.stderr)
			_, _ = fmt.Fprint(a.stderr, root.UsageString())
		}
		return commands.ExitFailure
	}
	return a.exitCode
}

// loadSettings always leaves a usable config and logger behind, falling
// back to defaults when the file cannot be read.
func (a *app) loadSettings() error {
	a.cfg = &config.Config{}
	a.logger = newLogger("info", "text", a.stderr)

	if a.workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("locating working directory: %w", err)
		}
		a.workDir = wd
	}

	cfgPath, err := resolveConfigPath()
	if err != nil {
		return err
	}
	a.cfgPath = cfgPath

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = newLogger(cfg.LogLevel, cfg.LogFormat, a.stderr)
	return nil
}

// runsWithoutConfig reports whether args reach help or the config commands,
// which stay usable so a broken config file can be inspected and repaired.
func runsWithoutConfig(root *cobra.Command, args []string) bool {
	cmd, _, err := root.Find(args)
	if err != nil {
		return false
	}
	switch strings.TrimPrefix(cmd.CommandPath(), programName) {
	case "", " help", " config", " config set":
		return true
	}
	return false
}

func (a *app) newRootCmd() *cobra.Command {
	cobra.EnableCaseInsensitive = true

	cmd := &cobra.Command{
		Use:     programName,
		Short:   "feedz is the command line client for feedz.io package feeds",
		Long:    "feedz pushes, lists, and downloads packages in feedz.io repositories.",
		Version: version,
		Args:    cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return &usageError{err: fmt.Errorf("unknown command %q for %q", args[0], programName)}
			}
			return cmd.Help()
		},
	}
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	cmd.AddCommand(
		a.newPushCmd(),
		a.newDownloadCmd(),
		a.newListCmd(),
		a.newConfigCmd(),
		a.newHistoryCmd(),
		a.newMCPCmd(),
	)

	return cmd
}

func resolveConfigPath() (string, error) {
	if path := os.Getenv("FEEDZ_CONFIG"); path != "" {
		return path, nil
	}

	// Use XDG_CONFIG_HOME if set, otherwise ~/.config (even on macOS)
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("locating home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, programName, "config.toml"), nil
}

func resolveDataDir() (string, error) {
	// Use XDG_DATA_HOME if set, otherwise ~/.local/share (even on macOS)
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("locating home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, programName), nil
}
