// ABOUTME: Config command for displaying and updating configuration.
// ABOUTME: Shows the config file in TOML format and sets individual keys.
package cli

import (
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/feedz/cli/internal/config"
)

func (a *app) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE:  a.runConfig,
	}

	cmd.Flags().Bool("path", false, "print the config file path only")
	cmd.AddCommand(a.newConfigSetCmd())

	return cmd
}

func (a *app) runConfig(cmd *cobra.Command, args []string) error {
	showPathOnly, _ := cmd.Flags().GetBool("path")
	if showPathOnly {
		cmd.Println(a.cfgPath)
		return nil
	}

	data, err := toml.Marshal(a.cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	cmd.Printf("# %s\n%s", a.cfgPath, string(data))
	if len(data) == 0 || data[len(data)-1] != '\n' {
		cmd.Println()
	}
	return nil
}

func (a *app) newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> [value]",
		Short: "Set a configuration value (" + strings.Join(config.Keys(), ", ") + ")",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  a.runConfigSet,
	}
}

func (a *app) runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	var value string
	if len(args) == 2 {
		value = args[1]
	} else {
		answer, err := newPrompter(a.stdin, cmd.ErrOrStderr()).Ask(key, "")
		if err != nil {
			return fmt.Errorf("reading value for %s: %w", key, err)
		}
		value = answer
	}

	cfg := a.cfg.Clone()
	if cfg == nil {
		cfg = &config.Config{}
	}
	if err := cfg.Set(key, value); err != nil {
		return err
	}
	if err := config.Save(a.cfgPath, cfg); err != nil {
		return err
	}
	a.cfg = cfg

	cmd.Printf("Updated %s in %s\n", strings.ToLower(key), a.cfgPath)
	return nil
}
