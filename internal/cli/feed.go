// ABOUTME: Push, download and list commands bound through the option binder.
// ABOUTME: Resolves help and validation outcomes before any handler runs.
package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/feedz/cli/internal/commands"
	"github.com/feedz/cli/internal/feedz"
	"github.com/feedz/cli/internal/options"
)

// feedCommand builds a cobra command that hands its raw arguments to bind,
// lets prepare adjust the bound value, and runs the handler.
func feedCommand[T any](
	a *app,
	set *options.Set,
	bind func([]string) (T, error),
	prepare func(*T) error,
	handler func() commands.Handler[T],
) *cobra.Command {
	cmd := &cobra.Command{
		Use:                set.Command,
		Short:              set.Summary,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := bind(args)
			if errors.Is(err, options.ErrHelp) {
				set.PrintUsage(cmd.OutOrStdout(), programName)
				a.exitCode = commands.ExitOK
				return nil
			}
			var verr *options.ValidationError
			if errors.As(err, &verr) {
				for _, problem := range verr.Problems {
					a.logger.Error(problem, "command", set.Command)
				}
				_, _ = fmt.Fprintf(a.stderr, "Run '%s %s --help' for usage.\n", programName, set.Command)
				a.exitCode = commands.ExitFailure
				return nil
			}
			if err != nil {
				return err
			}

			if err := prepare(&opts); err != nil {
				a.logger.Error(err.Error(), "command", set.Command)
				a.exitCode = commands.ExitFailure
				return nil
			}

			journal, closeJournal := a.openJournal()
			a.journal = journal
			defer func() {
				closeJournal()
				a.journal = nil
			}()

			a.exitCode = handler().Handle(cmd.Context(), opts)
			return nil
		},
	}
	cmd.SetHelpFunc(func(c *cobra.Command, _ []string) {
		set.PrintUsage(c.OutOrStdout(), programName)
	})
	return cmd
}

func (a *app) newPushCmd() *cobra.Command {
	return feedCommand(a, options.PushSet, options.BindPush,
		func(o *options.Push) error {
			pat, err := a.resolvePAT(o.PAT)
			if err != nil {
				return err
			}
			o.PAT = pat
			return nil
		},
		func() commands.Handler[options.Push] {
			if a.pushHandler != nil {
				return a.pushHandler
			}
			return commands.NewPush(a.clientFactory(), a.logger, a.journal)
		},
	)
}

func (a *app) newDownloadCmd() *cobra.Command {
	return feedCommand(a, options.DownloadSet, options.BindDownload,
		func(o *options.Download) error {
			pat, err := a.resolveOptionalPAT(o.PAT)
			if err != nil {
				return err
			}
			o.PAT = pat
			return nil
		},
		func() commands.Handler[options.Download] {
			if a.downloadHandler != nil {
				return a.downloadHandler
			}
			return commands.NewDownload(a.clientFactory(), a.logger, a.journal, a.workDir)
		},
	)
}

func (a *app) newListCmd() *cobra.Command {
	return feedCommand(a, options.ListSet, options.BindList,
		func(o *options.List) error {
			pat, err := a.resolveOptionalPAT(o.PAT)
			if err != nil {
				return err
			}
			o.PAT = pat
			return nil
		},
		func() commands.Handler[options.List] {
			if a.listHandler != nil {
				return a.listHandler
			}
			return commands.NewList(a.clientFactory(), a.logger, a.journal, a.stdout)
		},
	)
}

// resolvePAT reads the token from stdin when it is given as "-".
func (a *app) resolvePAT(pat string) (string, error) {
	if pat != "-" {
		return pat, nil
	}
	secret, err := newPrompter(a.stdin, a.stderr).AskSecret("Personal access token")
	if err != nil {
		return "", fmt.Errorf("reading personal access token: %w", err)
	}
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("no personal access token was provided on stdin")
	}
	return secret, nil
}

func (a *app) resolveOptionalPAT(pat options.Optional[string]) (options.Optional[string], error) {
	value, ok := pat.Get()
	if !ok {
		return pat, nil
	}
	resolved, err := a.resolvePAT(value)
	if err != nil {
		return pat, err
	}
	return options.Some(resolved), nil
}

func (a *app) clientFactory() commands.ClientFactory {
	if a.factory != nil {
		return a.factory
	}
	f := &feedz.Factory{
		Logger:     a.logger,
		HTTPClient: newHTTPClient(),
		UserAgent:  userAgent(),
	}
	if a.cfg != nil {
		f.DefaultRegion = a.cfg.Region
		f.Overrides = feedz.Endpoints{API: a.cfg.APIURL, Feed: a.cfg.FeedURL}
	}
	return f
}
