// ABOUTME: List handler printing packages in a repository.
// ABOUTME: Writes one id/version/extension line per package.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/feedz/cli/internal/feedz"
	"github.com/feedz/cli/internal/history"
	"github.com/feedz/cli/internal/options"
)

// List prints packages.
type List struct {
	factory ClientFactory
	logger  *slog.Logger
	journal Journal
	out     io.Writer
}

// NewList returns a list handler printing to out. journal may be nil.
func NewList(factory ClientFactory, logger *slog.Logger, journal Journal, out io.Writer) *List {
	return &List{factory: factory, logger: logger, journal: journalOrNop(journal), out: out}
}

// Handle lists every package, or every version of one package id.
func (h *List) Handle(ctx context.Context, opts options.List) int {
	client := h.factory.Create(opts.PAT.OrElse(""), opts.Region.OrElse(""))
	client.SetTimeout(options.DefaultTimeout)
	repo := client.ScopeToRepository(opts.Organisation, opts.Repository)

	var (
		pkgs []feedz.Package
		err  error
	)
	id, byID := opts.PackageID.Get()
	if byID {
		pkgs, err = repo.ListByID(ctx, id)
	} else {
		pkgs, err = repo.List(ctx)
	}

	entry := history.Entry{
		Command:      "list",
		Organisation: opts.Organisation,
		Repository:   opts.Repository,
		Subject:      id,
	}
	if err != nil {
		h.logger.Error("Error listing packages", "error", err)
		record(ctx, h.journal, h.logger, entry, err)
		return ExitFailure
	}

	if len(pkgs) == 0 {
		h.logger.Info("No packages found")
	}
	for _, pkg := range pkgs {
		if _, err := fmt.Fprintf(h.out, "%s   %s   %s\n", pkg.PackageID, pkg.Version, pkg.Extension); err != nil {
			h.logger.Error("Error listing packages", "error", err)
			record(ctx, h.journal, h.logger, entry, err)
			return ExitFailure
		}
	}

	entry.Message = fmt.Sprintf("%d packages", len(pkgs))
	record(ctx, h.journal, h.logger, entry, nil)
	return ExitOK
}
