// ABOUTME: Push handler uploading package files one at a time.
// ABOUTME: A failed file is reported and the batch carries on.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/feedz/cli/internal/feedz"
	"github.com/feedz/cli/internal/history"
	"github.com/feedz/cli/internal/options"
)

var errFileMissing = errors.New("file does not exist")

// Push uploads packages.
type Push struct {
	factory ClientFactory
	logger  *slog.Logger
	journal Journal
}

// NewPush returns a push handler. journal may be nil.
func NewPush(factory ClientFactory, logger *slog.Logger, journal Journal) *Push {
	return &Push{factory: factory, logger: logger, journal: journalOrNop(journal)}
}

// Handle pushes every file in order and fails if any file failed.
func (h *Push) Handle(ctx context.Context, opts options.Push) int {
	client := h.factory.Create(opts.PAT, opts.Region.OrElse(""))
	client.SetTimeout(opts.Timeout)

	failed := 0
	for _, file := range opts.Files {
		err := h.pushFile(ctx, client, opts, file)
		record(ctx, h.journal, h.logger, history.Entry{
			Command:      "push",
			Organisation: opts.Organisation,
			Repository:   opts.Repository,
			Subject:      file,
		}, err)
		if err != nil {
			failed++
		}
	}

	if failed > 0 {
		if len(opts.Files) > 1 {
			h.logger.Error(fmt.Sprintf("%d of %d packages failed to push", failed, len(opts.Files)))
		}
		return ExitFailure
	}
	return ExitOK
}

func (h *Push) pushFile(ctx context.Context, client *feedz.Client, opts options.Push, file string) error {
	info, err := os.Stat(file)
	if err != nil || info.IsDir() {
		h.logger.Error("The file does not exist", "file", file)
		return errFileMissing
	}

	repo := client.ScopeToRepository(opts.Organisation, opts.Repository)
	h.logger.Info("Pushing", "file", file, "feed", repo.FeedURL())

	f, err := os.Open(file)
	if err != nil {
		h.logger.Error("Error pushing", "file", file, "error", err)
		return err
	}
	defer func() { _ = f.Close() }()

	if err := repo.Upload(ctx, f, filepath.Base(file), opts.Force); err != nil {
		if errors.Is(err, feedz.ErrTimeout) {
			h.logger.Error(timeoutHint("push"), "file", file)
			return err
		}
		h.logger.Error("Error pushing", "file", file, "error", err)
		return err
	}

	h.logger.Info("Pushed", "file", file)
	return nil
}
