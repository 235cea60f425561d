// ABOUTME: Download handler fetching one package into the working directory.
// ABOUTME: Refuses to overwrite an existing file before any transfer starts.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/feedz/cli/internal/feedz"
	"github.com/feedz/cli/internal/history"
	"github.com/feedz/cli/internal/options"
)

var errDestinationExists = errors.New("destination file already exists")

// Download fetches packages.
type Download struct {
	factory ClientFactory
	logger  *slog.Logger
	journal Journal
	workDir string
}

// NewDownload returns a download handler writing into workDir. journal may be nil.
func NewDownload(factory ClientFactory, logger *slog.Logger, journal Journal, workDir string) *Download {
	return &Download{factory: factory, logger: logger, journal: journalOrNop(journal), workDir: workDir}
}

// Handle downloads the requested version, or the latest release.
func (h *Download) Handle(ctx context.Context, opts options.Download) int {
	entry := history.Entry{
		Command:      "download",
		Organisation: opts.Organisation,
		Repository:   opts.Repository,
		Subject:      opts.PackageID,
		Version:      opts.Version.OrElse(""),
	}

	pkg, err := h.download(ctx, opts)
	if pkg != nil {
		entry.Version = pkg.Version
	}
	record(ctx, h.journal, h.logger, entry, err)

	if err != nil {
		return ExitFailure
	}
	return ExitOK
}

func (h *Download) download(ctx context.Context, opts options.Download) (*feedz.Package, error) {
	client := h.factory.Create(opts.PAT.OrElse(""), opts.Region.OrElse(""))
	client.SetTimeout(opts.Timeout)
	repo := client.ScopeToRepository(opts.Organisation, opts.Repository)

	var (
		pkg *feedz.Package
		err error
	)
	if version, ok := opts.Version.Get(); ok {
		pkg, err = repo.Get(ctx, opts.PackageID, version)
	} else {
		pkg, err = repo.GetLatest(ctx, opts.PackageID)
	}
	if err != nil {
		return nil, h.fail(err)
	}

	filename := pkg.Filename()
	if filename != filepath.Base(filename) || strings.ContainsAny(filename, `/\`) || strings.HasPrefix(filename, ".") {
		err := fmt.Errorf("unsafe package filename %q", filename)
		h.logger.Error("Error downloading package", "error", err)
		return pkg, err
	}

	destination := filepath.Join(h.workDir, filename)
	h.logger.Info("Downloading", "file", filename, "destination", h.workDir)

	if _, err := os.Lstat(destination); err == nil {
		h.logger.Error("The file already exists locally", "file", filename)
		return pkg, errDestinationExists
	} else if !errors.Is(err, fs.ErrNotExist) {
		h.logger.Error("Error downloading package", "error", err)
		return pkg, err
	}

	hint := opts.SimilarPackagePath.OrElse(h.workDir)
	stream, err := repo.Download(ctx, *pkg, hint)
	if err != nil {
		return pkg, h.fail(err)
	}
	defer func() { _ = stream.Close() }()

	if err := writeNew(destination, stream); err != nil {
		return pkg, h.fail(err)
	}

	h.logger.Info("Download completed", "file", destination)
	return pkg, nil
}

func (h *Download) fail(err error) error {
	if errors.Is(err, feedz.ErrTimeout) {
		h.logger.Error(timeoutHint("download"))
		return err
	}
	h.logger.Error("Error downloading package", "error", err)
	return err
}

// writeNew copies src into a file that must not exist yet. A partial file is
// removed when the copy fails.
func writeNew(path string, src io.Reader) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing %s: %w", filepath.Base(path), cerr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	if _, err := io.Copy(f, src); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}
