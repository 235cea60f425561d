// ABOUTME: Helper functions shared across CLI commands.
// ABOUTME: Provides database access, the history journal, and HTTP client setup.
package cli

import (
	"fmt"
	"net/http"
	"path/filepath"
	"runtime"

	"github.com/feedz/cli/internal/commands"
	"github.com/feedz/cli/internal/feedz"
	"github.com/feedz/cli/internal/history"
)

func databasePath() (string, error) {
	dataDir, err := resolveDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "history.db"), nil
}

func openStore() (*history.Store, string, error) {
	path, err := databasePath()
	if err != nil {
		return nil, "", err
	}
	store, err := history.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open database: %w", err)
	}
	return store, path, nil
}

// openJournal opens the history store when the config enables it. A store
// that cannot be opened is reported and the command runs without a journal.
func (a *app) openJournal() (commands.Journal, func()) {
	if a.cfg == nil || !a.cfg.History {
		return nil, func() {}
	}
	store, path, err := openStore()
	if err != nil {
		a.logger.Warn("history is unavailable", "error", err)
		return nil, func() {}
	}
	a.logger.Debug("recording history", "path", path)
	return store, func() { _ = store.Close() }
}

func newHTTPClient() *http.Client {
	return &http.Client{Transport: feedz.NewTransport()}
}

func userAgent() string {
	return fmt.Sprintf("feedz-cli/%s (%s; %s)", version, runtime.GOOS, runtime.GOARCH)
}
