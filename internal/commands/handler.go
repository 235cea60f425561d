// ABOUTME: Handler contract shared by the push, download and list commands.
// ABOUTME: Defines exit codes, the client factory and the journal sink.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/feedz/cli/internal/feedz"
	"github.com/feedz/cli/internal/history"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
)

// Handler executes one command for a validated option value.
type Handler[T any] interface {
	Handle(ctx context.Context, opts T) int
}

// ClientFactory creates feed clients.
type ClientFactory interface {
	Create(credential, region string) *feedz.Client
}

// Journal records operation outcomes.
type Journal interface {
	Record(ctx context.Context, entry history.Entry) error
}

type nopJournal struct{}

func (nopJournal) Record(context.Context, history.Entry) error { return nil }

func journalOrNop(j Journal) Journal {
	if j == nil {
		return nopJournal{}
	}
	return j
}

func timeoutHint(operation string) string {
	return fmt.Sprintf("The %s time limit was exceeded, specify the --timeout parameter to extend the timeout", operation)
}

func record(ctx context.Context, j Journal, logger *slog.Logger, entry history.Entry, err error) {
	entry.Succeeded = err == nil
	if err != nil {
		entry.Message = err.Error()
	}
	entry.At = time.Now()
	if rerr := j.Record(ctx, entry); rerr != nil {
		logger.Warn("unable to record history", "error", rerr)
	}
}
