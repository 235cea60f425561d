// ABOUTME: History command for viewing journaled feed operations.
// ABOUTME: Queries local SQLite database with date and command filters.
package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/araddon/dateparse"
	"github.com/spf13/cobra"

	"github.com/feedz/cli/internal/history"
)

func (a *app) newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show journaled push, download and list operations",
		Args:  cobra.NoArgs,
		RunE:  a.runHistory,
	}

	cmd.Flags().IntP("limit", "n", 20, "limit number of rows")
	cmd.Flags().String("since", "", "filter by natural language date (e.g. yesterday)")
	cmd.Flags().String("command", "", "only show push, download or list operations")
	cmd.Flags().Bool("json", false, "output JSON")

	return cmd
}

func (a *app) runHistory(cmd *cobra.Command, args []string) error {
	if !a.cfg.History {
		cmd.Println("History is disabled. Run 'feedz config set history true' to record operations.")
		return nil
	}

	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		limit = 20
	}

	sinceStr, _ := cmd.Flags().GetString("since")
	command, _ := cmd.Flags().GetString("command")
	asJSON, _ := cmd.Flags().GetBool("json")

	var since *time.Time
	if sinceStr != "" {
		parsed, err := dateparse.ParseLocal(sinceStr)
		if err != nil {
			return fmt.Errorf("parse --since: %w", err)
		}
		since = &parsed
	}

	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	entries, err := store.Query(cmd.Context(), history.Filter{Limit: limit, Since: since, Command: command})
	if err != nil {
		return err
	}

	if asJSON {
		return writeHistoryJSON(cmd, entries)
	}
	writeHistoryTable(cmd, entries)
	return nil
}

func writeHistoryJSON(cmd *cobra.Command, entries []history.Entry) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

func writeHistoryTable(cmd *cobra.Command, entries []history.Entry) {
	if len(entries) == 0 {
		cmd.Println("No history found.")
		return
	}
	for _, e := range entries {
		status := "ok"
		if !e.Succeeded {
			status = "failed"
		}
		timestamp := e.At.Local().Format(time.RFC3339)
		cmd.Printf("%s %-8s %s/%s %s", timestamp, e.Command, e.Organisation, e.Repository, status)
		if e.Subject != "" {
			cmd.Printf(" %s", e.Subject)
		}
		if e.Version != "" {
			cmd.Printf(" %s", e.Version)
		}
		cmd.Println()
		if e.Message != "" {
			cmd.Printf("  %s\n", e.Message)
		}
	}
}
