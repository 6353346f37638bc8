package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/proxyscan/internal/config"
	"github.com/nao1215/proxyscan/internal/database"
	"github.com/nao1215/proxyscan/internal/model"
	"github.com/spf13/cobra"
)

// defaultHistoryLimit is the number of runs listed without --limit.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
// It reads the runs stored by scan in the history database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show previous scan runs",
		Long: `History lists the scan runs recorded in the history database.

Each run stores its counts, failure breakdown, country samples and the
full list of working candidates.

Examples:
  # List the most recent runs
  proxyscan history

  # Show the working candidates of run 5
  proxyscan history --run 5

  # Output in JSON format
  proxyscan history --json`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().Int64P("run", "i", 0,
		"Show a single run by ID (use the listing to see available IDs)")
	cmd.Flags().IntP("limit", "l", defaultHistoryLimit,
		"Maximum number of runs to list")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory holding the history database")

	return cmd
}

// runDetail is the JSON shape of a single run.
type runDetail struct {
	Run       *database.RunSummary `json:"run"`
	Validated []model.ProxyResult  `json:"validated"`
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	runID, err := cmd.Flags().GetInt64("run")
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	if limit <= 0 {
		return fmt.Errorf("invalid limit %d: must be positive", limit)
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	if runID != 0 {
		return showRun(ctx, out, db, runID, jsonOutput)
	}
	return listRuns(ctx, out, db, limit, jsonOutput)
}

// listRuns prints the newest runs.
func listRuns(ctx context.Context, out io.Writer, db *database.HistoryDB, limit int, jsonOutput bool) error {
	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if jsonOutput {
		if runs == nil {
			runs = []database.RunSummary{}
		}
		return writeJSON(out, runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No scan runs found in the database.")
		fmt.Fprintln(out, "\nUse 'proxyscan scan' to probe a candidate list.")
		return nil
	}

	fmt.Fprintf(out, "Scan runs (%d):\n\n", len(runs))
	fmt.Fprintf(out, "  %-6s  %-20s  %-10s  %8s  %8s  %8s\n",
		"ID", "Date", "Elapsed", "Unique", "Active", "Failed")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 70))

	for _, run := range runs {
		fmt.Fprintf(out, "  %-6d  %-20s  %-10s  %8d  %8d  %8d\n",
			run.ID,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Elapsed().Round(time.Millisecond),
			run.UniqueCount,
			run.ValidatedCount,
			run.FailedCount,
		)
	}

	fmt.Fprintln(out, "\nUse 'proxyscan history --run <id>' to see the working candidates of a run.")

	return nil
}

// showRun prints one run with its validated proxies.
func showRun(ctx context.Context, out io.Writer, db *database.HistoryDB, id int64, jsonOutput bool) error {
	run, err := db.GetRun(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrRunNotFound) {
			return fmt.Errorf("run %d not found (use 'proxyscan history' to list runs)", id)
		}
		return fmt.Errorf("failed to get run: %w", err)
	}

	validated, err := db.GetValidated(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get validated proxies: %w", err)
	}

	if jsonOutput {
		if validated == nil {
			validated = []model.ProxyResult{}
		}
		return writeJSON(out, runDetail{Run: run, Validated: validated})
	}

	fmt.Fprintf(out, "Run %d\n", run.ID)
	fmt.Fprintf(out, "  Started:   %s\n", run.StartedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(out, "  Elapsed:   %s\n", run.Elapsed().Round(time.Millisecond))
	fmt.Fprintf(out, "  Read:      %d\n", run.InputCount)
	fmt.Fprintf(out, "  Unique:    %d\n", run.UniqueCount)
	fmt.Fprintf(out, "  Active:    %d\n", run.ValidatedCount)
	fmt.Fprintf(out, "  Failed:    %s\n", formatFailures(run.Failures, run.FailedCount))
	if run.SourceDigest != "" {
		fmt.Fprintf(out, "  Source:    sha3-256:%s\n", run.SourceDigest)
	}

	if len(validated) == 0 {
		fmt.Fprintln(out, "\nNo working proxies in this run.")
		return nil
	}

	fmt.Fprintf(out, "\n  %-22s  %-7s  %-8s  %s\n", "Endpoint", "Country", "Delay", "Organization")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 70))
	for _, p := range validated {
		fmt.Fprintf(out, "  %-22s  %-7s  %-8s  %s\n",
			p.Endpoint(),
			p.Country,
			p.Delay.Round(time.Millisecond),
			p.ASOrganization,
		)
	}

	return nil
}

// formatFailures renders the failure breakdown as "total (kind:n ...)".
func formatFailures(failures map[model.FailureKind]int, total int) string {
	var parts []string
	for _, kind := range model.FailureKinds() {
		if n := failures[kind]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", kind, n))
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%d", total)
	}
	return fmt.Sprintf("%d (%s)", total, strings.Join(parts, " "))
}

// writeJSON prints v as indented JSON.
func writeJSON(out io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
