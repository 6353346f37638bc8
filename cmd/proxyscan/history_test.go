package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/proxyscan/internal/database"
	"github.com/nao1215/proxyscan/internal/model"
)

// seedHistory stores one run and returns the database dir and run ID.
func seedHistory(t *testing.T) (string, int64) {
	t.Helper()

	dir := t.TempDir()
	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := model.NewScanReport()
	r.StartedAt = started
	r.FinishedAt = started.Add(1500 * time.Millisecond)
	r.InputCount = 3
	r.Unique = []model.Candidate{
		{Address: "192.0.2.10", Port: 443, Country: "JP"},
		{Address: "192.0.2.20", Port: 8443, Country: "US"},
	}
	r.Validated = []model.ProxyResult{
		{Proxy: "192.0.2.10", Port: 443, IP: "203.0.113.9", Country: "JP", ASOrganization: "Relay Net", DelayMillis: 42},
	}
	r.CountrySamples = map[string][]string{"JP": {"192.0.2.10:443"}}
	r.Failures = map[model.FailureKind]int{model.FailureTimeout: 1}

	id, err := db.SaveScanReport(context.Background(), r)
	if err != nil {
		t.Fatalf("failed to save report: %v", err)
	}
	return dir, id
}

// runHistory executes the history command with args.
func runHistory(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := NewHistoryCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// TestHistoryCmd tests listing and showing stored runs.
func TestHistoryCmd(t *testing.T) {
	t.Parallel()

	t.Run("empty database", func(t *testing.T) {
		t.Parallel()

		out, err := runHistory(t, "--db-dir", t.TempDir())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "No scan runs found") {
			t.Errorf("expected empty message, got %q", out)
		}
	})

	t.Run("lists runs", func(t *testing.T) {
		t.Parallel()

		dir, id := seedHistory(t)
		out, err := runHistory(t, "--db-dir", dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Scan runs (1)") {
			t.Errorf("expected run count header, got %q", out)
		}
		if !strings.Contains(out, strconv.FormatInt(id, 10)) {
			t.Errorf("expected run ID %d in listing, got %q", id, out)
		}
	})

	t.Run("lists runs as json", func(t *testing.T) {
		t.Parallel()

		dir, id := seedHistory(t)
		out, err := runHistory(t, "--db-dir", dir, "--json")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var runs []database.RunSummary
		if err := json.Unmarshal([]byte(out), &runs); err != nil {
			t.Fatalf("output is not JSON: %v\n%s", err, out)
		}
		if len(runs) != 1 || runs[0].ID != id {
			t.Fatalf("expected run %d, got %+v", id, runs)
		}
		if runs[0].ValidatedCount != 1 || runs[0].FailedCount != 1 {
			t.Errorf("expected 1 validated and 1 failed, got %d and %d",
				runs[0].ValidatedCount, runs[0].FailedCount)
		}
	})

	t.Run("shows one run", func(t *testing.T) {
		t.Parallel()

		dir, id := seedHistory(t)
		out, err := runHistory(t, "--db-dir", dir, "--run", strconv.FormatInt(id, 10))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{"192.0.2.10:443", "Relay Net", "timeout:1", "42ms"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q, got %q", want, out)
			}
		}
	})

	t.Run("shows one run as json", func(t *testing.T) {
		t.Parallel()

		dir, id := seedHistory(t)
		out, err := runHistory(t, "--db-dir", dir, "--run", strconv.FormatInt(id, 10), "--json")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var detail runDetail
		if err := json.Unmarshal([]byte(out), &detail); err != nil {
			t.Fatalf("output is not JSON: %v\n%s", err, out)
		}
		if detail.Run == nil || detail.Run.ID != id {
			t.Fatalf("expected run %d, got %+v", id, detail.Run)
		}
		if len(detail.Validated) != 1 || detail.Validated[0].Endpoint() != "192.0.2.10:443" {
			t.Errorf("unexpected validated proxies: %+v", detail.Validated)
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		t.Parallel()

		dir, _ := seedHistory(t)
		_, err := runHistory(t, "--db-dir", dir, "--run", "999")
		if err == nil || !strings.Contains(err.Error(), "not found") {
			t.Errorf("expected not found error, got %v", err)
		}
	})

	t.Run("rejects non-positive limit", func(t *testing.T) {
		t.Parallel()

		if _, err := runHistory(t, "--db-dir", t.TempDir(), "--limit", "0"); err == nil {
			t.Error("expected error for zero limit")
		}
	})
}

// TestFormatFailures tests the failure breakdown rendering.
func TestFormatFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		failures map[model.FailureKind]int
		total    int
		want     string
	}{
		{name: "none", failures: nil, total: 0, want: "0"},
		{
			name: "ordered by kind",
			failures: map[model.FailureKind]int{
				model.FailureNegative:   2,
				model.FailureConnection: 3,
			},
			total: 5,
			want:  "5 (connection:3 negative:2)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := formatFailures(tt.failures, tt.total); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
