package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/proxyscan/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *HistoryDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

// createTestReport creates a finalized report for testing.
func createTestReport(started time.Time) *model.ScanReport {
	r := model.NewScanReport()
	r.StartedAt = started
	r.FinishedAt = started.Add(2 * time.Second)
	r.InputCount = 5
	r.SourceDigest = "deadbeef"
	r.Unique = []model.Candidate{
		{Address: "5.6.7.8", Port: 443, Country: "DE"},
		{Address: "1.2.3.4", Port: 8080, Country: "FR"},
		{Address: "9.9.9.9", Port: 3128, Country: "US"},
	}
	r.Validated = []model.ProxyResult{
		{Proxy: "5.6.7.8", Port: 443, IP: "203.0.113.2", Country: "DE", ASOrganization: "Relay B", DelayMillis: 120},
		{Proxy: "1.2.3.4", Port: 8080, IP: "203.0.113.1", Country: "FR", ASOrganization: "Relay A", DelayMillis: 80},
	}
	r.CountrySamples = map[string][]string{
		"DE": {"5.6.7.8:443"},
		"FR": {"1.2.3.4:8080"},
	}
	r.Failures = map[model.FailureKind]int{model.FailureConnection: 1}
	return r
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("unexpected path %q", db.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "missing")
		_, err := Open(dbDir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err == nil {
			t.Fatal("expected error")
		}
		if _, statErr := os.Stat(dbDir); !os.IsNotExist(statErr) {
			t.Error("directory should not have been created")
		}
	})

	t.Run("reopens existing database", func(t *testing.T) {
		t.Parallel()

		dbDir := t.TempDir()
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		if _, err := db.SaveScanReport(context.Background(), createTestReport(time.Now())); err != nil {
			t.Fatalf("failed to save: %v", err)
		}
		_ = db.Close()

		db, err = Open(dbDir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		defer db.Close()

		runs, err := db.ListRuns(context.Background(), 0)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 1 {
			t.Errorf("expected 1 run, got %d", len(runs))
		}
	})
}

// TestSaveScanReport tests storing and reading a run.
func TestSaveScanReport(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)
	started := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

	id, err := db.SaveScanReport(ctx, createTestReport(started))
	if err != nil {
		t.Fatalf("failed to save: %v", err)
	}
	if id <= 0 {
		t.Fatalf("expected positive id, got %d", id)
	}

	run, err := db.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}

	if !run.StartedAt.Equal(started) {
		t.Errorf("expected start %v, got %v", started, run.StartedAt)
	}
	if run.Elapsed() != 2*time.Second {
		t.Errorf("expected 2s elapsed, got %v", run.Elapsed())
	}
	if run.InputCount != 5 || run.UniqueCount != 3 || run.ValidatedCount != 2 || run.FailedCount != 1 {
		t.Errorf("unexpected counts %+v", run)
	}
	if run.SourceDigest != "deadbeef" {
		t.Errorf("unexpected digest %q", run.SourceDigest)
	}
	if run.Failures[model.FailureConnection] != 1 {
		t.Errorf("unexpected failures %v", run.Failures)
	}
	if got := run.CountrySamples["FR"]; len(got) != 1 || got[0] != "1.2.3.4:8080" {
		t.Errorf("unexpected samples %v", run.CountrySamples)
	}

	validated, err := db.GetValidated(ctx, id)
	if err != nil {
		t.Fatalf("failed to get validated: %v", err)
	}
	if len(validated) != 2 {
		t.Fatalf("expected 2 validated, got %d", len(validated))
	}
	first := validated[0]
	if first.Proxy != "5.6.7.8" || first.Port != 443 || first.Country != "DE" || first.ASOrganization != "Relay B" {
		t.Errorf("unexpected first result %+v", first)
	}
	if first.DelayMillis != 120 || first.Delay != 120*time.Millisecond {
		t.Errorf("unexpected delay %d / %v", first.DelayMillis, first.Delay)
	}
}

// TestListRuns tests run listing and lookup.
func TestListRuns(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)

	t.Run("empty history", func(t *testing.T) {
		if _, err := db.LatestRun(ctx); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
		runs, err := db.ListRuns(ctx, 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(runs) != 0 {
			t.Errorf("expected no runs, got %d", len(runs))
		}
	})

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []int64
	for i := range 3 {
		id, err := db.SaveScanReport(ctx, createTestReport(base.Add(time.Duration(i)*time.Hour)))
		if err != nil {
			t.Fatalf("failed to save: %v", err)
		}
		ids = append(ids, id)
	}

	t.Run("newest first with limit", func(t *testing.T) {
		runs, err := db.ListRuns(ctx, 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(runs) != 2 {
			t.Fatalf("expected 2 runs, got %d", len(runs))
		}
		if runs[0].ID != ids[2] || runs[1].ID != ids[1] {
			t.Errorf("unexpected order: %d, %d", runs[0].ID, runs[1].ID)
		}
	})

	t.Run("latest run", func(t *testing.T) {
		run, err := db.LatestRun(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if run.ID != ids[2] {
			t.Errorf("expected id %d, got %d", ids[2], run.ID)
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		if _, err := db.GetRun(ctx, 9999); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
		validated, err := db.GetValidated(ctx, 9999)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(validated) != 0 {
			t.Errorf("expected no results, got %d", len(validated))
		}
	})
}

// TestParseTimestamp tests timestamp parsing.
func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		zero  bool
	}{
		{"2025-01-02T03:04:05.123456789Z", false},
		{"2025-01-02T03:04:05Z", false},
		{"2025-01-02 03:04:05", false},
		{"not a time", true},
	}

	for _, tt := range tests {
		if got := parseTimestamp(tt.input); got.IsZero() != tt.zero {
			t.Errorf("parseTimestamp(%q) = %v", tt.input, got)
		}
	}
}
