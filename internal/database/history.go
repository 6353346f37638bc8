package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/proxyscan/internal/model"
)

// FileName is the database file created inside the data directory.
const FileName = "proxyscan.db"

// ErrRunNotFound is returned when a requested run does not exist.
var ErrRunNotFound = errors.New("scan run not found")

// HistoryDB provides SQLite-based storage for scan runs.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a HistoryDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run a scan first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rwc&_pragma=foreign_keys(1)"
	if !opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rw&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (h *HistoryDB) createTables() error {
	schema := `
	-- One row per completed run
	CREATE TABLE IF NOT EXISTS scan_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		input_count INTEGER NOT NULL,
		unique_count INTEGER NOT NULL,
		validated_count INTEGER NOT NULL,
		failed_count INTEGER NOT NULL,
		source_digest TEXT,
		failures_json TEXT,
		samples_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON scan_runs(started_at);

	-- Validated proxies of each run
	CREATE TABLE IF NOT EXISTS validated_proxies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES scan_runs(id) ON DELETE CASCADE,
		proxy TEXT NOT NULL,
		port INTEGER NOT NULL,
		ip TEXT NOT NULL,
		country TEXT,
		as_organization TEXT,
		delay_ms INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_validated_run ON validated_proxies(run_id);
	CREATE INDEX IF NOT EXISTS idx_validated_country ON validated_proxies(country);
	CREATE INDEX IF NOT EXISTS idx_validated_endpoint ON validated_proxies(proxy, port);
	`

	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// RunSummary describes one stored run without its validated proxies.
type RunSummary struct {
	// ID is the run identifier.
	ID int64 `json:"id"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the run was finalized.
	FinishedAt time.Time `json:"finished_at"`

	// InputCount is the number of candidates read.
	InputCount int `json:"input_count"`

	// UniqueCount is the number of candidates after deduplication.
	UniqueCount int `json:"unique_count"`

	// ValidatedCount is the number of working proxies.
	ValidatedCount int `json:"validated_count"`

	// FailedCount is the number of failed probes.
	FailedCount int `json:"failed_count"`

	// SourceDigest is the SHA3-256 of the candidate source.
	SourceDigest string `json:"source_digest,omitempty"`

	// Failures counts failed probes by kind.
	Failures map[model.FailureKind]int `json:"failures"`

	// CountrySamples is the sample table of the run.
	CountrySamples map[string][]string `json:"country_samples"`
}

// Elapsed returns the run duration.
func (r RunSummary) Elapsed() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// SaveScanReport stores a finalized report and returns the new run ID.
func (h *HistoryDB) SaveScanReport(ctx context.Context, report *model.ScanReport) (int64, error) {
	failuresJSON, err := json.Marshal(report.Failures)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize failures: %w", err)
	}
	samplesJSON, err := json.Marshal(report.CountrySamples)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize samples: %w", err)
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // No-op after commit
	}()

	res, err := tx.ExecContext(ctx, `
	INSERT INTO scan_runs (
		started_at, finished_at, input_count, unique_count,
		validated_count, failed_count, source_digest, failures_json, samples_json
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		formatTimestamp(report.StartedAt),
		formatTimestamp(report.FinishedAt),
		report.InputCount,
		len(report.Unique),
		len(report.Validated),
		report.FailureCount(),
		report.SourceDigest,
		string(failuresJSON),
		string(samplesJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert scan run: %w", err)
	}

	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO validated_proxies (run_id, proxy, port, ip, country, as_organization, delay_ms)
	VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, v := range report.Validated {
		if _, err := stmt.ExecContext(ctx,
			runID, v.Proxy, int(v.Port), v.IP, v.Country, v.ASOrganization, v.DelayMillis,
		); err != nil {
			return 0, fmt.Errorf("failed to insert validated proxy %s: %w", v.Endpoint(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit scan run: %w", err)
	}

	return runID, nil
}

// runColumns is the column list shared by run queries.
const runColumns = `id, started_at, finished_at, input_count, unique_count,
	validated_count, failed_count, source_digest, failures_json, samples_json`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRun reads one scan_runs row.
func scanRun(row rowScanner) (*RunSummary, error) {
	var (
		run                   RunSummary
		started, finished     string
		digest                sql.NullString
		failuresJSON, samples sql.NullString
	)

	if err := row.Scan(
		&run.ID, &started, &finished, &run.InputCount, &run.UniqueCount,
		&run.ValidatedCount, &run.FailedCount, &digest, &failuresJSON, &samples,
	); err != nil {
		return nil, err
	}

	run.StartedAt = parseTimestamp(started)
	run.FinishedAt = parseTimestamp(finished)
	run.SourceDigest = digest.String

	run.Failures = make(map[model.FailureKind]int)
	if failuresJSON.Valid && failuresJSON.String != "" {
		if err := json.Unmarshal([]byte(failuresJSON.String), &run.Failures); err != nil {
			run.Failures = make(map[model.FailureKind]int)
		}
	}

	run.CountrySamples = make(map[string][]string)
	if samples.Valid && samples.String != "" {
		if err := json.Unmarshal([]byte(samples.String), &run.CountrySamples); err != nil {
			run.CountrySamples = make(map[string][]string)
		}
	}

	return &run, nil
}

// ListRuns returns up to limit runs, newest first. A non-positive limit
// returns every run.
func (h *HistoryDB) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `SELECT ` + runColumns + ` FROM scan_runs ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list scan runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunSummary, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}

	return runs, rows.Err()
}

// GetRun returns the run with the given ID.
func (h *HistoryDB) GetRun(ctx context.Context, id int64) (*RunSummary, error) {
	row := h.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM scan_runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan run: %w", err)
	}

	return run, nil
}

// LatestRun returns the most recent run.
func (h *HistoryDB) LatestRun(ctx context.Context) (*RunSummary, error) {
	row := h.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM scan_runs ORDER BY id DESC LIMIT 1`)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest scan run: %w", err)
	}

	return run, nil
}

// GetValidated returns the validated proxies of a run, ordered by country
// and then by insertion order.
func (h *HistoryDB) GetValidated(ctx context.Context, runID int64) ([]model.ProxyResult, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT proxy, port, ip, country, as_organization, delay_ms
	FROM validated_proxies
	WHERE run_id = ?
	ORDER BY country, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get validated proxies: %w", err)
	}
	defer rows.Close()

	results := make([]model.ProxyResult, 0)
	for rows.Next() {
		var (
			r       model.ProxyResult
			port    int
			country sql.NullString
			org     sql.NullString
			delay   sql.NullInt64
		)
		if err := rows.Scan(&r.Proxy, &port, &r.IP, &country, &org, &delay); err != nil {
			return nil, fmt.Errorf("failed to scan validated proxy: %w", err)
		}
		r.Port = uint16(port) //nolint:gosec // Stored from a uint16
		r.Country = country.String
		r.ASOrganization = org.String
		r.DelayMillis = delay.Int64
		r.Delay = time.Duration(delay.Int64) * time.Millisecond
		results = append(results, r)
	}

	return results, rows.Err()
}

// formatTimestamp formats t for storage.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp parses a stored timestamp, returning the zero time when
// no format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
