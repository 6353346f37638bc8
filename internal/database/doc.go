// Package database stores scan history in SQLite.
//
// Every completed run is recorded in scan_runs together with its failure
// counts and sample table, and every validated proxy of the run is recorded
// in validated_proxies. The history makes it possible to compare runs and to
// look up proxies that were working in an earlier run.
//
// The database uses modernc.org/sqlite, a CGO-free driver, in WAL mode.
package database
