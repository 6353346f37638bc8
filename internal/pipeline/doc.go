// Package pipeline runs a proxy scan from candidate list to persisted results.
//
// A scan has two stages. The probe stage deduplicates candidates, dispatches
// each one to a Prober under a concurrency limit (BatchProcessor), and feeds
// every outcome into an Aggregator that owns the shared result set. Once all
// probes have drained, the Aggregator finalizes the set into a
// model.ScanReport.
//
// The output stage is a Pipeline of Steps that persist the finalized report:
// the refreshed candidate source, the validated list, the per-country sample
// table, per-country partitions, a Markdown summary and the run history.
// Any output step failure is fatal to the run.
package pipeline
