// Package model defines the core data structures used throughout proxyscan.
//
// This package contains the following main types:
//   - Candidate: An input proxy endpoint read from the candidate source
//   - ProxyResult: The reference service's view of a validated proxy
//   - ProbeOutcome: The tagged result of probing a single candidate
//   - ScanReport: The finalized result set of a run
//
// Models live in their own package so that probe, pipeline, report and
// database can share them without import cycles. All types are
// serializable to JSON for report output and history storage.
package model
