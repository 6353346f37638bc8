package model

import (
	"time"
)

// FailureKind classifies why a candidate was not validated.
type FailureKind string

const (
	// FailureConnection covers TCP and TLS establishment failures.
	FailureConnection FailureKind = "connection"

	// FailureTimeout covers probes that exceeded the exchange deadline.
	FailureTimeout FailureKind = "timeout"

	// FailureDecode covers bodies that were not valid JSON.
	FailureDecode FailureKind = "decode"

	// FailureNegative covers relays that did not hide the caller's IP.
	FailureNegative FailureKind = "negative"

	// FailureReference covers probes whose own-IP lookup failed.
	FailureReference FailureKind = "reference"

	// FailureUnknown covers anything else.
	FailureUnknown FailureKind = "unknown"
)

// FailureKinds lists every kind in display order.
func FailureKinds() []FailureKind {
	return []FailureKind{
		FailureConnection,
		FailureTimeout,
		FailureDecode,
		FailureNegative,
		FailureReference,
		FailureUnknown,
	}
}

// CountryGroup holds the validated lines of a single country.
type CountryGroup struct {
	// Country is the country code shared by all lines.
	Country string `json:"country"`

	// Lines are "proxy,port,country,asOrganization" records in sorted order.
	Lines []string `json:"lines"`
}

// ScanReport is the finalized result set of one run.
type ScanReport struct {
	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when every probe had drained and the set was finalized.
	FinishedAt time.Time `json:"finished_at"`

	// InputCount is the number of candidates before deduplication.
	InputCount int `json:"input_count"`

	// SourceDigest is the hex SHA3-256 of the candidate source, if known.
	SourceDigest string `json:"source_digest,omitempty"`

	// Unique holds every deduplicated candidate (normalized), sorted by country.
	Unique []Candidate `json:"unique"`

	// Validated holds every validated proxy, sorted by country.
	Validated []ProxyResult `json:"validated"`

	// CountrySamples maps a country to at most N "proxy:port" endpoints.
	CountrySamples map[string][]string `json:"country_samples"`

	// CountryGroups partitions Validated by country, in sorted order.
	CountryGroups []CountryGroup `json:"country_groups"`

	// Failures counts failed probes by kind.
	Failures map[FailureKind]int `json:"failures"`

	// PerformedSteps lists the output steps that ran.
	PerformedSteps []string `json:"performed_steps,omitempty"`
}

// NewScanReport creates an empty report stamped with the current time.
func NewScanReport() *ScanReport {
	return &ScanReport{
		StartedAt:      time.Now(),
		Unique:         make([]Candidate, 0),
		Validated:      make([]ProxyResult, 0),
		CountrySamples: make(map[string][]string),
		CountryGroups:  make([]CountryGroup, 0),
		Failures:       make(map[FailureKind]int),
	}
}

// Elapsed returns the run duration, or zero when not finished.
func (r *ScanReport) Elapsed() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// FailureCount returns the total number of failed probes.
func (r *ScanReport) FailureCount() int {
	total := 0
	for _, n := range r.Failures {
		total += n
	}
	return total
}

// ValidatedLines returns the serialized validated records in order.
func (r *ScanReport) ValidatedLines() []string {
	lines := make([]string, len(r.Validated))
	for i, v := range r.Validated {
		lines[i] = v.Line()
	}
	return lines
}

// UniqueLines returns the serialized unique candidates in order.
func (r *ScanReport) UniqueLines() []string {
	lines := make([]string, len(r.Unique))
	for i, c := range r.Unique {
		lines[i] = c.Line()
	}
	return lines
}
