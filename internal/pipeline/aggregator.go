package pipeline

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/nao1215/proxyscan/internal/model"
	"github.com/nao1215/proxyscan/internal/probe"
)

// DefaultSamplesPerCountry caps each country's sample list.
const DefaultSamplesPerCountry = 10

// Aggregator owns the result set of one run. Add may be called from many
// goroutines; every mutation for a single outcome happens under one lock.
type Aggregator struct {
	mu sync.Mutex

	// samplesPerCountry caps each entry of samples.
	samplesPerCountry int

	unique    []model.Candidate
	position  map[string]int
	recorded  int
	validated []model.ProxyResult
	samples   map[string][]string
	failures  map[model.FailureKind]int
}

// NewAggregator creates an empty Aggregator. A non-positive cap selects
// DefaultSamplesPerCountry.
func NewAggregator(samplesPerCountry int) *Aggregator {
	if samplesPerCountry <= 0 {
		samplesPerCountry = DefaultSamplesPerCountry
	}
	return &Aggregator{
		samplesPerCountry: samplesPerCountry,
		unique:            make([]model.Candidate, 0),
		position:          make(map[string]int),
		validated:         make([]model.ProxyResult, 0),
		samples:           make(map[string][]string),
		failures:          make(map[model.FailureKind]int),
	}
}

// Register appends the normalized candidates to the unique set in the
// given order. It is called with the deduplicated list before dispatch so
// that the unique set keeps first-seen order whatever the probe latency.
func (a *Aggregator) Register(candidates []model.Candidate) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, c := range candidates {
		if _, ok := a.position[c.Key()]; !ok {
			a.position[c.Key()] = len(a.position)
		}
		a.unique = append(a.unique, c.Normalized())
	}
}

// Add records one probe outcome.
//
// A validated outcome is appended to the validated set and, when it carries
// a country, to that country's samples until the cap is reached. Samples
// are never evicted. Failures are counted by kind.
func (a *Aggregator) Add(outcome model.ProbeOutcome) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.recorded++

	if !outcome.Succeeded() {
		a.failures[probe.Classify(outcome.Err)]++
		return
	}

	result := *outcome.Result
	a.validated = append(a.validated, result)

	if result.Country == "" {
		return
	}
	if len(a.samples[result.Country]) < a.samplesPerCountry {
		a.samples[result.Country] = append(a.samples[result.Country], result.Endpoint())
	}
}

// Len returns the number of outcomes recorded so far.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.recorded
}

// Finalize sorts the unique set by country (stable) and the validated set
// by country then first-seen position, groups the validated lines by
// country, and copies the result into report. Samples keep arrival order.
// It must be called once, after every probe has drained.
func (a *Aggregator) Finalize(report *model.ScanReport) {
	a.mu.Lock()
	defer a.mu.Unlock()

	slices.SortStableFunc(a.unique, func(x, y model.Candidate) int {
		return cmp.Compare(x.Country, y.Country)
	})
	slices.SortStableFunc(a.validated, func(x, y model.ProxyResult) int {
		return cmp.Or(
			cmp.Compare(x.Country, y.Country),
			cmp.Compare(a.position[x.Endpoint()], a.position[y.Endpoint()]),
		)
	})

	report.Unique = slices.Clone(a.unique)
	report.Validated = slices.Clone(a.validated)
	report.CountryGroups = groupByCountry(a.validated)

	report.CountrySamples = make(map[string][]string, len(a.samples))
	for country, endpoints := range a.samples {
		report.CountrySamples[country] = slices.Clone(endpoints)
	}

	report.Failures = make(map[model.FailureKind]int, len(a.failures))
	for kind, n := range a.failures {
		report.Failures[kind] = n
	}

	report.FinishedAt = time.Now()
}

// groupByCountry partitions sorted results into per-country line groups.
// Results without a country are left out.
func groupByCountry(sorted []model.ProxyResult) []model.CountryGroup {
	groups := make([]model.CountryGroup, 0)

	for _, r := range sorted {
		if r.Country == "" {
			continue
		}
		last := len(groups) - 1
		if last < 0 || groups[last].Country != r.Country {
			groups = append(groups, model.CountryGroup{Country: r.Country})
			last++
		}
		groups[last].Lines = append(groups[last].Lines, r.Line())
	}

	return groups
}
