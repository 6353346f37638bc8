package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/proxyscan/internal/model"
)

// Scanner runs the probe stage: dedupe, dispatch, aggregate, finalize.
// Each Run uses a fresh Aggregator so runs never share result state.
type Scanner struct {
	// processor dispatches probes.
	processor *BatchProcessor

	// samplesPerCountry caps the per-country sample lists.
	samplesPerCountry int

	// logger is used for run-level logging.
	logger *slog.Logger
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithSamplesPerCountry sets the per-country sample cap.
func WithSamplesPerCountry(n int) ScannerOption {
	return func(s *Scanner) {
		if n > 0 {
			s.samplesPerCountry = n
		}
	}
}

// WithScannerLogger sets the logger.
func WithScannerLogger(logger *slog.Logger) ScannerOption {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// NewScanner creates a Scanner that dispatches through processor.
func NewScanner(processor *BatchProcessor, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		processor:         processor,
		samplesPerCountry: DefaultSamplesPerCountry,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

// Run probes candidates and returns the finalized report.
// Per-probe failures never fail the run; only cancellation does.
// An empty candidate list returns an empty report without any probe.
func (s *Scanner) Run(ctx context.Context, candidates []model.Candidate) (*model.ScanReport, error) {
	report := model.NewScanReport()
	report.InputCount = len(candidates)

	unique := Dedupe(candidates)
	if dropped := len(candidates) - len(unique); dropped > 0 {
		s.logger.Info("dropped duplicate candidates", "count", dropped)
	}

	agg := NewAggregator(s.samplesPerCountry)
	agg.Register(unique)
	if len(unique) == 0 {
		agg.Finalize(report)
		return report, nil
	}

	err := s.processor.ProcessBatchWithCallback(ctx, unique, func(outcome model.ProbeOutcome, _ int) {
		agg.Add(outcome)
	})
	if err != nil {
		return nil, fmt.Errorf("scan interrupted after %d of %d probes: %w", agg.Len(), len(unique), err)
	}

	agg.Finalize(report)

	s.logger.Info("scan finished",
		"unique", len(report.Unique),
		"validated", len(report.Validated),
		"failed", report.FailureCount(),
		"concurrency", s.processor.Concurrency(),
		"elapsed", report.Elapsed().Round(time.Millisecond),
	)

	return report, nil
}
