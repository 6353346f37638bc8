package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/proxyscan/internal/model"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of probes allowed in flight at once.
const DefaultConcurrency = 99

// Prober probes a single candidate. Failures are reported in the outcome,
// never as a separate error.
type Prober interface {
	Probe(ctx context.Context, c model.Candidate) model.ProbeOutcome
}

// ProgressFunc observes completed probes as a (current, total) pair.
type ProgressFunc func(current, total int)

// BatchProcessor dispatches candidates to a Prober with at most
// concurrency probes in flight. A slot is released the moment its probe
// completes, so dispatch is continuous rather than batch-of-N.
type BatchProcessor struct {
	// prober performs each probe.
	prober Prober

	// concurrency is the maximum number of concurrent probes.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger

	// progress is notified after each completion; may be nil.
	progress ProgressFunc
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent probes.
// Non-positive values keep the default of 99.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithProgress registers a progress observer. Calls are serialized and
// current increases by one on each call.
func WithProgress(fn ProgressFunc) BatchOption {
	return func(b *BatchProcessor) {
		b.progress = fn
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(prober Prober, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		prober:      prober,
		concurrency: DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// Concurrency returns the configured concurrency limit.
func (bp *BatchProcessor) Concurrency() int {
	return bp.concurrency
}

// ProcessBatchWithCallback probes every candidate exactly once and calls
// callback for each completed probe with the candidate's index. It blocks
// until every dispatched probe has completed.
//
// The callback runs on the goroutine that completed the probe and may be
// called concurrently. Cancelling ctx stops further dispatch; probes already
// in flight still complete and are reported, and ctx.Err() is returned.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	candidates []model.Candidate,
	callback func(outcome model.ProbeOutcome, index int),
) error {
	total := len(candidates)
	if total == 0 {
		return nil
	}

	bp.logger.Info("starting batch processing",
		"total_candidates", total,
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	var (
		mu        sync.Mutex
		completed int
	)

	var g errgroup.Group
	g.SetLimit(bp.concurrency)

	for i, candidate := range candidates {
		if ctx.Err() != nil {
			break
		}

		// Go blocks until a slot is free.
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			outcome := bp.prober.Probe(ctx, candidate)
			callback(outcome, i)

			if bp.progress != nil {
				mu.Lock()
				completed++
				bp.progress(completed, total)
				mu.Unlock()
			}

			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // Workers never return errors

	bp.logger.Info("batch processing complete",
		"total_candidates", total,
		"elapsed", time.Since(startTime),
	)

	return ctx.Err()
}
