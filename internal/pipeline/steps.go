package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/nao1215/proxyscan/internal/database"
	"github.com/nao1215/proxyscan/internal/model"
	"github.com/nao1215/proxyscan/internal/report"
	"github.com/nao1215/proxyscan/internal/storage"
)

// WriteSourceStep rewrites the candidate source with the deduplicated,
// normalized and country-sorted candidates.
type WriteSourceStep struct {
	layout storage.Layout
}

// NewWriteSourceStep creates a WriteSourceStep.
func NewWriteSourceStep(layout storage.Layout) *WriteSourceStep {
	return &WriteSourceStep{layout: layout}
}

// Name returns the step name.
func (s *WriteSourceStep) Name() string {
	return "write_source"
}

// Do executes the step.
func (s *WriteSourceStep) Do(_ context.Context, r *model.ScanReport) error {
	if err := storage.WriteLines(s.layout.SourceFile, r.UniqueLines()); err != nil {
		return fmt.Errorf("failed to rewrite candidate source: %w", err)
	}
	return nil
}

// WriteValidatedStep writes every validated proxy to RESULT/ALL/proxy.txt.
type WriteValidatedStep struct {
	layout storage.Layout
}

// NewWriteValidatedStep creates a WriteValidatedStep.
func NewWriteValidatedStep(layout storage.Layout) *WriteValidatedStep {
	return &WriteValidatedStep{layout: layout}
}

// Name returns the step name.
func (s *WriteValidatedStep) Name() string {
	return "write_validated"
}

// Do executes the step.
func (s *WriteValidatedStep) Do(_ context.Context, r *model.ScanReport) error {
	if err := storage.WriteLines(s.layout.AllFile(), r.ValidatedLines()); err != nil {
		return fmt.Errorf("failed to write validated proxies: %w", err)
	}
	return nil
}

// WriteSamplesStep writes the per-country sample table to RESULT/proxy.json.
type WriteSamplesStep struct {
	layout storage.Layout
}

// NewWriteSamplesStep creates a WriteSamplesStep.
func NewWriteSamplesStep(layout storage.Layout) *WriteSamplesStep {
	return &WriteSamplesStep{layout: layout}
}

// Name returns the step name.
func (s *WriteSamplesStep) Name() string {
	return "write_samples"
}

// Do executes the step.
func (s *WriteSamplesStep) Do(_ context.Context, r *model.ScanReport) error {
	return writeReport(s.layout.SamplesFile(), r, func(w io.Writer) report.Writer {
		return report.NewJSONWriter(w, report.WithPrettyPrint())
	})
}

// WriteCountryPartitionsStep writes RESULT/country/<CC>.txt for every
// country present in the validated set. Countries that are not usable as
// a file name are logged and skipped.
type WriteCountryPartitionsStep struct {
	layout storage.Layout
	logger *slog.Logger
}

// NewWriteCountryPartitionsStep creates a WriteCountryPartitionsStep.
func NewWriteCountryPartitionsStep(layout storage.Layout, logger *slog.Logger) *WriteCountryPartitionsStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &WriteCountryPartitionsStep{layout: layout, logger: logger}
}

// Name returns the step name.
func (s *WriteCountryPartitionsStep) Name() string {
	return "write_country_partitions"
}

// Do executes the step.
func (s *WriteCountryPartitionsStep) Do(ctx context.Context, r *model.ScanReport) error {
	for _, group := range r.CountryGroups {
		if err := ctx.Err(); err != nil {
			return err
		}

		path, err := s.layout.CountryFile(group.Country)
		if errors.Is(err, storage.ErrUnsafeName) {
			s.logger.Warn("skipping country partition", "country", group.Country, "error", err)
			continue
		}
		if err != nil {
			return err
		}

		if err := storage.WriteLines(path, group.Lines); err != nil {
			return fmt.Errorf("failed to write partition for %s: %w", group.Country, err)
		}
	}
	return nil
}

// WriteMarkdownStep writes the run summary to RESULT/report.md.
type WriteMarkdownStep struct {
	layout storage.Layout
}

// NewWriteMarkdownStep creates a WriteMarkdownStep.
func NewWriteMarkdownStep(layout storage.Layout) *WriteMarkdownStep {
	return &WriteMarkdownStep{layout: layout}
}

// Name returns the step name.
func (s *WriteMarkdownStep) Name() string {
	return "write_markdown"
}

// Do executes the step.
func (s *WriteMarkdownStep) Do(_ context.Context, r *model.ScanReport) error {
	return writeReport(s.layout.ReportFile(), r, func(w io.Writer) report.Writer {
		return report.NewMarkdownWriter(w)
	})
}

// HistoryStore persists finalized reports.
type HistoryStore interface {
	SaveScanReport(ctx context.Context, report *model.ScanReport) (int64, error)
}

var _ HistoryStore = (*database.HistoryDB)(nil)

// SaveHistoryStep records the run in the history database.
type SaveHistoryStep struct {
	store  HistoryStore
	logger *slog.Logger
}

// NewSaveHistoryStep creates a SaveHistoryStep.
func NewSaveHistoryStep(store HistoryStore, logger *slog.Logger) *SaveHistoryStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &SaveHistoryStep{store: store, logger: logger}
}

// Name returns the step name.
func (s *SaveHistoryStep) Name() string {
	return "save_history"
}

// Do executes the step.
func (s *SaveHistoryStep) Do(ctx context.Context, r *model.ScanReport) error {
	id, err := s.store.SaveScanReport(ctx, r)
	if err != nil {
		return fmt.Errorf("failed to save scan history: %w", err)
	}
	s.logger.Info("scan history saved", "run_id", id)
	return nil
}

// writeReport renders r into path with the writer built by newWriter.
func writeReport(path string, r *model.ScanReport, newWriter func(io.Writer) report.Writer) error {
	return storage.WriteFile(path, func(w io.Writer) error {
		_, err := newWriter(w).Write(r)
		return err
	})
}

// OutputOptions selects the optional output steps.
type OutputOptions struct {
	// Markdown adds the report.md summary.
	Markdown bool

	// History stores the run; nil disables history.
	History HistoryStore

	// Logger is passed to the pipeline and its steps.
	Logger *slog.Logger
}

// NewOutputPipeline builds the output pipeline for layout. The steps stop
// at the first failure.
func NewOutputPipeline(layout storage.Layout, opts OutputOptions) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := New(WithLogger(logger))
	p.AddSteps(
		NewWriteSamplesStep(layout),
		NewWriteSourceStep(layout),
		NewWriteValidatedStep(layout),
		NewWriteCountryPartitionsStep(layout, logger),
	)
	if opts.Markdown {
		p.AddStep(NewWriteMarkdownStep(layout))
	}
	if opts.History != nil {
		p.AddStep(NewSaveHistoryStep(opts.History, logger))
	}

	return p
}
