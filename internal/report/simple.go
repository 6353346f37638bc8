package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/proxyscan/internal/model"
)

// SimpleWriter outputs a short plain-text summary for terminal display.
type SimpleWriter struct {
	baseWriter

	// countryDir is mentioned in the summary when set.
	countryDir string

	// verbose adds the failure breakdown.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithCountryDir names the directory holding per-country partitions.
func WithCountryDir(dir string) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.countryDir = dir
	}
}

// WithVerbose enables the failure breakdown.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the summary.
func (w *SimpleWriter) Write(report *model.ScanReport) (int, error) {
	var sb strings.Builder

	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Unique candidates:  %d (of %d read)\n", len(report.Unique), report.InputCount)
	fmt.Fprintf(&sb, "Active proxies:     %d\n", len(report.Validated))
	fmt.Fprintf(&sb, "Countries:          %d\n", len(report.CountryGroups))

	if w.verbose && report.FailureCount() > 0 {
		sb.WriteString("Failures:\n")
		for _, kind := range model.FailureKinds() {
			if n := report.Failures[kind]; n > 0 {
				fmt.Fprintf(&sb, "  %-11s %d\n", string(kind)+":", n)
			}
		}
	}

	if w.countryDir != "" && len(report.CountryGroups) > 0 {
		fmt.Fprintf(&sb, "Proxies split by country into %s\n", w.countryDir)
	}
	fmt.Fprintf(&sb, "Finished in %.2f seconds\n", report.Elapsed().Seconds())

	return io.WriteString(w.output, sb.String())
}
