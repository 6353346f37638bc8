package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/proxyscan/internal/model"
)

// timeLayout is used for every timestamp in the Markdown summary.
const timeLayout = "2006-01-02 15:04:05 MST"

// MarkdownWriter outputs a run summary in GitHub-flavored Markdown.
type MarkdownWriter struct {
	baseWriter

	// title renders failure kinds as headings ("timeout" -> "Timeout").
	title cases.Caser
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
		title:      cases.Title(language.English),
	}
}

// Write outputs the summary.
func (w *MarkdownWriter) Write(report *model.ScanReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeAlert(md, report)
	w.writeCountries(md, report)
	w.writeFailures(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the run information table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.ScanReport) {
	md.H1("Proxy Scan Report")
	md.PlainText("")

	digest := report.SourceDigest
	if digest == "" {
		digest = "-"
	} else {
		digest = "`" + shortDigest(digest) + "`"
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Started", formatTime(report.StartedAt)},
			{"Finished", formatTime(report.FinishedAt)},
			{"Elapsed", report.Elapsed().Round(time.Millisecond).String()},
			{"Input Candidates", strconv.Itoa(report.InputCount)},
			{"Unique Candidates", strconv.Itoa(len(report.Unique))},
			{"Validated Proxies", strconv.Itoa(len(report.Validated))},
			{"Failed Probes", strconv.Itoa(report.FailureCount())},
			{"Source Digest", digest},
		},
	})
	md.PlainText("")
}

// writeAlert summarizes the outcome in one callout.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.ScanReport) {
	switch {
	case len(report.Unique) == 0:
		md.Note("The candidate source was empty. No probes were run.")
	case len(report.Validated) == 0:
		md.Warningf("None of the %d unique candidates relayed traffic with a different origin IP.",
			len(report.Unique))
	case report.Failures[model.FailureReference] > 0:
		md.Importantf("%d probe(s) failed because the own IP could not be resolved.",
			report.Failures[model.FailureReference])
	default:
		md.Tip(fmt.Sprintf("%d of %d unique candidates are working proxies.",
			len(report.Validated), len(report.Unique)))
	}
	md.PlainText("")
}

// writeCountries writes the per-country table and distribution chart.
func (w *MarkdownWriter) writeCountries(md *markdown.Markdown, report *model.ScanReport) {
	md.H2("Countries")
	md.PlainText("")

	if len(report.CountryGroups) == 0 {
		md.PlainText("No validated proxy reported a country.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(report.CountryGroups))
	for _, g := range report.CountryGroups {
		samples := report.CountrySamples[g.Country]
		rows = append(rows, []string{
			g.Country,
			strconv.Itoa(len(g.Lines)),
			strconv.Itoa(len(samples)),
			sampleCell(samples),
		})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Country", "Validated", "Samples", "First Sample"},
		Rows:   rows,
	})
	md.PlainText("")

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Validated Proxies by Country"),
		piechart.WithShowData(true),
	)
	for _, g := range report.CountryGroups {
		chart.LabelAndIntValue(g.Country, uint64(len(g.Lines)))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeFailures writes failure counts by kind.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, report *model.ScanReport) {
	md.H2("Failures")
	md.PlainText("")

	if report.FailureCount() == 0 {
		md.PlainText("No probe failed.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(model.FailureKinds()))
	for _, kind := range model.FailureKinds() {
		n := report.Failures[kind]
		if n == 0 {
			continue
		}
		rows = append(rows, []string{w.title.String(string(kind)), strconv.Itoa(n)})
	}
	rows = append(rows, []string{"**Total**", "**" + strconv.Itoa(report.FailureCount()) + "**"})

	md.Table(markdown.TableSet{
		Header: []string{"Kind", "Count"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [proxyscan](https://github.com/nao1215/proxyscan)*")
}

// sampleCell returns the first sample endpoint or "-".
func sampleCell(samples []string) string {
	if len(samples) == 0 {
		return "-"
	}
	return "`" + samples[0] + "`"
}

// formatTime formats t, or "-" for the zero time.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(timeLayout)
}

// shortDigest keeps the first 16 hex characters of a digest.
func shortDigest(digest string) string {
	const n = 16
	if len(digest) <= n {
		return digest
	}
	return strings.ToLower(digest[:n])
}
