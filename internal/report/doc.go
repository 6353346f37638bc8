// Package report renders a finalized scan report.
//
// Writers:
//   - JSONWriter: the per-country sample table written to proxy.json
//   - FullJSONWriter: the complete report wrapped with the tool version
//   - MarkdownWriter: a human-readable run summary written to report.md
//   - SimpleWriter: a short plain-text summary for the terminal
//
// Writers implement the Writer interface and can be combined with
// MultiWriter.
package report
