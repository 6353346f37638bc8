package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// dirPerm is the permission used for result directories.
const dirPerm = 0o750

// ErrUnsafeName is returned when a country code cannot be used as a file name.
var ErrUnsafeName = errors.New("unsafe file name")

// Layout locates the candidate source and the result artifacts.
type Layout struct {
	// SourceFile is the candidate source path.
	SourceFile string

	// ResultDir is the root of all result artifacts.
	ResultDir string
}

// NewLayout creates a Layout.
func NewLayout(sourceFile, resultDir string) Layout {
	return Layout{
		SourceFile: sourceFile,
		ResultDir:  resultDir,
	}
}

// AllDir returns the directory holding the complete validated list.
func (l Layout) AllDir() string {
	return filepath.Join(l.ResultDir, "ALL")
}

// AllFile returns the path of the complete validated list.
func (l Layout) AllFile() string {
	return filepath.Join(l.AllDir(), "proxy.txt")
}

// SamplesFile returns the path of the per-country sample table.
func (l Layout) SamplesFile() string {
	return filepath.Join(l.ResultDir, "proxy.json")
}

// CountryDir returns the directory holding per-country partitions.
func (l Layout) CountryDir() string {
	return filepath.Join(l.ResultDir, "country")
}

// ReportFile returns the path of the Markdown summary.
func (l Layout) ReportFile() string {
	return filepath.Join(l.ResultDir, "report.md")
}

// CountryFile returns the partition path for country.
// Country codes come from a remote service, so anything that is not a plain
// file name is rejected.
func (l Layout) CountryFile(country string) (string, error) {
	if country == "" || country == "." || country == ".." ||
		strings.ContainsAny(country, `/\`+"\x00") {
		return "", fmt.Errorf("%w: %q", ErrUnsafeName, country)
	}
	return filepath.Join(l.CountryDir(), country+".txt"), nil
}

// Prepare creates every result directory.
func (l Layout) Prepare() error {
	for _, dir := range []string{l.AllDir(), l.CountryDir()} {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return fmt.Errorf("failed to create result directory %s: %w", dir, err)
		}
	}
	return nil
}
