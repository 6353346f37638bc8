package storage

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/crypto/sha3"

	"github.com/nao1215/proxyscan/internal/model"
)

// Source is the parsed candidate source.
type Source struct {
	// Candidates are the parsed records in file order, duplicates included.
	Candidates []model.Candidate

	// Skipped is the number of malformed lines that were ignored.
	Skipped int

	// Digest is the hex SHA3-256 of the raw source bytes.
	Digest string
}

// LoadSource reads and parses the candidate source file.
// A missing or unreadable source is fatal; malformed lines are skipped.
func (l Layout) LoadSource(logger *slog.Logger) (*Source, error) {
	data, err := os.ReadFile(l.SourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read candidate source: %w", err)
	}

	src, err := ReadCandidates(bytes.NewReader(data), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to parse candidate source %s: %w", l.SourceFile, err)
	}
	src.Digest = Digest(data)

	return src, nil
}

// MaxLineSize is the longest source line that is parsed. Longer lines
// are skipped like malformed ones.
const MaxLineSize = 64 * 1024

// ReadCandidates parses "address,port,country,org" lines from r.
// Blank lines are ignored silently; malformed and oversized lines are
// logged and skipped.
func ReadCandidates(r io.Reader, logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = slog.Default()
	}

	src := &Source{Candidates: make([]model.Candidate, 0)}
	br := bufio.NewReader(r)
	lineNum := 0
	for {
		line, tooLong, err := readLine(br, MaxLineSize)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		lineNum++

		if tooLong {
			logger.Warn("skipping oversized candidate line", "line", lineNum, "limit", MaxLineSize)
			src.Skipped++
			continue
		}

		c, err := model.ParseCandidate(string(line))
		if errors.Is(err, model.ErrEmptyCandidateLine) {
			continue
		}
		if err != nil {
			logger.Warn("skipping malformed candidate line", "line", lineNum, "error", err)
			src.Skipped++
			continue
		}
		src.Candidates = append(src.Candidates, c)
	}

	return src, nil
}

// readLine returns the next line without its newline. A line longer than
// limit is consumed entirely and reported through tooLong with no content.
// io.EOF is returned only when nothing was left to read.
func readLine(br *bufio.Reader, limit int) (line []byte, tooLong bool, err error) {
	read := 0
	for {
		chunk, err := br.ReadSlice('\n')
		read += len(chunk)
		if !tooLong {
			line = append(line, chunk...)
			if len(bytes.TrimSuffix(line, []byte("\n"))) > limit {
				line, tooLong = nil, true
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) && read > 0 {
			err = nil
		}
		return bytes.TrimSuffix(line, []byte("\n")), tooLong, err
	}
}

// Digest returns the hex SHA3-256 of data.
func Digest(data []byte) string {
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
