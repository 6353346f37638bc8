package storage

import (
	"bytes"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// discardLogger returns a logger that drops everything.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

// TestReadCandidates tests source parsing.
func TestReadCandidates(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		"1.2.3.4,8080,US,Org+A",
		"",
		"1.2.3.4,8080,US,Org+A",
		",443,DE,missing address",
		"5.6.7.8,notaport,DE,OrgB",
		"5.6.7.8,443,DE,OrgB\r",
		"9.9.9.9,3128",
	}, "\n")

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	src, err := ReadCandidates(strings.NewReader(input), logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(src.Candidates) != 4 {
		t.Fatalf("expected 4 candidates, got %d: %+v", len(src.Candidates), src.Candidates)
	}
	if src.Skipped != 2 {
		t.Errorf("expected 2 skipped lines, got %d", src.Skipped)
	}

	first := src.Candidates[0]
	if first.Address != "1.2.3.4" || first.Port != 8080 || first.Country != "US" || first.Org != "Org+A" {
		t.Errorf("unexpected first candidate %+v", first)
	}
	if src.Candidates[2].Org != "OrgB" {
		t.Errorf("expected carriage return to be trimmed, got %q", src.Candidates[2].Org)
	}
	if last := src.Candidates[3]; last.Country != "" || last.Org != "" {
		t.Errorf("expected empty trailing fields, got %+v", last)
	}
	if !strings.Contains(logs.String(), "skipping malformed candidate line") {
		t.Errorf("expected a warning for malformed lines, got %q", logs.String())
	}
}

// TestReadCandidatesLongLines tests lines beyond MaxLineSize.
func TestReadCandidatesLongLines(t *testing.T) {
	t.Parallel()

	huge := "1.1.1.1,80,US," + strings.Repeat("x", MaxLineSize)

	tests := []struct {
		name        string
		input       string
		wantAddrs   []string
		wantSkipped int
	}{
		{
			name:        "oversized line between valid lines",
			input:       "1.2.3.4,8080,US,A\n" + huge + "\n5.6.7.8,443,DE,B\n",
			wantAddrs:   []string{"1.2.3.4", "5.6.7.8"},
			wantSkipped: 1,
		},
		{
			name:        "oversized last line without newline",
			input:       "1.2.3.4,8080,US,A\n" + huge,
			wantAddrs:   []string{"1.2.3.4"},
			wantSkipped: 1,
		},
		{
			name:        "line at the limit is parsed",
			input:       "9.9.9.9,80,US," + strings.Repeat("y", MaxLineSize-len("9.9.9.9,80,US,")) + "\n",
			wantAddrs:   []string{"9.9.9.9"},
			wantSkipped: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var logs bytes.Buffer
			src, err := ReadCandidates(strings.NewReader(tt.input), slog.New(slog.NewTextHandler(&logs, nil)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var got []string
			for _, c := range src.Candidates {
				got = append(got, c.Address)
			}
			if strings.Join(got, " ") != strings.Join(tt.wantAddrs, " ") {
				t.Errorf("expected candidates %v, got %v", tt.wantAddrs, got)
			}
			if src.Skipped != tt.wantSkipped {
				t.Errorf("expected %d skipped, got %d", tt.wantSkipped, src.Skipped)
			}
			if tt.wantSkipped > 0 && !strings.Contains(logs.String(), "skipping oversized candidate line") {
				t.Errorf("expected oversized line warning, got %q", logs.String())
			}
		})
	}
}

// TestLayoutLoadSource tests reading the source file.
func TestLayoutLoadSource(t *testing.T) {
	t.Parallel()

	t.Run("reads and digests", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "proxy.txt")
		data := []byte("1.2.3.4,8080,US,OrgA\n")
		if err := os.WriteFile(path, data, 0o600); err != nil {
			t.Fatal(err)
		}

		src, err := NewLayout(path, t.TempDir()).LoadSource(discardLogger())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(src.Candidates) != 1 {
			t.Errorf("expected 1 candidate, got %d", len(src.Candidates))
		}
		if src.Digest != Digest(data) {
			t.Errorf("digest mismatch: %s", src.Digest)
		}
		if len(src.Digest) != 64 {
			t.Errorf("expected 64 hex characters, got %d", len(src.Digest))
		}
	})

	t.Run("missing source is an error", func(t *testing.T) {
		t.Parallel()

		_, err := NewLayout(filepath.Join(t.TempDir(), "nope.txt"), "").LoadSource(discardLogger())
		if err == nil {
			t.Fatal("expected error")
		}
		if !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("expected not-exist error, got %v", err)
		}
	})
}

// TestDigest tests the SHA3-256 digest.
func TestDigest(t *testing.T) {
	t.Parallel()

	// SHA3-256 of the empty string.
	const empty = "a7ffc6f8bf1ed76651c14756a061d662f580ff4de43b49fa82d80a4b80f8434a"
	if got := Digest(nil); got != empty {
		t.Errorf("expected %s, got %s", empty, got)
	}
	if Digest([]byte("a")) == Digest([]byte("b")) {
		t.Error("expected different digests")
	}
}
