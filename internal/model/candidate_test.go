package model

import (
	"errors"
	"testing"
)

// TestParseCandidate tests parsing of candidate source lines.
func TestParseCandidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		line    string
		want    Candidate
		wantErr error
	}{
		{
			name: "full record",
			line: "1.2.3.4,8080,US,Org+A",
			want: Candidate{Address: "1.2.3.4", Port: 8080, Country: "US", Org: "Org+A"},
		},
		{
			name: "missing org",
			line: "5.6.7.8,443,DE",
			want: Candidate{Address: "5.6.7.8", Port: 443, Country: "DE"},
		},
		{
			name: "carriage return is stripped",
			line: "5.6.7.8,443,DE,OrgB\r",
			want: Candidate{Address: "5.6.7.8", Port: 443, Country: "DE", Org: "OrgB"},
		},
		{
			name: "address and port only",
			line: "9.9.9.9,80",
			want: Candidate{Address: "9.9.9.9", Port: 80},
		},
		{
			name:    "blank line",
			line:    "   ",
			wantErr: ErrEmptyCandidateLine,
		},
		{
			name:    "missing port",
			line:    "1.2.3.4",
			wantErr: ErrMissingAddress,
		},
		{
			name:    "missing address",
			line:    ",8080,US,Org",
			wantErr: ErrMissingAddress,
		},
		{
			name:    "non numeric port",
			line:    "1.2.3.4,http,US,Org",
			wantErr: ErrInvalidPort,
		},
		{
			name:    "port out of range",
			line:    "1.2.3.4,70000,US,Org",
			wantErr: ErrInvalidPort,
		},
		{
			name:    "port zero",
			line:    "1.2.3.4,0,US,Org",
			wantErr: ErrInvalidPort,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseCandidate(tt.line)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected error %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

// TestCandidateKey tests the deduplication key and dial address.
func TestCandidateKey(t *testing.T) {
	t.Parallel()

	t.Run("ipv4", func(t *testing.T) {
		t.Parallel()
		c := Candidate{Address: "1.2.3.4", Port: 8080}
		if c.Key() != "1.2.3.4:8080" {
			t.Errorf("expected key '1.2.3.4:8080', got %q", c.Key())
		}
		if c.HostPort() != "1.2.3.4:8080" {
			t.Errorf("expected host port '1.2.3.4:8080', got %q", c.HostPort())
		}
	})

	t.Run("ipv6 is bracketed only when dialing", func(t *testing.T) {
		t.Parallel()
		c := Candidate{Address: "2001:db8::1", Port: 443}
		if c.Key() != "2001:db8::1:443" {
			t.Errorf("unexpected key %q", c.Key())
		}
		if c.HostPort() != "[2001:db8::1]:443" {
			t.Errorf("unexpected host port %q", c.HostPort())
		}
	})
}

// TestCandidateNormalized tests decoding of the organization placeholder.
func TestCandidateNormalized(t *testing.T) {
	t.Parallel()

	c := Candidate{Address: "1.2.3.4", Port: 8080, Country: "US", Org: "Cloud+Flare+Inc"}
	n := c.Normalized()

	if n.Org != "Cloud Flare Inc" {
		t.Errorf("expected 'Cloud Flare Inc', got %q", n.Org)
	}
	if c.Org != "Cloud+Flare+Inc" {
		t.Error("expected original candidate to be unchanged")
	}
	if n.Line() != "1.2.3.4,8080,US,Cloud Flare Inc" {
		t.Errorf("unexpected line %q", n.Line())
	}
}

// TestNormalizeOrganization tests NFC composition.
func TestNormalizeOrganization(t *testing.T) {
	t.Parallel()

	// "e" followed by a combining acute accent composes to a single rune.
	got := NormalizeOrganization("Cafe\u0301+SA")
	if got != "Caf\u00e9 SA" {
		t.Errorf("expected composed form, got %q", got)
	}
}
