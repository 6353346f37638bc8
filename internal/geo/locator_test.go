package geo

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// TestOpen tests opening invalid databases.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		if _, err := Open(filepath.Join(t.TempDir(), "missing.mmdb")); err == nil {
			t.Error("expected error for missing database")
		}
	})

	t.Run("not a maxmind database", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "bogus.mmdb")
		if err := os.WriteFile(path, []byte("not a database"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := Open(path); err == nil {
			t.Error("expected error for invalid database")
		}
	})
}

// TestLocatorCountry_InvalidIP tests that bad input is rejected before lookup.
func TestLocatorCountry_InvalidIP(t *testing.T) {
	t.Parallel()

	l := &Locator{}
	_, err := l.Country("not-an-ip")
	if !errors.Is(err, ErrInvalidIP) {
		t.Errorf("expected ErrInvalidIP, got %v", err)
	}
}
