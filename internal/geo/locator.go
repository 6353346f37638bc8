package geo

import (
	"errors"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

var (
	// ErrInvalidIP is returned when the address cannot be parsed.
	ErrInvalidIP = errors.New("invalid ip address")

	// ErrNoCountry is returned when the database has no country for the address.
	ErrNoCountry = errors.New("no country for ip address")
)

// Locator looks up ISO country codes in a GeoIP2/GeoLite2 database.
// It is safe for concurrent use.
type Locator struct {
	reader *geoip2.Reader
}

// Open opens the database at path.
func Open(path string) (*Locator, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open geoip database %s: %w", path, err)
	}
	return &Locator{reader: reader}, nil
}

// Close releases the database.
func (l *Locator) Close() error {
	return l.reader.Close()
}

// Country returns the ISO 3166-1 alpha-2 code for ip.
func (l *Locator) Country(ip string) (string, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidIP, ip)
	}

	record, err := l.reader.Country(parsed)
	if err != nil {
		return "", fmt.Errorf("geoip lookup %s: %w", ip, err)
	}
	if record.Country.IsoCode == "" {
		return "", fmt.Errorf("%w: %s", ErrNoCountry, ip)
	}

	return record.Country.IsoCode, nil
}
