package model

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// candidateFields is the number of comma-separated fields in a candidate line.
const candidateFields = 4

// orgSpacePlaceholder is the character the candidate source uses instead of
// spaces inside the organization field.
const orgSpacePlaceholder = "+"

var (
	// ErrEmptyCandidateLine is returned for blank lines.
	ErrEmptyCandidateLine = errors.New("empty candidate line")

	// ErrMissingAddress is returned when the address or port field is empty.
	ErrMissingAddress = errors.New("candidate line has no address or port")

	// ErrInvalidPort is returned when the port is not a number in 1-65535.
	ErrInvalidPort = errors.New("invalid candidate port")
)

// Candidate is a proxy endpoint read from the candidate source.
// It is immutable once parsed.
type Candidate struct {
	// Address is the IP address or hostname of the proxy.
	Address string `json:"address"`

	// Port is the TCP port the proxy listens on.
	Port uint16 `json:"port"`

	// Country is the country code recorded in the source (may be empty).
	Country string `json:"country"`

	// Org is the organization field as found in the source.
	// Spaces may be encoded with the '+' placeholder.
	Org string `json:"org"`
}

// ParseCandidate parses a single "address,port,country,org" line.
// Missing trailing fields are left empty; extra fields are ignored.
func ParseCandidate(line string) (Candidate, error) {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return Candidate{}, ErrEmptyCandidateLine
	}

	fields := strings.SplitN(line, ",", candidateFields+1)
	for len(fields) < candidateFields {
		fields = append(fields, "")
	}

	address := strings.TrimSpace(fields[0])
	portField := strings.TrimSpace(fields[1])
	if address == "" || portField == "" {
		return Candidate{}, ErrMissingAddress
	}

	port, err := strconv.ParseUint(portField, 10, 16)
	if err != nil || port == 0 {
		return Candidate{}, fmt.Errorf("%w: %q", ErrInvalidPort, portField)
	}

	return Candidate{
		Address: address,
		Port:    uint16(port),
		Country: strings.TrimSpace(fields[2]),
		Org:     fields[3],
	}, nil
}

// Key returns the "address:port" deduplication key.
func (c Candidate) Key() string {
	return c.Address + ":" + strconv.Itoa(int(c.Port))
}

// HostPort returns the dialable "host:port" form of the candidate.
// Unlike Key, IPv6 addresses are bracketed.
func (c Candidate) HostPort() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(int(c.Port)))
}

// Normalized returns a copy with the organization placeholder decoded.
func (c Candidate) Normalized() Candidate {
	c.Org = NormalizeOrganization(c.Org)
	return c
}

// Line serializes the candidate back to "address,port,country,org".
func (c Candidate) Line() string {
	return strings.Join([]string{
		c.Address,
		strconv.Itoa(int(c.Port)),
		c.Country,
		c.Org,
	}, ",")
}

// NormalizeOrganization replaces '+' placeholders with spaces and puts the
// result in Unicode NFC form.
func NormalizeOrganization(org string) string {
	return norm.NFC.String(strings.ReplaceAll(org, orgSpacePlaceholder, " "))
}
