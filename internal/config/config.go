package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"golang.org/x/net/idna"
)

// Default configuration values.
const (
	// DefaultReferenceHost is the service that echoes the caller's origin IP
	// as JSON ({"ip": ..., "country": ..., "asOrganization": ...}).
	DefaultReferenceHost = "myip.ipeek.workers.dev"

	// DefaultReferencePath is the path requested on the reference host.
	DefaultReferencePath = "/"

	// DefaultReferencePort is the TLS port of the reference service and the
	// port used when fetching the caller's own IP directly.
	DefaultReferencePort = 443

	// DefaultTimeout caps a single exchange (dial, handshake, request, response).
	DefaultTimeout = 5 * time.Second

	// DefaultConcurrency is the number of probes in flight at once.
	DefaultConcurrency = 99

	// DefaultSamplesPerCountry caps the endpoints kept per country in proxy.json.
	DefaultSamplesPerCountry = 10

	// DefaultUserAgent is sent with every probe request.
	DefaultUserAgent = "Mozilla"

	// DefaultMaxBodySize limits how much of a response is buffered.
	DefaultMaxBodySize = 1024 * 1024 // 1MB

	// DefaultSourceFile is the candidate source, rewritten after each run.
	DefaultSourceFile = "./SOURCE/proxy.txt"

	// DefaultResultDir receives all result artifacts.
	DefaultResultDir = "./RESULT"

	// AppName is the application name used for XDG directory paths.
	AppName = "proxyscan"
)

// Config holds all configuration options for proxyscan.
// It is populated from defaults, the optional config file and CLI flags,
// in that order, and passed down explicitly rather than kept in globals.
type Config struct {
	// SourceFile is the path of the "address,port,country,org" candidate list.
	SourceFile string

	// ResultDir is the directory receiving proxy.json, ALL/ and country/.
	ResultDir string

	// ReferenceHost is the hostname of the IP echo service.
	// It is used for SNI, certificate verification and the Host header.
	ReferenceHost string

	// ReferencePath is the request path on the reference host.
	ReferencePath string

	// ReferencePort is the port used when contacting the reference service directly.
	ReferencePort int

	// Timeout caps a single probe exchange.
	Timeout time.Duration

	// Concurrency is the maximum number of probes in flight.
	Concurrency int

	// SamplesPerCountry caps each country's list in proxy.json.
	SamplesPerCountry int

	// UserAgent is the User-Agent header of probe requests.
	UserAgent string

	// MaxBodySize is the maximum number of response bytes buffered per exchange.
	MaxBodySize int64

	// GeoIPDatabase is an optional MaxMind country database used when the
	// reference service does not report a country.
	GeoIPDatabase string

	// SaveHistory enables recording the run in the history database.
	SaveHistory bool

	// DBDir is the directory holding the history database.
	DBDir string

	// MarkdownReport enables writing report.md into ResultDir.
	MarkdownReport bool

	// ShowProgress enables the progress bar on stderr.
	ShowProgress bool

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the explicit config file path, if any.
	ConfigFilePath string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		SourceFile:        DefaultSourceFile,
		ResultDir:         DefaultResultDir,
		ReferenceHost:     DefaultReferenceHost,
		ReferencePath:     DefaultReferencePath,
		ReferencePort:     DefaultReferencePort,
		Timeout:           DefaultTimeout,
		Concurrency:       DefaultConcurrency,
		SamplesPerCountry: DefaultSamplesPerCountry,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		SaveHistory:       true,
		DBDir:             XDGDataDir(),
		MarkdownReport:    true,
		ShowProgress:      true,
	}
}

// XDGDataDir returns the XDG data directory for proxyscan.
// On Linux: ~/.local/share/proxyscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for proxyscan.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Apply overlays non-zero values from a config file onto c.
func (c *Config) Apply(f *File) {
	if f == nil {
		return
	}
	if f.Source != "" {
		c.SourceFile = f.Source
	}
	if f.ResultDir != "" {
		c.ResultDir = f.ResultDir
	}
	if f.Reference.Host != "" {
		c.ReferenceHost = f.Reference.Host
	}
	if f.Reference.Path != "" {
		c.ReferencePath = f.Reference.Path
	}
	if f.Reference.Port != 0 {
		c.ReferencePort = f.Reference.Port
	}
	if f.Timeout > 0 {
		c.Timeout = f.Timeout
	}
	if f.Concurrency > 0 {
		c.Concurrency = f.Concurrency
	}
	if f.SamplesPerCountry > 0 {
		c.SamplesPerCountry = f.SamplesPerCountry
	}
	if f.UserAgent != "" {
		c.UserAgent = f.UserAgent
	}
	if f.MaxBodySize > 0 {
		c.MaxBodySize = f.MaxBodySize
	}
	if f.GeoIPDatabase != "" {
		c.GeoIPDatabase = f.GeoIPDatabase
	}
	if f.History != nil {
		c.SaveHistory = *f.History
	}
	if f.Markdown != nil {
		c.MarkdownReport = *f.Markdown
	}
}

// ReferenceASCIIHost returns the reference host in its ASCII (punycode) form.
func (c *Config) ReferenceASCIIHost() (string, error) {
	host := strings.TrimSpace(c.ReferenceHost)
	if host == "" {
		return "", ErrInvalidReferenceHost
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidReferenceHost, err)
	}
	return ascii, nil
}

// Validate checks if the configuration is valid.
// It returns the first problem found as one of the package sentinels.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SourceFile) == "" {
		return ErrNoSource
	}

	if strings.TrimSpace(c.ResultDir) == "" {
		return ErrNoResultDir
	}

	if _, err := c.ReferenceASCIIHost(); err != nil {
		return err
	}

	if c.ReferencePort <= 0 || c.ReferencePort > 65535 {
		return ErrInvalidReferencePort
	}

	if !strings.HasPrefix(c.ReferencePath, "/") {
		return ErrInvalidReferencePath
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.SamplesPerCountry <= 0 {
		return ErrInvalidSampleSize
	}

	if c.MaxBodySize <= 0 {
		return ErrInvalidMaxBodySize
	}

	return nil
}
