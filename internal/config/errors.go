package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() so callers can use
// errors.Is() while still getting a human-readable message.
var (
	// ErrNoSource is returned when no candidate source path is configured.
	ErrNoSource = errors.New("no candidate source specified: use --source or set source in the config file")

	// ErrNoResultDir is returned when the result directory is empty.
	ErrNoResultDir = errors.New("no result directory specified")

	// ErrInvalidTimeout is returned when the probe timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidConcurrency is returned when the concurrency limit is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidSampleSize is returned when the per-country sample size is not positive.
	ErrInvalidSampleSize = errors.New("invalid samples per country: must be positive")

	// ErrInvalidReferenceHost is returned when the reference host is empty
	// or cannot be converted to an ASCII hostname.
	ErrInvalidReferenceHost = errors.New("invalid reference host")

	// ErrInvalidReferencePort is returned when the reference port is zero.
	ErrInvalidReferencePort = errors.New("invalid reference port: must be between 1 and 65535")

	// ErrInvalidReferencePath is returned when the reference path does not start with '/'.
	ErrInvalidReferencePath = errors.New("invalid reference path: must start with '/'")

	// ErrInvalidMaxBodySize is returned when the max response size is not positive.
	ErrInvalidMaxBodySize = errors.New("invalid max response size: must be positive")
)
