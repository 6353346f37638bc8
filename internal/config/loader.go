package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".proxyscan"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// ReferenceFile is the reference service section of the config file.
type ReferenceFile struct {
	Host string `yaml:"host,omitempty"`
	Path string `yaml:"path,omitempty"`
	Port int    `yaml:"port,omitempty"`
}

// File represents the structure of the .proxyscan configuration file.
// Zero values mean "keep the default".
type File struct {
	Source            string        `yaml:"source,omitempty"`
	ResultDir         string        `yaml:"resultDir,omitempty"`
	Reference         ReferenceFile `yaml:"reference,omitempty"`
	Timeout           time.Duration `yaml:"timeout,omitempty"`
	Concurrency       int           `yaml:"concurrency,omitempty"`
	SamplesPerCountry int           `yaml:"samplesPerCountry,omitempty"`
	UserAgent         string        `yaml:"userAgent,omitempty"`
	MaxBodySize       int64         `yaml:"maxBodySize,omitempty"`
	GeoIPDatabase     string        `yaml:"geoipDatabase,omitempty"`

	// History and Markdown are pointers so that an explicit false can
	// disable a feature that defaults to on.
	History  *bool `yaml:"history,omitempty"`
	Markdown *bool `yaml:"markdown,omitempty"`
}

// LoadConfigFile loads settings from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}

	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .proxyscan in the current directory
// 3. Look for .proxyscan in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}
