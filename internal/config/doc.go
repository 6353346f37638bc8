// Package config provides configuration structures and utilities for proxyscan.
// It defines the reference service, probing limits, file locations and
// output preferences, and loads optional overrides from a YAML file.
package config
