// Package geo resolves country codes from a local MaxMind database.
// It backs the optional country fallback used when the reference service
// does not report a country for a validated proxy.
package geo
