// Package main provides the entry point for the proxyscan CLI.
//
// proxyscan reads a list of candidate relays, probes each one through a
// TLS request to an IP echo service and keeps the relays that hide the
// caller's own address.
//
// Usage:
//
//	proxyscan scan
//	proxyscan scan --source list.txt --result-dir out
//	proxyscan history
//
// See --help for all available options.
package main

// main is the entry point for proxyscan.
func main() {
	Execute()
}
