package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for proxyscan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proxyscan",
		Short: "Concurrent prober for open TLS relays",
		Long: `proxyscan checks a list of candidate relays and keeps the ones that work.

Each candidate is asked to forward a TLS request to an IP echo service.
A candidate is kept when the service answers and reports an origin IP
different from your own. Working relays are written to the result
directory, grouped by country.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
