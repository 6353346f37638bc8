package main

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/nao1215/proxyscan/internal/config"
	"github.com/spf13/cobra"
)

//go:embed templates/proxyscan.yaml
var configTemplate []byte

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented proxyscan configuration file",
		Long: `Init writes a .proxyscan file with every option commented out at its
default value. Uncomment a line to change it; scan flags still win over
the file.

Options written:
  source             candidate list, rewritten deduplicated after each run
  resultDir          directory receiving proxy.json, ALL/ and country/
  reference          host, path and port of the IP echo service
  timeout            deadline for one probe exchange
  concurrency        probes in flight at once
  samplesPerCountry  endpoints kept per country in proxy.json
  userAgent          User-Agent header sent with every probe
  maxBodySize        response bytes read per exchange
  geoipDatabase      MaxMind country database for missing countries
  history            record runs in the history database
  markdown           write report.md

scan looks for .proxyscan in the current directory, then in your home
directory, unless --config names a file.

Examples:
  # Write .proxyscan here
  proxyscan init

  # Write it somewhere else, replacing any existing file
  proxyscan init -o ~/.proxyscan -f

  # Only print the template
  proxyscan init --print`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Where to write the configuration file")
	cmd.Flags().BoolP("force", "f", false,
		"Replace an existing file")
	cmd.Flags().BoolP("print", "p", false,
		"Print the template to stdout instead of writing a file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	outputPath, err := flags.GetString("output")
	if err != nil {
		return err
	}
	force, err := flags.GetBool("force")
	if err != nil {
		return err
	}
	printOnly, err := flags.GetBool("print")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if printOnly {
		_, err := out.Write(configTemplate)
		return err
	}

	if err := writeConfigTemplate(outputPath, force); err != nil {
		return err
	}

	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "Uncomment the options you want to change; 'proxyscan scan' picks them up.")
	return nil
}

// writeConfigTemplate creates path with mode 0600. Without force an
// existing file is an error.
func writeConfigTemplate(path string, force bool) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	flag := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}

	f, err := os.OpenFile(path, flag, 0o600)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", path)
	}
	if err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	if _, err := f.Write(configTemplate); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	return f.Close()
}
