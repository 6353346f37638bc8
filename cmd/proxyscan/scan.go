package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/cheggaaa/pb/v3"
	"github.com/nao1215/proxyscan/internal/config"
	"github.com/nao1215/proxyscan/internal/database"
	"github.com/nao1215/proxyscan/internal/geo"
	"github.com/nao1215/proxyscan/internal/log"
	"github.com/nao1215/proxyscan/internal/pipeline"
	"github.com/nao1215/proxyscan/internal/probe"
	"github.com/nao1215/proxyscan/internal/report"
	"github.com/nao1215/proxyscan/internal/storage"
	"github.com/spf13/cobra"
)

// progressTemplate is the pb template used for the probe progress bar.
const progressTemplate = `{{counters . }} {{bar . }} {{percent . }} {{etime . }}`

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Probe every candidate in the source list",
		Long: `Scan reads the candidate list, removes duplicates and probes every
candidate concurrently.

A probe opens a TLS connection to the candidate with the reference host as
server name and requests the reference path. The candidate works when the
answer carries an origin IP that differs from your own.

When every probe has finished, scan writes:
  RESULT/proxy.json         up to N endpoints per country
  RESULT/ALL/proxy.txt      every working candidate
  RESULT/country/<CC>.txt   working candidates split by country
  RESULT/report.md          Markdown summary
and rewrites the source with the deduplicated candidates.

Examples:
  # Scan ./SOURCE/proxy.txt into ./RESULT
  proxyscan scan

  # Use another list and result directory
  proxyscan scan --source list.txt --result-dir out

  # Fewer probes in flight, longer deadline
  proxyscan scan --concurrency 20 --timeout 10s

  # Print the full report as JSON (summary goes to stderr)
  proxyscan scan --json`,
		Args: cobra.NoArgs,
		RunE: runScanCmd,
	}

	// Input and output
	cmd.Flags().StringP("source", "s", config.DefaultSourceFile,
		"Candidate list, one \"address,port,country,org\" per line")
	cmd.Flags().StringP("result-dir", "r", config.DefaultResultDir,
		"Directory receiving the result files")

	// Probe behavior
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Number of probes in flight")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Deadline for one probe exchange")
	cmd.Flags().String("reference-host", config.DefaultReferenceHost,
		"Host name of the IP echo service")
	cmd.Flags().String("reference-path", config.DefaultReferencePath,
		"Request path on the IP echo service")
	cmd.Flags().Int("reference-port", config.DefaultReferencePort,
		"Port used to reach the IP echo service directly")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every probe")
	cmd.Flags().String("geoip", "",
		"MaxMind country database used when the echo service reports no country")

	// Results
	cmd.Flags().Int("samples", config.DefaultSamplesPerCountry,
		"Endpoints kept per country in proxy.json")
	cmd.Flags().Bool("no-history", false,
		"Do not record the run in the history database")
	cmd.Flags().Bool("no-markdown", false,
		"Do not write report.md")
	cmd.Flags().Bool("no-progress", false,
		"Hide the progress bar")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory holding the history database")
	cmd.Flags().BoolP("json", "j", false,
		"Print the full report as JSON on stdout and the summary on stderr")

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .proxyscan in current or home directory)")

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	redactor := log.NewRedactor()
	logger := log.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose, redactor)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runScan(ctx, cfg, scanOptions{
		stdout:     cmd.OutOrStdout(),
		stderr:     cmd.ErrOrStderr(),
		logger:     logger,
		redactor:   redactor,
		jsonOutput: jsonOutput,
	})
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig layers defaults, the config file and explicitly set flags.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}

	// An explicit path must exist; the implicit lookup may find nothing.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath != "" {
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.Apply(file)
	} else if cfg.ConfigFilePath != "" {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	if flags.Changed("source") {
		if cfg.SourceFile, err = flags.GetString("source"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("result-dir") {
		if cfg.ResultDir, err = flags.GetString("result-dir"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("concurrency") {
		if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("reference-host") {
		if cfg.ReferenceHost, err = flags.GetString("reference-host"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("reference-path") {
		if cfg.ReferencePath, err = flags.GetString("reference-path"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("reference-port") {
		if cfg.ReferencePort, err = flags.GetInt("reference-port"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("user-agent") {
		if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("geoip") {
		if cfg.GeoIPDatabase, err = flags.GetString("geoip"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("samples") {
		if cfg.SamplesPerCountry, err = flags.GetInt("samples"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("db-dir") {
		if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
			return nil, err
		}
	}

	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	if noHistory {
		cfg.SaveHistory = false
	}

	noMarkdown, err := flags.GetBool("no-markdown")
	if err != nil {
		return nil, err
	}
	if noMarkdown {
		cfg.MarkdownReport = false
	}

	noProgress, err := flags.GetBool("no-progress")
	if err != nil {
		return nil, err
	}
	cfg.ShowProgress = !noProgress

	cfg.Verbose = getVerboseFlag(cmd)

	return cfg, nil
}

// scanOptions carries the process-level dependencies of a scan.
type scanOptions struct {
	stdout io.Writer
	stderr io.Writer

	logger   *slog.Logger
	redactor *log.Redactor

	// jsonOutput prints the full JSON report on stdout and moves the
	// text summary to stderr.
	jsonOutput bool

	// clientOptions are appended to the probe client options.
	clientOptions []probe.ClientOption
}

// runScan executes one scan: load, probe, finalize, write.
func runScan(ctx context.Context, cfg *config.Config, opts scanOptions) error {
	logger := opts.logger
	if logger == nil {
		logger = slog.Default()
	}
	redactor := opts.redactor
	if redactor == nil {
		redactor = log.NewRedactor()
	}

	layout := storage.NewLayout(cfg.SourceFile, cfg.ResultDir)
	if err := layout.Prepare(); err != nil {
		return fmt.Errorf("failed to prepare result directory: %w", err)
	}

	src, err := layout.LoadSource(logger)
	if err != nil {
		return err
	}

	host, err := cfg.ReferenceASCIIHost()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	clientOpts := []probe.ClientOption{
		probe.WithPath(cfg.ReferencePath),
		probe.WithUserAgent(cfg.UserAgent),
		probe.WithTimeout(cfg.Timeout),
		probe.WithMaxBodySize(cfg.MaxBodySize),
	}
	client := probe.NewClient(host, append(clientOpts, opts.clientOptions...)...)

	resolver := probe.NewResolver(client,
		net.JoinHostPort(host, strconv.Itoa(cfg.ReferencePort)),
		probe.WithOnResolve(redactor.Add),
		probe.WithResolverLogger(logger),
	)

	proberOpts := []probe.ProberOption{probe.WithProberLogger(logger)}
	if cfg.GeoIPDatabase != "" {
		locator, err := geo.Open(cfg.GeoIPDatabase)
		if err != nil {
			return fmt.Errorf("failed to open GeoIP database: %w", err)
		}
		defer locator.Close()
		proberOpts = append(proberOpts, probe.WithLocator(locator))
	}
	prober := probe.NewProber(client, resolver, proberOpts...)

	batchOpts := []pipeline.BatchOption{
		pipeline.WithConcurrency(cfg.Concurrency),
		pipeline.WithBatchLogger(logger),
	}
	var bar *pb.ProgressBar
	if cfg.ShowProgress {
		bar = pb.New(0)
		bar.SetTemplate(progressTemplate)
		bar.SetWriter(opts.stderr)
		bar.Start()
		batchOpts = append(batchOpts, pipeline.WithProgress(func(current, total int) {
			bar.SetTotal(int64(total))
			bar.SetCurrent(int64(current))
		}))
	}

	scanner := pipeline.NewScanner(
		pipeline.NewBatchProcessor(prober, batchOpts...),
		pipeline.WithSamplesPerCountry(cfg.SamplesPerCountry),
		pipeline.WithScannerLogger(logger),
	)

	logger.Info("starting scan",
		"source", cfg.SourceFile,
		"candidates", len(src.Candidates),
		"skipped", src.Skipped,
		"concurrency", cfg.Concurrency,
		"reference", host,
	)

	scanReport, err := scanner.Run(ctx, src.Candidates)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}
	scanReport.SourceDigest = src.Digest

	output := pipeline.OutputOptions{
		Markdown: cfg.MarkdownReport,
		Logger:   logger,
	}
	if cfg.SaveHistory {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		output.History = db
	}

	if err := pipeline.NewOutputPipeline(layout, output).Execute(ctx, scanReport); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}

	if _, err := summaryWriter(cfg, layout, opts).Write(scanReport); err != nil {
		return fmt.Errorf("failed to print summary: %w", err)
	}

	return nil
}

// summaryWriter prints the text summary on stdout. With --json the full
// report goes to stdout and the summary moves to stderr.
func summaryWriter(cfg *config.Config, layout storage.Layout, opts scanOptions) report.Writer {
	summaryOut := opts.stdout
	if opts.jsonOutput {
		summaryOut = opts.stderr
	}
	summary := report.NewSimpleWriter(summaryOut,
		report.WithCountryDir(layout.CountryDir()),
		report.WithVerbose(cfg.Verbose),
	)
	if !opts.jsonOutput {
		return summary
	}
	return report.NewMultiWriter(
		report.NewFullJSONWriter(opts.stdout, getVersion(), report.WithPrettyPrint()),
		summary,
	)
}
