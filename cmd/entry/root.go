package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	temporallog "go.temporal.io/sdk/log"

	"dev/bravebird/airline-entry/pkg/browser"
	"dev/bravebird/airline-entry/pkg/config"
	"dev/bravebird/airline-entry/pkg/entry"
	"dev/bravebird/airline-entry/pkg/logging"
	"dev/bravebird/airline-entry/pkg/models"
)

// errNoSnapshot makes the process exit non-zero when nothing was captured
var errNoSnapshot = errors.New("no snapshot captured")

// NewRootCmd creates the entry command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entry",
		Short: "Autofill an airline flight search and snapshot the results",
		Long: `entry opens the booking page in a visible browser and types the origin,
destination and departure date into the search form. It then waits for you
to click 'Search'. Once the results page shows up, a full page screenshot
and the page HTML are written to the output directory.

Settings come from the defaults, an optional YAML file (--config or
ENTRY_CONFIG), the environment and finally the flags below.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runEntryCmd,
	}

	cmd.Flags().StringP("config", "c", "", "YAML configuration file")

	// Search flags
	cmd.Flags().String("url", "", "Booking page URL")
	cmd.Flags().String("origin", "", "Origin airport code")
	cmd.Flags().String("destination", "", "Destination airport code")
	cmd.Flags().String("date", "", "Departure date (MM/DD/YYYY)")
	cmd.Flags().String("cabin", "", "Cabin option text, e.g. business")

	// Browser flags
	cmd.Flags().String("chrome-bin", "", "Chrome executable (default: auto-detect)")
	cmd.Flags().Bool("headless", false, "Run the browser without a window")
	cmd.Flags().Duration("results-timeout", 0, "How long to wait for the results page")
	cmd.Flags().Bool("keep-open", false, "Keep the browser open after the snapshot until interrupted")

	// Output flags
	cmd.Flags().StringP("out-dir", "o", "", "Directory for the snapshot files")
	cmd.Flags().BoolP("debug", "v", false, "Enable debug logging")

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runEntryCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	keepOpen, _ := cmd.Flags().GetBool("keep-open")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.NewStdLogger(log.New(cmd.OutOrStdout(), "", log.LstdFlags), cfg.Debug)

	result, err := runEntry(ctx, cfg, browser.Launch, keepOpen, logger)
	if err != nil {
		return err
	}
	return snapshotError(result)
}

// snapshotError reports a run that ended without a snapshot on disk
func snapshotError(result models.RunResult) error {
	if result.Snapshot != nil {
		return nil
	}
	return fmt.Errorf("%w: %s", errNoSnapshot, result.ErrorMessage)
}

// loadConfig layers the flags that were set on top of config.Load
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()

	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	var override models.SearchParams
	override.URL, _ = flags.GetString("url")
	override.Origin, _ = flags.GetString("origin")
	override.Destination, _ = flags.GetString("destination")
	override.Date, _ = flags.GetString("date")
	override.Cabin, _ = flags.GetString("cabin")
	cfg.Search = cfg.Search.Merge(override)

	if flags.Changed("chrome-bin") {
		cfg.Browser.Bin, _ = flags.GetString("chrome-bin")
	}
	if flags.Changed("headless") {
		cfg.Browser.Headless, _ = flags.GetBool("headless")
	}
	if flags.Changed("results-timeout") {
		cfg.Timing.ResultsTimeout, _ = flags.GetDuration("results-timeout")
	}
	if flags.Changed("out-dir") {
		cfg.Output.Dir, _ = flags.GetString("out-dir")
	}
	if flags.Changed("debug") {
		cfg.Debug, _ = flags.GetBool("debug")
	}

	return cfg, nil
}

// runEntry launches a browser and drives one run against it
func runEntry(ctx context.Context, cfg *config.Config, launch browser.Launcher, keepOpen bool, logger temporallog.Logger) (models.RunResult, error) {
	runID := uuid.New().String()
	logger.Debug("Starting run", "runID", runID, "origin", cfg.Search.Origin, "destination", cfg.Search.Destination)

	session, err := launch(ctx, cfg.Browser)
	if err != nil {
		logger.Error("Could not start the browser", "error", err)
		return models.RunResult{}, err
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("Browser did not close cleanly", "error", err)
		}
	}()

	result := entry.NewRunner(cfg.EntryInput(runID), logger).Run(ctx, session.Page())

	for _, pr := range result.Phases {
		logger.Debug("Phase finished", "phase", pr.Phase, "status", pr.Status, "code", pr.ErrorCode, "durationMs", pr.Duration)
	}

	if keepOpen && ctx.Err() == nil {
		logger.Info("Browser stays open. Press Ctrl+C to quit.")
		<-ctx.Done()
	}
	return result, nil
}
