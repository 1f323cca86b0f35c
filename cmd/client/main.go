// Command client is the offline-capable marketplace client. It keeps saved
// properties and the recently viewed history in a local store and reads
// from the marketplace API only while the API is reachable.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"property-marketplace/internal/apiclient"
	"property-marketplace/internal/catalog"
	"property-marketplace/internal/config"
	"property-marketplace/internal/connectivity"
	"property-marketplace/internal/kvstore"
	"property-marketplace/internal/logging"
	"property-marketplace/internal/mirror"

	"github.com/spf13/cobra"
)

var (
	configPath string
	apiURL     string
	storePath  string
	offline    bool
	verbose    bool
)

// app holds the wired client components of one invocation
type app struct {
	logger  *slog.Logger
	store   *kvstore.Store
	monitor *connectivity.Monitor
	browser *catalog.Browser
	mirror  *mirror.Mirror
}

var current *app

var rootCmd = &cobra.Command{
	Use:           "client",
	Short:         "Browse the property marketplace, online or offline",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		current = a
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "marketplace.yaml", "Config file")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "Marketplace API URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "Local store file (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "Force the disconnected state")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(listCmd, showCmd, saveCmd, removeCmd, savedCmd, historyCmd, staleCmd, reconcileCmd, watchCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// run executes the command line and closes the local store whether or not
// the command succeeded
func run(ctx context.Context, args []string) error {
	rootCmd.SetArgs(args)
	defer func() {
		if current != nil {
			if err := current.store.Close(); err != nil {
				current.logger.Warn("failed to close local store", "err", err)
			}
		}
	}()
	return rootCmd.ExecuteContext(ctx)
}

// setup opens the local store, probes the API once and sweeps orphaned
// mirror entries left by an interrupted write
func setup(ctx context.Context) (*app, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if apiURL != "" {
		cfg.Client.APIURL = apiURL
	}
	if storePath != "" {
		cfg.Client.StorePath = storePath
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	logger := logging.New(logging.Options{Writer: os.Stderr, Level: level, Format: cfg.Logging.Format})

	store, err := kvstore.Open(cfg.Client.StorePath, logger)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		store.Close()
		return nil, err
	}

	api := apiclient.New(cfg.Client.APIURL, cfg.Client.RequestTimeout(), logger)
	monitor := connectivity.NewMonitor(
		&connectivity.HTTPProber{URL: api.HealthURL(), Client: api.HTTPClient()},
		connectivity.Options{
			Interval:         cfg.Client.ProbeInterval(),
			Timeout:          cfg.Client.ProbeTimeout(),
			FailureThreshold: cfg.Client.FailureThreshold,
		},
		logger,
	)
	if offline {
		monitor.Set(false)
	} else {
		monitor.Check(ctx)
	}

	m := mirror.New(store, logger)
	history := mirror.NewHistory(store, logger)
	if result, err := m.Reconcile(ctx); err != nil {
		logger.Warn("failed to reconcile offline store", "err", err)
	} else if result.OrphanDetails > 0 || result.OrphanSummaries > 0 {
		logger.Info("removed orphaned offline entries",
			"details", result.OrphanDetails,
			"summaries", result.OrphanSummaries)
	}

	return &app{
		logger:  logger,
		store:   store,
		monitor: monitor,
		browser: catalog.NewBrowser(api, monitor, m, history, logger),
		mirror:  m,
	}, nil
}
