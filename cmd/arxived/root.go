package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/thesavant42/arxived/internal/api"
	"github.com/thesavant42/arxived/internal/config"
	"github.com/thesavant42/arxived/internal/controller"
	"github.com/thesavant42/arxived/internal/db"
	"github.com/thesavant42/arxived/internal/scraper"
	"github.com/thesavant42/arxived/internal/ui"
)

var (
	flagConfig   string
	flagNoSplash bool
)

// splashTimeout is how long the splash stays up without a key press
const splashTimeout = 1500 * time.Millisecond

var rootCmd = &cobra.Command{
	Use:   "arxived",
	Short: "Scrape arXiv for papers on a topic",
	Long: "arxived searches the arXiv API for papers on a topic, optionally within a\n" +
		"published date range, and lets you browse and export the matches.",
	SilenceUsage: true,
	RunE:         runTUI,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "arxived %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")

	rootCmd.Flags().BoolVar(&flagNoSplash, "no-splash", false, "skip the splash screen")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(searchCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// The terminal belongs to the TUI, so logs go to a file
	logger, closeLog := newFileLogger(cfg)
	defer closeLog()

	store, err := db.New()
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	ctrl := controller.New(newScraper(cfg, logger), logger)

	if cfg.UI.Splash && !flagNoSplash {
		if err := ui.ShowSplash(version, splashTimeout); err != nil {
			logger.Warn("Splash screen failed", "error", err)
		}
	}

	logger.Info("Starting TUI", "version", version, "base_url", cfg.API.BaseURL)
	return ui.RunApp(ctx, ui.Options{
		Controller: ctrl,
		Store:      store,
		Logger:     logger,
		MaxLimit:   cfg.GetMaxLimit(),
		PreviewCap: cfg.GetPreviewCap(),
		DefaultQuery: ui.QueryInput{
			Topic: cfg.UI.DefaultTopic,
			Limit: fmt.Sprintf("%d", cfg.UI.DefaultLimit),
		},
		AutoSearch:  cfg.UI.AutoSearch,
		ExportDir:   cfg.Export.Dir,
		CSVFilename: cfg.Export.CSVFilename,
	})
}

// newScraper wires the arXiv client and the range scraper from config
func newScraper(cfg *config.Config, logger *log.Logger, opts ...scraper.Option) *scraper.RangeScraper {
	client := api.NewArxivClient(logger,
		api.WithBaseURL(cfg.API.BaseURL),
		api.WithTimeout(cfg.Timeout()),
		api.WithMinInterval(cfg.MinInterval()),
	)

	opts = append([]scraper.Option{
		scraper.WithLogger(logger),
		scraper.WithOptions(scraper.Options{
			StepSize:   cfg.Scrape.StepSize,
			MaxRetries: cfg.Scrape.MaxRetries,
			RetryDelay: cfg.RetryDelay(),
			PageDelay:  cfg.PageDelay(),
		}),
	}, opts...)
	return scraper.New(client, opts...)
}

// newFileLogger opens the configured log file. When it cannot be opened
// logging is discarded rather than written over the TUI.
func newFileLogger(cfg *config.Config) (*log.Logger, func()) {
	path := cfg.LogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return log.New(io.Discard), func() {}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return log.New(io.Discard), func() {}
	}

	logger := log.NewWithOptions(f, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          "arxived",
		Level:           cfg.LogLevel(),
	})
	return logger, func() { f.Close() }
}

// withTimeout bounds ctx when d is positive
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
