package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/huh/spinner"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/thesavant42/arxived/internal/config"
	"github.com/thesavant42/arxived/internal/export"
	"github.com/thesavant42/arxived/internal/models"
	"github.com/thesavant42/arxived/internal/scraper"
	"github.com/thesavant42/arxived/internal/ui"
)

// Export formats for the search command
const (
	formatCSV      = "csv"
	formatMarkdown = "md"
	formatNone     = "none"
)

var (
	flagTopic   string
	flagLimit   string
	flagStart   string
	flagEnd     string
	flagOut     string
	flagFormat  string
	flagTimeout time.Duration
	flagYes     bool
	flagNoInput bool
)

var searchCmd = &cobra.Command{
	Use:   "search [topic]",
	Short: "Scrape arXiv without the TUI and export the results",
	Example: `  arxived search "graph neural networks" --limit 50
  arxived search --topic transformers --start 1/01/2020 --end 5/01/2020 --format md`,
	RunE: runSearch,
}

func init() {
	f := searchCmd.Flags()
	f.StringVar(&flagTopic, "topic", "", "topic or author of interest")
	f.StringVar(&flagLimit, "limit", "", fmt.Sprintf("result limit (default %d, max from config)", models.DefaultLimit))
	f.StringVar(&flagStart, "start", "", "optional start date (e.g. 1/01/2020)")
	f.StringVar(&flagEnd, "end", "", "optional end date (e.g. 5/01/2020)")
	f.StringVar(&flagOut, "out", "", "export directory (default from config)")
	f.StringVar(&flagFormat, "format", formatCSV, "export format: csv, md or none")
	f.DurationVar(&flagTimeout, "timeout", 0, "abort the scrape after this long (0 for no limit)")
	f.BoolVarP(&flagYes, "yes", "y", false, "overwrite existing export files without asking")
	f.BoolVar(&flagNoInput, "no-input", false, "never prompt, even on a terminal")
}

func runSearch(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(flagFormat)
	if err != nil {
		return err
	}

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, closeLog := newFileLogger(cfg)
	defer closeLog()

	topic := flagTopic
	if topic == "" && len(args) > 0 {
		topic = strings.Join(args, " ")
	}

	interactive := !flagNoInput && isTerminal()
	q, err := ui.ResolveQuery(ui.QueryInput{
		Topic: topic,
		Limit: flagLimit,
		Start: flagStart,
		End:   flagEnd,
	}, cfg.GetMaxLimit(), interactive)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	ctx, cancel := withTimeout(ctx, flagTimeout)
	defer cancel()

	report := ui.NewReport(cmd.OutOrStdout())
	logger.Info("Headless search", "query", q.String())

	var (
		rs        models.ResultSet
		scrapeErr error
	)
	if interactive {
		s := newScraper(cfg, logger)
		err := spinner.New().
			Title("Scraping arXiv for " + q.String() + "...").
			Context(ctx).
			Action(func() {
				rs, scrapeErr = s.Scrape(ctx, q)
			}).
			Run()
		if err != nil {
			return fmt.Errorf("spinner error: %w", err)
		}
	} else {
		progress := ui.NewReport(cmd.ErrOrStderr())
		s := newScraper(cfg, logger, scraper.WithProgress(progress.PrintProgress))
		rs, scrapeErr = s.Scrape(ctx, q)
		fmt.Fprintln(cmd.ErrOrStderr())
	}
	if scrapeErr != nil {
		logger.Error("Scrape failed", "query", q.String(), "error", scrapeErr)
		if errors.Is(scrapeErr, scraper.ErrFetchFailed) {
			return fmt.Errorf("could not reach arXiv: %w", scrapeErr)
		}
		return scrapeErr
	}

	previewCap := cfg.GetPreviewCap()
	report.PrintHeader(rs)
	report.PrintResultsTable(rs.Preview(previewCap))
	if rs.Len() > previewCap {
		fmt.Fprintf(cmd.OutOrStdout(), "Showing %d of %s entries\n\n", previewCap, humanize.Comma(int64(rs.Len())))
	}

	if format == formatNone || rs.Len() == 0 {
		return nil
	}

	dir := flagOut
	if dir == "" {
		dir = cfg.Export.Dir
	}
	path := exportPath(format, rs.Query, dir, cfg.Export.CSVFilename, time.Now())
	if _, err := os.Stat(path); err == nil && interactive && !flagYes {
		ok, err := ui.ConfirmOverwrite(path)
		if err != nil {
			return err
		}
		if !ok {
			report.PrintError("Export skipped")
			return nil
		}
	}

	switch format {
	case formatMarkdown:
		path, err = export.SaveMarkdown(rs, dir)
	default:
		path, err = export.SaveCSV(rs, dir, cfg.Export.CSVFilename)
	}
	if err != nil {
		return err
	}

	logger.Info("Exported results", "format", format, "path", path, "entries", rs.Len())
	report.PrintSuccess(fmt.Sprintf("Saved %s entries to %s", humanize.Comma(int64(rs.Len())), path))
	return nil
}

func parseFormat(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", formatCSV:
		return formatCSV, nil
	case formatMarkdown, "markdown":
		return formatMarkdown, nil
	case formatNone:
		return formatNone, nil
	default:
		return "", fmt.Errorf("unknown format %q (want csv, md or none)", s)
	}
}

// exportPath predicts where an export of the given format will be written
func exportPath(format string, q models.Query, dir, csvFilename string, now time.Time) string {
	name := csvFilename
	if name == "" {
		name = export.DefaultCSVFilename
	}
	if format == formatMarkdown {
		name = export.MarkdownFilename(q, now)
	}
	if dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}

func isTerminal() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
}
