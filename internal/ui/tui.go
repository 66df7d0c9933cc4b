package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/stopwatch"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"github.com/thesavant42/arxived/internal/browser"
	"github.com/thesavant42/arxived/internal/controller"
	"github.com/thesavant42/arxived/internal/db"
	"github.com/thesavant42/arxived/internal/export"
	"github.com/thesavant42/arxived/internal/models"
	"github.com/thesavant42/arxived/internal/scraper"
)

var discardLogger = log.New(io.Discard)

type viewMode int

const (
	viewForm     viewMode = iota // Query form
	viewScraping                 // Scrape in progress
	viewResults                  // Results table
	viewFilter                   // Filter input over the results table
	viewDetail                   // Single record
)

// Messages

type submitDefaultMsg struct{}

type scrapeProgressMsg struct {
	gen      uint64
	progress scraper.Progress
}

type scrapeDoneMsg struct {
	outcome controller.Outcome
}

type recordsLoadedMsg struct {
	records []models.Record
	total   int // records matching the filter
	stored  int // all records in the session store
	query   db.StoredQuery
	err     error
}

type exportDoneMsg struct {
	kind string
	path string
	err  error
}

// Options configure the TUI
type Options struct {
	Controller   *controller.Controller
	Store        *db.DB
	Logger       *log.Logger
	MaxLimit     int
	PreviewCap   int
	DefaultQuery QueryInput
	AutoSearch   bool
	ExportDir    string
	CSVFilename  string
}

// programSender forwards messages from scrape goroutines into the running program
type programSender struct {
	mu sync.Mutex
	p  *tea.Program
}

func (s *programSender) attach(p *tea.Program) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p = p
}

func (s *programSender) Send(msg tea.Msg) {
	s.mu.Lock()
	p := s.p
	s.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// AppModel is the arxived TUI
type AppModel struct {
	PageState

	ctx    context.Context
	opts   Options
	sender *programSender

	form      QueryForm
	table     table.Model
	filter    textinput.Model
	spinner   spinner.Model
	stopwatch stopwatch.Model

	mode     viewMode
	prevMode viewMode // where the form returns to on esc

	gen         uint64
	query       models.Query
	results     models.ResultSet
	progress    scraper.Progress
	hasProgress bool

	rows       []models.Record // records shown in the table
	total      int             // stored records matching the filter
	stored     int             // stored records, exported by e and m
	storedAt   time.Time
	filterText string
	detail     *models.Record

	err     error
	openURL func(string) error
}

// NewAppModel creates the TUI model. ctx bounds every scrape it starts.
func NewAppModel(ctx context.Context, opts Options) AppModel {
	if opts.PreviewCap <= 0 {
		opts.PreviewCap = 20
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = models.MaxResultLimit
	}

	layout := DefaultLayout()

	form := NewQueryForm(opts.MaxLimit)
	d := opts.DefaultQuery
	form.SetValues(d.Topic, d.Limit, d.Start, d.End)

	fi := textinput.New()
	fi.Placeholder = "Filter by title, author or abstract..."
	fi.CharLimit = 200
	fi.TextStyle = NormalStyle
	fi.PromptStyle = NormalStyle

	return AppModel{
		PageState: NewPageState(),
		ctx:       ctx,
		opts:      opts,
		sender:    &programSender{},
		form:      form,
		table:     InitTable(RecordTableColumns(layout), nil, layout),
		filter:    fi,
		spinner:   NewAppSpinner(),
		stopwatch: stopwatch.NewWithInterval(100 * time.Millisecond),
		mode:      viewForm,
		openURL:   browser.Open,
	}
}

// Init implements tea.Model
func (m AppModel) Init() tea.Cmd {
	cmds := []tea.Cmd{StandardInit(), textinput.Blink, m.spinner.Tick}
	if m.opts.AutoSearch {
		cmds = append(cmds, func() tea.Msg { return submitDefaultMsg{} })
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	m.ClearExpiredStatus(time.Now())

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if m.Resize(msg) {
			m.form.SetWidth(m.Layout.InnerWidth)
			m.filter.Width = m.Layout.InnerWidth - 12
			m.table.SetHeight(m.Layout.TableHeight)
			m.table.SetColumns(RecordTableColumns(m.Layout))
			m.updateTable()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case stopwatch.TickMsg, stopwatch.StartStopMsg, stopwatch.ResetMsg:
		var cmd tea.Cmd
		m.stopwatch, cmd = m.stopwatch.Update(msg)
		return m, cmd

	case submitDefaultMsg:
		return m.submit()

	case scrapeProgressMsg:
		if msg.gen == m.gen {
			m.progress = msg.progress
			m.hasProgress = true
		}
		return m, nil

	case scrapeDoneMsg:
		return m.handleScrapeDone(msg.outcome)

	case recordsLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.rows = msg.records
		m.total = msg.total
		m.stored = msg.stored
		m.query = msg.query.Query
		m.storedAt = msg.query.StoredAt
		m.updateTable()
		m.showResults()
		return m, nil

	case exportDoneMsg:
		if msg.err != nil {
			m.NotifyError(msg.kind+" export", msg.err)
			m.log().Error("Export failed", "kind", msg.kind, "error", msg.err)
		} else {
			m.Notify(fmt.Sprintf("Exported %s entries to %s", humanize.Comma(int64(m.results.Len())), msg.path))
			m.log().Info("Exported results", "kind", msg.kind, "path", msg.path)
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.opts.Controller.Cancel()
			return m, m.Quit()
		}
		return m.handleKeyMsg(msg)
	}

	// Cursor blinks and other input internals
	var cmd tea.Cmd
	switch m.mode {
	case viewForm:
		m.form, cmd = m.form.Update(msg)
	case viewFilter:
		m.filter, cmd = m.filter.Update(msg)
	}
	return m, cmd
}

// showResults switches to the results once a scrape settles, unless the user
// has moved on to the form, in which case esc will lead there
func (m *AppModel) showResults() {
	switch {
	case m.mode == viewScraping:
		m.mode = viewResults
	case m.mode == viewForm && m.prevMode == viewScraping:
		m.prevMode = viewResults
	}
}

func (m AppModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case viewForm:
		return m.handleFormKeys(msg)
	case viewScraping:
		return m.handleScrapingKeys(msg)
	case viewResults:
		return m.handleResultsKeys(msg)
	case viewFilter:
		return m.handleFilterKeys(msg)
	case viewDetail:
		return m.handleDetailKeys(msg)
	default:
		return m, nil
	}
}

func (m AppModel) handleFormKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		return m.submit()

	case "esc":
		// Back to whatever was on screen before the form
		if m.prevMode != viewForm {
			m.mode = m.prevMode
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.form, cmd = m.form.Update(msg)
	return m, cmd
}

func (m AppModel) handleScrapingKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		m.opts.Controller.Cancel()
		return m, m.Quit()

	case "n":
		// The running scrape continues until a new query is submitted
		return m.openForm()

	case "esc":
		m.opts.Controller.Cancel()
		m.gen = m.opts.Controller.Generation()
		m.Notify("Scrape cancelled")
		m.mode = viewForm
		m.prevMode = viewForm
		return m, m.stopwatch.Stop()
	}
	return m, nil
}

func (m AppModel) handleResultsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if IsQuitKey(msg.String()) {
		return m, m.Quit()
	}

	switch msg.String() {
	case "enter":
		if r, ok := m.selected(); ok {
			m.detail = &r
			m.mode = viewDetail
		}
		return m, nil

	case "o":
		if r, ok := m.selected(); ok {
			m.open(r)
		}
		return m, nil

	case "e":
		return m, m.exportCSV()

	case "m":
		return m, m.exportMarkdown()

	case "/":
		m.mode = viewFilter
		m.filter.SetValue(m.filterText)
		m.filter.Focus()
		return m, textinput.Blink

	case "c":
		if m.filterText != "" {
			m.filterText = ""
			m.Notify("Filter cleared")
			return m, m.loadRecords()
		}
		return m, nil

	case "n":
		return m.openForm()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m AppModel) handleFilterKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.filterText = strings.TrimSpace(sanitizeInput(m.filter.Value()))
		m.filter.Blur()
		m.mode = viewResults
		return m, m.loadRecords()

	case "esc":
		m.filter.Blur()
		m.mode = viewResults
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	return m, cmd
}

func (m AppModel) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "backspace", "enter":
		m.detail = nil
		m.mode = viewResults
		return m, nil

	case "o":
		if m.detail != nil {
			m.open(*m.detail)
		}
		return m, nil

	case "q":
		return m, m.Quit()
	}
	return m, nil
}

// openForm shows an empty query form, remembering where esc returns to
func (m AppModel) openForm() (tea.Model, tea.Cmd) {
	m.prevMode = m.mode
	m.mode = viewForm
	return m, m.form.Reset()
}

// submit validates the form and starts a scrape, superseding any running one
func (m AppModel) submit() (tea.Model, tea.Cmd) {
	q, err := m.form.Query()
	if err != nil {
		m.mode = viewForm
		return m, nil
	}

	sender := m.sender
	run := m.opts.Controller.SubmitWith(m.ctx, q, func(ctx context.Context, gen uint64) context.Context {
		return scraper.ContextWithProgress(ctx, func(p scraper.Progress) {
			sender.Send(scrapeProgressMsg{gen: gen, progress: p})
		})
	})

	m.gen = m.opts.Controller.Generation()
	m.query = q
	m.results = models.ResultSet{Query: q}
	m.progress = scraper.Progress{}
	m.hasProgress = false
	m.rows = nil
	m.total = 0
	m.stored = 0
	m.storedAt = time.Time{}
	m.filterText = ""
	m.detail = nil
	m.err = nil
	m.mode = viewScraping
	m.prevMode = viewScraping
	m.form.Reset()
	m.updateTable()

	m.log().Info("Scraping", "query", q.String())

	cmds := []tea.Cmd{
		m.stopwatch.Reset(),
		m.spinner.Tick,
		func() tea.Msg { return scrapeDoneMsg{outcome: run()} },
	}
	if !m.stopwatch.Running() {
		cmds = append(cmds, m.stopwatch.Start())
	}
	return m, tea.Batch(cmds...)
}

func (m AppModel) handleScrapeDone(out controller.Outcome) (tea.Model, tea.Cmd) {
	if out.Stale || out.Generation != m.gen {
		return m, nil
	}

	stop := m.stopwatch.Stop()
	if out.Err != nil {
		if errors.Is(out.Err, context.Canceled) {
			return m, stop
		}
		m.err = out.Err
		m.log().Error("Scrape failed", "query", m.query.String(), "error", out.Err)
		m.showResults()
		return m, stop
	}

	m.results = out.Results
	if err := m.opts.Store.ReplaceResults(out.Results); err != nil {
		m.err = fmt.Errorf("failed to store results: %w", err)
		m.showResults()
		return m, stop
	}
	return m, tea.Batch(stop, m.loadRecords())
}

// loadRecords reads the preview page and the query it belongs to from the
// session store
func (m AppModel) loadRecords() tea.Cmd {
	store := m.opts.Store
	filter := db.Filter{SearchText: m.filterText, Limit: m.opts.PreviewCap}
	return func() tea.Msg {
		records, total, err := store.GetRecordsFiltered(filter)
		if err != nil {
			return recordsLoadedMsg{err: err}
		}
		stored, err := store.Count()
		if err != nil {
			return recordsLoadedMsg{err: err}
		}
		sq, ok, err := store.CurrentQuery()
		if err != nil {
			return recordsLoadedMsg{err: err}
		}
		if !ok {
			return recordsLoadedMsg{err: errors.New("no results stored")}
		}
		return recordsLoadedMsg{records: records, total: total, stored: stored, query: sq}
	}
}

func (m AppModel) exportCSV() tea.Cmd {
	rs, dir, name := m.results, m.opts.ExportDir, m.opts.CSVFilename
	if rs.Len() == 0 {
		return nil
	}
	return func() tea.Msg {
		path, err := export.SaveCSV(rs, dir, name)
		return exportDoneMsg{kind: "CSV", path: path, err: err}
	}
}

func (m AppModel) exportMarkdown() tea.Cmd {
	rs, dir := m.results, m.opts.ExportDir
	if rs.Len() == 0 {
		return nil
	}
	return func() tea.Msg {
		path, err := export.SaveMarkdown(rs, dir)
		return exportDoneMsg{kind: "Markdown", path: path, err: err}
	}
}

func (m *AppModel) open(r models.Record) {
	if r.Link == "" {
		m.Notify("No link for this entry")
		return
	}
	if err := m.openURL(r.Link); err != nil {
		m.Notify(fmt.Sprintf("Could not open link: %v", err))
		return
	}
	m.Notify("Opened "+r.Link)
}

func (m AppModel) selected() (models.Record, bool) {
	cursor := m.table.Cursor()
	if cursor < 0 || cursor >= len(m.rows) {
		return models.Record{}, false
	}
	return m.rows[cursor], true
}

func (m *AppModel) updateTable() {
	columns := m.table.Columns()
	titleW, authorsW := columns[1].Width, columns[2].Width

	rows := make([]table.Row, len(m.rows))
	for i, r := range m.rows {
		rows[i] = table.Row{
			fmt.Sprintf("%d", i+1),
			truncateToWidth(r.Title, titleW),
			truncateToWidth(r.AuthorList(), authorsW),
			r.PublishedString(),
		}
	}
	m.table.SetRows(rows)
	if m.table.Cursor() >= len(rows) {
		m.table.GotoTop()
	}
}

func (m AppModel) log() *log.Logger {
	if m.opts.Logger != nil {
		return m.opts.Logger
	}
	return discardLogger
}

// View implements tea.Model
func (m AppModel) View() string {
	if m.Quitting {
		return ""
	}

	switch m.mode {
	case viewForm:
		return m.renderForm()
	case viewScraping:
		return m.renderScraping()
	case viewDetail:
		return m.renderDetail()
	default:
		return m.renderResults()
	}
}

func (m AppModel) renderForm() string {
	help := "Tab/↑/↓: next field | Enter: scrape arXiv | Ctrl+C: quit"
	if m.prevMode != viewForm {
		help = "Tab/↑/↓: next field | Enter: scrape arXiv | Esc: back | Ctrl+C: quit"
	}
	return NewPageView(m.Layout).
		Header("arXived").
		DimText("Scrape arXiv for papers on a topic, optionally within a date range").
		Spacing(1).
		CustomContent(m.form.View()).
		Status(m.StatusMsg).
		Help(help).
		Build()
}

func (m AppModel) renderScraping() string {
	var b strings.Builder
	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(AccentStyle.Render("Scraping " + m.query.String()))
	b.WriteString("\n\n")
	b.WriteString(NormalStyle.Render(" If you chose a date range in the distant past, this may take several minutes..."))
	b.WriteString("\n")
	b.WriteString(NormalStyle.Render(" Try recent date ranges or omitting the range altogether for faster, more reliable queries."))
	b.WriteString("\n\n")
	if m.hasProgress {
		b.WriteString(ProgressStyle.Render(" " + ProgressLine(m.progress)))
		b.WriteString("\n\n")
	}
	b.WriteString(DimStyle.Render(" Elapsed: "))
	b.WriteString(NormalStyle.Render(m.stopwatch.View()))
	b.WriteString("\n")

	return NewPageView(m.Layout).
		Header("Scraping information...").
		Spacing(1).
		CustomContent(b.String()).
		Status(m.StatusMsg).
		Help("n: new query | Esc: cancel | q: quit").
		Build()
}

func (m AppModel) renderResults() string {
	view := NewPageView(m.Layout).
		Header(fmt.Sprintf("Top matches for %q", m.query.Topic))

	if m.err != nil {
		return view.
			Error(m.err).
			Status(m.StatusMsg).
			Help("n: new query | q: quit").
			Build()
	}

	view.Summary(ResultsSummary{
		Query:    m.query,
		Shown:    len(m.rows),
		Matching: m.total,
		Stored:   m.stored,
		Filter:   m.filterText,
		StoredAt: m.storedAt,
	})

	if m.results.Len() == 0 {
		view.Spacing(1).DimText(" No entries found. Try a broader topic or a more recent date range.")
	} else {
		view.Table(m.table)
	}

	if m.mode == viewFilter {
		view.Spacing(1).CustomContent(AccentStyle.Render(" Filter: ") + m.filter.View() + "\n")
	}

	help := "↑/↓: navigate | Enter: details | o: open | /: filter | c: clear | e: CSV | m: Markdown | n: new query | q: quit"
	if m.mode == viewFilter {
		help = "Enter: apply filter | Esc: cancel"
	}
	return view.Status(m.StatusMsg).Help(help).Build()
}

func (m AppModel) renderDetail() string {
	if m.detail == nil {
		return m.renderResults()
	}
	r := m.detail

	return NewPageView(m.Layout).
		Header(r.Title).
		Field("Authors", r.AuthorList()).
		Field("Published", r.PublishedString()).
		Field("Summary", r.Summary).
		Link("Link", r.Link).
		Status(m.StatusMsg).
		Help("o: open link | Esc: back | q: quit").
		Build()
}

// RunApp starts the TUI and blocks until it exits
func RunApp(ctx context.Context, opts Options) error {
	model := NewAppModel(ctx, opts)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	model.sender.attach(p)

	_, err := p.Run()
	opts.Controller.Cancel()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("tui error: %w", err)
	}
	return nil
}
