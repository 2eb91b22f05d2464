package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/TimelordUK/mview/internal/config"
	"github.com/TimelordUK/mview/internal/export"
	"github.com/TimelordUK/mview/internal/merge"
	"github.com/TimelordUK/mview/internal/render"
	"github.com/TimelordUK/mview/internal/search"
	"github.com/TimelordUK/mview/internal/source"
	"github.com/TimelordUK/mview/internal/view"
	"github.com/TimelordUK/mview/pkg/logformat"
)

// Mode represents the current UI mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeSearch
	ModeFilter
	ModeGoto
	ModeExport
)

type tickMsg time.Time

type matchesMsg []search.Match

// Model is the main application model: one merged view over every
// attached file.
type Model struct {
	viewport *view.Viewport
	index    *merge.Index
	sources  []*source.FileSource
	grepper  *search.Grepper
	history  *merge.LocationHistory
	cfg      *config.Config
	input    textinput.Model

	mode   Mode
	width  int
	height int

	following  bool
	markedOnly bool
	minLevel   source.LogLevel
	pollEvery  time.Duration

	// Search state
	searchTerm string
	searchedTo int    // view positions handed to the grepper so far
	viewGen    uint64 // last view generation the search covered

	// Transient status message
	notice string
}

// NewModel creates the application model over a set of log files
func NewModel(paths []string, cfg *config.Config) (*Model, error) {
	parser := logformat.NewTimestampParser()
	detector := logformat.NewLevelDetector(cfg.LogLevels.LevelPatterns())
	ann := source.Annotation{
		Timestamp:    parser.ParseMillis,
		Level:        detector.Detect,
		Continuation: parser.IsContinuation,
	}

	idx := merge.NewIndex()
	srcs := make([]*source.FileSource, 0, len(paths))
	for _, p := range paths {
		src, err := source.NewFileSource(p, ann)
		if err != nil {
			for _, s := range srcs {
				s.Close()
			}
			return nil, err
		}
		srcs = append(srcs, src)
		idx.Attach(src)
	}

	// Saved filters from config
	for _, fc := range cfg.Filters {
		flt, err := merge.NewRegexFilter(fc.Pattern)
		if err != nil {
			continue
		}
		kind := merge.Include
		if fc.Kind == "out" {
			kind = merge.Exclude
		}
		if i, err := idx.Filters().Add(flt, kind); err == nil {
			idx.Filters().SetEnabled(i, fc.Enabled)
		}
	}

	idx.RebuildIndex()

	vp := view.NewViewport(80, 24)
	vp.SetProvider(idx.Provider())
	vp.SetShowLineNumbers(cfg.Display.ShowLineNumbers)
	vp.SetSourceNames(cfg.Display.ShowSourceNames && len(paths) > 1, idx.FilenameWidth())
	vp.SetRenderer(pickRenderer(paths, cfg))

	m := &Model{
		viewport:  vp,
		index:     idx,
		sources:   srcs,
		history:   merge.NewLocationHistory(idx.FindFromContent),
		cfg:       cfg,
		mode:      ModeNormal,
		pollEvery: time.Duration(cfg.Poll.IntervalMs) * time.Millisecond,
		viewGen:   idx.ViewGeneration(),
	}

	vp.SetMarkFunc(m.gutterMark)

	m.grepper = search.NewGrepper(func(viewPos int) (merge.ContentID, []byte, bool) {
		id, ok := idx.At(viewPos)
		if !ok {
			return 0, nil, false
		}
		line, err := idx.ResolveLine(id)
		if err != nil {
			return 0, nil, false
		}
		return id, line.Content, true
	})

	ti := textinput.New()
	ti.Placeholder = "Search..."
	ti.CharLimit = 256
	m.input = ti

	return m, nil
}

// ModelOptions bundles startup options
type ModelOptions struct {
	Paths    []string
	GotoTime string
	Follow   bool
}

// NewModelWithOptions creates a model and applies startup options
func NewModelWithOptions(opts ModelOptions, cfg *config.Config) (*Model, error) {
	m, err := NewModel(opts.Paths, cfg)
	if err != nil {
		return nil, err
	}
	if opts.Follow {
		m.following = true
		m.viewport.GotoBottom()
	}
	if opts.GotoTime != "" {
		m.gotoTime(opts.GotoTime)
	}
	return m, nil
}

// Index exposes the merge index for non-interactive use
func (m *Model) Index() *merge.Index {
	return m.index
}

// pickRenderer falls back to syntax highlighting when a single non-log
// file is opened, otherwise colors by log level
func pickRenderer(paths []string, cfg *config.Config) render.Renderer {
	if len(paths) == 1 && render.IsSyntaxHighlightable(paths[0]) {
		return render.NewSyntaxRenderer(paths[0])
	}
	return render.NewLogLevelRenderer(cfg)
}

// gutterMark picks the marker glyph for a view position
func (m *Model) gutterMark(viewPos int) (rune, bool) {
	marks := m.index.Marks()
	switch {
	case marks.User.Contains(viewPos):
		return '>', true
	case marks.Search.Contains(viewPos):
		return '*', true
	case marks.Errors.Contains(viewPos):
		return '!', true
	case marks.Warnings.Contains(viewPos):
		return '~', true
	}
	return 0, false
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.waitForMatches())
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.pollEvery, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForMatches blocks on the grepper's result channel
func (m *Model) waitForMatches() tea.Cmd {
	return func() tea.Msg {
		batch, ok := <-m.grepper.Results()
		if !ok {
			return nil
		}
		return matchesMsg(batch)
	}
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// Reserve 2 lines for status bar and help
		m.viewport.SetSize(msg.Width, msg.Height-2)
		return m, nil

	case tickMsg:
		m.poll()
		return m, m.tick()

	case matchesMsg:
		hits := make([]merge.SearchHit, len(msg))
		for i, match := range msg {
			hits[i] = merge.SearchHit{ID: match.ID, Start: match.Start, End: match.End}
		}
		m.index.AddSearchHits(hits)
		m.index.UpdateMarks()
		return m, m.waitForMatches()
	}

	return m, nil
}

// poll drives the incremental rebuild and keeps search results current
func (m *Model) poll() {
	atBottom := m.viewport.AtBottom()

	res := m.index.RebuildIndex()
	m.viewport.SetSourceNames(m.cfg.Display.ShowSourceNames && len(m.sources) > 1, m.index.FilenameWidth())

	switch res {
	case merge.NoChange:
		return

	case merge.FullRebuild:
		m.restartSearch()
		m.index.UpdateMarks()

	case merge.AppendedLines:
		if m.index.ViewGeneration() != m.viewGen {
			// The pass regrew the whole view: earlier positions may
			// have been hidden or revealed, so the tail-only scan
			// would miss them
			m.restartSearch()
			m.index.UpdateMarks()
		} else if m.searchTerm != "" && m.index.ViewCount() > m.searchedTo {
			from := m.searchedTo
			m.searchedTo = m.index.ViewCount()
			m.grepper.SearchNewData(m.searchTerm, from, m.searchedTo)
		}
	}

	if m.following && atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.mode != ModeNormal {
		return m.handlePromptKey(msg)
	}

	m.notice = ""
	kb := &m.cfg.Keybindings

	key := msg.String()
	switch {
	case matchKey(key, kb.Quit):
		m.grepper.Stop()
		return m, tea.Quit

	case matchKey(key, kb.ScrollDown):
		m.viewport.ScrollDown(1)
	case matchKey(key, kb.ScrollUp):
		m.viewport.ScrollUp(1)
	case matchKey(key, kb.PageDown):
		m.viewport.PageDown()
	case matchKey(key, kb.PageUp):
		m.viewport.PageUp()

	case matchKey(key, kb.Top):
		m.recordLocation()
		m.viewport.GotoTop()
	case matchKey(key, kb.Bottom):
		m.recordLocation()
		m.viewport.GotoBottom()

	case matchKey(key, kb.Search):
		return m.openPrompt(ModeSearch, "Search...")

	case matchKey(key, kb.Filter):
		return m.openPrompt(ModeFilter, "Filter regex (prefix ! to hide matches)...")

	case matchKey(key, kb.NextMatch):
		m.gotoMark(m.index.Marks().Search.Next(m.viewport.CurrentLine()))
	case matchKey(key, kb.PrevMatch):
		m.gotoMark(m.index.Marks().Search.Prev(m.viewport.CurrentLine()))

	case matchKey(key, kb.Mark):
		m.toggleMark()

	case matchKey(key, kb.Back):
		if pos, ok := m.history.Back(m.viewport.CurrentLine()); ok {
			m.viewport.GotoLine(pos)
		}
	case matchKey(key, kb.Forward):
		if pos, ok := m.history.Forward(m.viewport.CurrentLine()); ok {
			m.viewport.GotoLine(pos)
		}

	case key == "e":
		m.gotoMark(m.index.Marks().Errors.Next(m.viewport.CurrentLine()))
	case key == "E":
		m.gotoMark(m.index.Marks().Errors.Prev(m.viewport.CurrentLine()))
	case key == "w":
		m.gotoMark(m.index.Marks().Warnings.Next(m.viewport.CurrentLine()))
	case key == "W":
		m.gotoMark(m.index.Marks().Warnings.Prev(m.viewport.CurrentLine()))
	case key == "]":
		m.gotoMark(m.index.Marks().Files.Next(m.viewport.CurrentLine()))
	case key == "[":
		m.gotoMark(m.index.Marks().Files.Prev(m.viewport.CurrentLine()))
	case key == "u":
		m.gotoMark(m.index.Marks().User.Next(m.viewport.CurrentLine()))
	case key == "U":
		m.gotoMark(m.index.Marks().User.Prev(m.viewport.CurrentLine()))

	case key == "M":
		m.toggleMarkedOnly()

	case key == "L":
		m.cycleMinLevel()

	case key == "D":
		m.dropLastFilter()

	case key == "t":
		return m.openPrompt(ModeGoto, "Time (15:04:05 or 2006-01-02 15:04:05)...")

	case key == "x":
		return m.openPrompt(ModeExport, "Export to file...")

	case key == "ctrl+f":
		m.following = !m.following
		if m.following {
			m.viewport.GotoBottom()
		}

	case key == "l":
		m.cfg.Display.ShowLineNumbers = !m.cfg.Display.ShowLineNumbers
		m.viewport.SetShowLineNumbers(m.cfg.Display.ShowLineNumbers)
	}

	return m, nil
}

func matchKey(key string, bindings []string) bool {
	for _, b := range bindings {
		if key == b {
			return true
		}
	}
	return false
}

func (m *Model) openPrompt(mode Mode, placeholder string) (tea.Model, tea.Cmd) {
	m.mode = mode
	m.input.SetValue("")
	m.input.Placeholder = placeholder
	m.input.Focus()
	return m, textinput.Blink
}

func (m *Model) closePrompt() {
	m.mode = ModeNormal
	m.input.Blur()
}

func (m *Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		value := m.input.Value()
		mode := m.mode
		m.closePrompt()
		switch mode {
		case ModeSearch:
			m.startSearch(value)
		case ModeFilter:
			m.addFilter(value)
		case ModeGoto:
			m.gotoTime(value)
		case ModeExport:
			m.exportView(value)
		}
		return m, nil

	case "esc":
		m.closePrompt()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// startSearch launches (or clears) a background regex search
func (m *Model) startSearch(term string) {
	m.searchTerm = term
	m.index.ClearSearchHits()
	m.index.UpdateMarks()
	if term == "" {
		m.grepper.Stop()
		return
	}
	m.viewGen = m.index.ViewGeneration()
	m.searchedTo = m.index.ViewCount()
	if err := m.grepper.Start(term, m.searchedTo); err != nil {
		m.notice = err.Error()
		m.searchTerm = ""
	}
}

// addFilter installs a regex filter; a leading ! makes it an out-filter
func (m *Model) addFilter(value string) {
	if value == "" {
		return
	}
	kind := merge.Include
	if strings.HasPrefix(value, "!") {
		kind = merge.Exclude
		value = value[1:]
	}
	flt, err := merge.NewRegexFilter(value)
	if err != nil {
		m.notice = err.Error()
		return
	}
	if _, err := m.index.Filters().Add(flt, kind); err != nil {
		m.notice = err.Error()
		return
	}
	m.index.FiltersChanged()
	m.viewport.GotoLine(m.viewport.CurrentLine())
	m.restartSearch()
}

// dropLastFilter removes the most recently added filter
func (m *Model) dropLastFilter() {
	fs := m.index.Filters()
	for i := merge.MaxFilters - 1; i >= 0; i-- {
		flt := fs.Get(i)
		if flt == nil {
			continue
		}
		label := "in"
		if fs.Kind(i) == merge.Exclude {
			label = "out"
		}
		if rf, ok := flt.(*merge.RegexFilter); ok {
			m.notice = fmt.Sprintf("dropped %s-filter /%s/", label, rf.Pattern())
		} else {
			m.notice = "dropped " + label + "-filter"
		}
		m.index.RemoveFilter(i)
		m.restartSearch()
		return
	}
}

// restartSearch drops stale hits and rescans the whole visible view,
// catching the search state up to the current view generation
func (m *Model) restartSearch() {
	m.viewGen = m.index.ViewGeneration()
	if m.searchTerm == "" {
		return
	}
	m.index.ClearSearchHits()
	m.searchedTo = m.index.ViewCount()
	m.grepper.Start(m.searchTerm, m.searchedTo)
}

func (m *Model) toggleMark() {
	id, ok := m.index.At(m.viewport.CurrentLine())
	if !ok {
		return
	}
	m.index.ToggleUserMark(id)
	m.index.UpdateMarks()
}

func (m *Model) toggleMarkedOnly() {
	if !m.markedOnly && len(m.index.UserMarks()) == 0 {
		m.notice = "no marked lines"
		return
	}
	m.markedOnly = !m.markedOnly
	m.index.SetMarkedOnly(m.markedOnly)
	m.index.FiltersChanged()
	m.viewport.GotoTop()
	m.restartSearch()
}

func (m *Model) cycleMinLevel() {
	m.minLevel++
	if m.minLevel > source.LevelError {
		m.minLevel = source.LevelUnknown
	}
	m.index.SetMinLevel(m.minLevel)
	m.index.FiltersChanged()
	m.viewport.GotoLine(m.viewport.CurrentLine())
	m.restartSearch()
}

func (m *Model) gotoTime(value string) {
	target := parseTimeInput(value, m.firstTimestamp())
	if target == nil {
		m.notice = "unparseable time: " + value
		return
	}
	pos, ok := m.index.FindFromTime(*target)
	if !ok {
		m.notice = "no lines at or after " + value
		return
	}
	m.recordLocation()
	m.viewport.GotoLine(pos)
	m.viewport.SetHighlightedLine(pos)
}

func (m *Model) exportView(path string) {
	if path == "" {
		return
	}
	err := export.WriteView(m.index, path, export.Options{
		Prefix: len(m.sources) > 1,
		Start:  0,
		End:    -1,
	})
	if err != nil {
		m.notice = err.Error()
		return
	}
	m.notice = fmt.Sprintf("wrote %d lines to %s", m.index.ViewCount(), path)
}

// gotoMark jumps to a bookmark position, recording the departure point
func (m *Model) gotoMark(pos int) {
	if pos < 0 {
		return
	}
	m.recordLocation()
	m.viewport.GotoLine(pos)
	m.viewport.SetHighlightedLine(pos)
}

// recordLocation pushes the current top line into the jump history
func (m *Model) recordLocation() {
	if id, ok := m.index.At(m.viewport.CurrentLine()); ok {
		m.history.Append(id)
	}
}

func (m *Model) firstTimestamp() *time.Time {
	line, err := m.index.LineAt(0)
	if err != nil {
		return nil
	}
	return line.Timestamp
}

// parseTimeInput parses user time input; bare clock times borrow their
// date from the first visible line
func parseTimeInput(input string, first *time.Time) *time.Time {
	layouts := []string{
		"15:04:05",
		"15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02T15:04:05",
	}

	for _, layout := range layouts {
		t, err := time.Parse(layout, input)
		if err != nil {
			continue
		}
		if layout == "15:04:05" || layout == "15:04" {
			if first != nil {
				t = time.Date(first.Year(), first.Month(), first.Day(),
					t.Hour(), t.Minute(), t.Second(), 0, first.Location())
			} else {
				now := time.Now()
				t = time.Date(now.Year(), now.Month(), now.Day(),
					t.Hour(), t.Minute(), t.Second(), 0, time.Local)
			}
		}
		return &t
	}

	return nil
}

// View implements tea.Model
func (m *Model) View() string {
	var builder strings.Builder

	builder.WriteString(m.viewport.Render())
	builder.WriteString("\n")

	statusStyle := lipgloss.NewStyle().
		Background(lipgloss.Color(m.cfg.Theme.StatusBar)).
		Foreground(lipgloss.Color(m.cfg.Theme.StatusBarText)).
		Width(m.width)

	var status string
	switch m.mode {
	case ModeSearch:
		status = "/" + m.input.View()
	case ModeFilter:
		status = "F " + m.input.View()
	case ModeGoto:
		status = "@ " + m.input.View()
	case ModeExport:
		status = "> " + m.input.View()
	default:
		status = m.statusLine()
	}

	builder.WriteString(statusStyle.Render(status))
	builder.WriteString("\n")

	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	help := "j/k:scroll  /:search  F:filter  m:mark  e/w:errors/warnings  t:time  ctrl+f:follow  q:quit"
	if m.notice != "" {
		help = m.notice
	}
	builder.WriteString(helpStyle.Render(help))

	return builder.String()
}

// statusLine builds the normal-mode status bar
func (m *Model) statusLine() string {
	names := make([]string, len(m.sources))
	for i, src := range m.sources {
		names[i] = filepath.Base(src.Path())
	}

	lineInfo := fmt.Sprintf("L%d/%d", m.viewport.CurrentLine()+1, m.index.ViewCount())
	if hidden := m.index.MergedCount() - m.index.ViewCount(); hidden > 0 {
		lineInfo += fmt.Sprintf(" (%d hidden)", hidden)
	}

	percent := fmt.Sprintf("%.0f%%", m.viewport.PercentScrolled())

	accel := ""
	switch m.index.LineAccelDirection(m.viewport.CurrentLine()) {
	case merge.Accelerating:
		accel = " >>"
	case merge.Decelerating:
		accel = " <<"
	}

	flags := ""
	if m.following {
		flags += " [follow]"
	}
	if n := m.index.Filters().Len(); n > 0 {
		flags += fmt.Sprintf(" [%d filters]", n)
	}
	if m.markedOnly {
		flags += " [marked]"
	}
	if m.minLevel > source.LevelUnknown {
		flags += fmt.Sprintf(" [level>=%d]", m.minLevel)
	}
	if m.searchTerm != "" {
		flags += fmt.Sprintf(" [/%s: %d]", m.searchTerm, len(m.index.Marks().Search))
	}

	return fmt.Sprintf(" %s  %s  %s%s%s",
		strings.Join(names, ","), lineInfo, percent, accel, flags)
}

// Close cleans up resources
func (m *Model) Close() error {
	m.grepper.Stop()
	var first error
	for _, src := range m.sources {
		if err := src.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
