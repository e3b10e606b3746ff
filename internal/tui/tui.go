// Package tui provides a Bubble Tea terminal user interface for bookget.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/handiism/bookget/internal/config"
	"github.com/handiism/bookget/internal/handler"
	"github.com/handiism/bookget/internal/logger"
	"github.com/handiism/bookget/internal/model"
	dlprogress "github.com/handiism/bookget/internal/progress"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#C08552")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)

	bookStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8B500"))
)

// maxLogs is the number of log lines kept on screen.
const maxLogs = 10

var errCancelled = errors.New("cancelled by user")

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateInitializing
	StateDownloading
	StateComplete
	StateError
)

// LogEntry represents a log message in the UI.
type LogEntry struct {
	Message string
	Level   handler.ProgressLevel
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state     State
	textInput textinput.Model
	spinner   spinner.Model
	progress  progress.Model
	settings  *config.Settings
	logs      []LogEntry
	books     []string
	results   []*model.Result
	err       error

	// Download context
	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc

	runner  *handler.Runner
	urls    []string
	tracker *dlprogress.Tracker
	events  chan handler.ProgressEvent
	snap    dlprogress.Snapshot

	// Options
	skipOCR    bool
	skipImages bool
	archive    bool
	verbose    bool

	width  int
	height int
}

// NewModel creates a new TUI model. Downloads are cancelled with ctx.
func NewModel(ctx context.Context, settings *config.Settings) Model {
	ti := textinput.New()
	ti.Placeholder = "https://example.org/iiif/book/manifest"
	ti.Focus()
	ti.CharLimit = 2000
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#C08552"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	if settings == nil {
		settings = config.DefaultSettings()
	}

	m := Model{
		state:      StateInput,
		textInput:  ti,
		spinner:    sp,
		progress:   prog,
		settings:   settings,
		logs:       make([]LogEntry, 0),
		parent:     ctx,
		skipOCR:    settings.SkipOCR,
		skipImages: settings.SkipImages,
		archive:    settings.Archive,
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	return m
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Message types
type (
	// ProgressMsg carries one event from the runner.
	ProgressMsg struct {
		Event handler.ProgressEvent
	}

	// InitDoneMsg is sent once the manifests have been read.
	InitDoneMsg struct {
		Books  []string
		Runner *handler.Runner
		Err    error
	}

	// DownloadDoneMsg is sent when all books are finished.
	DownloadDoneMsg struct {
		Results []*model.Result
		Err     error
	}

	// TickMsg is for periodic progress updates.
	TickMsg struct{}
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = min(max(msg.Width-20, 20), 80)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			return m, tea.Quit

		case "esc":
			if m.state == StateInput {
				return m, tea.Quit
			}
			if m.state == StateDownloading || m.state == StateInitializing {
				m.cancel()
				m.state = StateError
				m.err = errCancelled
			}

		case "enter":
			if m.state == StateInput && strings.TrimSpace(m.textInput.Value()) != "" {
				m.urls = handler.ParseURLs(strings.Join(strings.Fields(m.textInput.Value()), "\n"))
				if len(m.urls) == 0 {
					m.state = StateError
					m.err = fmt.Errorf("no http(s) URL in %q", m.textInput.Value())
					return m, nil
				}
				m.state = StateInitializing
				m.events = make(chan handler.ProgressEvent, 256)
				m.tracker = dlprogress.NewTracker()
				return m, tea.Batch(m.initializeDownload(), m.spinner.Tick, waitForEvent(m.events))
			}

		case "alt+o":
			if m.state == StateInput {
				m.skipOCR = !m.skipOCR
			}
			return m, nil

		case "alt+i":
			if m.state == StateInput {
				m.skipImages = !m.skipImages
			}
			return m, nil

		case "alt+a":
			if m.state == StateInput {
				m.archive = !m.archive
			}
			return m, nil

		case "alt+v":
			if m.state == StateInput {
				m.verbose = !m.verbose
			}
			return m, nil

		case "q":
			if m.state == StateComplete || m.state == StateError {
				return m, tea.Quit
			}

		case "r":
			if m.state == StateComplete || m.state == StateError {
				m.reset()
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case ProgressMsg:
		cmds = append(cmds, waitForEvent(m.events))
		if msg.Event.Level == handler.LevelVerbose && !m.verbose {
			break
		}
		m.logs = append(m.logs, LogEntry{
			Message: msg.Event.Message,
			Level:   msg.Event.Level,
		})
		if len(m.logs) > maxLogs {
			m.logs = m.logs[len(m.logs)-maxLogs:]
		}

	case InitDoneMsg:
		if m.state != StateInitializing {
			break
		}
		if msg.Err != nil {
			m.state = StateError
			m.err = msg.Err
		} else {
			m.books = msg.Books
			m.runner = msg.Runner
			m.state = StateDownloading
			cmds = append(cmds, m.startDownload(), m.tickProgress())
		}

	case DownloadDoneMsg:
		if m.runner != nil {
			m.runner.Close()
			m.runner = nil
		}
		m.results = msg.Results
		if m.tracker != nil {
			m.snap = m.tracker.Snapshot()
		}
		switch {
		case m.ctx.Err() != nil:
			m.state = StateError
			m.err = errCancelled
		case msg.Err != nil:
			m.state = StateError
			m.err = msg.Err
		default:
			m.state = StateComplete
		}

	case TickMsg:
		if m.tracker != nil && m.state == StateDownloading {
			m.snap = m.tracker.Snapshot()
			cmds = append(cmds, m.progress.SetPercent(m.snap.Percent()), m.tickProgress())
		}

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	if m.state == StateInput {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) reset() {
	m.state = StateInput
	m.logs = nil
	m.books = nil
	m.results = nil
	m.err = nil
	m.urls = nil
	m.tracker = nil
	m.snap = dlprogress.Snapshot{}
	m.runner = nil
	m.ctx, m.cancel = context.WithCancel(m.parent)
	m.textInput.SetValue("")
	m.textInput.Focus()
}

// tickProgress returns a command to tick progress updates.
func (m Model) tickProgress() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// waitForEvent delivers the next runner event as a ProgressMsg.
func waitForEvent(ch <-chan handler.ProgressEvent) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		return ProgressMsg{Event: <-ch}
	}
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("bookget"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Download digitized books from IIIF manifests"))
	b.WriteString("\n\n")

	switch m.state {
	case StateInput:
		b.WriteString(m.viewInput())
	case StateInitializing:
		b.WriteString(m.viewInitializing())
	case StateDownloading:
		b.WriteString(m.viewDownloading())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.getHelpText()))

	return b.String()
}

func check(on bool) string {
	if on {
		return "[×]"
	}
	return "[ ]"
}

func (m Model) viewInput() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Enter manifest URL(s):"))
	b.WriteString("\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n\n")

	b.WriteString(infoStyle.Render("Options:"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s Skip OCR files (alt+o)\n", check(m.skipOCR)))
	b.WriteString(fmt.Sprintf("  %s Skip images (alt+i)\n", check(m.skipImages)))
	b.WriteString(fmt.Sprintf("  %s Create zip archive (alt+a)\n", check(m.archive)))
	b.WriteString(fmt.Sprintf("  %s Verbose output (alt+v)\n", check(m.verbose)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Download directory: %s", m.settings.DownloadDir)))
	b.WriteString("\n")

	return b.String()
}

func (m Model) viewInitializing() string {
	var b strings.Builder

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(subtitleStyle.Render("Reading manifests..."))
	b.WriteString("\n\n")
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewDownloading() string {
	var b strings.Builder

	if len(m.books) > 0 {
		b.WriteString(successStyle.Render(fmt.Sprintf("Found %d book(s):", len(m.books))))
		b.WriteString("\n")
		for _, book := range m.books {
			b.WriteString(bookStyle.Render("  • " + book))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(m.progress.ViewAs(m.snap.Percent()))
	b.WriteString("\n")

	status := fmt.Sprintf("Files: %d/%d | Downloaded: %s", m.snap.Done, m.snap.Total, humanize.Bytes(uint64(max(m.snap.Bytes, 0))))
	if m.snap.Skipped > 0 {
		status += fmt.Sprintf(" | Already present: %d", m.snap.Skipped)
	}
	if m.snap.Failed > 0 {
		status += fmt.Sprintf(" | Failed: %d", m.snap.Failed)
	}
	b.WriteString(infoStyle.Render(status))
	b.WriteString("\n\n")
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewComplete() string {
	succeeded := 0
	for _, r := range m.results {
		if r.Success {
			succeeded++
		}
	}

	summary := fmt.Sprintf(
		"Download Complete!\n\n"+
			"Books: %d/%d\n"+
			"Files: %d (%d already present)\n"+
			"Size: %s",
		succeeded, len(m.results),
		m.snap.Succeeded, m.snap.Skipped,
		humanize.Bytes(uint64(max(m.snap.Bytes, 0))),
	)
	if m.snap.Failed > 0 {
		summary += fmt.Sprintf("\nFailed: %d", m.snap.Failed)
	}
	for _, r := range m.results {
		if r.Success {
			summary += "\n\n" + r.Title + "\n" + r.SavePath
		} else {
			summary += "\n\n" + r.URL + "\n" + r.Error
		}
	}

	return boxStyle.Render(summary)
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("Error occurred:"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(fmt.Sprintf("  %s", m.err.Error()))
	}

	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, log := range m.logs {
		var style lipgloss.Style
		prefix := "•"
		switch log.Level {
		case handler.LevelError:
			style = errorStyle
			prefix = "✗"
		case handler.LevelWarning:
			style = warningStyle
			prefix = "!"
		case handler.LevelSuccess:
			style = successStyle
			prefix = "✓"
		case handler.LevelInfo:
			style = infoStyle
			prefix = "›"
		default:
			style = dimStyle
		}
		b.WriteString(style.Render(prefix + " " + log.Message))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) getHelpText() string {
	switch m.state {
	case StateInput:
		return "enter: start • alt+o: skip OCR • alt+i: skip images • alt+a: archive • alt+v: verbose • esc: quit"
	case StateInitializing, StateDownloading:
		return "esc: cancel"
	case StateComplete, StateError:
		return "r: new download • q: quit"
	}
	return ""
}

// settingsForRun applies the UI options to a copy of the settings.
func (m Model) settingsForRun() *config.Settings {
	s := *m.settings
	s.SkipOCR = m.skipOCR
	s.SkipImages = m.skipImages
	s.Archive = m.archive
	s.ShowProgress = false
	return &s
}

// initializeDownload builds the runner and reads every manifest once to
// list the books.
func (m Model) initializeDownload() tea.Cmd {
	settings := m.settingsForRun()
	ctx, urls, events, tracker := m.ctx, m.urls, m.events, m.tracker

	return func() tea.Msg {
		runner, err := handler.NewRunnerFromSettings(settings, func(e handler.ProgressEvent) {
			select {
			case events <- e:
			default:
			}
		})
		if err != nil {
			return InitDoneMsg{Err: err}
		}
		runner.WithObserver(tracker)

		var books []string
		for _, url := range urls {
			source, err := runner.Registry().Resolve(handler.AutoName, url)
			if err != nil {
				runner.Close()
				return InitDoneMsg{Err: err}
			}
			manifest, err := source.Load(ctx, url)
			if err != nil {
				if ctx.Err() != nil {
					runner.Close()
					return InitDoneMsg{Err: ctx.Err()}
				}
				books = append(books, fmt.Sprintf("%s (unreadable: %v)", url, err))
				continue
			}
			books = append(books, fmt.Sprintf("%s (%d pages)", manifest.Book.Title(), manifest.Book.TotalPages()))
		}

		return InitDoneMsg{Books: books, Runner: runner}
	}
}

// startDownload runs every book in the background.
func (m Model) startDownload() tea.Cmd {
	runner, ctx, urls := m.runner, m.ctx, m.urls

	return func() tea.Msg {
		if runner == nil {
			return DownloadDoneMsg{Err: errors.New("no runner")}
		}
		return DownloadDoneMsg{Results: runner.Batch(ctx, handler.AutoName, urls)}
	}
}

// Run starts the TUI application. Log output is discarded while the UI
// owns the terminal.
func Run(ctx context.Context, settings *config.Settings) error {
	if settings == nil {
		settings = config.DefaultSettings()
	}
	logger.InitLoggerTo(io.Discard, settings.LogLevel, settings.LogFormat)

	p := tea.NewProgram(NewModel(ctx, settings), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
