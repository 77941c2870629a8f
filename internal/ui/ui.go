package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethan-hawksley/yt-play/internal/engine"
	"github.com/ethan-hawksley/yt-play/internal/resolver"
)

const (
	updateBuffer = 50
	failureTail  = 5
	maxBarWidth  = 60
)

// Model represents the sync view state.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc
	syncer engine.Syncer
	key    resolver.Key

	spinner spinner.Model
	bar     progress.Model
	help    help.Model
	keys    keyMap

	updates  chan engine.ProgressUpdate
	current  engine.ProgressUpdate
	failures []string
	width    int

	result   *engine.Result
	err      error
	quitting bool
	done     bool
}

type progressMsg engine.ProgressUpdate

type syncCompleteMsg struct {
	result *engine.Result
	err    error
}

// NewModel creates a sync view for one playlist. cancel is invoked when
// the user quits mid-sync so the engine can wind down.
func NewModel(ctx context.Context, cancel context.CancelFunc, syncer engine.Syncer, key resolver.Key) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = NewStyle(accentColor)

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 40

	return &Model{
		ctx:     ctx,
		cancel:  cancel,
		syncer:  syncer,
		key:     key,
		spinner: s,
		bar:     bar,
		help:    help.New(),
		keys:    newKeyMap(),
		current: engine.ProgressUpdate{Message: "Starting sync..."},
	}
}

// Result returns the sync outcome once the view has quit.
func (m *Model) Result() (*engine.Result, error) {
	return m.result, m.err
}

// Init starts the sync and the spinner.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startSync())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		w := msg.Width - 12
		if w > maxBarWidth {
			w = maxBarWidth
		}
		if w > 0 {
			m.bar.Width = w
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			m.cancel()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progressMsg:
		m.current = engine.ProgressUpdate(msg)
		if m.current.Phase == engine.DownloadTracks && strings.Contains(m.current.Message, "✗") {
			m.failures = append(m.failures, m.current.Message)
			if len(m.failures) > failureTail {
				m.failures = m.failures[len(m.failures)-failureTail:]
			}
		}
		return m, m.waitForProgress()

	case syncCompleteMsg:
		m.result = msg.result
		m.err = msg.err
		m.done = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the in-flight sync. The final summary is printed by the
// caller after the program exits, so a finished view renders nothing.
func (m *Model) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder
	b.WriteString(styles.title.Render(fmt.Sprintf("Syncing %s", m.key)))
	b.WriteString("\n")

	if m.quitting {
		b.WriteString(styles.warn.Render("Cancelling..."))
		b.WriteString("\n")
	}

	if m.current.Phase == engine.DownloadTracks && m.current.Total > 0 {
		percent := float64(m.current.Step) / float64(m.current.Total)
		b.WriteString(fmt.Sprintf("%s %d/%d\n", m.bar.ViewAs(percent), m.current.Step, m.current.Total))
		b.WriteString(m.current.Message)
		b.WriteString("\n")
	} else {
		b.WriteString(fmt.Sprintf("%s %s\n", m.spinner.View(), m.current.Message))
	}

	if len(m.failures) > 0 {
		b.WriteString("\n")
		for _, line := range m.failures {
			b.WriteString(styles.err.Render(line))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(styles.help.Render(m.help.ShortHelpView(m.keys.ShortHelp())))
	return b.String()
}

// startSync runs the engine in the background and hands its updates to
// the message loop.
func (m *Model) startSync() tea.Cmd {
	m.updates = make(chan engine.ProgressUpdate, updateBuffer)

	go func() {
		result, err := m.syncer.Sync(m.ctx, m.updates, m.key)
		m.result = result
		m.err = err
		close(m.updates)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		update, ok := <-m.updates
		if !ok {
			return syncCompleteMsg{result: m.result, err: m.err}
		}
		return progressMsg(update)
	}
}
