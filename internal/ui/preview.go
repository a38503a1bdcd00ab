// Package ui is the `promptbuffer preview` terminal view: the live prompt
// for a directory, re-rendered on an interval, with render timings.
package ui

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/asheshgoplani/promptbuffer/internal/logging"
)

var uiLog = logging.ForComponent(logging.CompUI)

// DefaultInterval is the time between automatic re-renders.
const DefaultInterval = time.Second

// RenderFunc produces the prompt for path, usually through a supervisor.
type RenderFunc func(path string) (string, error)

type renderedMsg struct {
	text string
	err  error
	took time.Duration
}

type tickMsg time.Time

// Model is the bubbletea model for the preview.
type Model struct {
	path     string
	render   RenderFunc
	interval time.Duration
	styles   Styles
	spinner  spinner.Model
	themes   *ThemeWatcher

	output   string
	err      error
	took     time.Duration
	renders  int
	changes  int
	busy     bool
	quitting bool
}

// NewPreview creates the preview for path. themes may be nil.
func NewPreview(path string, render RenderFunc, theme Theme, interval time.Duration, themes *ThemeWatcher) Model {
	if interval <= 0 {
		interval = DefaultInterval
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		path:     path,
		render:   render,
		interval: interval,
		styles:   NewStyles(theme),
		spinner:  sp,
		themes:   themes,
		busy:     true,
	}
}

// Init starts the first render.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.start(), m.themes.wait())
}

func (m *Model) start() tea.Cmd {
	m.busy = true
	render, path := m.render, m.path
	return func() tea.Msg {
		begin := time.Now()
		text, err := render(path)
		return renderedMsg{text: text, err: err, took: time.Since(begin)}
	}
}

// Update handles keys, render results and timers.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			if !m.busy {
				return m, m.start()
			}
		}
		return m, nil

	case renderedMsg:
		m.busy = false
		m.renders++
		m.took = msg.took
		m.err = msg.err
		if msg.err == nil {
			if msg.text != m.output {
				m.changes++
			}
			m.output = msg.text
		} else {
			uiLog.Debug("preview_render_failed", slog.String("error", msg.err.Error()))
		}
		return m, tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })

	case tickMsg:
		if m.busy {
			return m, nil
		}
		return m, m.start()

	case themeChangedMsg:
		m.styles = NewStyles(Theme(msg))
		return m, m.themes.wait()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View draws the title, the prompt and a status line.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("promptbuffer · " + m.path))
	b.WriteString("\n")

	body := m.output
	if body == "" {
		body = m.spinner.View() + " rendering…"
	}
	b.WriteString(m.styles.Box.Render(body))
	b.WriteString("\n")

	status := fmt.Sprintf("renders %d · changes %d · last %s", m.renders, m.changes, m.took.Round(time.Microsecond))
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	b.WriteString(m.styles.Status.Render(status))
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(m.styles.Error.Render("error: " + m.err.Error()))
	}
	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render("r refresh · q quit"))
	return b.String()
}

// Output returns the last successful render.
func (m Model) Output() string {
	return m.output
}
