package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"pylintview/internal/model"
	"pylintview/internal/pylint"
)

// MsgResults carries a finished analysis.
type MsgResults model.AnalysisResult

// MsgCleared tells the panel to drop its results.
type MsgCleared struct{}

// MsgRun asks the panel to analyse its file, like pressing r.
type MsgRun struct{}

// MsgRunFailed reports that pylint could not be started.
type MsgRunFailed string

// MsgStatus is a one-line notice for the footer.
type MsgStatus string

// MsgAbout carries the about information.
type MsgAbout model.About

// MsgRCFile reports the outcome of generate-or-open.
type MsgRCFile struct {
	Path    string
	Created bool
	Err     error
}

const probeTimeout = 10 * time.Second

// Update handles events.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.WindowSize = msg
		m.RawViewport.Width = max(20, msg.Width-6)
		m.RawViewport.Height = max(3, msg.Height-8)
		return m, nil

	case MsgResults:
		m.Result = model.AnalysisResult(msg)
		m.HasResult = true
		m.Running = false
		m.Status = summary(m.Result)
		m.RawViewport.SetContent(rawContent(m.Result))
		m.RawViewport.GotoTop()
		m.rebuildRows()
		m.SelectedIdx = firstMessage(m.rows)
		return m, nil

	case MsgCleared:
		m.Result = model.AnalysisResult{}
		m.HasResult = false
		m.ShowRaw = false
		m.Status = "Results cleared"
		m.RawViewport.SetContent("")
		m.rebuildRows()
		m.SelectedIdx = 0
		return m, nil

	case MsgRun:
		return m.startRun()

	case MsgRunFailed:
		m.Running = m.actions.IsRunning()
		m.Status = string(msg)
		return m, nil

	case MsgStatus:
		m.Status = string(msg)
		return m, nil

	case MsgAbout:
		about := model.About(msg)
		m.About = &about
		return m, nil

	case MsgRCFile:
		switch {
		case msg.Err != nil:
			m.Status = msg.Err.Error()
		case msg.Created:
			m.Status = "Generated " + msg.Path
		default:
			m.Status = "Using " + msg.Path
		}
		return m, nil

	case tea.KeyMsg:
		if m.InputMode {
			switch msg.Type {
			case tea.KeyEnter:
				m.InputMode = false
				m.InputBuffer.Blur()
				m.Filter = m.InputBuffer.Value()
				m.rebuildRows()
				return m, nil
			case tea.KeyEsc:
				m.InputMode = false
				m.InputBuffer.Blur()
				m.InputBuffer.SetValue("")
				m.Filter = ""
				m.rebuildRows()
				return m, nil
			}
			m.InputBuffer, cmd = m.InputBuffer.Update(msg)
			return m, cmd
		}

		if m.ShowRaw {
			switch msg.String() {
			case "o", "esc":
				m.ShowRaw = false
				return m, nil
			case "ctrl+c", "q":
				return m, tea.Quit
			}
			m.RawViewport, cmd = m.RawViewport.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "esc":
			switch {
			case m.ShowAbout:
				m.ShowAbout = false
			case m.ShowHelp:
				m.ShowHelp = false
			case m.Filter != "":
				m.Filter = ""
				m.InputBuffer.SetValue("")
				m.rebuildRows()
			}
		case "up", "k":
			if m.SelectedIdx > 0 {
				m.SelectedIdx--
			}
		case "down", "j":
			if m.SelectedIdx < len(m.rows)-1 {
				m.SelectedIdx++
			}
		case "enter", " ":
			if m.SelectedIdx < len(m.rows) && m.rows[m.SelectedIdx].heading() {
				c := m.rows[m.SelectedIdx].Category
				m.Collapsed[c] = !m.Collapsed[c]
				m.rebuildRows()
			}
		case "r":
			return m.startRun()
		case "s":
			return m, m.stopCmd()
		case "c":
			return m, m.clearCmd()
		case "o":
			if m.HasResult {
				m.ShowRaw = true
			}
		case "g":
			return m, m.rcFileCmd()
		case "?":
			m.ShowAbout = !m.ShowAbout
			if m.ShowAbout && m.About == nil {
				return m, m.aboutCmd()
			}
		case "h":
			m.ShowHelp = !m.ShowHelp
		case "/":
			m.InputMode = true
			m.InputBuffer.SetValue(m.Filter)
			m.InputBuffer.Focus()
			return m, textinput.Blink
		}
	}

	return m, cmd
}

// The commands below run in their own goroutine: plugin calls publish
// back through program.Send, which would block inside Update.

// startRun marks the panel running before the child starts, so a result
// arriving first always wins.
func (m AppModel) startRun() (AppModel, tea.Cmd) {
	if m.File == "" {
		return m, func() tea.Msg { return MsgStatus("No file to analyse") }
	}
	m.Running = true
	m.Status = "Running pylint on " + filepath.Base(m.File) + "..."
	actions, file := m.actions, m.File
	return m, func() tea.Msg {
		if err := actions.Run(file); err != nil {
			return MsgRunFailed(err.Error())
		}
		return nil
	}
}

func (m AppModel) stopCmd() tea.Cmd {
	actions := m.actions
	return func() tea.Msg {
		if !actions.IsRunning() {
			return MsgStatus("pylint is not running")
		}
		actions.Stop()
		return nil
	}
}

func (m AppModel) clearCmd() tea.Cmd {
	actions := m.actions
	return func() tea.Msg {
		actions.Clear()
		return nil
	}
}

func (m AppModel) rcFileCmd() tea.Cmd {
	dir := ""
	if m.File != "" {
		dir = filepath.Dir(m.File)
	}
	actions := m.actions
	return func() tea.Msg {
		path, created, err := actions.GenerateOrOpenRCFile(context.Background(), dir)
		return MsgRCFile{Path: path, Created: created, Err: err}
	}
}

func (m AppModel) aboutCmd() tea.Cmd {
	actions := m.actions
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		defer cancel()
		return MsgAbout(actions.About(ctx))
	}
}

func firstMessage(rows []row) int {
	for i, r := range rows {
		if !r.heading() {
			return i
		}
	}
	return 0
}

func summary(r model.AnalysisResult) string {
	if r.Failed() {
		return "pylint failed, press o for the raw output"
	}
	return fmt.Sprintf("%d messages, rated %s", r.Total(), pylint.RateText(r))
}

// rawContent is the raw output shown by the o key.
func rawContent(r model.AnalysisResult) string {
	s := fmt.Sprintf("Exit status: %s\nExit code:   %s\n", pylint.ExitStatusText(r), pylint.ExitCodeText(r))
	if r.ProcessError != nil {
		s += "\n" + *r.ProcessError + "\n"
	}
	s += "\n--- Standard output ---\n" + model.Deref(r.Stdout)
	s += "\n--- Standard error ---\n" + model.Deref(r.Stderr)
	return s
}
