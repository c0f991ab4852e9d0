package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"pylintview/internal/model"
)

// Actions is what the panel can ask the pylint plugin to do.
type Actions interface {
	Run(path string) error
	Stop()
	Clear()
	IsRunning() bool
	GenerateOrOpenRCFile(ctx context.Context, fileDir string) (string, bool, error)
	About(ctx context.Context) model.About
}

// row is one line of the results tree: a category heading or a message.
type row struct {
	Category model.Category
	Index    int // into Result.Messages[Category]; -1 for the heading
}

func (r row) heading() bool { return r.Index < 0 }

// AppModel holds the TUI state.
type AppModel struct {
	actions Actions

	// Data
	File      string
	Result    model.AnalysisResult
	HasResult bool
	Running   bool
	Status    string
	About     *model.About

	// UI State
	SelectedIdx int
	Collapsed   map[model.Category]bool
	WindowSize  tea.WindowSizeMsg
	rows        []row

	// View Modes
	ShowRaw   bool
	ShowAbout bool
	ShowHelp  bool

	// Filter State
	InputMode   bool
	InputBuffer textinput.Model
	Filter      string

	// Components
	RawViewport viewport.Model
}

// InitialModel returns the panel for file, driven by actions.
func InitialModel(actions Actions, file string) AppModel {
	ti := textinput.New()
	ti.Placeholder = "code, object or text..."
	ti.CharLimit = 80
	ti.Width = 30

	m := AppModel{
		actions:     actions,
		File:        file,
		InputBuffer: ti,
		Collapsed:   make(map[model.Category]bool),
		RawViewport: viewport.New(80, 20),
	}
	m.rebuildRows()
	return m
}

// rebuildRows flattens the result into the visible tree.
func (m *AppModel) rebuildRows() {
	m.rows = nil
	if m.HasResult && !m.Result.Failed() {
		filter := strings.ToLower(m.Filter)
		for _, c := range model.Categories {
			m.rows = append(m.rows, row{Category: c, Index: -1})
			if m.Collapsed[c] {
				continue
			}
			for i, msg := range m.Result.Messages[c] {
				if filter != "" && !matches(msg, filter) {
					continue
				}
				m.rows = append(m.rows, row{Category: c, Index: i})
			}
		}
	}
	if m.SelectedIdx >= len(m.rows) {
		m.SelectedIdx = max(0, len(m.rows)-1)
	}
}

func matches(msg model.Message, term string) bool {
	for _, s := range []string{msg.Code, msg.Object, msg.Text, msg.Module} {
		if strings.Contains(strings.ToLower(s), term) {
			return true
		}
	}
	return false
}

// selectedMessage returns the message under the cursor, if any.
func (m AppModel) selectedMessage() (model.Message, bool) {
	if m.SelectedIdx >= len(m.rows) {
		return model.Message{}, false
	}
	r := m.rows[m.SelectedIdx]
	if r.heading() {
		return model.Message{}, false
	}
	return m.Result.Messages[r.Category][r.Index], true
}

// visibleCount is how many messages of c pass the filter.
func (m AppModel) visibleCount(c model.Category) int {
	if m.Filter == "" {
		return len(m.Result.Messages[c])
	}
	n := 0
	filter := strings.ToLower(m.Filter)
	for _, msg := range m.Result.Messages[c] {
		if matches(msg, filter) {
			n++
		}
	}
	return n
}
