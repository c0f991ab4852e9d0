package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"pylintview/internal/model"
)

// Presenter forwards host results into a running program.
type Presenter struct {
	send func(tea.Msg)
}

// NewPresenter sends to p. Calls block until the program reads the message,
// so they must not come from inside Update.
func NewPresenter(p *tea.Program) *Presenter {
	return &Presenter{send: p.Send}
}

func (p *Presenter) ShowResults(r model.AnalysisResult) {
	p.send(MsgResults(r))
}

func (p *Presenter) Clear() {
	p.send(MsgCleared{})
}

// Status shows msg in the footer.
func (p *Presenter) Status(msg string) {
	p.send(MsgStatus(msg))
}
