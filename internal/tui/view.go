package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pylintview/internal/model"
	"pylintview/internal/pylint"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	headingStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	normalStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	rateStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("81")).Bold(true)

	categoryColors = map[model.Category]lipgloss.Color{
		model.CategoryError:      lipgloss.Color("196"),
		model.CategoryWarning:    lipgloss.Color("208"),
		model.CategoryRefactor:   lipgloss.Color("141"),
		model.CategoryConvention: lipgloss.Color("110"),
	}

	borderColor = lipgloss.Color("63")
	activeColor = lipgloss.Color("205")
)

const contextRadius = 3

const helpText = `pylintview keys

  r        run pylint on the file
  s        stop the running analysis
  c        clear the results
  o        raw pylint output (esc to close)
  g        open or generate pylintrc
  /        filter messages
  enter    collapse or expand a category
  j/k      move
  ?        about
  h        this help
  q        quit`

func (m AppModel) View() string {
	if m.ShowHelp {
		return m.renderDialog(helpText, borderColor)
	}
	if m.ShowAbout {
		return m.renderDialog(m.aboutText(), borderColor)
	}

	width := m.WindowSize.Width
	height := m.WindowSize.Height

	netWidth := max(40, width-6)
	leftWidth := netWidth * 2 / 5
	rightWidth := netWidth - leftWidth
	boxHeight := max(6, height-5)
	interiorHeight := max(2, boxHeight-2)

	header := m.renderHeader(netWidth)

	if m.ShowRaw {
		raw := lipgloss.NewStyle().
			Width(netWidth + 2).
			Height(interiorHeight).
			Border(lipgloss.NormalBorder()).
			BorderForeground(activeColor).
			Render(m.RawViewport.View())
		return header + "\n" + raw + "\n" + m.renderFooter()
	}

	left := lipgloss.NewStyle().
		Width(leftWidth).
		Height(interiorHeight).
		Border(lipgloss.NormalBorder()).
		BorderForeground(activeColor).
		Render(m.renderTree(leftWidth, interiorHeight))

	right := lipgloss.NewStyle().
		Width(rightWidth).
		Height(interiorHeight).
		Border(lipgloss.NormalBorder()).
		BorderForeground(borderColor).
		Render(m.renderDetails(rightWidth))

	return header + "\n" + lipgloss.JoinHorizontal(lipgloss.Top, left, right) + "\n" + m.renderFooter()
}

func (m AppModel) renderHeader(width int) string {
	name := "(no file)"
	if m.File != "" {
		name = filepath.Base(m.File)
	}
	line := titleStyle.Render("pylint") + " " + name
	if m.HasResult && !m.Result.Failed() {
		line += "  " + rateStyle.Render(model.IconRate+" "+pylint.RateText(m.Result))
	}
	if m.HasResult {
		line += dimStyle.Render("  " + m.Result.Timestamp)
	}
	return lipgloss.NewStyle().MaxWidth(width).Render(line)
}

func (m AppModel) renderTree(width, height int) string {
	if !m.HasResult {
		if m.Running {
			return dimStyle.Render("Running pylint...")
		}
		return dimStyle.Render("No results. Press r to run pylint.")
	}
	if m.Result.Failed() {
		return errorStyle.Render(truncateLines(model.Deref(m.Result.ProcessError), width))
	}

	visible := max(1, height)
	start, end := 0, len(m.rows)
	if len(m.rows) > visible {
		if m.SelectedIdx >= visible/2 {
			start = m.SelectedIdx - visible/2
		}
		if start+visible > len(m.rows) {
			start = len(m.rows) - visible
		}
		end = start + visible
	}

	var b strings.Builder
	for i := start; i < end; i++ {
		r := m.rows[i]
		var line string
		style := normalStyle
		if r.heading() {
			marker := "▾"
			if m.Collapsed[r.Category] {
				marker = "▸"
			}
			line = fmt.Sprintf("%s %s %s (%d)", marker, model.CategoryIcon(r.Category), r.Category.Label(), m.visibleCount(r.Category))
			style = headingStyle.Foreground(categoryColors[r.Category])
		} else {
			msg := m.Result.Messages[r.Category][r.Index]
			line = fmt.Sprintf("   %4d  %s  %s", msg.Line, msg.Code, msg.Text)
		}
		line = truncate(line, width-1)
		if i == m.SelectedIdx {
			style = selectedStyle
		}
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (m AppModel) renderDetails(width int) string {
	var b strings.Builder
	b.WriteString(headingStyle.Render("Details"))
	b.WriteString("\n")

	msg, ok := m.selectedMessage()
	if !ok {
		if m.HasResult && !m.Result.Failed() && m.Result.Total() == 0 {
			b.WriteString("\nNo messages. Nothing to fix.")
		} else if m.HasResult {
			b.WriteString("\nExit status: " + pylint.ExitStatusText(m.Result))
			b.WriteString("\nExit code:   " + pylint.ExitCodeText(m.Result))
		}
		return b.String()
	}

	category, _ := model.CategoryFromCode(msg.Code)
	fmt.Fprintf(&b, "\nCode:      %s (%s)", msg.Code, category.Name())
	fmt.Fprintf(&b, "\nModule:    %s", msg.Module)
	fmt.Fprintf(&b, "\nLine:      %d", msg.Line)
	if msg.Object != "" {
		fmt.Fprintf(&b, "\nObject:    %s", msg.Object)
	}
	fmt.Fprintf(&b, "\nMessage:   %s", msg.Text)

	ctx := model.GetLineContext(m.Result.FilePath, msg.Line, contextRadius)
	if ctx.ErrorMsg != "" {
		b.WriteString("\n\n" + dimStyle.Render(ctx.ErrorMsg))
		return b.String()
	}
	fmt.Fprintf(&b, "\n\n--- %s ---", filepath.Base(ctx.Path))
	for _, l := range ctx.Lines {
		prefix := "  "
		if l.Target {
			prefix = model.IconSelected + " "
		}
		line := truncate(fmt.Sprintf("%s%4d  %s", prefix, l.Number, l.Text), width-1)
		if l.Target {
			line = rateStyle.Render(line)
		}
		b.WriteString("\n" + line)
	}
	return b.String()
}

func (m AppModel) renderFooter() string {
	if m.InputMode {
		return " Filter: " + m.InputBuffer.View()
	}
	keys := "r run  s stop  c clear  o raw  g rcfile  / filter  ? about  h help  q quit"
	if m.ShowRaw {
		keys = "j/k scroll  o/esc close  q quit"
	}
	status := m.Status
	if m.Filter != "" {
		status = strings.TrimSpace(status + "  [filter: " + m.Filter + "]")
	}
	return dimStyle.Render(" "+keys) + "\n " + status
}

func (m AppModel) aboutText() string {
	if m.About == nil {
		return "About pylintview\n\nProbing pylint..."
	}
	a := m.About
	supported := "yes"
	if !a.Supported {
		supported = "no (needs " + pylint.MinimumVersion + " or later)"
	}
	return fmt.Sprintf(`About pylintview

  Version:          %s
  Location:         %s

  pylint version:   %s
  pylint location:  %s
  Interpreter:      %s
  Supported:        %s

Press ? or esc to close`, a.PluginVersion, a.PluginLocation, a.PylintVersion, a.PylintLocation, a.Interpreter, supported)
}

func (m AppModel) renderDialog(content string, color lipgloss.Color) string {
	w, h := m.WindowSize.Width, m.WindowSize.Height
	if w < 20 || h < 10 {
		return content
	}

	dialogWidth := min(max(40, w*70/100), w-4)
	dialog := lipgloss.NewStyle().
		Width(dialogWidth).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 1).
		Render(content)

	return lipgloss.Place(w, h, lipgloss.Center, lipgloss.Center, dialog)
}

func truncate(s string, width int) string {
	r := []rune(s)
	if width < 4 || len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}

func truncateLines(s string, width int) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = truncate(l, width-1)
	}
	return strings.Join(lines, "\n")
}

func (m AppModel) Init() tea.Cmd {
	if m.File == "" {
		return nil
	}
	return func() tea.Msg { return MsgRun{} }
}
