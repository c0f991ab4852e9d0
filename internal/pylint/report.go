package pylint

import (
	"fmt"
	"strings"

	"pylintview/internal/model"
)

// GenerateReport renders a result as plain text. verbose appends the raw
// pylint output.
func GenerateReport(r model.AnalysisResult, verbose bool) string {
	var b strings.Builder

	if r.Empty() {
		return "No results available\n"
	}

	fmt.Fprintf(&b, "pylint results for %s\n", r.FilePath)
	fmt.Fprintf(&b, "Run at:      %s\n", r.Timestamp)
	fmt.Fprintf(&b, "Exit status: %s\n", ExitStatusText(r))
	fmt.Fprintf(&b, "Exit code:   %s\n", ExitCodeText(r))

	if r.Failed() {
		fmt.Fprintf(&b, "\n%s\n", model.Deref(r.ProcessError))
		return b.String()
	}

	fmt.Fprintf(&b, "Rate:        %s\n", RateText(r))

	for _, c := range model.Categories {
		msgs := r.Messages[c]
		fmt.Fprintf(&b, "\n%s %s (%d)\n", model.CategoryIcon(c), c.Label(), len(msgs))
		for _, m := range msgs {
			b.WriteString("  " + FormatMessage(m) + "\n")
		}
	}

	if verbose {
		b.WriteString("\n--- Standard output ---\n")
		b.WriteString(model.Deref(r.Stdout))
		if r.Stderr != nil && *r.Stderr != "" {
			b.WriteString("\n--- Standard error ---\n")
			b.WriteString(*r.Stderr)
		}
	}
	return b.String()
}

// FormatMessage renders one message as "module:line  code  [object] text".
func FormatMessage(m model.Message) string {
	loc := fmt.Sprintf("%s:%d", m.Module, m.Line)
	if m.Object != "" {
		return fmt.Sprintf("%-24s %-6s [%s] %s", loc, m.Code, m.Object, m.Text)
	}
	return fmt.Sprintf("%-24s %-6s %s", loc, m.Code, m.Text)
}

// RateText shows the score and the previous run's score when known.
func RateText(r model.AnalysisResult) string {
	if r.Rate == nil {
		return "not available"
	}
	s := *r.Rate + "/10"
	if r.PreviousRate != nil {
		s += " (previous run: " + *r.PreviousRate + "/10)"
	}
	return s
}

// ExitStatusText describes how the process ended.
func ExitStatusText(r model.AnalysisResult) string {
	if r.ExitStatus == model.ExitNormal {
		return "normal exit"
	}
	return "crash exit"
}

// ExitCodeText shows the exit code with its decoded flags. Crashed processes
// have no exit code.
func ExitCodeText(r model.AnalysisResult) string {
	if r.ExitCode == nil || r.ExitStatus != model.ExitNormal {
		return "not available"
	}
	s := fmt.Sprint(*r.ExitCode)
	if flags := r.Flags().Describe(); len(flags) > 0 {
		s += " (" + strings.Join(flags, ", ") + ")"
	}
	return s
}
