package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"

	"pylintview/internal/config"
)

// EditSettings asks for the settings interactively, starting from s.
func EditSettings(s config.Settings) (config.Settings, error) {
	paths := strings.Join(s.SearchPaths, "\n")

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Python interpreter").
				Description("Leave empty to use python3 from PATH.").
				Value(&s.Interpreter),
			huh.NewInput().
				Title("Encoding").
				Value(&s.Encoding).
				Validate(func(v string) error {
					if strings.TrimSpace(v) == "" {
						return errors.New("encoding is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Project root").
				Description("Where pylintrc is looked up and generated.").
				Value(&s.ProjectRoot),
			huh.NewText().
				Title("Search paths").
				Description("One per line, added to sys.path first to last.").
				Value(&paths),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Web address").
				Value(&s.Web.Addr),
		),
	)
	if err := form.Run(); err != nil {
		return s, err
	}

	s.SearchPaths = splitLines(paths)
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
