package pylint

import (
	"os/exec"
)

// Candidate interpreters tried in order when none is configured.
var defaultInterpreters = []string{"python3", "python"}

// DetectInterpreter returns the configured interpreter, or the first python on
// PATH. Falls back to "python3" so the start error names something sensible.
func DetectInterpreter(configured string) string {
	if configured != "" {
		return configured
	}
	for _, name := range defaultInterpreters {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	return defaultInterpreters[0]
}
