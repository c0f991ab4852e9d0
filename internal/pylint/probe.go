package pylint

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/hashicorp/go-version"
)

// MinimumVersion is the oldest pylint whose text output we parse.
const MinimumVersion = "2.0.0"

const probeScript = "import os, pylint; print(pylint.__version__); print(os.path.dirname(pylint.__file__))"

// Installation describes the pylint an interpreter would run.
type Installation struct {
	Version   string
	Location  string
	Supported bool
}

var unknownInstallation = Installation{Version: "Unknown", Location: "Unknown"}

// Probe asks interpreter which pylint it has and where it lives.
func Probe(ctx context.Context, interpreter string) (Installation, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, interpreter, "-c", probeScript)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return unknownInstallation, NewLinterError(interpreter, ErrProbeFailed).WithOutput(strings.TrimSpace(stderr.String()))
	}
	return parseProbeOutput(stdout.String()), nil
}

// parseProbeOutput reads the version and location lines of probeScript.
func parseProbeOutput(out string) Installation {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	inst := unknownInstallation
	if len(lines) > 0 && strings.TrimSpace(lines[0]) != "" {
		inst.Version = strings.TrimSpace(lines[0])
	}
	if len(lines) > 1 && strings.TrimSpace(lines[1]) != "" {
		inst.Location = strings.TrimSpace(lines[1])
	}
	inst.Supported = IsSupported(inst.Version)
	return inst
}

// IsSupported compares a pylint version string against MinimumVersion.
func IsSupported(v string) bool {
	got, err := version.NewVersion(v)
	if err != nil {
		return false
	}
	return got.GreaterThanOrEqual(version.Must(version.NewVersion(MinimumVersion)))
}
