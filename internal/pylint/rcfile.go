package pylint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
)

// RCFileName is the name used for generated config files.
const RCFileName = "pylintrc"

// rcFileNames are looked up in this order in each directory.
var rcFileNames = []string{RCFileName, ".pylintrc"}

// FindRCFile looks for a pylint config next to the file first, then in the
// project root. Returns "" when there is none.
func FindRCFile(fileDir, projectRoot string) string {
	for _, dir := range []string{fileDir, projectRoot} {
		if dir == "" {
			continue
		}
		for _, name := range rcFileNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path
			}
		}
	}
	return ""
}

// RCFileTarget returns where a generated pylintrc goes: the project root, or
// the file's directory when there is no project.
func RCFileTarget(fileDir, projectRoot string) (string, error) {
	dir := projectRoot
	if dir == "" {
		dir = fileDir
	}
	if dir == "" {
		return "", ErrNoRCFileLocation
	}
	return filepath.Join(dir, RCFileName), nil
}

// GenerateRCFile writes the output of `pylint --generate-rcfile` to a new
// pylintrc and returns its path.
func GenerateRCFile(ctx context.Context, interpreter, fileDir, projectRoot string) (string, error) {
	path, err := RCFileTarget(fileDir, projectRoot)
	if err != nil {
		return "", err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return path, fmt.Errorf("%w: %s", ErrRCFileExists, path)
	}
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, interpreter, "-m", "pylint", "--generate-rcfile")
	cmd.Dir = filepath.Dir(path)
	cmd.Stdout = f
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	closeErr := f.Close()
	if runErr != nil {
		os.Remove(path)
		return "", NewLinterError(interpreter, ErrGenerateFailed).WithOutput(stderr.String())
	}
	if closeErr != nil {
		os.Remove(path)
		return "", fmt.Errorf("writing %s: %w", path, closeErr)
	}

	return path, nil
}
