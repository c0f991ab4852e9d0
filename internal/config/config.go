// Package config loads and saves the user settings file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Settings are the user preferences the host injects into the plugin.
type Settings struct {
	// Interpreter is the python executable; empty means detect.
	Interpreter string `yaml:"interpreter,omitempty"`

	// Encoding of the analysed files and of pylint's output.
	Encoding string `yaml:"encoding" validate:"required"`

	// ProjectRoot is where pylintrc is looked up after the file's directory.
	ProjectRoot string `yaml:"project_root,omitempty" validate:"omitempty,dir"`

	// SearchPaths are added to sys.path before analysis, first one first.
	SearchPaths []string `yaml:"search_paths,omitempty" validate:"dive,required"`

	Web   WebSettings   `yaml:"web"`
	Watch WatchSettings `yaml:"watch"`
}

type WebSettings struct {
	Addr string `yaml:"addr" validate:"required,hostname_port"`
}

type WatchSettings struct {
	Debounce time.Duration `yaml:"debounce" validate:"gte=0"`
}

// Default returns the settings used when there is no file.
func Default() Settings {
	return Settings{
		Encoding: "utf-8",
		Web:      WebSettings{Addr: "localhost:8080"},
		Watch:    WatchSettings{Debounce: 300 * time.Millisecond},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the settings.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// DefaultPath is $XDG_CONFIG_HOME/pylintview/config.yaml or its platform
// equivalent.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "pylintview", "config.yaml"), nil
}

// Load reads settings from path on top of the defaults. A missing file is not
// an error.
func Load(path string) (Settings, error) {
	s := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Save validates s and writes it to path, creating the directory.
func Save(path string, s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
