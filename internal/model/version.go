package model

import (
	"bufio"
	_ "embed"
	"io"
	"strings"
)

// Descriptor is the plugin descriptor shipped with the binary.
//
//go:embed pylintview.plugin
var Descriptor string

// Version is read from the descriptor once at startup.
var Version = ReadDescriptorVersion(strings.NewReader(Descriptor))

// UnknownVersion is reported when a descriptor has no Version line.
const UnknownVersion = "Unknown"

// ReadDescriptorVersion returns the value of the first "Version = X.Y.Z" line.
func ReadDescriptorVersion(r io.Reader) string {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "Version") {
			continue
		}
		_, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		if v := strings.TrimSpace(value); v != "" {
			return v
		}
	}
	return UnknownVersion
}

// About is what the about view shows.
type About struct {
	PluginVersion  string `json:"plugin_version"`
	PluginLocation string `json:"plugin_location"`
	PylintVersion  string `json:"pylint_version"`
	PylintLocation string `json:"pylint_location"`
	Interpreter    string `json:"interpreter"`
	Supported      bool   `json:"supported"` // pylint meets the minimum version
}
