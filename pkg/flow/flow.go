// Package flow parses YAML scenario files into steps for the executor.
package flow

import (
	"path/filepath"
	"strings"
	"time"
)

// Flow represents a parsed scenario file.
type Flow struct {
	SourcePath string // Path to the source file
	Config     Config // Header document (name, tags, context)
	Steps      []Step // Steps to execute
}

// Config represents the optional header document of a flow.
type Config struct {
	Name    string        `yaml:"name"`
	Tags    []string      `yaml:"tags"`
	Context string        `yaml:"context"` // Window focused before the first step
	Timeout time.Duration `yaml:"timeout"` // Default locate timeout; 0 uses the engine default
}

// DisplayName returns the header name, else the file name without extension.
func (f *Flow) DisplayName() string {
	if f.Config.Name != "" {
		return f.Config.Name
	}
	base := filepath.Base(f.SourcePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
