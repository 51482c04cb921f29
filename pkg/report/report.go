// Package report writes run results to disk: report.json with snapshot
// attachments, Allure result files and JUnit XML.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/devicelab-dev/a11y-runner/pkg/core"
	"github.com/devicelab-dev/a11y-runner/pkg/logger"
)

// FileName is the report written to the output directory.
const FileName = "report.json"

// Meta describes the run environment.
type Meta struct {
	Version  string `json:"version,omitempty"`
	Provider string `json:"provider,omitempty"`
	Profile  string `json:"profile,omitempty"`
}

// Report is the on-disk form of a run.
type Report struct {
	Runner Meta              `json:"runner"`
	Suite  *core.SuiteResult `json:"suite"`
}

// Write stores suite under dir: every attachment body at its relative path,
// then report.json. The report is written last and atomically, so a reader
// never sees it referencing a missing attachment.
func Write(dir string, suite *core.SuiteResult, meta Meta) error {
	if err := ensureDir(dir); err != nil {
		return err
	}
	for fi := range suite.Flows {
		for si := range suite.Flows[fi].Steps {
			for _, a := range suite.Flows[fi].Steps[si].Attachments {
				if err := writeAttachment(dir, a); err != nil {
					return err
				}
			}
		}
	}
	return atomicWriteJSON(filepath.Join(dir, FileName), Report{Runner: meta, Suite: suite})
}

// Read loads report.json from dir.
func Read(dir string) (*Report, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	if r.Suite == nil {
		return nil, fmt.Errorf("parse report: no suite in %s", FileName)
	}
	return &r, nil
}

func writeAttachment(dir string, a core.Attachment) error {
	if a.Path == "" || a.Body == nil {
		return nil
	}
	clean := filepath.Clean(a.Path)
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("attachment path %q escapes the report directory", a.Path)
	}
	path := filepath.Join(dir, clean)
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return err
	}
	if err := os.WriteFile(path, a.Body, 0o644); err != nil {
		return fmt.Errorf("write attachment %s: %w", a.Path, err)
	}
	return nil
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}

// atomicWriteJSON writes v to a temp file in the target directory and
// renames it into place.
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	logger.Debug("wrote %s", path)
	return nil
}
