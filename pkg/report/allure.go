package report

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/devicelab-dev/a11y-runner/pkg/core"
	"github.com/devicelab-dev/a11y-runner/pkg/logger"
)

// AllureDir is the directory, under the report directory, holding Allure results.
const AllureDir = "allure-results"

// Allure result schema types.

// AllureResult represents a single test result in Allure format.
type AllureResult struct {
	UUID          string              `json:"uuid"`
	HistoryID     string              `json:"historyId"`
	FullName      string              `json:"fullName"`
	Name          string              `json:"name"`
	Status        string              `json:"status"`
	Stage         string              `json:"stage"`
	Start         int64               `json:"start"`
	Stop          int64               `json:"stop"`
	Labels        []AllureLabel       `json:"labels"`
	StatusDetails AllureStatusDetails `json:"statusDetails"`
	Steps         []AllureStep        `json:"steps"`
	Attachments   []AllureAttachment  `json:"attachments"`
}

// AllureStep represents a step within a test result.
type AllureStep struct {
	Name          string              `json:"name"`
	Status        string              `json:"status"`
	Stage         string              `json:"stage"`
	Start         int64               `json:"start"`
	Stop          int64               `json:"stop"`
	StatusDetails AllureStatusDetails `json:"statusDetails"`
	Attachments   []AllureAttachment  `json:"attachments"`
}

// AllureAttachment represents a file attachment.
type AllureAttachment struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Type   string `json:"type"`
}

// AllureLabel represents a label on a test result.
type AllureLabel struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// AllureStatusDetails holds failure message and trace.
type AllureStatusDetails struct {
	Message string `json:"message,omitempty"`
	Trace   string `json:"trace,omitempty"`
}

// AllureCategory defines a failure category with regex matching.
type AllureCategory struct {
	Name            string   `json:"name"`
	MatchedStatuses []string `json:"matchedStatuses"`
	MessageRegex    string   `json:"messageRegex"`
}

// GenerateAllure writes Allure result files for a report already written to
// reportDir, copying snapshot attachments next to them.
func GenerateAllure(reportDir string) error {
	r, err := Read(reportDir)
	if err != nil {
		return err
	}

	allureDir := filepath.Join(reportDir, AllureDir)
	if err := ensureDir(allureDir); err != nil {
		return err
	}

	for i := range r.Suite.Flows {
		f := &r.Suite.Flows[i]
		result := buildAllureResult(r.Suite, f, r.Runner, i)

		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal allure result for %s: %w", f.Name, err)
		}
		resultPath := filepath.Join(allureDir, result.UUID+"-result.json")
		if err := os.WriteFile(resultPath, data, 0o644); err != nil {
			return fmt.Errorf("write allure result %s: %w", f.Name, err)
		}
		copyAttachments(reportDir, allureDir, f.Steps)
	}

	if err := writeAllureCategories(allureDir); err != nil {
		return err
	}
	return writeAllureEnvironment(allureDir, r.Runner)
}

func buildAllureResult(suite *core.SuiteResult, f *core.FlowResult, meta Meta, flowIndex int) AllureResult {
	start := f.StartTime.UnixMilli()

	labels := []AllureLabel{
		{Name: "suite", Value: f.Name},
		{Name: "parentSuite", Value: suite.Name},
		{Name: "framework", Value: "a11y-runner"},
		{Name: "severity", Value: "normal"},
	}
	if meta.Provider != "" {
		labels = append(labels, AllureLabel{Name: "host", Value: meta.Provider})
	}
	for _, tag := range f.Tags {
		labels = append(labels, AllureLabel{Name: "tag", Value: tag})
	}

	steps := make([]AllureStep, 0, len(f.Steps))
	var attachments []AllureAttachment
	for _, s := range f.Steps {
		step := buildAllureStep(s)
		steps = append(steps, step)
		attachments = append(attachments, step.Attachments...)
	}

	return AllureResult{
		UUID:          fmt.Sprintf("%s-%03d", suite.RunID, flowIndex),
		HistoryID:     fnv32aHash(f.Name + ":" + f.FilePath),
		FullName:      f.FilePath + "#" + f.Name,
		Name:          f.Name,
		Status:        mapAllureStatus(f.Status),
		Stage:         "finished",
		Start:         start,
		Stop:          start + f.Duration.Milliseconds(),
		Labels:        labels,
		StatusDetails: AllureStatusDetails{Message: f.Message, Trace: f.Error},
		Steps:         steps,
		Attachments:   attachments,
	}
}

func buildAllureStep(s core.StepResult) AllureStep {
	start := s.StartTime.UnixMilli()
	step := AllureStep{
		Name:          s.Description,
		Status:        mapAllureStatus(s.Status),
		Stage:         "finished",
		Start:         start,
		Stop:          start + s.Duration.Milliseconds(),
		StatusDetails: AllureStatusDetails{Message: s.Error},
		Attachments:   []AllureAttachment{},
	}
	for _, a := range s.Attachments {
		if a.Path == "" {
			continue
		}
		step.Attachments = append(step.Attachments, AllureAttachment{
			Name:   a.Name,
			Source: allureSource(a.Path),
			Type:   a.ContentType,
		})
	}
	return step
}

// allureSource flattens an attachment path into a unique file name.
func allureSource(path string) string {
	return strings.ReplaceAll(filepath.ToSlash(filepath.Clean(path)), "/", "_")
}

// copyAttachments copies attachment files into allure-results/ flat.
// Missing files are skipped; they exist only for captured steps.
func copyAttachments(reportDir, allureDir string, steps []core.StepResult) {
	for _, s := range steps {
		for _, a := range s.Attachments {
			if a.Path == "" {
				continue
			}
			copyFile(filepath.Join(reportDir, a.Path), filepath.Join(allureDir, allureSource(a.Path)))
		}
	}
}

func copyFile(src, dst string) {
	in, err := os.Open(src)
	if err != nil {
		return
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		logger.Warn("failed to copy %s to %s: %v", src, dst, err)
	}
}

// mapAllureStatus maps a step status to the Allure status string. Errored
// steps are "broken": the environment failed, not the application.
func mapAllureStatus(s core.StepStatus) string {
	switch s {
	case core.StatusPassed, core.StatusWarned:
		return "passed"
	case core.StatusFailed:
		return "failed"
	case core.StatusErrored:
		return "broken"
	case core.StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// fnv32aHash returns a hex-encoded FNV-32a hash of the input string.
func fnv32aHash(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	return fmt.Sprintf("%08x", h.Sum32())
}

func writeAllureCategories(allureDir string) error {
	categories := []AllureCategory{
		{Name: "Element Not Found", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*not found.*"},
		{Name: "Element Still Visible", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*still visible.*"},
		{Name: "Toast Not Captured", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*appeared within.*"},
		{Name: "Timeout", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*timeout.*|.*timed out.*|.*not ready.*"},
		{Name: "Stale Handle", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*stale.*"},
		{Name: "Action Failed", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*(click|focus|setText).* failed.*|.*activate.*failed.*"},
		{Name: "Provider Unavailable", MatchedStatuses: []string{"broken"}, MessageRegex: "(?i).*provider.*|.*bridge.*|.*socket.*"},
		{Name: "Invalid Locator", MatchedStatuses: []string{"broken"}, MessageRegex: "(?i).*locator needs.*"},
	}

	data, err := json.MarshalIndent(categories, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}
	if err := os.WriteFile(filepath.Join(allureDir, "categories.json"), data, 0o644); err != nil {
		return fmt.Errorf("write categories.json: %w", err)
	}
	return nil
}

func writeAllureEnvironment(allureDir string, meta Meta) error {
	var b strings.Builder
	b.WriteString("framework=a11y-runner\n")
	if meta.Version != "" {
		fmt.Fprintf(&b, "runner.version=%s\n", meta.Version)
	}
	if meta.Provider != "" {
		fmt.Fprintf(&b, "runner.provider=%s\n", meta.Provider)
	}
	if meta.Profile != "" {
		fmt.Fprintf(&b, "runner.profile=%s\n", meta.Profile)
	}

	path := filepath.Join(allureDir, "environment.properties")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write environment.properties: %w", err)
	}
	return nil
}
