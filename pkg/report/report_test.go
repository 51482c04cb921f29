package report

import (
	"encoding/json"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/devicelab-dev/a11y-runner/pkg/core"
)

var start = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func sampleSuite() *core.SuiteResult {
	snapshot := []byte(`{"push button":["Save"]}`)
	suite := &core.SuiteResult{
		Name:      "wallet",
		RunID:     "20240501-120000",
		StartTime: start,
		Duration:  3 * time.Second,
		Flows: []core.FlowResult{
			{
				Name:      "Issue asset",
				FilePath:  "flows/issue.yaml",
				Tags:      []string{"smoke"},
				Status:    core.StatusPassed,
				StartTime: start,
				Duration:  time.Second,
				Steps: []core.StepResult{
					{Index: 0, Command: "tapOn", Description: "tapOn push button \"Issue\"", Status: core.StatusPassed, StartTime: start, Duration: 300 * time.Millisecond},
					{Index: 1, Command: "waitForToast", Description: "waitForToast notification [toaster]", Status: core.StatusPassed, StartTime: start, Data: "Asset issued"},
				},
			},
			{
				Name:      "Save",
				FilePath:  "flows/save.yaml",
				Status:    core.StatusFailed,
				StartTime: start.Add(time.Second),
				Duration:  2 * time.Second,
				Error:     "push button \"Save\" not found after 4 attempts in 2s",
				Steps: []core.StepResult{
					{
						Index: 0, Command: "assertVisible", Description: "assertVisible push button \"Save\"",
						Status: core.StatusFailed, Category: core.ErrCategoryAssertion,
						Error:       "push button \"Save\" not found after 4 attempts in 2s",
						Attachments: []core.Attachment{core.NewSnapshotAttachment("assets/flow-001/step-000-snapshot.json", snapshot)},
					},
					{Index: 1, Command: "tapOn", Description: "tapOn Next", Status: core.StatusSkipped, Message: "previous step failed"},
					{Index: 2, Command: "tapOn", Description: "tapOn Done", Status: core.StatusErrored, Category: core.ErrCategoryConnection, Error: "accessibility tree provider unavailable"},
				},
			},
		},
	}
	suite.ComputeSummary()
	return suite
}

func TestWriteRead(t *testing.T) {
	dir := t.TempDir()
	suite := sampleSuite()
	meta := Meta{Version: "dev", Provider: "mock", Profile: "local"}

	if err := Write(dir, suite, meta); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	body, err := os.ReadFile(filepath.Join(dir, "assets", "flow-001", "step-000-snapshot.json"))
	if err != nil {
		t.Fatalf("attachment not written: %v", err)
	}
	if string(body) != `{"push button":["Save"]}` {
		t.Errorf("attachment body = %s", body)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			t.Errorf("temp file %s left behind", e.Name())
		}
	}

	got, err := Read(dir)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if diff := cmp.Diff(meta, got.Runner); diff != "" {
		t.Errorf("meta mismatch (-want +got):\n%s", diff)
	}
	if got.Suite.FailedFlows != 1 || got.Suite.PassedFlows != 1 {
		t.Errorf("summary passed=%d failed=%d", got.Suite.PassedFlows, got.Suite.FailedFlows)
	}
	step := got.Suite.Flows[1].Steps[0]
	if step.Category != core.ErrCategoryAssertion || len(step.Attachments) != 1 {
		t.Errorf("failed step = %+v", step)
	}
	if step.Attachments[0].Body != nil {
		t.Error("attachment bodies are not serialised")
	}
	if got.Suite.Flows[0].Steps[1].Data != "Asset issued" {
		t.Errorf("toast payload = %v", got.Suite.Flows[0].Steps[1].Data)
	}
}

func TestWrite_RejectsEscapingAttachment(t *testing.T) {
	suite := sampleSuite()
	suite.Flows[1].Steps[0].Attachments[0].Path = "../outside.json"

	if err := Write(t.TempDir(), suite, Meta{}); err == nil {
		t.Error("expected error for attachment outside the report directory")
	}
}

func TestRead_Missing(t *testing.T) {
	if _, err := Read(t.TempDir()); err == nil {
		t.Error("expected error for missing report")
	}
}

func TestGenerateAllure(t *testing.T) {
	dir := t.TempDir()
	if err := Write(dir, sampleSuite(), Meta{Provider: "bridge", Profile: "ci"}); err != nil {
		t.Fatal(err)
	}
	if err := GenerateAllure(dir); err != nil {
		t.Fatalf("GenerateAllure() error = %v", err)
	}

	allureDir := filepath.Join(dir, AllureDir)
	data, err := os.ReadFile(filepath.Join(allureDir, "20240501-120000-001-result.json"))
	if err != nil {
		t.Fatalf("result file: %v", err)
	}
	var res AllureResult
	if err := json.Unmarshal(data, &res); err != nil {
		t.Fatal(err)
	}
	if res.Status != "failed" || res.Name != "Save" {
		t.Errorf("result = %s %s", res.Name, res.Status)
	}
	gotSteps := make([]string, len(res.Steps))
	for i, s := range res.Steps {
		gotSteps[i] = s.Status
	}
	if diff := cmp.Diff([]string{"failed", "skipped", "broken"}, gotSteps); diff != "" {
		t.Errorf("step statuses mismatch (-want +got):\n%s", diff)
	}
	if len(res.Attachments) != 1 {
		t.Fatalf("attachments = %+v", res.Attachments)
	}
	if _, err := os.Stat(filepath.Join(allureDir, res.Attachments[0].Source)); err != nil {
		t.Errorf("attachment not copied: %v", err)
	}

	env, err := os.ReadFile(filepath.Join(allureDir, "environment.properties"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(env), "runner.provider=bridge") {
		t.Errorf("environment.properties = %q", env)
	}
	if _, err := os.Stat(filepath.Join(allureDir, "categories.json")); err != nil {
		t.Errorf("categories.json: %v", err)
	}
}

func TestMapAllureStatus(t *testing.T) {
	tests := []struct {
		status core.StepStatus
		want   string
	}{
		{core.StatusPassed, "passed"},
		{core.StatusWarned, "passed"},
		{core.StatusFailed, "failed"},
		{core.StatusErrored, "broken"},
		{core.StatusSkipped, "skipped"},
		{core.StatusRunning, "unknown"},
	}
	for _, tt := range tests {
		if got := mapAllureStatus(tt.status); got != tt.want {
			t.Errorf("mapAllureStatus(%s) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestWriteJUnit(t *testing.T) {
	dir := t.TempDir()
	if err := WriteJUnit(dir, sampleSuite()); err != nil {
		t.Fatalf("WriteJUnit() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, JUnitFile))
	if err != nil {
		t.Fatal(err)
	}
	var got junitSuites
	if err := xml.Unmarshal(data, &got); err != nil {
		t.Fatalf("invalid XML: %v", err)
	}
	if got.Tests != 5 || got.Failures != 1 || got.Errors != 1 || got.Skipped != 1 {
		t.Errorf("totals tests=%d failures=%d errors=%d skipped=%d", got.Tests, got.Failures, got.Errors, got.Skipped)
	}
	if len(got.Suites) != 2 {
		t.Fatalf("suites = %d, want 2", len(got.Suites))
	}
	failed := got.Suites[1].Cases[0]
	if failed.Failure == nil || failed.Failure.Type != "assertion" {
		t.Errorf("failure = %+v", failed.Failure)
	}
	if failed.Classname != "save" {
		t.Errorf("classname = %q, want save", failed.Classname)
	}
}
