package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/a11y-runner/pkg/core"
	"github.com/devicelab-dev/a11y-runner/pkg/report"
)

const testScene = `
application: wallet
elements:
  - id: save
    role: push button
    name: Save
  - id: amount
    role: text
    name: Amount
`

const testSettings = `
profile: local
baseInterval: 20ms
maxInterval: 50ms
stabilityPollInterval: 10ms
stabilityTimeout: 100ms
settleDelay: 10ms
recoverySettle: 10ms
defaultTimeout: 200ms
debounceWindow: 0s
diagnostics: false
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// runApp runs the CLI with the mock provider and returns its output.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	scene := writeFile(t, dir, "scene.yaml", testScene)
	settings := writeFile(t, dir, "a11y.yaml", testSettings)

	var buf bytes.Buffer
	app := NewApp(&buf)
	app.ExitErrHandler = func(*cli.Context, error) {}
	full := append([]string{"a11y-runner",
		"--provider", "mock",
		"--scene", scene,
		"--config", settings,
		"--log-file", filepath.Join(dir, "run.log"),
		"--no-ansi",
	}, args...)
	err := app.Run(full)
	return buf.String(), err
}

func TestResolveOutputDir_Default(t *testing.T) {
	dir, err := resolveOutputDir("", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(dir, "reports/") {
		t.Errorf("expected dir to start with reports/, got %s", dir)
	}
	if parts := strings.Split(dir, "/"); len(parts) != 2 {
		t.Errorf("expected reports/<timestamp>, got %s", dir)
	}
}

func TestResolveOutputDir_Flatten(t *testing.T) {
	dir, err := resolveOutputDir("./my-reports", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dir != "my-reports" {
		t.Errorf("expected my-reports, got %s", dir)
	}
}

func TestResolveOutputDir_FlattenWithoutOutput(t *testing.T) {
	_, err := resolveOutputDir("", true)
	if err == nil || !strings.Contains(err.Error(), "--flatten requires --output") {
		t.Errorf("expected error about --flatten requiring --output, got: %v", err)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
		{75 * time.Second, "1m 15s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestArtifactConfig(t *testing.T) {
	a, err := artifactConfig("always")
	if err != nil || !a.CaptureOnSuccess {
		t.Errorf("always: got %+v, %v", a, err)
	}
	a, err = artifactConfig("never")
	if err != nil || a.Snapshot {
		t.Errorf("never: got %+v, %v", a, err)
	}
	if _, err := artifactConfig("sometimes"); !errors.Is(err, core.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestPrinter_Steps(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	p := newPrinter(&buf)

	p.flowStart(0, 2, "Save a document", "save.yaml")
	p.stepComplete(0, "tapOn Save", core.StatusPassed, 120*time.Millisecond, "")
	p.stepComplete(1, "assertVisible Saved", core.StatusFailed, 2*time.Second, "Saved not found")
	p.stepComplete(2, "resetState", core.StatusSkipped, 0, "")
	p.flowEnd("Save a document", core.StatusFailed, 3*time.Second)

	out := buf.String()
	for _, want := range []string{"[1/2]", "✓ tapOn Save (120ms)", "✗ assertVisible Saved (2.0s)", "Saved not found", "- resetState", "✗ FAIL"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrinter_Summary(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	suite := &core.SuiteResult{
		Duration: 4 * time.Second,
		Flows: []core.FlowResult{
			{Name: "passes", Status: core.StatusPassed, TotalSteps: 2, PassedSteps: 2},
			{Name: "fails", Status: core.StatusFailed, TotalSteps: 2, PassedSteps: 1, FailedSteps: 1},
		},
	}
	suite.ComputeSummary()
	newPrinter(&buf).summary(suite)

	out := buf.String()
	for _, want := range []string{"3 steps passing", "1 steps failing", "TOTAL", "1/2"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestOpenProvider_Errors(t *testing.T) {
	ctx := context.Background()

	_, cleanup, err := openProvider(ctx, providerConfig{Kind: "telepathy"})
	cleanup()
	if !errors.Is(err, core.ErrInvalidConfig) {
		t.Errorf("unknown provider: expected ErrInvalidConfig, got %v", err)
	}

	_, cleanup, err = openProvider(ctx, providerConfig{Kind: ProviderMock})
	cleanup()
	if !errors.Is(err, core.ErrMissingRequired) {
		t.Errorf("mock without scene: expected ErrMissingRequired, got %v", err)
	}

	_, cleanup, err = openProvider(ctx, providerConfig{Kind: ProviderMock, Scene: filepath.Join(t.TempDir(), "none.yaml")})
	cleanup()
	if err == nil {
		t.Error("expected error for missing scene file")
	}
}

func TestOpenProvider_MockScene(t *testing.T) {
	scene := writeFile(t, t.TempDir(), "scene.yaml", testScene)
	p, cleanup, err := openProvider(context.Background(), providerConfig{Kind: ProviderMock, Scene: scene})
	defer cleanup()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	root, err := p.Root(context.Background())
	if err != nil {
		t.Fatalf("Root: %v", err)
	}
	children, err := root.Children(context.Background())
	if err != nil || len(children) != 2 {
		t.Errorf("expected 2 top-level nodes, got %d (%v)", len(children), err)
	}
}

func TestApp_HelpAndVersion(t *testing.T) {
	for _, args := range [][]string{
		{"a11y-runner", "--help"},
		{"a11y-runner", "-h"},
		{"a11y-runner", "--version"},
		{"a11y-runner", "-v"},
	} {
		t.Run(strings.Join(args[1:], " "), func(t *testing.T) {
			var buf bytes.Buffer
			app := NewApp(&buf)
			app.ExitErrHandler = func(*cli.Context, error) {}
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("app panicked: %v", r)
				}
			}()
			if err := app.Run(args); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if buf.Len() == 0 {
				t.Error("expected output")
			}
		})
	}
}

func TestApp_VerboseFlag(t *testing.T) {
	out, err := runApp(t, "--verbose", "config")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "profile: local") {
		t.Errorf("config output missing profile:\n%s", out)
	}
}

func TestConfigCommand(t *testing.T) {
	out, err := runApp(t, "config")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"profile: local", "defaultTimeout: 200ms", "baseInterval: 20ms"} {
		if !strings.Contains(out, want) {
			t.Errorf("config output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigCommand_Env(t *testing.T) {
	out, err := runApp(t, "config", "--env")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "A11Y_DEFAULT_TIMEOUT") {
		t.Errorf("expected env names, got:\n%s", out)
	}
}

func TestTreeCommand(t *testing.T) {
	out, err := runApp(t, "tree")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, `push button "Save"`) {
		t.Errorf("tree output missing Save button:\n%s", out)
	}

	out, err = runApp(t, "tree", "--snapshot")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "3 labelled nodes showing") {
		t.Errorf("snapshot output:\n%s", out)
	}
}

func TestRunCommand_Passes(t *testing.T) {
	dir := t.TempDir()
	flowPath := writeFile(t, dir, "save.yaml", `
name: Save
---
- tapOn: Save
- assertVisible: Amount
`)
	outDir := filepath.Join(dir, "out")

	out, err := runApp(t, "run", "--output", outDir, "--flatten", flowPath)
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	if !strings.Contains(out, "1/1") {
		t.Errorf("expected 1/1 flows passing:\n%s", out)
	}

	r, err := report.Read(outDir)
	if err != nil {
		t.Fatalf("report.Read: %v", err)
	}
	if r.Runner.Provider != ProviderMock {
		t.Errorf("provider = %q, want mock", r.Runner.Provider)
	}
	if !r.Suite.Success() {
		t.Errorf("suite not successful: %+v", r.Suite.Flows)
	}
	if _, err := os.Stat(filepath.Join(outDir, report.JUnitFile)); err != nil {
		t.Errorf("junit report missing: %v", err)
	}
}

func TestRunCommand_FailureExitCode(t *testing.T) {
	dir := t.TempDir()
	flowPath := writeFile(t, dir, "missing.yaml", `
- assertVisible: Missing
- tapOn: Save
`)
	outDir := filepath.Join(dir, "out")

	out, err := runApp(t, "run", "--output", outDir, "--flatten", "--allure", flowPath)
	var exit cli.ExitCoder
	if !errors.As(err, &exit) || exit.ExitCode() != 1 {
		t.Fatalf("expected exit code 1, got %v\n%s", err, out)
	}

	r, err := report.Read(outDir)
	if err != nil {
		t.Fatalf("report.Read: %v", err)
	}
	steps := r.Suite.Flows[0].Steps
	if steps[0].Status != core.StatusFailed || steps[1].Status != core.StatusSkipped {
		t.Errorf("statuses = %v, %v", steps[0].Status, steps[1].Status)
	}
	if _, err := os.Stat(filepath.Join(outDir, report.AllureDir)); err != nil {
		t.Errorf("allure results missing: %v", err)
	}
}

func TestRunCommand_ValidationErrors(t *testing.T) {
	dir := t.TempDir()
	flowPath := writeFile(t, dir, "bad.yaml", `
- tapOn:
    role: push button
`)
	out, err := runApp(t, "run", "--output", filepath.Join(dir, "out"), flowPath)
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Fatalf("expected validation failure, got %v", err)
	}
	if !strings.Contains(out, "Validation errors:") {
		t.Errorf("expected validation errors listed:\n%s", out)
	}
}
