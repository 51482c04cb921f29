package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/devicelab-dev/a11y-runner/pkg/core"
)

// slowThreshold marks passing steps that took long enough to deserve a look.
const slowThreshold = 5 * time.Second

var (
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	cyan   = color.New(color.FgCyan)
	bold   = color.New(color.Bold)
)

// printer renders live progress and the final summary. Its methods are
// safe to call from parallel workers.
type printer struct {
	mu sync.Mutex
	w  io.Writer
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w}
}

func (p *printer) flowStart(flowIdx, totalFlows int, name, file string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "\n  %s %s (%s)\n",
		cyan.Sprintf("[%d/%d]", flowIdx+1, totalFlows), bold.Sprint(name), file)
	fmt.Fprintln(p.w, strings.Repeat("─", 60))
}

func (p *printer) stepComplete(idx int, desc string, status core.StepStatus, d time.Duration, errMsg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	dur := formatDuration(d)
	switch status {
	case core.StatusPassed:
		if d >= slowThreshold {
			fmt.Fprintf(p.w, "    %s %s %s\n", yellow.Sprint("⚠"), desc, yellow.Sprintf("(%s)", dur))
			return
		}
		fmt.Fprintf(p.w, "    %s %s (%s)\n", green.Sprint("✓"), desc, dur)
	case core.StatusWarned:
		fmt.Fprintf(p.w, "    %s %s (%s) %s\n", yellow.Sprint("⚠"), desc, dur, yellow.Sprint("optional"))
		if errMsg != "" {
			fmt.Fprintf(p.w, "      %s\n", errMsg)
		}
	case core.StatusSkipped:
		fmt.Fprintf(p.w, "    %s %s\n", cyan.Sprint("-"), desc)
	default:
		fmt.Fprintf(p.w, "    %s %s (%s)\n", red.Sprint("✗"), desc, dur)
		if errMsg != "" {
			fmt.Fprintf(p.w, "      %s\n", red.Sprint(errMsg))
		}
	}
}

func (p *printer) flowEnd(name string, status core.StepStatus, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "  %s %s\n", statusLabel(status), formatDuration(d))
}

func (p *printer) summary(suite *core.SuiteResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var total, passed, failed, skipped int
	for _, f := range suite.Flows {
		total += f.TotalSteps
		passed += f.PassedSteps + f.WarnedSteps
		failed += f.FailedSteps
		skipped += f.SkippedSteps
	}

	fmt.Fprintln(p.w)
	if passed > 0 {
		fmt.Fprintf(p.w, "  %s (%s)\n", green.Sprintf("%d steps passing", passed), formatDuration(suite.Duration))
	}
	if failed > 0 {
		fmt.Fprintf(p.w, "  %s\n", red.Sprintf("%d steps failing", failed))
	}
	if skipped > 0 {
		fmt.Fprintf(p.w, "  %s\n", cyan.Sprintf("%d steps skipped", skipped))
	}
	fmt.Fprintln(p.w)

	const width = 92
	fmt.Fprintln(p.w, strings.Repeat("═", width))
	fmt.Fprintf(p.w, "  %-42s %-8s %5s %6s %6s %6s %10s\n", "Flow", "Status", "Steps", "Pass", "Fail", "Skip", "Duration")
	fmt.Fprintln(p.w, strings.Repeat("─", width))
	for _, f := range suite.Flows {
		name := f.Name
		if len(name) > 42 {
			name = name[:39] + "..."
		}
		fmt.Fprintf(p.w, "  %-42s %s %5d %6d %6d %6d %10s\n",
			name, padLabel(f.Status), f.TotalSteps, f.PassedSteps+f.WarnedSteps, f.FailedSteps, f.SkippedSteps,
			formatDuration(f.Duration))
	}
	fmt.Fprintln(p.w, strings.Repeat("─", width))

	totals := fmt.Sprintf("%d/%d", suite.PassedFlows, suite.TotalFlows)
	c := green
	if suite.FailedFlows > 0 {
		c = red
	}
	fmt.Fprintf(p.w, "  %s %s %5d %6d %6d %6d %10s\n",
		bold.Sprintf("%-42s", "TOTAL"), c.Sprintf("%-8s", totals), total, passed, failed, skipped,
		formatDuration(suite.Duration))
	fmt.Fprintln(p.w, strings.Repeat("═", width))
}

func statusText(s core.StepStatus) (string, *color.Color) {
	switch s {
	case core.StatusPassed:
		return "✓ PASS", green
	case core.StatusWarned:
		return "⚠ WARN", yellow
	case core.StatusSkipped:
		return "- SKIP", cyan
	case core.StatusErrored:
		return "✗ ERROR", red
	default:
		return "✗ FAIL", red
	}
}

func statusLabel(s core.StepStatus) string {
	text, c := statusText(s)
	return c.Sprint(text)
}

// padLabel pads by runes before coloring so the table columns line up.
func padLabel(s core.StepStatus) string {
	text, c := statusText(s)
	if n := 8 - len([]rune(text)); n > 0 {
		text += strings.Repeat(" ", n)
	}
	return c.Sprint(text)
}

// formatDuration shows milliseconds under a second, seconds under a minute.
func formatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	return fmt.Sprintf("%dm %ds", ms/60000, (ms%60000)/1000)
}
