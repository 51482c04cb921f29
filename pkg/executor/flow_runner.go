package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/devicelab-dev/a11y-runner/pkg/core"
	"github.com/devicelab-dev/a11y-runner/pkg/flow"
	"github.com/devicelab-dev/a11y-runner/pkg/locator"
	"github.com/devicelab-dev/a11y-runner/pkg/tree"
)

// flowRunner executes a single flow.
type flowRunner struct {
	flow       *flow.Flow
	engine     *locator.Engine
	config     RunnerConfig
	log        *zap.SugaredLogger
	flowIdx    int
	totalFlows int
}

// stepOutcome is what a step handler hands back besides its error.
type stepOutcome struct {
	message    string
	node       *tree.Node
	data       interface{}
	attempts   int
	suppressed bool
	snapshot   tree.Snapshot
}

func (fr *flowRunner) run(ctx context.Context) (core.FlowResult, bool) {
	clk := fr.engine.Clock()
	f := fr.flow
	res := core.FlowResult{
		Name:      f.DisplayName(),
		FilePath:  f.SourcePath,
		Tags:      f.Config.Tags,
		Context:   f.Config.Context,
		StartTime: clk.Now(),
	}
	if fr.config.OnFlowStart != nil {
		fr.config.OnFlowStart(fr.flowIdx, fr.totalFlows, res.Name, f.SourcePath)
	}

	// Each flow is an independent test: no breaker or debounce history
	// carries over from the previous one.
	fr.engine.Reset()

	broken := false
	skipReason := ""
	var focusErr error
	if f.Config.Context != "" {
		if focusErr = fr.engine.FocusContext(ctx, f.Config.Context); focusErr != nil {
			fr.log.Errorw("focus context failed", "context", f.Config.Context, "error", focusErr)
			skipReason = "context not focused"
			res.Error = focusErr.Error()
			res.Message = fmt.Sprintf("could not focus %q", f.Config.Context)
			broken = core.CategoryOf(focusErr) == core.ErrCategoryConnection
		}
	}

	for i, step := range f.Steps {
		if skipReason == "" && ctx.Err() != nil {
			skipReason = "execution cancelled"
			res.Message = skipReason
		}
		if skipReason != "" {
			res.Steps = append(res.Steps, skippedStep(i, step, clk.Now(), skipReason))
			continue
		}

		sr, err := fr.executeStep(ctx, i, step)
		res.Steps = append(res.Steps, sr)
		if fr.config.OnStepComplete != nil {
			fr.config.OnStepComplete(i, sr.Description, sr.Status, sr.Duration, sr.Error)
		}

		if err != nil && core.CategoryOf(err) == core.ErrCategoryConnection {
			broken = true
		}
		if sr.Status == core.StatusFailed || sr.Status == core.StatusErrored {
			skipReason = "previous step failed"
			res.Error = sr.Error
			res.Message = fmt.Sprintf("step %d (%s) %s", i+1, sr.Description, sr.Status)
		}
	}

	res.Duration = clk.Now().Sub(res.StartTime)
	res.ComputeSummary()
	switch {
	case focusErr != nil:
		res.Status = core.StatusFor(core.CategoryOf(focusErr))
	case ctx.Err() != nil && res.SkippedSteps > 0 && !hasFailed(res.Steps):
		res.Status = core.StatusSkipped
	default:
		res.Status = res.AggregateStatus()
	}

	fr.log.Infow("flow finished", "status", res.Status.String(), "steps", res.TotalSteps, "duration", res.Duration)
	if fr.config.OnFlowEnd != nil {
		fr.config.OnFlowEnd(res.Name, res.Status, res.Duration)
	}
	return res, broken
}

// executeStep runs one step and converts its outcome to a StepResult.
func (fr *flowRunner) executeStep(ctx context.Context, idx int, step flow.Step) (core.StepResult, error) {
	clk := fr.engine.Clock()
	sr := core.StepResult{
		Index:       idx,
		Command:     string(step.Type()),
		Description: step.Describe(),
		StartTime:   clk.Now(),
	}

	out, err := fr.dispatch(ctx, step)
	sr.Duration = clk.Now().Sub(sr.StartTime)
	sr.Message = out.message
	sr.Data = out.data
	sr.Attempts = out.attempts
	sr.Suppressed = out.suppressed
	if out.node != nil {
		sr.Element = out.node.Info()
	}

	if err != nil {
		sr.Category = core.CategoryOf(err)
		sr.Status = core.StatusFor(sr.Category)
		sr.Error = err.Error()
	} else {
		sr.Status = core.StatusPassed
	}

	if fr.config.Artifacts.ShouldCapture(sr.Status) {
		fr.attachSnapshot(ctx, &sr, out.snapshot)
		if err != nil {
			fr.attachTree(ctx, &sr)
		}
	}

	if err != nil && step.IsOptional() {
		sr.Status = core.StatusWarned
	}
	if err != nil {
		fr.log.Warnw("step failed", "step", idx, "command", sr.Command, "status", sr.Status.String(), "error", err)
	} else {
		fr.log.Debugw("step passed", "step", idx, "command", sr.Command, "attempts", sr.Attempts, "duration", sr.Duration)
	}
	return sr, err
}

// dispatch routes a step to the engine operation that implements it.
func (fr *flowRunner) dispatch(ctx context.Context, step flow.Step) (stepOutcome, error) {
	switch s := step.(type) {
	case *flow.TapOnStep:
		return fr.act(ctx, &s.Selector, tree.Click(), fr.timeout(&s.Selector))
	case *flow.FocusOnStep:
		return fr.act(ctx, &s.Selector, tree.Focus(), fr.timeout(&s.Selector))
	case *flow.InputTextStep:
		return fr.act(ctx, &s.Selector, tree.SetText(s.Text), fr.timeout(&s.Selector))
	case *flow.ClearTextStep:
		return fr.act(ctx, &s.Selector, tree.SetText(""), fr.timeout(&s.Selector))
	case *flow.AssertVisibleStep:
		return fr.assertVisible(ctx, &s.Selector)
	case *flow.AssertNotVisibleStep:
		return fr.assertNotVisible(ctx, &s.Selector)
	case *flow.WaitForToastStep:
		return fr.waitForToast(ctx, s)
	case *flow.AssertTextStep:
		return fr.assertText(ctx, s)
	case *flow.WaitForToggleStep:
		return fr.waitForToggle(ctx, s, fr.timeout(&s.Selector))
	case *flow.SetToggleStep:
		return fr.setToggle(ctx, s)
	case *flow.SwitchContextStep:
		if err := fr.engine.FocusContext(ctx, s.Window); err != nil {
			return stepOutcome{}, err
		}
		return stepOutcome{message: fmt.Sprintf("focused %q", s.Window)}, nil
	case *flow.ResetStateStep:
		fr.engine.Reset()
		return stepOutcome{message: "engine state cleared"}, nil
	default:
		return stepOutcome{}, core.ErrActionUnsupported.WithMessage(fmt.Sprintf("step %s is not supported", step.Type()))
	}
}

func (fr *flowRunner) act(ctx context.Context, sel *flow.Selector, action tree.Action, timeout time.Duration) (stepOutcome, error) {
	loc := sel.Locator()
	res, err := fr.engine.FindAndAct(ctx, loc, action, timeout, callOptions(sel)...)
	out := stepOutcome{
		node:       res.Node,
		attempts:   res.Attempts,
		suppressed: res.Suppressed,
		snapshot:   res.Snapshot,
	}
	if err != nil {
		return out, err
	}
	if !res.Found() {
		return out, fr.notFound(ctx, loc, res.SearchResult)
	}
	switch {
	case res.Suppressed:
		out.message = fmt.Sprintf("%s on %s suppressed by debounce", action, loc)
	case res.Refinds > 0:
		out.message = fmt.Sprintf("%s on %s after %d re-resolutions", action, loc, res.Refinds)
	default:
		out.message = fmt.Sprintf("%s on %s", action, loc)
	}
	return out, nil
}

func (fr *flowRunner) assertVisible(ctx context.Context, sel *flow.Selector) (stepOutcome, error) {
	loc := sel.Locator()
	res, err := fr.engine.Find(ctx, loc, fr.timeout(sel), callOptions(sel)...)
	out := stepOutcome{node: res.Node, attempts: res.Attempts, snapshot: res.Snapshot}
	if err != nil {
		return out, err
	}
	if !res.Found() {
		return out, fr.notFound(ctx, loc, res)
	}
	out.message = fmt.Sprintf("%s is visible", loc)
	return out, nil
}

func (fr *flowRunner) assertNotVisible(ctx context.Context, sel *flow.Selector) (stepOutcome, error) {
	loc := sel.Locator()
	res, err := fr.engine.WaitForAbsence(ctx, loc, fr.timeout(sel), callOptions(sel)...)
	out := stepOutcome{node: res.Node, attempts: res.Attempts}
	if err != nil {
		return out, err
	}
	if res.Found() {
		return out, core.ErrElementStillVisible.WithMessage(
			fmt.Sprintf("%s still visible after %v", loc, res.Elapsed.Round(time.Millisecond)))
	}
	out.message = fmt.Sprintf("%s is not visible", loc)
	return out, nil
}

func (fr *flowRunner) waitForToast(ctx context.Context, s *flow.WaitForToastStep) (stepOutcome, error) {
	loc := s.Selector.Locator()
	opts := callOptions(&s.Selector)
	if s.Payload != nil && !s.Payload.IsEmpty() {
		opts = append(opts, locator.WithPayloadChild(s.Payload.Locator()))
	}
	if s.Contains != "" {
		opts = append(opts, locator.WithPayloadFilter(s.Contains))
	}

	// Toasts use the transient timeout unless the step sets its own.
	c, err := fr.engine.WaitForAppearance(ctx, loc, s.Selector.Timeout, s.Poll, opts...)
	out := stepOutcome{node: c.Node, attempts: c.Attempts}
	if err != nil {
		return out, err
	}
	if c.Outcome != locator.OutcomeFound {
		msg := fmt.Sprintf("no %s appeared within %v", loc, c.Elapsed.Round(time.Millisecond))
		if s.Contains != "" {
			msg = fmt.Sprintf("no %s containing %q appeared within %v", loc, s.Contains, c.Elapsed.Round(time.Millisecond))
		}
		return out, core.ErrWaitTimeout.WithMessage(msg)
	}
	out.data = c.Payload
	out.message = fmt.Sprintf("captured %q", c.Payload)
	return out, nil
}

func (fr *flowRunner) assertText(ctx context.Context, s *flow.AssertTextStep) (stepOutcome, error) {
	loc := s.Selector.Locator()
	matches := func(a tree.Attributes) bool { return s.Matches(a.Content()) }
	res, err := fr.engine.WaitForState(ctx, loc, matches, fr.timeout(&s.Selector), callOptions(&s.Selector)...)
	out := stepOutcome{node: res.Node, attempts: res.Attempts, snapshot: res.Snapshot}
	if err != nil {
		return out, err
	}
	if !res.Found() {
		return out, fr.notFound(ctx, loc, res.SearchResult)
	}
	text := res.Node.Attributes().Content()
	out.data = text
	if !res.Matched {
		return out, core.ErrTextMismatch.WithMessage(fmt.Sprintf("%s text is %q, want %s",
			loc, text, s.Expectation())).WithDetails(map[string]interface{}{"actual": text})
	}
	out.message = fmt.Sprintf("%s text is %q", loc, text)
	return out, nil
}

func (fr *flowRunner) waitForToggle(ctx context.Context, s *flow.WaitForToggleStep, timeout time.Duration) (stepOutcome, error) {
	loc := s.Selector.Locator()
	want := s.Want()
	state := func(a tree.Attributes) bool { return a.Checked == want }
	res, err := fr.engine.WaitForState(ctx, loc, state, timeout, callOptions(&s.Selector)...)
	out := stepOutcome{node: res.Node, attempts: res.Attempts, snapshot: res.Snapshot}
	if err != nil {
		return out, err
	}
	if !res.Found() {
		return out, fr.notFound(ctx, loc, res.SearchResult)
	}
	out.data = want
	if !res.Matched {
		return out, core.ErrWaitTimeout.WithMessage(fmt.Sprintf("%s did not become %s within %v",
			loc, checkedWord(want), res.Elapsed.Round(time.Millisecond)))
	}
	out.message = fmt.Sprintf("%s is %s", loc, checkedWord(want))
	return out, nil
}

// setToggle clicks the toggle once when it is not already in the wanted
// state, then waits for the state. All phases share the step timeout.
func (fr *flowRunner) setToggle(ctx context.Context, s *flow.SetToggleStep) (stepOutcome, error) {
	clk := fr.engine.Clock()
	start := clk.Now()
	timeout := fr.timeout(&s.Selector)
	if timeout <= 0 {
		timeout = fr.engine.Options().DefaultTimeout
	}
	left := func() time.Duration {
		if d := timeout - clk.Now().Sub(start); d > 0 {
			return d
		}
		return time.Nanosecond
	}

	loc := s.Selector.Locator()
	want := s.Want()
	res, err := fr.engine.Find(ctx, loc, timeout, callOptions(&s.Selector)...)
	out := stepOutcome{node: res.Node, attempts: res.Attempts, snapshot: res.Snapshot}
	if err != nil {
		return out, err
	}
	if !res.Found() {
		return out, fr.notFound(ctx, loc, res)
	}
	if res.Node.Attributes().Checked == want {
		out.data = want
		out.message = fmt.Sprintf("%s already %s", loc, checkedWord(want))
		return out, nil
	}

	clicked, err := fr.act(ctx, &s.Selector, tree.Click(), left())
	if err != nil {
		return clicked, err
	}
	waited, err := fr.waitForToggle(ctx, &s.WaitForToggleStep, left())
	waited.attempts += out.attempts + clicked.attempts
	waited.suppressed = clicked.suppressed
	return waited, err
}

func checkedWord(checked bool) string {
	if checked {
		return "checked"
	}
	return "unchecked"
}

// timeout picks the selector timeout, then the flow timeout; zero lets the
// engine apply its default.
func (fr *flowRunner) timeout(sel *flow.Selector) time.Duration {
	if sel.Timeout > 0 {
		return sel.Timeout
	}
	return fr.flow.Config.Timeout
}

func (fr *flowRunner) attachSnapshot(ctx context.Context, sr *core.StepResult, snap tree.Snapshot) {
	if snap == nil {
		if sr.Category == core.ErrCategoryConnection {
			return
		}
		var err error
		if snap, err = fr.engine.Snapshot(ctx); err != nil {
			fr.log.Debugw("snapshot for attachment failed", "step", sr.Index, "error", err)
			return
		}
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return
	}
	path := fmt.Sprintf("assets/flow-%03d/step-%03d-snapshot.json", fr.flowIdx, sr.Index)
	sr.Attachments = append(sr.Attachments, core.NewSnapshotAttachment(path, data))
}

// attachTree adds an outline of the whole tree to a failed step.
func (fr *flowRunner) attachTree(ctx context.Context, sr *core.StepResult) {
	if sr.Category == core.ErrCategoryConnection {
		return
	}
	var buf bytes.Buffer
	if err := tree.Dump(ctx, fr.engine.Provider(), &buf, fr.engine.Options().SnapshotMaxNodes); err != nil {
		fr.log.Debugw("tree dump for attachment failed", "step", sr.Index, "error", err)
		return
	}
	path := fmt.Sprintf("assets/flow-%03d/step-%03d-tree.txt", fr.flowIdx, sr.Index)
	sr.Attachments = append(sr.Attachments, core.NewTreeAttachment(path, buf.Bytes()))
}

func hasFailed(steps []core.StepResult) bool {
	for _, s := range steps {
		if s.Status == core.StatusFailed || s.Status == core.StatusErrored {
			return true
		}
	}
	return false
}

// presentNotReady reads the tree once for a matching node that is hidden
// or disabled.
func (fr *flowRunner) presentNotReady(ctx context.Context, loc tree.Locator) (tree.Attributes, bool) {
	handles, err := fr.engine.Provider().Query(ctx, loc)
	if err != nil {
		return tree.Attributes{}, false
	}
	for i := len(handles) - 1; i >= 0; i-- {
		attrs, err := handles[i].Attributes(ctx)
		if err == nil && !attrs.Ready() {
			return attrs, true
		}
	}
	return tree.Attributes{}, false
}

func callOptions(sel *flow.Selector) []locator.CallOption {
	var opts []locator.CallOption
	if sel.MaxRetries > 0 {
		opts = append(opts, locator.WithMaxRetries(sel.MaxRetries))
	}
	if sel.Transient {
		opts = append(opts, locator.WithTransientTarget())
	}
	return opts
}

// notFound reports a search that ended without a node. When every failure
// came from an unreachable provider the step is an infrastructure error; a
// target that exists but never became showing and enabled is reported as
// not visible.
func (fr *flowRunner) notFound(ctx context.Context, loc tree.Locator, res locator.SearchResult) error {
	if core.CategoryOf(res.LastErr) == core.ErrCategoryConnection {
		return core.ErrProviderBroken.WithCause(res.LastErr).WithMessage(
			fmt.Sprintf("%s: provider unreachable", loc))
	}
	if attrs, ok := fr.presentNotReady(ctx, loc); ok {
		return core.ErrElementNotVisible.WithMessage(fmt.Sprintf("%s is present but not ready after %v",
			loc, res.Elapsed.Round(time.Millisecond))).WithDetails(map[string]interface{}{
			"showing": attrs.Showing,
			"enabled": attrs.Enabled,
		})
	}
	err := core.ErrElementNotFound.WithMessage(fmt.Sprintf("%s not found after %d attempts in %v",
		loc, res.Attempts, res.Elapsed.Round(time.Millisecond)))
	if res.LastErr != nil {
		err = err.WithCause(res.LastErr)
	}
	return err
}
