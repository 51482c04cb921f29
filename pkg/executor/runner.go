// Package executor runs parsed flows against a locator engine and collects
// step, flow and suite results.
package executor

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/devicelab-dev/a11y-runner/pkg/core"
	"github.com/devicelab-dev/a11y-runner/pkg/flow"
	"github.com/devicelab-dev/a11y-runner/pkg/locator"
	"github.com/devicelab-dev/a11y-runner/pkg/logger"
)

// ErrNoFlows is returned when Run is given nothing to execute.
var ErrNoFlows = errors.New("no flows to run")

// RunnerConfig configures the flow runner.
type RunnerConfig struct {
	Name         string              // Suite name for reports
	StopOnFail   bool                // Skip remaining flows after the first failure
	StopOnBroken bool                // Skip remaining flows once the provider is unreachable
	Artifacts    core.ArtifactConfig // When to attach tree snapshots

	// Live progress callbacks
	OnFlowStart    func(flowIdx, totalFlows int, name, file string)
	OnStepComplete func(idx int, desc string, status core.StepStatus, d time.Duration, err string)
	OnFlowEnd      func(name string, status core.StepStatus, d time.Duration)
}

// Runner executes flows sequentially on one engine.
type Runner struct {
	config RunnerConfig
	engine *locator.Engine
	log    *zap.SugaredLogger
}

// New creates a runner over engine. The engine must not be shared with
// another runner.
func New(engine *locator.Engine, cfg RunnerConfig) *Runner {
	return &Runner{
		config: cfg,
		engine: engine,
		log:    logger.Named("executor"),
	}
}

// Run executes flows in order and returns the suite result.
func (r *Runner) Run(ctx context.Context, flows []*flow.Flow) (*core.SuiteResult, error) {
	if len(flows) == 0 {
		return nil, ErrNoFlows
	}
	clk := r.engine.Clock()
	suite := newSuite(r.config.Name, clk.Now())

	stopped := ""
	for i, f := range flows {
		if stopped == "" && ctx.Err() != nil {
			stopped = "execution cancelled"
		}
		if stopped != "" {
			suite.Flows = append(suite.Flows, skippedFlow(f, clk.Now(), stopped))
			continue
		}

		res, broken := r.RunFlow(ctx, f, i, len(flows))
		suite.Flows = append(suite.Flows, res)

		switch {
		case broken && r.config.StopOnBroken:
			stopped = "provider unavailable"
			r.log.Errorw("provider unavailable, skipping remaining flows", "flow", res.Name, "remaining", len(flows)-i-1)
		case r.config.StopOnFail && !res.Status.IsSuccess():
			stopped = "stopped after failure"
		}
	}

	suite.Duration = clk.Now().Sub(suite.StartTime)
	suite.ComputeSummary()
	return suite, nil
}

// RunFlow executes one flow. It reports whether a step hit an unreachable
// provider.
func (r *Runner) RunFlow(ctx context.Context, f *flow.Flow, flowIdx, totalFlows int) (core.FlowResult, bool) {
	fr := &flowRunner{
		flow:       f,
		engine:     r.engine,
		config:     r.config,
		log:        r.log.With("flow", f.DisplayName()),
		flowIdx:    flowIdx,
		totalFlows: totalFlows,
	}
	return fr.run(ctx)
}

func newSuite(name string, start time.Time) *core.SuiteResult {
	if name == "" {
		name = "a11y-runner"
	}
	return &core.SuiteResult{
		Name:      name,
		RunID:     start.UTC().Format("20060102-150405"),
		StartTime: start,
	}
}

// skippedFlow records a flow that never ran; every step is skipped.
func skippedFlow(f *flow.Flow, now time.Time, reason string) core.FlowResult {
	res := core.FlowResult{
		Name:      f.DisplayName(),
		FilePath:  f.SourcePath,
		Tags:      f.Config.Tags,
		Context:   f.Config.Context,
		Status:    core.StatusSkipped,
		StartTime: now,
		Message:   reason,
	}
	for i, step := range f.Steps {
		res.Steps = append(res.Steps, skippedStep(i, step, now, reason))
	}
	res.ComputeSummary()
	return res
}

func skippedStep(idx int, step flow.Step, now time.Time, reason string) core.StepResult {
	return core.StepResult{
		Index:       idx,
		Command:     string(step.Type()),
		Description: step.Describe(),
		Status:      core.StatusSkipped,
		StartTime:   now,
		Message:     reason,
	}
}
