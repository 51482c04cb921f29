package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/devicelab-dev/a11y-runner/pkg/core"
	"github.com/devicelab-dev/a11y-runner/pkg/flow"
	"github.com/devicelab-dev/a11y-runner/pkg/locator"
	"github.com/devicelab-dev/a11y-runner/pkg/logger"
)

// EngineFactory opens the engine worker w runs on. Each call must return an
// engine over its own provider instance; cleanup may be nil.
type EngineFactory func(ctx context.Context, w int) (engine *locator.Engine, cleanup func(), err error)

// workItem is a flow and its index in the original flow list.
type workItem struct {
	flow  *flow.Flow
	index int
}

// ParallelRunner distributes flows across workers, each owning an
// independent engine. Callbacks in the config are invoked from worker
// goroutines and must be safe for concurrent use.
type ParallelRunner struct {
	workers int
	factory EngineFactory
	config  RunnerConfig
}

// NewParallelRunner creates a runner with up to workers concurrent engines.
func NewParallelRunner(workers int, factory EngineFactory, cfg RunnerConfig) *ParallelRunner {
	if workers < 1 {
		workers = 1
	}
	return &ParallelRunner{workers: workers, factory: factory, config: cfg}
}

// Run executes flows on all workers. All workers pull from the same queue
// until it drains; results keep the input order.
func (pr *ParallelRunner) Run(ctx context.Context, flows []*flow.Flow) (*core.SuiteResult, error) {
	if len(flows) == 0 {
		return nil, ErrNoFlows
	}
	n := pr.workers
	if n > len(flows) {
		n = len(flows)
	}

	engines, cleanup, err := pr.open(ctx, n)
	defer cleanup()
	if err != nil {
		return nil, err
	}

	clk := engines[0].Clock()
	suite := newSuite(pr.config.Name, clk.Now())

	queue := make(chan workItem, len(flows))
	for i, f := range flows {
		queue <- workItem{flow: f, index: i}
	}
	close(queue)

	results := make([]core.FlowResult, len(flows))
	done := make([]bool, len(flows))
	var (
		mu      sync.Mutex
		stopped string
	)
	stopReason := func() string {
		mu.Lock()
		defer mu.Unlock()
		if stopped == "" && ctx.Err() != nil {
			stopped = "execution cancelled"
		}
		return stopped
	}

	var g errgroup.Group
	for w := 0; w < n; w++ {
		runner := New(engines[w], pr.config)
		runner.log = runner.log.With("worker", w)
		g.Go(func() error {
			for item := range queue {
				if reason := stopReason(); reason != "" {
					results[item.index] = skippedFlow(item.flow, clk.Now(), reason)
					done[item.index] = true
					continue
				}
				res, broken, err := runGuarded(ctx, runner, item, len(flows))
				results[item.index] = res
				done[item.index] = true
				if err != nil {
					return err
				}

				mu.Lock()
				switch {
				case stopped != "":
				case broken && pr.config.StopOnBroken:
					stopped = "provider unavailable"
				case pr.config.StopOnFail && !res.Status.IsSuccess():
					stopped = "stopped after failure"
				}
				mu.Unlock()
			}
			return ctx.Err()
		})
	}
	err = g.Wait()

	for i := range results {
		if !done[i] {
			results[i] = skippedFlow(flows[i], clk.Now(), "worker failed")
		}
	}
	suite.Flows = results
	suite.Duration = clk.Now().Sub(suite.StartTime)
	suite.ComputeSummary()

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		// Cancelled flows are already recorded as skipped.
		logger.Named("executor").Warnw("run interrupted", "skipped", suite.SkippedFlows, "error", err)
	default:
		logger.Named("executor").Errorw("worker failed", "error", err)
		return suite, err
	}
	return suite, nil
}

// runGuarded runs one flow, turning a panic into an errored result.
func runGuarded(ctx context.Context, runner *Runner, item workItem, total int) (res core.FlowResult, broken bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("flow %q panicked: %v", item.flow.DisplayName(), r)
			res = core.FlowResult{
				Name:     item.flow.DisplayName(),
				FilePath: item.flow.SourcePath,
				Status:   core.StatusErrored,
				Error:    err.Error(),
			}
		}
	}()
	res, broken = runner.RunFlow(ctx, item.flow, item.index, total)
	return res, broken, nil
}

// open creates n engines concurrently. The returned cleanup releases every
// engine that was opened, even when another failed.
func (pr *ParallelRunner) open(ctx context.Context, n int) ([]*locator.Engine, func(), error) {
	engines := make([]*locator.Engine, n)
	cleanups := make([]func(), n)
	cleanup := func() {
		for _, c := range cleanups {
			if c != nil {
				c()
			}
		}
	}

	// Providers may bind their session to the context they are opened with,
	// so they get ctx rather than a group context cancelled by Wait.
	var g errgroup.Group
	for w := 0; w < n; w++ {
		g.Go(func() error {
			e, c, err := pr.factory(ctx, w)
			if err != nil {
				return fmt.Errorf("worker %d: %w", w, err)
			}
			engines[w] = e
			cleanups[w] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Named("executor").Errorw("failed to open engines", "workers", n, "error", err)
		return nil, cleanup, err
	}
	return engines, cleanup, nil
}
