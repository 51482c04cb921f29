package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/a11y-runner/pkg/config"
	"github.com/devicelab-dev/a11y-runner/pkg/core"
	"github.com/devicelab-dev/a11y-runner/pkg/executor"
	"github.com/devicelab-dev/a11y-runner/pkg/flow"
	"github.com/devicelab-dev/a11y-runner/pkg/locator"
	"github.com/devicelab-dev/a11y-runner/pkg/logger"
	"github.com/devicelab-dev/a11y-runner/pkg/report"
	"github.com/devicelab-dev/a11y-runner/pkg/validator"
)

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Run scenario flows",
	ArgsUsage: "<flow-file-or-folder>...",
	Description: `Runs every flow found in the given files and folders, in order.
Without arguments the flows listed in the settings file are run.`,
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "include-tags",
			Usage: "Only include flows with these tags",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-tags",
			Usage: "Exclude flows with these tags",
		},
		&cli.StringFlag{
			Name:  "output",
			Usage: "Output directory for reports (default: ./reports)",
		},
		&cli.BoolFlag{
			Name:  "flatten",
			Usage: "Don't create timestamp subfolder (requires --output)",
		},
		&cli.IntFlag{
			Name:  "parallel",
			Usage: "Run flows on N independent provider connections",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Default locate timeout, overriding the settings",
		},
		&cli.BoolFlag{
			Name:  "stop-on-fail",
			Usage: "Skip remaining flows after the first failure",
		},
		&cli.BoolFlag{
			Name:  "stop-on-broken",
			Usage: "Skip remaining flows once the provider is unreachable",
			Value: true,
		},
		&cli.StringFlag{
			Name:  "capture",
			Usage: "When to attach tree snapshots (failure, always, never)",
			Value: "failure",
		},
		&cli.BoolFlag{
			Name:  "allure",
			Usage: "Also write Allure results",
		},
	},
	Action: runFlows,
}

func runFlows(c *cli.Context) error {
	settings, err := loadSettings(c)
	if err != nil {
		return err
	}
	if c.IsSet("timeout") {
		settings.DefaultTimeout = c.Duration("timeout")
		if err := settings.Validate(); err != nil {
			return err
		}
	}
	artifacts, err := artifactConfig(c.String("capture"))
	if err != nil {
		return err
	}

	paths := c.Args().Slice()
	if len(paths) == 0 {
		paths = settings.Flows
	}
	if len(paths) == 0 {
		return fmt.Errorf("at least one flow file or folder is required")
	}
	include := c.StringSlice("include-tags")
	if len(include) == 0 {
		include = settings.IncludeTags
	}
	exclude := c.StringSlice("exclude-tags")
	if len(exclude) == 0 {
		exclude = settings.ExcludeTags
	}

	flows, err := validateFlows(c, paths, include, exclude)
	if err != nil {
		return err
	}

	outputDir, err := resolveOutputDir(c.String("output"), c.Bool("flatten"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pc := providerConfigFrom(c)
	out := newPrinter(c.App.Writer)
	cfg := executor.RunnerConfig{
		Name:           "a11y-runner",
		StopOnFail:     c.Bool("stop-on-fail"),
		StopOnBroken:   c.Bool("stop-on-broken"),
		Artifacts:      artifacts,
		OnFlowStart:    out.flowStart,
		OnStepComplete: out.stepComplete,
		OnFlowEnd:      out.flowEnd,
	}

	log := logger.Named("cli")
	log.Infow("run started", "flows", len(flows), "provider", pc.Kind, "profile", settings.Profile, "output", outputDir)

	var suite *core.SuiteResult
	if n := c.Int("parallel"); n > 1 {
		factory := func(ctx context.Context, w int) (*locator.Engine, func(), error) {
			return openEngine(ctx, pc, settings, w+1)
		}
		suite, err = executor.NewParallelRunner(n, factory, cfg).Run(ctx, flows)
	} else {
		engine, cleanup, oerr := openEngine(ctx, pc, settings, 0)
		defer cleanup()
		if oerr != nil {
			return oerr
		}
		suite, err = executor.New(engine, cfg).Run(ctx, flows)
	}
	if err != nil {
		log.Errorw("run failed", "error", err)
		if suite == nil {
			return err
		}
	}
	log.Infow("run finished", "passed", suite.PassedFlows, "failed", suite.FailedFlows, "skipped", suite.SkippedFlows)

	out.summary(suite)
	if err := writeReports(c, outputDir, suite, settings, pc.Kind); err != nil {
		logger.Error("failed to write reports to %s: %v", outputDir, err)
		fmt.Fprintf(c.App.ErrWriter, "  %s failed to write reports: %v\n", yellow.Sprint("⚠"), err)
	}

	if err != nil {
		return err
	}
	if !suite.Success() {
		return cli.Exit("", 1)
	}
	return nil
}

// validateFlows parses every flow up front and prints all errors at once.
func validateFlows(c *cli.Context, paths, include, exclude []string) ([]*flow.Flow, error) {
	result := validator.New(include, exclude).Validate(paths...)
	if !result.IsValid() {
		fmt.Fprintln(c.App.ErrWriter, "Validation errors:")
		for _, err := range result.Errors {
			fmt.Fprintf(c.App.ErrWriter, "  - %v\n", err)
		}
		return nil, fmt.Errorf("validation failed with %d error(s)", len(result.Errors))
	}
	if len(result.Flows) == 0 {
		return nil, fmt.Errorf("no flows to run in %v", paths)
	}
	return result.Flows, nil
}

func writeReports(c *cli.Context, dir string, suite *core.SuiteResult, s *config.Settings, provider string) error {
	meta := report.Meta{Version: Version, Provider: provider, Profile: string(s.Profile)}
	if err := report.Write(dir, suite, meta); err != nil {
		return err
	}
	if err := report.WriteJUnit(dir, suite); err != nil {
		return err
	}

	fmt.Fprintln(c.App.Writer)
	fmt.Fprintln(c.App.Writer, "  Reports:")
	fmt.Fprintf(c.App.Writer, "    JSON:   %s\n", filepath.Join(dir, report.FileName))
	fmt.Fprintf(c.App.Writer, "    JUnit:  %s\n", filepath.Join(dir, report.JUnitFile))
	if c.Bool("allure") {
		if err := report.GenerateAllure(dir); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "    Allure: %s\n", filepath.Join(dir, report.AllureDir))
	}
	return nil
}

func artifactConfig(mode string) (core.ArtifactConfig, error) {
	a := core.DefaultArtifactConfig()
	switch mode {
	case "", "failure":
	case "always":
		a.CaptureOnSuccess = true
	case "never":
		a.Snapshot = false
	default:
		return a, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("unknown capture mode %q (want failure, always or never)", mode))
	}
	return a, nil
}

// resolveOutputDir determines the output directory based on flags.
//   - No --output: ./reports/<timestamp>/
//   - --output given: <output>/<timestamp>/
//   - --output + --flatten: <output>/
func resolveOutputDir(output string, flatten bool) (string, error) {
	if flatten && output == "" {
		return "", fmt.Errorf("--flatten requires --output to be specified")
	}

	baseDir := output
	if baseDir == "" {
		baseDir = "./reports"
	}
	if flatten {
		return filepath.Clean(baseDir), nil
	}
	return filepath.Join(baseDir, time.Now().Format("2006-01-02_15-04-05")), nil
}
