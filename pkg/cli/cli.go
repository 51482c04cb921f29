// Package cli provides the command-line interface for a11y-runner.
package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/a11y-runner/pkg/config"
	"github.com/devicelab-dev/a11y-runner/pkg/logger"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "provider",
		Aliases: []string{"p"},
		Usage:   "Accessibility tree provider (bridge, web, mock)",
		Value:   "bridge",
		EnvVars: []string{"A11Y_PROVIDER"},
	},
	&cli.StringFlag{
		Name:    "bridge",
		Usage:   "Bridge daemon socket path or http:// URL",
		Value:   "/tmp/a11y-bridge.sock",
		EnvVars: []string{"A11Y_BRIDGE"},
	},
	&cli.StringFlag{
		Name:    "cdp-url",
		Usage:   "DevTools endpoint of a running browser (web provider); empty launches Chrome",
		EnvVars: []string{"A11Y_CDP_URL"},
	},
	&cli.StringFlag{
		Name:    "url",
		Usage:   "Page to open before running (web provider)",
		EnvVars: []string{"A11Y_URL"},
	},
	&cli.BoolFlag{
		Name:    "headless",
		Usage:   "Launch Chrome headless (web provider)",
		EnvVars: []string{"A11Y_HEADLESS"},
	},
	&cli.StringFlag{
		Name:    "scene",
		Usage:   "Scripted tree YAML (mock provider)",
		EnvVars: []string{"A11Y_SCENE"},
	},
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Settings file (default: a11y.yaml in the working directory)",
		EnvVars: []string{"A11Y_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "profile",
		Usage:   "Default profile (local, ci) when the settings file names none",
		EnvVars: []string{config.EnvProfile},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Mirror debug logs to stderr",
		EnvVars: []string{"A11Y_VERBOSE"},
	},
	&cli.StringFlag{
		Name:    "log-file",
		Usage:   "JSON log file (default: <home>/logs/a11y-runner.log)",
		EnvVars: []string{"A11Y_LOG_FILE"},
	},
	&cli.BoolFlag{
		Name:    "no-ansi",
		Usage:   "Disable ANSI colors",
		EnvVars: []string{"A11Y_NO_ANSI"},
	},
}

// NewApp builds the application. Output goes to w.
func NewApp(w io.Writer) *cli.App {
	return &cli.App{
		Name:    "a11y-runner",
		Usage:   "Resilient UI automation over accessibility trees",
		Version: Version,
		Description: `a11y-runner executes YAML scenario flows against an application's
accessibility tree, tolerating slow rendering, re-renders and short-lived
notifications.

Examples:
  a11y-runner run flows/
  a11y-runner --provider web --url https://example.test run checkout.yaml
  a11y-runner --provider mock --scene wallet.yaml tree
  a11y-runner config`,
		Flags: GlobalFlags,
		Commands: []*cli.Command{
			runCommand,
			treeCommand,
			configCommand,
		},
		Writer:    w,
		ErrWriter: w,
		Before:    setup,
		After: func(*cli.Context) error {
			logger.Close()
			return nil
		},
	}
}

// Execute runs the CLI.
func Execute() {
	if err := NewApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup configures colors and the process logger from global flags.
func setup(c *cli.Context) error {
	if c.Bool("no-ansi") {
		color.NoColor = true
	}

	logPath := c.String("log-file")
	if logPath == "" {
		logPath = config.DefaultLogPath()
	}
	opts := logger.Options{Path: logPath}
	if c.Bool("verbose") {
		opts.Console = os.Stderr
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		fmt.Fprintf(c.App.ErrWriter, "Warning: failed to create log directory: %v\n", err)
		return nil
	}
	if err := logger.InitWithOptions(opts); err != nil {
		fmt.Fprintf(c.App.ErrWriter, "Warning: failed to initialize logger: %v\n", err)
		return nil
	}
	logger.SetVerbose(c.Bool("verbose"))
	logger.Info("a11y-runner %s: %s", Version, strings.Join(os.Args[1:], " "))
	return nil
}

// loadSettings resolves settings from the config flag, the profile flag and
// the environment.
func loadSettings(c *cli.Context) (*config.Settings, error) {
	profile := config.Profile(c.String("profile"))
	if profile == "" {
		profile = config.ProfileFromEnv(os.LookupEnv)
	}
	return config.ResolveFor(".", c.String("config"), profile)
}
