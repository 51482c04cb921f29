package config

import (
	"os"
	"path/filepath"
	"sync"
)

const envHome = "A11Y_RUNNER_HOME"

var (
	homeOnce sync.Once
	homeDir  string
)

// GetHome returns the directory holding logs: $A11Y_RUNNER_HOME, else the
// parent of <home>/bin when the binary is installed there, else
// <user cache dir>/a11y-runner, else the working directory.
func GetHome() string {
	homeOnce.Do(func() {
		homeDir = resolveHome()
	})
	return homeDir
}

// GetLogDir returns <home>/logs.
func GetLogDir() string {
	return filepath.Join(GetHome(), "logs")
}

// DefaultLogPath returns <home>/logs/a11y-runner.log.
func DefaultLogPath() string {
	return filepath.Join(GetLogDir(), "a11y-runner.log")
}

func resolveHome() string {
	if env := os.Getenv(envHome); env != "" {
		return env
	}

	if execPath, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
			execPath = resolved
		}
		binDir := filepath.Dir(execPath)
		if filepath.Base(binDir) == "bin" {
			return filepath.Dir(binDir)
		}
	}

	if cache, err := os.UserCacheDir(); err == nil {
		return filepath.Join(cache, "a11y-runner")
	}
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}

	return "."
}

// ResetHome forgets the cached home directory.
func ResetHome() {
	homeOnce = sync.Once{}
	homeDir = ""
}
