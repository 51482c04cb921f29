// Package validator checks scenario files before execution.
// It parses every file upfront, applies tag filters and rejects steps the
// engine would refuse at run time, so a bad locator fails fast.
package validator

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/devicelab-dev/a11y-runner/pkg/flow"
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	File    string
	Step    int // 1-based; 0 when the error is about the whole file
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Step > 0 {
		return fmt.Sprintf("%s: step %d: %s", e.File, e.Step, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// Unwrap returns the underlying error, if any.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Result contains the validation result.
type Result struct {
	// Files is the list of flow file paths in execution order.
	Files []string
	// Flows holds the parsed flows, parallel to Files.
	Flows []*flow.Flow
	// Errors contains all validation errors found.
	Errors []error
}

// IsValid returns true if there are no validation errors.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

// Validator validates flow files.
type Validator struct {
	includeTags []string
	excludeTags []string
}

// New creates a new Validator.
func New(includeTags, excludeTags []string) *Validator {
	return &Validator{
		includeTags: includeTags,
		excludeTags: excludeTags,
	}
}

// Validate validates files and directories. Directories are scanned
// recursively in lexical order; a file named twice runs once.
func (v *Validator) Validate(paths ...string) *Result {
	result := &Result{}
	seen := make(map[string]bool)

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			result.Errors = append(result.Errors, &ValidationError{
				File:    path,
				Message: fmt.Sprintf("cannot access: %v", err),
			})
			continue
		}

		var files []string
		if info.IsDir() {
			files, err = collectFlowFiles(path)
			if err != nil {
				result.Errors = append(result.Errors, &ValidationError{
					File:    path,
					Message: fmt.Sprintf("failed to scan directory: %v", err),
				})
				continue
			}
		} else {
			files = []string{path}
		}

		for _, file := range files {
			abs, err := filepath.Abs(file)
			if err != nil {
				abs = file
			}
			if seen[abs] {
				continue
			}
			seen[abs] = true
			v.validateFile(file, result)
		}
	}

	return result
}

// collectFlowFiles finds all scenario files in a directory.
func collectFlowFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if flow.IsFlowFile(path) {
			files = append(files, path)
		}
		return nil
	})

	sort.Strings(files)
	return files, err
}

// validateFile parses one file and checks its steps.
func (v *Validator) validateFile(filePath string, result *Result) {
	f, err := flow.ParseFile(filePath)
	if err != nil {
		result.Errors = append(result.Errors, &ValidationError{
			File:    filePath,
			Message: fmt.Sprintf("parse error: %v", err),
		})
		return
	}

	if !flow.ShouldIncludeFlow(f, v.includeTags, v.excludeTags) {
		return
	}

	errs := validateSteps(filePath, f)
	if len(errs) > 0 {
		result.Errors = append(result.Errors, errs...)
		return
	}

	result.Files = append(result.Files, filePath)
	result.Flows = append(result.Flows, f)
}

func validateSteps(filePath string, f *flow.Flow) []error {
	var errs []error
	add := func(i int, format string, args ...interface{}) {
		errs = append(errs, &ValidationError{File: filePath, Step: i + 1, Message: fmt.Sprintf(format, args...)})
	}

	if len(f.Steps) == 0 {
		errs = append(errs, &ValidationError{File: filePath, Message: "flow has no steps"})
	}
	if f.Config.Timeout < 0 {
		errs = append(errs, &ValidationError{File: filePath, Message: "timeout must not be negative"})
	}

	for i, step := range f.Steps {
		t, ok := step.(flow.Targeted)
		if !ok {
			continue
		}
		sel := t.Target()
		if err := sel.Locator().Validate(); err != nil {
			errs = append(errs, &ValidationError{
				File:    filePath,
				Step:    i + 1,
				Message: fmt.Sprintf("%s: %v", step.Type(), err),
				Err:     err,
			})
		}
		if sel.Timeout < 0 {
			add(i, "%s: timeout must not be negative", step.Type())
		}
		if sel.MaxRetries < 0 {
			add(i, "%s: maxRetries must not be negative", step.Type())
		}
		if toast, ok := step.(*flow.WaitForToastStep); ok {
			if toast.Poll < 0 {
				add(i, "waitForToast: poll must not be negative")
			}
			if toast.Payload != nil && toast.Payload.IsEmpty() {
				add(i, "waitForToast: payload locator is empty")
			}
		}
	}
	return errs
}
