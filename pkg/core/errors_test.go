package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestExecutionError_Error(t *testing.T) {
	bare := ErrElementNotFound.WithMessage(`push button "Save" not found after 6 attempts in 10s`)
	if got := bare.Error(); got != `push button "Save" not found after 6 attempts in 10s` {
		t.Errorf("Error() = %q", got)
	}

	cause := errors.New("dial unix /tmp/a11y-bridge.sock: connect: no such file or directory")
	withCause := ErrBridgeUnreachable.WithCause(cause)
	got := withCause.Error()
	if !strings.HasPrefix(got, ErrBridgeUnreachable.Message+": ") || !strings.Contains(got, "no such file") {
		t.Errorf("Error() = %q, want message then cause", got)
	}
	if withCause.Unwrap() != cause {
		t.Errorf("Unwrap() = %v, want %v", withCause.Unwrap(), cause)
	}
}

// The With* helpers must never mutate the shared predefined values.
func TestExecutionError_CopiesLeavePredefinedIntact(t *testing.T) {
	msg := ErrTimeout.Message

	c1 := ErrTimeout.WithCause(errors.New("deadline"))
	c2 := ErrTimeout.WithMessage("window \"Send\" not ready after 3s")
	c3 := ErrTimeout.WithDetails(map[string]interface{}{"target": "Send"})

	if ErrTimeout.Cause != nil || ErrTimeout.Message != msg || ErrTimeout.Details != nil {
		t.Fatalf("predefined error mutated: %+v", ErrTimeout)
	}
	for i, c := range []*ExecutionError{c1, c2, c3} {
		if c.Code != ErrTimeout.Code || c.Category != ErrTimeout.Category {
			t.Errorf("copy %d changed identity: %+v", i, c)
		}
	}
	if c2.Message == msg {
		t.Error("WithMessage() did not replace the message")
	}
}

func TestExecutionError_WithDetails(t *testing.T) {
	base := ErrElementNotFound.WithDetails(map[string]interface{}{"role": "push button"})
	merged := base.WithDetails(map[string]interface{}{"name": "Save", "attempts": 6})

	if merged.Details["role"] != "push button" || merged.Details["name"] != "Save" {
		t.Errorf("Details = %v, want both keys", merged.Details)
	}
	if _, ok := base.Details["name"]; ok {
		t.Error("WithDetails() modified its receiver")
	}
}

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		err      *ExecutionError
		category ErrorCategory
		code     string
	}{
		{ErrElementNotFound, ErrCategoryAssertion, "element_not_found"},
		{ErrElementStillVisible, ErrCategoryAssertion, "element_still_visible"},
		{ErrElementNotVisible, ErrCategoryAssertion, "element_not_visible"},
		{ErrTextMismatch, ErrCategoryAssertion, "text_mismatch"},
		{ErrTimeout, ErrCategoryTimeout, "timeout"},
		{ErrWaitTimeout, ErrCategoryTimeout, "wait_timeout"},
		{ErrStaleHandle, ErrCategoryStale, "stale_handle"},
		{ErrProviderBroken, ErrCategoryConnection, "provider_broken"},
		{ErrBridgeUnreachable, ErrCategoryConnection, "bridge_unreachable"},
		{ErrActionFailed, ErrCategoryAction, "action_failed"},
		{ErrActionUnsupported, ErrCategoryAction, "action_unsupported"},
		{ErrInvalidLocator, ErrCategoryConfig, "invalid_locator"},
		{ErrInvalidConfig, ErrCategoryConfig, "invalid_config"},
		{ErrMissingRequired, ErrCategoryConfig, "missing_required"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if tt.err.Category != tt.category {
				t.Errorf("Category = %s, want %s", tt.err.Category, tt.category)
			}
			if tt.err.Code != tt.code {
				t.Errorf("Code = %s, want %s", tt.err.Code, tt.code)
			}
			if tt.err.Message == "" {
				t.Error("Message should not be empty")
			}
		})
	}
}

func TestNewExecutionError(t *testing.T) {
	err := NewExecutionError(ErrCategoryAction, "custom_error", "custom message")

	if err.Category != ErrCategoryAction {
		t.Errorf("Category = %s, want %s", err.Category, ErrCategoryAction)
	}
	if err.Code != "custom_error" {
		t.Errorf("Code = %s, want 'custom_error'", err.Code)
	}
	if err.Message != "custom message" {
		t.Errorf("Message = %s, want 'custom message'", err.Message)
	}
}

func TestExecutionError_ErrorsIs(t *testing.T) {
	cause := errors.New("root cause")
	err := ErrTimeout.WithCause(cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is() should find the cause")
	}
}

func TestExecutionError_IsMatchesCode(t *testing.T) {
	copied := ErrProviderBroken.WithMessage("probe failed").WithCause(errors.New("dbus down"))
	wrapped := fmt.Errorf("find push button \"Save\": %w", copied)

	if !errors.Is(wrapped, ErrProviderBroken) {
		t.Error("errors.Is() should match predefined error through copies and wrapping")
	}
	if errors.Is(wrapped, ErrStaleHandle) {
		t.Error("errors.Is() matched an unrelated code")
	}
}

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"nil", nil, ErrCategoryNone},
		{"plain", errors.New("boom"), ErrCategoryUnknown},
		{"stale", ErrStaleHandle, ErrCategoryStale},
		{"wrapped broken", fmt.Errorf("ctx: %w", ErrProviderBroken), ErrCategoryConnection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CategoryOf(tt.err); got != tt.want {
				t.Errorf("CategoryOf() = %s, want %s", got, tt.want)
			}
		})
	}
}
