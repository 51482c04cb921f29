package locator

import "github.com/devicelab-dev/a11y-runner/pkg/tree"

// CallOption tunes a single Find, FindAndAct or WaitForAppearance call.
type CallOption func(*callConfig)

type callConfig struct {
	maxRetries    int
	transient     bool
	payloadChild  *tree.Locator
	payloadFilter string
}

func newCallConfig(opts []CallOption) callConfig {
	var c callConfig
	for _, o := range opts {
		o(&c)
	}
	return c
}

// WithMaxRetries stops polling after n attempts even if time remains.
func WithMaxRetries(n int) CallOption {
	return func(c *callConfig) { c.maxRetries = n }
}

// WithTransientTarget marks the target as a self-dismissing notification;
// FindAndAct then debounces with the longer transient window.
func WithTransientTarget() CallOption {
	return func(c *callConfig) { c.transient = true }
}

// WithPayloadChild names the child that carries a captured node's payload.
func WithPayloadChild(loc tree.Locator) CallOption {
	return func(c *callConfig) { c.payloadChild = &loc }
}

// WithPayloadFilter accepts only payloads containing substr.
func WithPayloadFilter(substr string) CallOption {
	return func(c *callConfig) { c.payloadFilter = substr }
}
