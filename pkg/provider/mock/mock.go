// Package mock provides a scripted accessibility tree for testing without a
// live application. Element timing is driven by a clock.Clock, so tests using
// clock.Manual are fully deterministic.
package mock

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/a11y-runner/pkg/clock"
	"github.com/devicelab-dev/a11y-runner/pkg/core"
	"github.com/devicelab-dev/a11y-runner/pkg/tree"
)

// Config configures mock provider behavior.
type Config struct {
	// Application is the root node name.
	Application string
	// QueryLatency is slept on the provider clock before every Query.
	QueryLatency time.Duration
}

// Scene is the YAML form of a scripted tree.
type Scene struct {
	Application string        `yaml:"application"`
	Latency     time.Duration `yaml:"latency,omitempty"`
	Elements    []Element     `yaml:"elements"`
}

// Invocation records one successful Invoke.
type Invocation struct {
	ID     string
	Name   string
	Action tree.Action
	At     time.Duration // Offset from provider creation
}

// Provider is a scripted implementation of tree.Provider and tree.Activator.
type Provider struct {
	Config Config

	mu          sync.Mutex
	clock       clock.Clock
	start       time.Time
	instances   []*instance
	serial      int
	queries     int
	queryErrs   []error
	brokenErr   error
	rootErr     error
	invokeErrs  map[string][]error
	invocations []Invocation
	hooks       map[string][]func(tree.Action)
	activations []string
	activateErr error
	onActivate  func(target string)
}

// New creates a mock provider whose element offsets start at c.Now().
func New(c clock.Clock, cfg Config, elements ...Element) *Provider {
	if cfg.Application == "" {
		cfg.Application = "mock-app"
	}
	p := &Provider{
		Config:     cfg,
		clock:      c,
		start:      c.Now(),
		invokeErrs: make(map[string][]error),
		hooks:      make(map[string][]func(tree.Action)),
	}
	p.Add(elements...)
	return p
}

// LoadScene reads a YAML scene file.
func LoadScene(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene: %w", err)
	}
	var s Scene
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scene %s: %w", path, err)
	}
	return &s, nil
}

// NewFromScene creates a provider populated from a scene.
func NewFromScene(c clock.Clock, s *Scene) *Provider {
	return New(c, Config{Application: s.Application, QueryLatency: s.Latency}, s.Elements...)
}

// Add inserts elements (and their nested children) with offsets relative to now.
func (p *Provider) Add(elements ...Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addLocked(p.clock.Now(), "", elements)
}

func (p *Provider) addLocked(base time.Time, parent string, elements []Element) {
	for _, e := range elements {
		if e.Parent == "" {
			e.Parent = parent
		}
		if e.ID == "" {
			e.ID = fmt.Sprintf("node-%d", p.serial)
		}
		children := e.Children
		p.serial++
		p.instances = append(p.instances, &instance{spec: e, base: base, serial: p.serial})
		p.addLocked(base, e.ID, children)
	}
}

// Remove invalidates every instance of id immediately.
func (p *Provider) Remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, in := range p.instances {
		if in.spec.ID == id {
			in.removed = true
		}
	}
}

// Rerender replaces the live instance of id with a fresh one in the same
// state. Handles to the old instance become stale and the new one sorts last.
func (p *Provider) Rerender(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.clock.Now()
	for _, in := range p.instances {
		if in.spec.ID != id || !in.alive(now) {
			continue
		}
		spec := in.clone(now)
		patches := in.patches
		in.removed = true
		p.serial++
		p.instances = append(p.instances, &instance{spec: spec, base: now, serial: p.serial, patches: patches})
		return
	}
}

// Set patches the attributes of every instance of id from now on.
func (p *Provider) Set(id string, patch func(*tree.Attributes)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, in := range p.instances {
		if in.spec.ID == id {
			in.patches = append(in.patches, patch)
		}
	}
}

// FailQueries makes the next len(errs) queries fail with errs in order.
func (p *Provider) FailQueries(errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queryErrs = append(p.queryErrs, errs...)
}

// SetBroken makes every query fail with err until cleared with nil.
func (p *Provider) SetBroken(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.brokenErr = err
}

// SetRootError makes Root fail with err until cleared with nil.
func (p *Provider) SetRootError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rootErr = err
}

// FailInvoke makes the next len(errs) invocations on id fail with errs in order.
func (p *Provider) FailInvoke(id string, errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invokeErrs[id] = append(p.invokeErrs[id], errs...)
}

// OnInvoke registers fn to run after every successful Invoke on id.
func (p *Provider) OnInvoke(id string, fn func(tree.Action)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hooks[id] = append(p.hooks[id], fn)
}

// OnActivate registers fn to run after every successful Activate.
func (p *Provider) OnActivate(fn func(target string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onActivate = fn
}

// SetActivateError makes Activate fail with err until cleared with nil.
func (p *Provider) SetActivateError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activateErr = err
}

// Invocations returns every successful Invoke in order.
func (p *Provider) Invocations() []Invocation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Invocation(nil), p.invocations...)
}

// Activations returns every activated target in order.
func (p *Provider) Activations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.activations...)
}

// QueryCount returns how many times Query was called.
func (p *Provider) QueryCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queries
}

// Query returns live nodes matching loc in creation order.
func (p *Provider) Query(ctx context.Context, loc tree.Locator) ([]tree.Handle, error) {
	if p.Config.QueryLatency > 0 {
		if err := p.clock.Sleep(ctx, p.Config.QueryLatency); err != nil {
			return nil, err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries++

	if len(p.queryErrs) > 0 {
		err := p.queryErrs[0]
		p.queryErrs = p.queryErrs[1:]
		return nil, err
	}
	if p.brokenErr != nil {
		return nil, p.brokenErr
	}

	now := p.clock.Now()
	var handles []tree.Handle
	for _, in := range p.liveLocked(now) {
		if loc.Matches(in.attributes(now)) {
			handles = append(handles, &handle{p: p, in: in})
		}
	}
	return handles, nil
}

// Root returns the synthetic application node.
func (p *Provider) Root(ctx context.Context) (tree.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rootErr != nil {
		return nil, p.rootErr
	}
	return &handle{p: p}, nil
}

// Activate records target and runs the activation hook.
func (p *Provider) Activate(ctx context.Context, target string) error {
	p.mu.Lock()
	if p.activateErr != nil {
		err := p.activateErr
		p.mu.Unlock()
		return err
	}
	p.activations = append(p.activations, target)
	hook := p.onActivate
	p.mu.Unlock()

	if hook != nil {
		hook(target)
	}
	return nil
}

// liveLocked returns live instances sorted by appearance time, then insertion.
func (p *Provider) liveLocked(now time.Time) []*instance {
	var live []*instance
	for _, in := range p.instances {
		if in.alive(now) {
			live = append(live, in)
		}
	}
	sort.SliceStable(live, func(i, j int) bool {
		ai, aj := live[i].appearsAt(), live[j].appearsAt()
		if !ai.Equal(aj) {
			return ai.Before(aj)
		}
		return live[i].serial < live[j].serial
	})
	return live
}

func (p *Provider) offset() time.Duration {
	return p.clock.Now().Sub(p.start)
}

// handle is a reference to one instance; in == nil is the root.
type handle struct {
	p  *Provider
	in *instance
}

func (h *handle) Attributes(ctx context.Context) (tree.Attributes, error) {
	h.p.mu.Lock()
	defer h.p.mu.Unlock()
	if h.in == nil {
		return tree.Attributes{Role: "application", Name: h.p.Config.Application, Showing: true, Enabled: true}, nil
	}
	now := h.p.clock.Now()
	if !h.in.alive(now) {
		return tree.Attributes{}, core.ErrStaleHandle.WithMessage(fmt.Sprintf("node %s is stale", h.in.spec.ID))
	}
	return h.in.attributes(now), nil
}

func (h *handle) Children(ctx context.Context) ([]tree.Handle, error) {
	h.p.mu.Lock()
	defer h.p.mu.Unlock()
	now := h.p.clock.Now()
	parent := ""
	if h.in != nil {
		if !h.in.alive(now) {
			return nil, core.ErrStaleHandle.WithMessage(fmt.Sprintf("node %s is stale", h.in.spec.ID))
		}
		parent = h.in.spec.ID
	}
	var out []tree.Handle
	for _, in := range h.p.liveLocked(now) {
		if in.spec.Parent == parent {
			out = append(out, &handle{p: h.p, in: in})
		}
	}
	return out, nil
}

func (h *handle) Invoke(ctx context.Context, action tree.Action) error {
	if h.in == nil {
		return core.ErrActionUnsupported.WithMessage("cannot invoke the application root")
	}

	p := h.p
	p.mu.Lock()
	now := p.clock.Now()
	id := h.in.spec.ID
	if !h.in.alive(now) {
		p.mu.Unlock()
		return core.ErrStaleHandle.WithMessage(fmt.Sprintf("node %s is stale", id))
	}
	if errs := p.invokeErrs[id]; len(errs) > 0 {
		p.invokeErrs[id] = errs[1:]
		p.mu.Unlock()
		return errs[0]
	}

	attrs := h.in.attributes(now)
	p.invocations = append(p.invocations, Invocation{ID: id, Name: attrs.Name, Action: action, At: p.offset()})
	switch action.Kind {
	case tree.ActionSetText:
		text := action.Text
		h.in.patches = append(h.in.patches, func(a *tree.Attributes) { a.Text = text })
	case tree.ActionClick:
		if h.in.spec.Toggle {
			checked := !attrs.Checked
			h.in.patches = append(h.in.patches, func(a *tree.Attributes) { a.Checked = checked })
		}
		if len(h.in.spec.Spawns) > 0 {
			p.addLocked(now, "", h.in.spec.Spawns)
		}
	}
	hooks := append([]func(tree.Action){}, p.hooks[id]...)
	p.mu.Unlock()

	for _, fn := range hooks {
		fn(action)
	}
	return nil
}
