// Package webax exposes the accessibility tree of a Chrome tab through the
// DevTools protocol, so browser applications can be driven like desktop ones.
package webax

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/accessibility"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/devicelab-dev/a11y-runner/pkg/core"
	"github.com/devicelab-dev/a11y-runner/pkg/logger"
	"github.com/devicelab-dev/a11y-runner/pkg/tree"
)

// Provider implements tree.Provider and tree.Activator for one browser.
// Activate may move it to another tab of the same browser.
type Provider struct {
	mu      sync.Mutex
	tab     context.Context
	cancels []context.CancelFunc
	log     *zap.SugaredLogger
}

// Connect attaches to a running browser. url is either the DevTools
// websocket URL or the http://host:port debugging endpoint.
func Connect(ctx context.Context, url string) (*Provider, error) {
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, url)
	return attach(allocCtx, allocCancel)
}

// Launch starts a local Chrome.
func Launch(ctx context.Context, headless bool) (*Provider, error) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", headless),
		chromedp.Flag("force-renderer-accessibility", true),
		chromedp.DisableGPU,
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	return attach(allocCtx, allocCancel)
}

func attach(allocCtx context.Context, allocCancel context.CancelFunc) (*Provider, error) {
	tab, tabCancel := chromedp.NewContext(allocCtx)
	p := &Provider{
		tab:     tab,
		cancels: []context.CancelFunc{tabCancel, allocCancel},
		log:     logger.Named("webax"),
	}
	if err := chromedp.Run(tab, chromedp.ActionFunc(func(ctx context.Context) error {
		return accessibility.Enable().Do(ctx)
	})); err != nil {
		p.Close()
		return nil, core.ErrProviderBroken.WithCause(err).WithMessage("could not attach to browser")
	}
	return p, nil
}

// Close detaches from the browser; a launched browser is shut down.
func (p *Provider) Close() {
	p.mu.Lock()
	cancels := p.cancels
	p.cancels = nil
	p.mu.Unlock()
	for _, c := range cancels {
		c()
	}
}

// Navigate loads url in the current tab.
func (p *Provider) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

// run executes actions on the current tab, bounded by the caller's ctx.
func (p *Provider) run(ctx context.Context, actions ...chromedp.Action) error {
	p.mu.Lock()
	tab := p.tab
	p.mu.Unlock()

	runCtx, cancel := context.WithCancel(tab)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Query returns non-ignored nodes matching loc in document order.
func (p *Provider) Query(ctx context.Context, loc tree.Locator) ([]tree.Handle, error) {
	var nodes []*accessibility.Node
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		nodes, err = accessibility.GetFullAXTree().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}

	var out []tree.Handle
	for _, n := range nodes {
		if n == nil || n.Ignored || n.BackendDOMNodeID == 0 {
			continue
		}
		if loc.Matches(attributesOf(n)) {
			out = append(out, &handle{p: p, id: n.NodeID, backend: n.BackendDOMNodeID})
		}
	}
	p.log.Debugw("query", "locator", loc.String(), "scanned", len(nodes), "matched", len(out))
	return out, nil
}

// Root returns the document node of the current tab.
func (p *Provider) Root(ctx context.Context) (tree.Handle, error) {
	var root *accessibility.Node
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		root, err = accessibility.GetRootAXNode().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, mapError(err)
	}
	return &handle{p: p, id: root.NodeID, backend: root.BackendDOMNodeID}, nil
}

// Activate switches to the tab whose title or URL contains target and
// brings it to the front. An empty target fronts the current tab.
func (p *Provider) Activate(ctx context.Context, target string) error {
	if target == "" {
		return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			return page.BringToFront().Do(ctx)
		}))
	}

	p.mu.Lock()
	tab := p.tab
	p.mu.Unlock()

	infos, err := chromedp.Targets(tab)
	if err != nil {
		return err
	}
	for _, info := range infos {
		if info.Type != "page" {
			continue
		}
		if info.Title != target && !strings.Contains(info.URL, target) && !strings.Contains(info.Title, target) {
			continue
		}
		next, cancel := chromedp.NewContext(tab, chromedp.WithTargetID(info.TargetID))
		p.mu.Lock()
		p.tab = next
		p.cancels = append([]context.CancelFunc{cancel}, p.cancels...)
		p.mu.Unlock()
		p.log.Debugw("switched tab", "target", target, "title", info.Title, "url", info.URL)
		return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			if err := accessibility.Enable().Do(ctx); err != nil {
				return err
			}
			return page.BringToFront().Do(ctx)
		}))
	}
	return fmt.Errorf("no tab matches %q", target)
}

// handle addresses a node by its DOM backend id, which survives AX tree
// rebuilds as long as the DOM node lives.
type handle struct {
	p       *Provider
	id      accessibility.NodeID
	backend cdp.BackendNodeID
}

func (h *handle) Attributes(ctx context.Context) (tree.Attributes, error) {
	var node *accessibility.Node
	err := h.p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		nodes, err := accessibility.GetPartialAXTree().
			WithBackendNodeID(h.backend).
			WithFetchRelatives(false).
			Do(ctx)
		if err != nil {
			return err
		}
		node = selectNode(nodes, int64(h.backend))
		return nil
	}))
	if err != nil {
		return tree.Attributes{}, mapError(err)
	}
	if node == nil {
		return tree.Attributes{}, core.ErrStaleHandle.WithMessage(fmt.Sprintf("backend node %d is gone", h.backend))
	}
	return attributesOf(node), nil
}

func (h *handle) Children(ctx context.Context) ([]tree.Handle, error) {
	var nodes []*accessibility.Node
	err := h.p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		nodes, err = accessibility.GetChildAXNodes(h.id).Do(ctx)
		return err
	}))
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]tree.Handle, 0, len(nodes))
	for _, n := range nodes {
		if n == nil || n.BackendDOMNodeID == 0 {
			continue
		}
		out = append(out, &handle{p: h.p, id: n.NodeID, backend: n.BackendDOMNodeID})
	}
	return out, nil
}

func (h *handle) Invoke(ctx context.Context, action tree.Action) error {
	fn, err := actionScript(action)
	if err != nil {
		return err
	}
	return h.p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithBackendNodeID(h.backend).Do(ctx)
		if err != nil {
			return mapError(err)
		}
		_, exc, err := runtime.CallFunctionOn(fn).WithObjectID(obj.ObjectID).Do(ctx)
		if err != nil {
			return mapError(err)
		}
		if exc != nil {
			return fmt.Errorf("%s failed: %s", action, exc.Text)
		}
		return nil
	}))
}

// actionScript returns the function run with the node as `this`. Text nodes
// delegate to their parent element.
func actionScript(action tree.Action) (string, error) {
	const target = "var el = this.nodeType === 3 ? this.parentElement : this;"
	switch action.Kind {
	case tree.ActionClick:
		return "function() {" + target + " el.scrollIntoView({block: 'center'}); el.click(); }", nil
	case tree.ActionFocus:
		return "function() {" + target + " el.focus(); }", nil
	case tree.ActionSetText:
		literal, err := json.Marshal(action.Text)
		if err != nil {
			return "", err
		}
		return "function() {" + target +
			" el.focus();" +
			" if ('value' in el) { el.value = " + string(literal) + "; } else { el.textContent = " + string(literal) + "; }" +
			" el.dispatchEvent(new Event('input', {bubbles: true}));" +
			" el.dispatchEvent(new Event('change', {bubbles: true})); }", nil
	default:
		return "", core.ErrActionUnsupported.WithMessage("unsupported action " + action.String())
	}
}
