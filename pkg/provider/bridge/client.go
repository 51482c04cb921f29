// Package bridge talks to an accessibility bridge daemon over JSON/HTTP.
// The daemon owns the platform accessibility API (AT-SPI, UIA, AX); this
// package only maps its endpoints onto tree.Provider.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/devicelab-dev/a11y-runner/pkg/core"
	"github.com/devicelab-dev/a11y-runner/pkg/logger"
)

// DefaultRequestTimeout bounds a single bridge request.
const DefaultRequestTimeout = 30 * time.Second

// Client communicates with the bridge daemon.
type Client struct {
	http    *http.Client
	baseURL string
	log     *zap.SugaredLogger
}

// NewClient creates a client using a Unix socket.
func NewClient(socketPath string) *Client {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
	}

	return &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   DefaultRequestTimeout,
		},
		baseURL: "http://localhost",
		log:     logger.Named("bridge"),
	}
}

// NewClientURL creates a client using TCP, e.g. http://127.0.0.1:7411.
func NewClientURL(baseURL string) *Client {
	return &Client{
		http: &http.Client{
			Transport: &http.Transport{},
			Timeout:   DefaultRequestTimeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     logger.Named("bridge"),
	}
}

// Dial picks the transport from target: URLs use TCP, anything else is a
// socket path.
func Dial(target string) *Client {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return NewClientURL(target)
	}
	return NewClient(target)
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// request makes an HTTP request to the bridge and returns the raw "value".
func (c *Client) request(ctx context.Context, method, path string, body interface{}) (json.RawMessage, error) {
	start := time.Now()

	var reqBody io.Reader
	var bodyStr string
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
		bodyStr = string(data)
		if len(bodyStr) > 100 {
			bodyStr = bodyStr[:100] + "..."
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.log.Debugw("request failed", "method", method, "path", path, "elapsed", elapsed, "error", err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, core.ErrBridgeUnreachable.WithCause(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.log.Debugw("request", "method", method, "path", path, "elapsed", elapsed,
		"status", resp.StatusCode, "body", bodyStr)

	var envelope Response
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &envelope); err != nil && resp.StatusCode < 400 {
			return nil, fmt.Errorf("parse response: %w", err)
		}
	}

	if resp.StatusCode >= 400 {
		return nil, mapError(resp.StatusCode, envelope.Value, respBody)
	}
	return envelope.Value, nil
}

// mapError converts an error response into an error matching the core codes.
func mapError(status int, value json.RawMessage, raw []byte) error {
	var e ErrorValue
	parsed := len(value) > 0 && json.Unmarshal(value, &e) == nil && (e.Error != "" || e.Message != "")

	if status == http.StatusNotFound || (parsed && e.Error == ErrStaleElement) {
		msg := "node handle is stale"
		if parsed && e.Message != "" {
			msg = e.Message
		}
		return core.ErrStaleHandle.WithMessage(msg)
	}
	if parsed {
		return fmt.Errorf("%s: %s", e.Error, e.Message)
	}
	return fmt.Errorf("bridge error %d: %s", status, string(raw))
}

// Status checks if the bridge is ready.
func (c *Client) Status(ctx context.Context) (StatusValue, error) {
	var st StatusValue
	data, err := c.request(ctx, http.MethodGet, "/status", nil)
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("parse status: %w", err)
	}
	return st, nil
}

// Root returns the application root node.
func (c *Client) Root(ctx context.Context) (NodeValue, error) {
	return c.node(ctx, "/tree/root")
}

// Query returns nodes matching the locator in creation order.
func (c *Client) Query(ctx context.Context, q QueryRequest) ([]NodeValue, error) {
	data, err := c.request(ctx, http.MethodPost, "/tree/query", q)
	if err != nil {
		return nil, err
	}
	return decodeNodes(data)
}

// Node re-reads a node by id.
func (c *Client) Node(ctx context.Context, id string) (NodeValue, error) {
	return c.node(ctx, nodePath(id, ""))
}

// Children lists a node's children.
func (c *Client) Children(ctx context.Context, id string) ([]NodeValue, error) {
	data, err := c.request(ctx, http.MethodGet, nodePath(id, "/children"), nil)
	if err != nil {
		return nil, err
	}
	return decodeNodes(data)
}

// Act performs an action on a node.
func (c *Client) Act(ctx context.Context, id string, req ActionRequest) error {
	_, err := c.request(ctx, http.MethodPost, nodePath(id, "/actions"), req)
	return err
}

// Activate brings the named window to the front.
func (c *Client) Activate(ctx context.Context, window string) error {
	_, err := c.request(ctx, http.MethodPost, "/windows/activate", ActivateRequest{Window: window})
	return err
}

func (c *Client) node(ctx context.Context, path string) (NodeValue, error) {
	var n NodeValue
	data, err := c.request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return n, err
	}
	if err := json.Unmarshal(data, &n); err != nil {
		return n, fmt.Errorf("parse node: %w", err)
	}
	if n.ID == "" {
		return n, errors.New("bridge returned a node without id")
	}
	return n, nil
}

func decodeNodes(data json.RawMessage) ([]NodeValue, error) {
	var nodes []NodeValue
	if len(data) == 0 || string(data) == "null" {
		return nodes, nil
	}
	if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("parse nodes: %w", err)
	}
	return nodes, nil
}
