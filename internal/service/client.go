package service

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	log "github.com/nghyane/stitch-sdk/internal/logging"
	"github.com/nghyane/stitch-sdk/internal/rebind"
	"github.com/nghyane/stitch-sdk/internal/request"
	"github.com/nghyane/stitch-sdk/internal/routes"
)

// Client is a named remote service bound to the app's session. It is itself
// a rebind.Binder and forwards every event to the dependents bound to it.
type Client struct {
	name      string
	requester request.Requester
	routes    routes.ServiceRoutes
	binders   *rebind.Registry

	mu        sync.RWMutex
	lastEvent rebind.Event
	rebinds   int
}

// NewClient returns a client for the service called name. An empty name
// addresses the app's own functions. requester must authenticate requests.
func NewClient(name string, requester request.Requester, r routes.ServiceRoutes) *Client {
	return &Client{
		name:      name,
		requester: requester,
		routes:    r,
		binders:   rebind.NewRegistry(),
	}
}

func (c *Client) Name() string { return c.name }

// Bind registers a dependent of this service.
func (c *Client) Bind(b rebind.Binder) bool { return c.binders.Register(b) }

func (c *Client) Unbind(b rebind.Binder) bool { return c.binders.Unregister(b) }

// OnRebindEvent records the transition and passes it on to bound dependents.
func (c *Client) OnRebindEvent(ctx context.Context, ev rebind.Event) {
	c.mu.Lock()
	c.lastEvent = ev
	c.rebinds++
	c.mu.Unlock()

	log.WithFields(log.Fields{
		"service": c.name,
		"event":   ev.Kind.String(),
	}).Debug("service rebound")

	// An aborted nested broadcast is reported by the outer broadcast.
	_ = c.binders.Broadcast(ctx, ev)
}

// LastEvent returns the most recent event and how many were received.
func (c *Client) LastEvent() (rebind.Event, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastEvent, c.rebinds
}

// CallFunction runs the server function name with args and decodes its
// result into out, which may be nil.
func (c *Client) CallFunction(ctx context.Context, name string, args []any, out any) error {
	return c.CallFunctionWithTimeout(ctx, name, args, 0, out)
}

// CallFunctionWithTimeout is CallFunction with a per-call timeout; zero uses
// the request client's default.
func (c *Client) CallFunctionWithTimeout(ctx context.Context, name string, args []any, timeout time.Duration, out any) error {
	if name == "" {
		return fmt.Errorf("stitch: function name is required")
	}
	if args == nil {
		args = []any{}
	}
	doc := map[string]any{
		"name":      name,
		"arguments": args,
	}
	if c.name != "" {
		doc["service"] = c.name
	}

	resp, err := c.requester.DoJSONRequest(ctx, request.DocRequest{
		StitchRequest: request.StitchRequest{
			Method:  http.MethodPost,
			Path:    c.routes.FunctionCallRoute(),
			Timeout: timeout,
		},
		Document: doc,
	})
	if err != nil {
		return err
	}
	if err := resp.DecodeInto(out); err != nil {
		return fmt.Errorf("stitch: decode result of %s: %w", name, err)
	}
	return nil
}

var _ rebind.Binder = (*Client)(nil)
