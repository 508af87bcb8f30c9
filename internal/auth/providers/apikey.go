package providers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/nghyane/stitch-sdk/internal/request"
	"github.com/nghyane/stitch-sdk/internal/routes"
)

// APIKey is a user API key. Key is only populated on creation.
type APIKey struct {
	ID       string `json:"_id"`
	Key      string `json:"key,omitempty"`
	Name     string `json:"name"`
	Disabled bool   `json:"disabled"`
}

// UserAPIKeyClient manages the logged-in user's API keys. Every call is
// authenticated with the session's refresh token.
type UserAPIKeyClient struct {
	requester request.AuthRequester
	routes    routes.AuthRoutes
}

func NewUserAPIKeyClient(requester request.AuthRequester, r routes.AuthRoutes) *UserAPIKeyClient {
	return &UserAPIKeyClient{requester: requester, routes: r}
}

func (c *UserAPIKeyClient) CreateAPIKey(ctx context.Context, name string) (*APIKey, error) {
	if name == "" {
		return nil, fmt.Errorf("stitch: api key name is required")
	}
	var key APIKey
	if err := c.do(ctx, http.MethodPost, c.routes.APIKeysRoute(), map[string]any{"name": name}, &key); err != nil {
		return nil, err
	}
	return &key, nil
}

func (c *UserAPIKeyClient) FetchAPIKey(ctx context.Context, id string) (*APIKey, error) {
	var key APIKey
	if err := c.do(ctx, http.MethodGet, c.routes.APIKeyRoute(id), nil, &key); err != nil {
		return nil, err
	}
	return &key, nil
}

func (c *UserAPIKeyClient) FetchAPIKeys(ctx context.Context) ([]APIKey, error) {
	var keys []APIKey
	if err := c.do(ctx, http.MethodGet, c.routes.APIKeysRoute(), nil, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

func (c *UserAPIKeyClient) EnableAPIKey(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPut, c.routes.APIKeyRoute(id)+"/enable", nil, nil)
}

func (c *UserAPIKeyClient) DisableAPIKey(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPut, c.routes.APIKeyRoute(id)+"/disable", nil, nil)
}

func (c *UserAPIKeyClient) DeleteAPIKey(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, c.routes.APIKeyRoute(id), nil, nil)
}

func (c *UserAPIKeyClient) do(ctx context.Context, method, path string, doc map[string]any, out any) error {
	req := request.AuthRequest{
		DocRequest: request.DocRequest{
			StitchRequest: request.StitchRequest{Method: method, Path: path},
		},
		UseRefreshToken: true,
	}
	if doc != nil {
		req.Document = doc
	}
	resp, err := c.requester.DoAuthRequest(ctx, req)
	if err != nil {
		return err
	}
	if err := resp.DecodeInto(out); err != nil {
		return fmt.Errorf("stitch: decode api key response: %w", err)
	}
	return nil
}
