package providers

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/nghyane/stitch-sdk/internal/auth/credential"
	"github.com/nghyane/stitch-sdk/internal/json"
	"github.com/nghyane/stitch-sdk/internal/request"
	"github.com/nghyane/stitch-sdk/internal/routes"
)

// SessionDescriptor is what a successful login returns.
type SessionDescriptor struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	UserID       string `json:"user_id"`
	DeviceID     string `json:"device_id,omitempty"`
}

// DeviceInfo is sent with every login so the server can track devices.
type DeviceInfo struct {
	DeviceID        string
	AppID           string
	AppVersion      string
	Platform        string
	PlatformVersion string
	SDKVersion      string
}

// Document renders the non-empty fields under their wire names.
func (d DeviceInfo) Document() map[string]any {
	doc := map[string]any{}
	set := func(key, value string) {
		if value != "" {
			doc[key] = value
		}
	}
	set("deviceId", d.DeviceID)
	set("appId", d.AppID)
	set("appVersion", d.AppVersion)
	set("platform", d.Platform)
	set("platformVersion", d.PlatformVersion)
	set("sdkVersion", d.SDKVersion)
	return doc
}

// LoginClient logs in with any credential. Link logins must be sent through
// an authenticated requester.
type LoginClient struct {
	requester request.Requester
	routes    routes.AuthRoutes
}

func NewLoginClient(requester request.Requester, r routes.AuthRoutes) *LoginClient {
	return &LoginClient{requester: requester, routes: r}
}

// Login sends the credential's material plus device options in one request.
func (c *LoginClient) Login(ctx context.Context, cred credential.Credential, device DeviceInfo, link bool) (*SessionDescriptor, error) {
	body, err := loginBody(cred, device)
	if err != nil {
		return nil, err
	}
	path := c.routes.AuthProviderLoginRoute(cred.ProviderName())
	if link {
		path = c.routes.AuthProviderLinkRoute(cred.ProviderName())
	}
	resp, err := c.requester.DoJSONRequest(ctx, request.DocRequest{
		StitchRequest: request.StitchRequest{Method: http.MethodPost, Path: path, Body: body},
	})
	if err != nil {
		return nil, err
	}

	var desc SessionDescriptor
	if err := resp.DecodeInto(&desc); err != nil {
		return nil, fmt.Errorf("stitch: decode login response: %w", err)
	}
	if desc.AccessToken == "" {
		return nil, fmt.Errorf("stitch: login response for %s has no access token", cred.ProviderName())
	}
	return &desc, nil
}

func loginBody(cred credential.Credential, device DeviceInfo) ([]byte, error) {
	body, err := json.Encode(cred.Material())
	if err != nil {
		return nil, fmt.Errorf("stitch: encode credential: %w", err)
	}
	body, err = sjson.SetBytes(body, "options.device", device.Document())
	if err != nil {
		return nil, fmt.Errorf("stitch: set device options: %w", err)
	}
	return body, nil
}

// SessionClient refreshes and ends sessions with the refresh token.
type SessionClient struct {
	requester request.Requester
	routes    routes.AuthRoutes
}

func NewSessionClient(requester request.Requester, r routes.AuthRoutes) *SessionClient {
	return &SessionClient{requester: requester, routes: r}
}

// Refresh exchanges the refresh token for a new access token.
func (c *SessionClient) Refresh(ctx context.Context, refreshToken string) (string, error) {
	resp, err := c.requester.DoRequest(ctx, request.StitchRequest{
		Method:  http.MethodPost,
		Path:    c.routes.SessionRoute(),
		Headers: bearer(refreshToken),
	})
	if err != nil {
		return "", err
	}
	access := gjson.GetBytes(resp.Body, "access_token").String()
	if access == "" {
		return "", fmt.Errorf("stitch: refresh response has no access token")
	}
	return access, nil
}

// Logout deletes the server-side session.
func (c *SessionClient) Logout(ctx context.Context, refreshToken string) error {
	_, err := c.requester.DoRequest(ctx, request.StitchRequest{
		Method:  http.MethodDelete,
		Path:    c.routes.SessionRoute(),
		Headers: bearer(refreshToken),
	})
	return err
}

func bearer(token string) map[string]string {
	return map[string]string{request.HeaderAuthorization: "Bearer " + token}
}

// RedirectRequest describes an out-of-band browser login.
type RedirectRequest struct {
	ProviderType credential.ProviderType
	ProviderName string
	RedirectURL  string
	Device       DeviceInfo
	Link         bool
}

// OAuth2RedirectURL builds the URL a browser must open to log in with an
// OAuth2 provider. The returned state must match the one echoed back to the
// redirect URL.
func OAuth2RedirectURL(baseURL string, r routes.AuthRoutes, req RedirectRequest) (loginURL, state string, err error) {
	provider, err := credential.ForType(req.ProviderType, credential.WithProviderName(req.ProviderName))
	if err != nil {
		return "", "", err
	}
	if !provider.Capabilities().SupportsRedirect {
		return "", "", fmt.Errorf("stitch: provider type %q has no redirect flow", req.ProviderType)
	}
	if req.RedirectURL == "" {
		return "", "", fmt.Errorf("stitch: redirect url is required")
	}
	name := provider.ProviderName()
	device, err := json.Encode(req.Device.Document())
	if err != nil {
		return "", "", fmt.Errorf("stitch: encode device: %w", err)
	}

	state = uuid.NewString()
	q := url.Values{}
	q.Set("redirect", req.RedirectURL)
	q.Set("state", state)
	q.Set("device", base64.StdEncoding.EncodeToString(device))
	if req.Link {
		q.Set("link", "true")
	}
	return baseURL + r.AuthProviderRoute(name) + "/login?" + q.Encode(), state, nil
}
