// Package stitch provides the public API of the client SDK. It wraps the
// internal packages with a stable, minimal surface.
package stitch

import (
	"golang.org/x/oauth2"

	"github.com/nghyane/stitch-sdk/internal/auth"
	"github.com/nghyane/stitch-sdk/internal/auth/credential"
	"github.com/nghyane/stitch-sdk/internal/auth/providers"
	"github.com/nghyane/stitch-sdk/internal/auth/session"
	"github.com/nghyane/stitch-sdk/internal/config"
	"github.com/nghyane/stitch-sdk/internal/rebind"
	"github.com/nghyane/stitch-sdk/internal/service"
	"github.com/nghyane/stitch-sdk/internal/stitcherr"
	"github.com/nghyane/stitch-sdk/internal/transport"
)

// App is a configured client for one application.
type App = service.App

// Builder constructs an App with customizable dependencies.
type Builder = service.Builder

// Hooks allows callers to plug into app lifecycle stages.
type Hooks = service.Hooks

// ServiceClient calls functions of one named service.
type ServiceClient = service.Client

// Config is the client configuration.
type Config = config.Config

// AuthManager owns the session and sends authenticated requests.
type AuthManager = auth.Manager

// Credential is the input to a login.
type Credential = credential.Credential

// SessionSnapshot is a consistent copy of the session.
type SessionSnapshot = session.Snapshot

// UserProfile is the profile fetched after login.
type UserProfile = session.UserProfile

// Binder receives session transitions.
type Binder = rebind.Binder

// RebindEvent describes one session transition.
type RebindEvent = rebind.Event

// Transport is the pluggable HTTP capability.
type Transport = transport.Transport

// APIKey is a user API key as returned by the server.
type APIKey = providers.APIKey

// RequestError is a decoded application-level error.
type RequestError = stitcherr.RequestError

// TransportError wraps a failure of the transport itself.
type TransportError = stitcherr.TransportError

// ReentrantRebindError reports a binder that started a transition during a
// rebind broadcast.
type ReentrantRebindError = stitcherr.ReentrantRebindError

const (
	LoggedIn       = rebind.LoggedIn
	LoggedOut      = rebind.LoggedOut
	TokenRefreshed = rebind.TokenRefreshed
	Invalidated    = rebind.Invalidated
)

var (
	ErrNotAuthenticated = stitcherr.ErrNotAuthenticated
	ErrSessionExpired   = stitcherr.ErrSessionExpired
	ErrBodyAndDocument  = stitcherr.ErrBodyAndDocument
)

// NewBuilder creates a new app builder.
func NewBuilder() *Builder {
	return service.NewBuilder()
}

// NewConfig creates a default configuration for appID.
func NewConfig(appID string) *Config {
	cfg := config.NewDefaultConfig()
	cfg.AppID = appID
	return cfg
}

// LoadConfig loads configuration from the specified path and applies
// STITCH_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err = cfg.ApplyEnv(nil); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewApp is a convenience function building an App with default
// dependencies.
func NewApp(cfg *Config) (*App, error) {
	return NewBuilder().WithConfig(cfg).Build()
}

// Credentials.

func AnonymousCredential() Credential { return credential.NewAnonymous() }

func UserPasswordCredential(username, password string) Credential {
	return credential.NewUserPassword(username, password)
}

func CustomTokenCredential(token string) Credential { return credential.NewCustomToken(token) }

func CustomFunctionCredential(payload map[string]any) Credential {
	return credential.NewCustomFunction(payload)
}

func GoogleCredential(authCode string) Credential { return credential.NewGoogle(authCode) }

// FacebookCredential builds a credential from a token obtained through an
// oauth2 flow.
func FacebookCredential(tok *oauth2.Token) Credential { return credential.NewFacebookFromToken(tok) }

func UserAPIKeyCredential(key string) Credential { return credential.NewUserAPIKey(key) }

func ServerAPIKeyCredential(key string) Credential { return credential.NewServerAPIKey(key) }
