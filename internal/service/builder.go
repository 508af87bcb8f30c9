package service

import (
	"fmt"
	"runtime"

	"github.com/nghyane/stitch-sdk/internal/auth"
	"github.com/nghyane/stitch-sdk/internal/auth/providers"
	"github.com/nghyane/stitch-sdk/internal/config"
	"github.com/nghyane/stitch-sdk/internal/request"
	"github.com/nghyane/stitch-sdk/internal/routes"
	"github.com/nghyane/stitch-sdk/internal/transport"
)

// SDKVersion is reported to the server in the login device document.
const SDKVersion = "0.4.0"

// Builder constructs an App with customizable dependencies.
type Builder struct {
	cfg        *config.Config
	configPath string
	transport  transport.Transport
	hooks      Hooks
	authOpts   []auth.Option
}

// Hooks allows callers to plug into app lifecycle stages.
type Hooks struct {
	// OnConfigReload runs after a reloaded configuration has been applied.
	OnConfigReload func(*config.Config)

	// OnClose runs once, before the session is torn down.
	OnClose func(*App)
}

// NewBuilder creates a Builder with default dependencies left unset.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithConfig sets the configuration used by the app.
func (b *Builder) WithConfig(cfg *config.Config) *Builder {
	b.cfg = cfg
	return b
}

// WithConfigPath sets the configuration file watched by App.WatchConfig.
func (b *Builder) WithConfigPath(path string) *Builder {
	b.configPath = path
	return b
}

// WithTransport replaces the default HTTP transport.
func (b *Builder) WithTransport(t transport.Transport) *Builder {
	b.transport = t
	return b
}

// WithHooks registers lifecycle hooks.
func (b *Builder) WithHooks(h Hooks) *Builder {
	b.hooks = h
	return b
}

// WithAuthOptions passes extra options to the auth manager, after the ones
// derived from the configuration.
func (b *Builder) WithAuthOptions(opts ...auth.Option) *Builder {
	b.authOpts = append(b.authOpts, opts...)
	return b
}

// Build validates the configuration and wires transport, request client,
// auth manager and the app's function client together.
func (b *Builder) Build() (*App, error) {
	if b.cfg == nil {
		return nil, fmt.Errorf("stitch: configuration is required")
	}
	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}

	t := b.transport
	if t == nil {
		tcfg := transport.DefaultConfig()
		tcfg.ProxyURL = b.cfg.ProxyURL
		if b.cfg.UserAgent != "" {
			tcfg.UserAgent = b.cfg.UserAgent
		}
		httpTransport, err := transport.NewHTTP(tcfg)
		if err != nil {
			return nil, fmt.Errorf("stitch: build transport: %w", err)
		}
		t = httpTransport
	}

	appRoutes := routes.NewAppRoutes(b.cfg.AppID)
	requests := request.NewClient(b.cfg.BaseURL, t, request.WithDefaultTimeout(b.cfg.RequestTimeout))

	opts := []auth.Option{
		auth.WithDevice(deviceInfo(b.cfg)),
		auth.WithRefreshSkew(b.cfg.RefreshSkew),
	}
	opts = append(opts, b.authOpts...)
	manager := auth.NewManager(requests, appRoutes, opts...)

	app := &App{
		cfg:        b.cfg,
		configPath: b.configPath,
		hooks:      b.hooks,
		routes:     appRoutes,
		requests:   requests,
		auth:       manager,
		services:   make(map[string]*Client),
	}
	app.functions = app.ServiceClient("")
	return app, nil
}

func deviceInfo(cfg *config.Config) providers.DeviceInfo {
	platform := cfg.Device.Platform
	if platform == "" {
		platform = runtime.GOOS
	}
	platformVersion := cfg.Device.PlatformVersion
	if platformVersion == "" {
		platformVersion = runtime.Version()
	}
	return providers.DeviceInfo{
		AppID:           cfg.AppID,
		AppVersion:      cfg.Device.AppVersion,
		Platform:        platform,
		PlatformVersion: platformVersion,
		SDKVersion:      SDKVersion,
	}
}
