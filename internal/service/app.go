// Package service assembles the client application: one transport, one
// request client, one auth manager, and the service clients bound to it.
package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/nghyane/stitch-sdk/internal/auth"
	"github.com/nghyane/stitch-sdk/internal/auth/providers"
	"github.com/nghyane/stitch-sdk/internal/config"
	log "github.com/nghyane/stitch-sdk/internal/logging"
	"github.com/nghyane/stitch-sdk/internal/request"
	"github.com/nghyane/stitch-sdk/internal/routes"
	"github.com/nghyane/stitch-sdk/internal/watcher"
)

// App is a configured client for one application.
type App struct {
	configPath string
	hooks      Hooks
	routes     *routes.AppRoutes
	requests   *request.Client
	auth       *auth.Manager
	functions  *Client

	mu       sync.Mutex
	cfg      *config.Config
	services map[string]*Client

	watcher       *watcher.Watcher
	watcherCancel context.CancelFunc

	closeOnce sync.Once
}

// Config returns the configuration currently in effect.
func (a *App) Config() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// Auth returns the session manager. It is also the authenticated requester.
func (a *App) Auth() *auth.Manager { return a.auth }

// Requests returns the unauthenticated request client.
func (a *App) Requests() *request.Client { return a.requests }

func (a *App) Routes() *routes.AppRoutes { return a.routes }

// ServiceClient returns the client for the named service, creating it and
// binding it to the session on first use. An empty name addresses the app's
// own functions.
func (a *App) ServiceClient(name string) *Client {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.services[name]; ok {
		return c
	}
	c := NewClient(name, a.auth.Requester(), a.routes)
	a.auth.Bind(c)
	a.services[name] = c
	return c
}

// CallFunction runs an app-level function as the logged-in user.
func (a *App) CallFunction(ctx context.Context, name string, args []any, out any) error {
	return a.functions.CallFunction(ctx, name, args, out)
}

// OAuth2RedirectURL builds the browser login URL for an OAuth2 provider,
// carrying this app's device document. The returned state is echoed back to
// req.RedirectURL.
func (a *App) OAuth2RedirectURL(req providers.RedirectRequest) (loginURL, state string, err error) {
	req.Device = a.auth.Device()
	return providers.OAuth2RedirectURL(a.requests.BaseURL(), a.routes, req)
}

// ApplyConfig applies the reloadable parts of cfg: log settings and the
// default request timeout. Connection settings need a new App.
func (a *App) ApplyConfig(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("stitch: nil config")
	}
	if err := ConfigureLogging(cfg); err != nil {
		return err
	}
	a.requests.SetDefaultTimeout(cfg.RequestTimeout)

	a.mu.Lock()
	prev := a.cfg
	a.cfg = cfg
	a.mu.Unlock()

	if prev != nil && (prev.BaseURL != cfg.BaseURL || prev.AppID != cfg.AppID || prev.ProxyURL != cfg.ProxyURL) {
		log.Warn("base-url, app-id and proxy-url changes take effect on restart")
	}
	return nil
}

// WatchConfig reloads the configuration file given to the builder whenever
// it changes, until ctx is cancelled or the app is closed.
func (a *App) WatchConfig(ctx context.Context) error {
	if a.configPath == "" {
		return fmt.Errorf("stitch: no config path to watch")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.watcher != nil {
		return nil
	}
	w, err := watcher.NewWatcher(a.configPath, a.onConfigReload)
	if err != nil {
		return err
	}
	watchCtx, cancel := context.WithCancel(ctx)
	if err = w.Start(watchCtx); err != nil {
		cancel()
		_ = w.Stop()
		return err
	}
	a.watcher = w
	a.watcherCancel = cancel
	return nil
}

func (a *App) onConfigReload(cfg *config.Config) {
	if err := a.ApplyConfig(cfg); err != nil {
		log.Errorf("failed to apply reloaded config: %v", err)
		return
	}
	if a.hooks.OnConfigReload != nil {
		a.hooks.OnConfigReload(cfg)
	}
}

// Close stops the config watcher and clears the session and every binding
// without contacting the server. Use Auth().Logout first to end the session
// remotely.
func (a *App) Close() error {
	var closeErr error
	a.closeOnce.Do(func() {
		if a.hooks.OnClose != nil {
			a.hooks.OnClose(a)
		}
		a.mu.Lock()
		w, cancel := a.watcher, a.watcherCancel
		a.watcher, a.watcherCancel = nil, nil
		a.services = make(map[string]*Client)
		a.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if w != nil {
			if err := w.Stop(); err != nil {
				log.Errorf("failed to stop config watcher: %v", err)
				closeErr = err
			}
		}
		a.auth.Close()
	})
	return closeErr
}

// ConfigureLogging applies cfg.Log to the package logger.
func ConfigureLogging(cfg *config.Config) error {
	var file *log.FileOptions
	if cfg.Log.ToFile {
		file = &log.FileOptions{
			Dir:        cfg.Log.Dir,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
		}
	}
	return log.Configure(cfg.Log.Level, cfg.Log.ReportCaller, file)
}
