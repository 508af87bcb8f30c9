package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nghyane/stitch-sdk/internal/auth/credential"
	"github.com/nghyane/stitch-sdk/internal/config"
	"github.com/nghyane/stitch-sdk/internal/rebind"
	"github.com/nghyane/stitch-sdk/internal/stitcherr"
	"github.com/nghyane/stitch-sdk/internal/testutil"
	"github.com/nghyane/stitch-sdk/internal/transport"
)

func newTestApp(t *testing.T, b *testutil.Backend) *App {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.BaseURL = b.URL()
	cfg.AppID = "test-app"

	app, err := NewBuilder().
		WithConfig(cfg).
		WithTransport(transport.NewHTTPWithClient(b.Client())).
		Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func TestBuildRequiresValidConfig(t *testing.T) {
	_, err := NewBuilder().Build()
	assert.Error(t, err)

	_, err = NewBuilder().WithConfig(config.NewDefaultConfig()).Build()
	assert.ErrorContains(t, err, "app-id")
}

func TestAppLoginAndCallFunction(t *testing.T) {
	b := testutil.NewBackend(t)
	b.AddUser("a@b.com", "pw")
	app := newTestApp(t, b)
	ctx := context.Background()

	err := app.CallFunction(ctx, "echo", []any{"x"}, nil)
	assert.ErrorIs(t, err, stitcherr.ErrNotAuthenticated)

	snap, err := app.Auth().LoginWithCredential(ctx, credential.NewUserPassword("a@b.com", "pw"))
	require.NoError(t, err)
	assert.True(t, snap.LoggedIn)

	var sum float64
	require.NoError(t, app.CallFunction(ctx, "sum", []any{1, 2, 3}, &sum))
	assert.Equal(t, 6.0, sum)

	b.ExpireAccessTokens()
	var echoed string
	require.NoError(t, app.CallFunction(ctx, "echo", []any{"again"}, &echoed))
	assert.Equal(t, "again", echoed)
	assert.Equal(t, int64(1), b.Refreshes())
}

func TestServiceClientsFollowSession(t *testing.T) {
	b := testutil.NewBackend(t)
	b.AddUser("a@b.com", "pw")
	app := newTestApp(t, b)
	ctx := context.Background()

	svc := app.ServiceClient("mongodb-atlas")
	assert.Same(t, svc, app.ServiceClient("mongodb-atlas"))

	_, err := app.Auth().LoginWithCredential(ctx, credential.NewUserPassword("a@b.com", "pw"))
	require.NoError(t, err)
	ev, n := svc.LastEvent()
	assert.Equal(t, rebind.LoggedIn, ev.Kind)
	assert.Equal(t, 1, n)

	require.NoError(t, app.Auth().Logout(ctx))
	ev, n = svc.LastEvent()
	assert.Equal(t, rebind.LoggedOut, ev.Kind)
	assert.Equal(t, 2, n)
}

func TestCloseClearsSessionWithoutServerCall(t *testing.T) {
	b := testutil.NewBackend(t)
	b.AddUser("a@b.com", "pw")
	app := newTestApp(t, b)

	closed := 0
	app.hooks.OnClose = func(*App) { closed++ }

	_, err := app.Auth().LoginWithCredential(context.Background(), credential.NewUserPassword("a@b.com", "pw"))
	require.NoError(t, err)
	svc := app.ServiceClient("svc")
	_, before := svc.LastEvent()

	require.NoError(t, app.Close())
	require.NoError(t, app.Close())

	assert.Equal(t, 1, closed)
	assert.False(t, app.Auth().IsLoggedIn())
	assert.Equal(t, int64(0), b.Logouts())
	_, after := svc.LastEvent()
	assert.Equal(t, before, after, "close must not broadcast")
	assert.Equal(t, 0, app.Auth().Registry().Len())
}

func TestApplyConfigUpdatesTimeout(t *testing.T) {
	b := testutil.NewBackend(t)
	app := newTestApp(t, b)

	next := *app.Config()
	next.RequestTimeout = 3 * time.Second
	require.NoError(t, app.ApplyConfig(&next))

	assert.Equal(t, 3*time.Second, app.Requests().DefaultTimeout())
	assert.Equal(t, &next, app.Config())
	assert.Error(t, app.ApplyConfig(nil))
}

func TestWatchConfigAppliesReload(t *testing.T) {
	b := testutil.NewBackend(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app-id: test-app\nbase-url: "+b.URL()+"\n"), 0o600))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	reloaded := make(chan *config.Config, 1)
	app, err := NewBuilder().
		WithConfig(cfg).
		WithConfigPath(path).
		WithTransport(transport.NewHTTPWithClient(b.Client())).
		WithHooks(Hooks{OnConfigReload: func(c *config.Config) { reloaded <- c }}).
		Build()
	require.NoError(t, err)
	defer func() { _ = app.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, app.WatchConfig(ctx))
	require.NoError(t, app.WatchConfig(ctx))

	body := "app-id: test-app\nbase-url: " + b.URL() + "\nrequest-timeout: 7s\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	select {
	case c := <-reloaded:
		assert.Equal(t, 7*time.Second, c.RequestTimeout)
		assert.Equal(t, 7*time.Second, app.Requests().DefaultTimeout())
	case <-time.After(5 * time.Second):
		t.Fatal("config reload was not applied")
	}
}

func TestWatchConfigWithoutPath(t *testing.T) {
	app := newTestApp(t, testutil.NewBackend(t))
	err := app.WatchConfig(context.Background())
	assert.Error(t, err)
	assert.False(t, errors.Is(err, context.Canceled))
}
