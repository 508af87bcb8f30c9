package stitch_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/nghyane/stitch-sdk/internal/testutil"
	"github.com/nghyane/stitch-sdk/internal/transport"
	"github.com/nghyane/stitch-sdk/pkg/stitch"
)

type binderFunc func(context.Context, stitch.RebindEvent)

func (f binderFunc) OnRebindEvent(ctx context.Context, ev stitch.RebindEvent) { f(ctx, ev) }

func TestPublicFlow(t *testing.T) {
	b := testutil.NewBackend(t)
	b.AddUser("a@b.com", "pw")

	cfg := stitch.NewConfig("test-app")
	cfg.BaseURL = b.URL()
	app, err := stitch.NewBuilder().
		WithConfig(cfg).
		WithTransport(transport.NewHTTPWithClient(b.Client())).
		Build()
	require.NoError(t, err)
	defer func() { _ = app.Close() }()

	var kinds []string
	app.Auth().Bind(binderFunc(func(_ context.Context, ev stitch.RebindEvent) {
		kinds = append(kinds, ev.Kind.String())
	}))

	ctx := context.Background()
	_, err = app.Auth().LoginWithCredential(ctx, stitch.UserPasswordCredential("a@b.com", "bad"))
	var reqErr *stitch.RequestError
	require.True(t, errors.As(err, &reqErr))

	snap, err := app.Auth().LoginWithCredential(ctx, stitch.UserPasswordCredential("a@b.com", "pw"))
	require.NoError(t, err)
	require.NotNil(t, snap.Profile)

	var out float64
	require.NoError(t, app.CallFunction(ctx, "sum", []any{2, 2}, &out))
	assert.Equal(t, 4.0, out)

	require.NoError(t, app.Auth().Logout(ctx))
	assert.ErrorIs(t, app.CallFunction(ctx, "sum", nil, nil), stitch.ErrNotAuthenticated)
	assert.Equal(t, []string{stitch.LoggedIn.String(), stitch.LoggedOut.String()}, kinds)
}

func TestCredentialConstructors(t *testing.T) {
	assert.Equal(t, "anon-user", string(stitch.AnonymousCredential().ProviderType()))
	assert.Equal(t, "oauth2-facebook", string(stitch.FacebookCredential(&oauth2.Token{AccessToken: "t"}).ProviderType()))
	assert.Equal(t, "api-key", string(stitch.ServerAPIKeyCredential("k").ProviderType()))
}

func TestNewAppRejectsMissingAppID(t *testing.T) {
	_, err := stitch.NewApp(stitch.NewConfig(""))
	assert.Error(t, err)
}
