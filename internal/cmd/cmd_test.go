package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nghyane/stitch-sdk/internal/auth/credential"
	"github.com/nghyane/stitch-sdk/internal/config"
	"github.com/nghyane/stitch-sdk/internal/service"
	"github.com/nghyane/stitch-sdk/internal/testutil"
	"github.com/nghyane/stitch-sdk/internal/transport"
)

func newApp(t *testing.T) (*service.App, *testutil.Backend) {
	t.Helper()
	b := testutil.NewBackend(t)
	b.AddUser("a@b.com", "pw")
	cfg := config.NewDefaultConfig()
	cfg.BaseURL = b.URL()
	cfg.AppID = "cli-app"
	app, err := service.NewBuilder().
		WithConfig(cfg).
		WithTransport(transport.NewHTTPWithClient(b.Client())).
		Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app, b
}

func TestLoginOptionsCredential(t *testing.T) {
	tests := []struct {
		name     string
		opts     LoginOptions
		wantType credential.ProviderType
		wantErr  bool
	}{
		{"anon", LoginOptions{Provider: "anon"}, credential.ProviderTypeAnonymous, false},
		{"userpass", LoginOptions{Provider: "userpass", Username: "u", Password: "p"}, credential.ProviderTypeUserPassword, false},
		{"userpass missing password", LoginOptions{Provider: "userpass", Username: "u"}, "", true},
		{"apikey", LoginOptions{Provider: "apikey", APIKey: "k"}, credential.ProviderTypeAPIKey, false},
		{"server apikey", LoginOptions{Provider: "server-apikey", APIKey: "k"}, credential.ProviderTypeAPIKey, false},
		{"custom token", LoginOptions{Provider: "custom-token", Token: "jwt"}, credential.ProviderTypeCustomToken, false},
		{"custom function", LoginOptions{Provider: "custom-function", Payload: `{"user":"x"}`}, credential.ProviderTypeCustomFunction, false},
		{"custom function bad payload", LoginOptions{Provider: "custom-function", Payload: `[1]`}, "", true},
		{"none", LoginOptions{}, "", true},
		{"unknown", LoginOptions{Provider: "kerberos"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred, err := tt.opts.Credential()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, cred.ProviderType())
		})
	}

	cred, err := LoginOptions{Provider: "anon", ProviderName: "guests"}.Credential()
	require.NoError(t, err)
	assert.Equal(t, "guests", cred.ProviderName())
}

func TestLoginProfileCallLogout(t *testing.T) {
	app, b := newApp(t)
	ctx := context.Background()
	var out bytes.Buffer

	_, err := DoLogin(ctx, app, LoginOptions{Provider: "userpass", Username: "a@b.com", Password: "pw"}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Logged in as")

	out.Reset()
	require.NoError(t, DoProfile(app, &out))
	assert.Contains(t, out.String(), `"user_id"`)

	out.Reset()
	require.NoError(t, DoCallFunction(ctx, app, "", "sum", "[1, 2]", &out))
	assert.Equal(t, "3", strings.TrimSpace(out.String()))

	out.Reset()
	require.NoError(t, DoCallFunction(ctx, app, "", "echo", `"hi"`, &out))
	assert.Equal(t, `"hi"`, strings.TrimSpace(out.String()))

	assert.Error(t, DoCallFunction(ctx, app, "", "echo", "{not json", &out))
	assert.Error(t, DoCallFunction(ctx, app, "", "missing", "", &out))

	out.Reset()
	require.NoError(t, DoLogout(ctx, app, &out))
	assert.Equal(t, int64(1), b.Logouts())
	assert.Error(t, DoProfile(app, &out))
}

func TestParseArgs(t *testing.T) {
	args, err := parseArgs("")
	require.NoError(t, err)
	assert.Equal(t, []any{}, args)

	args, err = parseArgs(`[1, "two"]`)
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, "two"}, args)

	args, err = parseArgs(`{"a":1}`)
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"a": 1.0}}, args)
}

func TestAPIKeys(t *testing.T) {
	app, _ := newApp(t)
	ctx := context.Background()
	var out bytes.Buffer

	_, err := DoLogin(ctx, app, LoginOptions{Provider: "userpass", Username: "a@b.com", Password: "pw"}, &out)
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, DoAPIKeys(ctx, app, "create", "ci", &out))
	assert.Contains(t, out.String(), `"name": "ci"`)

	out.Reset()
	require.NoError(t, DoAPIKeys(ctx, app, "list", "", &out))
	assert.Contains(t, out.String(), "ci")

	assert.Error(t, DoAPIKeys(ctx, app, "delete", "", &out))
	assert.Error(t, DoAPIKeys(ctx, app, "rotate", "x", &out))
}

func TestRegisterAndReset(t *testing.T) {
	app, b := newApp(t)
	ctx := context.Background()
	var out bytes.Buffer

	require.NoError(t, DoRegister(ctx, app, "", "new@b.com", "pw", &out))
	assert.Error(t, DoRegister(ctx, app, "", "new@b.com", "pw", &out), "duplicate registration")
	assert.Error(t, DoRegister(ctx, app, "", "", "pw", &out))

	require.NoError(t, DoConfirm(ctx, app, "", "tok", "tokid", &out))
	require.NoError(t, DoSendResetEmail(ctx, app, "", "new@b.com", &out))
	assert.Error(t, DoSendResetEmail(ctx, app, "", "", &out))

	assert.Contains(t, b.ExtensionCalls(), "local-userpass/register")
	assert.Contains(t, b.ExtensionCalls(), "local-userpass/confirm")
	assert.Contains(t, b.ExtensionCalls(), "local-userpass/reset/send")
}

func TestOAuthURL(t *testing.T) {
	app, _ := newApp(t)
	var out bytes.Buffer

	err := DoOAuthURL(app, OAuthOptions{Provider: "google", RedirectURL: "https://app.test/cb", NoBrowser: true}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "/auth/providers/oauth2-google/login?")
	assert.Contains(t, out.String(), "State: ")

	assert.Error(t, DoOAuthURL(app, OAuthOptions{Provider: "github", RedirectURL: "x", NoBrowser: true}, &out))
	assert.Error(t, DoOAuthURL(app, OAuthOptions{Provider: "facebook", NoBrowser: true}, &out))
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "stitch.yaml")
	var out bytes.Buffer

	require.NoError(t, DoInitConfig(path, false, &out))
	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultBaseURL, cfg.BaseURL)

	assert.Error(t, DoInitConfig(path, false, &out))
	require.NoError(t, os.WriteFile(path, []byte("app-id: x\n"), 0o600))
	require.NoError(t, DoInitConfig(path, true, &out))
}

func TestWatchRequiresConfigPath(t *testing.T) {
	app, _ := newApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, DoWatch(ctx, app, &bytes.Buffer{}))
}
