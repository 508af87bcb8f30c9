package credential

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func allCredentials() []Credential {
	return []Credential{
		NewAnonymous(),
		NewUserPassword("a@b.com", "pw"),
		NewCustomToken("jwt"),
		NewCustomFunction(map[string]any{"user": map[string]any{"id": "u1"}, "tags": []any{"a"}}),
		NewGoogle("code"),
		NewFacebook("fb-token"),
		NewUserAPIKey("user-key"),
		NewServerAPIKey("server-key"),
	}
}

func TestMaterialIsFreshPerCall(t *testing.T) {
	for _, cred := range allCredentials() {
		t.Run(cred.ProviderName(), func(t *testing.T) {
			first := cred.Material()
			second := cred.Material()
			assert.Equal(t, first, second)

			first["injected"] = true
			for _, v := range first {
				if nested, ok := v.(map[string]any); ok {
					nested["injected"] = true
				}
			}
			assert.Equal(t, second, cred.Material(), "mutating one material must not affect another")
			assert.NotContains(t, cred.Material(), "injected")
		})
	}
}

func TestCustomFunctionCopiesPayload(t *testing.T) {
	payload := map[string]any{"user": map[string]any{"id": "u1"}}
	cred := NewCustomFunction(payload)

	payload["user"].(map[string]any)["id"] = "changed"
	assert.Equal(t, map[string]any{"user": map[string]any{"id": "u1"}}, cred.Material())
}

func TestProviderDefaults(t *testing.T) {
	tests := []struct {
		cred     Credential
		wantName string
		wantType ProviderType
		wantCaps ProviderCapabilities
	}{
		{NewAnonymous(), "anon-user", ProviderTypeAnonymous, ProviderCapabilities{ReusesExistingSession: true}},
		{NewUserPassword("u", "p"), "local-userpass", ProviderTypeUserPassword, ProviderCapabilities{SupportsLinking: true}},
		{NewCustomToken("t"), "custom-token", ProviderTypeCustomToken, ProviderCapabilities{SupportsLinking: true}},
		{NewGoogle("c"), "oauth2-google", ProviderTypeGoogle, ProviderCapabilities{SupportsLinking: true, SupportsRedirect: true}},
		{NewServerAPIKey("k"), "api-key", ProviderTypeAPIKey, ProviderCapabilities{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.wantName, tt.cred.ProviderName())
		assert.Equal(t, tt.wantType, tt.cred.ProviderType())
		assert.Equal(t, tt.wantCaps, tt.cred.Capabilities())
	}
}

func TestForType(t *testing.T) {
	redirect := map[ProviderType]bool{
		ProviderTypeAnonymous:      false,
		ProviderTypeUserPassword:   false,
		ProviderTypeCustomToken:    false,
		ProviderTypeCustomFunction: false,
		ProviderTypeGoogle:         true,
		ProviderTypeFacebook:       true,
		ProviderTypeAPIKey:         false,
	}
	for pt, want := range redirect {
		cred, err := ForType(pt)
		require.NoError(t, err)
		assert.Equal(t, pt, cred.ProviderType())
		assert.Equal(t, string(pt), cred.ProviderName())
		assert.Equal(t, want, cred.Capabilities().SupportsRedirect, pt)
		assert.Empty(t, cred.Material()["password"])
	}

	cred, err := ForType(ProviderTypeGoogle, WithProviderName("google-staff"))
	require.NoError(t, err)
	assert.Equal(t, "google-staff", cred.ProviderName())

	_, err = ForType("saml")
	require.Error(t, err)
}

func TestWithProviderName(t *testing.T) {
	cred := NewUserPassword("u", "p", WithProviderName("staff-userpass"))
	assert.Equal(t, "staff-userpass", cred.ProviderName())
	assert.Equal(t, ProviderTypeUserPassword, cred.ProviderType())

	assert.Equal(t, "local-userpass", NewUserPassword("u", "p", WithProviderName("")).ProviderName())
}

func TestFacebookFromToken(t *testing.T) {
	cred := NewFacebookFromToken(&oauth2.Token{AccessToken: "fb"})
	assert.Equal(t, map[string]any{"accessToken": "fb"}, cred.Material())
	assert.Equal(t, map[string]any{"accessToken": ""}, NewFacebookFromToken(nil).Material())
}
