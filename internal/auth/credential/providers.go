package credential

import "golang.org/x/oauth2"

// Anonymous logs in as an anonymous user. Repeated anonymous logins reuse
// the current session.
type Anonymous struct{ named }

func NewAnonymous(opts ...Option) Anonymous {
	return Anonymous{named: newNamed(string(ProviderTypeAnonymous), opts)}
}

func (Anonymous) ProviderType() ProviderType { return ProviderTypeAnonymous }

func (Anonymous) Material() map[string]any { return map[string]any{} }

func (Anonymous) Capabilities() ProviderCapabilities {
	return ProviderCapabilities{ReusesExistingSession: true}
}

// UserPassword logs in with a username (email) and password.
type UserPassword struct {
	named
	username string
	password string
}

func NewUserPassword(username, password string, opts ...Option) UserPassword {
	return UserPassword{
		named:    newNamed(string(ProviderTypeUserPassword), opts),
		username: username,
		password: password,
	}
}

func (UserPassword) ProviderType() ProviderType { return ProviderTypeUserPassword }

func (c UserPassword) Username() string { return c.username }

func (c UserPassword) Material() map[string]any {
	return map[string]any{"username": c.username, "password": c.password}
}

func (UserPassword) Capabilities() ProviderCapabilities {
	return ProviderCapabilities{SupportsLinking: true}
}

// CustomToken logs in with a JWT issued by a third-party system.
type CustomToken struct {
	named
	token string
}

func NewCustomToken(token string, opts ...Option) CustomToken {
	return CustomToken{named: newNamed(string(ProviderTypeCustomToken), opts), token: token}
}

func (CustomToken) ProviderType() ProviderType { return ProviderTypeCustomToken }

func (c CustomToken) Material() map[string]any {
	return map[string]any{"token": c.token}
}

func (CustomToken) Capabilities() ProviderCapabilities {
	return ProviderCapabilities{SupportsLinking: true}
}

// CustomFunction logs in by passing an arbitrary document to a server-side
// authentication function.
type CustomFunction struct {
	named
	payload map[string]any
}

// NewCustomFunction copies payload; later changes to it have no effect.
func NewCustomFunction(payload map[string]any, opts ...Option) CustomFunction {
	return CustomFunction{
		named:   newNamed(string(ProviderTypeCustomFunction), opts),
		payload: copyMap(payload),
	}
}

func (CustomFunction) ProviderType() ProviderType { return ProviderTypeCustomFunction }

func (c CustomFunction) Material() map[string]any { return copyMap(c.payload) }

func (CustomFunction) Capabilities() ProviderCapabilities {
	return ProviderCapabilities{SupportsLinking: true}
}

// Google logs in with a server auth code from Google Sign-In.
type Google struct {
	named
	authCode string
}

func NewGoogle(authCode string, opts ...Option) Google {
	return Google{named: newNamed(string(ProviderTypeGoogle), opts), authCode: authCode}
}

func (Google) ProviderType() ProviderType { return ProviderTypeGoogle }

func (c Google) Material() map[string]any {
	return map[string]any{"authCode": c.authCode}
}

func (Google) Capabilities() ProviderCapabilities {
	return ProviderCapabilities{SupportsLinking: true, SupportsRedirect: true}
}

// Facebook logs in with a Facebook access token.
type Facebook struct {
	named
	accessToken string
}

func NewFacebook(accessToken string, opts ...Option) Facebook {
	return Facebook{named: newNamed(string(ProviderTypeFacebook), opts), accessToken: accessToken}
}

// NewFacebookFromToken uses the access token of an OAuth2 exchange.
func NewFacebookFromToken(tok *oauth2.Token, opts ...Option) Facebook {
	var access string
	if tok != nil {
		access = tok.AccessToken
	}
	return NewFacebook(access, opts...)
}

func (Facebook) ProviderType() ProviderType { return ProviderTypeFacebook }

func (c Facebook) Material() map[string]any {
	return map[string]any{"accessToken": c.accessToken}
}

func (Facebook) Capabilities() ProviderCapabilities {
	return ProviderCapabilities{SupportsLinking: true, SupportsRedirect: true}
}

// UserAPIKey logs in with a key created by a user for themselves.
type UserAPIKey struct {
	named
	key string
}

func NewUserAPIKey(key string, opts ...Option) UserAPIKey {
	return UserAPIKey{named: newNamed(string(ProviderTypeAPIKey), opts), key: key}
}

func (UserAPIKey) ProviderType() ProviderType { return ProviderTypeAPIKey }

func (c UserAPIKey) Material() map[string]any { return map[string]any{"key": c.key} }

func (UserAPIKey) Capabilities() ProviderCapabilities {
	return ProviderCapabilities{SupportsLinking: true}
}

// ServerAPIKey logs in with an application-level key. Server keys cannot be
// linked to a user.
type ServerAPIKey struct {
	named
	key string
}

func NewServerAPIKey(key string, opts ...Option) ServerAPIKey {
	return ServerAPIKey{named: newNamed(string(ProviderTypeAPIKey), opts), key: key}
}

func (ServerAPIKey) ProviderType() ProviderType { return ProviderTypeAPIKey }

func (c ServerAPIKey) Material() map[string]any { return map[string]any{"key": c.key} }

func (ServerAPIKey) Capabilities() ProviderCapabilities { return ProviderCapabilities{} }

func copyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = copyValue(t[i])
		}
		return out
	case []byte:
		return append([]byte(nil), t...)
	default:
		return v
	}
}
