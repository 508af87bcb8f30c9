// Package credential describes login attempts. Each provider is its own type
// implementing Credential; adding a provider means adding a type.
package credential

import "fmt"

// ProviderType identifies the kind of auth provider on the server.
type ProviderType string

const (
	ProviderTypeAnonymous      ProviderType = "anon-user"
	ProviderTypeUserPassword   ProviderType = "local-userpass"
	ProviderTypeCustomToken    ProviderType = "custom-token"
	ProviderTypeCustomFunction ProviderType = "custom-function"
	ProviderTypeGoogle         ProviderType = "oauth2-google"
	ProviderTypeFacebook       ProviderType = "oauth2-facebook"
	ProviderTypeAPIKey         ProviderType = "api-key"
)

// ProviderCapabilities declares how a login under a provider interacts with
// an existing session.
type ProviderCapabilities struct {
	// ReusesExistingSession means a login while already logged in with the
	// same provider extends the current session instead of replacing it.
	ReusesExistingSession bool
	// SupportsLinking means the identity can be linked to an existing user.
	SupportsLinking bool
	// SupportsRedirect means the provider offers an out-of-band browser flow.
	SupportsRedirect bool
}

// Credential is one login attempt. Implementations are immutable.
type Credential interface {
	ProviderName() string
	ProviderType() ProviderType
	// Material returns a new map on every call holding exactly the fields
	// the provider's login endpoint expects.
	Material() map[string]any
	Capabilities() ProviderCapabilities
}

// Option customizes a credential at construction.
type Option func(*named)

// WithProviderName overrides the provider's default name.
func WithProviderName(name string) Option {
	return func(n *named) {
		if name != "" {
			n.name = name
		}
	}
}

type named struct {
	name string
}

func newNamed(defaultName string, opts []Option) named {
	n := named{name: defaultName}
	for _, opt := range opts {
		opt(&n)
	}
	return n
}

func (n named) ProviderName() string { return n.name }

// ForType returns a credential of type t with no login material, used to
// inspect a provider before any material exists, as in a browser redirect.
// API keys resolve to UserAPIKey.
func ForType(t ProviderType, opts ...Option) (Credential, error) {
	switch t {
	case ProviderTypeAnonymous:
		return NewAnonymous(opts...), nil
	case ProviderTypeUserPassword:
		return NewUserPassword("", "", opts...), nil
	case ProviderTypeCustomToken:
		return NewCustomToken("", opts...), nil
	case ProviderTypeCustomFunction:
		return NewCustomFunction(nil, opts...), nil
	case ProviderTypeGoogle:
		return NewGoogle("", opts...), nil
	case ProviderTypeFacebook:
		return NewFacebook("", opts...), nil
	case ProviderTypeAPIKey:
		return NewUserAPIKey("", opts...), nil
	}
	return nil, fmt.Errorf("credential: unknown provider type %q", t)
}
