package providers

import (
	"context"

	"github.com/nghyane/stitch-sdk/internal/auth/credential"
	"github.com/nghyane/stitch-sdk/internal/request"
	"github.com/nghyane/stitch-sdk/internal/routes"
)

// UserPasswordClient manages email/password identities. None of its
// operations log in.
type UserPasswordClient struct {
	Base
}

// NewUserPasswordClient returns a client for providerName, or the default
// local-userpass provider when empty.
func NewUserPasswordClient(providerName string, requester request.Requester, r routes.AuthRoutes) *UserPasswordClient {
	if providerName == "" {
		providerName = string(credential.ProviderTypeUserPassword)
	}
	return &UserPasswordClient{Base: NewBase(providerName, requester, r)}
}

// Credential returns a login credential bound to this client's provider.
func (c *UserPasswordClient) Credential(username, password string) credential.UserPassword {
	return credential.NewUserPassword(username, password, credential.WithProviderName(c.providerName))
}

func (c *UserPasswordClient) RegisterWithEmail(ctx context.Context, email, password string) error {
	return c.postExtension(ctx, "register", map[string]any{
		"email":    email,
		"password": password,
	})
}

func (c *UserPasswordClient) ConfirmUser(ctx context.Context, token, tokenID string) error {
	return c.postExtension(ctx, "confirm", map[string]any{
		"token":   token,
		"tokenId": tokenID,
	})
}

func (c *UserPasswordClient) ResendConfirmationEmail(ctx context.Context, email string) error {
	return c.postExtension(ctx, "confirm/send", map[string]any{"email": email})
}

func (c *UserPasswordClient) SendResetPasswordEmail(ctx context.Context, email string) error {
	return c.postExtension(ctx, "reset/send", map[string]any{"email": email})
}

func (c *UserPasswordClient) ResetPassword(ctx context.Context, token, tokenID, password string) error {
	return c.postExtension(ctx, "reset", map[string]any{
		"token":    token,
		"tokenId":  tokenID,
		"password": password,
	})
}

// CallResetPasswordFunction asks the server to run the app's custom password
// reset function with args.
func (c *UserPasswordClient) CallResetPasswordFunction(ctx context.Context, email, password string, args ...any) error {
	if args == nil {
		args = []any{}
	}
	return c.postExtension(ctx, "reset/call", map[string]any{
		"email":     email,
		"password":  password,
		"arguments": args,
	})
}
