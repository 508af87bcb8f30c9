// Package cmd implements the stitchctl commands on top of a service.App.
package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/nghyane/stitch-sdk/internal/auth/credential"
	"github.com/nghyane/stitch-sdk/internal/auth/session"
	"github.com/nghyane/stitch-sdk/internal/json"
	log "github.com/nghyane/stitch-sdk/internal/logging"
	"github.com/nghyane/stitch-sdk/internal/service"
)

// LoginOptions selects the credential a command logs in with.
type LoginOptions struct {
	// Provider is one of anon, userpass, apikey, server-apikey, custom-token
	// or custom-function. Empty means no login.
	Provider string

	// ProviderName overrides the provider's default name.
	ProviderName string

	Username string
	Password string
	APIKey   string
	Token    string

	// Payload is the JSON document sent to a custom function provider.
	Payload string
}

// Credential builds the credential described by opts.
func (o LoginOptions) Credential() (credential.Credential, error) {
	var opts []credential.Option
	if o.ProviderName != "" {
		opts = append(opts, credential.WithProviderName(o.ProviderName))
	}
	switch strings.ToLower(o.Provider) {
	case "anon", "anonymous", string(credential.ProviderTypeAnonymous):
		return credential.NewAnonymous(opts...), nil
	case "userpass", string(credential.ProviderTypeUserPassword):
		if o.Username == "" || o.Password == "" {
			return nil, fmt.Errorf("userpass login needs --username and --password")
		}
		return credential.NewUserPassword(o.Username, o.Password, opts...), nil
	case "apikey", "user-apikey":
		if o.APIKey == "" {
			return nil, fmt.Errorf("apikey login needs --api-key")
		}
		return credential.NewUserAPIKey(o.APIKey, opts...), nil
	case "server-apikey":
		if o.APIKey == "" {
			return nil, fmt.Errorf("server-apikey login needs --api-key")
		}
		return credential.NewServerAPIKey(o.APIKey, opts...), nil
	case "custom-token", string(credential.ProviderTypeCustomToken):
		if o.Token == "" {
			return nil, fmt.Errorf("custom-token login needs --token")
		}
		return credential.NewCustomToken(o.Token, opts...), nil
	case "custom-function", string(credential.ProviderTypeCustomFunction):
		payload, err := json.Decode([]byte(o.Payload))
		if err != nil {
			return nil, fmt.Errorf("custom-function payload: %w", err)
		}
		return credential.NewCustomFunction(payload, opts...), nil
	case "":
		return nil, fmt.Errorf("no login provider selected")
	default:
		return nil, fmt.Errorf("unknown login provider %q", o.Provider)
	}
}

// DoLogin logs in with the credential described by opts and prints the
// resulting user id.
func DoLogin(ctx context.Context, app *service.App, opts LoginOptions, out io.Writer) (session.Snapshot, error) {
	cred, err := opts.Credential()
	if err != nil {
		return session.Snapshot{}, err
	}
	snap, err := app.Auth().LoginWithCredential(ctx, cred)
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("login with %s failed: %w", cred.ProviderName(), err)
	}
	log.WithField("provider", snap.ProviderName).Debug("login complete")
	_, _ = fmt.Fprintf(out, "Logged in as %s (%s)\n", snap.UserID, snap.ProviderName)
	return snap, nil
}

// DoProfile prints the profile fetched at login.
func DoProfile(app *service.App, out io.Writer) error {
	snap := app.Auth().Session()
	if !snap.LoggedIn || snap.Profile == nil {
		return fmt.Errorf("not logged in")
	}
	return writeJSON(out, snap.Profile)
}

// DoLogout ends the session on the server.
func DoLogout(ctx context.Context, app *service.App, out io.Writer) error {
	if err := app.Auth().Logout(ctx); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, "Logged out")
	return nil
}

func writeJSON(out io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s\n", data)
	return err
}
