package cmd

import (
	"fmt"
	"io"

	"github.com/nghyane/stitch-sdk/internal/auth/credential"
	"github.com/nghyane/stitch-sdk/internal/auth/providers"
	"github.com/nghyane/stitch-sdk/internal/browser"
	"github.com/nghyane/stitch-sdk/internal/service"
)

// OAuthOptions drives the browser login URL command.
type OAuthOptions struct {
	// Provider is google or facebook.
	Provider     string
	ProviderName string
	RedirectURL  string
	Link         bool
	NoBrowser    bool
}

// DoOAuthURL prints the browser login URL for an OAuth2 provider and opens
// it unless NoBrowser is set.
func DoOAuthURL(app *service.App, opts OAuthOptions, out io.Writer) error {
	var providerType credential.ProviderType
	switch opts.Provider {
	case "google", string(credential.ProviderTypeGoogle):
		providerType = credential.ProviderTypeGoogle
	case "facebook", string(credential.ProviderTypeFacebook):
		providerType = credential.ProviderTypeFacebook
	default:
		return fmt.Errorf("unknown oauth provider %q", opts.Provider)
	}

	loginURL, state, err := app.OAuth2RedirectURL(providers.RedirectRequest{
		ProviderType: providerType,
		ProviderName: opts.ProviderName,
		RedirectURL:  opts.RedirectURL,
		Link:         opts.Link,
	})
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Login URL: %s\nState: %s\n", loginURL, state)
	if opts.NoBrowser {
		return nil
	}
	if err = browser.OpenURL(loginURL); err != nil {
		_, _ = fmt.Fprintf(out, "Could not open a browser (%v); open the URL above manually\n", err)
	}
	return nil
}
