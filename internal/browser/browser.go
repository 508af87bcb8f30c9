// Package browser opens URLs in the user's default browser.
package browser

import (
	"fmt"
	"net/url"

	"github.com/skratchdot/open-golang/open"

	log "github.com/nghyane/stitch-sdk/internal/logging"
)

// opener is replaced in tests.
var opener = open.Start

// OpenURL opens rawURL without waiting for the browser to exit. Only http
// and https URLs are accepted.
func OpenURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("browser: invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("browser: refusing to open %q url", u.Scheme)
	}
	log.Debugf("opening browser at %s", log.MaskURL(rawURL))
	if err = opener(rawURL); err != nil {
		return fmt.Errorf("browser: open: %w", err)
	}
	return nil
}
