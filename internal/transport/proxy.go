package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"golang.org/x/net/proxy"
)

// applyProxy routes t through rawURL. http and https proxies use CONNECT;
// socks5 proxies replace the dialer. An empty rawURL honours the
// HTTP_PROXY family of environment variables.
func applyProxy(t *http.Transport, rawURL string, direct *net.Dialer) error {
	if rawURL == "" {
		t.Proxy = http.ProxyFromEnvironment
		return nil
	}
	proxyURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("transport: invalid proxy url: %w", err)
	}
	switch proxyURL.Scheme {
	case "http", "https":
		t.Proxy = http.ProxyURL(proxyURL)
		return nil
	case "socks5", "socks5h":
		var auth *proxy.Auth
		if proxyURL.User != nil {
			password, _ := proxyURL.User.Password()
			auth = &proxy.Auth{User: proxyURL.User.Username(), Password: password}
		}
		dialer, err := proxy.SOCKS5("tcp", proxyURL.Host, auth, direct)
		if err != nil {
			return fmt.Errorf("transport: create SOCKS5 dialer: %w", err)
		}
		t.Proxy = nil
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			t.DialContext = cd.DialContext
		} else {
			t.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
		return nil
	default:
		return fmt.Errorf("transport: unsupported proxy scheme %q", proxyURL.Scheme)
	}
}
