// Package routes maps logical client operations to API paths.
package routes

import (
	"net/url"
	"strings"
)

const clientAPIPrefix = "/api/client/v2.0"

// AuthRoutes resolves the paths used by the auth layer. Implementations are
// fixed at construction.
type AuthRoutes interface {
	SessionRoute() string
	ProfileRoute() string
	BaseAuthRoute() string
	AuthProviderRoute(providerName string) string
	AuthProviderLoginRoute(providerName string) string
	AuthProviderLinkRoute(providerName string) string
	AuthProviderExtensionRoute(providerName, path string) string
	APIKeysRoute() string
	APIKeyRoute(id string) string
}

// ServiceRoutes resolves the paths used by bound service clients.
type ServiceRoutes interface {
	FunctionCallRoute() string
}

// AppRoutes is the default route table for one application.
type AppRoutes struct {
	appID string
}

// NewAppRoutes returns the route table for appID.
func NewAppRoutes(appID string) *AppRoutes {
	return &AppRoutes{appID: appID}
}

func (r *AppRoutes) AppID() string { return r.appID }

func (r *AppRoutes) appRoute() string {
	return clientAPIPrefix + "/app/" + url.PathEscape(r.appID)
}

func (r *AppRoutes) BaseAuthRoute() string { return clientAPIPrefix + "/auth" }

func (r *AppRoutes) SessionRoute() string { return r.BaseAuthRoute() + "/session" }

func (r *AppRoutes) ProfileRoute() string { return r.BaseAuthRoute() + "/profile" }

// APIKeysRoute is the collection of the current user's API keys.
func (r *AppRoutes) APIKeysRoute() string { return r.BaseAuthRoute() + "/api_keys" }

func (r *AppRoutes) APIKeyRoute(id string) string {
	return r.APIKeysRoute() + "/" + url.PathEscape(id)
}

func (r *AppRoutes) AuthProviderRoute(providerName string) string {
	return r.appRoute() + "/auth/providers/" + url.PathEscape(providerName)
}

func (r *AppRoutes) AuthProviderLoginRoute(providerName string) string {
	return r.AuthProviderRoute(providerName) + "/login"
}

func (r *AppRoutes) AuthProviderLinkRoute(providerName string) string {
	return r.AuthProviderLoginRoute(providerName) + "?link=true"
}

func (r *AppRoutes) AuthProviderExtensionRoute(providerName, path string) string {
	return r.AuthProviderRoute(providerName) + "/" + strings.TrimPrefix(path, "/")
}

func (r *AppRoutes) FunctionCallRoute() string { return r.appRoute() + "/functions/call" }
