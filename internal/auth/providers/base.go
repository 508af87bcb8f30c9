// Package providers holds the per-provider clients. They perform I/O and
// return results; they never touch session state.
package providers

import (
	"context"
	"net/http"

	"github.com/nghyane/stitch-sdk/internal/request"
	"github.com/nghyane/stitch-sdk/internal/routes"
)

// Base is the state every provider client shares. It is immutable after
// construction.
type Base struct {
	providerName string
	requester    request.Requester
	routes       routes.AuthRoutes
}

func NewBase(providerName string, requester request.Requester, r routes.AuthRoutes) Base {
	return Base{providerName: providerName, requester: requester, routes: r}
}

func (b Base) ProviderName() string { return b.providerName }

func (b Base) Requester() request.Requester { return b.requester }

func (b Base) Routes() routes.AuthRoutes { return b.routes }

// postExtension sends doc to one of the provider's extension routes.
func (b Base) postExtension(ctx context.Context, path string, doc map[string]any) error {
	_, err := b.requester.DoJSONRequest(ctx, request.DocRequest{
		StitchRequest: request.StitchRequest{
			Method: http.MethodPost,
			Path:   b.routes.AuthProviderExtensionRoute(b.providerName, path),
		},
		Document: doc,
	})
	return err
}
