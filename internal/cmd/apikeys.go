package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/nghyane/stitch-sdk/internal/service"
)

// DoAPIKeys manages the logged-in user's API keys. action is list, create,
// enable, disable or delete; arg is the key name for create and the key id
// otherwise.
func DoAPIKeys(ctx context.Context, app *service.App, action, arg string, out io.Writer) error {
	keys := app.Auth().UserAPIKeyClient()
	needArg := func() error {
		if arg == "" {
			return fmt.Errorf("api-keys %s needs an argument", action)
		}
		return nil
	}

	switch action {
	case "", "list":
		list, err := keys.FetchAPIKeys(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "ID\tNAME\tDISABLED")
		for _, k := range list {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%t\n", k.ID, k.Name, k.Disabled)
		}
		return tw.Flush()
	case "create":
		if err := needArg(); err != nil {
			return err
		}
		key, err := keys.CreateAPIKey(ctx, arg)
		if err != nil {
			return err
		}
		return writeJSON(out, key)
	case "enable":
		if err := needArg(); err != nil {
			return err
		}
		return keys.EnableAPIKey(ctx, arg)
	case "disable":
		if err := needArg(); err != nil {
			return err
		}
		return keys.DisableAPIKey(ctx, arg)
	case "delete":
		if err := needArg(); err != nil {
			return err
		}
		return keys.DeleteAPIKey(ctx, arg)
	default:
		return fmt.Errorf("unknown api-keys action %q", action)
	}
}
