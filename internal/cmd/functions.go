package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/nghyane/stitch-sdk/internal/json"
	"github.com/nghyane/stitch-sdk/internal/service"
)

// DoCallFunction calls name with rawArgs, a JSON array (or a single JSON
// value treated as one argument), and prints the result. A non-empty
// serviceName routes the call through that service.
func DoCallFunction(ctx context.Context, app *service.App, serviceName, name, rawArgs string, out io.Writer) error {
	args, err := parseArgs(rawArgs)
	if err != nil {
		return err
	}
	var result any
	if err = app.ServiceClient(serviceName).CallFunction(ctx, name, args, &result); err != nil {
		return fmt.Errorf("function %s failed: %w", name, err)
	}
	return writeJSON(out, result)
}

func parseArgs(raw string) ([]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []any{}, nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("arguments must be JSON: %w", err)
	}
	if list, ok := v.([]any); ok {
		return list, nil
	}
	return []any{v}, nil
}
