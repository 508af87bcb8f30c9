package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nghyane/stitch-sdk/internal/config"
	log "github.com/nghyane/stitch-sdk/internal/logging"
	"github.com/nghyane/stitch-sdk/internal/service"
)

// DoInitConfig writes a default configuration file. An existing file is
// kept unless force is set.
func DoInitConfig(path string, force bool, out io.Writer) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists; use --force to overwrite", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(path, config.GenerateDefaultConfigYAML(), 0o600); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Wrote default config to %s; set app-id before use\n", path)
	return nil
}

// DoWatch applies configuration changes until ctx is cancelled.
func DoWatch(ctx context.Context, app *service.App, out io.Writer) error {
	if err := app.WatchConfig(ctx); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, "Watching configuration; press Ctrl+C to stop")
	<-ctx.Done()
	log.Debug("config watch stopped")
	return nil
}
