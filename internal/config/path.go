package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ResolvePath expands a leading $XDG_CONFIG_HOME or ~ in path. An unset
// XDG_CONFIG_HOME falls back to ~/.config.
func ResolvePath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	var base, remainder string
	switch {
	case strings.HasPrefix(path, "$XDG_CONFIG_HOME"):
		base = os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("resolve path: %w", err)
			}
			base = filepath.Join(home, ".config")
		}
		remainder = strings.TrimPrefix(path, "$XDG_CONFIG_HOME")
	case strings.HasPrefix(path, "~"):
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve path: %w", err)
		}
		base = home
		remainder = strings.TrimPrefix(path, "~")
	default:
		return filepath.Clean(path), nil
	}

	remainder = strings.TrimLeft(remainder, "/\\")
	if remainder == "" {
		return filepath.Clean(base), nil
	}
	normalized := strings.ReplaceAll(remainder, "\\", "/")
	return filepath.Clean(filepath.Join(base, filepath.FromSlash(normalized))), nil
}
