// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

// Package xdg locates LeafGuard files under the XDG Base Directory layout.
package xdg

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "leafguard"

// ConfigFileName is the config file looked up in ConfigDir.
const ConfigFileName = "config.yaml"

// ConfigDir returns the XDG config directory for leafguard.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", oops.Code("XDG_NO_HOME").Wrap(err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, appName), nil
}

// FindConfigFile returns the path of the default config file when one
// exists, or "" when there is none.
func FindConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, ConfigFileName)
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", nil
	case err != nil:
		return "", oops.Code("XDG_STAT_FAILED").With("path", path).Wrap(err)
	case info.IsDir():
		return "", oops.Code("XDG_STAT_FAILED").With("path", path).Errorf("config path is a directory")
	}
	return path, nil
}
