// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/leafguard/leafguard/internal/config"
	"github.com/leafguard/leafguard/internal/xdg"
)

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	configFile string
}

// NewRootCmd creates the root command for the LeafGuard CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(rootDeps{})
}

// rootDeps carries per-command dependencies. Nil fields use the defaults.
type rootDeps struct {
	serve   *ServeDeps
	migrate *MigrateDeps
	purge   *CommonDeps
	status  *StatusDeps
}

// newRootCmd builds the command tree with injectable dependencies.
func newRootCmd(deps rootDeps) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "leafguard",
		Short: "LeafGuard - credential and password recovery service",
		Long: `LeafGuard serves account registration, login, and password
recovery for the LeafGuard app over a JSON HTTP API.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/leafguard/config.yaml if present)")

	cmd.AddCommand(NewServeCmd(opts, deps.serve))
	cmd.AddCommand(NewMigrateCmd(opts, deps.migrate))
	cmd.AddCommand(NewPurgeResetCodesCmd(opts, deps.purge))
	cmd.AddCommand(NewStatusCmd(opts, deps.status))

	return cmd
}

// loadConfig reads the config file named by --config, or the XDG default
// when one exists, then the command's own flags and the environment.
func loadConfig(cmd *cobra.Command, opts *rootOptions, load func(config.LoadOptions) (*config.Config, error)) (*config.Config, error) {
	if load == nil {
		load = config.Load
	}
	file := opts.configFile
	if file == "" {
		found, err := xdg.FindConfigFile()
		if err != nil {
			return nil, err
		}
		file = found
	}
	return load(config.LoadOptions{
		File:  file,
		Flags: cmd.Flags(),
	})
}
