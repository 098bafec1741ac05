// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

package config

import (
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"addr":         "http.addr",
	"base-path":    "http.base_path",
	"metrics-addr": "metrics.addr",
	"env":          "app.env",
	"log-level":    "log.level",
	"log-format":   "log.format",
}

// RegisterFlags adds the config override flags to fs. Only flags the user
// sets take effect; their defaults are shown for help output.
func RegisterFlags(fs *pflag.FlagSet) {
	def := Default()
	fs.String("addr", def.HTTP.Addr, "HTTP API listen address")
	fs.String("base-path", def.HTTP.BasePath, "path prefix for the auth routes")
	fs.String("metrics-addr", def.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	fs.String("env", def.App.Env, "environment: development, production or test")
	fs.String("log-level", def.Log.Level, "log level: debug, info, warn or error")
	fs.String("log-format", def.Log.Format, "log format: json or text")
}

// LoadOptions selects the sources Load reads.
type LoadOptions struct {
	// File is an optional YAML config path.
	File string
	// Flags holds flags registered with RegisterFlags. May be nil.
	Flags *pflag.FlagSet
	// Environ overrides the process environment. Nil reads os.Environ.
	Environ map[string]string
}

// Load builds a Config. It does not call Validate.
func Load(opts LoadOptions) (*Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if opts.File != "" {
		data, err := os.ReadFile(opts.File)
		if err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("file", opts.File).Wrap(err)
		}
		if err := ValidateSchema(data); err != nil {
			return nil, oops.With("file", opts.File).Wrap(err)
		}
		if err := k.Load(file.Provider(opts.File), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("file", opts.File).Wrap(err)
		}
	}

	if opts.Flags != nil {
		fs := opts.Flags
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Environment: opts.Environ}); err != nil {
		return nil, oops.Code("CONFIG_ENV_FAILED").Wrap(err)
	}
	return &cfg, nil
}
