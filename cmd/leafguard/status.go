// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/leafguard/leafguard/internal/config"
)

// EndpointStatus is the probe result for one listener.
type EndpointStatus struct {
	Component string `json:"component"`
	URL       string `json:"url,omitempty"`
	Up        bool   `json:"up"`
	Health    string `json:"health,omitempty"`
	Error     string `json:"error,omitempty"`
}

// StatusDeps contains injectable dependencies for the status command.
type StatusDeps struct {
	// ConfigLoader builds the configuration.
	// Default: config.Load
	ConfigLoader func(opts config.LoadOptions) (*config.Config, error)

	// Client performs the probes.
	// Default: an http.Client with a 2s timeout
	Client *http.Client
}

func (d *StatusDeps) withDefaults() {
	if d.ConfigLoader == nil {
		d.ConfigLoader = config.Load
	}
	if d.Client == nil {
		d.Client = &http.Client{Timeout: 2 * time.Second}
	}
}

type statusOptions struct {
	jsonOutput bool
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd(root *rootOptions, deps *StatusDeps) *cobra.Command {
	if deps == nil {
		deps = &StatusDeps{}
	}
	deps.withDefaults()
	opts := &statusOptions{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show status of a running LeafGuard server",
		Long: `Probe the API health route and the metrics readiness route of a
running server, using the same addresses serve would listen on.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, root, opts, deps)
		},
	}
	config.RegisterFlags(cmd.Flags())
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "output status as JSON")
	return cmd
}

func runStatus(cmd *cobra.Command, root *rootOptions, opts *statusOptions, deps *StatusDeps) error {
	cfg, err := loadConfig(cmd, root, deps.ConfigLoader)
	if err != nil {
		return oops.With("operation", "load config").Wrap(err)
	}

	ctx := cmd.Context()
	statuses := []EndpointStatus{
		probe(ctx, deps.Client, "api", cfg.HTTP.Addr, "/health"),
	}
	if cfg.Metrics.Addr != "" {
		statuses = append(statuses, probe(ctx, deps.Client, "metrics", cfg.Metrics.Addr, "/healthz/readiness"))
	}

	if opts.jsonOutput {
		data, err := json.MarshalIndent(statuses, "", "  ")
		if err != nil {
			return oops.Code("STATUS_FORMAT_FAILED").Wrap(err)
		}
		cmd.Println(string(data))
	} else {
		cmd.Print(formatStatusTable(statuses))
	}

	for _, s := range statuses {
		if !s.Up {
			return oops.Code("SERVER_DOWN").With("component", s.Component).Errorf("%s is not healthy", s.Component)
		}
	}
	return nil
}

// probe issues a GET to path on the listener bound to addr.
func probe(ctx context.Context, client *http.Client, component, addr, path string) EndpointStatus {
	status := EndpointStatus{Component: component}

	host, err := dialAddr(addr)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.URL = "http://" + host + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, status.URL, nil)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	resp, err := client.Do(req)
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		status.Error = resp.Status
		return status
	}
	status.Up = true
	status.Health = healthOf(resp)
	return status
}

// healthOf reads the JSON status field of the API health route, or the plain
// text body of the readiness route.
func healthOf(resp *http.Response) string {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(io.LimitReader(resp.Body, 4096)); err != nil {
		return "unknown"
	}
	var body struct {
		Status string `json:"status"`
	}
	if json.Unmarshal(buf.Bytes(), &body) == nil && body.Status != "" {
		return body.Status
	}
	if text := strings.TrimSpace(buf.String()); text != "" {
		return text
	}
	return "unknown"
}

// dialAddr turns a listen address into one a client can dial. Wildcard and
// empty hosts become loopback.
func dialAddr(addr string) (string, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", oops.Code("INVALID_ADDR").With("addr", addr).Wrap(err)
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port), nil
}

func formatStatusTable(statuses []EndpointStatus) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "COMPONENT\tSTATUS\tHEALTH\tURL")
	for _, s := range statuses {
		if s.Up {
			_, _ = fmt.Fprintf(w, "%s\tup\t%s\t%s\n", s.Component, s.Health, s.URL)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\tdown\t%s\t%s\n", s.Component, s.Error, s.URL)
	}

	_ = w.Flush()
	return buf.String()
}
