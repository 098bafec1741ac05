// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

// Command gen-schema generates the config file JSON Schema.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/leafguard/leafguard/internal/config"
)

func main() {
	outPath := filepath.Join("schemas", "config.schema.json")
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := run(outPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generated %s\n", outPath)
}

func run(outPath string) error {
	schema, err := config.GenerateSchema()
	if err != nil {
		return fmt.Errorf("generating schema: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := os.WriteFile(outPath, append(schema, '\n'), 0o600); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
