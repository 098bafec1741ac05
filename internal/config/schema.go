// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

package config

import (
	"bytes"
	"encoding/json"
	"reflect"
	"sync"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// SchemaID is the $id of the config file schema.
const SchemaID = "https://leafguard.app/schemas/config.schema.json"

const durationPattern = `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`

var (
	compileOnce sync.Once
	compiled    *jschema.Schema
	compileErr  error
)

// GenerateSchema returns the JSON Schema for the YAML config file.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == reflect.TypeOf(time.Duration(0)) {
				return &jsonschema.Schema{Type: "string", Pattern: durationPattern}
			}
			return nil
		},
	}
	schema := r.Reflect(&Config{})
	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "LeafGuard Server Configuration"
	schema.Description = "Schema for leafguard.yaml config files"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("CONFIG_SCHEMA_FAILED").Wrap(err)
	}
	return data, nil
}

// ValidateSchema checks YAML config data against the config schema.
func ValidateSchema(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return oops.Code("CONFIG_INVALID").With("stage", "parse").Wrap(err)
	}
	if doc == nil {
		// An empty file configures nothing.
		return nil
	}

	sch, err := compiledSchema()
	if err != nil {
		return err
	}
	if err := sch.Validate(doc); err != nil {
		return oops.Code("CONFIG_INVALID").With("stage", "schema").Wrap(err)
	}
	return nil
}

func compiledSchema() (*jschema.Schema, error) {
	compileOnce.Do(func() {
		raw, err := GenerateSchema()
		if err != nil {
			compileErr = err
			return
		}
		doc, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			compileErr = oops.Code("CONFIG_SCHEMA_FAILED").Wrap(err)
			return
		}
		c := jschema.NewCompiler()
		if err := c.AddResource("config.schema.json", doc); err != nil {
			compileErr = oops.Code("CONFIG_SCHEMA_FAILED").Wrap(err)
			return
		}
		compiled, compileErr = c.Compile("config.schema.json")
		if compileErr != nil {
			compileErr = oops.Code("CONFIG_SCHEMA_FAILED").Wrap(compileErr)
		}
	})
	return compiled, compileErr
}
