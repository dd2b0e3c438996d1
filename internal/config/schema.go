// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// SchemaID is the $id of the generated config schema.
const SchemaID = "https://holomush.dev/schemas/accounts-config.schema.json"

const durationPattern = `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`

var (
	compileOnce    sync.Once
	compiledSchema *jschema.Schema
	compileErr     error
)

// GenerateSchema generates a JSON Schema from the Config struct.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(&Config{})
	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "Accounts Service Configuration"
	schema.Description = "Schema for the accounts config.yaml file"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("SCHEMA_GENERATE_FAILED").Wrap(err)
	}
	return data, nil
}

// JSONSchemaExtend describes timeout as a duration string.
func (StoreConfig) JSONSchemaExtend(s *jsonschema.Schema) { durationProperty(s, "timeout") }

// JSONSchemaExtend describes ttl as a duration string.
func (SessionConfig) JSONSchemaExtend(s *jsonschema.Schema) { durationProperty(s, "ttl") }

// JSONSchemaExtend describes validity as a duration string.
func (SubscriptionConfig) JSONSchemaExtend(s *jsonschema.Schema) { durationProperty(s, "validity") }

func durationProperty(s *jsonschema.Schema, name string) {
	if s.Properties == nil {
		return
	}
	if p, ok := s.Properties.Get(name); ok {
		p.Type = "string"
		p.Pattern = durationPattern
		p.Description = "Go duration such as 30s or 24h"
	}
}

// ValidateYAML validates YAML config data against the config JSON Schema.
func ValidateYAML(data []byte) error {
	if len(data) == 0 {
		return oops.Code("CONFIG_INVALID").Errorf("config data is empty")
	}

	var yamlData any
	if err := yaml.Unmarshal(data, &yamlData); err != nil {
		return oops.Code("CONFIG_INVALID").Wrapf(err, "invalid YAML")
	}

	sch, err := schemaValidator()
	if err != nil {
		return err
	}
	if err := sch.Validate(convertToJSONTypes(yamlData)); err != nil {
		return oops.Code("CONFIG_INVALID").Wrapf(err, "schema validation failed")
	}
	return nil
}

func schemaValidator() (*jschema.Schema, error) {
	compileOnce.Do(func() {
		var schemaBytes []byte
		schemaBytes, compileErr = GenerateSchema()
		if compileErr != nil {
			return
		}
		var schemaData any
		if compileErr = json.Unmarshal(schemaBytes, &schemaData); compileErr != nil {
			compileErr = oops.Code("SCHEMA_COMPILE_FAILED").Wrap(compileErr)
			return
		}
		c := jschema.NewCompiler()
		if compileErr = c.AddResource("config.schema.json", schemaData); compileErr != nil {
			compileErr = oops.Code("SCHEMA_COMPILE_FAILED").Wrap(compileErr)
			return
		}
		compiledSchema, compileErr = c.Compile("config.schema.json")
		if compileErr != nil {
			compileErr = oops.Code("SCHEMA_COMPILE_FAILED").Wrap(compileErr)
		}
	})
	return compiledSchema, compileErr
}

// convertToJSONTypes rewrites YAML-decoded values into the shapes the JSON
// validator accepts.
func convertToJSONTypes(v any) any {
	switch val := v.(type) {
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, v := range val {
			result[k] = convertToJSONTypes(v)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, v := range val {
			result[i] = convertToJSONTypes(v)
		}
		return result
	case string, int, int64, float64, bool, nil:
		return val
	default:
		if b, err := json.Marshal(val); err == nil {
			var result any
			if err := json.Unmarshal(b, &result); err == nil {
				return result
			}
		}
		return val
	}
}
