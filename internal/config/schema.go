package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	jsonschemavalidate "github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	schemaOnce   sync.Once
	schemaJSON   []byte
	schemaErr    error
	compiledOnce sync.Once
	compiled     *jsonschemavalidate.Schema
	compileErr   error
)

// JSONSchema returns the JSON Schema reflected from the Config struct.
func JSONSchema() ([]byte, error) {
	schemaOnce.Do(func() {
		r := &jsonschema.Reflector{FieldNameTag: "json"}
		schema := r.Reflect(&Config{})
		schemaJSON, schemaErr = json.MarshalIndent(schema, "", "  ")
	})
	return schemaJSON, schemaErr
}

func validateAgainstSchema(payload []byte) error {
	compiledOnce.Do(func() {
		raw, err := JSONSchema()
		if err != nil {
			compileErr = err
			return
		}
		compiler := jsonschemavalidate.NewCompiler()
		if err := compiler.AddResource("runtime-config.schema.json", bytes.NewReader(raw)); err != nil {
			compileErr = err
			return
		}
		compiled, compileErr = compiler.Compile("runtime-config.schema.json")
	})
	if compileErr != nil {
		return fmt.Errorf("compile runtime config schema: %w", compileErr)
	}

	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("decode config for schema validation: %w", err)
	}
	if err := compiled.Validate(decoded); err != nil {
		return fmt.Errorf("config failed schema validation: %w", err)
	}
	return nil
}
