package pluginsdk

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidateConfig validates the plugin config against the manifest schema.
func (m *Manifest) ValidateConfig(config any) error {
	if err := m.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("encode plugin config: %w", err)
	}

	return ValidateJSON(m.ConfigSchema, payload)
}

// ValidateJSON validates a raw JSON document against a raw JSON-Schema
// document. Used for both plugin config (Manifest.ConfigSchema above) and
// tool call arguments against a ToolDefinition's declared parameters
// schema (spec.md §3).
func ValidateJSON(schema, data json.RawMessage) error {
	compiled, err := compileSchema(schema)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}

	if err := compiled.Validate(decoded); err != nil {
		return fmt.Errorf("document invalid: %w", err)
	}

	return nil
}

var schemaCache sync.Map

func compileSchema(schema []byte) (*jsonschema.Schema, error) {
	key := string(schema)
	if cached, ok := schemaCache.Load(key); ok {
		if compiled, ok := cached.(*jsonschema.Schema); ok {
			return compiled, nil
		}
	}

	compiled, err := jsonschema.CompileString("plugin.schema.json", key)
	if err != nil {
		return nil, err
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}
