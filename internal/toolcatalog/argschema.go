package toolcatalog

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var schemaCache sync.Map

func compileSchema(raw json.RawMessage) (*jsonschema.Schema, error) {
	key := string(raw)
	if cached, ok := schemaCache.Load(key); ok {
		return cached.(*jsonschema.Schema), nil
	}

	compiled, err := jsonschema.CompileString("tool.schema.json", key)
	if err != nil {
		return nil, err
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}

// ValidateArgs checks args against a tool's InputSchema, the same
// compile-and-cache pattern the plugin SDK uses for manifest config.
func ValidateArgs(inputSchema json.RawMessage, args map[string]any) error {
	if len(inputSchema) == 0 {
		return nil
	}
	schema, err := compileSchema(inputSchema)
	if err != nil {
		return fmt.Errorf("compile tool schema: %w", err)
	}

	if args == nil {
		args = map[string]any{}
	}
	payload, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode tool args: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("decode tool args: %w", err)
	}

	if err := schema.Validate(decoded); err != nil {
		return fmt.Errorf("tool args invalid: %w", err)
	}
	return nil
}
