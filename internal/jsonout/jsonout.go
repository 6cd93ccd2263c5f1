// Package jsonout marshals the CLI's `--json` payloads and validates them
// against the schemas spec.md §6 defines, grounded on the teacher's
// internal/mcp/server.go pattern of building *jsonschema.Schema literals by
// hand for every tool's input contract. There the schema described what the
// MCP client could send in; here it describes what the CLI promises to
// print, checked once at marshal time rather than left to drift from the
// Go structs that produce it.
package jsonout

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// validate resolves schema once per call and checks v (already round-tripped
// through JSON so the schema sees plain maps/slices/numbers, the same shape
// a real stdout consumer would parse) against it.
func validate(schema *jsonschema.Schema, v any) error {
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("jsonout: resolve schema: %w", err)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("jsonout: marshal for validation: %w", err)
	}
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return fmt.Errorf("jsonout: unmarshal for validation: %w", err)
	}
	if err := resolved.Validate(instance); err != nil {
		return fmt.Errorf("jsonout: schema validation: %w", err)
	}
	return nil
}

// marshalValidated validates v against schema, then marshals it for real.
// A payload that fails its own schema is a logic error (spec.md §7.5): the
// caller gets it back unwritten rather than emitting a contract-breaking
// line of JSON.
func marshalValidated(schema *jsonschema.Schema, v any) ([]byte, error) {
	if err := validate(schema, v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}
