package toolsets

import (
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/harness/mcp-server/internal/rpcerr"
)

// Schema helpers for tool definitions

// ObjectSchema builds an object schema with the given properties.
func ObjectSchema(properties map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
}

// StringProperty describes a string argument.
func StringProperty(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: description}
}

// Argument accessors. Schema validation runs before handlers, so this only
// guards against handlers reading arguments their schema does not declare.

// OptionalString returns a string argument or "" when absent.
func OptionalString(args Arguments, name string) (string, error) {
	value, ok := args[name]
	if !ok || value == nil {
		return "", nil
	}
	s, ok := value.(string)
	if !ok {
		return "", rpcerr.New(rpcerr.InvalidArguments, "parameter %s must be a string", name)
	}
	return s, nil
}
