package toolkit

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// SchemaOf derives a JSON schema from a Go struct using its `json` and
// `jsonschema` field tags, for built-in tools whose argument shape is a
// typed Go struct (SendDMail, CreateSubagent) rather than a hand-authored
// schema string. Function-shaped tools that already own a schema document
// (MCP-sourced tools, for instance) should return it directly from
// Tool.Schema instead of going through this helper.
func SchemaOf(v any) json.RawMessage {
	reflector := &jsonschema.Reflector{
		ExpandedStruct:            true,
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	schema := reflector.Reflect(v)
	out, err := json.Marshal(schema)
	if err != nil {
		// Reflection-derived schemas never fail to marshal; a struct that
		// does would already be broken at compile time for any other
		// encoding/json caller.
		panic(err)
	}
	return out
}
