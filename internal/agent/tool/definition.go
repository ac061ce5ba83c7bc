package tool

import (
	"fmt"

	"github.com/invopop/jsonschema"
)

// Definition is the immutable, LLM-facing description of a tool: its name,
// natural-language description, and the JSON schema its arguments must
// satisfy. Construct one with NewDefinition rather than the struct literal
// so the schema is always derived from a real Go type.
type Definition struct {
	name        string
	description string
	inputSchema *jsonschema.Schema
}

func (d *Definition) Name() string                    { return d.name }
func (d *Definition) Description() string             { return d.description }
func (d *Definition) InputSchema() *jsonschema.Schema { return d.inputSchema }

// NewDefinition derives a tool's input schema from params (a pointer to a
// zero-value struct tagged with `jsonschema` tags), instead of hand-writing
// a schema string per tool.
func NewDefinition(name, description string, params any) (*Definition, error) {
	if name == "" {
		return nil, fmt.Errorf("tool: name is required")
	}
	if description == "" {
		return nil, fmt.Errorf("tool: description is required for %s", name)
	}

	reflector := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: false,
	}
	schema := reflector.Reflect(params)

	return &Definition{name: name, description: description, inputSchema: schema}, nil
}

// MustNewDefinition panics on error; intended for package-level var
// initialisation where the schema is known good at compile time.
func MustNewDefinition(name, description string, params any) *Definition {
	d, err := NewDefinition(name, description, params)
	if err != nil {
		panic(err)
	}
	return d
}
