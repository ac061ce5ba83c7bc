package tool

import "fmt"

// Tool is the read-only surface the controller needs to describe a tool to
// the model and to know how to handle its result.
type Tool interface {
	Definition() *Definition
	Metadata() *Metadata
}

// Caller invokes a tool with its raw JSON arguments (as the model emitted
// them) and returns the raw text to feed back as the tool result.
type Caller func(ctx Context, argsJSON string) (string, error)

// CallableTool is a Tool that can actually be invoked.
type CallableTool interface {
	Tool
	Call(ctx Context, argsJSON string) (string, error)
}

type tool struct {
	definition *Definition
	metadata   *Metadata
}

func (t *tool) Definition() *Definition { return t.definition }
func (t *tool) Metadata() *Metadata     { return t.metadata }

type callableTool struct {
	tool
	caller Caller
}

func (t *callableTool) Call(ctx Context, argsJSON string) (string, error) {
	return t.caller(ctx, argsJSON)
}

// Builder assembles a CallableTool from a Definition, optional Metadata, and
// a Caller, validating that all required pieces are present before Build.
type Builder struct {
	definition *Definition
	metadata   *Metadata
	caller     Caller
}

func NewBuilder() *Builder { return &Builder{} }

func (b *Builder) WithDefinition(d *Definition) *Builder {
	b.definition = d
	return b
}

func (b *Builder) WithMetadata(m *Metadata) *Builder {
	b.metadata = m
	return b
}

func (b *Builder) WithCaller(c Caller) *Builder {
	b.caller = c
	return b
}

func (b *Builder) validate() error {
	if b.definition == nil {
		return fmt.Errorf("tool builder: definition is required")
	}
	if b.caller == nil {
		return fmt.Errorf("tool builder: caller is required")
	}
	return nil
}

func (b *Builder) Build() (CallableTool, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	metadata := b.metadata
	if metadata == nil {
		metadata = NewMetadata(false)
	}
	return &callableTool{
		tool:   tool{definition: b.definition, metadata: metadata},
		caller: b.caller,
	}, nil
}

// MustBuild panics on error; intended for tool registration at startup
// where a bad definition is a programmer error, not a runtime condition.
func (b *Builder) MustBuild() CallableTool {
	t, err := b.Build()
	if err != nil {
		panic(err)
	}
	return t
}
