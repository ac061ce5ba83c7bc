package tool

// Metadata carries tool behaviour flags that sit outside the LLM-facing
// Definition.
type Metadata struct {
	returnDirect bool
}

// NewMetadata builds a Metadata. returnDirect, when true, tells the
// controller to surface the tool's result to the caller verbatim instead of
// feeding it back into another model turn.
func NewMetadata(returnDirect bool) *Metadata {
	return &Metadata{returnDirect: returnDirect}
}

func (m *Metadata) ReturnDirect() bool { return m.returnDirect }
