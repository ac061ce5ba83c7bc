package tool

import "fmt"

// Call is one tool invocation requested by the model: an opaque ID (echoed
// back so the model can match results to calls) plus the tool name and its
// raw JSON arguments.
type Call struct {
	ID        string
	Name      string
	Arguments string
}

// Result is the outcome of invoking one Call.
type Result struct {
	ID     string
	Name   string
	Output string
	Err    error
}

// Helper dispatches a batch of model-issued tool calls against a Registry,
// so the controller doesn't have to know how each individual tool is
// implemented.
type Helper struct {
	registry *Registry
}

func NewHelper(registry *Registry) *Helper {
	return &Helper{registry: registry}
}

// ShouldInvokeToolCalls reports whether calls is non-empty — a small
// readability wrapper for a tool-calling loop's branch point.
func (h *Helper) ShouldInvokeToolCalls(calls []Call) bool {
	return len(calls) > 0
}

// ShouldReturnDirect reports whether any tool among calls is flagged
// return-direct, in which case the controller should stop the tool-calling
// loop and hand that tool's result straight back to the caller.
func (h *Helper) ShouldReturnDirect(calls []Call) bool {
	for _, c := range calls {
		t, ok := h.registry.Find(c.Name)
		if ok && t.Metadata().ReturnDirect() {
			return true
		}
	}
	return false
}

// InvokeToolCalls runs every call against the registry and collects their
// results in the same order. A call naming an unregistered tool, or one
// whose Call returns an error, still produces a Result (with Err set)
// rather than aborting the batch — one bad tool call shouldn't sink the
// rest of the turn.
func (h *Helper) InvokeToolCalls(ctx Context, calls []Call) []Result {
	results := make([]Result, len(calls))
	for i, c := range calls {
		t, ok := h.registry.Find(c.Name)
		if !ok {
			results[i] = Result{ID: c.ID, Name: c.Name, Err: fmt.Errorf("tool %q is not registered", c.Name)}
			continue
		}
		out, err := t.Call(ctx, c.Arguments)
		results[i] = Result{ID: c.ID, Name: c.Name, Output: out, Err: err}
	}
	return results
}
