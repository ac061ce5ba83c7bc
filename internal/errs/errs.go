// Package errs defines the observable error taxonomy used across the agent
// runtime. Each type corresponds to one row of the error taxonomy table:
// callers use errors.As to classify a failure and decide how to surface it.
package errs

import "fmt"

// ConfigError signals a missing or invalid configuration value. Fatal at
// startup; never recoverable within a running process.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// CatalogError signals a YAML parse failure, a cross-reference violation, or
// a schema violation discovered while loading the catalog. Fatal at load
// time.
type CatalogError struct {
	Source string // file or entity the error was found in
	Err    error
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("catalog: %s: %v", e.Source, e.Err)
}

func (e *CatalogError) Unwrap() error { return e.Err }

// GuardError signals that the DML/multi-statement guard rejected a
// statement. Recoverable: the LLM is expected to retry with corrected SQL.
type GuardError struct {
	Reason string
}

func (e *GuardError) Error() string { return "guard: " + e.Reason }

// DryRunInvalidError wraps the warehouse planner's verbatim error message
// from a failed dry run. Recoverable up to N_dry_run_retries.
type DryRunInvalidError struct {
	WarehouseMessage string
}

func (e *DryRunInvalidError) Error() string {
	return "dry run invalid: " + e.WarehouseMessage
}

// ExecutionError signals a timeout, permission, or not-found failure during
// query execution. May be retried once by the controller, then surfaces to
// the user.
type ExecutionError struct {
	Op  string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution: %s: %v", e.Op, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// EmbeddingError signals that re-embedding a learning-loop write failed.
// Never fatal: it downgrades the overall result to partial_success, since
// the row is already durable and will be picked up by the next refresh.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string { return "embedding deferred: " + e.Err.Error() }

func (e *EmbeddingError) Unwrap() error { return e.Err }

// LoopError signals that the per-turn repetition or tool-call budget was
// exhausted. Blocks further tool calls for the remainder of the turn; the
// controller translates this into a "please rephrase" message.
type LoopError struct {
	Reason string
}

func (e *LoopError) Error() string { return "loop: " + e.Reason }

// SanitisationError signals that a single field could not be converted to a
// JSON-safe primitive. Never fatal: the sanitiser degrades to a best-effort
// string representation for that field only.
type SanitisationError struct {
	Field string
	Err   error
}

func (e *SanitisationError) Error() string {
	return fmt.Sprintf("sanitisation: %s: %v", e.Field, e.Err)
}

func (e *SanitisationError) Unwrap() error { return e.Err }
