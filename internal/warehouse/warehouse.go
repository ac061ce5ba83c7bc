// Package warehouse provides the single accessor for the BigQuery client
// used by both the retrieval engine and the SQL pipeline, plus the shared
// result-sanitisation layer both apply at their respective boundaries.
//
// The client is acquired once per process via lazy initialisation so that
// importing the agent without credentials configured stays safe, and is
// never constructed at package init time.
package warehouse

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Row is one sanitised result row, ready for JSON serialisation.
type Row map[string]any

// QueryResult is the outcome of a successful (possibly truncated) query
// execution.
type QueryResult struct {
	Rows      []Row
	RowCount  int
	Truncated bool
	JobID     string
}

// DryRunResult is the outcome of a dry-run validation.
type DryRunResult struct {
	Valid               bool
	EstimatedTotalBytes int64
	ErrorMessage        string
}

// Param is a single bound query parameter. User input must always arrive
// this way; it is never string-interpolated into SQL.
type Param struct {
	Name  string
	Value any
}

// Warehouse is the narrow surface both the retrieval engine and the SQL
// pipeline need from the underlying data warehouse. It is deliberately
// small so tests can fake it without standing up a BigQuery project.
type Warehouse interface {
	// DryRun issues a no-execute plan request for sql and reports whether it
	// would succeed, along with the estimated bytes scanned.
	DryRun(ctx context.Context, sql string) (*DryRunResult, error)

	// Query executes sql with the given bound parameters and a job timeout,
	// returning sanitised rows capped by the fetch timeout configured on the
	// Warehouse implementation.
	Query(ctx context.Context, sql string, params []Param, jobTimeout time.Duration) (*QueryResult, error)

	// ProjectID and Location, together with the package-level QualifiedName,
	// support building fully-qualified object names of the form
	// `project.dataset.table`.
	ProjectID() string
	Location() string
}

// QualifiedName renders the standard `project.dataset.table` reference used
// throughout generated SQL and DDL.
func QualifiedName(project, dataset, table string) string {
	return fmt.Sprintf("`%s.%s.%s`", project, dataset, table)
}

var (
	instanceMu sync.Mutex
	instance   Warehouse
)

// Set installs the process-wide Warehouse instance. Called once during
// startup wiring (or by tests, to install a fake).
func Set(w Warehouse) {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	instance = w
}

// Get returns the process-wide Warehouse instance, panicking if none has
// been installed via Set. The agent's tools do not call it: they use the
// Warehouse passed to agent.New.
func Get() Warehouse {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	if instance == nil {
		panic("warehouse: Get called before Set — warehouse client not initialised")
	}
	return instance
}

// Clear removes the process-wide Warehouse instance. Intended for tests.
func Clear() {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	instance = nil
}
