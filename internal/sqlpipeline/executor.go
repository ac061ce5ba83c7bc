package sqlpipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/LuisDee/nl2sql-sub001/internal/errs"
	"github.com/LuisDee/nl2sql-sub001/internal/warehouse"
)

// Config bundles the tunables the pipeline needs from the process config
// without depending on the config package directly, keeping this package
// testable with plain literals.
type Config struct {
	RowCap       int
	QueryTimeout time.Duration
}

// DryRunSQL validates sql against the warehouse planner without executing
// it. A GuardError short-circuits before the warehouse is ever called.
func DryRunSQL(ctx context.Context, wh warehouse.Warehouse, sql string) (*warehouse.DryRunResult, error) {
	if blocked, reason := IsBlocked(sql); blocked {
		return nil, &errs.GuardError{Reason: reason}
	}
	res, err := wh.DryRun(ctx, sql)
	if err != nil {
		return nil, &errs.ExecutionError{Op: "dry_run", Err: err}
	}
	if !res.Valid {
		return res, &errs.DryRunInvalidError{WarehouseMessage: res.ErrorMessage}
	}
	return res, nil
}

// ExecuteResult is the caller-facing outcome of ExecuteSQL, already shaped
// for the tool-response contract: Warning is set on truncation.
type ExecuteResult struct {
	Rows      []warehouse.Row
	RowCount  int
	IssuedSQL string
	Warning   string
}

// ExecuteSQL runs the guard, applies the auto-LIMIT, executes with the
// configured job timeout, and returns sanitised rows. On truncation (row
// count equals the cap), Warning instructs the caller to narrow the
// filter.
func ExecuteSQL(ctx context.Context, wh warehouse.Warehouse, sql string, cfg Config, log *zap.Logger) (*ExecuteResult, error) {
	if blocked, reason := IsBlocked(sql); blocked {
		return nil, &errs.GuardError{Reason: reason}
	}

	issued := EnsureLimit(sql, cfg.RowCap)

	res, err := wh.Query(ctx, issued, nil, cfg.QueryTimeout)
	if err != nil {
		return nil, err
	}

	rows := make([]warehouse.Row, len(res.Rows))
	for i, r := range res.Rows {
		rows[i] = warehouse.SanitizeRow(r)
	}

	out := &ExecuteResult{
		Rows:      rows,
		RowCount:  res.RowCount,
		IssuedSQL: issued,
	}
	if res.RowCount >= cfg.RowCap {
		out.Warning = fmt.Sprintf("result truncated at %d rows; narrow your filter (e.g. a tighter time range) to see more", cfg.RowCap)
		if log != nil {
			log.Info("execute_sql truncated", zap.Int("row_cap", cfg.RowCap))
		}
	}
	return out, nil
}
