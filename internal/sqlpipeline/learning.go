package sqlpipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/LuisDee/nl2sql-sub001/internal/errs"
	"github.com/LuisDee/nl2sql-sub001/internal/warehouse"
)

// ValidatedQuery is one trader-confirmed question/SQL pair to append to
// query-memory.
type ValidatedQuery struct {
	Question      string
	SQL           string
	Tables        []string
	Dataset       string
	Complexity    string
	RoutingSignal string
	ValidatorID   string
}

// SaveOutcome reports whether the learning-loop write fully succeeded or
// only partially (row inserted, embedding deferred).
type SaveOutcome struct {
	Status string // "success" or "partial_success"
	RowID  string
}

// MetadataTable names the query-memory table in the metadata dataset.
const MetadataTable = "query_memory"

// SaveValidatedQuery inserts vq into query-memory and immediately attempts
// to trigger re-embedding. If embedding fails, the row itself is still
// durable (it will be picked up by the next generate-embeddings refresh),
// so the outcome downgrades to partial_success, returned together with an
// *errs.EmbeddingError. With no embedNow callback the outcome is
// partial_success with no error.
func SaveValidatedQuery(
	ctx context.Context,
	wh warehouse.Warehouse,
	metadataDataset string,
	vq ValidatedQuery,
	embedNow func(ctx context.Context, text string) error,
	autonomousEmbeddings bool,
) (*SaveOutcome, error) {
	if blocked, reason := IsBlocked(vq.SQL); blocked {
		return nil, &errs.GuardError{Reason: reason}
	}

	rowID := uuid.NewString()
	insertSQL := fmt.Sprintf(
		"INSERT INTO %s (id, question, sql, tables, dataset, complexity, routing_signal, validator_id, created_at, embedding) "+
			"VALUES (@id, @question, @sql, @tables, @dataset, @complexity, @routing_signal, @validator_id, CURRENT_TIMESTAMP(), NULL)",
		warehouse.QualifiedName(wh.ProjectID(), metadataDataset, MetadataTable),
	)

	// The learning-loop write is itself DML against the metadata dataset, not
	// the read-only data datasets the guard protects, so it is issued
	// directly rather than through ExecuteSQL/IsBlocked.
	_, err := wh.Query(ctx, insertSQL, []warehouse.Param{
		{Name: "id", Value: rowID},
		{Name: "question", Value: vq.Question},
		{Name: "sql", Value: vq.SQL},
		{Name: "tables", Value: vq.Tables},
		{Name: "dataset", Value: vq.Dataset},
		{Name: "complexity", Value: vq.Complexity},
		{Name: "routing_signal", Value: vq.RoutingSignal},
		{Name: "validator_id", Value: vq.ValidatorID},
	}, 30*time.Second)
	if err != nil {
		return nil, &errs.ExecutionError{Op: "save_validated_query", Err: err}
	}

	if autonomousEmbeddings {
		// No embedding is requested in this mode; the row keeps a NULL
		// embedding and the outcome is reported as success.
		return &SaveOutcome{Status: "success", RowID: rowID}, nil
	}

	if embedNow == nil {
		return &SaveOutcome{Status: "partial_success", RowID: rowID}, nil
	}
	if err := embedNow(ctx, vq.Question); err != nil {
		return &SaveOutcome{Status: "partial_success", RowID: rowID}, &errs.EmbeddingError{Err: err}
	}
	return &SaveOutcome{Status: "success", RowID: rowID}, nil
}
