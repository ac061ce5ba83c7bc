package warehouse

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/LuisDee/nl2sql-sub001/internal/errs"
)

// BigQuery adapts *bigquery.Client to the Warehouse interface. It is the
// only file in this package that imports cloud.google.com/go/bigquery; every
// other component depends on the Warehouse interface instead, so tests can
// swap in a fake.
type BigQuery struct {
	client    *bigquery.Client
	projectID string
	location  string
	fetchCap  time.Duration
	log       *zap.Logger
}

// NewBigQuery constructs a BigQuery-backed Warehouse. fetchCap bounds how
// long row materialisation may wait after the job completes, separately
// from the job's own run timeout.
func NewBigQuery(ctx context.Context, projectID, location string, fetchCap time.Duration, log *zap.Logger) (*BigQuery, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("warehouse: connect to bigquery: %w", err)
	}
	client.Location = location
	return &BigQuery{
		client:    client,
		projectID: projectID,
		location:  location,
		fetchCap:  fetchCap,
		log:       log,
	}, nil
}

func (b *BigQuery) ProjectID() string { return b.projectID }
func (b *BigQuery) Location() string  { return b.location }

func (b *BigQuery) DryRun(ctx context.Context, sql string) (*DryRunResult, error) {
	q := b.client.Query(sql)
	q.DryRun = true

	job, err := q.Run(ctx)
	if err != nil {
		return &DryRunResult{Valid: false, ErrorMessage: err.Error()}, nil
	}

	status := job.LastStatus()
	if status.Err() != nil {
		return &DryRunResult{Valid: false, ErrorMessage: status.Err().Error()}, nil
	}

	var bytes int64
	if stats, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
		bytes = stats.TotalBytesProcessed
	}
	return &DryRunResult{Valid: true, EstimatedTotalBytes: bytes}, nil
}

func (b *BigQuery) Query(ctx context.Context, sql string, params []Param, jobTimeout time.Duration) (*QueryResult, error) {
	q := b.client.Query(sql)
	for _, p := range params {
		q.Parameters = append(q.Parameters, bigquery.QueryParameter{Name: p.Name, Value: p.Value})
	}

	jobCtx := ctx
	if jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, jobTimeout)
		defer cancel()
	}

	job, err := q.Run(jobCtx)
	if err != nil {
		return nil, &errs.ExecutionError{Op: "run", Err: err}
	}

	fetchCtx, fetchCancel := context.WithTimeout(ctx, b.fetchCap)
	defer fetchCancel()

	it, err := job.Read(fetchCtx)
	if err != nil {
		return nil, &errs.ExecutionError{Op: "read", Err: err}
	}

	result := &QueryResult{JobID: job.ID()}
	for {
		var raw map[string]bigquery.Value
		err := it.Next(&raw)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, &errs.ExecutionError{Op: "iterate", Err: err}
		}

		plain := make(map[string]any, len(raw))
		for k, v := range raw {
			plain[k] = v
		}
		result.Rows = append(result.Rows, SanitizeRow(plain))
	}
	result.RowCount = len(result.Rows)
	return result, nil
}

// Close releases the underlying client. Called once at process shutdown.
func (b *BigQuery) Close() error {
	return b.client.Close()
}
