package sqlpipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LuisDee/nl2sql-sub001/internal/errs"
	"github.com/LuisDee/nl2sql-sub001/internal/warehouse"
)

type fakeWarehouse struct {
	dryRunResult *warehouse.DryRunResult
	dryRunErr    error
	queryResult  *warehouse.QueryResult
	queryErr     error
	lastSQL      string
}

func (f *fakeWarehouse) DryRun(ctx context.Context, sql string) (*warehouse.DryRunResult, error) {
	f.lastSQL = sql
	return f.dryRunResult, f.dryRunErr
}

func (f *fakeWarehouse) Query(ctx context.Context, sql string, params []warehouse.Param, jobTimeout time.Duration) (*warehouse.QueryResult, error) {
	f.lastSQL = sql
	return f.queryResult, f.queryErr
}

func (f *fakeWarehouse) ProjectID() string { return "proj" }
func (f *fakeWarehouse) Location() string  { return "US" }

func TestDryRunSQL_BlockedNeverReachesWarehouse(t *testing.T) {
	fw := &fakeWarehouse{dryRunErr: errors.New("should not be called")}
	_, err := DryRunSQL(context.Background(), fw, "DROP TABLE t")

	var guardErr *errs.GuardError
	require.ErrorAs(t, err, &guardErr)
	assert.Empty(t, fw.lastSQL)
}

func TestDryRunSQL_InvalidWraps(t *testing.T) {
	fw := &fakeWarehouse{dryRunResult: &warehouse.DryRunResult{Valid: false, ErrorMessage: "column not found"}}
	_, err := DryRunSQL(context.Background(), fw, "SELECT nope FROM t")

	var invalidErr *errs.DryRunInvalidError
	require.ErrorAs(t, err, &invalidErr)
	assert.Equal(t, "column not found", invalidErr.WarehouseMessage)
}

func TestExecuteSQL_AppliesCapAndReturnsIssuedSQL(t *testing.T) {
	fw := &fakeWarehouse{queryResult: &warehouse.QueryResult{
		Rows:     []warehouse.Row{{"x": int64(1)}},
		RowCount: 1,
	}}
	cfg := Config{RowCap: 1000, QueryTimeout: 30 * time.Second}

	res, err := ExecuteSQL(context.Background(), fw, "SELECT 1 AS x", cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1 AS x\nLIMIT 1000", res.IssuedSQL)
	assert.Equal(t, "SELECT 1 AS x\nLIMIT 1000", fw.lastSQL)
	assert.Empty(t, res.Warning)
}

func TestExecuteSQL_WarnsOnTruncation(t *testing.T) {
	fw := &fakeWarehouse{queryResult: &warehouse.QueryResult{
		Rows:     make([]warehouse.Row, 5),
		RowCount: 5,
	}}
	cfg := Config{RowCap: 5, QueryTimeout: 30 * time.Second}

	res, err := ExecuteSQL(context.Background(), fw, "SELECT * FROM big_table", cfg, nil)
	require.NoError(t, err)
	assert.Contains(t, res.Warning, "truncated at 5 rows")
}

func TestExecuteSQL_BlockedNeverReachesWarehouse(t *testing.T) {
	fw := &fakeWarehouse{queryErr: errors.New("should not be called")}
	cfg := Config{RowCap: 1000, QueryTimeout: 30 * time.Second}

	_, err := ExecuteSQL(context.Background(), fw, "DELETE FROM t", cfg, nil)

	var guardErr *errs.GuardError
	require.ErrorAs(t, err, &guardErr)
	assert.Empty(t, fw.lastSQL)
}

func TestSaveValidatedQuery_InsertsAndEmbeds(t *testing.T) {
	fw := &fakeWarehouse{queryResult: &warehouse.QueryResult{}}
	embedCalls := 0
	embedNow := func(ctx context.Context, text string) error {
		embedCalls++
		return nil
	}

	outcome, err := SaveValidatedQuery(context.Background(), fw, "metadata", ValidatedQuery{
		Question: "how many fills yesterday",
		SQL:      "SELECT COUNT(*) FROM t",
		Tables:   []string{"fills"},
		Dataset:  "silver",
	}, embedNow, false)

	require.NoError(t, err)
	assert.Equal(t, "success", outcome.Status)
	assert.Equal(t, 1, embedCalls)
	assert.Contains(t, fw.lastSQL, "INSERT INTO")
}

func TestSaveValidatedQuery_EmbeddingFailureDowngradesToPartial(t *testing.T) {
	fw := &fakeWarehouse{queryResult: &warehouse.QueryResult{}}
	embedNow := func(ctx context.Context, text string) error {
		return errors.New("embedding service unavailable")
	}

	outcome, err := SaveValidatedQuery(context.Background(), fw, "metadata", ValidatedQuery{
		Question: "how many fills yesterday",
		SQL:      "SELECT COUNT(*) FROM t",
	}, embedNow, false)

	var embedErr *errs.EmbeddingError
	require.ErrorAs(t, err, &embedErr)
	require.NotNil(t, outcome)
	assert.Equal(t, "partial_success", outcome.Status)
}

func TestSaveValidatedQuery_AutonomousSkipsEmbedNow(t *testing.T) {
	fw := &fakeWarehouse{queryResult: &warehouse.QueryResult{}}
	called := false
	embedNow := func(ctx context.Context, text string) error {
		called = true
		return nil
	}

	outcome, err := SaveValidatedQuery(context.Background(), fw, "metadata", ValidatedQuery{
		Question: "q",
		SQL:      "SELECT 1",
	}, embedNow, true)

	require.NoError(t, err)
	assert.Equal(t, "success", outcome.Status)
	assert.False(t, called)
}

func TestSaveValidatedQuery_RejectsNonSelectBeingSaved(t *testing.T) {
	fw := &fakeWarehouse{}
	_, err := SaveValidatedQuery(context.Background(), fw, "metadata", ValidatedQuery{
		Question: "q",
		SQL:      "DELETE FROM t",
	}, nil, false)

	var guardErr *errs.GuardError
	require.ErrorAs(t, err, &guardErr)
}
