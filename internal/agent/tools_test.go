package agent

import (
	stdContext "context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/LuisDee/nl2sql-sub001/internal/agent/tool"
	"github.com/LuisDee/nl2sql-sub001/internal/catalog"
	"github.com/LuisDee/nl2sql-sub001/internal/warehouse"
)

// fakeWarehouse is a minimal in-memory stand-in: Query always returns
// queuedRows (one slice per call, consumed in order), DryRun always
// succeeds.
type fakeWarehouse struct {
	queuedRows [][]warehouse.Row
	queryCalls int
}

func (f *fakeWarehouse) DryRun(ctx stdContext.Context, sql string) (*warehouse.DryRunResult, error) {
	return &warehouse.DryRunResult{Valid: true, EstimatedTotalBytes: 1024}, nil
}

func (f *fakeWarehouse) Query(ctx stdContext.Context, sql string, params []warehouse.Param, jobTimeout time.Duration) (*warehouse.QueryResult, error) {
	idx := f.queryCalls
	f.queryCalls++
	if idx >= len(f.queuedRows) {
		return &warehouse.QueryResult{Rows: nil, RowCount: 0}, nil
	}
	rows := f.queuedRows[idx]
	return &warehouse.QueryResult{Rows: rows, RowCount: len(rows)}, nil
}

func (f *fakeWarehouse) ProjectID() string { return "proj" }
func (f *fakeWarehouse) Location() string  { return "US" }

func testController(t *testing.T, wh warehouse.Warehouse) *Controller {
	t.Helper()
	cat, err := catalog.Load("../../catalogdata")
	require.NoError(t, err)

	return New(wh, cat, nil, Config{
		MetadataDataset:         "nl2sql_meta",
		EmbeddingModelRef:       "text-embedding",
		SemanticCacheThreshold:  0.10,
		TableSearchTopK:         5,
		ColumnSearchTopK:        30,
		ColumnSearchMaxPerTable: 15,
		RowCap:                  1000,
		QueryTimeout:            30 * time.Second,
		MaxToolCallsPerTurn:     50,
		MaxConsecutiveRepeats:   3,
		MaxDryRunRetries:        3,
		PromptSQLPreviewChars:   500,
		PromptRowPreviewCount:   3,
	}, zap.NewNop())
}

func TestCheckSemanticCache_MissReportsNoHit(t *testing.T) {
	wh := &fakeWarehouse{queuedRows: [][]warehouse.Row{nil}}
	c := testController(t, wh)

	out, err := c.checkSemanticCache(tool.NewContext(stdContext.Background()), `{"question":"what was rates pnl"}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"cache_hit":false`)
}

func TestCheckSemanticCache_CrossExchangeHitReportsTheSpecificReason(t *testing.T) {
	hitRow := warehouse.Row{
		"payload":  `{"question":"equities pnl","sql":"SELECT 1","tables":["edge_summary"],"dataset":"gold_ice"}`,
		"distance": 0.01,
	}
	wh := &fakeWarehouse{queuedRows: [][]warehouse.Row{{hitRow}}}
	c := testController(t, wh)

	out, err := c.checkSemanticCache(tool.NewContext(stdContext.Background()),
		`{"question":"what was rates pnl","exchange_datasets":["gold_cme","silver_cme"]}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"cache_hit":false`)
	assert.Contains(t, out, "different exchange dataset")
}

func TestCheckSemanticCache_SameExchangeHitIsAccepted(t *testing.T) {
	hitRow := warehouse.Row{
		"payload":  `{"question":"rates pnl yesterday","sql":"SELECT 1","tables":["edge_summary"],"dataset":"gold_cme"}`,
		"distance": 0.01,
	}
	wh := &fakeWarehouse{queuedRows: [][]warehouse.Row{{hitRow}}}
	c := testController(t, wh)

	out, err := c.checkSemanticCache(tool.NewContext(stdContext.Background()),
		`{"question":"what was rates pnl","exchange_datasets":["gold_cme","silver_cme"]}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"cache_hit":true`)
	assert.Contains(t, out, `"dataset":"gold_cme"`)
}

func TestCheckSemanticCache_ResetsStateForANewQuestion(t *testing.T) {
	wh := &fakeWarehouse{queuedRows: [][]warehouse.Row{nil, nil}}
	c := testController(t, wh)
	ctx := tool.NewContext(stdContext.Background())

	// Drive max_retries_reached for the first question.
	c.state.PostDryRun(false)
	c.state.PostDryRun(false)
	c.state.PostDryRun(false)
	require.True(t, c.state.MaxRetriesReached())

	err := c.state.PreTool("dry_run_sql", `{"sql":"SELECT 1"}`)
	require.Error(t, err, "dry_run_sql should still be blocked before the new question resets state")

	_, callErr := c.checkSemanticCache(ctx, `{"question":"a brand new question"}`)
	require.NoError(t, callErr)
	assert.False(t, c.state.MaxRetriesReached())

	assert.NoError(t, c.state.PreTool("dry_run_sql", `{"sql":"SELECT 1"}`))
}

func TestResolveExchange_FoundRecordsDatasetsOnState(t *testing.T) {
	wh := &fakeWarehouse{}
	c := testController(t, wh)

	out, err := c.resolveExchange(tool.NewContext(stdContext.Background()), `{"text":"CME"}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"found":true`)
	assert.Equal(t, []string{"gold_cme", "silver_cme"}, c.state.ResolvedExchange())
}

func TestResolveExchange_NotFound(t *testing.T) {
	wh := &fakeWarehouse{}
	c := testController(t, wh)

	out, err := c.resolveExchange(tool.NewContext(stdContext.Background()), `{"text":"some unknown venue"}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"found":false`)
}

func TestDryRunSQL_TracksFailureStreakOnState(t *testing.T) {
	wh := &fakeWarehouse{}
	c := testController(t, wh)
	ctx := tool.NewContext(stdContext.Background())

	out, err := c.dryRunSQL(ctx, `{"sql":"SELECT 1 FROM edge_summary"}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"valid":true`)
	assert.False(t, c.state.MaxRetriesReached())
}

func TestLoadYAMLMetadata_CachesWithinATurn(t *testing.T) {
	wh := &fakeWarehouse{}
	c := testController(t, wh)
	ctx := tool.NewContext(stdContext.Background())

	out1, err := c.loadYAMLMetadata(ctx, `{"dataset":"gold_cme","table":"edge_summary"}`)
	require.NoError(t, err)
	assert.Contains(t, out1, `"cached":false`)

	out2, err := c.loadYAMLMetadata(ctx, `{"dataset":"gold_cme","table":"edge_summary"}`)
	require.NoError(t, err)
	assert.Contains(t, out2, `"cached":true`)
}

func TestLoadYAMLMetadata_UnknownTableFails(t *testing.T) {
	wh := &fakeWarehouse{}
	c := testController(t, wh)
	ctx := tool.NewContext(stdContext.Background())

	out, err := c.loadYAMLMetadata(ctx, `{"dataset":"gold_cme","table":"nonexistent"}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"status":"error"`)
}
