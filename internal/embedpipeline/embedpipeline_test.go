package embedpipeline

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LuisDee/nl2sql-sub001/internal/catalog"
	"github.com/LuisDee/nl2sql-sub001/internal/warehouse"
)

// fakeWarehouse is shared across this package's tests. generateEmbeddings
// issues its per-table UPDATEs concurrently, so issuedSQL needs its own
// lock rather than relying on single-goroutine access.
type fakeWarehouse struct {
	mu        sync.Mutex
	issuedSQL []string
}

func (f *fakeWarehouse) DryRun(ctx context.Context, sql string) (*warehouse.DryRunResult, error) {
	f.mu.Lock()
	f.issuedSQL = append(f.issuedSQL, sql)
	f.mu.Unlock()
	return &warehouse.DryRunResult{Valid: true}, nil
}

func (f *fakeWarehouse) Query(ctx context.Context, sql string, params []warehouse.Param, jobTimeout time.Duration) (*warehouse.QueryResult, error) {
	f.mu.Lock()
	f.issuedSQL = append(f.issuedSQL, sql)
	f.mu.Unlock()
	return &warehouse.QueryResult{RowCount: 1}, nil
}

func (f *fakeWarehouse) sqlSnapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.issuedSQL...)
}

func (f *fakeWarehouse) ProjectID() string { return "proj" }
func (f *fakeWarehouse) Location() string  { return "US" }

// testCatalog returns an empty but valid catalog: embedpipeline steps only
// need AllTables/Glossary/Examples to exist, not populated, so tests
// exercise SQL shape rather than catalog parsing.
func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Load(t.TempDir())
	require.NoError(t, err)
	return c
}

func TestCreateDataset_IssuesCreateSchema(t *testing.T) {
	fw := &fakeWarehouse{}
	p := New(fw, testCatalog(t), Config{MetadataDataset: "meta"}, nil)

	res, err := p.createDataset(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StepCreateDataset, res.Step)
	require.Len(t, fw.issuedSQL, 1)
	assert.Contains(t, fw.issuedSQL[0], "CREATE SCHEMA IF NOT EXISTS")
	assert.Contains(t, fw.issuedSQL[0], "proj.meta")
}

func TestCreateTables_NonDestructiveByDefault(t *testing.T) {
	fw := &fakeWarehouse{}
	p := New(fw, testCatalog(t), Config{MetadataDataset: "meta", Force: false}, nil)

	res, err := p.createTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, res.RowsChanged)
	for _, sql := range fw.issuedSQL {
		assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS")
		assert.NotContains(t, sql, "CREATE OR REPLACE")
	}
}

func TestCreateTables_ForceRecreates(t *testing.T) {
	fw := &fakeWarehouse{}
	p := New(fw, testCatalog(t), Config{MetadataDataset: "meta", Force: true}, nil)

	_, err := p.createTables(context.Background())
	require.NoError(t, err)
	for _, sql := range fw.issuedSQL {
		assert.Contains(t, sql, "CREATE OR REPLACE TABLE")
	}
}

func TestGenerateEmbeddings_UsesPendingPredicate(t *testing.T) {
	fw := &fakeWarehouse{}
	p := New(fw, testCatalog(t), Config{MetadataDataset: "meta", EmbeddingModelRef: "proj.meta.embed_model"}, nil)

	_, err := p.generateEmbeddings(context.Background())
	require.NoError(t, err)
	for _, sql := range fw.issuedSQL {
		assert.True(t, strings.Contains(sql, "IS NULL") && strings.Contains(sql, "ARRAY_LENGTH"))
	}
}

func TestGenerateEmbeddings_AutonomousIsNoOp(t *testing.T) {
	fw := &fakeWarehouse{}
	p := New(fw, testCatalog(t), Config{MetadataDataset: "meta", AutonomousEmbeddings: true}, nil)

	res, err := p.generateEmbeddings(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fw.issuedSQL)
	assert.Equal(t, 0, res.RowsChanged)
}

func TestPopulateSchema_EmptyCatalogScansNoRows(t *testing.T) {
	fw := &fakeWarehouse{}
	cat := testCatalog(t)
	p := New(fw, cat, Config{MetadataDataset: "meta"}, nil)

	res, err := p.populateSchema(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.RowsScanned) // empty catalog: no tables
}

func TestColumnText_IncludesSampleValuesForFilterableDimension(t *testing.T) {
	tbl := &catalog.Table{Name: "edge_summary", Layer: catalog.LayerGold}
	col := &catalog.Column{
		Name: "desk", Type: "STRING", Description: "trading desk",
		Category: catalog.CategoryDimension, Filterable: true,
		ExampleValues: []string{"vol", "flow", "macro"},
	}
	text := columnText(tbl, col)
	assert.Contains(t, text, "edge_summary.desk")
	assert.Contains(t, text, "[dimension]")
	assert.Contains(t, text, "vol, flow, macro")
}

func TestColumnText_OmitsSampleValuesForNonFilterable(t *testing.T) {
	tbl := &catalog.Table{Name: "edge_summary", Layer: catalog.LayerGold}
	col := &catalog.Column{
		Name: "pnl", Type: "FLOAT64", Description: "realised pnl",
		Category: catalog.CategoryMeasure, Filterable: false,
		ExampleValues: []string{"100.0"},
	}
	text := columnText(tbl, col)
	assert.NotContains(t, text, "Sample values")
}
