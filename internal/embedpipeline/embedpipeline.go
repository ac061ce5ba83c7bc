// Package embedpipeline materialises and maintains the search index the
// retrieval engine reads: schema, column, glossary, and query-memory
// tables, each projected from the catalog (or, for query-memory, from
// trader-confirmed question/SQL pairs) and embedded for vector search.
package embedpipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/LuisDee/nl2sql-sub001/internal/catalog"
	"github.com/LuisDee/nl2sql-sub001/internal/errs"
	"github.com/LuisDee/nl2sql-sub001/internal/warehouse"
)

// TaskType selects the embedding model's task head. Stored content and
// ad-hoc query text use different heads so the resulting vectors sit in a
// geometry where nearest-neighbour search behaves well across the two.
type TaskType string

const (
	TaskRetrievalDocument TaskType = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    TaskType = "RETRIEVAL_QUERY"
)

// SchemaTable, ColumnTable, GlossaryTable, and QueryMemoryTable name the
// four index tables this pipeline owns inside the metadata dataset.
const (
	SchemaTable      = "schema_index"
	ColumnTable      = "column_index"
	GlossaryTable    = "glossary_index"
	QueryMemoryTable = "query_memory"
)

// StepName identifies one of the pipeline's named, independently
// re-runnable steps.
type StepName string

const (
	StepCreateDataset      StepName = "create-dataset"
	StepVerifyModel        StepName = "verify-model"
	StepCreateTables       StepName = "create-tables"
	StepPopulateSchema     StepName = "populate-schema"
	StepPopulateColumns    StepName = "populate-columns"
	StepPopulateGlossary   StepName = "populate-glossary"
	StepPopulateSymbols    StepName = "populate-symbols"
	StepGenerateEmbeddings StepName = "generate-embeddings"
	StepCreateIndexes      StepName = "create-indexes"
	StepTestSearch         StepName = "test-search"
)

// AllSteps lists the ten steps in dependency order.
var AllSteps = []StepName{
	StepCreateDataset,
	StepVerifyModel,
	StepCreateTables,
	StepPopulateSchema,
	StepPopulateColumns,
	StepPopulateGlossary,
	StepPopulateSymbols,
	StepGenerateEmbeddings,
	StepCreateIndexes,
	StepTestSearch,
}

// StepResult is the outcome of one named step, returned so the CLI can
// report row counts without the pipeline knowing about output formatting.
type StepResult struct {
	Step        StepName
	RowsScanned int
	RowsChanged int
	Message     string
}

// Config bundles what the pipeline needs from process configuration.
type Config struct {
	MetadataDataset      string
	EmbeddingModelRef    string
	AutonomousEmbeddings bool
	Force                bool // allow destructive DDL (table recreation)
}

// Pipeline runs the named steps against a catalog and a warehouse.
type Pipeline struct {
	wh  warehouse.Warehouse
	cat *catalog.Catalog
	cfg Config
	log *zap.Logger
}

func New(wh warehouse.Warehouse, cat *catalog.Catalog, cfg Config, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{wh: wh, cat: cat, cfg: cfg, log: log}
}

// Run executes steps in the order given, stopping at the first error.
func (p *Pipeline) Run(ctx context.Context, steps []StepName) ([]StepResult, error) {
	results := make([]StepResult, 0, len(steps))
	for _, step := range steps {
		p.log.Info("embedpipeline step starting", zap.String("step", string(step)))
		res, err := p.runStep(ctx, step)
		if err != nil {
			return results, fmt.Errorf("embedpipeline: step %s: %w", step, err)
		}
		p.log.Info("embedpipeline step done",
			zap.String("step", string(step)),
			zap.Int("rows_scanned", res.RowsScanned),
			zap.Int("rows_changed", res.RowsChanged),
		)
		results = append(results, res)
	}
	return results, nil
}

func (p *Pipeline) runStep(ctx context.Context, step StepName) (StepResult, error) {
	switch step {
	case StepCreateDataset:
		return p.createDataset(ctx)
	case StepVerifyModel:
		return p.verifyModel(ctx)
	case StepCreateTables:
		return p.createTables(ctx)
	case StepPopulateSchema:
		return p.populateSchema(ctx)
	case StepPopulateColumns:
		return p.populateColumns(ctx)
	case StepPopulateGlossary:
		return p.populateGlossary(ctx)
	case StepPopulateSymbols:
		return p.populateSymbols(ctx)
	case StepGenerateEmbeddings:
		return p.generateEmbeddings(ctx)
	case StepCreateIndexes:
		return p.createIndexes(ctx)
	case StepTestSearch:
		return p.testSearch(ctx)
	default:
		return StepResult{}, fmt.Errorf("unknown step %q", step)
	}
}

func (p *Pipeline) qualified(table string) string {
	return warehouse.QualifiedName(p.wh.ProjectID(), p.cfg.MetadataDataset, table)
}

// columnText renders the embedded text for a column row, matching the
// catalog's description, synonym, category, and sample-value fields.
func columnText(t *catalog.Table, c *catalog.Column) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s.%s (%s, %s): %s", t.Name, c.Name, c.Type, t.Layer, c.Description)
	if len(c.Synonyms) > 0 {
		fmt.Fprintf(&b, ". Also known as: %s", strings.Join(c.Synonyms, ", "))
	}
	fmt.Fprintf(&b, " [%s]", c.Category)
	if c.Filterable && c.Category == catalog.CategoryDimension && len(c.ExampleValues) > 0 {
		n := len(c.ExampleValues)
		if n > 5 {
			n = 5
		}
		fmt.Fprintf(&b, ". Sample values: %s", strings.Join(c.ExampleValues[:n], ", "))
	}
	return b.String()
}

func schemaText(t *catalog.Table) string {
	return fmt.Sprintf("%s: %s", t.Name, t.Description)
}

func glossaryText(g catalog.GlossaryEntry) string {
	if len(g.Synonyms) == 0 {
		return fmt.Sprintf("%s: %s", g.Name, g.Definition)
	}
	return fmt.Sprintf("%s: %s. Also known as: %s", g.Name, g.Definition, strings.Join(g.Synonyms, ", "))
}

// wrapErr adapts a warehouse failure into the embedding-pipeline's error
// taxonomy entry.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &errs.ExecutionError{Op: op, Err: err}
}
