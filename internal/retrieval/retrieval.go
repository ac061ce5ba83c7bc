// Package retrieval implements the two-tier semantic search that grounds a
// question in the catalog before SQL is composed: a combined vector search
// over columns, glossary, and past validated queries in one warehouse
// round-trip, plus the semantic cache that can short-circuit it entirely.
package retrieval

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/LuisDee/nl2sql-sub001/internal/embedpipeline"
	"github.com/LuisDee/nl2sql-sub001/internal/errs"
	"github.com/LuisDee/nl2sql-sub001/internal/warehouse"
)

// ColumnHit is one matching column, with the payload fields the prompt
// needs to reason about aggregation and filtering.
type ColumnHit struct {
	Dataset            string
	Table              string
	Name               string
	Type               string
	Description        string
	Synonyms           []string
	Distance           float64
	Category           string
	Formula            string
	ExampleValues      []string
	RelatedColumns     []string
	TypicalAggregation string
	Filterable         bool
}

// TableCandidate is a (dataset, table) ranked by its best column match, with
// up to Config.ColumnSearchMaxPerTable of its matching columns attached.
type TableCandidate struct {
	Dataset  string
	Table    string
	MinDist  float64
	HitCount int
	Columns  []ColumnHit
}

// GlossaryHit is one matching glossary entry.
type GlossaryHit struct {
	Name           string
	Definition     string
	Distance       float64
	RelatedColumns []string
}

// QueryMemoryHit is one matching past validated question/SQL pair.
type QueryMemoryHit struct {
	Question string
	SQL      string
	Tables   []string
	Dataset  string
	Distance float64
}

// Result is the single structured outcome of a combined search.
type Result struct {
	Tables       []TableCandidate
	Glossary     []GlossaryHit
	FewShot      []QueryMemoryHit
	UsedFallback bool // true if column search failed and table-level search was used instead
}

// Config bundles the tunables the engine needs from process configuration.
type Config struct {
	MetadataDataset         string
	EmbeddingModelRef       string
	TableSearchTopK         int // default 5
	ColumnSearchTopK        int // default 30
	ColumnSearchMaxPerTable int // default 15
	SemanticCacheThreshold  float64
}

// Engine runs combined search and the semantic cache probe against a
// warehouse.
type Engine struct {
	wh  warehouse.Warehouse
	cfg Config
	log *zap.Logger
}

func New(wh warehouse.Warehouse, cfg Config, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{wh: wh, cfg: cfg, log: log}
}

func (e *Engine) qualified(table string) string {
	return warehouse.QualifiedName(e.wh.ProjectID(), e.cfg.MetadataDataset, table)
}

// sortTables applies the tie-break contract: lower min(distance) first,
// then higher count(*), then table name lexicographically.
func sortTables(tables []TableCandidate) {
	sort.SliceStable(tables, func(i, j int) bool {
		a, b := tables[i], tables[j]
		if a.MinDist != b.MinDist {
			return a.MinDist < b.MinDist
		}
		if a.HitCount != b.HitCount {
			return a.HitCount > b.HitCount
		}
		return a.Table < b.Table
	})
}

// aggregateByTable groups column hits by (dataset, table), computing each
// table's min distance, hit count, and its top-N columns by distance.
func aggregateByTable(hits []ColumnHit, maxPerTable int) []TableCandidate {
	type key struct{ dataset, table string }
	grouped := lo.GroupBy(hits, func(h ColumnHit) key {
		return key{h.Dataset, h.Table}
	})

	out := make([]TableCandidate, 0, len(grouped))
	for k, cols := range grouped {
		sort.SliceStable(cols, func(i, j int) bool { return cols[i].Distance < cols[j].Distance })
		minDist := cols[0].Distance
		n := len(cols)
		if n > maxPerTable {
			n = maxPerTable
		}
		out = append(out, TableCandidate{
			Dataset:  k.dataset,
			Table:    k.table,
			MinDist:  minDist,
			HitCount: len(cols),
			Columns:  cols[:n],
		})
	}
	sortTables(out)
	return out
}

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &errs.ExecutionError{Op: op, Err: err}
}

// embeddingCTE renders the shared CTE fragment that embeds question
// once, at the retrieval-query task type.
func (e *Engine) embeddingCTE() string {
	return fmt.Sprintf(
		"q AS (SELECT ml_generate_embedding_result AS embedding FROM ML.GENERATE_EMBEDDING("+
			"MODEL `%s`, (SELECT @question AS content), STRUCT('%s' AS task_type)))",
		e.cfg.EmbeddingModelRef, embedpipeline.TaskRetrievalQuery,
	)
}

// searchBranch renders one VECTOR_SEARCH arm of the combined union. Each
// arm's matched row is flattened to JSON so arms over differently-shaped
// index tables can be UNION ALL'd under one (source, payload, distance)
// shape.
func (e *Engine) searchBranch(source, table string, topK int) string {
	return fmt.Sprintf(
		"SELECT '%s' AS source, TO_JSON_STRING(base) AS payload, distance "+
			"FROM VECTOR_SEARCH(TABLE %s, 'embedding', TABLE q, distance_type => 'COSINE', top_k => %d)",
		source, e.qualified(table), topK,
	)
}

const defaultFewShotTopK = 5
const defaultGlossaryTopK = 3
