// Package catalog provides a typed, validated view of the warehouse schema
// and business knowledge that backs the agent's retrieval and SQL-generation
// tools: datasets, tables, columns, glossary entries, routing rules, and
// few-shot examples.
//
// Entities are held in content-addressed stores keyed by natural identifiers
// (dataset+table, dataset+table+column) rather than pointers, so
// cross-references (routing rules, related_columns, few-shot SQL) are keys
// that can be validated against the store instead of dangling pointers.
package catalog

// Layer distinguishes the gold (KPI-aggregated) and silver (row-level)
// dataset tiers.
type Layer string

const (
	LayerGold   Layer = "gold"
	LayerSilver Layer = "silver"
)

// AggregationKind is the set of valid typical_aggregation values for a
// measure column.
type AggregationKind string

const (
	AggSum         AggregationKind = "SUM"
	AggAvg         AggregationKind = "AVG"
	AggWeightedAvg AggregationKind = "WEIGHTED_AVG"
	AggCount       AggregationKind = "COUNT"
	AggMin         AggregationKind = "MIN"
	AggMax         AggregationKind = "MAX"
)

// ColumnCategory classifies a column's role for prompt assembly and ranking.
type ColumnCategory string

const (
	CategoryDimension  ColumnCategory = "dimension"
	CategoryMeasure    ColumnCategory = "measure"
	CategoryTime       ColumnCategory = "time"
	CategoryIdentifier ColumnCategory = "identifier"
)

// Column describes one column of a Table. Description is required; every
// other field is an optional enrichment used by retrieval and prompting.
type Column struct {
	Name               string          `yaml:"name"`
	Type               string          `yaml:"type"`
	Description        string          `yaml:"description"`
	Category           ColumnCategory  `yaml:"category,omitempty"`
	TypicalAggregation AggregationKind `yaml:"typical_aggregation,omitempty"`
	Filterable         bool            `yaml:"filterable,omitempty"`
	ExampleValues      []string        `yaml:"example_values,omitempty"`
	Comprehensive      bool            `yaml:"comprehensive,omitempty"`
	Formula            string          `yaml:"formula,omitempty"`
	RelatedColumns     []string        `yaml:"related_columns,omitempty"`
	Synonyms           []string        `yaml:"synonyms,omitempty"`
	Source             string          `yaml:"source,omitempty"`
	BusinessRules      string          `yaml:"business_rules,omitempty"`
	Deprecated         bool            `yaml:"deprecated,omitempty"`
}

// PreferredTimestamps names the canonical time axis for a table and its
// fallback chain, in priority order (primary first).
type PreferredTimestamps struct {
	Primary  string   `yaml:"primary"`
	Fallback []string `yaml:"fallback,omitempty"`
}

// Table is a single physical table projected into the catalog. Self-contained
// per-table files mean the same physical column can be duplicated across
// tables with divergent descriptions over time; the cross-reference
// invariants validated on load are what keep this from drifting silently.
type Table struct {
	Name                string              `yaml:"name"`
	Dataset             string              `yaml:"dataset"`
	Layer               Layer               `yaml:"layer"`
	Description         string              `yaml:"description"`
	PartitionField      string              `yaml:"partition_field"`
	PreferredTimestamps PreferredTimestamps `yaml:"preferred_timestamps"`
	BusinessContext     string              `yaml:"business_context,omitempty"`
	PipelineFlow        string              `yaml:"pipeline_flow,omitempty"`
	Columns             []Column            `yaml:"columns"`
	IsSuperset          bool                `yaml:"is_superset,omitempty"` // flags double-counting risk when also joined with SupersetOf tables
	SupersetOf          []string            `yaml:"superset_of,omitempty"`

	// DatasetContext carries the owning dataset's business context, filled in
	// under this reserved key when the dataset layer is loaded.
	DatasetContext string `yaml:"-"`
}

// ColumnByName returns the column with the given name, if present.
func (t *Table) ColumnByName(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// Dataset is a logical grouping of tables sharing a layer and a routing
// ruleset.
type Dataset struct {
	Name            string `yaml:"name"`
	Layer           Layer  `yaml:"layer"`
	BusinessContext string `yaml:"business_context,omitempty"`
}

// GlossaryEntry is a business-concept definition with synonyms and
// optionally related columns, used to ground vague natural-language terms.
type GlossaryEntry struct {
	Name           string   `yaml:"name"`
	Definition     string   `yaml:"definition"`
	Synonyms       []string `yaml:"synonyms,omitempty"`
	RelatedColumns []string `yaml:"related_columns,omitempty"`
	Category       string   `yaml:"category,omitempty"`
}

// FewShotExample is a validated natural-language question paired with the
// SQL that answers it, used both as a prompt few-shot and as a query-memory
// seed row.
type FewShotExample struct {
	Question      string   `yaml:"question"`
	SQL           string   `yaml:"sql"`
	Tables        []string `yaml:"tables"`
	Dataset       string   `yaml:"dataset"`
	Complexity    string   `yaml:"complexity,omitempty"`
	RoutingSignal string   `yaml:"routing_signal,omitempty"`
}

// RoutingRule maps a set of natural-language patterns to the table that
// should answer questions matching them.
type RoutingRule struct {
	Patterns []string `yaml:"patterns"`
	Table    string   `yaml:"table"`
	Dataset  string   `yaml:"dataset"`
	Notes    string   `yaml:"notes,omitempty"`
}

// RoutingRules is the structured routing document loaded from
// `_routing.yaml`: per-layer rules plus cross-cutting guidance.
type RoutingRules struct {
	CrossCutting  []string      `yaml:"cross_cutting,omitempty"`
	GoldRouting   []RoutingRule `yaml:"gold_routing,omitempty"`
	SilverRouting []RoutingRule `yaml:"silver_routing,omitempty"`
}

// ExchangeRoute maps an exchange code (and its aliases) to the pair of
// datasets that should be searched and queried for that exchange.
type ExchangeRoute struct {
	Code          string   `yaml:"code"`
	Aliases       []string `yaml:"aliases,omitempty"`
	GoldDataset   string   `yaml:"gold_dataset"`
	SilverDataset string   `yaml:"silver_dataset"`
}

// ExchangeRegistry resolves an exchange code or alias to its dataset pair.
type ExchangeRegistry struct {
	Routes []ExchangeRoute `yaml:"exchanges"`
}
