package catalog

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/LuisDee/nl2sql-sub001/internal/errs"
)

const (
	maxExampleValues  = 25
	maxRelatedColumns = 5
)

// validate enforces the catalog's cross-reference and shape invariants at
// load time. It accumulates no partial state: the first violation aborts
// the load with a CatalogError naming the offending entity.
func (c *Catalog) validate() error {
	for key, t := range c.tables {
		if err := validateTable(key, t); err != nil {
			return err
		}
	}
	if err := c.validateRoutingReferences(); err != nil {
		return err
	}
	if err := c.validateExampleReferences(); err != nil {
		return err
	}
	return nil
}

func validateTable(key tableKey, t *Table) error {
	src := fmt.Sprintf("%s.%s", key.dataset, key.table)

	// Invariant 1: partition_field names a real column.
	if t.PartitionField == "" {
		return &errs.CatalogError{Source: src, Err: fmt.Errorf("partition_field is required")}
	}
	if _, ok := t.ColumnByName(t.PartitionField); !ok {
		return &errs.CatalogError{Source: src, Err: fmt.Errorf("partition_field %q does not name a column", t.PartitionField)}
	}

	columnNames := make(map[string]struct{}, len(t.Columns))
	for _, col := range t.Columns {
		columnNames[col.Name] = struct{}{}
	}

	for _, col := range t.Columns {
		colSrc := src + "." + col.Name

		if col.Description == "" {
			return &errs.CatalogError{Source: colSrc, Err: fmt.Errorf("description is required")}
		}

		// Invariant 3: typical_aggregation implies category=measure.
		if col.TypicalAggregation != "" && col.Category != CategoryMeasure {
			return &errs.CatalogError{Source: colSrc, Err: fmt.Errorf("typical_aggregation set but category is %q, not measure", col.Category)}
		}
		// Invariant 3: comprehensive implies example_values non-empty.
		if col.Comprehensive && len(col.ExampleValues) == 0 {
			return &errs.CatalogError{Source: colSrc, Err: fmt.Errorf("comprehensive=true requires non-empty example_values")}
		}
		// Invariant 4: example_values length <= 25.
		if len(col.ExampleValues) > maxExampleValues {
			return &errs.CatalogError{Source: colSrc, Err: fmt.Errorf("example_values has %d entries, max %d", len(col.ExampleValues), maxExampleValues)}
		}
		// Invariant 4: related_columns length <= 5.
		if len(col.RelatedColumns) > maxRelatedColumns {
			return &errs.CatalogError{Source: colSrc, Err: fmt.Errorf("related_columns has %d entries, max %d", len(col.RelatedColumns), maxRelatedColumns)}
		}
		// Invariant 4: formula is a single line.
		if strings.Contains(col.Formula, "\n") {
			return &errs.CatalogError{Source: colSrc, Err: fmt.Errorf("formula must be a single line")}
		}
		// Invariant 2: related_columns, formula, example_values reference only
		// columns that exist in the catalog (formula is free text so we only
		// check related_columns here; formula references are advisory).
		for _, rc := range col.RelatedColumns {
			if _, ok := columnNames[rc]; !ok {
				return &errs.CatalogError{Source: colSrc, Err: fmt.Errorf("related_columns references unknown column %q", rc)}
			}
		}
	}
	return nil
}

// validateRoutingReferences enforces invariant 2 for routing: every table
// named in a routing rule exists in the catalog.
func (c *Catalog) validateRoutingReferences() error {
	if c.routingRules == nil {
		return nil
	}
	check := func(rules []RoutingRule) error {
		for _, r := range rules {
			if r.Table == "" {
				continue
			}
			if _, ok := c.tables[tableKey{dataset: r.Dataset, table: r.Table}]; !ok {
				return &errs.CatalogError{Source: "_routing.yaml", Err: fmt.Errorf("routing rule references unknown table %s.%s", r.Dataset, r.Table)}
			}
		}
		return nil
	}
	if err := check(c.routingRules.GoldRouting); err != nil {
		return err
	}
	return check(c.routingRules.SilverRouting)
}

// validateExampleReferences enforces invariant 6: every few-shot example's
// SQL references only tables/columns present in the catalog, and invariant
// 2 for the referenced-tables list.
func (c *Catalog) validateExampleReferences() error {
	allColumns := c.allColumnNames()
	for i, ex := range c.examples {
		src := fmt.Sprintf("examples[%d] (%q)", i, ex.Question)
		for _, tbl := range ex.Tables {
			t, ok := c.tables[tableKey{dataset: ex.Dataset, table: tbl}]
			if !ok {
				return &errs.CatalogError{Source: src, Err: fmt.Errorf("references unknown table %s.%s", ex.Dataset, tbl)}
			}
			if col, ok := unknownColumnMentionedIn(ex.SQL, t, allColumns); ok {
				return &errs.CatalogError{Source: src, Err: fmt.Errorf("SQL references unknown column %s on %s", col, tbl)}
			}
		}
	}
	return nil
}

var identifierRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)
var aliasRe = regexp.MustCompile(`(?i)\bAS\s+([A-Za-z_][A-Za-z0-9_]*)`)

// allColumnNames collects every column name used anywhere in the catalog.
// It is a set, not a per-table map: the check below only needs to know
// whether a token is a column-shaped identifier at all, not which table it
// belongs to.
func (c *Catalog) allColumnNames() map[string]struct{} {
	names := map[string]struct{}{}
	for _, t := range c.tables {
		for _, col := range t.Columns {
			names[col.Name] = struct{}{}
		}
	}
	return names
}

// unknownColumnMentionedIn does a conservative best-effort scan: it looks
// for an identifier in sql that is a column name somewhere in the catalog
// but not one of t's own columns, and reports the first one found. This
// avoids needing a full SQL parser while still catching the common case of
// an example referencing a column that belongs to a different table than
// the one it's scoped to. Output aliases (`AS foo`) are excluded since they
// name a result column, not a reference to an existing one, and commonly
// collide with an unrelated table's column name (e.g. `COUNT(*) AS
// fill_count` next to a table that also has a real fill_count column).
func unknownColumnMentionedIn(sql string, t *Table, catalogColumns map[string]struct{}) (string, bool) {
	aliases := map[string]struct{}{}
	for _, m := range aliasRe.FindAllStringSubmatch(sql, -1) {
		aliases[m[1]] = struct{}{}
	}

	for _, tok := range identifierRe.FindAllString(sql, -1) {
		if _, ok := aliases[tok]; ok {
			continue
		}
		if _, ok := catalogColumns[tok]; !ok {
			continue
		}
		if _, ok := t.ColumnByName(tok); ok {
			continue
		}
		return tok, true
	}
	return "", false
}
