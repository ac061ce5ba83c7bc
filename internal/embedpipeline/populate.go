package embedpipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/LuisDee/nl2sql-sub001/internal/warehouse"
)

// upsert issues a MERGE keyed by natKey, setting every column in values and
// blanking the embedding column so the next generate-embeddings pass
// re-embeds any row whose source text changed.
func (p *Pipeline) upsert(ctx context.Context, table string, natKey []string, values map[string]any) error {
	cols := make([]string, 0, len(values))
	for k := range values {
		cols = append(cols, k)
	}

	onClauses := make([]string, 0, len(natKey))
	for _, k := range natKey {
		onClauses = append(onClauses, fmt.Sprintf("T.%s = S.%s", k, k))
	}

	setClauses := make([]string, 0, len(cols))
	for _, c := range cols {
		setClauses = append(setClauses, fmt.Sprintf("%s = S.%s", c, c))
	}
	setClauses = append(setClauses, "embedding = NULL")

	selectExprs := make([]string, 0, len(cols))
	params := make([]warehouse.Param, 0, len(cols))
	for i, c := range cols {
		name := fmt.Sprintf("p%d", i)
		selectExprs = append(selectExprs, fmt.Sprintf("@%s AS %s", name, c))
		params = append(params, warehouse.Param{Name: name, Value: values[c]})
	}

	sql := fmt.Sprintf(
		"MERGE %s T USING (SELECT %s) S ON %s "+
			"WHEN MATCHED THEN UPDATE SET %s "+
			"WHEN NOT MATCHED THEN INSERT (%s, embedding) VALUES (%s, NULL)",
		p.qualified(table),
		strings.Join(selectExprs, ", "),
		strings.Join(onClauses, " AND "),
		strings.Join(setClauses, ", "),
		strings.Join(cols, ", "),
		strings.Join(prefixed(cols, "S."), ", "),
	)

	_, err := p.wh.Query(ctx, sql, params, 0)
	return err
}

func prefixed(cols []string, prefix string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = prefix + c
	}
	return out
}

func (p *Pipeline) populateSchema(ctx context.Context) (StepResult, error) {
	tables := p.cat.AllTables()
	changed := 0
	for _, t := range tables {
		err := p.upsert(ctx, SchemaTable, []string{"dataset", "table_name"}, map[string]any{
			"dataset":       t.Dataset,
			"table_name":    t.Name,
			"embedded_text": schemaText(t),
		})
		if err != nil {
			return StepResult{Step: StepPopulateSchema, RowsScanned: len(tables), RowsChanged: changed},
				wrapErr("populate_schema", err)
		}
		changed++
	}
	return StepResult{Step: StepPopulateSchema, RowsScanned: len(tables), RowsChanged: changed}, nil
}

func (p *Pipeline) populateColumns(ctx context.Context) (StepResult, error) {
	tables := p.cat.AllTables()
	scanned, changed := 0, 0
	for _, t := range tables {
		for _, c := range t.Columns {
			scanned++
			err := p.upsert(ctx, ColumnTable,
				[]string{"dataset", "table_name", "column_name"},
				map[string]any{
					"dataset":             t.Dataset,
					"table_name":          t.Name,
					"column_name":         c.Name,
					"column_type":         c.Type,
					"synonyms":            c.Synonyms,
					"embedded_text":       columnText(t, &c),
					"category":            string(c.Category),
					"formula":             c.Formula,
					"example_values":      c.ExampleValues,
					"related_columns":     c.RelatedColumns,
					"typical_aggregation": string(c.TypicalAggregation),
					"filterable":          c.Filterable,
				})
			if err != nil {
				return StepResult{Step: StepPopulateColumns, RowsScanned: scanned, RowsChanged: changed},
					wrapErr("populate_columns", err)
			}
			changed++
		}
	}
	return StepResult{Step: StepPopulateColumns, RowsScanned: scanned, RowsChanged: changed}, nil
}

func (p *Pipeline) populateGlossary(ctx context.Context) (StepResult, error) {
	entries := p.cat.Glossary()
	changed := 0
	for _, g := range entries {
		err := p.upsert(ctx, GlossaryTable, []string{"name"}, map[string]any{
			"name":            g.Name,
			"embedded_text":   glossaryText(g),
			"related_columns": g.RelatedColumns,
			"category":        g.Category,
		})
		if err != nil {
			return StepResult{Step: StepPopulateGlossary, RowsScanned: len(entries), RowsChanged: changed},
				wrapErr("populate_glossary", err)
		}
		changed++
	}
	return StepResult{Step: StepPopulateGlossary, RowsScanned: len(entries), RowsChanged: changed}, nil
}

// populateSymbols seeds query-memory from the catalog's curated few-shot
// examples, batching inserts so a large seed set doesn't issue one
// statement per row.
func (p *Pipeline) populateSymbols(ctx context.Context) (StepResult, error) {
	examples := p.cat.Examples()
	const batchSize = 50
	scanned, changed := 0, 0

	for start := 0; start < len(examples); start += batchSize {
		end := start + batchSize
		if end > len(examples) {
			end = len(examples)
		}
		batch := examples[start:end]

		rows := make([]string, 0, len(batch))
		params := make([]warehouse.Param, 0, len(batch)*8)
		for i, ex := range batch {
			idx := start + i
			rows = append(rows, fmt.Sprintf(
				"(@id%d, @question%d, @sql%d, @tables%d, @dataset%d, @complexity%d, @routing%d, 'seed', CURRENT_TIMESTAMP(), NULL)",
				idx, idx, idx, idx, idx, idx, idx))
			params = append(params,
				warehouse.Param{Name: fmt.Sprintf("id%d", idx), Value: fmt.Sprintf("seed-%d", idx)},
				warehouse.Param{Name: fmt.Sprintf("question%d", idx), Value: ex.Question},
				warehouse.Param{Name: fmt.Sprintf("sql%d", idx), Value: ex.SQL},
				warehouse.Param{Name: fmt.Sprintf("tables%d", idx), Value: ex.Tables},
				warehouse.Param{Name: fmt.Sprintf("dataset%d", idx), Value: ex.Dataset},
				warehouse.Param{Name: fmt.Sprintf("complexity%d", idx), Value: ex.Complexity},
				warehouse.Param{Name: fmt.Sprintf("routing%d", idx), Value: ex.RoutingSignal},
			)
		}

		sql := fmt.Sprintf(
			"INSERT INTO %s (id, question, sql, tables, dataset, complexity, routing_signal, validator_id, created_at, embedding) VALUES %s",
			p.qualified(QueryMemoryTable), strings.Join(rows, ", "),
		)
		if _, err := p.wh.Query(ctx, sql, params, 0); err != nil {
			return StepResult{Step: StepPopulateSymbols, RowsScanned: scanned, RowsChanged: changed},
				wrapErr("populate_symbols", err)
		}
		scanned += len(batch)
		changed += len(batch)
	}
	return StepResult{Step: StepPopulateSymbols, RowsScanned: scanned, RowsChanged: changed}, nil
}
