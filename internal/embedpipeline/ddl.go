package embedpipeline

import (
	"context"
	"fmt"
)

// createDataset issues a non-destructive `CREATE SCHEMA IF NOT EXISTS` for
// the metadata dataset. Never destructive, so it ignores Force.
func (p *Pipeline) createDataset(ctx context.Context) (StepResult, error) {
	sql := fmt.Sprintf(
		"CREATE SCHEMA IF NOT EXISTS `%s.%s`",
		p.wh.ProjectID(), p.cfg.MetadataDataset,
	)
	if _, err := p.wh.Query(ctx, sql, nil, 0); err != nil {
		return StepResult{}, wrapErr("create_dataset", err)
	}
	return StepResult{Step: StepCreateDataset, Message: "dataset ready"}, nil
}

// verifyModel confirms the configured embedding model reference resolves,
// by issuing a single-row dry embedding call against it. A model that
// doesn't exist or isn't reachable fails loudly here rather than silently
// during generate-embeddings.
func (p *Pipeline) verifyModel(ctx context.Context) (StepResult, error) {
	sql := fmt.Sprintf(
		"SELECT ml_generate_embedding_result FROM ML.GENERATE_EMBEDDING(MODEL `%s`, "+
			"(SELECT 'probe' AS content), STRUCT('%s' AS task_type))",
		p.cfg.EmbeddingModelRef, TaskRetrievalQuery,
	)
	if _, err := p.wh.DryRun(ctx, sql); err != nil {
		return StepResult{}, wrapErr("verify_model", err)
	}
	return StepResult{Step: StepVerifyModel, Message: "model reachable"}, nil
}

// tableDDL is the set of CREATE TABLE statements for the four index tables.
// Embedding columns are nullable ARRAY<FLOAT64> so a freshly-populated row
// (embedding NULL) is correctly picked up by the "pending" predicate in
// generateEmbeddings.
func (p *Pipeline) tableDDL() map[string]string {
	base := "%s (\n%s,\n  embedding ARRAY<FLOAT64>\n)"
	mk := func(table, cols string) string {
		name := p.qualified(table)
		createOrReplace := "CREATE TABLE IF NOT EXISTS"
		if p.cfg.Force {
			createOrReplace = "CREATE OR REPLACE TABLE"
		}
		return fmt.Sprintf("%s "+base, createOrReplace, name, cols)
	}
	return map[string]string{
		SchemaTable: mk(SchemaTable,
			"  dataset STRING,\n  table_name STRING,\n  embedded_text STRING"),
		ColumnTable: mk(ColumnTable,
			"  dataset STRING,\n  table_name STRING,\n  column_name STRING,\n"+
				"  column_type STRING,\n  synonyms ARRAY<STRING>,\n"+
				"  embedded_text STRING,\n  category STRING,\n  formula STRING,\n"+
				"  example_values ARRAY<STRING>,\n  related_columns ARRAY<STRING>,\n"+
				"  typical_aggregation STRING,\n  filterable BOOL"),
		GlossaryTable: mk(GlossaryTable,
			"  name STRING,\n  embedded_text STRING,\n  related_columns ARRAY<STRING>,\n  category STRING"),
		QueryMemoryTable: mk(QueryMemoryTable,
			"  id STRING,\n  question STRING,\n  sql STRING,\n  tables ARRAY<STRING>,\n"+
				"  dataset STRING,\n  complexity STRING,\n  routing_signal STRING,\n"+
				"  validator_id STRING,\n  created_at TIMESTAMP"),
	}
}

// createTables runs the DDL for all four index tables. Non-destructive by
// default (IF NOT EXISTS); Force switches to CREATE OR REPLACE, which drops
// and recreates, losing any existing embeddings.
func (p *Pipeline) createTables(ctx context.Context) (StepResult, error) {
	ddl := p.tableDDL()
	for _, table := range []string{SchemaTable, ColumnTable, GlossaryTable, QueryMemoryTable} {
		if _, err := p.wh.Query(ctx, ddl[table], nil, 0); err != nil {
			return StepResult{}, wrapErr("create_tables:"+table, err)
		}
	}
	msg := "tables created (IF NOT EXISTS)"
	if p.cfg.Force {
		msg = "tables recreated (CREATE OR REPLACE)"
	}
	return StepResult{Step: StepCreateTables, RowsChanged: 4, Message: msg}, nil
}

// createIndexes issues the vector-index DDL for each embedded table. BigQuery
// requires a minimum row count before a vector index is usable. The step
// stops at the first table whose index DDL fails and returns that error,
// with RowsChanged counting the tables indexed before it.
func (p *Pipeline) createIndexes(ctx context.Context) (StepResult, error) {
	changed := 0
	for _, table := range []string{SchemaTable, ColumnTable, GlossaryTable, QueryMemoryTable} {
		sql := fmt.Sprintf(
			"CREATE VECTOR INDEX IF NOT EXISTS %s_vec ON %s(embedding) "+
				"OPTIONS(index_type = 'IVF', distance_type = 'COSINE')",
			table, p.qualified(table),
		)
		if _, err := p.wh.Query(ctx, sql, nil, 0); err != nil {
			return StepResult{Step: StepCreateIndexes, RowsChanged: changed},
				wrapErr("create_indexes:"+table, err)
		}
		changed++
	}
	return StepResult{Step: StepCreateIndexes, RowsChanged: changed, Message: "vector indexes requested"}, nil
}
