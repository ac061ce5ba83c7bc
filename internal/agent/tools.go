package agent

import (
	"context"
	"errors"

	"gopkg.in/yaml.v3"

	"github.com/LuisDee/nl2sql-sub001/internal/agent/tool"
	"github.com/LuisDee/nl2sql-sub001/internal/errs"
	"github.com/LuisDee/nl2sql-sub001/internal/retrieval"
	"github.com/LuisDee/nl2sql-sub001/internal/sqlpipeline"
)

// Parameter shapes are deliberately primitive (strings, numbers, booleans,
// flat string lists) so the LLM's schema discovery stays simple.

type checkSemanticCacheParams struct {
	Question         string   `json:"question" jsonschema:"required,description=The user's natural-language question"`
	ExchangeDatasets []string `json:"exchange_datasets,omitempty" jsonschema:"description=Dataset pair from resolve_exchange, if it already ran this turn"`
}

type resolveExchangeParams struct {
	Text string `json:"text" jsonschema:"required,description=Exchange code, alias, or symbol mentioned in the question"`
}

type vectorSearchColumnsParams struct {
	Question string `json:"question" jsonschema:"required,description=The user's natural-language question"`
}

type fetchFewShotExamplesParams struct {
	Question string `json:"question" jsonschema:"required,description=The user's natural-language question"`
}

type loadYAMLMetadataParams struct {
	Dataset string `json:"dataset" jsonschema:"required,description=Dataset name as returned by vector_search_columns"`
	Table   string `json:"table" jsonschema:"required,description=Table name as returned by vector_search_columns"`
}

type dryRunSQLParams struct {
	SQL string `json:"sql" jsonschema:"required,description=Candidate SELECT statement"`
}

type executeSQLParams struct {
	SQL string `json:"sql" jsonschema:"required,description=Validated SELECT statement"`
}

type saveValidatedQueryParams struct {
	Question      string   `json:"question" jsonschema:"required"`
	SQL           string   `json:"sql" jsonschema:"required"`
	Tables        []string `json:"tables" jsonschema:"required"`
	Dataset       string   `json:"dataset" jsonschema:"required"`
	Complexity    string   `json:"complexity,omitempty"`
	RoutingSignal string   `json:"routing_signal,omitempty"`
	ValidatorID   string   `json:"validator_id,omitempty"`
}

// buildRegistry constructs and registers the eight tools the LLM sees,
// closing over c so each tool can reach the catalog, retrieval engine,
// warehouse, and per-turn state without a separate dependency-injection
// layer.
func (c *Controller) buildRegistry() *tool.Registry {
	reg := tool.NewRegistry()

	reg.Register(tool.NewBuilder().
		WithDefinition(tool.MustNewDefinition("check_semantic_cache",
			"Check whether a previously validated question/SQL pair already answers this question. Call this at the start of every new question (after resolve_exchange if the question names an exchange).",
			&checkSemanticCacheParams{})).
		WithCaller(c.checkSemanticCache).
		MustBuild())

	reg.Register(tool.NewBuilder().
		WithDefinition(tool.MustNewDefinition("resolve_exchange",
			"Resolve an exchange code, alias, or symbol to its gold/silver dataset pair. Call before check_semantic_cache if the question names an exchange.",
			&resolveExchangeParams{})).
		WithCaller(c.resolveExchange).
		MustBuild())

	reg.Register(tool.NewBuilder().
		WithDefinition(tool.MustNewDefinition("vector_search_columns",
			"Search the catalog for columns, glossary terms, and candidate tables relevant to the question.",
			&vectorSearchColumnsParams{})).
		WithCaller(c.vectorSearchColumns).
		MustBuild())

	reg.Register(tool.NewBuilder().
		WithDefinition(tool.MustNewDefinition("fetch_few_shot_examples",
			"Fetch previously validated question/SQL examples similar to this question.",
			&fetchFewShotExamplesParams{})).
		WithCaller(c.fetchFewShotExamples).
		MustBuild())

	reg.Register(tool.NewBuilder().
		WithDefinition(tool.MustNewDefinition("load_yaml_metadata",
			"Load the full catalog entry for one table, including every column, when the search payload isn't enough context.",
			&loadYAMLMetadataParams{})).
		WithCaller(c.loadYAMLMetadata).
		MustBuild())

	reg.Register(tool.NewBuilder().
		WithDefinition(tool.MustNewDefinition("dry_run_sql",
			"Validate a candidate SQL statement against the warehouse planner without executing it.",
			&dryRunSQLParams{})).
		WithCaller(c.dryRunSQL).
		MustBuild())

	reg.Register(tool.NewBuilder().
		WithDefinition(tool.MustNewDefinition("execute_sql",
			"Execute a validated read-only SQL statement and return its rows.",
			&executeSQLParams{})).
		WithCaller(c.executeSQL).
		MustBuild())

	reg.Register(tool.NewBuilder().
		WithDefinition(tool.MustNewDefinition("save_validated_query",
			"Persist a question/SQL pair the user confirmed was correct, so future similar questions can be answered from cache.",
			&saveValidatedQueryParams{})).
		WithCaller(c.saveValidatedQuery).
		MustBuild())

	return reg
}

func (c *Controller) checkSemanticCache(ctx tool.Context, argsJSON string) (string, error) {
	var p checkSemanticCacheParams
	if err := decodeArgs(argsJSON, &p); err != nil {
		return fail("invalid arguments: " + err.Error()), nil
	}

	// A check_semantic_cache call is the "new question" signal: every
	// per-turn cache and counter starts over, even on a cache hit.
	c.state.Reset()
	c.turnCache.Reset(p.Question)

	hit, err := c.retrieval.ProbeSemanticCache(ctx.Context(), p.Question, nil)
	if err != nil {
		return fail(err.Error()), nil
	}
	if hit == nil {
		return ok(map[string]any{"cache_hit": false}), nil
	}
	if len(p.ExchangeDatasets) > 0 && !containsString(p.ExchangeDatasets, hit.Dataset) {
		return ok(map[string]any{
			"cache_hit": false,
			"reason":    "the closest cached match is from a different exchange dataset",
		}), nil
	}

	return ok(map[string]any{
		"cache_hit": true,
		"question":  hit.Question,
		"sql":       hit.SQL,
		"tables":    hit.Tables,
		"dataset":   hit.Dataset,
		"distance":  hit.Distance,
	}), nil
}

func (c *Controller) resolveExchange(ctx tool.Context, argsJSON string) (string, error) {
	var p resolveExchangeParams
	if err := decodeArgs(argsJSON, &p); err != nil {
		return fail("invalid arguments: " + err.Error()), nil
	}

	gold, silver, found := c.cat.ResolveExchange(p.Text)
	if !found {
		return ok(map[string]any{"found": false}), nil
	}

	c.state.SetResolvedExchange([]string{gold, silver})
	return ok(map[string]any{
		"found":          true,
		"gold_dataset":   gold,
		"silver_dataset": silver,
	}), nil
}

func (c *Controller) vectorSearchColumns(ctx tool.Context, argsJSON string) (string, error) {
	var p vectorSearchColumnsParams
	if err := decodeArgs(argsJSON, &p); err != nil {
		return fail("invalid arguments: " + err.Error()), nil
	}

	res, err := c.retrieval.Search(ctx.Context(), p.Question)
	if err != nil {
		return fail(err.Error()), nil
	}
	c.turnCache.SetFewShot(res.FewShot)

	tables := make([]map[string]any, 0, len(res.Tables))
	for _, t := range res.Tables {
		cols := make([]map[string]any, 0, len(t.Columns))
		for _, col := range t.Columns {
			cols = append(cols, map[string]any{
				"name":                col.Name,
				"type":                col.Type,
				"description":         col.Description,
				"synonyms":            col.Synonyms,
				"category":            col.Category,
				"formula":             col.Formula,
				"example_values":      col.ExampleValues,
				"related_columns":     col.RelatedColumns,
				"typical_aggregation": col.TypicalAggregation,
				"filterable":          col.Filterable,
				"distance":            col.Distance,
			})
		}
		tables = append(tables, map[string]any{
			"dataset":   t.Dataset,
			"table":     t.Table,
			"min_dist":  t.MinDist,
			"hit_count": t.HitCount,
			"columns":   cols,
		})
	}

	glossary := make([]map[string]any, 0, len(res.Glossary))
	for _, g := range res.Glossary {
		glossary = append(glossary, map[string]any{
			"name":            g.Name,
			"definition":      g.Definition,
			"related_columns": g.RelatedColumns,
			"distance":        g.Distance,
		})
	}

	return ok(map[string]any{
		"tables":        tables,
		"glossary":      glossary,
		"used_fallback": res.UsedFallback,
	}), nil
}

func (c *Controller) fetchFewShotExamples(ctx tool.Context, argsJSON string) (string, error) {
	var p fetchFewShotExamplesParams
	if err := decodeArgs(argsJSON, &p); err != nil {
		return fail("invalid arguments: " + err.Error()), nil
	}

	if hits, cached := c.turnCache.FewShot(); cached {
		return ok(map[string]any{"examples": fewShotJSON(hits), "cached": true}), nil
	}

	res, err := c.retrieval.Search(ctx.Context(), p.Question)
	if err != nil {
		return fail(err.Error()), nil
	}
	c.turnCache.SetFewShot(res.FewShot)

	return ok(map[string]any{"examples": fewShotJSON(res.FewShot), "cached": false}), nil
}

func fewShotJSON(hits []retrieval.QueryMemoryHit) []map[string]any {
	out := make([]map[string]any, 0, len(hits))
	for _, h := range hits {
		out = append(out, map[string]any{
			"question": h.Question,
			"sql":      h.SQL,
			"tables":   h.Tables,
			"dataset":  h.Dataset,
			"distance": h.Distance,
		})
	}
	return out
}

func (c *Controller) loadYAMLMetadata(ctx tool.Context, argsJSON string) (string, error) {
	var p loadYAMLMetadataParams
	if err := decodeArgs(argsJSON, &p); err != nil {
		return fail("invalid arguments: " + err.Error()), nil
	}

	cacheKey := p.Dataset + "." + p.Table
	if blob, cached := c.turnCache.YAMLBlob(cacheKey); cached {
		return ok(map[string]any{"yaml": blob, "cached": true}), nil
	}

	t, err := c.cat.LoadTable(p.Dataset, p.Table)
	if err != nil {
		return fail(err.Error()), nil
	}
	raw, err := yaml.Marshal(t)
	if err != nil {
		return fail("failed to render table metadata: " + err.Error()), nil
	}
	blob := string(raw)
	c.turnCache.SetYAMLBlob(cacheKey, blob)

	return ok(map[string]any{"yaml": blob, "cached": false}), nil
}

func (c *Controller) dryRunSQL(ctx tool.Context, argsJSON string) (string, error) {
	var p dryRunSQLParams
	if err := decodeArgs(argsJSON, &p); err != nil {
		return fail("invalid arguments: " + err.Error()), nil
	}

	res, err := sqlpipeline.DryRunSQL(ctx.Context(), c.wh, p.SQL)
	if err != nil {
		c.state.PostDryRun(false)
		return fail(err.Error()), nil
	}

	c.state.PostDryRun(true)
	return ok(map[string]any{
		"valid":                 res.Valid,
		"estimated_total_bytes": res.EstimatedTotalBytes,
	}), nil
}

func (c *Controller) executeSQL(ctx tool.Context, argsJSON string) (string, error) {
	var p executeSQLParams
	if err := decodeArgs(argsJSON, &p); err != nil {
		return fail("invalid arguments: " + err.Error()), nil
	}

	res, err := sqlpipeline.ExecuteSQL(ctx.Context(), c.wh, p.SQL, c.sqlCfg, c.log)
	if err != nil {
		return fail(err.Error()), nil
	}

	rows := make([]map[string]any, len(res.Rows))
	for i, r := range res.Rows {
		rows[i] = r
	}
	c.lastRows = rows

	fields := map[string]any{
		"row_count":  res.RowCount,
		"rows":       res.Rows,
		"issued_sql": res.IssuedSQL,
	}
	if res.Warning != "" {
		fields["warning"] = res.Warning
	}
	return ok(fields), nil
}

func (c *Controller) saveValidatedQuery(ctx tool.Context, argsJSON string) (string, error) {
	var p saveValidatedQueryParams
	if err := decodeArgs(argsJSON, &p); err != nil {
		return fail("invalid arguments: " + err.Error()), nil
	}

	vq := sqlpipeline.ValidatedQuery{
		Question:      p.Question,
		SQL:           p.SQL,
		Tables:        p.Tables,
		Dataset:       p.Dataset,
		Complexity:    p.Complexity,
		RoutingSignal: p.RoutingSignal,
		ValidatorID:   p.ValidatorID,
	}

	outcome, err := sqlpipeline.SaveValidatedQuery(
		ctx.Context(), c.wh, c.cfg.MetadataDataset, vq,
		func(ctx context.Context, _ string) error { return c.embed.EmbedPendingQueryMemory(ctx) },
		c.cfg.AutonomousEmbeddings,
	)
	if err != nil {
		var embeddingErr *errs.EmbeddingError
		if errors.As(err, &embeddingErr) && outcome != nil {
			return ok(map[string]any{"save_status": outcome.Status, "row_id": outcome.RowID, "warning": embeddingErr.Error()}), nil
		}
		return fail(err.Error()), nil
	}

	return ok(map[string]any{"row_id": outcome.RowID, "save_status": outcome.Status}), nil
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
