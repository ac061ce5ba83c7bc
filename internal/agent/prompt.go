package agent

import (
	"fmt"
	"strings"

	"github.com/LuisDee/nl2sql-sub001/internal/catalog"
)

const toolUsageOrder = `Tool-usage order:
0. resolve_exchange, if the question mentions an exchange or symbol.
0.5. check_semantic_cache(question, exchange_datasets?) — if it reports cache_hit, answer from it directly.
1. vector_search_columns — derives candidate tables, column context, cached examples, and glossary.
2. fetch_few_shot_examples — reuses the per-turn cache.
3. (optional) load_yaml_metadata(table, dataset) — full schema when the search payload isn't enough.
4. Compose SQL using the returned columns only.
5. dry_run_sql.
6. execute_sql.
7. (after the user confirms the answer) save_validated_query.`

const sqlGuidelines = `SQL guidelines:
- Only SELECT statements are permitted; DDL/DML of any kind is rejected before it reaches the warehouse.
- Every query runs against fully-qualified project.dataset.table references.
- A row cap is appended automatically; narrow your own filters rather than relying on it to bound cost.
- When a table is flagged as a superset of others, do not also join the tables it's a superset of — that double-counts rows.
- Prefer the table's preferred_timestamps.primary column for time filtering; fall back to the listed fallback columns only if primary is absent from the payload.`

// buildStaticPrompt assembles the process-lifetime-cached portion of the
// system prompt: tool roster, usage order, routing rules rendered from the
// catalog, and SQL guidelines. Computed once per Controller.
func buildStaticPrompt(cat *catalog.Catalog, toolNames []string) string {
	var b strings.Builder

	b.WriteString("You are a read-only SQL analyst agent backed by a warehouse catalog.\n\n")

	b.WriteString("Available tools: ")
	b.WriteString(strings.Join(toolNames, ", "))
	b.WriteString("\n\n")

	b.WriteString(toolUsageOrder)
	b.WriteString("\n\n")

	b.WriteString(sqlGuidelines)
	b.WriteString("\n\n")

	b.WriteString(renderRoutingRules(cat))

	return b.String()
}

func renderRoutingRules(cat *catalog.Catalog) string {
	rr := cat.LoadRoutingRules()
	if rr == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("Routing rules:\n")
	for _, note := range rr.CrossCutting {
		fmt.Fprintf(&b, "- %s\n", note)
	}
	for _, rule := range rr.GoldRouting {
		fmt.Fprintf(&b, "- gold.%s: patterns %v", rule.Table, rule.Patterns)
		if rule.Notes != "" {
			fmt.Fprintf(&b, " (%s)", rule.Notes)
		}
		b.WriteString("\n")
	}
	for _, rule := range rr.SilverRouting {
		fmt.Fprintf(&b, "- silver.%s: patterns %v", rule.Table, rule.Patterns)
		if rule.Notes != "" {
			fmt.Fprintf(&b, " (%s)", rule.Notes)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// buildDynamicPrompt assembles the per-turn portion: resolved exchange,
// loop-prevention status, and a truncated preview of the most recent SQL
// and its result rows, so the model sees enough state to recover from an
// error without flooding its context.
func buildDynamicPrompt(st *State, lastSQL string, sqlPreviewChars int, rowPreview []map[string]any, rowPreviewCount int) string {
	var b strings.Builder
	b.WriteString("Current turn state:\n")

	if exch := st.ResolvedExchange(); len(exch) == 2 {
		fmt.Fprintf(&b, "- resolved exchange datasets: gold=%s silver=%s\n", exch[0], exch[1])
	}

	if st.MaxRetriesReached() {
		b.WriteString("- dry-run/execute is currently BLOCKED: too many consecutive validation failures. Ask the user to rephrase or pick a different table.\n")
	}

	if lastSQL != "" {
		b.WriteString("- last SQL considered: ")
		b.WriteString(truncate(lastSQL, sqlPreviewChars))
		b.WriteString("\n")
	}

	if len(rowPreview) > 0 {
		n := rowPreviewCount
		if n > len(rowPreview) {
			n = len(rowPreview)
		}
		fmt.Fprintf(&b, "- last result preview (%d of %d rows): %v\n", n, len(rowPreview), rowPreview[:n])
	}

	return b.String()
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
