package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/LuisDee/nl2sql-sub001/internal/warehouse"
)

func TestSortTables_TieBreakContract(t *testing.T) {
	tables := []TableCandidate{
		{Table: "zzz", MinDist: 0.2, HitCount: 3},
		{Table: "aaa", MinDist: 0.1, HitCount: 1},
		{Table: "bbb", MinDist: 0.1, HitCount: 5},
		{Table: "ccc", MinDist: 0.1, HitCount: 5},
	}
	sortTables(tables)

	// 0.1/5 beats 0.1/1 beats 0.2/3; among the two 0.1/5 ties, name breaks it.
	got := []string{tables[0].Table, tables[1].Table, tables[2].Table, tables[3].Table}
	assert.Equal(t, []string{"bbb", "ccc", "aaa", "zzz"}, got)
}

func TestAggregateByTable_GroupsAndCapsPerTable(t *testing.T) {
	hits := []ColumnHit{
		{Dataset: "gold", Table: "edge_summary", Name: "pnl", Distance: 0.05},
		{Dataset: "gold", Table: "edge_summary", Name: "desk", Distance: 0.20},
		{Dataset: "gold", Table: "edge_summary", Name: "strategy", Distance: 0.30},
		{Dataset: "silver", Table: "fills", Name: "qty", Distance: 0.10},
	}
	out := aggregateByTable(hits, 2)

	assert.Len(t, out, 2)
	// edge_summary has the lowest min distance (0.05) so it ranks first.
	assert.Equal(t, "edge_summary", out[0].Table)
	assert.Equal(t, 0.05, out[0].MinDist)
	assert.Equal(t, 3, out[0].HitCount)
	assert.Len(t, out[0].Columns, 2) // capped at maxPerTable=2
	assert.Equal(t, "pnl", out[0].Columns[0].Name)
}

func TestPartitionRows_FallsBackToTableWhenNoColumnHits(t *testing.T) {
	rows := []warehouse.Row{
		{"source": "table", "payload": `{"dataset":"gold","table_name":"edge_summary","embedded_text":"x"}`, "distance": 0.1},
		{"source": "glossary", "payload": `{"name":"greeks","embedded_text":"y"}`, "distance": 0.2},
	}
	res, err := partitionRows(rows, 15)
	assert.NoError(t, err)
	assert.Len(t, res.Tables, 1)
	assert.Equal(t, "edge_summary", res.Tables[0].Table)
	assert.Len(t, res.Glossary, 1)
}

func TestPartitionRows_PrefersColumnHitsOverTable(t *testing.T) {
	rows := []warehouse.Row{
		{"source": "column", "payload": `{"dataset":"gold","table_name":"edge_summary","column_name":"pnl"}`, "distance": 0.05},
	}
	res, err := partitionRows(rows, 15)
	assert.NoError(t, err)
	assert.Len(t, res.Tables, 1)
	assert.Equal(t, "pnl", res.Tables[0].Columns[0].Name)
}

func TestContains(t *testing.T) {
	assert.True(t, contains([]string{"a", "b"}, "b"))
	assert.False(t, contains([]string{"a", "b"}, "c"))
	assert.False(t, contains(nil, "c"))
}
