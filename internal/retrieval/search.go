package retrieval

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/LuisDee/nl2sql-sub001/internal/embedpipeline"
	"github.com/LuisDee/nl2sql-sub001/internal/warehouse"
)

// columnPayload mirrors the JSON shape TO_JSON_STRING(base) produces for a
// column_index row.
type columnPayload struct {
	Dataset            string   `json:"dataset"`
	TableName          string   `json:"table_name"`
	ColumnName         string   `json:"column_name"`
	ColumnType         string   `json:"column_type"`
	Synonyms           []string `json:"synonyms"`
	EmbeddedText       string   `json:"embedded_text"`
	Category           string   `json:"category"`
	Formula            string   `json:"formula"`
	ExampleValues      []string `json:"example_values"`
	RelatedColumns     []string `json:"related_columns"`
	TypicalAggregation string   `json:"typical_aggregation"`
	Filterable         bool     `json:"filterable"`
}

type tablePayload struct {
	Dataset      string `json:"dataset"`
	TableName    string `json:"table_name"`
	EmbeddedText string `json:"embedded_text"`
}

type glossaryPayload struct {
	Name           string   `json:"name"`
	EmbeddedText   string   `json:"embedded_text"`
	RelatedColumns []string `json:"related_columns"`
}

type queryMemoryPayload struct {
	Question string   `json:"question"`
	SQL      string   `json:"sql"`
	Tables   []string `json:"tables"`
	Dataset  string   `json:"dataset"`
}

// Search runs the combined column/glossary/query-memory vector search for
// question in a single warehouse round-trip, falling back to a table-level
// search if the column branch errors.
func (e *Engine) Search(ctx context.Context, question string) (*Result, error) {
	res, err := e.runCombined(ctx, question, false)
	if err == nil {
		return res, nil
	}

	e.log.Warn("column search failed, falling back to table-level search",
		zap.Error(err), zap.String("question", question))
	res, fallbackErr := e.runCombined(ctx, question, true)
	if fallbackErr != nil {
		return nil, wrapErr("combined_search_fallback", fallbackErr)
	}
	res.UsedFallback = true
	return res, nil
}

func (e *Engine) runCombined(ctx context.Context, question string, useTableFallback bool) (*Result, error) {
	columnTopK := e.cfg.ColumnSearchTopK
	if columnTopK <= 0 {
		columnTopK = 30
	}
	tableTopK := e.cfg.TableSearchTopK
	if tableTopK <= 0 {
		tableTopK = 5
	}
	maxPerTable := e.cfg.ColumnSearchMaxPerTable
	if maxPerTable <= 0 {
		maxPerTable = 15
	}

	primaryBranch := e.searchBranch("column", embedpipeline.ColumnTable, columnTopK)
	if useTableFallback {
		primaryBranch = e.searchBranch("table", embedpipeline.SchemaTable, tableTopK)
	}

	sql := fmt.Sprintf(
		"WITH %s\n%s\nUNION ALL\n%s\nUNION ALL\n%s",
		e.embeddingCTE(),
		primaryBranch,
		e.searchBranch("glossary", embedpipeline.GlossaryTable, defaultGlossaryTopK),
		e.searchBranch("few_shot", embedpipeline.QueryMemoryTable, defaultFewShotTopK),
	)

	qr, err := e.wh.Query(ctx, sql, []warehouse.Param{{Name: "question", Value: question}}, 0)
	if err != nil {
		return nil, err
	}

	return partitionRows(qr.Rows, maxPerTable)
}

func partitionRows(rows []warehouse.Row, maxPerTable int) (*Result, error) {
	var columnHits []ColumnHit
	var tableHits []TableCandidate
	var glossaryHits []GlossaryHit
	var fewShotHits []QueryMemoryHit

	for _, row := range rows {
		source, _ := row["source"].(string)
		payload, _ := row["payload"].(string)
		distance := toFloat(row["distance"])

		switch source {
		case "column":
			var p columnPayload
			if err := json.Unmarshal([]byte(payload), &p); err != nil {
				continue
			}
			columnHits = append(columnHits, ColumnHit{
				Dataset: p.Dataset, Table: p.TableName, Name: p.ColumnName,
				Type: p.ColumnType, Synonyms: p.Synonyms,
				Description: p.EmbeddedText, Distance: distance,
				Category: p.Category, Formula: p.Formula,
				ExampleValues: p.ExampleValues, RelatedColumns: p.RelatedColumns,
				TypicalAggregation: p.TypicalAggregation, Filterable: p.Filterable,
			})
		case "table":
			var p tablePayload
			if err := json.Unmarshal([]byte(payload), &p); err != nil {
				continue
			}
			tableHits = append(tableHits, TableCandidate{
				Dataset: p.Dataset, Table: p.TableName, MinDist: distance, HitCount: 1,
			})
		case "glossary":
			var p glossaryPayload
			if err := json.Unmarshal([]byte(payload), &p); err != nil {
				continue
			}
			glossaryHits = append(glossaryHits, GlossaryHit{
				Name: p.Name, Definition: p.EmbeddedText, Distance: distance,
				RelatedColumns: p.RelatedColumns,
			})
		case "few_shot":
			var p queryMemoryPayload
			if err := json.Unmarshal([]byte(payload), &p); err != nil {
				continue
			}
			fewShotHits = append(fewShotHits, QueryMemoryHit{
				Question: p.Question, SQL: p.SQL, Tables: p.Tables,
				Dataset: p.Dataset, Distance: distance,
			})
		}
	}

	result := &Result{Glossary: glossaryHits, FewShot: fewShotHits}
	if len(columnHits) > 0 {
		result.Tables = aggregateByTable(columnHits, maxPerTable)
	} else {
		sortTables(tableHits)
		result.Tables = tableHits
	}
	return result, nil
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int64:
		return float64(x)
	case int:
		return float64(x)
	default:
		return 0
	}
}
