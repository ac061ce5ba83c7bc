package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/LuisDee/nl2sql-sub001/internal/embedpipeline"
	"github.com/LuisDee/nl2sql-sub001/internal/warehouse"
)

// SemanticCacheHit is a past validated question whose embedding landed
// within threshold of the current question.
type SemanticCacheHit struct {
	Question string
	SQL      string
	Tables   []string
	Dataset  string
	Distance float64
}

// ProbeSemanticCache embeds question, searches query-memory for its nearest
// neighbour, and returns a hit only if the distance is within threshold AND
// (when allowedDatasets is non-empty) the hit's dataset is one of the
// resolved exchange's datasets. A hit from the wrong exchange's dataset is
// treated as a miss rather than returned, preventing cross-exchange
// leakage without touching the tool-calling order.
func (e *Engine) ProbeSemanticCache(ctx context.Context, question string, allowedDatasets []string) (*SemanticCacheHit, error) {
	sql := fmt.Sprintf(
		"WITH %s\n"+
			"SELECT TO_JSON_STRING(base) AS payload, distance FROM VECTOR_SEARCH("+
			"TABLE %s, 'embedding', TABLE q, distance_type => 'COSINE', top_k => 1)",
		e.embeddingCTE(), e.qualified(embedpipeline.QueryMemoryTable),
	)

	qr, err := e.wh.Query(ctx, sql, []warehouse.Param{{Name: "question", Value: question}}, 0)
	if err != nil {
		return nil, wrapErr("semantic_cache_probe", err)
	}
	if len(qr.Rows) == 0 {
		return nil, nil
	}

	row := qr.Rows[0]
	distance := toFloat(row["distance"])
	threshold := e.cfg.SemanticCacheThreshold
	if threshold <= 0 {
		threshold = 0.10
	}
	if distance > threshold {
		return nil, nil
	}

	payload, _ := row["payload"].(string)
	var p queryMemoryPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, wrapErr("semantic_cache_decode", err)
	}

	if len(allowedDatasets) > 0 && !contains(allowedDatasets, p.Dataset) {
		return nil, nil
	}

	return &SemanticCacheHit{
		Question: p.Question, SQL: p.SQL, Tables: p.Tables,
		Dataset: p.Dataset, Distance: distance,
	}, nil
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// QuestionHash is the stable key the per-turn caches are keyed by.
func QuestionHash(question string) string {
	sum := sha256.Sum256([]byte(question))
	return hex.EncodeToString(sum[:])
}

// TurnCache memoises few-shot examples and YAML metadata blobs for the
// duration of a single question, so a tool that asks for the same thing
// twice in one turn doesn't re-issue the warehouse round-trip. Cleared
// explicitly when a new question begins.
type TurnCache struct {
	mu           sync.Mutex
	questionHash string
	fewShot      []QueryMemoryHit
	fewShotSet   bool
	yamlBlobs    map[string]string
}

func NewTurnCache() *TurnCache {
	return &TurnCache{yamlBlobs: map[string]string{}}
}

// Reset clears both caches and starts tracking a new question.
func (c *TurnCache) Reset(question string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.questionHash = QuestionHash(question)
	c.fewShot = nil
	c.fewShotSet = false
	c.yamlBlobs = map[string]string{}
}

func (c *TurnCache) FewShot() ([]QueryMemoryHit, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fewShot, c.fewShotSet
}

func (c *TurnCache) SetFewShot(hits []QueryMemoryHit) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fewShot = hits
	c.fewShotSet = true
}

func (c *TurnCache) YAMLBlob(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.yamlBlobs[key]
	return v, ok
}

func (c *TurnCache) SetYAMLBlob(key, blob string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.yamlBlobs[key] = blob
}
