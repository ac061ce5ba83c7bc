package sqlpipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnsureLimit_AppendsWhenAbsent(t *testing.T) {
	got := EnsureLimit("SELECT 1 AS x", 1000)
	assert.Equal(t, "SELECT 1 AS x\nLIMIT 1000", got)
}

func TestEnsureLimit_LeavesExistingOuterLimit(t *testing.T) {
	got := EnsureLimit("SELECT * FROM t LIMIT 50", 1000)
	assert.Equal(t, "SELECT * FROM t LIMIT 50", got)
}

func TestEnsureLimit_CTEInternalLimitDoesNotCount(t *testing.T) {
	sql := "WITH cte AS (SELECT * FROM t LIMIT 10) SELECT * FROM cte"
	got := EnsureLimit(sql, 1000)
	assert.Equal(t, sql+"\nLIMIT 1000", got)
}

func TestEnsureLimit_TrailingSemicolonAndWhitespaceIgnored(t *testing.T) {
	got := EnsureLimit("SELECT * FROM t LIMIT 10;  \n", 1000)
	assert.Equal(t, "SELECT * FROM t LIMIT 10;  \n", got)
}

func TestEnsureLimit_LimitWithOffsetCounts(t *testing.T) {
	got := EnsureLimit("SELECT * FROM t LIMIT 10 OFFSET 5", 1000)
	assert.Equal(t, "SELECT * FROM t LIMIT 10 OFFSET 5", got)
}
