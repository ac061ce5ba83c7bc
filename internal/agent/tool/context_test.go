package tool

import (
	stdContext "context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContext_SetGetClear(t *testing.T) {
	ctx := NewContext(stdContext.Background())

	ctx.Set("question", "what was pnl")
	v, ok := ctx.Get("question")
	assert.True(t, ok)
	assert.Equal(t, "what was pnl", v)

	ctx.SetMap(map[string]any{"a": 1, "b": 2})
	fields := ctx.Fields()
	assert.Equal(t, 3, len(fields))

	ctx.Clear()
	assert.Empty(t, ctx.Fields())
}

func TestContext_CloneIsIndependent(t *testing.T) {
	ctx := NewContext(stdContext.Background())
	ctx.Set("k", "v1")

	clone := ctx.Clone()
	clone.Set("k", "v2")

	orig, _ := ctx.Get("k")
	cloned, _ := clone.Get("k")
	assert.Equal(t, "v1", orig)
	assert.Equal(t, "v2", cloned)
}

func TestContext_FieldsSnapshotDoesNotAliasInternalMap(t *testing.T) {
	ctx := NewContext(stdContext.Background())
	ctx.Set("k", "v1")

	snap := ctx.Fields()
	snap["k"] = "mutated"

	v, _ := ctx.Get("k")
	assert.Equal(t, "v1", v)
}
