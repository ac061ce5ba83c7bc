package embedpipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedPendingQueryMemory_UpdatesOnlyTheQueryMemoryTable(t *testing.T) {
	fw := &fakeWarehouse{}
	p := New(fw, testCatalog(t), Config{MetadataDataset: "meta", EmbeddingModelRef: "proj.meta.embed_model"}, nil)

	err := p.EmbedPendingQueryMemory(context.Background())
	require.NoError(t, err)

	issued := fw.sqlSnapshot()
	require.Len(t, issued, 1)
	assert.Contains(t, issued[0], "query_memory")
	assert.Contains(t, issued[0], "question")
}

func TestEmbedPendingQueryMemory_AutonomousIsNoOp(t *testing.T) {
	fw := &fakeWarehouse{}
	p := New(fw, testCatalog(t), Config{MetadataDataset: "meta", AutonomousEmbeddings: true}, nil)

	err := p.EmbedPendingQueryMemory(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fw.sqlSnapshot())
}

func TestGenerateEmbeddings_CoversAllFourIndexTables(t *testing.T) {
	fw := &fakeWarehouse{}
	p := New(fw, testCatalog(t), Config{MetadataDataset: "meta", EmbeddingModelRef: "proj.meta.embed_model"}, nil)

	_, err := p.generateEmbeddings(context.Background())
	require.NoError(t, err)

	issued := fw.sqlSnapshot()
	require.Len(t, issued, 4)
	for _, table := range []string{string(SchemaTable), string(ColumnTable), string(GlossaryTable), string(QueryMemoryTable)} {
		found := false
		for _, sql := range issued {
			if strings.Contains(sql, table) {
				found = true
				break
			}
		}
		assert.True(t, found, "expected an UPDATE against %s", table)
	}
}
