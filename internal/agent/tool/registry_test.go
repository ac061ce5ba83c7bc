package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool(t *testing.T, name string) CallableTool {
	t.Helper()
	def, err := NewDefinition(name, "echoes its arguments", &exampleParams{})
	require.NoError(t, err)
	tl, err := NewBuilder().
		WithDefinition(def).
		WithCaller(func(ctx Context, argsJSON string) (string, error) { return argsJSON, nil }).
		Build()
	require.NoError(t, err)
	return tl
}

func TestRegistry_RegisterFindUnregister(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool(t, "a")).Register(echoTool(t, "b"))

	assert.Equal(t, 2, r.Size())
	assert.True(t, r.Exists("a"))
	assert.ElementsMatch(t, []string{"a", "b"}, r.Names())

	found, ok := r.Find("a")
	require.True(t, ok)
	assert.Equal(t, "a", found.Definition().Name())

	r.Unregister("a")
	assert.False(t, r.Exists("a"))
	assert.Equal(t, 1, r.Size())
}

func TestRegistry_Clear(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool(t, "a"))
	r.Clear()
	assert.Equal(t, 0, r.Size())
	assert.Empty(t, r.All())
}

func TestBuilder_RequiresDefinitionAndCaller(t *testing.T) {
	_, err := NewBuilder().Build()
	assert.Error(t, err)

	def, err := NewDefinition("name", "description", &exampleParams{})
	require.NoError(t, err)

	_, err = NewBuilder().WithDefinition(def).Build()
	assert.Error(t, err, "missing caller should fail validation")
}

func TestBuilder_DefaultsMetadata(t *testing.T) {
	def, err := NewDefinition("name", "description", &exampleParams{})
	require.NoError(t, err)

	tl, err := NewBuilder().
		WithDefinition(def).
		WithCaller(func(ctx Context, argsJSON string) (string, error) { return "", nil }).
		Build()
	require.NoError(t, err)
	assert.False(t, tl.Metadata().ReturnDirect())
}

func TestMustBuild_PanicsWithoutCaller(t *testing.T) {
	def, err := NewDefinition("name", "description", &exampleParams{})
	require.NoError(t, err)
	assert.Panics(t, func() {
		NewBuilder().WithDefinition(def).MustBuild()
	})
}
