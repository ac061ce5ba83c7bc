package llmclient

import (
	"testing"

	"github.com/openai/openai-go/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LuisDee/nl2sql-sub001/internal/agent/tool"
)

type dryRunParams struct {
	SQL string `json:"sql" jsonschema:"required,description=The SQL to dry-run."`
}

func TestBuildToolParams_TranslatesDefinitions(t *testing.T) {
	def, err := tool.NewDefinition("dry_run_sql", "Validates SQL without executing it.", &dryRunParams{})
	require.NoError(t, err)

	params, err := buildToolParams([]*tool.Definition{def})
	require.NoError(t, err)
	require.Len(t, params, 1)

	fn := params[0].OfFunction
	require.NotNil(t, fn)
	assert.Equal(t, "dry_run_sql", fn.Function.Name)
	assert.Equal(t, "Validates SQL without executing it.", fn.Function.Description.Value)
	assert.Contains(t, fn.Function.Parameters, "properties")
}

func TestBuildToolParams_EmptyListProducesEmptySlice(t *testing.T) {
	params, err := buildToolParams(nil)
	require.NoError(t, err)
	assert.Empty(t, params)
}

func TestToolCallsOf_ExtractsFromFirstChoice(t *testing.T) {
	resp := &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{
				Message: openai.ChatCompletionMessage{
					Content: "",
					ToolCalls: []openai.ChatCompletionMessageToolCall{
						{
							ID: "call_1",
							Function: openai.ChatCompletionMessageToolCallFunction{
								Name:      "resolve_exchange",
								Arguments: `{"text":"CME"}`,
							},
						},
					},
				},
			},
		},
	}

	calls := ToolCallsOf(resp)
	require.Len(t, calls, 1)
	assert.Equal(t, "call_1", calls[0].ID)
	assert.Equal(t, "resolve_exchange", calls[0].Name)
	assert.Equal(t, `{"text":"CME"}`, calls[0].Arguments)
}

func TestToolCallsOf_NilOrEmptyResponse(t *testing.T) {
	assert.Nil(t, ToolCallsOf(nil))
	assert.Nil(t, ToolCallsOf(&openai.ChatCompletion{}))
}

func TestAssistantTextOf(t *testing.T) {
	resp := &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: "the desk's PnL was $42k"}},
		},
	}
	assert.Equal(t, "the desk's PnL was $42k", AssistantTextOf(resp))
	assert.Equal(t, "", AssistantTextOf(nil))
}

func TestAppendToolResults_OneMessagePerResult(t *testing.T) {
	messages := AppendToolResults(nil, []tool.Result{
		{ID: "1", Name: "dry_run_sql", Output: `{"status":"success"}`},
		{ID: "2", Name: "execute_sql", Err: assertErr("boom")},
	})
	require.Len(t, messages, 2)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
