package llmclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go/v3"

	"github.com/LuisDee/nl2sql-sub001/internal/agent/tool"
)

// Client is the controller-facing chat-completion surface: one model, one
// endpoint, tool definitions translated from the agent's tool registry on
// every call so a newly-registered tool never needs a parallel
// registration here.
type Client struct {
	api   *Api
	model string
}

// New builds a Client against baseURL/model, authenticating with apiKey.
func New(baseURL, model string, apiKey ApiKey) (*Client, error) {
	if model == "" {
		return nil, fmt.Errorf("llmclient: model is required")
	}
	api, err := NewApi(baseURL, apiKey)
	if err != nil {
		return nil, err
	}
	return &Client{api: api, model: model}, nil
}

// buildToolParams translates the agent's generalized tool.Definition into
// the provider's function-tool schema, rather than hand-maintaining a
// second copy of each tool's shape.
func buildToolParams(defs []*tool.Definition) ([]openai.ChatCompletionToolUnionParam, error) {
	params := make([]openai.ChatCompletionToolUnionParam, 0, len(defs))
	for _, d := range defs {
		raw, err := json.Marshal(d.InputSchema())
		if err != nil {
			return nil, fmt.Errorf("llmclient: marshal schema for %s: %w", d.Name(), err)
		}
		var schema map[string]any
		if err := json.Unmarshal(raw, &schema); err != nil {
			return nil, fmt.Errorf("llmclient: decode schema for %s: %w", d.Name(), err)
		}

		params = append(params, openai.ChatCompletionToolUnionParam{
			OfFunction: &openai.ChatCompletionFunctionToolParam{
				Function: openai.FunctionDefinitionParam{
					Name:        d.Name(),
					Description: openai.String(d.Description()),
					Parameters:  schema,
				},
			},
		})
	}
	return params, nil
}

// ChatCompletion issues one completion request over messages, exposing
// tools (may be empty) as callable functions.
func (c *Client) ChatCompletion(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, tools []*tool.Definition) (*openai.ChatCompletion, error) {
	toolParams, err := buildToolParams(tools)
	if err != nil {
		return nil, err
	}

	req := &openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	}
	if len(toolParams) > 0 {
		req.Tools = toolParams
	}

	return c.api.ChatCompletion(ctx, req)
}

// ToolCallsOf extracts the tool calls from resp's first choice, translated
// to the agent's generalized tool.Call shape.
func ToolCallsOf(resp *openai.ChatCompletion) []tool.Call {
	if resp == nil || len(resp.Choices) == 0 {
		return nil
	}
	raw := resp.Choices[0].Message.ToolCalls
	out := make([]tool.Call, 0, len(raw))
	for _, tc := range raw {
		out = append(out, tool.Call{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out
}

// AssistantTextOf returns the first choice's message text, or "" if none.
func AssistantTextOf(resp *openai.ChatCompletion) string {
	if resp == nil || len(resp.Choices) == 0 {
		return ""
	}
	return resp.Choices[0].Message.Content
}

// AppendAssistantMessage renders resp's first choice as a message usable in
// the next turn's request, carrying its tool calls forward so the provider
// can match subsequent tool results to them.
func AppendAssistantMessage(messages []openai.ChatCompletionMessageParamUnion, resp *openai.ChatCompletion) []openai.ChatCompletionMessageParamUnion {
	if resp == nil || len(resp.Choices) == 0 {
		return messages
	}
	msg := resp.Choices[0].Message
	assistant := openai.AssistantMessage(msg.Content)
	for _, tc := range msg.ToolCalls {
		assistant.OfAssistant.ToolCalls = append(assistant.OfAssistant.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
				ID: tc.ID,
				Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			},
		})
	}
	return append(messages, assistant)
}

// AppendToolResults renders each tool.Result as a tool message matched to
// its originating call by ID.
func AppendToolResults(messages []openai.ChatCompletionMessageParamUnion, results []tool.Result) []openai.ChatCompletionMessageParamUnion {
	for _, r := range results {
		text := r.Output
		if r.Err != nil {
			text = fmt.Sprintf("error: %v", r.Err)
		}
		messages = append(messages, openai.ToolMessage(text, r.ID))
	}
	return messages
}
