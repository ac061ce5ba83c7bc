package llmclient

import (
	"context"
	"errors"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Api wraps the raw OpenAI-compatible client, narrowed to the one call the
// controller needs. baseURL lets this point at any OpenAI-compatible
// endpoint, not only api.openai.com.
type Api struct {
	apiKey ApiKey
	client *openai.Client
}

// NewApi builds an Api against baseURL, authenticating with apiKey. The key
// is appended after opts so it wins over any conflicting key option in opts.
func NewApi(baseURL string, apiKey ApiKey, opts ...option.RequestOption) (*Api, error) {
	if apiKey == nil {
		return nil, errors.New("llmclient: apiKey is required")
	}

	options := append(opts, option.WithAPIKey(apiKey.Get()))
	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(options...)

	return &Api{apiKey: apiKey, client: &client}, nil
}

func (a *Api) ChatCompletion(ctx context.Context, req *openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	if req == nil {
		return nil, errors.New("llmclient: request parameters cannot be nil")
	}
	return a.client.Chat.Completions.New(ctx, *req, opts...)
}
