package drafting

import (
	"context"
	"errors"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-4o-mini"

type OpenAIDrafter struct {
	client *openai.Client
	model  string
}

// NewOpenAIDrafter builds a drafter on the chat completions API. baseURL is optional
// and points the client at a compatible gateway.
func NewOpenAIDrafter(apiKey, model, baseURL string) (*OpenAIDrafter, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai api key is required")
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if strings.TrimSpace(model) == "" {
		model = defaultOpenAIModel
	}

	return &OpenAIDrafter{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

func (d *OpenAIDrafter) Name() string { return ProviderOpenAI }

func (d *OpenAIDrafter) Draft(ctx context.Context, req Request) (string, error) {
	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       d.model,
		MaxTokens:   defaultMaxTokens,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(req)},
		},
	})
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return checkDraft(ProviderOpenAI, "")
	}
	return checkDraft(ProviderOpenAI, resp.Choices[0].Message.Content)
}

func classifyOpenAIError(err error) error {
	draftErr := &DraftError{Provider: ProviderOpenAI, Cause: err}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		draftErr.StatusCode = apiErr.HTTPStatusCode
		draftErr.Transient = isTransientHTTPStatus(apiErr.HTTPStatusCode)
	case errors.As(err, &reqErr):
		draftErr.StatusCode = reqErr.HTTPStatusCode
		draftErr.Transient = isTransientHTTPStatus(reqErr.HTTPStatusCode)
	default:
		draftErr.Transient = IsTransient(err)
	}
	draftErr.Message = "chat completion failed"
	return draftErr
}
