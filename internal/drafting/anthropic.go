package drafting

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-3-5-sonnet-20241022"

type AnthropicDrafter struct {
	client *anthropic.Client
	model  string
}

func NewAnthropicDrafter(apiKey, model, baseURL string) (*AnthropicDrafter, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("anthropic api key is required")
	}

	// Retries are left to the caller's timeout budget.
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if strings.TrimSpace(model) == "" {
		model = defaultAnthropicModel
	}

	return &AnthropicDrafter{
		client: anthropic.NewClient(opts...),
		model:  model,
	}, nil
}

func (d *AnthropicDrafter) Name() string { return ProviderAnthropic }

func (d *AnthropicDrafter) Draft(ctx context.Context, req Request) (string, error) {
	messages := []anthropic.MessageParam{
		{
			Role: anthropic.F(anthropic.MessageParamRole("user")),
			Content: anthropic.F([]anthropic.ContentBlockParamUnion{
				anthropic.TextBlockParam{
					Type: anthropic.F(anthropic.TextBlockParamTypeText),
					Text: anthropic.F(BuildPrompt(req)),
				},
			}),
		},
	}

	resp, err := d.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.F(d.model),
		MaxTokens: anthropic.F(int64(defaultMaxTokens)),
		Messages:  anthropic.F(messages),
	})
	if err != nil {
		return "", classifyAnthropicError(err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			b.WriteString(block.Text)
		}
	}
	return checkDraft(ProviderAnthropic, b.String())
}

func classifyAnthropicError(err error) error {
	draftErr := &DraftError{Provider: ProviderAnthropic, Message: "messages request failed", Cause: err}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		draftErr.StatusCode = apiErr.StatusCode
		draftErr.Transient = isTransientHTTPStatus(apiErr.StatusCode)
		return draftErr
	}
	draftErr.Transient = IsTransient(err)
	return draftErr
}
