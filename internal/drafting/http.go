package drafting

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultHTTPTimeout = 30 * time.Second

type httpDraftRequest struct {
	Prompt   string `json:"prompt"`
	Template string `json:"template"`
	Bureau   string `json:"bureau"`
	ItemType string `json:"itemType"`
	Round    int    `json:"round"`
	Citation string `json:"citation"`
}

type httpDraftResponse struct {
	Text string `json:"text"`
}

// HTTPDrafter posts drafting requests to a generic JSON endpoint that answers with
// {"text": "..."}.
type HTTPDrafter struct {
	client   *resty.Client
	endpoint string
}

func NewHTTPDrafter(endpoint, apiKey string, timeout time.Duration) (*HTTPDrafter, error) {
	client := resty.New()
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	client.SetTimeout(timeout)
	if key := strings.TrimSpace(apiKey); key != "" {
		client.SetAuthToken(key)
	}
	return NewHTTPDrafterWithClient(endpoint, client)
}

func NewHTTPDrafterWithClient(endpoint string, client *resty.Client) (*HTTPDrafter, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("drafting endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid drafting endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultHTTPTimeout)
	}
	client.SetRetryCount(0)

	return &HTTPDrafter{client: client, endpoint: trimmed}, nil
}

func (d *HTTPDrafter) Name() string { return ProviderHTTP }

func (d *HTTPDrafter) Draft(ctx context.Context, req Request) (string, error) {
	body := httpDraftRequest{
		Prompt:   BuildPrompt(req),
		Template: req.Template,
		Bureau:   req.Facts.Bureau.String(),
		ItemType: req.Facts.ItemType,
		Round:    req.Facts.Round,
		Citation: req.Facts.Citation(),
	}

	var out httpDraftResponse
	response, err := d.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&out).
		Post(d.endpoint)
	if err != nil {
		return "", &DraftError{
			Provider:  ProviderHTTP,
			Message:   "request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}

	status := response.StatusCode()
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return "", &DraftError{
			Provider:   ProviderHTTP,
			StatusCode: status,
			Message:    statusMessage(status, strings.TrimSpace(response.String())),
			Transient:  isTransientHTTPStatus(status),
		}
	}
	return checkDraft(ProviderHTTP, out.Text)
}

func statusMessage(statusCode int, body string) string {
	base := fmt.Sprintf("endpoint returned status %d", statusCode)
	if body == "" {
		return base
	}
	if len(body) > 512 {
		body = body[:512]
	}
	return base + ": " + body
}
