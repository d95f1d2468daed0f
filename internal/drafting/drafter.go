// Package drafting refines template letter text through an external text-generation
// service.
package drafting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/dispute-autopilot/internal/domain"
	"github.com/kursadbilgin/dispute-autopilot/internal/ratelimit"
)

const (
	ProviderNone      = "none"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderHTTP      = "http"

	defaultMaxTokens = 2048
)

// Request carries the facts of a letter and the template body to refine.
type Request struct {
	Facts    domain.LetterFacts
	Template string
}

// Drafter turns a template letter into final prose. An empty draft is reported as
// ErrEmptyDraft, never as an empty string with a nil error.
type Drafter interface {
	Draft(ctx context.Context, req Request) (string, error)
	Name() string
}

// Options selects and configures a drafting backend.
type Options struct {
	Provider string
	APIKey   string
	Model    string
	Endpoint string
	Timeout  time.Duration
}

// New builds the configured drafter, throttled through limiter when one is given.
// The "none" provider returns a nil Drafter: letters then use the template as is.
func New(opts Options, limiter ratelimit.RateLimiter) (Drafter, error) {
	var (
		d   Drafter
		err error
	)

	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case "", ProviderNone:
		return nil, nil
	case ProviderOpenAI:
		d, err = NewOpenAIDrafter(opts.APIKey, opts.Model, "")
	case ProviderAnthropic:
		d, err = NewAnthropicDrafter(opts.APIKey, opts.Model, "")
	case ProviderHTTP:
		d, err = NewHTTPDrafter(opts.Endpoint, opts.APIKey, opts.Timeout)
	default:
		return nil, fmt.Errorf("unsupported drafting provider %q", opts.Provider)
	}
	if err != nil {
		return nil, err
	}

	if limiter != nil {
		d = NewThrottled(d, limiter)
	}
	return d, nil
}

// Throttled waits for rate-limit capacity before each call to the wrapped drafter.
type Throttled struct {
	next    Drafter
	limiter ratelimit.RateLimiter
}

func NewThrottled(next Drafter, limiter ratelimit.RateLimiter) *Throttled {
	return &Throttled{next: next, limiter: limiter}
}

func (t *Throttled) Name() string { return t.next.Name() }

func (t *Throttled) Draft(ctx context.Context, req Request) (string, error) {
	if err := t.limiter.Wait(ctx, "drafting:"+t.next.Name()); err != nil {
		return "", &DraftError{Provider: t.next.Name(), Message: "rate limit wait aborted", Transient: true, Cause: err}
	}
	return t.next.Draft(ctx, req)
}

func checkDraft(provider string, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &DraftError{Provider: provider, Message: "empty draft", Cause: ErrEmptyDraft}
	}
	return text, nil
}
