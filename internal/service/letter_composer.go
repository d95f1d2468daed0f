package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/dispute-autopilot/internal/domain"
	"github.com/kursadbilgin/dispute-autopilot/internal/drafting"
	"github.com/kursadbilgin/dispute-autopilot/internal/letter"
	"github.com/kursadbilgin/dispute-autopilot/internal/observability"
	"github.com/kursadbilgin/dispute-autopilot/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultDraftingTimeout = 30 * time.Second
	letterContentType      = "application/pdf"
)

// ObjectStore persists rendered artifacts and hands back opaque references.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
}

// RoundComposer composes and stores the letter for a given round of a dispute
// without linking it.
type RoundComposer interface {
	ComposeRound(ctx context.Context, d *domain.Dispute, round int) (string, error)
}

type LetterComposer struct {
	disputes repository.DisputeRepository
	clients  repository.ClientRepository
	store    ObjectStore
	drafter  drafting.Drafter
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *observability.Metrics
	now      func() time.Time
	suffix   func() string
}

// NewLetterComposer builds a composer. drafter may be nil, in which case letters are
// rendered from the template alone. clients may be nil, leaving the sender block empty.
func NewLetterComposer(
	disputes repository.DisputeRepository,
	clients repository.ClientRepository,
	store ObjectStore,
	drafter drafting.Drafter,
	timeout time.Duration,
	logger *zap.Logger,
) (*LetterComposer, error) {
	if disputes == nil {
		return nil, fmt.Errorf("dispute repository is required")
	}
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if timeout <= 0 {
		timeout = defaultDraftingTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &LetterComposer{
		disputes: disputes,
		clients:  clients,
		store:    store,
		drafter:  drafter,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
		suffix:   func() string { return uuid.NewString()[:8] },
	}, nil
}

func (c *LetterComposer) SetMetrics(metrics *observability.Metrics) {
	if c == nil {
		return
	}
	c.metrics = metrics
}

// ArtifactKey namespaces a letter by client, dispute and round.
func ArtifactKey(clientID, disputeID string, round int, suffix string) string {
	return fmt.Sprintf("clients/%s/disputes/%s/round-%d/letter-%s.pdf", clientID, disputeID, round, suffix)
}

// Compose validates facts, drafts the letter and renders it. Nothing is stored.
func (c *LetterComposer) Compose(ctx context.Context, facts domain.LetterFacts) (*letter.Rendered, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	kind := letter.Kind(facts.Round)

	rendered, err := c.compose(ctx, facts)
	if err != nil {
		c.metrics.IncLetterComposed(kind, composeResult(err))
		return nil, err
	}
	c.metrics.IncLetterComposed(kind, "success")
	return rendered, nil
}

func (c *LetterComposer) compose(ctx context.Context, facts domain.LetterFacts) (*letter.Rendered, error) {
	if err := facts.Prepare(); err != nil {
		return nil, err
	}

	now := c.now().UTC()
	draft := letter.Build(facts, now)

	if c.drafter != nil {
		text, err := c.draft(ctx, facts, draft.BodyText())
		if err != nil {
			return nil, err
		}
		draft = draft.WithBody(text)
	}

	rendered, err := letter.Render(draft, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCompositionFailed, err)
	}
	return rendered, nil
}

// draft runs the drafter under its own deadline. No store state is held meanwhile.
func (c *LetterComposer) draft(ctx context.Context, facts domain.LetterFacts, template string) (string, error) {
	draftCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	name := c.drafter.Name()
	start := c.now()
	text, err := c.drafter.Draft(draftCtx, drafting.Request{Facts: facts, Template: template})
	c.metrics.ObserveDraftingDuration(name, c.now().Sub(start))

	switch {
	case errors.Is(err, drafting.ErrEmptyDraft):
		return "", fmt.Errorf("%w: %s returned an empty letter", domain.ErrDraftingUnavailable, name)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(draftCtx.Err(), context.DeadlineExceeded):
		return "", fmt.Errorf("%w: %s timed out after %s", domain.ErrDraftingUnavailable, name, c.timeout)
	case err != nil:
		return "", fmt.Errorf("%w: %s: %v", domain.ErrDraftingUnavailable, name, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s returned an empty letter", domain.ErrDraftingUnavailable, name)
	}
	return text, nil
}

// ComposeRound renders the letter for round and writes it to the object store,
// returning the reference. The dispute is not modified.
func (c *LetterComposer) ComposeRound(ctx context.Context, d *domain.Dispute, round int) (string, error) {
	if d == nil {
		return "", fmt.Errorf("%w: dispute is required", domain.ErrCompositionFailed)
	}

	facts := d.Facts(round)
	if err := c.fillClient(ctx, &facts); err != nil {
		return "", err
	}

	rendered, err := c.Compose(ctx, facts)
	if err != nil {
		return "", err
	}

	key := ArtifactKey(d.ClientID, d.ID, round, c.suffix())
	ref, err := c.store.Put(ctx, key, rendered.PDF, letterContentType)
	if err != nil {
		c.logger.Error("failed to store letter artifact",
			zap.String("disputeId", d.ID),
			zap.String("key", key),
			zap.Error(err),
		)
		return "", fmt.Errorf("%w: %v", domain.ErrStorageWrite, err)
	}

	observability.WithContextLogger(c.logger, ctx).Info("letter composed",
		zap.String("disputeId", d.ID),
		zap.Int("round", round),
		zap.Int("pages", rendered.Pages),
		zap.String("ref", ref),
	)
	return ref, nil
}

// ComposeLetter composes the current round's letter and links it to the dispute.
// The link is conditional on the version read before composing.
func (c *LetterComposer) ComposeLetter(ctx context.Context, disputeID string) (*domain.Dispute, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	disputeID = strings.TrimSpace(disputeID)
	if disputeID == "" {
		return nil, fmt.Errorf("%w: dispute id is required", domain.ErrValidation)
	}

	d, err := c.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if d.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: dispute %s is %s", domain.ErrInvalidTransition, d.ID, d.Status)
	}

	ref, err := c.ComposeRound(ctx, d, d.Round)
	if err != nil {
		return nil, err
	}

	now := c.now().UTC()
	if err := c.disputes.SetLetterArtifact(ctx, d.ID, d.Version, ref, now); err != nil {
		return nil, err
	}

	d.LetterArtifactRef = &ref
	d.Version++
	d.UpdatedAt = now
	return d, nil
}

// LetterArtifact returns the PDF bytes linked to a dispute.
func (c *LetterComposer) LetterArtifact(ctx context.Context, disputeID string) ([]byte, *domain.Dispute, error) {
	disputeID = strings.TrimSpace(disputeID)
	if disputeID == "" {
		return nil, nil, fmt.Errorf("%w: dispute id is required", domain.ErrValidation)
	}

	d, err := c.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return nil, nil, err
	}
	if !d.HasLetter() {
		return nil, nil, fmt.Errorf("%w: dispute %s has no letter", domain.ErrNotFound, d.ID)
	}

	data, err := c.store.Get(ctx, *d.LetterArtifactRef)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: failed to read letter artifact: %v", domain.ErrExternalService, err)
	}
	return data, d, nil
}

func (c *LetterComposer) fillClient(ctx context.Context, facts *domain.LetterFacts) error {
	if c.clients == nil || strings.TrimSpace(facts.ClientID) == "" {
		return nil
	}

	client, err := c.clients.GetByID(ctx, facts.ClientID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load client for letter: %w", err)
	}
	facts.ClientName = client.FullName
	facts.ClientAddress = client.MailingAddress
	return nil
}

func composeResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrDraftingUnavailable):
		return "drafting_unavailable"
	case errors.Is(err, domain.ErrCompositionFailed):
		return "composition_failed"
	}
	return "error"
}
