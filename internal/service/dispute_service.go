package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/dispute-autopilot/internal/domain"
	"github.com/kursadbilgin/dispute-autopilot/internal/observability"
	"github.com/kursadbilgin/dispute-autopilot/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrRoundNotDue is returned by unattended advancement when the current round is
// younger than the requested minimum age.
var ErrRoundNotDue = errors.New("current round is not due for advancement")

// DisputeService owns the dispute lifecycle. Every mutation is conditional on the
// state read just before it.
type DisputeService struct {
	disputes repository.DisputeRepository
	settings repository.SettingsRepository
	composer RoundComposer
	logger   *zap.Logger
	now      func() time.Time
}

func NewDisputeService(
	disputes repository.DisputeRepository,
	settings repository.SettingsRepository,
	composer RoundComposer,
	logger *zap.Logger,
) (*DisputeService, error) {
	if disputes == nil {
		return nil, fmt.Errorf("dispute repository is required")
	}
	if composer == nil {
		return nil, fmt.Errorf("round composer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DisputeService{
		disputes: disputes,
		settings: settings,
		composer: composer,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// CreateFromItem opens a draft dispute for a negative item. While an open dispute for
// the same client and item exists it is returned instead, with created set to false.
func (s *DisputeService) CreateFromItem(
	ctx context.Context,
	clientID string,
	item domain.NegativeItem,
) (dispute *domain.Dispute, created bool, err error) {
	if ctx == nil {
		ctx = context.Background()
	}

	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, false, fmt.Errorf("%w: client id is required", domain.ErrValidation)
	}
	item.Normalize()
	if err := item.Validate(); err != nil {
		return nil, false, err
	}

	existing, err := s.disputes.FindOpenByItem(ctx, clientID, item)
	switch {
	case err == nil:
		return existing, false, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, false, fmt.Errorf("failed to look up open dispute: %w", err)
	}

	now := s.now().UTC()
	d := &domain.Dispute{
		ID:             uuid.NewString(),
		ClientID:       clientID,
		Bureau:         item.Bureau,
		ItemType:       item.ItemType,
		AccountRef:     item.AccountRef,
		Creditor:       item.Creditor,
		Reason:         item.Reason,
		FCRACitation:   item.FCRACitation,
		OpenedDate:     item.OpenedDate,
		Round:          1,
		Status:         domain.DisputeStatusDraft,
		RoundStartedAt: now,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.disputes.Create(ctx, d); err != nil {
		if !isUniqueViolationError(err) {
			return nil, false, err
		}
		existing, findErr := s.disputes.FindOpenByItem(ctx, clientID, item)
		if findErr != nil {
			return nil, false, fmt.Errorf("failed to load existing dispute after create conflict: %w", findErr)
		}
		s.logger.Info("dispute create conflict resolved",
			zap.String("existingId", existing.ID),
			zap.String("clientId", clientID),
		)
		return existing, false, nil
	}

	s.logger.Info("dispute created",
		zap.String("disputeId", d.ID),
		zap.String("clientId", clientID),
		zap.String("bureau", d.Bureau.String()),
	)
	return d, true, nil
}

func (s *DisputeService) Get(ctx context.Context, id string) (*domain.Dispute, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: dispute id is required", domain.ErrValidation)
	}
	return s.disputes.GetByID(ctx, id)
}

func (s *DisputeService) ListByClient(ctx context.Context, clientID string) ([]domain.Dispute, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, fmt.Errorf("%w: client id is required", domain.ErrValidation)
	}
	return s.disputes.ListByClient(ctx, clientID)
}

// Submit moves a draft with a linked letter to pending.
func (s *DisputeService) Submit(ctx context.Context, id string) (*domain.Dispute, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Status == domain.DisputeStatusDraft && !d.HasLetter() {
		return nil, fmt.Errorf("%w: dispute %s has no letter to submit", domain.ErrInvalidTransition, d.ID)
	}
	return s.transition(ctx, d, domain.DisputeStatusPending)
}

// MarkInProgress records that the submitted letter reached the bureau.
func (s *DisputeService) MarkInProgress(ctx context.Context, id string) (*domain.Dispute, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, d, domain.DisputeStatusInProgress)
}

// Resolve closes an in-progress dispute with a terminal outcome.
func (s *DisputeService) Resolve(ctx context.Context, id string, outcome domain.DisputeStatus) (*domain.Dispute, error) {
	if !outcome.IsTerminal() {
		return nil, fmt.Errorf("%w: outcome must be resolved or rejected, got %q", domain.ErrValidation, outcome)
	}
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, d, outcome)
}

func (s *DisputeService) transition(ctx context.Context, d *domain.Dispute, to domain.DisputeStatus) (*domain.Dispute, error) {
	if !d.Status.CanTransition(to) {
		return nil, fmt.Errorf("%w: dispute %s cannot move from %s to %s", domain.ErrInvalidTransition, d.ID, d.Status, to)
	}

	now := s.now().UTC()
	if err := s.disputes.TransitionStatus(ctx, d.ID, d.Version, d.Status, to, now); err != nil {
		return nil, err
	}

	observability.WithContextLogger(s.logger, ctx).Info("dispute status changed",
		zap.String("disputeId", d.ID),
		zap.String("from", d.Status.String()),
		zap.String("to", to.String()),
	)

	d.Status = to
	d.Version++
	d.UpdatedAt = now
	if to.IsTerminal() {
		d.ResolvedAt = &now
	}
	return d, nil
}

// AdvanceRound composes the next round's letter and then increments the round,
// conditional on the round read before composing.
func (s *DisputeService) AdvanceRound(ctx context.Context, id string) (*domain.Dispute, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.advance(ctx, d, nil)
}

// AdvanceRoundUnattended advances on behalf of an automated sweep. Rounds younger
// than minRoundAge are skipped with ErrRoundNotDue. The pause flag is read again
// after the letter is composed and a paused system commits nothing.
func (s *DisputeService) AdvanceRoundUnattended(ctx context.Context, id string, minRoundAge time.Duration) (*domain.Dispute, error) {
	if s.settings == nil {
		return nil, fmt.Errorf("settings repository is required for unattended advancement")
	}
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Status == domain.DisputeStatusInProgress && s.now().Sub(d.RoundStartedAt) < minRoundAge {
		return nil, fmt.Errorf("%w: dispute %s round %d started %s", ErrRoundNotDue, d.ID, d.Round,
			d.RoundStartedAt.UTC().Format(time.RFC3339))
	}
	if err := s.ensureNotPaused(ctx); err != nil {
		return nil, err
	}
	return s.advance(ctx, d, s.ensureNotPaused)
}

func (s *DisputeService) advance(
	ctx context.Context,
	d *domain.Dispute,
	beforeCommit func(context.Context) error,
) (*domain.Dispute, error) {
	if d.Status != domain.DisputeStatusInProgress {
		return nil, fmt.Errorf("%w: dispute %s is %s, rounds only advance while in_progress",
			domain.ErrInvalidTransition, d.ID, d.Status)
	}

	next := d.Round + 1
	ref, err := s.composer.ComposeRound(ctx, d, next)
	if err != nil {
		return nil, err
	}

	if beforeCommit != nil {
		if err := beforeCommit(ctx); err != nil {
			observability.WithContextLogger(s.logger, ctx).Info("round advancement abandoned before commit",
				zap.String("disputeId", d.ID),
				zap.Int("round", next),
				zap.Error(err),
			)
			return nil, err
		}
	}

	now := s.now().UTC()
	if err := s.disputes.AdvanceRound(ctx, d.ID, d.Round, ref, now); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			s.logger.Warn("round advancement lost a concurrent update",
				zap.String("disputeId", d.ID),
				zap.Int("expectedRound", d.Round),
				zap.String("orphanRef", ref),
			)
		}
		return nil, err
	}

	observability.WithContextLogger(s.logger, ctx).Info("dispute round advanced",
		zap.String("disputeId", d.ID),
		zap.Int("round", next),
		zap.Bool("unattended", observability.IsUnattended(ctx)),
	)

	d.Round = next
	d.LetterArtifactRef = &ref
	d.RoundStartedAt = now
	d.Version++
	d.UpdatedAt = now
	return d, nil
}

func (s *DisputeService) ensureNotPaused(ctx context.Context) error {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to read automation settings: %w", err)
	}
	if settings.Paused {
		return domain.ErrAutomationPaused
	}
	return nil
}

func isUniqueViolationError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
