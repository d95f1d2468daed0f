package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/dispute-autopilot/internal/domain"
	"github.com/kursadbilgin/dispute-autopilot/internal/observability"
	"github.com/kursadbilgin/dispute-autopilot/internal/repository"
	"go.uber.org/zap"
)

const defaultFollowUpGraceWindow = 5 * time.Minute

// ScheduleRequest describes a follow-up to create.
type ScheduleRequest struct {
	DisputeID string
	Channel   domain.Channel
	When      time.Time
	Recipient string
	Content   *string
}

// FollowUpService schedules follow-ups and records their externally reported outcomes.
// Failed follow-ups are never retried here; a retry is a new Schedule call.
type FollowUpService struct {
	followUps repository.FollowUpRepository
	disputes  repository.DisputeRepository
	grace     time.Duration
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

func NewFollowUpService(
	followUps repository.FollowUpRepository,
	disputes repository.DisputeRepository,
	grace time.Duration,
	logger *zap.Logger,
) (*FollowUpService, error) {
	if followUps == nil {
		return nil, fmt.Errorf("follow-up repository is required")
	}
	if disputes == nil {
		return nil, fmt.Errorf("dispute repository is required")
	}
	if grace < 0 {
		grace = defaultFollowUpGraceWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &FollowUpService{
		followUps: followUps,
		disputes:  disputes,
		grace:     grace,
		logger:    logger,
		now:       time.Now,
	}, nil
}

func (s *FollowUpService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Schedule creates a pending follow-up for the dispute's current round.
func (s *FollowUpService) Schedule(ctx context.Context, req ScheduleRequest) (*domain.FollowUp, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	now := s.now().UTC()
	f := &domain.FollowUp{
		ID:            uuid.NewString(),
		DisputeID:     strings.TrimSpace(req.DisputeID),
		Channel:       req.Channel,
		Status:        domain.FollowUpStatusPending,
		ScheduledDate: req.When.UTC(),
		Recipient:     strings.TrimSpace(req.Recipient),
		Content:       req.Content,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if f.ScheduledDate.Before(now.Add(-s.grace)) {
		return nil, fmt.Errorf("%w: scheduled date %s is in the past", domain.ErrValidation,
			f.ScheduledDate.Format(time.RFC3339))
	}

	d, err := s.disputes.GetByID(ctx, f.DisputeID)
	if err != nil {
		return nil, err
	}
	if d.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: dispute %s is %s", domain.ErrInvalidTransition, d.ID, d.Status)
	}
	f.Round = d.Round

	if err := s.followUps.Create(ctx, f); err != nil {
		return nil, err
	}

	s.metrics.IncFollowUpTransition(f.Channel.String(), f.Status.String())
	observability.WithContextLogger(s.logger, ctx).Info("follow-up scheduled",
		zap.String("followUpId", f.ID),
		zap.String("disputeId", f.DisputeID),
		zap.Int("round", f.Round),
		zap.String("channel", f.Channel.String()),
		zap.Time("scheduledDate", f.ScheduledDate),
	)
	return f, nil
}

func (s *FollowUpService) Get(ctx context.Context, id string) (*domain.FollowUp, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: follow-up id is required", domain.ErrValidation)
	}
	return s.followUps.GetByID(ctx, id)
}

func (s *FollowUpService) ListByDispute(ctx context.Context, disputeID string) ([]domain.FollowUp, error) {
	disputeID = strings.TrimSpace(disputeID)
	if disputeID == "" {
		return nil, fmt.Errorf("%w: dispute id is required", domain.ErrValidation)
	}
	if _, err := s.disputes.GetByID(ctx, disputeID); err != nil {
		return nil, err
	}
	return s.followUps.ListByDispute(ctx, disputeID)
}

// MarkSent records delivery of a pending follow-up. A zero sentAt means now.
func (s *FollowUpService) MarkSent(ctx context.Context, id string, sentAt time.Time) (*domain.FollowUp, error) {
	f, err := s.pending(ctx, id, domain.FollowUpStatusSent)
	if err != nil {
		return nil, err
	}
	if sentAt.IsZero() {
		sentAt = s.now()
	}
	sentAt = sentAt.UTC()

	if err := s.followUps.MarkSent(ctx, f.ID, sentAt); err != nil {
		return nil, err
	}
	f.Status = domain.FollowUpStatusSent
	f.SentDate = &sentAt
	return s.transitioned(ctx, f), nil
}

func (s *FollowUpService) MarkFailed(ctx context.Context, id string, reason string) (*domain.FollowUp, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: failure reason is required", domain.ErrValidation)
	}
	f, err := s.pending(ctx, id, domain.FollowUpStatusFailed)
	if err != nil {
		return nil, err
	}

	if err := s.followUps.MarkFailed(ctx, f.ID, reason, s.now().UTC()); err != nil {
		return nil, err
	}
	f.Status = domain.FollowUpStatusFailed
	f.FailureReason = &reason
	return s.transitioned(ctx, f), nil
}

func (s *FollowUpService) Cancel(ctx context.Context, id string) (*domain.FollowUp, error) {
	f, err := s.pending(ctx, id, domain.FollowUpStatusCancelled)
	if err != nil {
		return nil, err
	}

	if err := s.followUps.Cancel(ctx, f.ID, s.now().UTC()); err != nil {
		return nil, err
	}
	f.Status = domain.FollowUpStatusCancelled
	return s.transitioned(ctx, f), nil
}

// RecordResponse stores the bureau's reply to a sent follow-up. Only one response is
// recorded per follow-up.
func (s *FollowUpService) RecordResponse(
	ctx context.Context,
	id string,
	receivedAt time.Time,
	content string,
) (*domain.FollowUp, error) {
	if n := len([]rune(content)); n > domain.MaxFollowUpContent {
		return nil, fmt.Errorf("%w: response exceeds %d characters (got %d)", domain.ErrValidation, domain.MaxFollowUpContent, n)
	}
	f, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.Status != domain.FollowUpStatusSent {
		return nil, fmt.Errorf("%w: follow-up %s is %s, responses require sent", domain.ErrInvalidTransition, f.ID, f.Status)
	}
	if f.ResponseReceived {
		return nil, fmt.Errorf("%w: follow-up %s already has a response", domain.ErrInvalidTransition, f.ID)
	}
	if receivedAt.IsZero() {
		receivedAt = s.now()
	}
	receivedAt = receivedAt.UTC()

	if err := s.followUps.RecordResponse(ctx, f.ID, receivedAt, content); err != nil {
		return nil, err
	}
	f.ResponseReceived = true
	f.ResponseDate = &receivedAt
	f.ResponseContent = &content
	f.UpdatedAt = s.now().UTC()

	observability.WithContextLogger(s.logger, ctx).Info("follow-up response recorded",
		zap.String("followUpId", f.ID),
		zap.String("disputeId", f.DisputeID),
	)
	return f, nil
}

// RecordOpened marks a sent follow-up as opened by its recipient. Repeated calls keep
// the first open time.
func (s *FollowUpService) RecordOpened(ctx context.Context, id string, openedAt time.Time) (*domain.FollowUp, error) {
	f, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.Status != domain.FollowUpStatusSent {
		return nil, fmt.Errorf("%w: follow-up %s is %s, only sent follow-ups can be opened",
			domain.ErrInvalidTransition, f.ID, f.Status)
	}
	if f.OpenedAt != nil {
		return f, nil
	}
	if openedAt.IsZero() {
		openedAt = s.now()
	}
	openedAt = openedAt.UTC()

	if err := s.followUps.RecordOpened(ctx, f.ID, openedAt); err != nil {
		return nil, err
	}
	f.OpenedAt = &openedAt
	f.UpdatedAt = s.now().UTC()
	return f, nil
}

// pending loads a follow-up and checks it may move to next.
func (s *FollowUpService) pending(ctx context.Context, id string, next domain.FollowUpStatus) (*domain.FollowUp, error) {
	f, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.Status != domain.FollowUpStatusPending {
		return nil, fmt.Errorf("%w: follow-up %s is %s, cannot move to %s", domain.ErrInvalidTransition, f.ID, f.Status, next)
	}
	return f, nil
}

func (s *FollowUpService) transitioned(ctx context.Context, f *domain.FollowUp) *domain.FollowUp {
	f.UpdatedAt = s.now().UTC()
	s.metrics.IncFollowUpTransition(f.Channel.String(), f.Status.String())
	observability.WithContextLogger(s.logger, ctx).Info("follow-up status changed",
		zap.String("followUpId", f.ID),
		zap.String("disputeId", f.DisputeID),
		zap.String("status", f.Status.String()),
	)
	return f
}
