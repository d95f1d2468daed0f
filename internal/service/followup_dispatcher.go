package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/dispute-autopilot/internal/domain"
	"github.com/kursadbilgin/dispute-autopilot/internal/observability"
	"github.com/kursadbilgin/dispute-autopilot/internal/queue"
	"github.com/kursadbilgin/dispute-autopilot/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultDispatchInterval = 30 * time.Second
	defaultDispatchLimit    = 100
)

// FollowUpDispatcher periodically hands due follow-ups to the delivery queues.
type FollowUpDispatcher struct {
	followUps repository.FollowUpRepository
	settings  repository.SettingsRepository
	publisher queue.Publisher
	logger    *zap.Logger
	metrics   *observability.Metrics
	interval  time.Duration
	limit     int
	now       func() time.Time
}

// NewFollowUpDispatcher builds the dispatcher. settings may be nil to ignore the pause flag.
func NewFollowUpDispatcher(
	followUps repository.FollowUpRepository,
	settings repository.SettingsRepository,
	publisher queue.Publisher,
	interval time.Duration,
	limit int,
	logger *zap.Logger,
) (*FollowUpDispatcher, error) {
	if followUps == nil {
		return nil, fmt.Errorf("follow-up repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if interval <= 0 {
		interval = defaultDispatchInterval
	}
	if limit <= 0 {
		limit = defaultDispatchLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &FollowUpDispatcher{
		followUps: followUps,
		settings:  settings,
		publisher: publisher,
		logger:    logger,
		interval:  interval,
		limit:     limit,
		now:       time.Now,
	}, nil
}

func (s *FollowUpDispatcher) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

func (s *FollowUpDispatcher) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Already-due follow-ups should not wait for the first ticker edge.
	if _, err := s.scanDue(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("follow-up dispatcher initial scan failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.scanDue(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("follow-up dispatcher scan failed", zap.Error(err))
			}
		}
	}
}

// scanDue publishes due follow-ups and reports how many were marked dispatched.
func (s *FollowUpDispatcher) scanDue(ctx context.Context) (int, error) {
	if s.settings != nil {
		settings, err := s.settings.Get(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to read automation settings: %w", err)
		}
		if settings.Paused {
			return 0, nil
		}
	}

	due, err := s.followUps.GetDueForDispatch(ctx, s.now().UTC(), s.limit)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch due follow-ups: %w", err)
	}

	dispatched := 0
	for i := range due {
		f := due[i]
		msg := queue.FollowUpMessage{
			FollowUpID:    f.ID,
			DisputeID:     f.DisputeID,
			Round:         f.Round,
			Channel:       f.Channel,
			Recipient:     f.Recipient,
			Content:       f.Content,
			ScheduledDate: f.ScheduledDate,
		}

		queueName := queue.FollowUpQueueName(f.Channel)
		if err := s.publisher.Publish(ctx, queueName, msg); err != nil {
			s.logger.Error("failed to enqueue due follow-up",
				zap.String("followUpId", f.ID),
				zap.String("queue", queueName),
				zap.Error(err),
			)
			continue
		}

		if err := s.followUps.MarkDispatched(ctx, f.ID, s.now().UTC()); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				s.logger.Info("follow-up changed before dispatch mark",
					zap.String("followUpId", f.ID),
				)
				continue
			}
			s.logger.Error("failed to mark follow-up as dispatched",
				zap.String("followUpId", f.ID),
				zap.Error(err),
			)
			continue
		}
		dispatched++
		s.metrics.IncFollowUpTransition(f.Channel.String(), "dispatched")
	}

	return dispatched, nil
}
