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
	"golang.org/x/sync/errgroup"
)

const minWorkerConcurrency = 1

// UnattendedAdvancer advances a dispute round on behalf of automation.
type UnattendedAdvancer interface {
	AdvanceRoundUnattended(ctx context.Context, id string, minRoundAge time.Duration) (*domain.Dispute, error)
}

// SequencingWorker consumes sequencing signals and, when auto-advance is enabled,
// advances the client's stalest in-progress dispute.
type SequencingWorker struct {
	disputes    repository.DisputeRepository
	advancer    UnattendedAdvancer
	consumer    queue.Consumer
	enabled     bool
	minRoundAge time.Duration
	concurrency int
	logger      *zap.Logger
	metrics     *observability.Metrics
}

func NewSequencingWorker(
	disputes repository.DisputeRepository,
	advancer UnattendedAdvancer,
	consumer queue.Consumer,
	enabled bool,
	minRoundAge time.Duration,
	concurrency int,
	logger *zap.Logger,
) (*SequencingWorker, error) {
	if disputes == nil || advancer == nil {
		return nil, fmt.Errorf("dispute repository and advancer are required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SequencingWorker{
		disputes:    disputes,
		advancer:    advancer,
		consumer:    consumer,
		enabled:     enabled,
		minRoundAge: minRoundAge,
		concurrency: concurrency,
		logger:      logger,
	}, nil
}

func (w *SequencingWorker) SetMetrics(metrics *observability.Metrics) {
	if w == nil {
		return
	}
	w.metrics = metrics
}

// Start consumes the sequencing queue until context cancellation.
func (w *SequencingWorker) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if w.consumer == nil {
		return fmt.Errorf("consumer is required")
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			w.logger.Info("sequencing worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queue.SequencingQueue),
			)

			err := w.consumer.Consume(groupCtx, queue.SequencingQueue, w.handle)
			if err != nil {
				w.logger.Error("sequencing worker stopped with error",
					zap.Int("workerId", workerID),
					zap.Error(err),
				)
				return err
			}

			w.logger.Info("sequencing worker stopped", zap.Int("workerId", workerID))
			return nil
		})
	}

	return g.Wait()
}

// handle processes one delivery. Returning nil acknowledges it; decode failures are
// dead-lettered and infrastructure errors are requeued.
func (w *SequencingWorker) handle(ctx context.Context, body []byte) error {
	msg, err := queue.Decode[queue.SequencingMessage](body)
	if err != nil {
		return err
	}
	if !w.enabled {
		return nil
	}

	w.metrics.IncWorkerInFlight(queue.SequencingQueue)
	defer w.metrics.DecWorkerInFlight(queue.SequencingQueue)

	sweepID := msg.SweepID
	if sweepID == "" {
		sweepID = msg.EntryID
	}
	ctx = observability.WithSweepID(ctx, sweepID)
	logger := observability.WithContextLogger(w.logger, ctx).With(zap.String("clientId", msg.ClientID))

	d, err := w.disputes.StalestInProgressByClient(ctx, msg.ClientID)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Debug("no in-progress dispute to advance")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load in-progress dispute: %w", err)
	}

	advanced, err := w.advancer.AdvanceRoundUnattended(ctx, d.ID, w.minRoundAge)
	switch {
	case err == nil:
		logger.Info("dispute advanced by autopilot",
			zap.String("disputeId", advanced.ID),
			zap.Int("round", advanced.Round),
		)
		return nil
	case errors.Is(err, domain.ErrAutomationPaused),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, ErrRoundNotDue):
		logger.Info("autopilot advancement skipped", zap.String("disputeId", d.ID), zap.Error(err))
		return nil
	case errors.Is(err, domain.ErrValidation):
		logger.Error("autopilot advancement cannot compose letter", zap.String("disputeId", d.ID), zap.Error(err))
		return nil
	}
	return fmt.Errorf("failed to advance dispute %s: %w", d.ID, err)
}
