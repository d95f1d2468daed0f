package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/dispute-autopilot/internal/domain"
	"github.com/kursadbilgin/dispute-autopilot/internal/observability"
	"github.com/kursadbilgin/dispute-autopilot/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultRiskInterval       = time.Hour
	defaultInactivityAfter    = 72 * time.Hour
	defaultSupportWindow      = 7 * 24 * time.Hour
	defaultSupportMinContacts = 2
	defaultDocumentsOverdue   = 5 * 24 * time.Hour
	defaultUnopenedAfter      = 48 * time.Hour
)

// RiskPublisher fans risk signals out to downstream consumers.
type RiskPublisher interface {
	PublishRiskSignal(ctx context.Context, signal domain.RiskSignal) error
}

type RiskConfig struct {
	Interval           time.Duration
	InactivityAfter    time.Duration
	SupportWindow      time.Duration
	SupportMinContacts int
	DocumentsOverdue   time.Duration
	UnopenedAfter      time.Duration
}

// RiskSweepResult counts the signals written by one detector run per trigger.
type RiskSweepResult struct {
	SweepID string
	Paused  bool
	Signals map[domain.TriggerType]int
	Failed  []domain.TriggerType
}

type riskQuery struct {
	trigger domain.TriggerType
	run     func(ctx context.Context, now time.Time) ([]repository.ClientMatch, error)
	detail  func(m repository.ClientMatch) string
}

// RiskDetector turns behavioral read models into risk signals on its own interval.
type RiskDetector struct {
	clients   repository.ClientRepository
	signals   repository.RiskSignalRepository
	settings  repository.SettingsRepository
	publisher RiskPublisher
	cfg       RiskConfig
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

// NewRiskDetector builds the detector. publisher may be nil.
func NewRiskDetector(
	clients repository.ClientRepository,
	signals repository.RiskSignalRepository,
	settings repository.SettingsRepository,
	publisher RiskPublisher,
	cfg RiskConfig,
	logger *zap.Logger,
) (*RiskDetector, error) {
	if clients == nil || signals == nil || settings == nil {
		return nil, fmt.Errorf("client, risk signal and settings repositories are required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultRiskInterval
	}
	if cfg.InactivityAfter <= 0 {
		cfg.InactivityAfter = defaultInactivityAfter
	}
	if cfg.SupportWindow <= 0 {
		cfg.SupportWindow = defaultSupportWindow
	}
	if cfg.SupportMinContacts <= 0 {
		cfg.SupportMinContacts = defaultSupportMinContacts
	}
	if cfg.DocumentsOverdue <= 0 {
		cfg.DocumentsOverdue = defaultDocumentsOverdue
	}
	if cfg.UnopenedAfter <= 0 {
		cfg.UnopenedAfter = defaultUnopenedAfter
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RiskDetector{
		clients:   clients,
		signals:   signals,
		settings:  settings,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}, nil
}

func (d *RiskDetector) SetMetrics(metrics *observability.Metrics) {
	if d == nil {
		return
	}
	d.metrics = metrics
}

func (d *RiskDetector) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := d.RunSweep(ctx); err != nil && ctx.Err() == nil {
		d.logger.Error("risk detector initial sweep failed", zap.Error(err))
	}

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := d.RunSweep(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				d.logger.Error("risk detector sweep failed", zap.Error(err))
			}
		}
	}
}

func (d *RiskDetector) queries() []riskQuery {
	return []riskQuery{
		{
			trigger: domain.TriggerInactivity,
			run: func(ctx context.Context, now time.Time) ([]repository.ClientMatch, error) {
				return d.clients.InactiveSince(ctx, now.Add(-d.cfg.InactivityAfter))
			},
			detail: func(repository.ClientMatch) string {
				return fmt.Sprintf("no recorded activity for at least %s", d.cfg.InactivityAfter)
			},
		},
		{
			trigger: domain.TriggerSupportContact,
			run: func(ctx context.Context, now time.Time) ([]repository.ClientMatch, error) {
				return d.clients.InboundSupportContacts(ctx, now.Add(-d.cfg.SupportWindow), d.cfg.SupportMinContacts)
			},
			detail: func(m repository.ClientMatch) string {
				return fmt.Sprintf("%d inbound support messages within %s", m.Count, d.cfg.SupportWindow)
			},
		},
		{
			trigger: domain.TriggerMissingDocs,
			run: func(ctx context.Context, now time.Time) ([]repository.ClientMatch, error) {
				return d.clients.OverdueDocumentRequests(ctx, now.Add(-d.cfg.DocumentsOverdue))
			},
			detail: func(m repository.ClientMatch) string {
				return fmt.Sprintf("%d requested documents outstanding for at least %s", m.Count, d.cfg.DocumentsOverdue)
			},
		},
		{
			trigger: domain.TriggerUnopenedLetter,
			run: func(ctx context.Context, now time.Time) ([]repository.ClientMatch, error) {
				return d.clients.UnopenedLetters(ctx, now.Add(-d.cfg.UnopenedAfter))
			},
			detail: func(m repository.ClientMatch) string {
				return fmt.Sprintf("%d sent letters not opened within %s", m.Count, d.cfg.UnopenedAfter)
			},
		},
	}
}

// RunSweep runs every trigger query in parallel and writes at most one signal per
// client and trigger. A failing query is logged and does not stop the others.
func (d *RiskDetector) RunSweep(ctx context.Context) (*RiskSweepResult, error) {
	start := d.now()
	result := &RiskSweepResult{SweepID: uuid.NewString(), Signals: map[domain.TriggerType]int{}}
	ctx = observability.WithSweepID(ctx, result.SweepID)
	logger := observability.WithContextLogger(d.logger, ctx)

	outcome := "error"
	defer func() { d.metrics.ObserveSweep("risk", outcome, d.now().Sub(start)) }()

	paused, err := d.paused(ctx)
	if err != nil {
		return nil, err
	}
	if paused {
		logger.Info("automation paused, skipping risk sweep")
		result.Paused = true
		outcome = "paused"
		return result, nil
	}

	now := d.now().UTC()
	queries := d.queries()
	matches := make([][]repository.ClientMatch, len(queries))
	failures := make([]error, len(queries))

	var g errgroup.Group
	for i := range queries {
		i := i
		g.Go(func() error {
			matches[i], failures[i] = queries[i].run(ctx, now)
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]struct{})
	var signals []*domain.RiskSignal
	for i, q := range queries {
		if failures[i] != nil {
			result.Failed = append(result.Failed, q.trigger)
			logger.Error("risk trigger query failed",
				zap.String("trigger", q.trigger.String()),
				zap.Error(failures[i]),
			)
			continue
		}
		for _, m := range matches[i] {
			key := m.ClientID + "|" + q.trigger.String()
			if _, dup := seen[key]; dup || m.ClientID == "" {
				continue
			}
			seen[key] = struct{}{}
			signals = append(signals, &domain.RiskSignal{
				ID:          uuid.NewString(),
				TriggerType: q.trigger,
				ClientID:    m.ClientID,
				Detail:      q.detail(m),
				CreatedAt:   now,
			})
		}
	}

	if len(signals) == 0 {
		outcome = "success"
		return result, nil
	}

	// Queries can be slow; do not write if the system was paused meanwhile.
	if paused, err := d.paused(ctx); err != nil {
		return nil, err
	} else if paused {
		logger.Info("automation paused during risk sweep, discarding signals", zap.Int("signals", len(signals)))
		result.Paused = true
		outcome = "paused"
		return result, nil
	}

	if err := d.signals.CreateBatch(ctx, signals); err != nil {
		return nil, fmt.Errorf("failed to write risk signals: %w", err)
	}

	for _, s := range signals {
		result.Signals[s.TriggerType]++
		d.metrics.IncRiskSignal(s.TriggerType.String())
		if d.publisher == nil {
			continue
		}
		if err := d.publisher.PublishRiskSignal(ctx, *s); err != nil {
			logger.Warn("failed to publish risk signal",
				zap.String("signalId", s.ID),
				zap.String("clientId", s.ClientID),
				zap.String("trigger", s.TriggerType.String()),
				zap.Error(err),
			)
		}
	}

	outcome = "success"
	logger.Info("risk sweep finished",
		zap.Int("signals", len(signals)),
		zap.Int("failedQueries", len(result.Failed)),
	)
	return result, nil
}

func (d *RiskDetector) paused(ctx context.Context) (bool, error) {
	settings, err := d.settings.Get(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read automation settings: %w", err)
	}
	return settings.Paused, nil
}
