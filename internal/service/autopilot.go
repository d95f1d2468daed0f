package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/dispute-autopilot/internal/domain"
	"github.com/kursadbilgin/dispute-autopilot/internal/observability"
	"github.com/kursadbilgin/dispute-autopilot/internal/queue"
	"github.com/kursadbilgin/dispute-autopilot/internal/ratelimit"
	"github.com/kursadbilgin/dispute-autopilot/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultAutopilotInterval    = 6 * time.Hour
	defaultAutopilotConcurrency = 8
	defaultSequencingDays       = 7
	defaultPriorityDays         = 14

	autopilotSweepLock   = "autopilot:sweep"
	defaultSweepLockTTL  = 2 * time.Hour
	dailyReportLockTTL   = 48 * time.Hour
	dailyReportLockGroup = "autopilot:daily-report:"
	reportWindow         = 24 * time.Hour
)

type AutopilotConfig struct {
	Interval       time.Duration
	Concurrency    int
	SequencingDays int
	PriorityDays   int
	ReportLocation *time.Location
	// SweepLockTTL bounds how long a crashed instance can block other sweeps. It
	// should exceed the longest expected sweep.
	SweepLockTTL time.Duration
}

// SweepResult summarizes one autopilot sweep.
type SweepResult struct {
	SweepID    string
	Paused     bool
	Locked     bool
	Clients    int
	Sequenced  int
	Flagged    int
	Errors     int
	ReportSent bool
}

// Autopilot signals due letters and flags stale clients on a fixed interval. It never
// composes letters itself, so a sweep is safe to re-run.
type Autopilot struct {
	clients   repository.ClientRepository
	disputes  repository.DisputeRepository
	logs      repository.AutomationLogRepository
	settings  repository.SettingsRepository
	locker    ratelimit.Locker
	publisher queue.Publisher
	cfg       AutopilotConfig
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

// NewAutopilot builds the orchestrator. locker and publisher are optional: without a
// locker the daily report watermark falls back to the automation log.
func NewAutopilot(
	clients repository.ClientRepository,
	disputes repository.DisputeRepository,
	logs repository.AutomationLogRepository,
	settings repository.SettingsRepository,
	locker ratelimit.Locker,
	publisher queue.Publisher,
	cfg AutopilotConfig,
	logger *zap.Logger,
) (*Autopilot, error) {
	if clients == nil || disputes == nil || logs == nil || settings == nil {
		return nil, fmt.Errorf("client, dispute, automation log and settings repositories are required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultAutopilotInterval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultAutopilotConcurrency
	}
	if cfg.SequencingDays <= 0 {
		cfg.SequencingDays = defaultSequencingDays
	}
	if cfg.PriorityDays <= 0 {
		cfg.PriorityDays = defaultPriorityDays
	}
	if cfg.SweepLockTTL <= 0 {
		cfg.SweepLockTTL = defaultSweepLockTTL
	}
	if cfg.ReportLocation == nil {
		cfg.ReportLocation = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Autopilot{
		clients:   clients,
		disputes:  disputes,
		logs:      logs,
		settings:  settings,
		locker:    locker,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}, nil
}

func (a *Autopilot) SetMetrics(metrics *observability.Metrics) {
	if a == nil {
		return
	}
	a.metrics = metrics
}

func (a *Autopilot) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := a.RunSweep(ctx); err != nil && ctx.Err() == nil {
		a.logger.Error("autopilot initial sweep failed", zap.Error(err))
	}

	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := a.RunSweep(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				a.logger.Error("autopilot sweep failed", zap.Error(err))
			}
		}
	}
}

// RunSweep processes every client once. Per-client failures are written to the
// automation log and never returned. A paused system produces no entries at all.
func (a *Autopilot) RunSweep(ctx context.Context) (*SweepResult, error) {
	start := a.now()
	result := &SweepResult{SweepID: uuid.NewString()}
	ctx = observability.WithSweepID(ctx, result.SweepID)
	logger := observability.WithContextLogger(a.logger, ctx)

	outcome := "error"
	defer func() { a.metrics.ObserveSweep("autopilot", outcome, a.now().Sub(start)) }()

	if a.locker != nil {
		acquired, err := a.locker.TryAcquire(ctx, autopilotSweepLock, a.cfg.SweepLockTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire autopilot sweep lock: %w", err)
		}
		if !acquired {
			logger.Info("autopilot sweep already running elsewhere, skipping")
			result.Locked = true
			outcome = "locked"
			return result, nil
		}
		defer func() {
			if err := a.locker.Release(context.WithoutCancel(ctx), autopilotSweepLock); err != nil {
				logger.Warn("failed to release autopilot sweep lock", zap.Error(err))
			}
		}()
	}

	paused, err := a.paused(ctx)
	if err != nil {
		return nil, err
	}
	if paused {
		logger.Info("automation paused, skipping autopilot sweep")
		result.Paused = true
		outcome = "paused"
		return result, nil
	}

	clientIDs, err := a.clients.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	result.Clients = len(clientIDs)

	var (
		sequenced, flagged, failed atomic.Int64
		pausedMidSweep             atomic.Bool
		g                          errgroup.Group
	)
	g.SetLimit(a.cfg.Concurrency)

	for _, clientID := range clientIDs {
		if ctx.Err() != nil || pausedMidSweep.Load() {
			break
		}
		clientID := clientID
		g.Go(func() error {
			if pausedMidSweep.Load() || ctx.Err() != nil {
				return nil
			}
			// The pause flag is re-read before every client.
			stop, err := a.paused(ctx)
			if stop {
				pausedMidSweep.Store(true)
				return nil
			}
			if err != nil {
				err = &domain.AutomationError{ClientID: clientID, Step: "pause_check", Cause: err}
			} else {
				var seq, flag bool
				seq, flag, err = a.processClient(ctx, clientID)
				if seq {
					sequenced.Add(1)
				}
				if flag {
					flagged.Add(1)
				}
			}
			if err != nil {
				failed.Add(1)
				a.recordError(ctx, clientID, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	result.Sequenced = int(sequenced.Load())
	result.Flagged = int(flagged.Load())
	result.Errors = int(failed.Load())

	if pausedMidSweep.Load() {
		logger.Info("automation paused during autopilot sweep, stopping")
		result.Paused = true
		outcome = "paused"
		return result, nil
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	sent, err := a.maybeSendDailyReport(ctx)
	if err != nil {
		logger.Error("failed to send daily automation report", zap.Error(err))
	}
	result.ReportSent = sent

	outcome = "success"
	logger.Info("autopilot sweep finished",
		zap.Int("clients", result.Clients),
		zap.Int("sequenced", result.Sequenced),
		zap.Int("flagged", result.Flagged),
		zap.Int("errors", result.Errors),
		zap.Bool("reportSent", result.ReportSent),
	)
	return result, nil
}

func (a *Autopilot) paused(ctx context.Context) (bool, error) {
	settings, err := a.settings.Get(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read automation settings: %w", err)
	}
	return settings.Paused, nil
}

// processClient runs sequencing and priority flagging for one client. A panic is
// turned into an AutomationError so the rest of the sweep continues.
func (a *Autopilot) processClient(ctx context.Context, clientID string) (sequenced, flagged bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &domain.AutomationError{ClientID: clientID, Step: "panic", Cause: fmt.Errorf("%v", r)}
		}
	}()

	now := a.now().UTC()
	latest, err := a.disputes.LatestByClient(ctx, clientID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return false, false, &domain.AutomationError{ClientID: clientID, Step: "load_latest_dispute", Cause: err}
	}
	if errors.Is(err, domain.ErrNotFound) {
		latest = nil
	}

	var days *int
	details := map[string]any{}
	if latest != nil {
		gap := int(now.Sub(latest.CreatedAt).Hours() / 24)
		days = &gap
		details["daysSinceLastDispute"] = gap
		details["latestDisputeId"] = latest.ID
	} else {
		details["daysSinceLastDispute"] = nil
	}

	if days == nil || *days >= a.cfg.SequencingDays {
		entry := a.entry(ctx, domain.LogActionSequencing, clientID, now, withThreshold(details, a.cfg.SequencingDays))
		if err := a.append(ctx, entry); err != nil {
			return false, false, &domain.AutomationError{ClientID: clientID, Step: "sequencing", Cause: err}
		}
		sequenced = true
		a.publishSequencing(ctx, entry, days)
	}

	if days == nil || *days >= a.cfg.PriorityDays {
		entry := a.entry(ctx, domain.LogActionPriorityFlag, clientID, now, withThreshold(details, a.cfg.PriorityDays))
		if err := a.append(ctx, entry); err != nil {
			return sequenced, false, &domain.AutomationError{ClientID: clientID, Step: "priority_flag", Cause: err}
		}
		flagged = true
	}

	return sequenced, flagged, nil
}

func (a *Autopilot) publishSequencing(ctx context.Context, entry *domain.AutomationLogEntry, days *int) {
	if a.publisher == nil {
		return
	}
	sweepID, _ := observability.SweepIDFromContext(ctx)
	msg := queue.SequencingMessage{
		EntryID:       entry.ID,
		ClientID:      *entry.ClientID,
		SweepID:       sweepID,
		DaysSinceLast: days,
		SignaledAt:    entry.Timestamp,
	}
	if err := a.publisher.Publish(ctx, queue.SequencingQueue, msg); err != nil {
		observability.WithContextLogger(a.logger, ctx).Warn("failed to publish sequencing signal",
			zap.String("clientId", msg.ClientID),
			zap.String("entryId", msg.EntryID),
			zap.Error(err),
		)
	}
}

func (a *Autopilot) recordError(ctx context.Context, clientID string, err error) {
	step := ""
	var automationErr *domain.AutomationError
	if errors.As(err, &automationErr) {
		step = automationErr.Step
	}

	details := map[string]any{"message": err.Error()}
	if step != "" {
		details["step"] = step
	}

	logger := observability.WithContextLogger(a.logger, ctx)
	logger.Error("autopilot client processing failed", zap.String("clientId", clientID), zap.Error(err))

	entry := a.entry(ctx, domain.LogActionError, clientID, a.now().UTC(), details)
	if appendErr := a.append(ctx, entry); appendErr != nil {
		logger.Error("failed to record automation error entry",
			zap.String("clientId", clientID),
			zap.Error(appendErr),
		)
	}
}

// maybeSendDailyReport writes at most one admin report per calendar day in the
// configured zone. The day's watermark is claimed before writing and released if the
// write fails so a later sweep can retry.
func (a *Autopilot) maybeSendDailyReport(ctx context.Context) (bool, error) {
	now := a.now()
	local := now.In(a.cfg.ReportLocation)
	day := local.Format("2006-01-02")

	if a.locker != nil {
		claimed, err := a.locker.TryAcquire(ctx, dailyReportLockGroup+day, dailyReportLockTTL)
		if err != nil {
			return false, fmt.Errorf("failed to claim daily report watermark: %w", err)
		}
		if !claimed {
			return false, nil
		}
	} else {
		startOfDay := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, a.cfg.ReportLocation)
		sent, err := a.logs.CountSince(ctx, domain.LogActionAdminReportSent, startOfDay.UTC())
		if err != nil {
			return false, fmt.Errorf("failed to check daily report watermark: %w", err)
		}
		if sent > 0 {
			return false, nil
		}
	}

	if err := a.writeDailyReport(ctx, now.UTC(), day); err != nil {
		if a.locker != nil {
			if releaseErr := a.locker.Release(context.WithoutCancel(ctx), dailyReportLockGroup+day); releaseErr != nil {
				a.logger.Warn("failed to release daily report watermark", zap.String("day", day), zap.Error(releaseErr))
			}
		}
		return false, err
	}
	return true, nil
}

func (a *Autopilot) writeDailyReport(ctx context.Context, now time.Time, day string) error {
	count, err := a.logs.CountSince(ctx, domain.LogActionPriorityFlag, now.Add(-reportWindow))
	if err != nil {
		return fmt.Errorf("failed to count priority flags: %w", err)
	}

	entry := a.entry(ctx, domain.LogActionAdminReportSent, "", now, map[string]any{
		"reportDate":           day,
		"priorityFlagsLast24h": count,
	})
	if err := a.append(ctx, entry); err != nil {
		return fmt.Errorf("failed to write daily report entry: %w", err)
	}

	observability.WithContextLogger(a.logger, ctx).Info("daily automation report sent",
		zap.String("reportDate", day),
		zap.Int64("priorityFlags", count),
	)
	return nil
}

func (a *Autopilot) entry(
	ctx context.Context,
	action domain.LogAction,
	clientID string,
	at time.Time,
	details map[string]any,
) *domain.AutomationLogEntry {
	entry := &domain.AutomationLogEntry{
		ID:        uuid.NewString(),
		Action:    action,
		Timestamp: at,
		Details:   details,
	}
	if clientID != "" {
		entry.ClientID = &clientID
	}
	if sweepID, ok := observability.SweepIDFromContext(ctx); ok {
		if entry.Details == nil {
			entry.Details = map[string]any{}
		}
		entry.Details["sweepId"] = sweepID
	}
	return entry
}

func (a *Autopilot) append(ctx context.Context, entry *domain.AutomationLogEntry) error {
	if err := a.logs.Append(ctx, entry); err != nil {
		return err
	}
	a.metrics.IncAutomationEntry(entry.Action.String())
	return nil
}

func withThreshold(details map[string]any, threshold int) map[string]any {
	out := make(map[string]any, len(details)+1)
	for k, v := range details {
		out[k] = v
	}
	out["thresholdDays"] = threshold
	return out
}
