package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/dispute-autopilot/internal/domain"
	"github.com/kursadbilgin/dispute-autopilot/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultLogListLimit = 100
	maxLogListLimit     = 1000
)

// AutomationService exposes the global pause switch and the automation audit log.
type AutomationService struct {
	settings repository.SettingsRepository
	logs     repository.AutomationLogRepository
	logger   *zap.Logger
}

func NewAutomationService(
	settings repository.SettingsRepository,
	logs repository.AutomationLogRepository,
	logger *zap.Logger,
) (*AutomationService, error) {
	if settings == nil {
		return nil, fmt.Errorf("settings repository is required")
	}
	if logs == nil {
		return nil, fmt.Errorf("automation log repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AutomationService{settings: settings, logs: logs, logger: logger}, nil
}

func (s *AutomationService) Settings(ctx context.Context) (*domain.AutomationSettings, error) {
	return s.settings.Get(ctx)
}

// SetPaused flips the pause flag. Sweeps pick it up at their next checkpoint.
func (s *AutomationService) SetPaused(ctx context.Context, paused bool, updatedBy string) (*domain.AutomationSettings, error) {
	updatedBy = strings.TrimSpace(updatedBy)
	if updatedBy == "" {
		return nil, fmt.Errorf("%w: updatedBy is required", domain.ErrValidation)
	}

	settings, err := s.settings.Update(ctx, paused, updatedBy)
	if err != nil {
		return nil, err
	}

	s.logger.Info("automation settings updated",
		zap.Bool("paused", settings.Paused),
		zap.String("updatedBy", settings.UpdatedBy),
	)
	return settings, nil
}

func (s *AutomationService) Logs(ctx context.Context, params repository.LogListParams) ([]domain.AutomationLogEntry, error) {
	if params.Limit <= 0 {
		params.Limit = defaultLogListLimit
	}
	if params.Limit > maxLogListLimit {
		params.Limit = maxLogListLimit
	}
	return s.logs.List(ctx, params)
}
