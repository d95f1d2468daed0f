package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/dispute-autopilot/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const settingsRowID = 1

type LogListParams struct {
	Action *domain.LogAction
	Since  *time.Time
	Limit  int
}

type AutomationLogRepository interface {
	Append(ctx context.Context, entry *domain.AutomationLogEntry) error
	CountSince(ctx context.Context, action domain.LogAction, since time.Time) (int64, error)
	List(ctx context.Context, params LogListParams) ([]domain.AutomationLogEntry, error)
}

type SettingsRepository interface {
	Get(ctx context.Context) (*domain.AutomationSettings, error)
	Update(ctx context.Context, paused bool, updatedBy string) (*domain.AutomationSettings, error)
}

type GormAutomationLogRepo struct {
	db *gorm.DB
}

func NewGormAutomationLogRepo(db *gorm.DB) *GormAutomationLogRepo {
	return &GormAutomationLogRepo{db: db}
}

func (r *GormAutomationLogRepo) Append(ctx context.Context, entry *domain.AutomationLogEntry) error {
	model, err := automationLogModelFromDomain(entry)
	if err != nil {
		return err
	}
	if model == nil {
		return nil
	}
	return r.db.WithContext(ctx).Create(model).Error
}

func (r *GormAutomationLogRepo) CountSince(ctx context.Context, action domain.LogAction, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&AutomationLogModel{}).
		Where("action = ? AND timestamp >= ?", action, since).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *GormAutomationLogRepo) List(ctx context.Context, params LogListParams) ([]domain.AutomationLogEntry, error) {
	query := r.db.WithContext(ctx).Model(&AutomationLogModel{})
	if params.Action != nil {
		query = query.Where("action = ?", *params.Action)
	}
	if params.Since != nil {
		query = query.Where("timestamp >= ?", *params.Since)
	}

	limit := params.Limit
	if limit < 1 {
		limit = 100
	}
	limit = min(limit, 500)

	var models []AutomationLogModel
	if err := query.Order("timestamp DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}

	entries := make([]domain.AutomationLogEntry, 0, len(models))
	for i := range models {
		entries = append(entries, *automationLogModelToDomain(&models[i]))
	}
	return entries, nil
}

type GormSettingsRepo struct {
	db *gorm.DB
}

func NewGormSettingsRepo(db *gorm.DB) *GormSettingsRepo {
	return &GormSettingsRepo{db: db}
}

// Get reads the settings row. A missing row means automation has never been paused.
func (r *GormSettingsRepo) Get(ctx context.Context) (*domain.AutomationSettings, error) {
	var model AutomationSettingsModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", settingsRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.AutomationSettings{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &domain.AutomationSettings{
		Paused:    model.Paused,
		UpdatedBy: model.UpdatedBy,
		UpdatedAt: model.UpdatedAt,
	}, nil
}

func (r *GormSettingsRepo) Update(ctx context.Context, paused bool, updatedBy string) (*domain.AutomationSettings, error) {
	model := AutomationSettingsModel{
		ID:        settingsRowID,
		Paused:    paused,
		UpdatedBy: updatedBy,
		UpdatedAt: time.Now().UTC(),
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"paused", "updated_by", "updated_at"}),
		}).
		Create(&model).Error
	if err != nil {
		return nil, err
	}
	return &domain.AutomationSettings{
		Paused:    model.Paused,
		UpdatedBy: model.UpdatedBy,
		UpdatedAt: model.UpdatedAt,
	}, nil
}
