package repository

import (
	"context"

	"github.com/kursadbilgin/dispute-autopilot/internal/domain"
	"gorm.io/gorm"
)

type RiskSignalRepository interface {
	CreateBatch(ctx context.Context, signals []*domain.RiskSignal) error
	ListByClient(ctx context.Context, clientID string, limit int) ([]domain.RiskSignal, error)
}

type GormRiskSignalRepo struct {
	db *gorm.DB
}

func NewGormRiskSignalRepo(db *gorm.DB) *GormRiskSignalRepo {
	return &GormRiskSignalRepo{db: db}
}

func (r *GormRiskSignalRepo) CreateBatch(ctx context.Context, signals []*domain.RiskSignal) error {
	models := make([]RiskSignalModel, 0, len(signals))
	for _, s := range signals {
		if model := riskSignalModelFromDomain(s); model != nil {
			models = append(models, *model)
		}
	}
	if len(models) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&models, 100).Error
}

func (r *GormRiskSignalRepo) ListByClient(ctx context.Context, clientID string, limit int) ([]domain.RiskSignal, error) {
	if limit < 1 {
		limit = 50
	}

	var models []RiskSignalModel
	err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	signals := make([]domain.RiskSignal, 0, len(models))
	for i := range models {
		signals = append(signals, *riskSignalModelToDomain(&models[i]))
	}
	return signals, nil
}
