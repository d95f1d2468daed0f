package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/dispute-autopilot/internal/domain"
	"gorm.io/gorm"
)

type FollowUpRepository interface {
	Create(ctx context.Context, f *domain.FollowUp) error
	GetByID(ctx context.Context, id string) (*domain.FollowUp, error)
	ListByDispute(ctx context.Context, disputeID string) ([]domain.FollowUp, error)
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	MarkFailed(ctx context.Context, id string, reason string, at time.Time) error
	Cancel(ctx context.Context, id string, at time.Time) error
	RecordResponse(ctx context.Context, id string, receivedAt time.Time, content string) error
	RecordOpened(ctx context.Context, id string, openedAt time.Time) error
	GetDueForDispatch(ctx context.Context, now time.Time, limit int) ([]domain.FollowUp, error)
	MarkDispatched(ctx context.Context, id string, at time.Time) error
}

type GormFollowUpRepo struct {
	db *gorm.DB
}

func NewGormFollowUpRepo(db *gorm.DB) *GormFollowUpRepo {
	return &GormFollowUpRepo{db: db}
}

func (r *GormFollowUpRepo) Create(ctx context.Context, f *domain.FollowUp) error {
	model := followUpModelFromDomain(f)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if f != nil {
		*f = *followUpModelToDomain(model)
	}
	return nil
}

func (r *GormFollowUpRepo) GetByID(ctx context.Context, id string) (*domain.FollowUp, error) {
	var model FollowUpModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return followUpModelToDomain(&model), nil
}

func (r *GormFollowUpRepo) ListByDispute(ctx context.Context, disputeID string) ([]domain.FollowUp, error) {
	var models []FollowUpModel
	err := r.db.WithContext(ctx).
		Where("dispute_id = ?", disputeID).
		Order("round ASC, scheduled_date ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	followUps := make([]domain.FollowUp, 0, len(models))
	for i := range models {
		followUps = append(followUps, *followUpModelToDomain(&models[i]))
	}
	return followUps, nil
}

func (r *GormFollowUpRepo) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	return r.transitionFromPending(ctx, id, map[string]any{
		"status":     domain.FollowUpStatusSent,
		"sent_date":  sentAt,
		"updated_at": sentAt,
	})
}

func (r *GormFollowUpRepo) MarkFailed(ctx context.Context, id string, reason string, at time.Time) error {
	return r.transitionFromPending(ctx, id, map[string]any{
		"status":         domain.FollowUpStatusFailed,
		"failure_reason": reason,
		"updated_at":     at,
	})
}

func (r *GormFollowUpRepo) Cancel(ctx context.Context, id string, at time.Time) error {
	return r.transitionFromPending(ctx, id, map[string]any{
		"status":     domain.FollowUpStatusCancelled,
		"updated_at": at,
	})
}

func (r *GormFollowUpRepo) transitionFromPending(ctx context.Context, id string, updates map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&FollowUpModel{}).
		Where("id = ? AND status = ?", id, domain.FollowUpStatusPending).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *GormFollowUpRepo) RecordResponse(ctx context.Context, id string, receivedAt time.Time, content string) error {
	result := r.db.WithContext(ctx).
		Model(&FollowUpModel{}).
		Where("id = ? AND status = ? AND response_received = ?", id, domain.FollowUpStatusSent, false).
		Updates(map[string]any{
			"response_received": true,
			"response_date":     receivedAt,
			"response_content":  content,
			"updated_at":        time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *GormFollowUpRepo) RecordOpened(ctx context.Context, id string, openedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&FollowUpModel{}).
		Where("id = ? AND status = ? AND opened_at IS NULL", id, domain.FollowUpStatusSent).
		Updates(map[string]any{
			"opened_at":  openedAt,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

// GetDueForDispatch loads pending follow-ups whose scheduled date has passed and that
// were not yet handed to a delivery queue.
func (r *GormFollowUpRepo) GetDueForDispatch(ctx context.Context, now time.Time, limit int) ([]domain.FollowUp, error) {
	var models []FollowUpModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND dispatched_at IS NULL AND scheduled_date <= ?", domain.FollowUpStatusPending, now).
		Order("scheduled_date ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	followUps := make([]domain.FollowUp, 0, len(models))
	for i := range models {
		followUps = append(followUps, *followUpModelToDomain(&models[i]))
	}
	return followUps, nil
}

func (r *GormFollowUpRepo) MarkDispatched(ctx context.Context, id string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&FollowUpModel{}).
		Where("id = ? AND status = ? AND dispatched_at IS NULL", id, domain.FollowUpStatusPending).
		Updates(map[string]any{
			"dispatched_at": at,
			"updated_at":    at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}
