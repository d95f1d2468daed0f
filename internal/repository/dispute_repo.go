package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/dispute-autopilot/internal/domain"
	"gorm.io/gorm"
)

type DisputeRepository interface {
	Create(ctx context.Context, d *domain.Dispute) error
	GetByID(ctx context.Context, id string) (*domain.Dispute, error)
	FindOpenByItem(ctx context.Context, clientID string, item domain.NegativeItem) (*domain.Dispute, error)
	LatestByClient(ctx context.Context, clientID string) (*domain.Dispute, error)
	StalestInProgressByClient(ctx context.Context, clientID string) (*domain.Dispute, error)
	ListByClient(ctx context.Context, clientID string) ([]domain.Dispute, error)
	TransitionStatus(ctx context.Context, id string, expectedVersion int, from, to domain.DisputeStatus, at time.Time) error
	SetLetterArtifact(ctx context.Context, id string, expectedVersion int, ref string, at time.Time) error
	AdvanceRound(ctx context.Context, id string, expectedRound int, ref string, at time.Time) error
}

type GormDisputeRepo struct {
	db *gorm.DB
}

func NewGormDisputeRepo(db *gorm.DB) *GormDisputeRepo {
	return &GormDisputeRepo{db: db}
}

func (r *GormDisputeRepo) Create(ctx context.Context, d *domain.Dispute) error {
	model := disputeModelFromDomain(d)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if d != nil {
		*d = *disputeModelToDomain(model)
	}
	return nil
}

func (r *GormDisputeRepo) GetByID(ctx context.Context, id string) (*domain.Dispute, error) {
	var model DisputeModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return disputeModelToDomain(&model), nil
}

// FindOpenByItem returns the non-terminal dispute for the same negative item, if any.
func (r *GormDisputeRepo) FindOpenByItem(ctx context.Context, clientID string, item domain.NegativeItem) (*domain.Dispute, error) {
	var model DisputeModel
	err := r.db.WithContext(ctx).
		Where("client_id = ? AND bureau = ? AND item_type = ? AND account_ref = ?",
			clientID, item.Bureau, item.ItemType, item.AccountRef).
		Where("status NOT IN ?", domain.TerminalDisputeStatuses()).
		Order("created_at DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return disputeModelToDomain(&model), nil
}

func (r *GormDisputeRepo) LatestByClient(ctx context.Context, clientID string) (*domain.Dispute, error) {
	var model DisputeModel
	err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("created_at DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return disputeModelToDomain(&model), nil
}

// StalestInProgressByClient returns the client's in-progress dispute whose current
// round started earliest.
func (r *GormDisputeRepo) StalestInProgressByClient(ctx context.Context, clientID string) (*domain.Dispute, error) {
	var model DisputeModel
	err := r.db.WithContext(ctx).
		Where("client_id = ? AND status = ?", clientID, domain.DisputeStatusInProgress).
		Order("round_started_at ASC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return disputeModelToDomain(&model), nil
}

func (r *GormDisputeRepo) ListByClient(ctx context.Context, clientID string) ([]domain.Dispute, error) {
	var models []DisputeModel
	err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	disputes := make([]domain.Dispute, 0, len(models))
	for i := range models {
		disputes = append(disputes, *disputeModelToDomain(&models[i]))
	}
	return disputes, nil
}

// TransitionStatus moves a dispute from one status to another, conditional on the
// previously read version. Terminal targets also stamp resolved_at.
func (r *GormDisputeRepo) TransitionStatus(
	ctx context.Context,
	id string,
	expectedVersion int,
	from, to domain.DisputeStatus,
	at time.Time,
) error {
	updates := map[string]any{
		"status":     to,
		"version":    gorm.Expr("version + 1"),
		"updated_at": at,
	}
	if to.IsTerminal() {
		updates["resolved_at"] = at
	}

	result := r.db.WithContext(ctx).
		Model(&DisputeModel{}).
		Where("id = ? AND version = ? AND status = ?", id, expectedVersion, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

// SetLetterArtifact links a stored letter to an open dispute, conditional on version.
func (r *GormDisputeRepo) SetLetterArtifact(ctx context.Context, id string, expectedVersion int, ref string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&DisputeModel{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Where("status NOT IN ?", domain.TerminalDisputeStatuses()).
		Updates(map[string]any{
			"letter_artifact_ref": ref,
			"version":             gorm.Expr("version + 1"),
			"updated_at":          at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

// AdvanceRound increments the round of an in-progress dispute and links the new
// round's letter in one statement. The update only applies while the stored round
// still equals expectedRound, so a concurrent advancement makes it fail with ErrConflict.
func (r *GormDisputeRepo) AdvanceRound(ctx context.Context, id string, expectedRound int, ref string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&DisputeModel{}).
		Where("id = ? AND round = ? AND status = ?", id, expectedRound, domain.DisputeStatusInProgress).
		Updates(map[string]any{
			"round":               gorm.Expr("round + 1"),
			"letter_artifact_ref": ref,
			"round_started_at":    at,
			"version":             gorm.Expr("version + 1"),
			"updated_at":          at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}
