package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/dispute-autopilot/internal/domain"
	"gorm.io/gorm"
)

// ClientMatch is one client returned by a behavioral query, with the number of
// matching rows behind it.
type ClientMatch struct {
	ClientID string `gorm:"column:client_id"`
	Count    int    `gorm:"column:count"`
}

type ClientRepository interface {
	ListIDs(ctx context.Context) ([]string, error)
	GetByID(ctx context.Context, id string) (*domain.Client, error)
	InactiveSince(ctx context.Context, cutoff time.Time) ([]ClientMatch, error)
	InboundSupportContacts(ctx context.Context, since time.Time, minCount int) ([]ClientMatch, error)
	OverdueDocumentRequests(ctx context.Context, requestedBefore time.Time) ([]ClientMatch, error)
	UnopenedLetters(ctx context.Context, sentBefore time.Time) ([]ClientMatch, error)
}

type GormClientRepo struct {
	db *gorm.DB
}

func NewGormClientRepo(db *gorm.DB) *GormClientRepo {
	return &GormClientRepo{db: db}
}

func (r *GormClientRepo) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&ClientModel{}).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *GormClientRepo) GetByID(ctx context.Context, id string) (*domain.Client, error) {
	var model ClientModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return clientModelToDomain(&model), nil
}

// InactiveSince returns clients whose last activity, or signup when they have none,
// is at or before cutoff.
func (r *GormClientRepo) InactiveSince(ctx context.Context, cutoff time.Time) ([]ClientMatch, error) {
	var matches []ClientMatch
	err := r.db.WithContext(ctx).
		Model(&ClientModel{}).
		Select("id AS client_id, 1 AS count").
		Where("COALESCE(last_activity_at, created_at) <= ?", cutoff).
		Scan(&matches).Error
	if err != nil {
		return nil, err
	}
	return matches, nil
}

func (r *GormClientRepo) InboundSupportContacts(ctx context.Context, since time.Time, minCount int) ([]ClientMatch, error) {
	var matches []ClientMatch
	err := r.db.WithContext(ctx).
		Model(&SupportMessageModel{}).
		Select("client_id, COUNT(*) AS count").
		Where("direction = ? AND created_at >= ?", "inbound", since).
		Group("client_id").
		Having("COUNT(*) >= ?", minCount).
		Scan(&matches).Error
	if err != nil {
		return nil, err
	}
	return matches, nil
}

func (r *GormClientRepo) OverdueDocumentRequests(ctx context.Context, requestedBefore time.Time) ([]ClientMatch, error) {
	var matches []ClientMatch
	err := r.db.WithContext(ctx).
		Model(&DocumentRequestModel{}).
		Select("client_id, COUNT(*) AS count").
		Where("fulfilled_at IS NULL AND requested_at <= ?", requestedBefore).
		Group("client_id").
		Scan(&matches).Error
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// UnopenedLetters returns clients with letter follow-ups sent at or before sentBefore
// that were never opened.
func (r *GormClientRepo) UnopenedLetters(ctx context.Context, sentBefore time.Time) ([]ClientMatch, error) {
	var matches []ClientMatch
	err := r.db.WithContext(ctx).
		Table("follow_ups AS f").
		Select("d.client_id AS client_id, COUNT(*) AS count").
		Joins("JOIN disputes AS d ON d.id = f.dispute_id").
		Where("f.channel = ? AND f.status = ? AND f.opened_at IS NULL AND f.sent_date <= ?",
			domain.ChannelLetter, domain.FollowUpStatusSent, sentBefore).
		Group("d.client_id").
		Scan(&matches).Error
	if err != nil {
		return nil, err
	}
	return matches, nil
}
