package repository

import (
	"encoding/json"
	"time"

	"github.com/kursadbilgin/dispute-autopilot/internal/domain"
	"gorm.io/datatypes"
)

// DisputeModel is the persistence model for the disputes table.
type DisputeModel struct {
	ID                string               `gorm:"type:uuid;primaryKey"`
	ClientID          string               `gorm:"type:uuid;not null"`
	Bureau            domain.Bureau        `gorm:"type:varchar(20);not null"`
	ItemType          string               `gorm:"type:varchar(100);not null"`
	AccountRef        string               `gorm:"type:varchar(100);not null"`
	Creditor          string               `gorm:"type:varchar(255);not null;default:''"`
	Reason            string               `gorm:"type:text;not null;default:''"`
	FCRACitation      *string              `gorm:"type:varchar(100)"`
	Round             int                  `gorm:"not null;default:1"`
	Status            domain.DisputeStatus `gorm:"type:varchar(20);not null"`
	OpenedDate        *time.Time           `gorm:"type:date"`
	LetterArtifactRef *string              `gorm:"type:text"`
	RoundStartedAt    time.Time            `gorm:"not null"`
	Version           int                  `gorm:"not null;default:1"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
	ResolvedAt        *time.Time
}

func (DisputeModel) TableName() string {
	return "disputes"
}

// FollowUpModel is the persistence model for the follow_ups table.
type FollowUpModel struct {
	ID               string                `gorm:"type:uuid;primaryKey"`
	DisputeID        string                `gorm:"type:uuid;not null"`
	Round            int                   `gorm:"not null"`
	Channel          domain.Channel        `gorm:"type:varchar(10);not null"`
	Status           domain.FollowUpStatus `gorm:"type:varchar(20);not null"`
	ScheduledDate    time.Time             `gorm:"not null"`
	SentDate         *time.Time
	Recipient        string                `gorm:"type:varchar(255);not null"`
	Content          *string               `gorm:"type:text"`
	ResponseReceived bool                  `gorm:"not null;default:false"`
	ResponseDate     *time.Time
	ResponseContent  *string               `gorm:"type:text"`
	FailureReason    *string               `gorm:"type:text"`
	OpenedAt         *time.Time
	DispatchedAt     *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (FollowUpModel) TableName() string {
	return "follow_ups"
}

// AutomationLogModel is the persistence model for the append-only automation_logs table.
type AutomationLogModel struct {
	ID        string           `gorm:"type:uuid;primaryKey"`
	Action    domain.LogAction `gorm:"type:varchar(32);not null"`
	ClientID  *string          `gorm:"type:uuid"`
	Timestamp time.Time        `gorm:"not null"`
	Details   datatypes.JSON   `gorm:"type:jsonb;not null;default:'{}'"`
}

func (AutomationLogModel) TableName() string {
	return "automation_logs"
}

// AutomationSettingsModel holds the single global automation control row.
type AutomationSettingsModel struct {
	ID        int    `gorm:"primaryKey;autoIncrement:false"`
	Paused    bool   `gorm:"not null;default:false"`
	UpdatedBy string `gorm:"type:varchar(255);not null;default:''"`
	UpdatedAt time.Time
}

func (AutomationSettingsModel) TableName() string {
	return "automation_settings"
}

// RiskSignalModel is the persistence model for the append-only risk_signals table.
type RiskSignalModel struct {
	ID          string             `gorm:"type:uuid;primaryKey"`
	TriggerType domain.TriggerType `gorm:"type:varchar(32);not null"`
	ClientID    string             `gorm:"type:uuid;not null"`
	Detail      string             `gorm:"type:text;not null;default:''"`
	CreatedAt   time.Time
}

func (RiskSignalModel) TableName() string {
	return "risk_signals"
}

// ClientModel is the read model of the clients table owned by the wider application.
type ClientModel struct {
	ID             string     `gorm:"type:uuid;primaryKey"`
	FullName       string     `gorm:"type:varchar(255);not null"`
	Email          string     `gorm:"type:varchar(255);not null;default:''"`
	MailingAddress string     `gorm:"type:text;not null;default:''"`
	LastActivityAt *time.Time
	CreatedAt      time.Time
}

func (ClientModel) TableName() string {
	return "clients"
}

// SupportMessageModel is the read model of client support conversations.
type SupportMessageModel struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	ClientID  string `gorm:"type:uuid;not null"`
	Direction string `gorm:"type:varchar(10);not null"`
	CreatedAt time.Time
}

func (SupportMessageModel) TableName() string {
	return "support_messages"
}

// DocumentRequestModel is the read model of documents requested from clients.
type DocumentRequestModel struct {
	ID           string     `gorm:"type:uuid;primaryKey"`
	ClientID     string     `gorm:"type:uuid;not null"`
	DocumentType string     `gorm:"type:varchar(100);not null"`
	RequestedAt  time.Time  `gorm:"not null"`
	FulfilledAt  *time.Time
}

func (DocumentRequestModel) TableName() string {
	return "document_requests"
}

func disputeModelFromDomain(d *domain.Dispute) *DisputeModel {
	if d == nil {
		return nil
	}

	return &DisputeModel{
		ID:                d.ID,
		ClientID:          d.ClientID,
		Bureau:            d.Bureau,
		ItemType:          d.ItemType,
		AccountRef:        d.AccountRef,
		Creditor:          d.Creditor,
		Reason:            d.Reason,
		FCRACitation:      d.FCRACitation,
		Round:             d.Round,
		Status:            d.Status,
		OpenedDate:        d.OpenedDate,
		LetterArtifactRef: d.LetterArtifactRef,
		RoundStartedAt:    d.RoundStartedAt,
		Version:           d.Version,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
		ResolvedAt:        d.ResolvedAt,
	}
}

func disputeModelToDomain(m *DisputeModel) *domain.Dispute {
	if m == nil {
		return nil
	}

	return &domain.Dispute{
		ID:                m.ID,
		ClientID:          m.ClientID,
		Bureau:            m.Bureau,
		ItemType:          m.ItemType,
		AccountRef:        m.AccountRef,
		Creditor:          m.Creditor,
		Reason:            m.Reason,
		FCRACitation:      m.FCRACitation,
		Round:             m.Round,
		Status:            m.Status,
		OpenedDate:        m.OpenedDate,
		LetterArtifactRef: m.LetterArtifactRef,
		RoundStartedAt:    m.RoundStartedAt,
		Version:           m.Version,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
		ResolvedAt:        m.ResolvedAt,
	}
}

func followUpModelFromDomain(f *domain.FollowUp) *FollowUpModel {
	if f == nil {
		return nil
	}

	return &FollowUpModel{
		ID:               f.ID,
		DisputeID:        f.DisputeID,
		Round:            f.Round,
		Channel:          f.Channel,
		Status:           f.Status,
		ScheduledDate:    f.ScheduledDate,
		SentDate:         f.SentDate,
		Recipient:        f.Recipient,
		Content:          f.Content,
		ResponseReceived: f.ResponseReceived,
		ResponseDate:     f.ResponseDate,
		ResponseContent:  f.ResponseContent,
		FailureReason:    f.FailureReason,
		OpenedAt:         f.OpenedAt,
		DispatchedAt:     f.DispatchedAt,
		CreatedAt:        f.CreatedAt,
		UpdatedAt:        f.UpdatedAt,
	}
}

func followUpModelToDomain(m *FollowUpModel) *domain.FollowUp {
	if m == nil {
		return nil
	}

	return &domain.FollowUp{
		ID:               m.ID,
		DisputeID:        m.DisputeID,
		Round:            m.Round,
		Channel:          m.Channel,
		Status:           m.Status,
		ScheduledDate:    m.ScheduledDate,
		SentDate:         m.SentDate,
		Recipient:        m.Recipient,
		Content:          m.Content,
		ResponseReceived: m.ResponseReceived,
		ResponseDate:     m.ResponseDate,
		ResponseContent:  m.ResponseContent,
		FailureReason:    m.FailureReason,
		OpenedAt:         m.OpenedAt,
		DispatchedAt:     m.DispatchedAt,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func automationLogModelFromDomain(e *domain.AutomationLogEntry) (*AutomationLogModel, error) {
	if e == nil {
		return nil, nil
	}

	details := datatypes.JSON("{}")
	if len(e.Details) > 0 {
		raw, err := json.Marshal(e.Details)
		if err != nil {
			return nil, err
		}
		details = datatypes.JSON(raw)
	}

	return &AutomationLogModel{
		ID:        e.ID,
		Action:    e.Action,
		ClientID:  e.ClientID,
		Timestamp: e.Timestamp,
		Details:   details,
	}, nil
}

func automationLogModelToDomain(m *AutomationLogModel) *domain.AutomationLogEntry {
	if m == nil {
		return nil
	}

	details := map[string]any{}
	if len(m.Details) > 0 {
		// Rows written by other tools may carry non-object details; keep them readable.
		if err := json.Unmarshal(m.Details, &details); err != nil {
			details = map[string]any{"raw": string(m.Details)}
		}
	}

	return &domain.AutomationLogEntry{
		ID:        m.ID,
		Action:    m.Action,
		ClientID:  m.ClientID,
		Timestamp: m.Timestamp,
		Details:   details,
	}
}

func riskSignalModelFromDomain(s *domain.RiskSignal) *RiskSignalModel {
	if s == nil {
		return nil
	}

	return &RiskSignalModel{
		ID:          s.ID,
		TriggerType: s.TriggerType,
		ClientID:    s.ClientID,
		Detail:      s.Detail,
		CreatedAt:   s.CreatedAt,
	}
}

func riskSignalModelToDomain(m *RiskSignalModel) *domain.RiskSignal {
	if m == nil {
		return nil
	}

	return &domain.RiskSignal{
		ID:          m.ID,
		TriggerType: m.TriggerType,
		ClientID:    m.ClientID,
		Detail:      m.Detail,
		CreatedAt:   m.CreatedAt,
	}
}

func clientModelToDomain(m *ClientModel) *domain.Client {
	if m == nil {
		return nil
	}

	return &domain.Client{
		ID:             m.ID,
		FullName:       m.FullName,
		Email:          m.Email,
		MailingAddress: m.MailingAddress,
		LastActivityAt: m.LastActivityAt,
		CreatedAt:      m.CreatedAt,
	}
}
