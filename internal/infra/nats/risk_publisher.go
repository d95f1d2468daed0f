package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kursadbilgin/dispute-autopilot/internal/domain"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	StreamName    = "RISK_SIGNALS"
	SubjectPrefix = "risk.signals"
)

// riskSignalEvent is the wire form consumed by downstream prioritization.
type riskSignalEvent struct {
	ID          string    `json:"id"`
	TriggerType string    `json:"triggerType"`
	ClientID    string    `json:"clientId"`
	Detail      string    `json:"detail"`
	CreatedAt   time.Time `json:"createdAt"`
}

type publisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// RiskSignalPublisher fans risk signals out on risk.signals.{trigger}.
type RiskSignalPublisher struct {
	js publisher
}

func NewRiskSignalPublisher(client *Client) (*RiskSignalPublisher, error) {
	if client == nil || client.js == nil {
		return nil, fmt.Errorf("nats client is required")
	}
	return &RiskSignalPublisher{js: client.js}, nil
}

func RiskSubject(trigger domain.TriggerType) string {
	return SubjectPrefix + "." + trigger.String()
}

func (p *RiskSignalPublisher) PublishRiskSignal(ctx context.Context, signal domain.RiskSignal) error {
	data, err := encodeRiskSignal(signal)
	if err != nil {
		return err
	}

	// The signal id doubles as the dedup id so a retried publish is stored once.
	if _, err := p.js.Publish(ctx, RiskSubject(signal.TriggerType), data, jetstream.WithMsgID(signal.ID)); err != nil {
		return fmt.Errorf("failed to publish risk signal %s: %w", signal.ID, err)
	}
	return nil
}

func encodeRiskSignal(signal domain.RiskSignal) ([]byte, error) {
	if !signal.TriggerType.IsValid() {
		return nil, fmt.Errorf("%w: invalid trigger type %q", domain.ErrValidation, signal.TriggerType)
	}
	data, err := json.Marshal(riskSignalEvent{
		ID:          signal.ID,
		TriggerType: signal.TriggerType.String(),
		ClientID:    signal.ClientID,
		Detail:      signal.Detail,
		CreatedAt:   signal.CreatedAt.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal risk signal: %w", err)
	}
	return data, nil
}
