package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/dispute-autopilot/internal/domain"
)

// FollowUpMessage hands a due follow-up to the external delivery process.
type FollowUpMessage struct {
	FollowUpID    string         `json:"followUpId"`
	DisputeID     string         `json:"disputeId"`
	Round         int            `json:"round"`
	Channel       domain.Channel `json:"channel"`
	Recipient     string         `json:"recipient"`
	Content       *string        `json:"content,omitempty"`
	ScheduledDate time.Time      `json:"scheduledDate"`
}

func (m FollowUpMessage) MessageID() string { return m.FollowUpID }

func (m FollowUpMessage) Validate() error {
	if strings.TrimSpace(m.FollowUpID) == "" {
		return fmt.Errorf("followUpId is required")
	}
	if strings.TrimSpace(m.DisputeID) == "" {
		return fmt.Errorf("disputeId is required")
	}
	if !m.Channel.IsValid() {
		return fmt.Errorf("invalid channel %q", m.Channel)
	}
	if strings.TrimSpace(m.Recipient) == "" {
		return fmt.Errorf("recipient is required")
	}
	return nil
}

// SequencingMessage mirrors a sequencing automation log entry.
type SequencingMessage struct {
	EntryID       string    `json:"entryId"`
	ClientID      string    `json:"clientId"`
	SweepID       string    `json:"sweepId,omitempty"`
	DaysSinceLast *int      `json:"daysSinceLastDispute,omitempty"`
	SignaledAt    time.Time `json:"signaledAt"`
}

func (m SequencingMessage) MessageID() string { return m.EntryID }

func (m SequencingMessage) Validate() error {
	if strings.TrimSpace(m.EntryID) == "" {
		return fmt.Errorf("entryId is required")
	}
	if strings.TrimSpace(m.ClientID) == "" {
		return fmt.Errorf("clientId is required")
	}
	return nil
}

// Decode unmarshals and validates a delivery body. Malformed bodies wrap ErrPoison.
func Decode[T Message](body []byte) (T, error) {
	var msg T
	if err := json.Unmarshal(body, &msg); err != nil {
		return msg, fmt.Errorf("%w: invalid JSON: %v", ErrPoison, err)
	}
	if err := msg.Validate(); err != nil {
		return msg, fmt.Errorf("%w: %v", ErrPoison, err)
	}
	return msg, nil
}
