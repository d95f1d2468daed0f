package domain

import (
	"fmt"
	"strings"
	"time"
)

// TriggerType names the behavioral signal that raised a risk signal.
type TriggerType string

const (
	TriggerInactivity     TriggerType = "inactivity"
	TriggerSupportContact TriggerType = "support_contact"
	TriggerMissingDocs    TriggerType = "missing_docs"
	TriggerUnopenedLetter TriggerType = "unopened_letter"
)

func (t TriggerType) String() string { return string(t) }

func (t TriggerType) IsValid() bool {
	switch t {
	case TriggerInactivity, TriggerSupportContact, TriggerMissingDocs, TriggerUnopenedLetter:
		return true
	}
	return false
}

func ParseTriggerTypeFromString(s string) (TriggerType, error) {
	t := TriggerType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: invalid trigger type %q", ErrValidation, s)
	}
	return t, nil
}

// RiskSignal is an append-only behavioral observation about a client.
type RiskSignal struct {
	ID          string
	TriggerType TriggerType
	ClientID    string
	Detail      string
	CreatedAt   time.Time
}

// Client is the subset of client data the dispute core reads.
type Client struct {
	ID             string
	FullName       string
	Email          string
	MailingAddress string
	LastActivityAt *time.Time
	CreatedAt      time.Time
}
