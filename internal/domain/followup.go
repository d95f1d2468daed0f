package domain

import (
	"fmt"
	"strings"
	"time"
)

// FollowUpStatus represents the state of a scheduled outbound action.
type FollowUpStatus string

const (
	FollowUpStatusPending   FollowUpStatus = "pending"
	FollowUpStatusSent      FollowUpStatus = "sent"
	FollowUpStatusFailed    FollowUpStatus = "failed"
	FollowUpStatusCancelled FollowUpStatus = "cancelled"
)

func (s FollowUpStatus) String() string { return string(s) }

func (s FollowUpStatus) IsValid() bool {
	switch s {
	case FollowUpStatusPending, FollowUpStatusSent, FollowUpStatusFailed, FollowUpStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further status transition is allowed.
func (s FollowUpStatus) IsTerminal() bool {
	return s == FollowUpStatusFailed || s == FollowUpStatusCancelled
}

func ParseFollowUpStatusFromString(s string) (FollowUpStatus, error) {
	st := FollowUpStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid follow-up status %q", ErrValidation, s)
	}
	return st, nil
}

// Channel is the outbound delivery channel of a follow-up.
type Channel string

const (
	ChannelEmail  Channel = "email"
	ChannelLetter Channel = "letter"
	ChannelPhone  Channel = "phone"
	ChannelFax    Channel = "fax"
)

func (c Channel) String() string { return string(c) }

func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelLetter, ChannelPhone, ChannelFax:
		return true
	}
	return false
}

func ParseChannelFromString(s string) (Channel, error) {
	ch := Channel(strings.ToLower(strings.TrimSpace(s)))
	if !ch.IsValid() {
		return "", fmt.Errorf("%w: invalid channel %q", ErrValidation, s)
	}
	return ch, nil
}

// Channels returns every supported delivery channel.
func Channels() []Channel {
	return []Channel{ChannelEmail, ChannelLetter, ChannelPhone, ChannelFax}
}

const MaxFollowUpContent = 10000

// FollowUp is a single scheduled outbound action tied to a dispute round.
type FollowUp struct {
	ID               string
	DisputeID        string
	Round            int
	Channel          Channel
	Status           FollowUpStatus
	ScheduledDate    time.Time
	SentDate         *time.Time
	Recipient        string
	Content          *string
	ResponseReceived bool
	ResponseDate     *time.Time
	ResponseContent  *string
	FailureReason    *string
	OpenedAt         *time.Time
	DispatchedAt     *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (f *FollowUp) Validate() error {
	if strings.TrimSpace(f.DisputeID) == "" {
		return fmt.Errorf("%w: dispute id is required", ErrValidation)
	}
	if !f.Channel.IsValid() {
		return fmt.Errorf("%w: invalid channel %q", ErrValidation, f.Channel)
	}
	if strings.TrimSpace(f.Recipient) == "" {
		return fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	if f.ScheduledDate.IsZero() {
		return fmt.Errorf("%w: scheduled date is required", ErrValidation)
	}
	if f.Content != nil {
		if n := len([]rune(*f.Content)); n > MaxFollowUpContent {
			return fmt.Errorf("%w: content exceeds %d characters (got %d)", ErrValidation, MaxFollowUpContent, n)
		}
	}
	return nil
}
