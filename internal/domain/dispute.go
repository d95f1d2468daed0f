package domain

import (
	"fmt"
	"strings"
	"time"
)

// Bureau is a consumer credit reporting agency.
type Bureau string

const (
	BureauEquifax    Bureau = "equifax"
	BureauExperian   Bureau = "experian"
	BureauTransUnion Bureau = "transunion"
)

func (b Bureau) String() string { return string(b) }

func (b Bureau) IsValid() bool {
	switch b {
	case BureauEquifax, BureauExperian, BureauTransUnion:
		return true
	}
	return false
}

// DisplayName returns the name used in letter salutations.
func (b Bureau) DisplayName() string {
	switch b {
	case BureauEquifax:
		return "Equifax Information Services LLC"
	case BureauExperian:
		return "Experian"
	case BureauTransUnion:
		return "TransUnion LLC"
	}
	return string(b)
}

func ParseBureauFromString(s string) (Bureau, error) {
	b := Bureau(strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "")))
	if !b.IsValid() {
		return "", fmt.Errorf("%w: invalid bureau %q", ErrValidation, s)
	}
	return b, nil
}

// DisputeStatus represents the lifecycle state of a dispute.
type DisputeStatus string

const (
	DisputeStatusDraft      DisputeStatus = "draft"
	DisputeStatusPending    DisputeStatus = "pending"
	DisputeStatusInProgress DisputeStatus = "in_progress"
	DisputeStatusResolved   DisputeStatus = "resolved"
	DisputeStatusRejected   DisputeStatus = "rejected"
)

func (s DisputeStatus) String() string { return string(s) }

func (s DisputeStatus) IsValid() bool {
	switch s {
	case DisputeStatusDraft, DisputeStatusPending, DisputeStatusInProgress,
		DisputeStatusResolved, DisputeStatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether the dispute can no longer change.
func (s DisputeStatus) IsTerminal() bool {
	return s == DisputeStatusResolved || s == DisputeStatusRejected
}

func ParseDisputeStatusFromString(s string) (DisputeStatus, error) {
	st := DisputeStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid dispute status %q", ErrValidation, s)
	}
	return st, nil
}

// ParseOutcomeFromString parses a resolve outcome, which must be terminal.
func ParseOutcomeFromString(s string) (DisputeStatus, error) {
	st, err := ParseDisputeStatusFromString(s)
	if err != nil {
		return "", err
	}
	if !st.IsTerminal() {
		return "", fmt.Errorf("%w: outcome must be resolved or rejected, got %q", ErrValidation, s)
	}
	return st, nil
}

// TerminalDisputeStatuses lists statuses that close a dispute.
func TerminalDisputeStatuses() []DisputeStatus {
	return []DisputeStatus{DisputeStatusResolved, DisputeStatusRejected}
}

// NegativeItem is a derogatory credit report entry a dispute is opened against.
type NegativeItem struct {
	Bureau       Bureau
	ItemType     string
	AccountRef   string
	Creditor     string
	Reason       string
	FCRACitation *string
	OpenedDate   *time.Time
}

// Normalize trims free-text fields in place.
func (i *NegativeItem) Normalize() {
	i.ItemType = strings.TrimSpace(i.ItemType)
	i.AccountRef = strings.TrimSpace(i.AccountRef)
	i.Creditor = strings.TrimSpace(i.Creditor)
	i.Reason = strings.TrimSpace(i.Reason)
	if i.FCRACitation != nil {
		trimmed := strings.TrimSpace(*i.FCRACitation)
		if trimmed == "" {
			i.FCRACitation = nil
		} else {
			i.FCRACitation = &trimmed
		}
	}
}

func (i NegativeItem) Validate() error {
	if !i.Bureau.IsValid() {
		return fmt.Errorf("%w: invalid bureau %q", ErrValidation, i.Bureau)
	}
	if strings.TrimSpace(i.ItemType) == "" {
		return fmt.Errorf("%w: item type is required", ErrValidation)
	}
	if strings.TrimSpace(i.AccountRef) == "" {
		return fmt.Errorf("%w: account reference is required", ErrValidation)
	}
	return nil
}

// Dispute is a formal challenge against one negative credit report item.
type Dispute struct {
	ID                string
	ClientID          string
	Bureau            Bureau
	ItemType          string
	AccountRef        string
	Creditor          string
	Reason            string
	FCRACitation      *string
	Round             int
	Status            DisputeStatus
	OpenedDate        *time.Time
	LetterArtifactRef *string
	RoundStartedAt    time.Time
	Version           int
	CreatedAt         time.Time
	UpdatedAt         time.Time
	ResolvedAt        *time.Time
}

func (d *Dispute) HasLetter() bool {
	return d != nil && d.LetterArtifactRef != nil && strings.TrimSpace(*d.LetterArtifactRef) != ""
}

// Facts extracts the letter facts for the given round.
func (d *Dispute) Facts(round int) LetterFacts {
	return LetterFacts{
		DisputeID:    d.ID,
		ClientID:     d.ClientID,
		Bureau:       d.Bureau,
		ItemType:     d.ItemType,
		AccountRef:   d.AccountRef,
		Creditor:     d.Creditor,
		ReportedDate: d.OpenedDate,
		Reason:       d.Reason,
		FCRACitation: d.FCRACitation,
		Round:        round,
	}
}

// CanTransition reports whether the lifecycle allows moving from s to next.
// Round increments happen inside in_progress and are not status transitions.
func (s DisputeStatus) CanTransition(next DisputeStatus) bool {
	switch s {
	case DisputeStatusDraft:
		return next == DisputeStatusPending
	case DisputeStatusPending:
		return next == DisputeStatusInProgress
	case DisputeStatusInProgress:
		return next == DisputeStatusResolved || next == DisputeStatusRejected
	}
	return false
}
