package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultDisputeReason = "The information reported is inaccurate and cannot be verified. " +
		"Under the Fair Credit Reporting Act I am entitled to a report that is accurate and complete."
	DefaultFCRACitation = "15 U.S.C. § 1681i"
)

// LetterFacts are the structured facts a dispute letter is composed from.
type LetterFacts struct {
	DisputeID     string
	ClientID      string
	ClientName    string
	ClientAddress string
	Bureau        Bureau
	ItemType      string
	AccountRef    string
	Creditor      string
	ReportedDate  *time.Time
	Reason        string
	FCRACitation  *string
	Round         int
}

// Prepare validates required facts and fills defaults for reason, citation and round.
func (f *LetterFacts) Prepare() error {
	f.ItemType = strings.TrimSpace(f.ItemType)
	f.Reason = strings.TrimSpace(f.Reason)
	if strings.TrimSpace(f.Bureau.String()) == "" {
		return fmt.Errorf("%w: bureau is required", ErrCompositionFailed)
	}
	if f.ItemType == "" {
		return fmt.Errorf("%w: item type is required", ErrCompositionFailed)
	}
	if f.Reason == "" {
		f.Reason = DefaultDisputeReason
	}
	if f.FCRACitation == nil || strings.TrimSpace(*f.FCRACitation) == "" {
		citation := DefaultFCRACitation
		f.FCRACitation = &citation
	}
	if f.Round < 1 {
		f.Round = 1
	}
	return nil
}

// Citation returns the legal basis, falling back to the default citation.
func (f LetterFacts) Citation() string {
	if f.FCRACitation == nil || strings.TrimSpace(*f.FCRACitation) == "" {
		return DefaultFCRACitation
	}
	return strings.TrimSpace(*f.FCRACitation)
}
