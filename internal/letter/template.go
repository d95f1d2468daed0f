// Package letter builds, lays out and renders dispute letters.
package letter

import (
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/dispute-autopilot/internal/domain"
)

const (
	verificationCitation = "15 U.S.C. § 1681i(a)(7)"
	reinvestigationDays  = 30
)

var bureauAddresses = map[domain.Bureau][]string{
	domain.BureauEquifax:    {"P.O. Box 740256", "Atlanta, GA 30374"},
	domain.BureauExperian:   {"P.O. Box 4500", "Allen, TX 75013"},
	domain.BureauTransUnion: {"Consumer Dispute Center", "P.O. Box 2000", "Chester, PA 19016"},
}

// Letter is a dispute letter split into the blocks the renderer lays out.
type Letter struct {
	Sender     []string
	Date       string
	Recipient  []string
	Subject    string
	Salutation string
	Body       []string
	Closing    []string
}

// Kind reports "initial" for round one and "escalation" for later rounds.
func Kind(round int) string {
	if round > 1 {
		return "escalation"
	}
	return "initial"
}

// Build merges prepared facts into the fixed legal template.
func Build(facts domain.LetterFacts, date time.Time) Letter {
	sender := nonEmptyLines(facts.ClientName, facts.ClientAddress)
	recipient := append([]string{facts.Bureau.DisplayName()}, bureauAddresses[facts.Bureau]...)

	return Letter{
		Sender:     sender,
		Date:       date.Format("January 2, 2006"),
		Recipient:  recipient,
		Subject:    subjectLine(facts),
		Salutation: "To Whom It May Concern:",
		Body:       bodyParagraphs(facts),
		Closing:    closingLines(facts.ClientName),
	}
}

// BodyText joins the body paragraphs with blank lines.
func (l Letter) BodyText() string {
	return strings.Join(l.Body, "\n\n")
}

// WithBody returns a copy of l whose body is replaced by text, split on blank lines.
func (l Letter) WithBody(text string) Letter {
	var paragraphs []string
	for _, p := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		p = strings.Join(strings.Fields(p), " ")
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	l.Body = paragraphs
	return l
}

func subjectLine(facts domain.LetterFacts) string {
	ref := facts.AccountRef
	if ref == "" {
		ref = "not provided"
	}
	if facts.Round > 1 {
		return fmt.Sprintf("Re: Second-level dispute (round %d), %s account %s", facts.Round, facts.ItemType, ref)
	}
	return fmt.Sprintf("Re: Dispute of %s account %s", facts.ItemType, ref)
}

func bodyParagraphs(facts domain.LetterFacts) []string {
	item := describeItem(facts)
	paragraphs := []string{
		fmt.Sprintf("I am writing to dispute the following information in my credit file: %s.", item),
		fmt.Sprintf("Reason for dispute: %s", facts.Reason),
	}

	if facts.Round > 1 {
		paragraphs = append(paragraphs,
			fmt.Sprintf("This is round %d of my dispute of this item. I previously disputed it and the item "+
				"remains on my report. Under %s, I request a description of the procedure used to determine "+
				"the accuracy and completeness of the information, including the business name, address and "+
				"telephone number of any furnisher contacted in connection with the reinvestigation.",
				facts.Round, verificationCitation),
		)
	}

	paragraphs = append(paragraphs,
		fmt.Sprintf("Under %s you are required to conduct a reasonable reinvestigation of the disputed "+
			"information within %d days and to delete or correct any information that is inaccurate, "+
			"incomplete or cannot be verified.", facts.Citation(), reinvestigationDays),
		"Please send me written notice of the results of your reinvestigation and an updated copy of my "+
			"credit report once it is complete.",
	)
	return paragraphs
}

func describeItem(facts domain.LetterFacts) string {
	parts := []string{facts.ItemType}
	if facts.Creditor != "" {
		parts = append(parts, "reported by "+facts.Creditor)
	}
	if facts.AccountRef != "" {
		parts = append(parts, "account "+facts.AccountRef)
	}
	if facts.ReportedDate != nil {
		parts = append(parts, "opened "+facts.ReportedDate.Format("01/02/2006"))
	}
	return strings.Join(parts, ", ")
}

func closingLines(clientName string) []string {
	lines := []string{"Sincerely,", ""}
	if clientName != "" {
		lines = append(lines, clientName)
	}
	return lines
}

func nonEmptyLines(values ...string) []string {
	var lines []string
	for _, v := range values {
		for _, line := range strings.Split(v, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				lines = append(lines, line)
			}
		}
	}
	return lines
}
