package letter

import (
	"strings"
	"testing"
	"time"

	"github.com/kursadbilgin/dispute-autopilot/internal/domain"
)

func preparedFacts(t *testing.T, round int) domain.LetterFacts {
	t.Helper()

	opened := time.Date(2021, 4, 9, 0, 0, 0, 0, time.UTC)
	facts := domain.LetterFacts{
		ClientName:    "Jordan Reyes",
		ClientAddress: "12 Elm Street\nSpringfield, IL 62701",
		Bureau:        domain.BureauEquifax,
		ItemType:      "Collection",
		AccountRef:    "ACCT-7781",
		Creditor:      "Midland Credit",
		ReportedDate:  &opened,
		Reason:        "Not mine",
		Round:         round,
	}
	if err := facts.Prepare(); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	return facts
}

func TestBuildInitialLetter(t *testing.T) {
	t.Parallel()

	l := Build(preparedFacts(t, 1), time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))

	if l.Date != "March 2, 2026" {
		t.Fatalf("Date = %q", l.Date)
	}
	if l.Recipient[0] != "Equifax Information Services LLC" {
		t.Fatalf("Recipient = %v", l.Recipient)
	}
	if len(l.Sender) != 3 {
		t.Fatalf("Sender = %v, want name plus two address lines", l.Sender)
	}

	body := l.BodyText()
	for _, want := range []string{"Collection", "Midland Credit", "ACCT-7781", "04/09/2021", "Not mine", "15 U.S.C. § 1681i"} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, verificationCitation) {
		t.Fatal("initial letter must not request method of verification")
	}
	if Kind(1) != "initial" {
		t.Fatalf("Kind(1) = %s", Kind(1))
	}
}

func TestBuildEscalationLetter(t *testing.T) {
	t.Parallel()

	l := Build(preparedFacts(t, 3), time.Now())

	if !strings.Contains(l.Subject, "round 3") {
		t.Fatalf("Subject = %q, want round 3", l.Subject)
	}
	if !strings.Contains(l.BodyText(), verificationCitation) {
		t.Fatal("escalation letter must request method of verification")
	}
	if Kind(3) != "escalation" {
		t.Fatalf("Kind(3) = %s", Kind(3))
	}
}

func TestBuildUnknownBureauUsesRawName(t *testing.T) {
	t.Parallel()

	facts := domain.LetterFacts{Bureau: "ExampleBureau", ItemType: "Collection", Reason: "Not mine"}
	if err := facts.Prepare(); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	l := Build(facts, time.Now())
	if len(l.Recipient) != 1 || l.Recipient[0] != "ExampleBureau" {
		t.Fatalf("Recipient = %v", l.Recipient)
	}
	if !strings.Contains(l.Subject, "not provided") {
		t.Fatalf("Subject = %q", l.Subject)
	}
}

func TestWithBodySplitsParagraphs(t *testing.T) {
	t.Parallel()

	l := Build(preparedFacts(t, 1), time.Now()).WithBody("First  paragraph\nwraps.\r\n\r\n\n\nSecond paragraph.\n\n   ")
	if len(l.Body) != 2 {
		t.Fatalf("Body = %q, want 2 paragraphs", l.Body)
	}
	if l.Body[0] != "First paragraph wraps." {
		t.Fatalf("Body[0] = %q", l.Body[0])
	}
}
