package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kursadbilgin/dispute-autopilot/internal/domain"
)

var repoNow = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

func seedDispute(t *testing.T, repo *GormDisputeRepo, id, accountRef string, status domain.DisputeStatus, roundStarted time.Time) *domain.Dispute {
	t.Helper()

	d := &domain.Dispute{
		ID:             id,
		ClientID:       "c1",
		Bureau:         domain.BureauEquifax,
		ItemType:       "late_payment",
		AccountRef:     accountRef,
		Round:          1,
		Status:         status,
		RoundStartedAt: roundStarted,
		Version:        1,
		CreatedAt:      roundStarted,
		UpdatedAt:      roundStarted,
	}
	if err := repo.Create(context.Background(), d); err != nil {
		t.Fatalf("Create(%s) error = %v", id, err)
	}
	return d
}

func TestGormDisputeRepoAdvanceRoundConflict(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewGormDisputeRepo(newTestDB(t))
	seedDispute(t, repo, "d1", "acct-1", domain.DisputeStatusInProgress, repoNow)

	at := repoNow.Add(8 * 24 * time.Hour)
	if err := repo.AdvanceRound(ctx, "d1", 1, "file://letters/d1-r2.pdf", at); err != nil {
		t.Fatalf("first AdvanceRound() error = %v", err)
	}
	if err := repo.AdvanceRound(ctx, "d1", 1, "file://letters/d1-r2b.pdf", at); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("second AdvanceRound() error = %v, want %v", err, domain.ErrConflict)
	}

	got, err := repo.GetByID(ctx, "d1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Round != 2 {
		t.Fatalf("Round = %d, want 2", got.Round)
	}
	if got.Version != 2 {
		t.Fatalf("Version = %d, want 2", got.Version)
	}
	if got.LetterArtifactRef == nil || *got.LetterArtifactRef != "file://letters/d1-r2.pdf" {
		t.Fatalf("LetterArtifactRef = %v, want the first round's letter", got.LetterArtifactRef)
	}
	if !got.RoundStartedAt.Equal(at) {
		t.Fatalf("RoundStartedAt = %s, want %s", got.RoundStartedAt, at)
	}
}

func TestGormDisputeRepoAdvanceRoundRequiresInProgress(t *testing.T) {
	t.Parallel()

	repo := NewGormDisputeRepo(newTestDB(t))
	seedDispute(t, repo, "d1", "acct-1", domain.DisputeStatusPending, repoNow)

	if err := repo.AdvanceRound(context.Background(), "d1", 1, "ref", repoNow); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("AdvanceRound() error = %v, want %v", err, domain.ErrConflict)
	}
}

func TestGormDisputeRepoFindOpenByItemAfterResolve(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewGormDisputeRepo(newTestDB(t))
	seedDispute(t, repo, "d1", "acct-1", domain.DisputeStatusInProgress, repoNow)

	item := domain.NegativeItem{Bureau: domain.BureauEquifax, ItemType: "late_payment", AccountRef: "acct-1"}
	open, err := repo.FindOpenByItem(ctx, "c1", item)
	if err != nil {
		t.Fatalf("FindOpenByItem() error = %v", err)
	}
	if open.ID != "d1" {
		t.Fatalf("FindOpenByItem() = %s, want d1", open.ID)
	}

	resolvedAt := repoNow.Add(time.Hour)
	if err := repo.TransitionStatus(ctx, "d1", 1, domain.DisputeStatusInProgress, domain.DisputeStatusResolved, resolvedAt); err != nil {
		t.Fatalf("TransitionStatus() error = %v", err)
	}
	if _, err := repo.FindOpenByItem(ctx, "c1", item); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("FindOpenByItem() after resolve error = %v, want %v", err, domain.ErrNotFound)
	}

	got, err := repo.GetByID(ctx, "d1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.ResolvedAt == nil || !got.ResolvedAt.Equal(resolvedAt) {
		t.Fatalf("ResolvedAt = %v, want %s", got.ResolvedAt, resolvedAt)
	}
}

func TestGormDisputeRepoTransitionStatusConflicts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		version int
		from    domain.DisputeStatus
	}{
		{name: "stale version", version: 7, from: domain.DisputeStatusPending},
		{name: "status moved on", version: 1, from: domain.DisputeStatusDraft},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := NewGormDisputeRepo(newTestDB(t))
			seedDispute(t, repo, "d1", "acct-1", domain.DisputeStatusPending, repoNow)

			err := repo.TransitionStatus(context.Background(), "d1", tt.version, tt.from, domain.DisputeStatusInProgress, repoNow)
			if !errors.Is(err, domain.ErrConflict) {
				t.Fatalf("TransitionStatus() error = %v, want %v", err, domain.ErrConflict)
			}
		})
	}
}

func TestGormDisputeRepoSetLetterArtifact(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewGormDisputeRepo(newTestDB(t))
	seedDispute(t, repo, "open", "acct-1", domain.DisputeStatusPending, repoNow)
	seedDispute(t, repo, "done", "acct-2", domain.DisputeStatusResolved, repoNow)

	if err := repo.SetLetterArtifact(ctx, "open", 1, "file://letters/open.pdf", repoNow); err != nil {
		t.Fatalf("SetLetterArtifact() error = %v", err)
	}
	if err := repo.SetLetterArtifact(ctx, "open", 1, "file://letters/stale.pdf", repoNow); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("SetLetterArtifact() with stale version error = %v, want %v", err, domain.ErrConflict)
	}
	if err := repo.SetLetterArtifact(ctx, "done", 1, "file://letters/done.pdf", repoNow); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("SetLetterArtifact() on resolved dispute error = %v, want %v", err, domain.ErrConflict)
	}

	done, err := repo.GetByID(ctx, "done")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if done.LetterArtifactRef != nil {
		t.Fatalf("resolved dispute LetterArtifactRef = %s, want nil", *done.LetterArtifactRef)
	}
}

func TestGormDisputeRepoStalestInProgressByClient(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewGormDisputeRepo(newTestDB(t))
	seedDispute(t, repo, "recent", "acct-1", domain.DisputeStatusInProgress, repoNow.Add(-2*24*time.Hour))
	seedDispute(t, repo, "stale", "acct-2", domain.DisputeStatusInProgress, repoNow.Add(-20*24*time.Hour))
	seedDispute(t, repo, "pending", "acct-3", domain.DisputeStatusPending, repoNow.Add(-40*24*time.Hour))

	got, err := repo.StalestInProgressByClient(ctx, "c1")
	if err != nil {
		t.Fatalf("StalestInProgressByClient() error = %v", err)
	}
	if got.ID != "stale" {
		t.Fatalf("StalestInProgressByClient() = %s, want stale", got.ID)
	}

	if _, err := repo.StalestInProgressByClient(ctx, "c2"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("StalestInProgressByClient() for unknown client error = %v, want %v", err, domain.ErrNotFound)
	}
}
