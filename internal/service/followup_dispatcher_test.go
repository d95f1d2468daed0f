package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kursadbilgin/dispute-autopilot/internal/domain"
	"github.com/kursadbilgin/dispute-autopilot/internal/queue"
)

func dueFollowUps() []domain.FollowUp {
	return []domain.FollowUp{
		{ID: "f1", DisputeID: "d1", Round: 1, Channel: domain.ChannelEmail, Status: domain.FollowUpStatusPending, Recipient: "a@example.com"},
		{ID: "f2", DisputeID: "d2", Round: 2, Channel: domain.ChannelLetter, Status: domain.FollowUpStatusPending, Recipient: "Equifax"},
	}
}

func TestFollowUpDispatcherScanDue(t *testing.T) {
	t.Parallel()

	var marked []string
	followUps := &fakeFollowUpRepo{
		getDueForDispatchFn: func(ctx context.Context, now time.Time, limit int) ([]domain.FollowUp, error) {
			if limit != 25 {
				t.Fatalf("limit = %d, want 25", limit)
			}
			return dueFollowUps(), nil
		},
		markDispatchedFn: func(ctx context.Context, id string, at time.Time) error {
			marked = append(marked, id)
			return nil
		},
	}
	var queues []string
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, queueName string, msg queue.Message) error {
			queues = append(queues, queueName)
			return nil
		},
	}

	dispatcher, err := NewFollowUpDispatcher(followUps, &fakeSettingsRepo{}, publisher, time.Second, 25, nil)
	if err != nil {
		t.Fatalf("NewFollowUpDispatcher() error = %v", err)
	}

	n, err := dispatcher.scanDue(context.Background())
	if err != nil {
		t.Fatalf("scanDue() error = %v", err)
	}
	if n != 2 || len(marked) != 2 {
		t.Fatalf("dispatched = %d, marked = %v, want 2", n, marked)
	}
	if queues[0] != queue.FollowUpQueueName(domain.ChannelEmail) || queues[1] != queue.FollowUpQueueName(domain.ChannelLetter) {
		t.Fatalf("queues = %v", queues)
	}
	msg, ok := publisher.published[1].(queue.FollowUpMessage)
	if !ok || msg.FollowUpID != "f2" || msg.Round != 2 {
		t.Fatalf("published = %+v", publisher.published[1])
	}
}

func TestFollowUpDispatcherPublishFailureLeavesPending(t *testing.T) {
	t.Parallel()

	followUps := &fakeFollowUpRepo{
		getDueForDispatchFn: func(ctx context.Context, now time.Time, limit int) ([]domain.FollowUp, error) {
			return dueFollowUps(), nil
		},
		markDispatchedFn: func(ctx context.Context, id string, at time.Time) error {
			if id == "f1" {
				t.Fatal("follow-up that failed to publish must not be marked")
			}
			return nil
		},
	}
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, queueName string, msg queue.Message) error {
			if msg.MessageID() == "f1" {
				return errors.New("channel closed")
			}
			return nil
		},
	}

	dispatcher, err := NewFollowUpDispatcher(followUps, nil, publisher, 0, 0, nil)
	if err != nil {
		t.Fatalf("NewFollowUpDispatcher() error = %v", err)
	}

	n, err := dispatcher.scanDue(context.Background())
	if err != nil {
		t.Fatalf("scanDue() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("dispatched = %d, want 1", n)
	}
}

func TestFollowUpDispatcherConflictIsNotCounted(t *testing.T) {
	t.Parallel()

	followUps := &fakeFollowUpRepo{
		getDueForDispatchFn: func(ctx context.Context, now time.Time, limit int) ([]domain.FollowUp, error) {
			return dueFollowUps()[:1], nil
		},
		markDispatchedFn: func(ctx context.Context, id string, at time.Time) error {
			return domain.ErrConflict
		},
	}

	dispatcher, err := NewFollowUpDispatcher(followUps, nil, &fakePublisher{}, 0, 0, nil)
	if err != nil {
		t.Fatalf("NewFollowUpDispatcher() error = %v", err)
	}

	n, err := dispatcher.scanDue(context.Background())
	if err != nil {
		t.Fatalf("scanDue() error = %v", err)
	}
	if n != 0 {
		t.Fatalf("dispatched = %d, want 0", n)
	}
}

func TestFollowUpDispatcherPausedSkipsScan(t *testing.T) {
	t.Parallel()

	followUps := &fakeFollowUpRepo{
		getDueForDispatchFn: func(ctx context.Context, now time.Time, limit int) ([]domain.FollowUp, error) {
			t.Fatal("paused dispatcher must not query due follow-ups")
			return nil, nil
		},
	}

	dispatcher, err := NewFollowUpDispatcher(followUps, pausedSettings(true), &fakePublisher{}, 0, 0, nil)
	if err != nil {
		t.Fatalf("NewFollowUpDispatcher() error = %v", err)
	}
	if n, err := dispatcher.scanDue(context.Background()); err != nil || n != 0 {
		t.Fatalf("scanDue() = %d, %v, want 0, nil", n, err)
	}
}

func TestNewFollowUpDispatcherValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewFollowUpDispatcher(nil, nil, &fakePublisher{}, 0, 0, nil); err == nil {
		t.Fatal("expected error for nil repository")
	}
	if _, err := NewFollowUpDispatcher(&fakeFollowUpRepo{}, nil, nil, 0, 0, nil); err == nil {
		t.Fatal("expected error for nil publisher")
	}
}
