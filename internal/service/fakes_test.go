package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kursadbilgin/dispute-autopilot/internal/domain"
	"github.com/kursadbilgin/dispute-autopilot/internal/drafting"
	"github.com/kursadbilgin/dispute-autopilot/internal/queue"
	"github.com/kursadbilgin/dispute-autopilot/internal/repository"
)

type fakeDisputeRepo struct {
	createFn            func(ctx context.Context, d *domain.Dispute) error
	getByIDFn           func(ctx context.Context, id string) (*domain.Dispute, error)
	findOpenByItemFn    func(ctx context.Context, clientID string, item domain.NegativeItem) (*domain.Dispute, error)
	latestByClientFn    func(ctx context.Context, clientID string) (*domain.Dispute, error)
	stalestInProgressFn func(ctx context.Context, clientID string) (*domain.Dispute, error)
	listByClientFn      func(ctx context.Context, clientID string) ([]domain.Dispute, error)
	transitionStatusFn  func(ctx context.Context, id string, expectedVersion int, from, to domain.DisputeStatus, at time.Time) error
	setLetterArtifactFn func(ctx context.Context, id string, expectedVersion int, ref string, at time.Time) error
	advanceRoundFn      func(ctx context.Context, id string, expectedRound int, ref string, at time.Time) error
}

func (f *fakeDisputeRepo) Create(ctx context.Context, d *domain.Dispute) error {
	if f.createFn != nil {
		return f.createFn(ctx, d)
	}
	return nil
}

func (f *fakeDisputeRepo) GetByID(ctx context.Context, id string) (*domain.Dispute, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeDisputeRepo) FindOpenByItem(ctx context.Context, clientID string, item domain.NegativeItem) (*domain.Dispute, error) {
	if f.findOpenByItemFn != nil {
		return f.findOpenByItemFn(ctx, clientID, item)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeDisputeRepo) LatestByClient(ctx context.Context, clientID string) (*domain.Dispute, error) {
	if f.latestByClientFn != nil {
		return f.latestByClientFn(ctx, clientID)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeDisputeRepo) StalestInProgressByClient(ctx context.Context, clientID string) (*domain.Dispute, error) {
	if f.stalestInProgressFn != nil {
		return f.stalestInProgressFn(ctx, clientID)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeDisputeRepo) ListByClient(ctx context.Context, clientID string) ([]domain.Dispute, error) {
	if f.listByClientFn != nil {
		return f.listByClientFn(ctx, clientID)
	}
	return nil, nil
}

func (f *fakeDisputeRepo) TransitionStatus(
	ctx context.Context,
	id string,
	expectedVersion int,
	from, to domain.DisputeStatus,
	at time.Time,
) error {
	if f.transitionStatusFn != nil {
		return f.transitionStatusFn(ctx, id, expectedVersion, from, to, at)
	}
	return nil
}

func (f *fakeDisputeRepo) SetLetterArtifact(ctx context.Context, id string, expectedVersion int, ref string, at time.Time) error {
	if f.setLetterArtifactFn != nil {
		return f.setLetterArtifactFn(ctx, id, expectedVersion, ref, at)
	}
	return nil
}

func (f *fakeDisputeRepo) AdvanceRound(ctx context.Context, id string, expectedRound int, ref string, at time.Time) error {
	if f.advanceRoundFn != nil {
		return f.advanceRoundFn(ctx, id, expectedRound, ref, at)
	}
	return nil
}

type fakeFollowUpRepo struct {
	createFn            func(ctx context.Context, f *domain.FollowUp) error
	getByIDFn           func(ctx context.Context, id string) (*domain.FollowUp, error)
	listByDisputeFn     func(ctx context.Context, disputeID string) ([]domain.FollowUp, error)
	markSentFn          func(ctx context.Context, id string, sentAt time.Time) error
	markFailedFn        func(ctx context.Context, id string, reason string, at time.Time) error
	cancelFn            func(ctx context.Context, id string, at time.Time) error
	recordResponseFn    func(ctx context.Context, id string, receivedAt time.Time, content string) error
	recordOpenedFn      func(ctx context.Context, id string, openedAt time.Time) error
	getDueForDispatchFn func(ctx context.Context, now time.Time, limit int) ([]domain.FollowUp, error)
	markDispatchedFn    func(ctx context.Context, id string, at time.Time) error
}

func (f *fakeFollowUpRepo) Create(ctx context.Context, fu *domain.FollowUp) error {
	if f.createFn != nil {
		return f.createFn(ctx, fu)
	}
	return nil
}

func (f *fakeFollowUpRepo) GetByID(ctx context.Context, id string) (*domain.FollowUp, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeFollowUpRepo) ListByDispute(ctx context.Context, disputeID string) ([]domain.FollowUp, error) {
	if f.listByDisputeFn != nil {
		return f.listByDisputeFn(ctx, disputeID)
	}
	return nil, nil
}

func (f *fakeFollowUpRepo) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	if f.markSentFn != nil {
		return f.markSentFn(ctx, id, sentAt)
	}
	return nil
}

func (f *fakeFollowUpRepo) MarkFailed(ctx context.Context, id string, reason string, at time.Time) error {
	if f.markFailedFn != nil {
		return f.markFailedFn(ctx, id, reason, at)
	}
	return nil
}

func (f *fakeFollowUpRepo) Cancel(ctx context.Context, id string, at time.Time) error {
	if f.cancelFn != nil {
		return f.cancelFn(ctx, id, at)
	}
	return nil
}

func (f *fakeFollowUpRepo) RecordResponse(ctx context.Context, id string, receivedAt time.Time, content string) error {
	if f.recordResponseFn != nil {
		return f.recordResponseFn(ctx, id, receivedAt, content)
	}
	return nil
}

func (f *fakeFollowUpRepo) RecordOpened(ctx context.Context, id string, openedAt time.Time) error {
	if f.recordOpenedFn != nil {
		return f.recordOpenedFn(ctx, id, openedAt)
	}
	return nil
}

func (f *fakeFollowUpRepo) GetDueForDispatch(ctx context.Context, now time.Time, limit int) ([]domain.FollowUp, error) {
	if f.getDueForDispatchFn != nil {
		return f.getDueForDispatchFn(ctx, now, limit)
	}
	return nil, nil
}

func (f *fakeFollowUpRepo) MarkDispatched(ctx context.Context, id string, at time.Time) error {
	if f.markDispatchedFn != nil {
		return f.markDispatchedFn(ctx, id, at)
	}
	return nil
}

// fakeAutomationLogRepo records appended entries and is safe for concurrent sweeps.
type fakeAutomationLogRepo struct {
	mu           sync.Mutex
	entries      []domain.AutomationLogEntry
	appendFn     func(ctx context.Context, entry *domain.AutomationLogEntry) error
	countSinceFn func(ctx context.Context, action domain.LogAction, since time.Time) (int64, error)
	listFn       func(ctx context.Context, params repository.LogListParams) ([]domain.AutomationLogEntry, error)
}

func (f *fakeAutomationLogRepo) Append(ctx context.Context, entry *domain.AutomationLogEntry) error {
	if f.appendFn != nil {
		if err := f.appendFn(ctx, entry); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAutomationLogRepo) CountSince(ctx context.Context, action domain.LogAction, since time.Time) (int64, error) {
	if f.countSinceFn != nil {
		return f.countSinceFn(ctx, action, since)
	}
	var count int64
	for _, e := range f.snapshot() {
		if e.Action == action && !e.Timestamp.Before(since) {
			count++
		}
	}
	return count, nil
}

func (f *fakeAutomationLogRepo) List(ctx context.Context, params repository.LogListParams) ([]domain.AutomationLogEntry, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return f.snapshot(), nil
}

func (f *fakeAutomationLogRepo) snapshot() []domain.AutomationLogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.AutomationLogEntry(nil), f.entries...)
}

// byAction returns recorded entries with the given action, optionally for one client.
func (f *fakeAutomationLogRepo) byAction(action domain.LogAction, clientID string) []domain.AutomationLogEntry {
	var out []domain.AutomationLogEntry
	for _, e := range f.snapshot() {
		if e.Action != action {
			continue
		}
		if clientID != "" && (e.ClientID == nil || *e.ClientID != clientID) {
			continue
		}
		out = append(out, e)
	}
	return out
}

type fakeSettingsRepo struct {
	getFn    func(ctx context.Context) (*domain.AutomationSettings, error)
	updateFn func(ctx context.Context, paused bool, updatedBy string) (*domain.AutomationSettings, error)
}

func (f *fakeSettingsRepo) Get(ctx context.Context) (*domain.AutomationSettings, error) {
	if f.getFn != nil {
		return f.getFn(ctx)
	}
	return &domain.AutomationSettings{}, nil
}

func (f *fakeSettingsRepo) Update(ctx context.Context, paused bool, updatedBy string) (*domain.AutomationSettings, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, paused, updatedBy)
	}
	return &domain.AutomationSettings{Paused: paused, UpdatedBy: updatedBy, UpdatedAt: time.Now().UTC()}, nil
}

func pausedSettings(paused bool) *fakeSettingsRepo {
	return &fakeSettingsRepo{
		getFn: func(ctx context.Context) (*domain.AutomationSettings, error) {
			return &domain.AutomationSettings{Paused: paused}, nil
		},
	}
}

type fakeClientRepo struct {
	listIDsFn          func(ctx context.Context) ([]string, error)
	getByIDFn          func(ctx context.Context, id string) (*domain.Client, error)
	inactiveSinceFn    func(ctx context.Context, cutoff time.Time) ([]repository.ClientMatch, error)
	inboundSupportFn   func(ctx context.Context, since time.Time, minCount int) ([]repository.ClientMatch, error)
	overdueDocumentsFn func(ctx context.Context, requestedBefore time.Time) ([]repository.ClientMatch, error)
	unopenedLettersFn  func(ctx context.Context, sentBefore time.Time) ([]repository.ClientMatch, error)
}

func (f *fakeClientRepo) ListIDs(ctx context.Context) ([]string, error) {
	if f.listIDsFn != nil {
		return f.listIDsFn(ctx)
	}
	return nil, nil
}

func (f *fakeClientRepo) GetByID(ctx context.Context, id string) (*domain.Client, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeClientRepo) InactiveSince(ctx context.Context, cutoff time.Time) ([]repository.ClientMatch, error) {
	if f.inactiveSinceFn != nil {
		return f.inactiveSinceFn(ctx, cutoff)
	}
	return nil, nil
}

func (f *fakeClientRepo) InboundSupportContacts(ctx context.Context, since time.Time, minCount int) ([]repository.ClientMatch, error) {
	if f.inboundSupportFn != nil {
		return f.inboundSupportFn(ctx, since, minCount)
	}
	return nil, nil
}

func (f *fakeClientRepo) OverdueDocumentRequests(ctx context.Context, requestedBefore time.Time) ([]repository.ClientMatch, error) {
	if f.overdueDocumentsFn != nil {
		return f.overdueDocumentsFn(ctx, requestedBefore)
	}
	return nil, nil
}

func (f *fakeClientRepo) UnopenedLetters(ctx context.Context, sentBefore time.Time) ([]repository.ClientMatch, error) {
	if f.unopenedLettersFn != nil {
		return f.unopenedLettersFn(ctx, sentBefore)
	}
	return nil, nil
}

type fakeRiskSignalRepo struct {
	createBatchFn  func(ctx context.Context, signals []*domain.RiskSignal) error
	listByClientFn func(ctx context.Context, clientID string, limit int) ([]domain.RiskSignal, error)
}

func (f *fakeRiskSignalRepo) CreateBatch(ctx context.Context, signals []*domain.RiskSignal) error {
	if f.createBatchFn != nil {
		return f.createBatchFn(ctx, signals)
	}
	return nil
}

func (f *fakeRiskSignalRepo) ListByClient(ctx context.Context, clientID string, limit int) ([]domain.RiskSignal, error) {
	if f.listByClientFn != nil {
		return f.listByClientFn(ctx, clientID, limit)
	}
	return nil, nil
}

// fakeLocker is an in-memory lock table.
type fakeLocker struct {
	mu        sync.Mutex
	held      map[string]bool
	acquireFn func(ctx context.Context, name string, ttl time.Duration) (bool, error)
	released  []string
}

func (f *fakeLocker) TryAcquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	if f.acquireFn != nil {
		return f.acquireFn(ctx, name, ttl)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held == nil {
		f.held = map[string]bool{}
	}
	if f.held[name] {
		return false, nil
	}
	f.held[name] = true
	return true, nil
}

func (f *fakeLocker) Release(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, name)
	f.released = append(f.released, name)
	return nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []queue.Message
	publishFn func(ctx context.Context, queueName string, msg queue.Message) error
	closeFn   func() error
}

func (f *fakePublisher) Publish(ctx context.Context, queueName string, msg queue.Message) error {
	if f.publishFn != nil {
		if err := f.publishFn(ctx, queueName, msg); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, msg)
	return nil
}

func (f *fakePublisher) Close() error {
	if f.closeFn != nil {
		return f.closeFn()
	}
	return nil
}

type fakeConsumer struct {
	consumeFn func(ctx context.Context, queueName string, handler queue.MessageHandler) error
	closeFn   func() error
}

func (f *fakeConsumer) Consume(ctx context.Context, queueName string, handler queue.MessageHandler) error {
	if f.consumeFn != nil {
		return f.consumeFn(ctx, queueName, handler)
	}
	<-ctx.Done()
	return nil
}

func (f *fakeConsumer) Close() error {
	if f.closeFn != nil {
		return f.closeFn()
	}
	return nil
}

type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putFn   func(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

func (f *fakeObjectStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if f.putFn != nil {
		return f.putFn(ctx, key, data, contentType)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[key] = data
	return "mem://" + key, nil
}

func (f *fakeObjectStore) Get(ctx context.Context, ref string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, data := range f.objects {
		if "mem://"+key == ref {
			return data, nil
		}
	}
	return nil, fmt.Errorf("object %w", domain.ErrNotFound)
}

func (f *fakeObjectStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

type fakeRoundComposer struct {
	composeRoundFn func(ctx context.Context, d *domain.Dispute, round int) (string, error)
}

func (f *fakeRoundComposer) ComposeRound(ctx context.Context, d *domain.Dispute, round int) (string, error) {
	if f.composeRoundFn != nil {
		return f.composeRoundFn(ctx, d, round)
	}
	return fmt.Sprintf("mem://clients/%s/disputes/%s/round-%d/letter.pdf", d.ClientID, d.ID, round), nil
}

type fakeDrafter struct {
	name    string
	draftFn func(ctx context.Context, req drafting.Request) (string, error)
}

func (f *fakeDrafter) Name() string {
	if f.name == "" {
		return "fake"
	}
	return f.name
}

func (f *fakeDrafter) Draft(ctx context.Context, req drafting.Request) (string, error) {
	if f.draftFn != nil {
		return f.draftFn(ctx, req)
	}
	return req.Template, nil
}

type fakeRiskPublisher struct {
	mu        sync.Mutex
	published []domain.RiskSignal
	publishFn func(ctx context.Context, signal domain.RiskSignal) error
}

func (f *fakeRiskPublisher) PublishRiskSignal(ctx context.Context, signal domain.RiskSignal) error {
	if f.publishFn != nil {
		if err := f.publishFn(ctx, signal); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, signal)
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
