package handler

import (
	"bytes"
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/dispute-autopilot/internal/domain"
	"github.com/kursadbilgin/dispute-autopilot/internal/repository"
	"github.com/kursadbilgin/dispute-autopilot/internal/service"
	"github.com/kursadbilgin/dispute-autopilot/internal/transport"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type stubDisputeService struct {
	createFn  func(ctx context.Context, clientID string, item domain.NegativeItem) (*domain.Dispute, bool, error)
	getFn     func(ctx context.Context, id string) (*domain.Dispute, error)
	listFn    func(ctx context.Context, clientID string) ([]domain.Dispute, error)
	submitFn  func(ctx context.Context, id string) (*domain.Dispute, error)
	startFn   func(ctx context.Context, id string) (*domain.Dispute, error)
	advanceFn func(ctx context.Context, id string) (*domain.Dispute, error)
	resolveFn func(ctx context.Context, id string, outcome domain.DisputeStatus) (*domain.Dispute, error)
}

func (s *stubDisputeService) CreateFromItem(ctx context.Context, clientID string, item domain.NegativeItem) (*domain.Dispute, bool, error) {
	if s.createFn != nil {
		return s.createFn(ctx, clientID, item)
	}
	return nil, false, errors.New("not implemented")
}

func (s *stubDisputeService) Get(ctx context.Context, id string) (*domain.Dispute, error) {
	if s.getFn != nil {
		return s.getFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (s *stubDisputeService) ListByClient(ctx context.Context, clientID string) ([]domain.Dispute, error) {
	if s.listFn != nil {
		return s.listFn(ctx, clientID)
	}
	return nil, nil
}

func (s *stubDisputeService) Submit(ctx context.Context, id string) (*domain.Dispute, error) {
	if s.submitFn != nil {
		return s.submitFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (s *stubDisputeService) MarkInProgress(ctx context.Context, id string) (*domain.Dispute, error) {
	if s.startFn != nil {
		return s.startFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (s *stubDisputeService) AdvanceRound(ctx context.Context, id string) (*domain.Dispute, error) {
	if s.advanceFn != nil {
		return s.advanceFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (s *stubDisputeService) Resolve(ctx context.Context, id string, outcome domain.DisputeStatus) (*domain.Dispute, error) {
	if s.resolveFn != nil {
		return s.resolveFn(ctx, id, outcome)
	}
	return nil, domain.ErrNotFound
}

type stubLetterService struct {
	composeFn  func(ctx context.Context, disputeID string) (*domain.Dispute, error)
	artifactFn func(ctx context.Context, disputeID string) ([]byte, *domain.Dispute, error)
}

func (s *stubLetterService) ComposeLetter(ctx context.Context, disputeID string) (*domain.Dispute, error) {
	if s.composeFn != nil {
		return s.composeFn(ctx, disputeID)
	}
	return nil, domain.ErrNotFound
}

func (s *stubLetterService) LetterArtifact(ctx context.Context, disputeID string) ([]byte, *domain.Dispute, error) {
	if s.artifactFn != nil {
		return s.artifactFn(ctx, disputeID)
	}
	return nil, nil, domain.ErrNotFound
}

type stubFollowUpService struct {
	scheduleFn       func(ctx context.Context, req service.ScheduleRequest) (*domain.FollowUp, error)
	listFn           func(ctx context.Context, disputeID string) ([]domain.FollowUp, error)
	markSentFn       func(ctx context.Context, id string, sentAt time.Time) (*domain.FollowUp, error)
	markFailedFn     func(ctx context.Context, id string, reason string) (*domain.FollowUp, error)
	cancelFn         func(ctx context.Context, id string) (*domain.FollowUp, error)
	recordResponseFn func(ctx context.Context, id string, receivedAt time.Time, content string) (*domain.FollowUp, error)
	recordOpenedFn   func(ctx context.Context, id string, openedAt time.Time) (*domain.FollowUp, error)
}

func (s *stubFollowUpService) Schedule(ctx context.Context, req service.ScheduleRequest) (*domain.FollowUp, error) {
	if s.scheduleFn != nil {
		return s.scheduleFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (s *stubFollowUpService) ListByDispute(ctx context.Context, disputeID string) ([]domain.FollowUp, error) {
	if s.listFn != nil {
		return s.listFn(ctx, disputeID)
	}
	return nil, nil
}

func (s *stubFollowUpService) MarkSent(ctx context.Context, id string, sentAt time.Time) (*domain.FollowUp, error) {
	if s.markSentFn != nil {
		return s.markSentFn(ctx, id, sentAt)
	}
	return nil, domain.ErrNotFound
}

func (s *stubFollowUpService) MarkFailed(ctx context.Context, id string, reason string) (*domain.FollowUp, error) {
	if s.markFailedFn != nil {
		return s.markFailedFn(ctx, id, reason)
	}
	return nil, domain.ErrNotFound
}

func (s *stubFollowUpService) Cancel(ctx context.Context, id string) (*domain.FollowUp, error) {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (s *stubFollowUpService) RecordResponse(ctx context.Context, id string, receivedAt time.Time, content string) (*domain.FollowUp, error) {
	if s.recordResponseFn != nil {
		return s.recordResponseFn(ctx, id, receivedAt, content)
	}
	return nil, domain.ErrNotFound
}

func (s *stubFollowUpService) RecordOpened(ctx context.Context, id string, openedAt time.Time) (*domain.FollowUp, error) {
	if s.recordOpenedFn != nil {
		return s.recordOpenedFn(ctx, id, openedAt)
	}
	return nil, domain.ErrNotFound
}

type stubAutomationService struct {
	settingsFn  func(ctx context.Context) (*domain.AutomationSettings, error)
	setPausedFn func(ctx context.Context, paused bool, updatedBy string) (*domain.AutomationSettings, error)
	logsFn      func(ctx context.Context, params repository.LogListParams) ([]domain.AutomationLogEntry, error)
}

func (s *stubAutomationService) Settings(ctx context.Context) (*domain.AutomationSettings, error) {
	if s.settingsFn != nil {
		return s.settingsFn(ctx)
	}
	return &domain.AutomationSettings{}, nil
}

func (s *stubAutomationService) SetPaused(ctx context.Context, paused bool, updatedBy string) (*domain.AutomationSettings, error) {
	if s.setPausedFn != nil {
		return s.setPausedFn(ctx, paused, updatedBy)
	}
	return &domain.AutomationSettings{Paused: paused, UpdatedBy: updatedBy}, nil
}

func (s *stubAutomationService) Logs(ctx context.Context, params repository.LogListParams) ([]domain.AutomationLogEntry, error) {
	if s.logsFn != nil {
		return s.logsFn(ctx, params)
	}
	return nil, nil
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	return fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(zap.NewNop()),
	})
}

func performRequest(t *testing.T, app *fiber.App, method string, path string, body string) (*http.Response, []byte) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	_ = resp.Body.Close()

	return resp, respBody
}

type stubConnector struct {
	pingErr error
}

func (c stubConnector) Connect(context.Context) (driver.Conn, error) {
	return stubConn(c), nil
}

func (c stubConnector) Driver() driver.Driver {
	return stubDriver(c)
}

type stubDriver struct {
	pingErr error
}

func (d stubDriver) Open(string) (driver.Conn, error) {
	return stubConn(d), nil
}

type stubConn struct {
	pingErr error
}

func (c stubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not implemented") }
func (c stubConn) Close() error                        { return nil }
func (c stubConn) Begin() (driver.Tx, error)           { return nil, errors.New("not implemented") }
func (c stubConn) Ping(context.Context) error          { return c.pingErr }

type stubRedisHook struct {
	pingErr error
}

func (h stubRedisHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h stubRedisHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if strings.EqualFold(cmd.Name(), "ping") && h.pingErr != nil {
			cmd.SetErr(h.pingErr)
			return h.pingErr
		}
		cmd.SetErr(nil)
		return nil
	}
}

func (h stubRedisHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		for _, cmd := range cmds {
			cmd.SetErr(nil)
		}
		return nil
	}
}

func newStubRedisClient(pingErr error) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:         "127.0.0.1:6379",
		DialTimeout:  time.Millisecond,
		ReadTimeout:  time.Millisecond,
		WriteTimeout: time.Millisecond,
	})
	rdb.AddHook(stubRedisHook{pingErr: pingErr})
	return rdb
}
