package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/dispute-autopilot/internal/domain"
	"github.com/kursadbilgin/dispute-autopilot/internal/repository"
)

func newAutomationTestApp(t *testing.T, svc AutomationService) *fiber.App {
	t.Helper()

	app := newTestApp(t)
	if err := RegisterAutomationRoutes(app, svc); err != nil {
		t.Fatalf("RegisterAutomationRoutes() error = %v", err)
	}
	return app
}

func TestAutomationHandler_Settings(t *testing.T) {
	t.Parallel()

	var gotPaused bool
	var gotBy string
	svc := &stubAutomationService{
		setPausedFn: func(ctx context.Context, paused bool, updatedBy string) (*domain.AutomationSettings, error) {
			gotPaused, gotBy = paused, updatedBy
			return &domain.AutomationSettings{Paused: paused, UpdatedBy: updatedBy}, nil
		},
	}
	app := newAutomationTestApp(t, svc)

	resp, body := performRequest(t, app, http.MethodPut, "/v1/automation/settings", `{"paused":true,"updatedBy":"ops"}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, body)
	}
	if !gotPaused || gotBy != "ops" {
		t.Fatalf("SetPaused(%v, %q)", gotPaused, gotBy)
	}

	resp, _ = performRequest(t, app, http.MethodPut, "/v1/automation/settings", `{"updatedBy":"ops"}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 without paused", resp.StatusCode)
	}

	resp, body = performRequest(t, app, http.MethodGet, "/v1/automation/settings", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed["paused"] != false {
		t.Fatalf("paused = %v, want false", parsed["paused"])
	}
}

func TestAutomationHandler_ListLogs(t *testing.T) {
	t.Parallel()

	clientID := "c1"
	var got repository.LogListParams
	svc := &stubAutomationService{
		logsFn: func(ctx context.Context, params repository.LogListParams) ([]domain.AutomationLogEntry, error) {
			got = params
			return []domain.AutomationLogEntry{{
				ID:        "e1",
				Action:    domain.LogActionPriorityFlag,
				ClientID:  &clientID,
				Timestamp: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
				Details:   map[string]any{"thresholdDays": 14},
			}}, nil
		},
	}
	app := newAutomationTestApp(t, svc)

	resp, body := performRequest(t, app, http.MethodGet, "/v1/automation/logs?action=priority_flag&since=2026-03-01T00:00:00Z&limit=10", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, body)
	}
	if got.Action == nil || *got.Action != domain.LogActionPriorityFlag || got.Since == nil || got.Limit != 10 {
		t.Fatalf("params = %+v", got)
	}

	var parsed struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if len(parsed.Data) != 1 || parsed.Data[0]["action"] != "priority_flag" || parsed.Data[0]["clientId"] != "c1" {
		t.Fatalf("data = %v", parsed.Data)
	}

	for _, path := range []string{
		"/v1/automation/logs?action=unknown",
		"/v1/automation/logs?since=last-week",
		"/v1/automation/logs?limit=0",
	} {
		resp, _ := performRequest(t, app, http.MethodGet, path, "")
		if resp.StatusCode != fiber.StatusBadRequest {
			t.Fatalf("%s status = %d, want 400", path, resp.StatusCode)
		}
	}
}
