package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/dispute-autopilot/internal/domain"
	"github.com/kursadbilgin/dispute-autopilot/internal/repository"
)

const (
	defaultLogsLimit = 100
	maxLogsLimit     = 1000
)

type AutomationService interface {
	Settings(ctx context.Context) (*domain.AutomationSettings, error)
	SetPaused(ctx context.Context, paused bool, updatedBy string) (*domain.AutomationSettings, error)
	Logs(ctx context.Context, params repository.LogListParams) ([]domain.AutomationLogEntry, error)
}

type AutomationHandler struct {
	service AutomationService
}

func NewAutomationHandler(service AutomationService) (*AutomationHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("automation service is required")
	}
	return &AutomationHandler{service: service}, nil
}

func RegisterAutomationRoutes(router fiber.Router, service AutomationService) error {
	h, err := NewAutomationHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1/automation")
	v1.Get("/settings", h.GetSettings)
	v1.Put("/settings", h.UpdateSettings)
	v1.Get("/logs", h.ListLogs)

	return nil
}

type updateSettingsRequest struct {
	Paused    *bool  `json:"paused"`
	UpdatedBy string `json:"updatedBy"`
}

type settingsResponse struct {
	Paused    bool      `json:"paused"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

type logEntryResponse struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	ClientID  *string        `json:"clientId,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

type listLogsResponse struct {
	Data []logEntryResponse `json:"data"`
}

func (h *AutomationHandler) GetSettings(c *fiber.Ctx) error {
	settings, err := h.service.Settings(requestContext(c))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toSettingsResponse(settings))
}

func (h *AutomationHandler) UpdateSettings(c *fiber.Ctx) error {
	var req updateSettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Paused == nil {
		return toHTTPError(fmt.Errorf("%w: paused is required", domain.ErrValidation))
	}

	settings, err := h.service.SetPaused(requestContext(c), *req.Paused, req.UpdatedBy)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toSettingsResponse(settings))
}

func (h *AutomationHandler) ListLogs(c *fiber.Ctx) error {
	params, err := parseLogListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	entries, err := h.service.Logs(requestContext(c), params)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]logEntryResponse, 0, len(entries))
	for _, e := range entries {
		data = append(data, logEntryResponse{
			ID:        e.ID,
			Action:    e.Action.String(),
			ClientID:  e.ClientID,
			Timestamp: e.Timestamp,
			Details:   e.Details,
		})
	}
	return c.Status(fiber.StatusOK).JSON(listLogsResponse{Data: data})
}

func parseLogListParams(c *fiber.Ctx) (repository.LogListParams, error) {
	params := repository.LogListParams{Limit: c.QueryInt("limit", defaultLogsLimit)}
	if params.Limit < 1 || params.Limit > maxLogsLimit {
		return repository.LogListParams{}, fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrValidation, maxLogsLimit)
	}

	if rawAction := strings.TrimSpace(c.Query("action")); rawAction != "" {
		action, err := domain.ParseLogActionFromString(rawAction)
		if err != nil {
			return repository.LogListParams{}, err
		}
		params.Action = &action
	}

	since, err := parseRFC3339(c.Query("since"), "since")
	if err != nil {
		return repository.LogListParams{}, err
	}
	params.Since = since

	return params, nil
}

func toSettingsResponse(s *domain.AutomationSettings) settingsResponse {
	if s == nil {
		return settingsResponse{}
	}
	return settingsResponse{Paused: s.Paused, UpdatedBy: s.UpdatedBy, UpdatedAt: s.UpdatedAt}
}
