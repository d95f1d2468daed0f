package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/dispute-autopilot/internal/domain"
	"github.com/kursadbilgin/dispute-autopilot/internal/service"
)

type FollowUpService interface {
	Schedule(ctx context.Context, req service.ScheduleRequest) (*domain.FollowUp, error)
	ListByDispute(ctx context.Context, disputeID string) ([]domain.FollowUp, error)
	MarkSent(ctx context.Context, id string, sentAt time.Time) (*domain.FollowUp, error)
	MarkFailed(ctx context.Context, id string, reason string) (*domain.FollowUp, error)
	Cancel(ctx context.Context, id string) (*domain.FollowUp, error)
	RecordResponse(ctx context.Context, id string, receivedAt time.Time, content string) (*domain.FollowUp, error)
	RecordOpened(ctx context.Context, id string, openedAt time.Time) (*domain.FollowUp, error)
}

type FollowUpHandler struct {
	service FollowUpService
}

func NewFollowUpHandler(service FollowUpService) (*FollowUpHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("follow-up service is required")
	}
	return &FollowUpHandler{service: service}, nil
}

func RegisterFollowUpRoutes(router fiber.Router, service FollowUpService) error {
	h, err := NewFollowUpHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/disputes/:id/followups", h.Schedule)
	v1.Get("/disputes/:id/followups", h.ListByDispute)
	v1.Post("/followups/:id/sent", h.MarkSent)
	v1.Post("/followups/:id/failed", h.MarkFailed)
	v1.Post("/followups/:id/cancel", h.Cancel)
	v1.Post("/followups/:id/response", h.RecordResponse)
	v1.Post("/followups/:id/opened", h.RecordOpened)

	return nil
}

type scheduleFollowUpRequest struct {
	Channel       string  `json:"channel"`
	ScheduledDate string  `json:"scheduledDate"`
	Recipient     string  `json:"recipient"`
	Content       *string `json:"content,omitempty"`
}

type markSentRequest struct {
	SentAt string `json:"sentAt"`
}

type markFailedRequest struct {
	Reason string `json:"reason"`
}

type recordResponseRequest struct {
	ReceivedAt string `json:"receivedAt"`
	Content    string `json:"content"`
}

type recordOpenedRequest struct {
	OpenedAt string `json:"openedAt"`
}

type followUpResponse struct {
	ID               string     `json:"id"`
	DisputeID        string     `json:"disputeId"`
	Round            int        `json:"round"`
	Channel          string     `json:"channel"`
	Status           string     `json:"status"`
	ScheduledDate    time.Time  `json:"scheduledDate"`
	SentDate         *time.Time `json:"sentDate,omitempty"`
	Recipient        string     `json:"recipient"`
	Content          *string    `json:"content,omitempty"`
	ResponseReceived bool       `json:"responseReceived"`
	ResponseDate     *time.Time `json:"responseDate,omitempty"`
	ResponseContent  *string    `json:"responseContent,omitempty"`
	FailureReason    *string    `json:"failureReason,omitempty"`
	OpenedAt         *time.Time `json:"openedAt,omitempty"`
	DispatchedAt     *time.Time `json:"dispatchedAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt,omitempty"`
	UpdatedAt        time.Time  `json:"updatedAt,omitempty"`
}

type listFollowUpsResponse struct {
	Data []followUpResponse `json:"data"`
}

func (h *FollowUpHandler) Schedule(c *fiber.Ctx) error {
	var req scheduleFollowUpRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	channel, err := domain.ParseChannelFromString(req.Channel)
	if err != nil {
		return toHTTPError(err)
	}
	when, err := parseRFC3339(req.ScheduledDate, "scheduledDate")
	if err != nil {
		return toHTTPError(err)
	}
	if when == nil {
		return toHTTPError(fmt.Errorf("%w: scheduledDate is required", domain.ErrValidation))
	}

	f, err := h.service.Schedule(requestContext(c), service.ScheduleRequest{
		DisputeID: strings.TrimSpace(c.Params("id")),
		Channel:   channel,
		When:      *when,
		Recipient: req.Recipient,
		Content:   req.Content,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(toFollowUpResponse(f))
}

func (h *FollowUpHandler) ListByDispute(c *fiber.Ctx) error {
	followUps, err := h.service.ListByDispute(requestContext(c), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]followUpResponse, 0, len(followUps))
	for i := range followUps {
		data = append(data, toFollowUpResponse(&followUps[i]))
	}
	return c.Status(fiber.StatusOK).JSON(listFollowUpsResponse{Data: data})
}

func (h *FollowUpHandler) MarkSent(c *fiber.Ctx) error {
	var req markSentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	sentAt, err := parseRFC3339(req.SentAt, "sentAt")
	if err != nil {
		return toHTTPError(err)
	}

	f, err := h.service.MarkSent(requestContext(c), strings.TrimSpace(c.Params("id")), timeOrZero(sentAt))
	return h.respond(c, f, err)
}

func (h *FollowUpHandler) MarkFailed(c *fiber.Ctx) error {
	var req markFailedRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	f, err := h.service.MarkFailed(requestContext(c), strings.TrimSpace(c.Params("id")), req.Reason)
	return h.respond(c, f, err)
}

func (h *FollowUpHandler) Cancel(c *fiber.Ctx) error {
	f, err := h.service.Cancel(requestContext(c), strings.TrimSpace(c.Params("id")))
	return h.respond(c, f, err)
}

func (h *FollowUpHandler) RecordResponse(c *fiber.Ctx) error {
	var req recordResponseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	receivedAt, err := parseRFC3339(req.ReceivedAt, "receivedAt")
	if err != nil {
		return toHTTPError(err)
	}

	f, err := h.service.RecordResponse(requestContext(c), strings.TrimSpace(c.Params("id")), timeOrZero(receivedAt), req.Content)
	return h.respond(c, f, err)
}

func (h *FollowUpHandler) RecordOpened(c *fiber.Ctx) error {
	var req recordOpenedRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	openedAt, err := parseRFC3339(req.OpenedAt, "openedAt")
	if err != nil {
		return toHTTPError(err)
	}

	f, err := h.service.RecordOpened(requestContext(c), strings.TrimSpace(c.Params("id")), timeOrZero(openedAt))
	return h.respond(c, f, err)
}

func (h *FollowUpHandler) respond(c *fiber.Ctx, f *domain.FollowUp, err error) error {
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toFollowUpResponse(f))
}

func toFollowUpResponse(f *domain.FollowUp) followUpResponse {
	if f == nil {
		return followUpResponse{}
	}

	return followUpResponse{
		ID:               f.ID,
		DisputeID:        f.DisputeID,
		Round:            f.Round,
		Channel:          f.Channel.String(),
		Status:           f.Status.String(),
		ScheduledDate:    f.ScheduledDate,
		SentDate:         f.SentDate,
		Recipient:        f.Recipient,
		Content:          f.Content,
		ResponseReceived: f.ResponseReceived,
		ResponseDate:     f.ResponseDate,
		ResponseContent:  f.ResponseContent,
		FailureReason:    f.FailureReason,
		OpenedAt:         f.OpenedAt,
		DispatchedAt:     f.DispatchedAt,
		CreatedAt:        f.CreatedAt,
		UpdatedAt:        f.UpdatedAt,
	}
}
