package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/dispute-autopilot/internal/domain"
)

type DisputeService interface {
	CreateFromItem(ctx context.Context, clientID string, item domain.NegativeItem) (*domain.Dispute, bool, error)
	Get(ctx context.Context, id string) (*domain.Dispute, error)
	ListByClient(ctx context.Context, clientID string) ([]domain.Dispute, error)
	Submit(ctx context.Context, id string) (*domain.Dispute, error)
	MarkInProgress(ctx context.Context, id string) (*domain.Dispute, error)
	AdvanceRound(ctx context.Context, id string) (*domain.Dispute, error)
	Resolve(ctx context.Context, id string, outcome domain.DisputeStatus) (*domain.Dispute, error)
}

type LetterService interface {
	ComposeLetter(ctx context.Context, disputeID string) (*domain.Dispute, error)
	LetterArtifact(ctx context.Context, disputeID string) ([]byte, *domain.Dispute, error)
}

type DisputeHandler struct {
	disputes DisputeService
	letters  LetterService
}

func NewDisputeHandler(disputes DisputeService, letters LetterService) (*DisputeHandler, error) {
	if disputes == nil {
		return nil, fmt.Errorf("dispute service is required")
	}
	if letters == nil {
		return nil, fmt.Errorf("letter service is required")
	}
	return &DisputeHandler{disputes: disputes, letters: letters}, nil
}

func RegisterDisputeRoutes(router fiber.Router, disputes DisputeService, letters LetterService) error {
	h, err := NewDisputeHandler(disputes, letters)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/disputes", h.CreateDispute)
	v1.Get("/disputes/:id", h.GetDispute)
	v1.Get("/clients/:clientId/disputes", h.ListClientDisputes)
	v1.Post("/disputes/:id/letter", h.ComposeLetter)
	v1.Get("/disputes/:id/letter", h.DownloadLetter)
	v1.Post("/disputes/:id/submit", h.Submit)
	v1.Post("/disputes/:id/start", h.Start)
	v1.Post("/disputes/:id/advance", h.Advance)
	v1.Post("/disputes/:id/resolve", h.Resolve)

	return nil
}

type createDisputeRequest struct {
	ClientID     string  `json:"clientId"`
	Bureau       string  `json:"bureau"`
	ItemType     string  `json:"itemType"`
	AccountRef   string  `json:"accountRef"`
	Creditor     string  `json:"creditor"`
	Reason       string  `json:"reason"`
	FCRACitation *string `json:"fcraCitation,omitempty"`
	OpenedDate   string  `json:"openedDate,omitempty"`
}

type resolveRequest struct {
	Outcome string `json:"outcome"`
}

type disputeResponse struct {
	ID             string     `json:"id"`
	ClientID       string     `json:"clientId"`
	Bureau         string     `json:"bureau"`
	ItemType       string     `json:"itemType"`
	AccountRef     string     `json:"accountRef"`
	Creditor       string     `json:"creditor,omitempty"`
	Reason         string     `json:"reason,omitempty"`
	FCRACitation   *string    `json:"fcraCitation,omitempty"`
	Round          int        `json:"round"`
	Status         string     `json:"status"`
	OpenedDate     *time.Time `json:"openedDate,omitempty"`
	HasLetter      bool       `json:"hasLetter"`
	RoundStartedAt time.Time  `json:"roundStartedAt"`
	Version        int        `json:"version"`
	CreatedAt      time.Time  `json:"createdAt,omitempty"`
	UpdatedAt      time.Time  `json:"updatedAt,omitempty"`
	ResolvedAt     *time.Time `json:"resolvedAt,omitempty"`
}

type listDisputesResponse struct {
	Data []disputeResponse `json:"data"`
}

func (h *DisputeHandler) CreateDispute(c *fiber.Ctx) error {
	var req createDisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	item, err := requestToNegativeItem(req)
	if err != nil {
		return toHTTPError(err)
	}

	d, created, err := h.disputes.CreateFromItem(requestContext(c), req.ClientID, item)
	if err != nil {
		return toHTTPError(err)
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(toDisputeResponse(d))
}

func (h *DisputeHandler) GetDispute(c *fiber.Ctx) error {
	d, err := h.disputes.Get(requestContext(c), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toDisputeResponse(d))
}

func (h *DisputeHandler) ListClientDisputes(c *fiber.Ctx) error {
	disputes, err := h.disputes.ListByClient(requestContext(c), strings.TrimSpace(c.Params("clientId")))
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]disputeResponse, 0, len(disputes))
	for i := range disputes {
		data = append(data, toDisputeResponse(&disputes[i]))
	}
	return c.Status(fiber.StatusOK).JSON(listDisputesResponse{Data: data})
}

func (h *DisputeHandler) ComposeLetter(c *fiber.Ctx) error {
	d, err := h.letters.ComposeLetter(requestContext(c), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(toDisputeResponse(d))
}

func (h *DisputeHandler) DownloadLetter(c *fiber.Ctx) error {
	data, d, err := h.letters.LetterArtifact(requestContext(c), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="dispute-%s-round-%d.pdf"`, d.ID, d.Round))
	return c.Status(fiber.StatusOK).Send(data)
}

func (h *DisputeHandler) Submit(c *fiber.Ctx) error {
	return h.lifecycle(c, h.disputes.Submit)
}

func (h *DisputeHandler) Start(c *fiber.Ctx) error {
	return h.lifecycle(c, h.disputes.MarkInProgress)
}

func (h *DisputeHandler) Advance(c *fiber.Ctx) error {
	return h.lifecycle(c, h.disputes.AdvanceRound)
}

func (h *DisputeHandler) Resolve(c *fiber.Ctx) error {
	var req resolveRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	outcome, err := domain.ParseOutcomeFromString(req.Outcome)
	if err != nil {
		return toHTTPError(err)
	}

	d, err := h.disputes.Resolve(requestContext(c), strings.TrimSpace(c.Params("id")), outcome)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toDisputeResponse(d))
}

func (h *DisputeHandler) lifecycle(c *fiber.Ctx, op func(ctx context.Context, id string) (*domain.Dispute, error)) error {
	d, err := op(requestContext(c), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toDisputeResponse(d))
}

func requestToNegativeItem(req createDisputeRequest) (domain.NegativeItem, error) {
	bureau, err := domain.ParseBureauFromString(req.Bureau)
	if err != nil {
		return domain.NegativeItem{}, err
	}
	openedDate, err := parseRFC3339(req.OpenedDate, "openedDate")
	if err != nil {
		return domain.NegativeItem{}, err
	}

	return domain.NegativeItem{
		Bureau:       bureau,
		ItemType:     req.ItemType,
		AccountRef:   req.AccountRef,
		Creditor:     req.Creditor,
		Reason:       req.Reason,
		FCRACitation: req.FCRACitation,
		OpenedDate:   openedDate,
	}, nil
}

func toDisputeResponse(d *domain.Dispute) disputeResponse {
	if d == nil {
		return disputeResponse{}
	}

	return disputeResponse{
		ID:             d.ID,
		ClientID:       d.ClientID,
		Bureau:         d.Bureau.String(),
		ItemType:       d.ItemType,
		AccountRef:     d.AccountRef,
		Creditor:       d.Creditor,
		Reason:         d.Reason,
		FCRACitation:   d.FCRACitation,
		Round:          d.Round,
		Status:         d.Status.String(),
		OpenedDate:     d.OpenedDate,
		HasLetter:      d.HasLetter(),
		RoundStartedAt: d.RoundStartedAt,
		Version:        d.Version,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
		ResolvedAt:     d.ResolvedAt,
	}
}
