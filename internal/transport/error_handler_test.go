package transport

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/dispute-autopilot/internal/domain"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "fiber error", err: fiber.NewError(fiber.StatusTeapot, "tea"), want: fiber.StatusTeapot},
		{name: "validation", err: fmt.Errorf("%w: bad", domain.ErrValidation), want: fiber.StatusBadRequest},
		{name: "composition failure", err: domain.ErrCompositionFailed, want: fiber.StatusBadRequest},
		{name: "not found", err: domain.ErrNotFound, want: fiber.StatusNotFound},
		{name: "conflict", err: domain.ErrConflict, want: fiber.StatusConflict},
		{name: "invalid transition", err: domain.ErrInvalidTransition, want: fiber.StatusConflict},
		{name: "drafting unavailable", err: domain.ErrDraftingUnavailable, want: fiber.StatusBadGateway},
		{name: "storage write", err: domain.ErrStorageWrite, want: fiber.StatusBadGateway},
		{name: "unknown", err: errors.New("boom"), want: fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := StatusCode(tt.err); got != tt.want {
				t.Fatalf("StatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestErrorHandlerLogsByClass(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.New(core))})
	app.Get("/missing", func(c *fiber.Ctx) error { return domain.ErrNotFound })
	app.Get("/broken", func(c *fiber.Ctx) error { return errors.New("db down") })

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/missing", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != fiber.StatusNotFound || !strings.Contains(string(body), "not found") {
		t.Fatalf("status = %d body = %s", resp.StatusCode, body)
	}

	if _, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/broken", nil)); err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if logs.FilterLevelExact(zapcore.WarnLevel).Len() != 1 {
		t.Fatal("expected one warn entry for the 404")
	}
	if logs.FilterLevelExact(zapcore.ErrorLevel).Len() != 1 {
		t.Fatal("expected one error entry for the 500")
	}
}
