package handler

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/kursadbilgin/dispute-autopilot/internal/observability"
	"github.com/redis/go-redis/v9"
)

const readinessTimeout = 2 * time.Second

// Probe is one named readiness dependency.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

func PostgresProbe(sqlDB *sql.DB) Probe {
	return Probe{Name: "postgres", Check: sqlDB.PingContext}
}

func RedisProbe(rdb *redis.Client) Probe {
	return Probe{Name: "redis", Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }}
}

// ConnectionProbe wraps clients that only expose a connection flag, e.g. RabbitMQ and NATS.
func ConnectionProbe(name string, isConnected func() bool) Probe {
	return Probe{Name: name, Check: func(context.Context) error {
		if !isConnected() {
			return fmt.Errorf("%s disconnected", name)
		}
		return nil
	}}
}

func RegisterHealthRoutes(app fiber.Router, probes ...Probe) {
	app.Get("/livez", LivezHandler())
	app.Get("/readyz", ReadyzHandler(probes...))
}

func RegisterMetricsRoute(app fiber.Router, metrics *observability.Metrics) {
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
}

func LivezHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "ok",
		})
	}
}

func ReadyzHandler(probes ...Probe) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), readinessTimeout)
		defer cancel()

		checks := fiber.Map{}
		ready := true
		for _, p := range probes {
			status := "ok"
			if err := p.Check(ctx); err != nil {
				status = "down"
				ready = false
			}
			checks[p.Name] = status
		}

		status := "ready"
		statusCode := fiber.StatusOK
		if !ready {
			status = "not_ready"
			statusCode = fiber.StatusServiceUnavailable
		}

		return c.Status(statusCode).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}
