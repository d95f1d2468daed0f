package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kursadbilgin/dispute-autopilot/internal/handler"
	"github.com/kursadbilgin/dispute-autopilot/internal/infra/postgresql/migrations"
	"github.com/kursadbilgin/dispute-autopilot/internal/transport"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// --- serve ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API together with the autopilot, risk detector, dispatcher and sequencing worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, logger, err := loadBase()
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		a, err := bootstrap(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.close()

		server, err := a.httpServer()
		if err != nil {
			return err
		}

		g, groupCtx := errgroup.WithContext(ctx)
		g.Go(func() error { return a.autopilot.Start(groupCtx) })
		g.Go(func() error { return a.risk.Start(groupCtx) })
		g.Go(func() error { return a.dispatcher.Start(groupCtx) })
		g.Go(func() error { return a.sequencing.Start(groupCtx) })
		g.Go(func() error {
			addr := fmt.Sprintf(":%d", cfg.APIPort)
			logger.Info("dispute-autopilot api started", zap.String("addr", addr), zap.String("version", version))
			return server.Listen(addr)
		})
		g.Go(func() error {
			<-groupCtx.Done()
			logger.Info("shutting down")
			return server.ShutdownWithTimeout(shutdownTimeout)
		})

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func (a *app) httpServer() (*fiber.App, error) {
	server := fiber.New(fiber.Config{
		AppName:               "dispute-autopilot",
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(a.logger),
	})
	server.Use(requestid.New())
	server.Use(a.metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(server,
		handler.PostgresProbe(a.sqlDB),
		handler.RedisProbe(a.rdb),
		handler.ConnectionProbe("rabbitmq", a.rabbit.IsConnected),
		handler.ConnectionProbe("nats", a.nats.IsConnected),
	)
	handler.RegisterMetricsRoute(server, a.metrics)

	if err := handler.RegisterDisputeRoutes(server, a.disputes, a.composer); err != nil {
		return nil, err
	}
	if err := handler.RegisterFollowUpRoutes(server, a.followUps); err != nil {
		return nil, err
	}
	if err := handler.RegisterAutomationRoutes(server, a.automation); err != nil {
		return nil, err
	}
	return server, nil
}

// --- migrate ---

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Apply pending database migrations.

Examples:
  dispute-autopilot migrate
  dispute-autopilot migrate --rollback`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rollback, _ := cmd.Flags().GetBool("rollback")

		cfg, logger, err := loadBase()
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		db, sqlDB, err := openDatabase(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		if rollback {
			if err := migrations.RollbackLast(db); err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}
			logger.Info("rolled back last migration")
			return nil
		}

		if err := migrations.Migrate(db); err != nil {
			return fmt.Errorf("database migrations failed: %w", err)
		}
		logger.Info("database migrations applied")
		return nil
	},
}

// --- sweep ---

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a single sweep and print its summary",
}

var sweepAutopilotCmd = &cobra.Command{
	Use:   "autopilot",
	Short: "Run one autopilot sweep over every client",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd, func(ctx context.Context, a *app) (any, error) {
			return a.autopilot.RunSweep(ctx)
		})
	},
}

var sweepRiskCmd = &cobra.Command{
	Use:   "risk",
	Short: "Run one risk detection sweep",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd, func(ctx context.Context, a *app) (any, error) {
			return a.risk.RunSweep(ctx)
		})
	},
}

func init() {
	migrateCmd.Flags().Bool("rollback", false, "Roll back the most recent migration instead of applying")

	sweepCmd.AddCommand(sweepAutopilotCmd)
	sweepCmd.AddCommand(sweepRiskCmd)
}

func runOnce(cmd *cobra.Command, sweep func(ctx context.Context, a *app) (any, error)) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := loadBase()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	a, err := bootstrap(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	result, err := sweep(ctx, a)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
