package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/dispute-autopilot/internal/config"
	"github.com/kursadbilgin/dispute-autopilot/internal/drafting"
	infranats "github.com/kursadbilgin/dispute-autopilot/internal/infra/nats"
	"github.com/kursadbilgin/dispute-autopilot/internal/infra/objectstore"
	"github.com/kursadbilgin/dispute-autopilot/internal/infra/postgresql"
	"github.com/kursadbilgin/dispute-autopilot/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/dispute-autopilot/internal/infra/redis"
	"github.com/kursadbilgin/dispute-autopilot/internal/observability"
	"github.com/kursadbilgin/dispute-autopilot/internal/queue"
	"github.com/kursadbilgin/dispute-autopilot/internal/repository"
	"github.com/kursadbilgin/dispute-autopilot/internal/service"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app holds every connection and service a command may need.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *observability.Metrics

	db     *gorm.DB
	sqlDB  *sql.DB
	rdb    *redis.Client
	rabbit *queue.RabbitMQ
	nats   *infranats.Client

	publisher *queue.RabbitMQPublisher
	consumer  *queue.RabbitMQConsumer

	composer   *service.LetterComposer
	disputes   *service.DisputeService
	followUps  *service.FollowUpService
	automation *service.AutomationService
	autopilot  *service.Autopilot
	risk       *service.RiskDetector
	dispatcher *service.FollowUpDispatcher
	sequencing *service.SequencingWorker

	closers []func()
}

func loadBase() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (*gorm.DB, *sql.DB, error) {
	db, err := postgresql.NewPostgres(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres initialization failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	return db, sqlDB, nil
}

// bootstrap connects to every backing service, applies pending migrations and
// builds the service graph.
func bootstrap(ctx context.Context, cfg *config.Config, logger *zap.Logger) (a *app, err error) {
	a = &app{
		cfg:     cfg,
		logger:  logger,
		metrics: observability.NewMetrics(),
	}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	a.db, a.sqlDB, err = openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = a.sqlDB.Close() })

	if err = migrations.Migrate(a.db); err != nil {
		return nil, fmt.Errorf("database migrations failed: %w", err)
	}

	a.rdb, err = infraredis.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis initialization failed: %w", err)
	}
	a.closers = append(a.closers, func() { _ = a.rdb.Close() })

	a.rabbit, err = queue.NewRabbitMQ(ctx, cfg.RabbitMQURL)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq initialization failed: %w", err)
	}
	a.closers = append(a.closers, func() { _ = a.rabbit.Close() })

	a.nats, err = infranats.Connect(ctx, cfg.NATSURL, logger)
	if err != nil {
		return nil, fmt.Errorf("nats initialization failed: %w", err)
	}
	a.closers = append(a.closers, a.nats.Close)

	a.publisher = queue.NewRabbitMQPublisher(a.rabbit)
	a.consumer = queue.NewRabbitMQConsumer(a.rabbit, cfg.AutopilotConcurrency, logger)
	a.closers = append(a.closers,
		func() { _ = a.publisher.Close() },
		func() { _ = a.consumer.Close() },
	)

	if err = a.buildServices(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) buildServices(ctx context.Context) error {
	cfg := a.cfg

	clientRepo := repository.NewGormClientRepo(a.db)
	disputeRepo := repository.NewGormDisputeRepo(a.db)
	followUpRepo := repository.NewGormFollowUpRepo(a.db)
	logRepo := repository.NewGormAutomationLogRepo(a.db)
	settingsRepo := repository.NewGormSettingsRepo(a.db)
	riskRepo := repository.NewGormRiskSignalRepo(a.db)

	owner := uuid.NewString()
	locker, err := infraredis.NewRedisLocker(a.rdb, owner)
	if err != nil {
		return fmt.Errorf("redis locker init failed: %w", err)
	}
	limiter, err := infraredis.NewRedisRateLimiter(a.rdb, cfg.DraftingRatePerSec)
	if err != nil {
		return fmt.Errorf("redis rate limiter init failed: %w", err)
	}

	store, err := openObjectStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("object store init failed: %w", err)
	}
	a.closers = append(a.closers, func() { _ = store.Close() })

	drafter, err := drafting.New(drafting.Options{
		Provider: cfg.DraftingProvider,
		APIKey:   cfg.DraftingAPIKey,
		Model:    cfg.DraftingModel,
		Endpoint: cfg.DraftingEndpoint,
		Timeout:  cfg.DraftingTimeout,
	}, limiter)
	if err != nil {
		return fmt.Errorf("drafting provider init failed: %w", err)
	}

	a.composer, err = service.NewLetterComposer(disputeRepo, clientRepo, store, drafter, cfg.DraftingTimeout, a.logger)
	if err != nil {
		return fmt.Errorf("letter composer init failed: %w", err)
	}
	a.composer.SetMetrics(a.metrics)

	a.disputes, err = service.NewDisputeService(disputeRepo, settingsRepo, a.composer, a.logger)
	if err != nil {
		return fmt.Errorf("dispute service init failed: %w", err)
	}

	a.followUps, err = service.NewFollowUpService(followUpRepo, disputeRepo, cfg.FollowUpGraceWindow, a.logger)
	if err != nil {
		return fmt.Errorf("follow-up service init failed: %w", err)
	}
	a.followUps.SetMetrics(a.metrics)

	a.automation, err = service.NewAutomationService(settingsRepo, logRepo, a.logger)
	if err != nil {
		return fmt.Errorf("automation service init failed: %w", err)
	}

	reportLocation, err := cfg.ReportLocation()
	if err != nil {
		return err
	}
	a.autopilot, err = service.NewAutopilot(clientRepo, disputeRepo, logRepo, settingsRepo, locker, a.publisher, service.AutopilotConfig{
		Interval:       cfg.AutopilotInterval,
		Concurrency:    cfg.AutopilotConcurrency,
		SequencingDays: cfg.AutopilotSequencingDays,
		PriorityDays:   cfg.AutopilotPriorityDays,
		ReportLocation: reportLocation,
		SweepLockTTL:   cfg.AutopilotSweepLockTTL,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("autopilot init failed: %w", err)
	}
	a.autopilot.SetMetrics(a.metrics)

	riskPublisher, err := infranats.NewRiskSignalPublisher(a.nats)
	if err != nil {
		return fmt.Errorf("risk publisher init failed: %w", err)
	}
	a.risk, err = service.NewRiskDetector(clientRepo, riskRepo, settingsRepo, riskPublisher, service.RiskConfig{
		Interval:      cfg.RiskInterval,
		SupportWindow: cfg.RiskSupportWindow,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("risk detector init failed: %w", err)
	}
	a.risk.SetMetrics(a.metrics)

	a.dispatcher, err = service.NewFollowUpDispatcher(followUpRepo, settingsRepo, a.publisher, cfg.DispatchInterval, cfg.DispatchLimit, a.logger)
	if err != nil {
		return fmt.Errorf("follow-up dispatcher init failed: %w", err)
	}
	a.dispatcher.SetMetrics(a.metrics)

	minRoundAge := time.Duration(cfg.AutopilotSequencingDays) * 24 * time.Hour
	a.sequencing, err = service.NewSequencingWorker(disputeRepo, a.disputes, a.consumer, cfg.AutopilotAutoAdvance, minRoundAge, cfg.AutopilotConcurrency, a.logger)
	if err != nil {
		return fmt.Errorf("sequencing worker init failed: %w", err)
	}
	a.sequencing.SetMetrics(a.metrics)

	return nil
}

// openObjectStore uses OBJECT_STORE_URL when set and a filesystem bucket under
// OBJECT_STORE_DIR otherwise.
func openObjectStore(ctx context.Context, cfg *config.Config) (*objectstore.BlobStore, error) {
	if strings.TrimSpace(cfg.ObjectStoreURL) != "" {
		return objectstore.Open(ctx, cfg.ObjectStoreURL)
	}
	return objectstore.NewFileStore(cfg.ObjectStoreDir)
}

// close releases connections in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
