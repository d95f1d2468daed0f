package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN    string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL    string `env:"RABBITMQ_URL,required=true"`
	RedisURL       string `env:"REDIS_URL,required=true"`
	NATSURL        string `env:"NATS_URL,default=nats://localhost:4222"`
	ObjectStoreDir string `env:"OBJECT_STORE_DIR,default=./data/letters"`
	ObjectStoreURL string `env:"OBJECT_STORE_URL"`
	APIPort        int    `env:"API_PORT,default=8080"`
	LogLevel       string `env:"LOG_LEVEL,default=info"`

	DraftingProvider   string        `env:"DRAFTING_PROVIDER,default=none"`
	DraftingAPIKey     string        `env:"DRAFTING_API_KEY"`
	DraftingModel      string        `env:"DRAFTING_MODEL"`
	DraftingEndpoint   string        `env:"DRAFTING_ENDPOINT"`
	DraftingTimeout    time.Duration `env:"DRAFTING_TIMEOUT,default=30s"`
	DraftingRatePerSec int           `env:"DRAFTING_RATE_PER_SEC,default=5"`

	FollowUpGraceWindow time.Duration `env:"FOLLOWUP_GRACE_WINDOW,default=5m"`
	DispatchInterval    time.Duration `env:"DISPATCH_INTERVAL,default=30s"`
	DispatchLimit       int           `env:"DISPATCH_LIMIT,default=100"`

	AutopilotInterval       time.Duration `env:"AUTOPILOT_INTERVAL,default=6h"`
	AutopilotConcurrency    int           `env:"AUTOPILOT_CONCURRENCY,default=8"`
	AutopilotSequencingDays int           `env:"AUTOPILOT_SEQUENCING_DAYS,default=7"`
	AutopilotPriorityDays   int           `env:"AUTOPILOT_PRIORITY_DAYS,default=14"`
	AutopilotReportTZ       string        `env:"AUTOPILOT_REPORT_TZ,default=UTC"`
	AutopilotAutoAdvance    bool          `env:"AUTOPILOT_AUTO_ADVANCE,default=false"`
	AutopilotSweepLockTTL   time.Duration `env:"AUTOPILOT_SWEEP_LOCK_TTL,default=2h"`

	RiskInterval      time.Duration `env:"RISK_INTERVAL,default=1h"`
	RiskSupportWindow time.Duration `env:"RISK_SUPPORT_WINDOW,default=168h"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ReportLocation resolves the time zone that defines a calendar day for the daily report.
func (c *Config) ReportLocation() (*time.Location, error) {
	name := strings.TrimSpace(c.AutopilotReportTZ)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid AUTOPILOT_REPORT_TZ %q: %w", name, err)
	}
	return loc, nil
}

func (c *Config) validate() error {
	c.DraftingProvider = strings.ToLower(strings.TrimSpace(c.DraftingProvider))
	switch c.DraftingProvider {
	case "", "none":
		c.DraftingProvider = "none"
	case "openai", "anthropic":
		if strings.TrimSpace(c.DraftingAPIKey) == "" {
			return fmt.Errorf("failed to load config: DRAFTING_API_KEY is required for provider %q", c.DraftingProvider)
		}
	case "http":
		if strings.TrimSpace(c.DraftingEndpoint) == "" {
			return fmt.Errorf("failed to load config: DRAFTING_ENDPOINT is required for provider %q", c.DraftingProvider)
		}
	default:
		return fmt.Errorf("failed to load config: unsupported DRAFTING_PROVIDER %q", c.DraftingProvider)
	}

	if c.AutopilotSequencingDays < 1 || c.AutopilotPriorityDays < 1 {
		return fmt.Errorf("failed to load config: autopilot thresholds must be at least one day")
	}
	if _, err := c.ReportLocation(); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	return nil
}
