package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Google     GoogleConfig     `yaml:"google" mapstructure:"google"`
	Enrichment EnrichmentConfig `yaml:"enrichment" mapstructure:"enrichment"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	AutoPilot  AutoPilotConfig  `yaml:"autopilot" mapstructure:"autopilot"`
	Campaign   CampaignConfig   `yaml:"campaign" mapstructure:"campaign"`
	SES        SESConfig        `yaml:"ses" mapstructure:"ses"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the lead store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// GoogleConfig holds Places and Geocoding API settings.
type GoogleConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	GeocodeURL string `yaml:"geocode_url" mapstructure:"geocode_url"`
	MaxResults int    `yaml:"max_results" mapstructure:"max_results"`
	Language   string `yaml:"language" mapstructure:"language"`
}

// EnrichmentConfig configures the enrichment endpoint and worker pacing.
type EnrichmentConfig struct {
	BaseURL          string `yaml:"base_url" mapstructure:"base_url"`
	Key              string `yaml:"key" mapstructure:"key"`
	DelayMs          int    `yaml:"delay_ms" mapstructure:"delay_ms"`
	TimeoutSecs      int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	BreakerFailures  int    `yaml:"breaker_failures" mapstructure:"breaker_failures"`
	BreakerResetSecs int    `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// ScoringConfig configures the scoring engine.
type ScoringConfig struct {
	WeightsFile  string  `yaml:"weights_file" mapstructure:"weights_file"`
	DefaultScore float64 `yaml:"default_score" mapstructure:"default_score"`
}

// AutoPilotConfig bounds unattended runs.
type AutoPilotConfig struct {
	MaxLeadsCap     int     `yaml:"max_leads_cap" mapstructure:"max_leads_cap"`
	DefaultMaxLeads int     `yaml:"default_max_leads" mapstructure:"default_max_leads"`
	DefaultMinScore float64 `yaml:"default_min_score" mapstructure:"default_min_score"`
	LockTTLSecs     int     `yaml:"lock_ttl_secs" mapstructure:"lock_ttl_secs"`
}

// CampaignConfig selects and configures the campaign dispatcher.
type CampaignConfig struct {
	Driver       string `yaml:"driver" mapstructure:"driver"`
	WebhookURL   string `yaml:"webhook_url" mapstructure:"webhook_url"`
	WebhookToken string `yaml:"webhook_token" mapstructure:"webhook_token"`
	NotionToken  string `yaml:"notion_token" mapstructure:"notion_token"`
	NotionDB     string `yaml:"notion_db" mapstructure:"notion_db"`
}

// SESConfig holds AWS SES v2 credentials for contact-list campaigns.
type SESConfig struct {
	Region    string `yaml:"region" mapstructure:"region"`
	AccessKey string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey string `yaml:"secret_key" mapstructure:"secret_key"`
	Topic     string `yaml:"topic" mapstructure:"topic"`
}

// SalesforceConfig holds Salesforce JWT auth settings for the lead mirror.
type SalesforceConfig struct {
	Enabled   bool    `yaml:"enabled" mapstructure:"enabled"`
	ClientID  string  `yaml:"client_id" mapstructure:"client_id"`
	Username  string  `yaml:"username" mapstructure:"username"`
	KeyPath   string  `yaml:"key_path" mapstructure:"key_path"`
	LoginURL  string  `yaml:"login_url" mapstructure:"login_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// RedisConfig enables the cross-replica auto-pilot guard.
type RedisConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// RetryConfig controls wholesale retry of lead persistence.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// PricingConfig holds per-call provider pricing (USD).
type PricingConfig struct {
	SearchPerCall float64 `yaml:"search_per_call" mapstructure:"search_per_call"`
	EnrichPerCall float64 `yaml:"enrich_per_call" mapstructure:"enrich_per_call"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	APITokens      []string `yaml:"api_tokens" mapstructure:"api_tokens"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MonitoringConfig configures run-health alerting while serving.
type MonitoringConfig struct {
	Enabled                 bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL              string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs       int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours     int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold    float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	EnrichFailRateThreshold float64 `yaml:"enrich_fail_rate_threshold" mapstructure:"enrich_fail_rate_threshold"`
	CostThresholdUSD        float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("google.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("google.geocode_url", "https://maps.googleapis.com/maps/api/geocode/json")
	v.SetDefault("google.max_results", 20)
	v.SetDefault("enrichment.delay_ms", 500)
	v.SetDefault("enrichment.timeout_secs", 15)
	v.SetDefault("enrichment.breaker_failures", 5)
	v.SetDefault("enrichment.breaker_reset_secs", 30)
	v.SetDefault("scoring.default_score", 50)
	v.SetDefault("autopilot.max_leads_cap", 100)
	v.SetDefault("autopilot.default_max_leads", 20)
	v.SetDefault("autopilot.default_min_score", 70)
	v.SetDefault("autopilot.lock_ttl_secs", 900)
	v.SetDefault("campaign.driver", "none")
	v.SetDefault("ses.region", "us-east-1")
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.rate_limit", 5)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 5000)
	v.SetDefault("pricing.search_per_call", 0.032)
	v.SetDefault("pricing.enrich_per_call", 0.01)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.enrich_fail_rate_threshold", 0.5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the settings required by the given command are present.
// Known modes are "search", "enrich", "autopilot" and "serve".
func (c *Config) Validate(mode string) error {
	switch mode {
	case "search", "enrich", "autopilot", "serve", "store":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	var errs []string

	needSearch := mode == "search" || mode == "autopilot" || mode == "serve"
	needEnrich := mode == "enrich" || mode == "autopilot" || mode == "serve"

	if needSearch && c.Google.Key == "" {
		errs = append(errs, "google.key is required")
	}
	if needEnrich {
		if c.Enrichment.BaseURL == "" {
			errs = append(errs, "enrichment.base_url is required")
		}
		if c.Enrichment.DelayMs < 0 {
			errs = append(errs, "enrichment.delay_ms must be >= 0")
		}
	}
	if mode == "serve" {
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if len(c.Server.APITokens) == 0 {
			errs = append(errs, "server.api_tokens must contain at least one token")
		}
		if c.Monitoring.Enabled && c.Monitoring.WebhookURL == "" {
			errs = append(errs, "monitoring.webhook_url is required when monitoring is enabled")
		}
	}

	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for postgres")
		}
	case "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("unsupported store driver %q", c.Store.Driver))
	}

	switch c.Campaign.Driver {
	case "none", "":
	case "webhook":
		if c.Campaign.WebhookURL == "" {
			errs = append(errs, "campaign.webhook_url is required for webhook campaigns")
		}
	case "ses":
		if c.SES.Region == "" {
			errs = append(errs, "ses.region is required for ses campaigns")
		}
	case "notion":
		if c.Campaign.NotionToken == "" || c.Campaign.NotionDB == "" {
			errs = append(errs, "campaign.notion_token and campaign.notion_db are required for notion campaigns")
		}
	default:
		errs = append(errs, fmt.Sprintf("unsupported campaign driver %q", c.Campaign.Driver))
	}

	if c.Salesforce.Enabled && c.Salesforce.ClientID == "" {
		errs = append(errs, "salesforce.client_id is required when the mirror is enabled")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
