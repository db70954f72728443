// Package config defines the top-level configuration for the swarm arbitrage
// coordinator and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by SWARMARB_* environment
// variables.
type Config struct {
	Detector  DetectorConfig  `toml:"detector"`
	Risk      RiskConfig      `toml:"risk"`
	Swarm     SwarmConfig     `toml:"swarm"`
	Consensus ConsensusConfig `toml:"consensus"`
	Bridge    BridgeConfig    `toml:"bridge"`
	Pipeline  PipelineConfig  `toml:"pipeline"`
	Feed      FeedConfig      `toml:"feed"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// DetectorConfig holds opportunity detection parameters.
type DetectorConfig struct {
	// MinProfitThresholdPct is the minimum cross-venue spread, in percent,
	// for a token to become an opportunity.
	MinProfitThresholdPct float64 `toml:"min_profit_threshold_pct"`

	// FeeEstimates maps token symbol to a flat per-trade fee estimate in
	// quote units.
	FeeEstimates map[string]float64 `toml:"fee_estimates"`
}

// RiskConfig holds risk scoring parameters.
type RiskConfig struct {
	MaxRiskScore    float64  `toml:"max_risk_score"`
	AnalysisTimeout duration `toml:"analysis_timeout"`
}

// SwarmConfig holds agent pool parameters.
type SwarmConfig struct {
	MaxAgents int `toml:"max_agents"`

	// InitialAgents maps role name to the number of agents seeded at
	// startup. The coordinator is always added on top.
	InitialAgents map[string]int `toml:"initial_agents"`

	ScaleUpThreshold   float64 `toml:"scale_up_threshold"`
	ScaleDownThreshold float64 `toml:"scale_down_threshold"`
	ScaleUpCount       int     `toml:"scale_up_count"`
	ScaleUpRole        string  `toml:"scale_up_role"`
	HighLoadThreshold  float64 `toml:"high_load_threshold"`
	LowLoadThreshold   float64 `toml:"low_load_threshold"`
}

// ConsensusConfig holds consensus round parameters.
type ConsensusConfig struct {
	// Threshold is the minimum approve ratio for a round to pass.
	Threshold   float64  `toml:"threshold"`
	VoteTimeout duration `toml:"vote_timeout"`
}

// BridgeConfig holds cross-chain bridge routing parameters.
type BridgeConfig struct {
	SupportedChains []string `toml:"supported_chains"`
	MonitorInterval duration `toml:"monitor_interval"`
	RetentionWindow duration `toml:"retention_window"`

	// Provider API credential: either the raw secret, or an encrypted file
	// plus the password that unlocks it.
	APISecret           string `toml:"api_secret"`
	EncryptedSecretPath string `toml:"encrypted_secret_path"`
	SecretPassword      string `toml:"secret_password"`
}

// PipelineConfig holds coordination loop parameters.
type PipelineConfig struct {
	CycleInterval   duration `toml:"cycle_interval"`
	MaxInFlight     int      `toml:"max_in_flight"`
	TradeAmount     float64  `toml:"trade_amount"`
	BridgeRecipient string   `toml:"bridge_recipient"`
	InitialBackoff  duration `toml:"initial_backoff"`
	MaxBackoff      duration `toml:"max_backoff"`

	StatusInterval       duration `toml:"status_interval"`
	ArchiveRetentionDays int      `toml:"archive_retention_days"`
	ArchiveCron          string   `toml:"archive_cron"`
}

// BucketSpec names one venue/chain price bucket to watch.
type BucketSpec struct {
	Venue string `toml:"venue"`
	Chain string `toml:"chain"`
}

// FeedConfig holds market data source parameters.
type FeedConfig struct {
	// Source selects the snapshot source: "ws" or "static".
	Source  string       `toml:"source"`
	Buckets []BucketSpec `toml:"buckets"`

	// WsURL and MaxAge apply to the ws source.
	WsURL  string   `toml:"ws_url"`
	MaxAge duration `toml:"max_age"`

	// Prices seeds the static source, keyed by "venue_chain" then token.
	Prices map[string]map[string]float64 `toml:"prices"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	CacheTTL   duration `toml:"cache_ttl"`
	LockTTL    duration `toml:"lock_ttl"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Detector: DetectorConfig{
			MinProfitThresholdPct: 0.5,
			FeeEstimates:          map[string]float64{},
		},
		Risk: RiskConfig{
			MaxRiskScore:    70,
			AnalysisTimeout: duration{5 * time.Second},
		},
		Swarm: SwarmConfig{
			MaxAgents: 10,
			InitialAgents: map[string]int{
				"market_analysis":      2,
				"arbitrage_detection":  2,
				"risk_assessment":      1,
				"execution":            1,
				"portfolio_management": 1,
			},
			ScaleUpThreshold:   0.9,
			ScaleDownThreshold: 0.3,
			ScaleUpCount:       2,
			ScaleUpRole:        "market_analysis",
			HighLoadThreshold:  0.8,
			LowLoadThreshold:   0.2,
		},
		Consensus: ConsensusConfig{
			Threshold:   0.66,
			VoteTimeout: duration{5 * time.Second},
		},
		Bridge: BridgeConfig{
			SupportedChains: []string{"ethereum", "polygon", "arbitrum", "optimism", "bsc"},
			MonitorInterval: duration{10 * time.Second},
			RetentionWindow: duration{24 * time.Hour},
		},
		Pipeline: PipelineConfig{
			CycleInterval:        duration{30 * time.Second},
			MaxInFlight:          4,
			TradeAmount:          100,
			InitialBackoff:       duration{2 * time.Second},
			MaxBackoff:           duration{2 * time.Minute},
			StatusInterval:       duration{1 * time.Minute},
			ArchiveRetentionDays: 90,
			ArchiveCron:          "0 3 1 * *",
		},
		Feed: FeedConfig{
			Source: "static",
			Buckets: []BucketSpec{
				{Venue: "uniswap", Chain: "ethereum"},
				{Venue: "quickswap", Chain: "polygon"},
			},
			MaxAge: duration{30 * time.Second},
			Prices: map[string]map[string]float64{},
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "swarmarb",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			CacheTTL:   duration{10 * time.Minute},
			LockTTL:    duration{2 * time.Minute},
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "swarmarb-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Notify: NotifyConfig{
			Events: []string{"arb_executed", "transfer_failed", "error"},
		},
		Mode:     "run",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"run":     true,
	"detect":  true,
	"monitor": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validRoles enumerates the agent role names accepted in swarm config.
var validRoles = map[string]bool{
	"market_analysis":      true,
	"arbitrage_detection":  true,
	"risk_assessment":      true,
	"execution":            true,
	"portfolio_management": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: run, detect, monitor)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Detector
	if c.Detector.MinProfitThresholdPct <= 0 {
		errs = append(errs, "detector: min_profit_threshold_pct must be > 0")
	}

	// Risk
	if c.Risk.MaxRiskScore <= 0 || c.Risk.MaxRiskScore > 100 {
		errs = append(errs, fmt.Sprintf("risk: max_risk_score must be in (0, 100], got %g", c.Risk.MaxRiskScore))
	}

	// Swarm
	if c.Swarm.MaxAgents < 2 {
		errs = append(errs, "swarm: max_agents must be >= 2 (coordinator plus one worker)")
	}
	initial := 1 // coordinator
	for role, n := range c.Swarm.InitialAgents {
		if !validRoles[role] {
			errs = append(errs, fmt.Sprintf("swarm: unknown role %q in initial_agents", role))
		}
		if n < 0 {
			errs = append(errs, fmt.Sprintf("swarm: initial_agents[%s] must be >= 0, got %d", role, n))
		}
		initial += n
	}
	if initial > c.Swarm.MaxAgents {
		errs = append(errs, fmt.Sprintf("swarm: initial agents (%d incl. coordinator) exceed max_agents (%d)", initial, c.Swarm.MaxAgents))
	}
	if c.Swarm.ScaleUpRole != "" && !validRoles[c.Swarm.ScaleUpRole] {
		errs = append(errs, fmt.Sprintf("swarm: unknown scale_up_role %q", c.Swarm.ScaleUpRole))
	}
	if c.Swarm.ScaleDownThreshold >= c.Swarm.ScaleUpThreshold {
		errs = append(errs, "swarm: scale_down_threshold must be below scale_up_threshold")
	}

	// Consensus
	if c.Consensus.Threshold <= 0 || c.Consensus.Threshold > 1 {
		errs = append(errs, fmt.Sprintf("consensus: threshold must be in (0, 1], got %g", c.Consensus.Threshold))
	}

	// Bridge
	if len(c.Bridge.SupportedChains) == 0 {
		errs = append(errs, "bridge: supported_chains must not be empty")
	}
	if c.Bridge.EncryptedSecretPath != "" && c.Bridge.SecretPassword == "" {
		errs = append(errs, "bridge: secret_password is required when encrypted_secret_path is set")
	}

	// Pipeline
	if c.Pipeline.MaxInFlight < 1 {
		errs = append(errs, "pipeline: max_in_flight must be >= 1")
	}
	if c.Pipeline.TradeAmount <= 0 {
		errs = append(errs, "pipeline: trade_amount must be > 0")
	}
	if c.Mode == "run" && c.Pipeline.BridgeRecipient == "" {
		errs = append(errs, "pipeline: bridge_recipient must be set for run mode")
	}
	if c.Pipeline.ArchiveRetentionDays < 1 {
		errs = append(errs, "pipeline: archive_retention_days must be >= 1")
	}

	// Feed
	switch c.Feed.Source {
	case "static", "ws":
	default:
		errs = append(errs, fmt.Sprintf("feed: unknown source %q (valid: static, ws)", c.Feed.Source))
	}
	if c.Feed.Source == "ws" && c.Feed.WsURL == "" {
		errs = append(errs, "feed: ws_url must be set for the ws source")
	}
	if len(c.Feed.Buckets) < 2 {
		errs = append(errs, "feed: at least two buckets are required to detect a spread")
	}
	for i, b := range c.Feed.Buckets {
		if b.Venue == "" || b.Chain == "" {
			errs = append(errs, fmt.Sprintf("feed: buckets[%d] must set both venue and chain", i))
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if !c.Postgres.Enabled {
			errs = append(errs, "s3: archival requires postgres to be enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
