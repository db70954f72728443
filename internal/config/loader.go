package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SWARMARB_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SWARMARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Detector ──
	setFloat64(&cfg.Detector.MinProfitThresholdPct, "SWARMARB_DETECTOR_MIN_PROFIT_THRESHOLD_PCT")

	// ── Risk ──
	setFloat64(&cfg.Risk.MaxRiskScore, "SWARMARB_RISK_MAX_RISK_SCORE")
	setDuration(&cfg.Risk.AnalysisTimeout, "SWARMARB_RISK_ANALYSIS_TIMEOUT")

	// ── Swarm ──
	setInt(&cfg.Swarm.MaxAgents, "SWARMARB_SWARM_MAX_AGENTS")
	setFloat64(&cfg.Swarm.ScaleUpThreshold, "SWARMARB_SWARM_SCALE_UP_THRESHOLD")
	setFloat64(&cfg.Swarm.ScaleDownThreshold, "SWARMARB_SWARM_SCALE_DOWN_THRESHOLD")
	setInt(&cfg.Swarm.ScaleUpCount, "SWARMARB_SWARM_SCALE_UP_COUNT")
	setStr(&cfg.Swarm.ScaleUpRole, "SWARMARB_SWARM_SCALE_UP_ROLE")
	setFloat64(&cfg.Swarm.HighLoadThreshold, "SWARMARB_SWARM_HIGH_LOAD_THRESHOLD")
	setFloat64(&cfg.Swarm.LowLoadThreshold, "SWARMARB_SWARM_LOW_LOAD_THRESHOLD")

	// ── Consensus ──
	setFloat64(&cfg.Consensus.Threshold, "SWARMARB_CONSENSUS_THRESHOLD")
	setDuration(&cfg.Consensus.VoteTimeout, "SWARMARB_CONSENSUS_VOTE_TIMEOUT")

	// ── Bridge ──
	setStringSlice(&cfg.Bridge.SupportedChains, "SWARMARB_BRIDGE_SUPPORTED_CHAINS")
	setDuration(&cfg.Bridge.MonitorInterval, "SWARMARB_BRIDGE_MONITOR_INTERVAL")
	setDuration(&cfg.Bridge.RetentionWindow, "SWARMARB_BRIDGE_RETENTION_WINDOW")
	setStr(&cfg.Bridge.APISecret, "SWARMARB_BRIDGE_API_SECRET")
	setStr(&cfg.Bridge.EncryptedSecretPath, "SWARMARB_BRIDGE_ENCRYPTED_SECRET_PATH")
	setStr(&cfg.Bridge.SecretPassword, "SWARMARB_BRIDGE_SECRET_PASSWORD")

	// ── Pipeline ──
	setDuration(&cfg.Pipeline.CycleInterval, "SWARMARB_PIPELINE_CYCLE_INTERVAL")
	setInt(&cfg.Pipeline.MaxInFlight, "SWARMARB_PIPELINE_MAX_IN_FLIGHT")
	setFloat64(&cfg.Pipeline.TradeAmount, "SWARMARB_PIPELINE_TRADE_AMOUNT")
	setStr(&cfg.Pipeline.BridgeRecipient, "SWARMARB_PIPELINE_BRIDGE_RECIPIENT")
	setDuration(&cfg.Pipeline.InitialBackoff, "SWARMARB_PIPELINE_INITIAL_BACKOFF")
	setDuration(&cfg.Pipeline.MaxBackoff, "SWARMARB_PIPELINE_MAX_BACKOFF")
	setDuration(&cfg.Pipeline.StatusInterval, "SWARMARB_PIPELINE_STATUS_INTERVAL")
	setInt(&cfg.Pipeline.ArchiveRetentionDays, "SWARMARB_PIPELINE_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Pipeline.ArchiveCron, "SWARMARB_PIPELINE_ARCHIVE_CRON")

	// ── Feed ──
	setStr(&cfg.Feed.Source, "SWARMARB_FEED_SOURCE")
	setStr(&cfg.Feed.WsURL, "SWARMARB_FEED_WS_URL")
	setDuration(&cfg.Feed.MaxAge, "SWARMARB_FEED_MAX_AGE")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "SWARMARB_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "SWARMARB_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "SWARMARB_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SWARMARB_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SWARMARB_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SWARMARB_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SWARMARB_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SWARMARB_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SWARMARB_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SWARMARB_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SWARMARB_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "SWARMARB_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "SWARMARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SWARMARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SWARMARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SWARMARB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SWARMARB_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SWARMARB_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.CacheTTL, "SWARMARB_REDIS_CACHE_TTL")
	setDuration(&cfg.Redis.LockTTL, "SWARMARB_REDIS_LOCK_TTL")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "SWARMARB_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "SWARMARB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SWARMARB_S3_REGION")
	setStr(&cfg.S3.Bucket, "SWARMARB_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SWARMARB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SWARMARB_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SWARMARB_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SWARMARB_S3_FORCE_PATH_STYLE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SWARMARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SWARMARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SWARMARB_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SWARMARB_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "SWARMARB_MODE")
	setStr(&cfg.LogLevel, "SWARMARB_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
