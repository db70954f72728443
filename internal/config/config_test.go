package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	cfg.Pipeline.BridgeRecipient = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeConfigFile(t, `
mode = "detect"
log_level = "debug"

[detector]
min_profit_threshold_pct = 1.5

[consensus]
threshold = 0.75
vote_timeout = "2s"

[swarm]
max_agents = 12

[feed]
source = "ws"
ws_url = "wss://feed.example.com/prices"

[[feed.buckets]]
venue = "uniswap"
chain = "ethereum"

[[feed.buckets]]
venue = "pancakeswap"
chain = "bsc"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "detect" {
		t.Errorf("mode = %q, want detect", cfg.Mode)
	}
	if cfg.Detector.MinProfitThresholdPct != 1.5 {
		t.Errorf("min_profit_threshold_pct = %g, want 1.5", cfg.Detector.MinProfitThresholdPct)
	}
	if cfg.Consensus.VoteTimeout.Duration != 2*time.Second {
		t.Errorf("vote_timeout = %v, want 2s", cfg.Consensus.VoteTimeout.Duration)
	}
	if cfg.Swarm.MaxAgents != 12 {
		t.Errorf("max_agents = %d, want 12", cfg.Swarm.MaxAgents)
	}
	if len(cfg.Feed.Buckets) != 2 || cfg.Feed.Buckets[1].Chain != "bsc" {
		t.Errorf("buckets = %+v, want uniswap/ethereum and pancakeswap/bsc", cfg.Feed.Buckets)
	}
	// Untouched sections keep their defaults.
	if cfg.Bridge.MonitorInterval.Duration != 10*time.Second {
		t.Errorf("monitor_interval = %v, want default 10s", cfg.Bridge.MonitorInterval.Duration)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("merged config should validate: %v", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, `mode = "detect"`)

	t.Setenv("SWARMARB_MODE", "monitor")
	t.Setenv("SWARMARB_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("SWARMARB_RISK_MAX_RISK_SCORE", "55")
	t.Setenv("SWARMARB_PIPELINE_CYCLE_INTERVAL", "45s")
	t.Setenv("SWARMARB_BRIDGE_SUPPORTED_CHAINS", "ethereum, polygon ,arbitrum")
	t.Setenv("SWARMARB_POSTGRES_ENABLED", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "monitor" {
		t.Errorf("mode = %q, want monitor (env wins over file)", cfg.Mode)
	}
	if cfg.Redis.Addr != "redis.internal:6380" {
		t.Errorf("redis addr = %q", cfg.Redis.Addr)
	}
	if cfg.Risk.MaxRiskScore != 55 {
		t.Errorf("max_risk_score = %g, want 55", cfg.Risk.MaxRiskScore)
	}
	if cfg.Pipeline.CycleInterval.Duration != 45*time.Second {
		t.Errorf("cycle_interval = %v, want 45s", cfg.Pipeline.CycleInterval.Duration)
	}
	want := []string{"ethereum", "polygon", "arbitrum"}
	if len(cfg.Bridge.SupportedChains) != 3 {
		t.Fatalf("supported_chains = %v, want %v", cfg.Bridge.SupportedChains, want)
	}
	for i, chain := range want {
		if cfg.Bridge.SupportedChains[i] != chain {
			t.Errorf("supported_chains[%d] = %q, want %q", i, cfg.Bridge.SupportedChains[i], chain)
		}
	}
	if !cfg.Postgres.Enabled {
		t.Error("postgres not enabled by env override")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "backtest"
	cfg.Consensus.Threshold = 1.5
	cfg.Pipeline.MaxInFlight = 0
	cfg.Detector.MinProfitThresholdPct = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, fragment := range []string{"unknown mode", "consensus", "max_in_flight", "min_profit_threshold_pct"} {
		if !strings.Contains(msg, fragment) {
			t.Errorf("error %q missing fragment %q", msg, fragment)
		}
	}
}

func TestValidateRejections(t *testing.T) {
	base := func() Config {
		cfg := Defaults()
		cfg.Pipeline.BridgeRecipient = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"
		return cfg
	}

	tests := []struct {
		name     string
		mutate   func(*Config)
		fragment string
	}{
		{"unknown role", func(c *Config) { c.Swarm.InitialAgents["janitor"] = 1 }, "unknown role"},
		{"initial exceeds max", func(c *Config) { c.Swarm.MaxAgents = 5 }, "exceed max_agents"},
		{"ws without url", func(c *Config) { c.Feed.Source = "ws" }, "ws_url"},
		{"one bucket", func(c *Config) { c.Feed.Buckets = c.Feed.Buckets[:1] }, "two buckets"},
		{"no chains", func(c *Config) { c.Bridge.SupportedChains = nil }, "supported_chains"},
		{"encrypted secret without password", func(c *Config) { c.Bridge.EncryptedSecretPath = "/etc/swarmarb/secret.json" }, "secret_password"},
		{"run without recipient", func(c *Config) { c.Pipeline.BridgeRecipient = "" }, "bridge_recipient"},
		{"s3 without postgres", func(c *Config) { c.S3.Enabled = true }, "requires postgres"},
		{"redis enabled without addr", func(c *Config) { c.Redis.Enabled = true; c.Redis.Addr = "" }, "redis: addr"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.fragment) {
				t.Errorf("error %q missing fragment %q", err.Error(), tc.fragment)
			}
		})
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "hunter2"
	cfg.Redis.Password = "sekrit"
	cfg.S3.SecretKey = "aws-secret"
	cfg.Bridge.APISecret = "bridge-key"
	cfg.Notify.TelegramToken = "tg-token"

	red := RedactedConfig(&cfg)

	for name, got := range map[string]string{
		"postgres password": red.Postgres.Password,
		"redis password":    red.Redis.Password,
		"s3 secret key":     red.S3.SecretKey,
		"bridge api secret": red.Bridge.APISecret,
		"telegram token":    red.Notify.TelegramToken,
	} {
		if got != "***" {
			t.Errorf("%s = %q, want ***", name, got)
		}
	}

	// Originals untouched.
	if cfg.Postgres.Password != "hunter2" {
		t.Error("redaction mutated the original config")
	}

	// Empty secrets stay empty rather than implying a value exists.
	if red.Postgres.DSN != "" {
		t.Errorf("empty DSN redacted to %q", red.Postgres.DSN)
	}

	// Mutating the copy's collections must not leak into the original.
	red.Bridge.SupportedChains[0] = "mutated"
	if cfg.Bridge.SupportedChains[0] == "mutated" {
		t.Error("redacted copy shares supported_chains backing array")
	}
}
