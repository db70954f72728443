package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// Bridge
	out.Bridge = cfg.Bridge
	redact(&out.Bridge.APISecret)
	redact(&out.Bridge.SecretPassword)

	// Postgres
	out.Postgres = cfg.Postgres
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	// Redis
	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	// S3
	out.S3 = cfg.S3
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	// Notify
	out.Notify = cfg.Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices and maps so callers cannot mutate the original through the
	// redacted copy.
	if cfg.Bridge.SupportedChains != nil {
		out.Bridge.SupportedChains = make([]string, len(cfg.Bridge.SupportedChains))
		copy(out.Bridge.SupportedChains, cfg.Bridge.SupportedChains)
	}
	if cfg.Notify.Events != nil {
		out.Notify.Events = make([]string, len(cfg.Notify.Events))
		copy(out.Notify.Events, cfg.Notify.Events)
	}
	if cfg.Feed.Buckets != nil {
		out.Feed.Buckets = make([]BucketSpec, len(cfg.Feed.Buckets))
		copy(out.Feed.Buckets, cfg.Feed.Buckets)
	}
	if cfg.Detector.FeeEstimates != nil {
		out.Detector.FeeEstimates = make(map[string]float64, len(cfg.Detector.FeeEstimates))
		for k, v := range cfg.Detector.FeeEstimates {
			out.Detector.FeeEstimates[k] = v
		}
	}
	if cfg.Swarm.InitialAgents != nil {
		out.Swarm.InitialAgents = make(map[string]int, len(cfg.Swarm.InitialAgents))
		for k, v := range cfg.Swarm.InitialAgents {
			out.Swarm.InitialAgents[k] = v
		}
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
