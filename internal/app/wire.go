package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/swarmarb/swarmarb/internal/blob/s3"
	"github.com/swarmarb/swarmarb/internal/cache/redis"
	"github.com/swarmarb/swarmarb/internal/config"
	"github.com/swarmarb/swarmarb/internal/crypto"
	"github.com/swarmarb/swarmarb/internal/domain"
	"github.com/swarmarb/swarmarb/internal/notify"
	"github.com/swarmarb/swarmarb/internal/store/postgres"
)

// Dependencies bundles every infrastructure dependency the application modes
// need to operate. It is constructed by Wire and torn down by the returned
// cleanup function. Fields stay nil when the corresponding backend is
// disabled; the coordination loop degrades to in-memory operation.
type Dependencies struct {
	// Stores
	Opportunities domain.OpportunityStore
	Transfers     domain.TransferStore

	// Caches
	Cache domain.SnapshotCache
	Bus   domain.SignalBus
	Locks domain.LockManager

	// Blob storage
	BlobWriter domain.BlobWriter
	Archiver   domain.Archiver

	// Notifications
	Notifier *notify.Notifier

	// BridgeAPISecret is the resolved provider credential, empty when none
	// is configured.
	BridgeAPISecret string
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Bridge provider credential ---
	if cfg.Bridge.APISecret != "" || cfg.Bridge.EncryptedSecretPath != "" {
		secret, err := crypto.LoadCredential(crypto.CredentialConfig{
			RawSecret:     cfg.Bridge.APISecret,
			EncryptedPath: cfg.Bridge.EncryptedSecretPath,
			Password:      cfg.Bridge.SecretPassword,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("wire: bridge credential: %w", err)
		}
		deps.BridgeAPISecret = secret
	}

	// --- PostgreSQL ---
	var (
		oppStore      *postgres.OpportunityStore
		transferStore *postgres.TransferStore
	)
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		oppStore = postgres.NewOpportunityStore(pool)
		transferStore = postgres.NewTransferStore(pool)
		deps.Opportunities = oppStore
		deps.Transfers = transferStore
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Cache = redis.NewSnapshotCache(redisClient, cfg.Redis.CacheTTL.Duration)
		deps.Bus = redis.NewSignalBus(redisClient)
		deps.Locks = redis.NewLockManager(redisClient)
	}

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		// Archival needs the postgres stores for ListBefore.
		if oppStore != nil && transferStore != nil {
			deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, oppStore, transferStore)
		}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
