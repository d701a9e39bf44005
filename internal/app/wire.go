package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/ammarena/internal/blob/s3"
	"github.com/alanyoungcy/ammarena/internal/cache/redis"
	"github.com/alanyoungcy/ammarena/internal/config"
	"github.com/alanyoungcy/ammarena/internal/domain"
	"github.com/alanyoungcy/ammarena/internal/notify"
	"github.com/alanyoungcy/ammarena/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. Fields are nil when the configured mode does not
// wire them. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	// Stores
	StrategyStore  domain.StrategyStore
	MatchStore     domain.MatchStore
	SimResultStore domain.SimResultStore

	// Caches and coordination
	LeaderboardCache domain.LeaderboardCache
	MatchBus         domain.MatchBus
	RateLimiter      domain.RateLimiter
	LockManager      domain.LockManager

	// Blob storage
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	// Notifications
	Notifier *notify.Notifier

	// Raw clients, kept for health probes.
	PG    *postgres.Client
	Redis *redis.Client
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL (only for modes that need persistence) ---
	if cfg.NeedsPostgres() {
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
		deps.PG = pgClient
		deps.StrategyStore = postgres.NewStrategyStore(pool)
		deps.MatchStore = postgres.NewMatchStore(pool)
		deps.SimResultStore = postgres.NewSimResultStore(pool)
	}

	// --- Redis (serve needs cache, bus and rate limiting; archive the lock) ---
	if cfg.NeedsRedis() {
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

		deps.Redis = redisClient
		deps.LeaderboardCache = redis.NewLeaderboardCache(redisClient)
		deps.MatchBus = redis.NewMatchBus(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
	}

	// --- S3 blob storage (only for modes that need object storage) ---
	if cfg.NeedsS3() {
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
		deps.BlobReader = s3blob.NewReader(s3Client)
		// Archiver: only when Postgres stores are wired as well.
		if deps.MatchStore != nil && deps.SimResultStore != nil {
			deps.Archiver = s3blob.NewArchiver(
				deps.BlobWriter,
				deps.BlobReader,
				deps.MatchStore,
				deps.SimResultStore,
				cfg.Archive.Prefix,
				slog.Default(),
			)
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
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, slog.Default())

	return deps, cleanup, nil
}
