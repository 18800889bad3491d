package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	s3blob "github.com/nadolabs/makerbot/internal/blob/s3"
	"github.com/nadolabs/makerbot/internal/cache/redis"
	"github.com/nadolabs/makerbot/internal/config"
	"github.com/nadolabs/makerbot/internal/crypto"
	"github.com/nadolabs/makerbot/internal/domain"
	"github.com/nadolabs/makerbot/internal/notify"
	"github.com/nadolabs/makerbot/internal/store/postgres"
	"github.com/nadolabs/makerbot/internal/venue/nado"
)

// Dependencies bundles everything the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
// Optional services (journal, status bus, archiver) are nil when disabled in
// the configuration.
type Dependencies struct {
	Venue *nado.Client

	Journal    domain.OrderJournal
	StatusBus  domain.StatusBus
	QuoteCache domain.QuoteCache
	Archiver   domain.Archiver

	Notifier *notify.Notifier
}

// needsWallet reports whether a mode signs venue requests.
func needsWallet(mode string) bool {
	switch mode {
	case "run", "order", "balance", "positions":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependencies from the configuration and
// returns them together with a cleanup function to be called on shutdown.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Signing identity ---
	var signer *crypto.Signer
	if needsWallet(strings.ToLower(cfg.Mode)) {
		key, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: load key: %w", err)
		}
		signer, err = crypto.NewSigner(key, cfg.Nado.ChainID, cfg.Nado.VerifyingContract)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: signer: %w", err)
		}
	}

	// --- Venue client ---
	venueClient, err := nado.New(nado.ClientConfig{
		GatewayURL:     cfg.Nado.GatewayURL,
		GatewayV2URL:   cfg.Nado.GatewayV2URL,
		Signer:         signer,
		SubaccountName: cfg.Wallet.SubaccountName,
		TickerIDs: map[string]string{
			cfg.Trading.Symbol: cfg.Trading.TickerID,
		},
		PriceIncrements: map[string]float64{
			cfg.Trading.Symbol: cfg.Trading.PriceIncrement,
		},
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: venue: %w", err)
	}
	deps.Venue = venueClient

	// --- PostgreSQL order journal ---
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

		journal := pgClient.Journal()
		deps.Journal = journal

		// --- S3 archiver (requires the journal) ---
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
			closers = append(closers, func() { _ = s3Client.Close() })

			// Surface an unreachable archive bucket at startup rather than at
			// the first archive pass.
			if err := s3Client.Health(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: s3: %w", err)
			}

			deps.Archiver = s3blob.NewOrderArchiver(
				s3blob.NewWriter(s3Client),
				s3blob.NewReader(s3Client),
				journal,
				logger,
			)
		}
	}

	// --- Redis status bus and quote cache ---
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

		deps.StatusBus = redis.NewStatusBus(redisClient, logger)
		deps.QuoteCache = redis.NewQuoteCache(redisClient,
			time.Duration(cfg.Redis.QuoteTTLSeconds)*time.Second)
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
