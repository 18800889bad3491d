// Package config defines the top-level configuration for the maker bot and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by MAKERBOT_* environment variables.
type Config struct {
	Wallet   WalletConfig   `toml:"wallet"`
	Nado     NadoConfig     `toml:"nado"`
	Trading  TradingConfig  `toml:"trading"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// WalletConfig holds the signing key and subaccount identity.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
	SubaccountName   string `toml:"subaccount_name"`
}

// NadoConfig holds the Nado gateway endpoints and chain parameters.
type NadoConfig struct {
	GatewayURL        string `toml:"gateway_url"`
	GatewayV2URL      string `toml:"gateway_v2_url"`
	WsURL             string `toml:"ws_url"`
	ChainID           int64  `toml:"chain_id"`
	VerifyingContract string `toml:"verifying_contract"`
}

// TradingConfig holds the quoting parameters of the market-making loop.
type TradingConfig struct {
	// Symbol is the instrument name used for product-id resolution, e.g.
	// "BTC-PERP". TickerID is the orderbook lookup key, e.g. "BTC-PERP_USDT0".
	Symbol   string `toml:"symbol"`
	TickerID string `toml:"ticker_id"`

	// OrderSize is the per-order quantity in base-asset units.
	OrderSize float64 `toml:"order_size"`

	// SpreadPercentage is the total quoted spread as a fraction of mid
	// (0.0003 = 3 bps). Each quote sits half of this away from mid.
	SpreadPercentage float64 `toml:"spread_percentage"`

	// RefreshInterval is the decision-loop period. CallTimeout bounds every
	// venue call inside a tick and must be strictly below RefreshInterval.
	RefreshInterval duration `toml:"refresh_interval"`
	CallTimeout     duration `toml:"call_timeout"`

	// OrderTimeout is the minimum time an order rests before the loop will
	// cancel and requote it.
	OrderTimeout duration `toml:"order_timeout"`

	// Position limits in quote currency. MaxShortPosition is negative.
	MaxLongPosition  float64 `toml:"max_long_position"`
	MaxShortPosition float64 `toml:"max_short_position"`

	// PriceIncrement is the instrument tick size in quote currency. It takes
	// precedence over the venue's asset listing when quantising order prices.
	PriceIncrement float64 `toml:"price_increment"`
}

// PostgresConfig holds PostgreSQL connection parameters for the order journal.
// The journal is optional; leave Enabled false to run without persistence.
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

// RedisConfig holds Redis connection parameters for the status bus and quote
// cache. Optional; leave Enabled false to run without telemetry.
type RedisConfig struct {
	Enabled         bool   `toml:"enabled"`
	Addr            string `toml:"addr"`
	Password        string `toml:"password"`
	DB              int    `toml:"db"`
	PoolSize        int    `toml:"pool_size"`
	MaxRetries      int    `toml:"max_retries"`
	TLSEnabled      bool   `toml:"tls_enabled"`
	QuoteTTLSeconds int    `toml:"quote_ttl_seconds"`
}

// S3Config holds S3-compatible object storage parameters for the order
// archiver. Optional; requires Postgres when enabled.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`

	ArchiveRetentionDays int      `toml:"archive_retention_days"`
	ArchiveInterval      duration `toml:"archive_interval"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5s", "25s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5s" or "2m".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with the mainnet gateway endpoints and
// the stock BTC-PERP quoting parameters. These match config.example.toml.
func Defaults() Config {
	return Config{
		Wallet: WalletConfig{
			SubaccountName: "default",
		},
		Nado: NadoConfig{
			GatewayURL:   "https://gateway.prod.nado.xyz/v1",
			GatewayV2URL: "https://gateway.prod.nado.xyz/v2",
			WsURL:        "wss://gateway.prod.nado.xyz/v1/ws",
			ChainID:      1,
		},
		Trading: TradingConfig{
			Symbol:           "BTC-PERP",
			TickerID:         "BTC-PERP_USDT0",
			OrderSize:        0.0015,
			SpreadPercentage: 0.0003,
			RefreshInterval:  duration{5 * time.Second},
			CallTimeout:      duration{2 * time.Second},
			OrderTimeout:     duration{25 * time.Second},
			MaxLongPosition:  400,
			MaxShortPosition: -400,
			PriceIncrement:   1.0,
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "makerbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:         false,
			Addr:            "localhost:6379",
			DB:              0,
			PoolSize:        10,
			MaxRetries:      3,
			QuoteTTLSeconds: 30,
		},
		S3: S3Config{
			Enabled:              false,
			Endpoint:             "http://localhost:9000",
			Region:               "us-east-1",
			Bucket:               "makerbot-data",
			UseSSL:               false,
			ForcePathStyle:       true,
			ArchiveRetentionDays: 30,
			ArchiveInterval:      duration{6 * time.Hour},
		},
		Notify: NotifyConfig{
			Events: []string{"bot_started", "bot_stopped", "order_filled", "degraded_health"},
		},
		Mode:     "run",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"run":       true,
	"balance":   true,
	"positions": true,
	"price":     true,
	"order":     true,
	"status":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
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

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: run, balance, positions, price, order, status)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet. A key source is required for any mode that talks to the
	// account endpoints.
	if needsWallet(mode) {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode "+c.Mode)
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
		if len(c.Wallet.SubaccountName) > 12 {
			errs = append(errs, fmt.Sprintf("wallet: subaccount_name %q exceeds 12 bytes", c.Wallet.SubaccountName))
		}
	}

	// The status mode reads only from the telemetry backends.
	if mode == "status" && !c.Redis.Enabled && !c.Postgres.Enabled {
		errs = append(errs, "mode status requires redis or postgres to be enabled")
	}

	// Nado endpoints
	if c.Nado.GatewayURL == "" {
		errs = append(errs, "nado: gateway_url must not be empty")
	}
	if c.Nado.GatewayV2URL == "" {
		errs = append(errs, "nado: gateway_v2_url must not be empty")
	}
	if c.Nado.ChainID <= 0 {
		errs = append(errs, "nado: chain_id must be positive")
	}

	// Trading
	if c.Trading.Symbol == "" {
		errs = append(errs, "trading: symbol must not be empty")
	}
	if c.Trading.TickerID == "" {
		errs = append(errs, "trading: ticker_id must not be empty")
	}
	if c.Trading.OrderSize <= 0 {
		errs = append(errs, "trading: order_size must be > 0")
	}
	if c.Trading.SpreadPercentage <= 0 || c.Trading.SpreadPercentage >= 1 {
		errs = append(errs, "trading: spread_percentage must be in (0, 1)")
	}
	if c.Trading.RefreshInterval.Duration <= 0 {
		errs = append(errs, "trading: refresh_interval must be > 0")
	}
	if c.Trading.CallTimeout.Duration <= 0 {
		errs = append(errs, "trading: call_timeout must be > 0")
	}
	if c.Trading.CallTimeout.Duration >= c.Trading.RefreshInterval.Duration {
		errs = append(errs, "trading: call_timeout must be strictly below refresh_interval")
	}
	if c.Trading.OrderTimeout.Duration < 0 {
		errs = append(errs, "trading: order_timeout must be >= 0")
	}
	if c.Trading.MaxLongPosition <= 0 {
		errs = append(errs, "trading: max_long_position must be > 0")
	}
	if c.Trading.MaxShortPosition >= 0 {
		errs = append(errs, "trading: max_short_position must be < 0")
	}
	if c.Trading.PriceIncrement <= 0 {
		errs = append(errs, "trading: price_increment must be > 0")
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
		if !c.Postgres.Enabled {
			errs = append(errs, "s3: archiver requires postgres to be enabled")
		}
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.ArchiveRetentionDays < 1 {
			errs = append(errs, "s3: archive_retention_days must be >= 1")
		}
		if c.S3.ArchiveInterval.Duration <= 0 {
			errs = append(errs, "s3: archive_interval must be > 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
