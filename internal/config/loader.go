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
// built-in defaults, applies MAKERBOT_* environment variable overrides, and
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

// applyEnvOverrides reads well-known MAKERBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "MAKERBOT_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.PrivateKey, "NADO_PRIVATE_KEY") // compatibility alias
	setStr(&cfg.Wallet.EncryptedKeyPath, "MAKERBOT_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "MAKERBOT_WALLET_KEY_PASSWORD")
	setStr(&cfg.Wallet.SubaccountName, "MAKERBOT_WALLET_SUBACCOUNT_NAME")
	setStr(&cfg.Wallet.SubaccountName, "NADO_SUBACCOUNT_NAME") // compatibility alias

	// ── Nado ──
	setStr(&cfg.Nado.GatewayURL, "MAKERBOT_NADO_GATEWAY_URL")
	setStr(&cfg.Nado.GatewayV2URL, "MAKERBOT_NADO_GATEWAY_V2_URL")
	setStr(&cfg.Nado.WsURL, "MAKERBOT_NADO_WS_URL")
	setInt64(&cfg.Nado.ChainID, "MAKERBOT_NADO_CHAIN_ID")
	setStr(&cfg.Nado.VerifyingContract, "MAKERBOT_NADO_VERIFYING_CONTRACT")

	// ── Trading ──
	setStr(&cfg.Trading.Symbol, "MAKERBOT_TRADING_SYMBOL")
	setStr(&cfg.Trading.TickerID, "MAKERBOT_TRADING_TICKER_ID")
	setFloat64(&cfg.Trading.OrderSize, "MAKERBOT_TRADING_ORDER_SIZE")
	setFloat64(&cfg.Trading.SpreadPercentage, "MAKERBOT_TRADING_SPREAD_PERCENTAGE")
	setDuration(&cfg.Trading.RefreshInterval, "MAKERBOT_TRADING_REFRESH_INTERVAL")
	setDuration(&cfg.Trading.CallTimeout, "MAKERBOT_TRADING_CALL_TIMEOUT")
	setDuration(&cfg.Trading.OrderTimeout, "MAKERBOT_TRADING_ORDER_TIMEOUT")
	setFloat64(&cfg.Trading.MaxLongPosition, "MAKERBOT_TRADING_MAX_LONG_POSITION")
	setFloat64(&cfg.Trading.MaxShortPosition, "MAKERBOT_TRADING_MAX_SHORT_POSITION")
	setFloat64(&cfg.Trading.PriceIncrement, "MAKERBOT_TRADING_PRICE_INCREMENT")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "MAKERBOT_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "MAKERBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "MAKERBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "MAKERBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "MAKERBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "MAKERBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "MAKERBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "MAKERBOT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "MAKERBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "MAKERBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "MAKERBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "MAKERBOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "MAKERBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MAKERBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MAKERBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "MAKERBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "MAKERBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "MAKERBOT_REDIS_TLS_ENABLED")
	setInt(&cfg.Redis.QuoteTTLSeconds, "MAKERBOT_REDIS_QUOTE_TTL_SECONDS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "MAKERBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "MAKERBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "MAKERBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "MAKERBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "MAKERBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "MAKERBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "MAKERBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "MAKERBOT_S3_FORCE_PATH_STYLE")
	setInt(&cfg.S3.ArchiveRetentionDays, "MAKERBOT_S3_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.S3.ArchiveInterval, "MAKERBOT_S3_ARCHIVE_INTERVAL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "MAKERBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "MAKERBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "MAKERBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "MAKERBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "MAKERBOT_MODE")
	setStr(&cfg.LogLevel, "MAKERBOT_LOG_LEVEL")
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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
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
