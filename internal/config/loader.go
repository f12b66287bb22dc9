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
// built-in defaults, applies MDATA_* environment variable overrides, and
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

// applyEnvOverrides reads well-known MDATA_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Binance ──
	setStr(&cfg.Binance.RestHost, "MDATA_BINANCE_REST_HOST")
	setStr(&cfg.Binance.WsHost, "MDATA_BINANCE_WS_HOST")

	// ── Market ──
	setStringSlice(&cfg.Market.Symbols, "MDATA_MARKET_SYMBOLS")
	setInt(&cfg.Market.SnapshotDepth, "MDATA_MARKET_SNAPSHOT_DEPTH")
	setInt(&cfg.Market.QueueSize, "MDATA_MARKET_QUEUE_SIZE")
	setInt(&cfg.Market.HistorySize, "MDATA_MARKET_HISTORY_SIZE")
	setInt(&cfg.Market.DisplaySize, "MDATA_MARKET_DISPLAY_SIZE")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "MDATA_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "MDATA_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "MDATA_DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "MDATA_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "MDATA_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "MDATA_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "MDATA_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "MDATA_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "MDATA_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "MDATA_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "MDATA_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "MDATA_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "MDATA_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "MDATA_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MDATA_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MDATA_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "MDATA_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "MDATA_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "MDATA_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.SummaryTTL, "MDATA_REDIS_SUMMARY_TTL")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "MDATA_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "MDATA_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "MDATA_S3_REGION")
	setStr(&cfg.S3.Bucket, "MDATA_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "MDATA_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "MDATA_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "MDATA_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "MDATA_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "MDATA_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "MDATA_ARCHIVE_INTERVAL")
	setInt(&cfg.Archive.BatchLimit, "MDATA_ARCHIVE_BATCH_LIMIT")

	// ── Whale ──
	setBool(&cfg.Whale.Enabled, "MDATA_WHALE_ENABLED")
	setDuration(&cfg.Whale.Interval, "MDATA_WHALE_INTERVAL")
	setFloat64(&cfg.Whale.Multiplier, "MDATA_WHALE_MULTIPLIER")
	setInt(&cfg.Whale.Limit, "MDATA_WHALE_LIMIT")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "MDATA_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "MDATA_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "MDATA_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "MDATA_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "MDATA_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "MDATA_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "MDATA_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "MDATA_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "MDATA_MODE")
	setStr(&cfg.LogLevel, "MDATA_LOG_LEVEL")
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
