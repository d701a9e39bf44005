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
// built-in defaults, applies AMMARENA_* environment variable overrides, and
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

// FromEnv returns the defaults with AMMARENA_* overrides applied, for running
// without a config file.
func FromEnv() *Config {
	cfg := Defaults()
	_ = godotenv.Load()
	applyEnvOverrides(&cfg)
	return &cfg
}

// applyEnvOverrides reads well-known AMMARENA_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Log ──
	setStr(&cfg.Log.Level, "AMMARENA_LOG_LEVEL")
	setStr(&cfg.Log.Format, "AMMARENA_LOG_FORMAT")

	// ── Sim ──
	setInt(&cfg.Sim.NSteps, "AMMARENA_SIM_N_STEPS")
	setFloat64(&cfg.Sim.InitialPrice, "AMMARENA_SIM_INITIAL_PRICE")
	setFloat64(&cfg.Sim.InitialX, "AMMARENA_SIM_INITIAL_X")
	setFloat64(&cfg.Sim.InitialY, "AMMARENA_SIM_INITIAL_Y")
	setFloat64(&cfg.Sim.GBMMu, "AMMARENA_SIM_GBM_MU")
	setFloat64(&cfg.Sim.GBMSigma, "AMMARENA_SIM_GBM_SIGMA")
	setFloat64(&cfg.Sim.GBMDt, "AMMARENA_SIM_GBM_DT")
	setFloat64(&cfg.Sim.RetailArrivalRate, "AMMARENA_SIM_RETAIL_ARRIVAL_RATE")
	setFloat64(&cfg.Sim.RetailMeanSize, "AMMARENA_SIM_RETAIL_MEAN_SIZE")
	setFloat64(&cfg.Sim.RetailSizeSigma, "AMMARENA_SIM_RETAIL_SIZE_SIGMA")
	setFloat64(&cfg.Sim.RetailBuyProb, "AMMARENA_SIM_RETAIL_BUY_PROB")
	setUint64(&cfg.Sim.FeeUpdateInterval, "AMMARENA_SIM_FEE_UPDATE_INTERVAL")
	setInt(&cfg.Sim.StepSampleRate, "AMMARENA_SIM_STEP_SAMPLE_RATE")

	// ── Match ──
	setInt(&cfg.Match.NSimulations, "AMMARENA_MATCH_N_SIMULATIONS")
	setInt(&cfg.Match.Workers, "AMMARENA_MATCH_WORKERS")
	setInt64(&cfg.Match.BaseSeed, "AMMARENA_MATCH_BASE_SEED")
	setBool(&cfg.Match.StoreResults, "AMMARENA_MATCH_STORE_RESULTS")
	setBool(&cfg.Match.VaryRetailMeanSize, "AMMARENA_MATCH_VARY_RETAIL_MEAN_SIZE")
	setFloat64(&cfg.Match.RetailMeanSizeMin, "AMMARENA_MATCH_RETAIL_MEAN_SIZE_MIN")
	setFloat64(&cfg.Match.RetailMeanSizeMax, "AMMARENA_MATCH_RETAIL_MEAN_SIZE_MAX")
	setBool(&cfg.Match.VaryRetailArrivalRate, "AMMARENA_MATCH_VARY_RETAIL_ARRIVAL_RATE")
	setFloat64(&cfg.Match.RetailArrivalRateMin, "AMMARENA_MATCH_RETAIL_ARRIVAL_RATE_MIN")
	setFloat64(&cfg.Match.RetailArrivalRateMax, "AMMARENA_MATCH_RETAIL_ARRIVAL_RATE_MAX")
	setBool(&cfg.Match.VaryGBMSigma, "AMMARENA_MATCH_VARY_GBM_SIGMA")
	setFloat64(&cfg.Match.GBMSigmaMin, "AMMARENA_MATCH_GBM_SIGMA_MIN")
	setFloat64(&cfg.Match.GBMSigmaMax, "AMMARENA_MATCH_GBM_SIGMA_MAX")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "AMMARENA_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "AMMARENA_POSTGRES_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "AMMARENA_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "AMMARENA_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "AMMARENA_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "AMMARENA_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "AMMARENA_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "AMMARENA_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "AMMARENA_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "AMMARENA_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "AMMARENA_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "AMMARENA_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "AMMARENA_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "AMMARENA_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "AMMARENA_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "AMMARENA_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "AMMARENA_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "AMMARENA_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "AMMARENA_S3_REGION")
	setStr(&cfg.S3.Bucket, "AMMARENA_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "AMMARENA_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "AMMARENA_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "AMMARENA_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "AMMARENA_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "AMMARENA_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "AMMARENA_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "AMMARENA_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "AMMARENA_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "AMMARENA_SERVER_RATE_WINDOW")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "AMMARENA_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "AMMARENA_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Archive.Prefix, "AMMARENA_ARCHIVE_PREFIX")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "AMMARENA_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "AMMARENA_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "AMMARENA_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "AMMARENA_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "AMMARENA_MODE")
	setStringSlice(&cfg.Strategies, "AMMARENA_STRATEGIES")
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

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
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
