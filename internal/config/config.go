// Package config defines the top-level configuration for the arena and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by AMMARENA_* environment
// variables.
type Config struct {
	Log      LogConfig      `toml:"log"`
	Sim      SimConfig      `toml:"sim"`
	Match    MatchConfig    `toml:"match"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Archive  ArchiveConfig  `toml:"archive"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`

	// Strategies is the default field of competitors for sim and match
	// modes. Entries are stored strategy names or built-in kinds.
	Strategies []string `toml:"strategies"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// SimConfig holds the base simulation parameters. Matches shipped to the
// runner start from these values before variance is applied.
type SimConfig struct {
	NSteps            int     `toml:"n_steps"`
	InitialPrice      float64 `toml:"initial_price"`
	InitialX          float64 `toml:"initial_x"`
	InitialY          float64 `toml:"initial_y"`
	GBMMu             float64 `toml:"gbm_mu"`
	GBMSigma          float64 `toml:"gbm_sigma"`
	GBMDt             float64 `toml:"gbm_dt"`
	RetailArrivalRate float64 `toml:"retail_arrival_rate"`
	RetailMeanSize    float64 `toml:"retail_mean_size"`
	RetailSizeSigma   float64 `toml:"retail_size_sigma"`
	RetailBuyProb     float64 `toml:"retail_buy_prob"`
	FeeUpdateInterval uint64  `toml:"fee_update_interval"`
	StepSampleRate    int     `toml:"step_sample_rate"`
}

// MatchConfig holds the match runner parameters, including the per-simulation
// market variance bounds.
type MatchConfig struct {
	NSimulations int   `toml:"n_simulations"`
	Workers      int   `toml:"workers"`
	BaseSeed     int64 `toml:"base_seed"`
	StoreResults bool  `toml:"store_results"`

	VaryRetailMeanSize bool    `toml:"vary_retail_mean_size"`
	RetailMeanSizeMin  float64 `toml:"retail_mean_size_min"`
	RetailMeanSizeMax  float64 `toml:"retail_mean_size_max"`

	VaryRetailArrivalRate bool    `toml:"vary_retail_arrival_rate"`
	RetailArrivalRateMin  float64 `toml:"retail_arrival_rate_min"`
	RetailArrivalRateMax  float64 `toml:"retail_arrival_rate_max"`

	VaryGBMSigma bool    `toml:"vary_gbm_sigma"`
	GBMSigmaMin  float64 `toml:"gbm_sigma_min"`
	GBMSigmaMax  float64 `toml:"gbm_sigma_max"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
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

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`

	// RateLimit caps requests per client per RateWindow. Zero disables
	// limiting.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// ArchiveConfig holds match archival parameters.
type ArchiveConfig struct {
	Enabled       bool   `toml:"enabled"`
	RetentionDays int    `toml:"retention_days"`
	Prefix        string `toml:"prefix"`
}

// NotifyConfig holds operator announcement channels. A channel is enabled by
// filling in its credentials; leave everything empty to disable
// announcements entirely.
type NotifyConfig struct {
	TelegramToken     string `toml:"telegram_token"`
	TelegramChatID    string `toml:"telegram_chat_id"`
	DiscordWebhookURL string `toml:"discord_webhook_url"`

	// Events filters which announcements are sent. Empty means all:
	// match_completed, match_failed, archive_completed.
	Events []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with the baseline competition values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Sim: SimConfig{
			NSteps:            10000,
			InitialPrice:      100,
			InitialX:          100,
			InitialY:          10000,
			GBMMu:             0,
			GBMSigma:          0.000945,
			GBMDt:             1,
			RetailArrivalRate: 0.8,
			RetailMeanSize:    20,
			RetailSizeSigma:   1.2,
			RetailBuyProb:     0.5,
			FeeUpdateInterval: 0,
			StepSampleRate:    0,
		},
		Match: MatchConfig{
			NSimulations: 99,
			Workers:      0,
			BaseSeed:     42,
			StoreResults: false,

			VaryRetailMeanSize: true,
			RetailMeanSizeMin:  19,
			RetailMeanSizeMax:  21,

			VaryRetailArrivalRate: true,
			RetailArrivalRateMin:  0.6,
			RetailArrivalRateMax:  1.0,

			VaryGBMSigma: true,
			GBMSigmaMin:  0.000882,
			GBMSigmaMax:  0.001008,
		},
		Postgres: PostgresConfig{
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "ammarena",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "ammarena-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Prefix:        "archive",
		},
		Notify:     NotifyConfig{},
		Mode:       "sim",
		Strategies: []string{"fixed", "adaptive"},
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"sim":     true,
	"match":   true,
	"serve":   true,
	"archive": true,
}

// validLogLevels enumerates the accepted values for LogConfig.Level.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLogFormats enumerates the accepted values for LogConfig.Format.
var validLogFormats = map[string]bool{
	"text": true,
	"json": true,
}

// NeedsPostgres reports whether the configured mode requires a database.
func (c *Config) NeedsPostgres() bool {
	switch c.Mode {
	case "serve", "archive":
		return true
	case "match":
		return c.Match.StoreResults
	}
	return false
}

// NeedsRedis reports whether the configured mode requires Redis. The serve
// mode uses it for caching, events and rate limiting; archive uses it for
// the run lock.
func (c *Config) NeedsRedis() bool {
	return c.Mode == "serve" || c.Mode == "archive"
}

// NeedsS3 reports whether the configured mode requires object storage.
func (c *Config) NeedsS3() bool {
	return c.Mode == "archive"
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: sim, match, serve, archive)", c.Mode))
	}

	// Log
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log: unknown level %q (valid: debug, info, warn, error)", c.Log.Level))
	}
	if !validLogFormats[strings.ToLower(c.Log.Format)] {
		errs = append(errs, fmt.Sprintf("log: unknown format %q (valid: text, json)", c.Log.Format))
	}

	// Sim
	if c.Sim.NSteps < 1 {
		errs = append(errs, "sim: n_steps must be >= 1")
	}
	if c.Sim.InitialPrice <= 0 {
		errs = append(errs, "sim: initial_price must be > 0")
	}
	if c.Sim.InitialX <= 0 {
		errs = append(errs, "sim: initial_x must be > 0")
	}
	if c.Sim.InitialY <= 0 {
		errs = append(errs, "sim: initial_y must be > 0")
	}
	if c.Sim.GBMSigma < 0 {
		errs = append(errs, "sim: gbm_sigma must be >= 0")
	}
	if c.Sim.GBMDt <= 0 {
		errs = append(errs, "sim: gbm_dt must be > 0")
	}
	if c.Sim.RetailArrivalRate < 0 {
		errs = append(errs, "sim: retail_arrival_rate must be >= 0")
	}
	if c.Sim.RetailMeanSize <= 0 {
		errs = append(errs, "sim: retail_mean_size must be > 0")
	}
	if c.Sim.RetailSizeSigma <= 0 {
		errs = append(errs, "sim: retail_size_sigma must be > 0")
	}
	if c.Sim.RetailBuyProb < 0 || c.Sim.RetailBuyProb > 1 {
		errs = append(errs, fmt.Sprintf("sim: retail_buy_prob must be in [0, 1], got %g", c.Sim.RetailBuyProb))
	}
	if c.Sim.StepSampleRate < 0 {
		errs = append(errs, "sim: step_sample_rate must be >= 0")
	}

	// Match
	if c.Match.NSimulations < 1 {
		errs = append(errs, "match: n_simulations must be >= 1")
	}
	if c.Match.Workers < 0 {
		errs = append(errs, "match: workers must be >= 0 (0 = auto)")
	}
	if c.Match.VaryRetailMeanSize {
		if c.Match.RetailMeanSizeMin <= 0 || c.Match.RetailMeanSizeMax < c.Match.RetailMeanSizeMin {
			errs = append(errs, "match: retail_mean_size bounds must satisfy 0 < min <= max")
		}
	}
	if c.Match.VaryRetailArrivalRate {
		if c.Match.RetailArrivalRateMin < 0 || c.Match.RetailArrivalRateMax < c.Match.RetailArrivalRateMin {
			errs = append(errs, "match: retail_arrival_rate bounds must satisfy 0 <= min <= max")
		}
	}
	if c.Match.VaryGBMSigma {
		if c.Match.GBMSigmaMin < 0 || c.Match.GBMSigmaMax < c.Match.GBMSigmaMin {
			errs = append(errs, "match: gbm_sigma bounds must satisfy 0 <= min <= max")
		}
	}

	// Strategies
	for _, name := range c.Strategies {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, "strategies: entries must not be empty")
			break
		}
	}
	switch c.Mode {
	case "sim":
		if len(c.Strategies) < 1 {
			errs = append(errs, "strategies: sim mode needs at least one strategy")
		}
	case "match":
		if len(c.Strategies) < 2 {
			errs = append(errs, "strategies: match mode needs at least two strategies")
		}
	}

	// Postgres connection details only matter for modes that reach it.
	if c.NeedsPostgres() && strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty for mode "+c.Mode+" (or set postgres.dsn)")
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

	// Redis
	if c.NeedsRedis() && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty for mode "+c.Mode)
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.NeedsS3() {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty for mode "+c.Mode)
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty for mode "+c.Mode)
		}
	}

	// Server
	if c.Server.Enabled || c.Mode == "serve" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0 (0 = disabled)")
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
		}
	}

	// Archive
	if c.Archive.Enabled || c.Mode == "archive" {
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
		if c.Archive.Prefix == "" {
			errs = append(errs, "archive: prefix must not be empty")
		}
	}

	// Notify
	for _, e := range c.Notify.Events {
		switch e {
		case "match_completed", "match_failed", "archive_completed":
		default:
			errs = append(errs, fmt.Sprintf("notify: unknown event %q", e))
		}
	}
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
