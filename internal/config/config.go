package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/minleaf/sieve/internal/core"
)

// Config is the full pipeline configuration. Every field has a usable
// default so the CLI runs without a config file; a YAML file and
// SIEVE_-prefixed environment variables override selectively.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Data     DataConfig     `mapstructure:"data"`
	Screen   ScreenConfig   `mapstructure:"screen"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Server   ServerConfig   `mapstructure:"server"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// DataConfig controls the k-line source and the local cache.
type DataConfig struct {
	Source          string `mapstructure:"source"`  // "eastmoney" or "tencent"
	DBPath          string `mapstructure:"db_path"` // SQLite file
	FullHistoryDays int    `mapstructure:"full_history_days"`
	KeepDays        int    `mapstructure:"keep_days"`
	ProbeCode       string `mapstructure:"probe_code"`
}

// ScreenConfig selects the factor combinations the daily run screens
// for. Empty means every registered combination.
type ScreenConfig struct {
	Combinations []string `mapstructure:"combinations"`
}

// BacktestConfig holds the default simulation parameters; CLI flags
// override per run.
type BacktestConfig struct {
	Capital       float64 `mapstructure:"capital"`
	EntryWindow   int     `mapstructure:"entry_window"`
	TakeProfitPct float64 `mapstructure:"take_profit_pct"`
	StopLossPct   float64 `mapstructure:"stop_loss_pct"`
	MaxHoldDays   int     `mapstructure:"max_hold_days"`
	Board         string  `mapstructure:"board"`
}

// SyncConfig points the pipeline at the results service.
type SyncConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ServerConfig holds the results service listen settings.
type ServerConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	APIToken   string `mapstructure:"api_token"`
	MaxReports int    `mapstructure:"max_reports"`
}

// ArchiveConfig holds cold artifact storage settings.
type ArchiveConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Backend string   `mapstructure:"backend"` // "localfs" or "s3"
	Path    string   `mapstructure:"path"`    // for localfs
	S3      S3Config `mapstructure:"s3"`
}

// S3Config holds S3 (or S3-compatible) archive settings.
type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// Defaults returns a config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Data: DataConfig{
			Source:          "eastmoney",
			DBPath:          "data/kline.db",
			FullHistoryDays: 400,
			KeepDays:        250,
			ProbeCode:       "000001",
		},
		Backtest: BacktestConfig{
			Capital:       1_000_000,
			EntryWindow:   5,
			TakeProfitPct: 10.0,
			MaxHoldDays:   15,
			Board:         string(core.BoardMain),
		},
		Sync: SyncConfig{
			Enabled: true,
			BaseURL: "http://localhost:8787",
			Timeout: 30 * time.Second,
		},
		Server: ServerConfig{
			Host:       "0.0.0.0",
			Port:       8787,
			MaxReports: 90,
		},
		Archive: ArchiveConfig{
			Enabled: false,
			Backend: "localfs",
			Path:    "data/archive",
		},
	}
}

// Load reads configuration from a YAML file, layered over Defaults.
// Environment variables override file values (SIEVE_SYNC_TOKEN ->
// sync.token), and string values of the form ${VAR} are expanded from
// the environment so secrets stay out of the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	setDefaults(v, Defaults())

	v.SetEnvPrefix("SIEVE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every default so partial files and environment
// lookups merge over a complete base.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
	v.SetDefault("data.source", d.Data.Source)
	v.SetDefault("data.db_path", d.Data.DBPath)
	v.SetDefault("data.full_history_days", d.Data.FullHistoryDays)
	v.SetDefault("data.keep_days", d.Data.KeepDays)
	v.SetDefault("data.probe_code", d.Data.ProbeCode)
	v.SetDefault("screen.combinations", d.Screen.Combinations)
	v.SetDefault("backtest.capital", d.Backtest.Capital)
	v.SetDefault("backtest.entry_window", d.Backtest.EntryWindow)
	v.SetDefault("backtest.take_profit_pct", d.Backtest.TakeProfitPct)
	v.SetDefault("backtest.stop_loss_pct", d.Backtest.StopLossPct)
	v.SetDefault("backtest.max_hold_days", d.Backtest.MaxHoldDays)
	v.SetDefault("backtest.board", d.Backtest.Board)
	v.SetDefault("sync.enabled", d.Sync.Enabled)
	v.SetDefault("sync.base_url", d.Sync.BaseURL)
	v.SetDefault("sync.token", d.Sync.Token)
	v.SetDefault("sync.timeout", d.Sync.Timeout)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.api_token", d.Server.APIToken)
	v.SetDefault("server.max_reports", d.Server.MaxReports)
	v.SetDefault("archive.enabled", d.Archive.Enabled)
	v.SetDefault("archive.backend", d.Archive.Backend)
	v.SetDefault("archive.path", d.Archive.Path)
	v.SetDefault("archive.s3.bucket", d.Archive.S3.Bucket)
	v.SetDefault("archive.s3.endpoint", d.Archive.S3.Endpoint)
	v.SetDefault("archive.s3.region", d.Archive.S3.Region)
	v.SetDefault("archive.s3.access_key", d.Archive.S3.AccessKey)
	v.SetDefault("archive.s3.secret_key", d.Archive.S3.SecretKey)
	v.SetDefault("archive.s3.prefix", d.Archive.S3.Prefix)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Data.Source {
	case "eastmoney", "tencent":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("data.source must be eastmoney or tencent, got %q", c.Data.Source))
	}
	if c.Data.DBPath == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("data.db_path is required"))
	}
	if c.Data.FullHistoryDays < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("data.full_history_days must be positive, got %d", c.Data.FullHistoryDays))
	}
	if c.Data.KeepDays < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("data.keep_days must be positive, got %d", c.Data.KeepDays))
	}

	if c.Backtest.Capital <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("backtest.capital must be positive, got %f", c.Backtest.Capital))
	}
	if c.Backtest.EntryWindow < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("backtest.entry_window must be at least 1, got %d", c.Backtest.EntryWindow))
	}
	if c.Backtest.StopLossPct < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("backtest.stop_loss_pct cannot be negative, got %f", c.Backtest.StopLossPct))
	}
	if c.Backtest.MaxHoldDays < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("backtest.max_hold_days cannot be negative, got %d", c.Backtest.MaxHoldDays))
	}
	switch core.Board(c.Backtest.Board) {
	case core.BoardAll, core.BoardMain, core.BoardStar:
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("backtest.board must be all, main or star, got %q", c.Backtest.Board))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.MaxReports < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("server.max_reports must be positive, got %d", c.Server.MaxReports))
	}

	if c.Sync.Enabled && c.Sync.BaseURL == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("sync.base_url is required when sync is enabled"))
	}

	switch c.Archive.Backend {
	case "localfs", "s3":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("archive.backend must be localfs or s3, got %q", c.Archive.Backend))
	}
	if c.Archive.Enabled && c.Archive.Backend == "s3" && c.Archive.S3.Bucket == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("archive.s3.bucket is required for the s3 backend"))
	}

	return nil
}
