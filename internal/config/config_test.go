package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
data:
  source: tencent
  db_path: "/tmp/sieve/kline.db"

sync:
  base_url: "https://results.example.com"
  timeout: 45s

archive:
  backend: s3
  s3:
    bucket: sieve-archive
    region: ap-east-1
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Data.Source != "tencent" {
		t.Errorf("data.source = %q, want tencent", cfg.Data.Source)
	}
	if cfg.Sync.BaseURL != "https://results.example.com" {
		t.Errorf("sync.base_url = %q, want https://results.example.com", cfg.Sync.BaseURL)
	}
	if cfg.Sync.Timeout != 45*time.Second {
		t.Errorf("sync.timeout = %v, want 45s", cfg.Sync.Timeout)
	}
	if cfg.Archive.S3.Bucket != "sieve-archive" {
		t.Errorf("archive.s3.bucket = %q, want sieve-archive", cfg.Archive.S3.Bucket)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
backtest:
  capital: 500000
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Backtest.Capital != 500000 {
		t.Errorf("backtest.capital = %f, want 500000", cfg.Backtest.Capital)
	}
	if cfg.Backtest.EntryWindow != 5 {
		t.Errorf("backtest.entry_window = %d, want default 5", cfg.Backtest.EntryWindow)
	}
	if cfg.Data.KeepDays != 250 {
		t.Errorf("data.keep_days = %d, want default 250", cfg.Data.KeepDays)
	}
	if cfg.Data.ProbeCode != "000001" {
		t.Errorf("data.probe_code = %q, want default 000001", cfg.Data.ProbeCode)
	}
}

func TestLoad_ExpandsSecretReferences(t *testing.T) {
	t.Setenv("SIEVE_TEST_WRITE_TOKEN", "s3cret")

	path := writeConfig(t, `
sync:
  token: ${SIEVE_TEST_WRITE_TOKEN}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Sync.Token != "s3cret" {
		t.Errorf("sync.token = %q, want s3cret", cfg.Sync.Token)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("SIEVE_DATA_SOURCE", "tencent")

	path := writeConfig(t, `
data:
  source: eastmoney
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Data.Source != "tencent" {
		t.Errorf("data.source = %q, want tencent from env", cfg.Data.Source)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Data.DBPath != "data/kline.db" {
		t.Errorf("default db_path = %q, want data/kline.db", cfg.Data.DBPath)
	}
	if cfg.Data.FullHistoryDays != 400 {
		t.Errorf("default full_history_days = %d, want 400", cfg.Data.FullHistoryDays)
	}
	if cfg.Backtest.Capital != 1_000_000 {
		t.Errorf("default capital = %f, want 1000000", cfg.Backtest.Capital)
	}
	if cfg.Sync.Timeout != 30*time.Second {
		t.Errorf("default sync timeout = %v, want 30s", cfg.Sync.Timeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Defaults() should validate, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func(mutate func(c *Config)) Config {
		c := Defaults()
		mutate(c)
		return *c
	}

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			cfg:     valid(func(c *Config) {}),
			wantErr: false,
		},
		{
			name:    "unknown data source",
			cfg:     valid(func(c *Config) { c.Data.Source = "baostock" }),
			wantErr: true,
		},
		{
			name:    "empty db path",
			cfg:     valid(func(c *Config) { c.Data.DBPath = "" }),
			wantErr: true,
		},
		{
			name:    "zero keep days",
			cfg:     valid(func(c *Config) { c.Data.KeepDays = 0 }),
			wantErr: true,
		},
		{
			name:    "negative capital",
			cfg:     valid(func(c *Config) { c.Backtest.Capital = -1 }),
			wantErr: true,
		},
		{
			name:    "zero entry window",
			cfg:     valid(func(c *Config) { c.Backtest.EntryWindow = 0 }),
			wantErr: true,
		},
		{
			name:    "negative stop loss",
			cfg:     valid(func(c *Config) { c.Backtest.StopLossPct = -5 }),
			wantErr: true,
		},
		{
			name:    "unknown board",
			cfg:     valid(func(c *Config) { c.Backtest.Board = "nasdaq" }),
			wantErr: true,
		},
		{
			name:    "port too high",
			cfg:     valid(func(c *Config) { c.Server.Port = 70000 }),
			wantErr: true,
		},
		{
			name:    "sync enabled without base url",
			cfg:     valid(func(c *Config) { c.Sync.BaseURL = "" }),
			wantErr: true,
		},
		{
			name:    "unknown archive backend",
			cfg:     valid(func(c *Config) { c.Archive.Backend = "gcs" }),
			wantErr: true,
		},
		{
			name: "s3 archive without bucket",
			cfg: valid(func(c *Config) {
				c.Archive.Enabled = true
				c.Archive.Backend = "s3"
			}),
			wantErr: true,
		},
		{
			name: "s3 archive with bucket",
			cfg: valid(func(c *Config) {
				c.Archive.Enabled = true
				c.Archive.Backend = "s3"
				c.Archive.S3.Bucket = "sieve-archive"
			}),
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
