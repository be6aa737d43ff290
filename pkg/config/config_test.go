package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		BaseURL:        "https://example.test",
		Accounts:       []AccountConfig{{Index: 0, APIIndex: 1, PrivateKey: "k"}},
		MaxSlippage:    0.01,
		StopLossRatio:  0.05,
		ScalingFactor:  1.0,
		MaxRetries:     3,
		RetryInterval:  5 * time.Second,
		QueueBound:     32,
		WorkerPoolSize: 8,
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BaseURL != "https://mainnet.zklighter.elliot.ai" {
		t.Fatalf("base url = %q", cfg.BaseURL)
	}
	if cfg.MaxSlippage != 0.01 || cfg.StopLossRatio != 0.05 || cfg.ScalingFactor != 1.0 {
		t.Fatalf("risk defaults = %v/%v/%v", cfg.MaxSlippage, cfg.StopLossRatio, cfg.ScalingFactor)
	}
	if cfg.MaxRetries != 3 || cfg.RetryInterval != 5*time.Second {
		t.Fatalf("retry defaults = %d/%s", cfg.MaxRetries, cfg.RetryInterval)
	}
	if cfg.QueueBound != 32 || cfg.WorkerPoolSize != 8 {
		t.Fatalf("queue defaults = %d/%d", cfg.QueueBound, cfg.WorkerPoolSize)
	}
	if cfg.ListenAddr != ":8080" || cfg.LogLevel != "info" {
		t.Fatalf("server defaults = %q/%q", cfg.ListenAddr, cfg.LogLevel)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
base_url: https://file.test
max_slippage: 0.02
retry_interval: 2
accounts:
  - index: 3
    api_index: 1
    l1_address: "0xCAFE"
    private_key: filekey
telegram:
  bot_api_key: bot123
  group_id: "-100"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BaseURL != "https://file.test" {
		t.Fatalf("base url = %q", cfg.BaseURL)
	}
	if cfg.MaxSlippage != 0.02 {
		t.Fatalf("slippage = %v", cfg.MaxSlippage)
	}
	if cfg.RetryInterval != 2*time.Second {
		t.Fatalf("retry interval = %s", cfg.RetryInterval)
	}
	if len(cfg.Accounts) != 1 || cfg.Accounts[0].Index != 3 || cfg.Accounts[0].PrivateKey != "filekey" {
		t.Fatalf("accounts = %+v", cfg.Accounts)
	}
	if cfg.Accounts[0].L1Address != "0xCAFE" {
		t.Fatalf("l1 address = %q", cfg.Accounts[0].L1Address)
	}
	if cfg.Telegram.BotAPIKey != "bot123" || cfg.Telegram.GroupID != "-100" {
		t.Fatalf("telegram = %+v", cfg.Telegram)
	}
	// Unset fields keep defaults.
	if cfg.StopLossRatio != 0.05 {
		t.Fatalf("stop loss ratio = %v", cfg.StopLossRatio)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("base_url: https://file.test\nmax_retries: 9\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("BASE_URL", "https://env.test")
	t.Setenv("MAX_SLIPPAGE", "0.03")
	t.Setenv("ACCOUNTS", `[{"index":7,"api_index":2,"private_key":"envkey"}]`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BaseURL != "https://env.test" {
		t.Fatalf("env should win over file, got %q", cfg.BaseURL)
	}
	if cfg.MaxSlippage != 0.03 {
		t.Fatalf("slippage = %v", cfg.MaxSlippage)
	}
	if cfg.MaxRetries != 9 {
		t.Fatalf("file value should win over default, got %d", cfg.MaxRetries)
	}
	if len(cfg.Accounts) != 1 || cfg.Accounts[0].Index != 7 {
		t.Fatalf("accounts = %+v", cfg.Accounts)
	}
}

func TestLoadBadAccountsEnv(t *testing.T) {
	t.Setenv("ACCOUNTS", "not json")
	if _, err := Load(""); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing base url", func(c *Config) { c.BaseURL = "" }},
		{"no accounts", func(c *Config) { c.Accounts = nil }},
		{"negative account index", func(c *Config) { c.Accounts[0].Index = -1 }},
		{"duplicate account index", func(c *Config) {
			c.Accounts = append(c.Accounts, AccountConfig{Index: 0, APIIndex: 2, PrivateKey: "k2"})
		}},
		{"missing private key", func(c *Config) { c.Accounts[0].PrivateKey = "" }},
		{"slippage too large", func(c *Config) { c.MaxSlippage = 1 }},
		{"slippage zero", func(c *Config) { c.MaxSlippage = 0 }},
		{"stop loss out of range", func(c *Config) { c.StopLossRatio = 1.5 }},
		{"scaling factor zero", func(c *Config) { c.ScalingFactor = 0 }},
		{"retries zero", func(c *Config) { c.MaxRetries = 0 }},
		{"retry interval zero", func(c *Config) { c.RetryInterval = 0 }},
		{"queue bound zero", func(c *Config) { c.QueueBound = 0 }},
		{"pool size zero", func(c *Config) { c.WorkerPoolSize = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
