// Package config loads service configuration from an optional YAML/JSON file
// overlaid with environment variables. Values are immutable after load.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AccountConfig identifies one managed exchange account and its signing key.
// L1Address is optional; when set, account lookups address the account by it
// instead of by index.
type AccountConfig struct {
	Index      int    `yaml:"index" json:"index"`
	APIIndex   int    `yaml:"api_index" json:"api_index"`
	L1Address  string `yaml:"l1_address" json:"l1_address"`
	PrivateKey string `yaml:"private_key" json:"private_key"`
}

// TelegramConfig is optional; an empty bot key switches to log-only
// notifications.
type TelegramConfig struct {
	BotAPIKey string `yaml:"bot_api_key" json:"bot_api_key"`
	GroupID   string `yaml:"group_id" json:"group_id"`
	ThreadID  int    `yaml:"thread_id" json:"thread_id"`
}

// Config is the full service configuration.
type Config struct {
	BaseURL  string
	Accounts []AccountConfig

	MaxSlippage   float64
	StopLossRatio float64
	ScalingFactor float64

	MaxRetries    int
	RetryInterval time.Duration

	QueueBound     int
	WorkerPoolSize int

	APIKey   string
	Telegram TelegramConfig

	LogLevel   string
	LogFile    string
	ListenAddr string
	DebugAddr  string
}

// configFile mirrors Config for YAML/JSON decoding.
type configFile struct {
	BaseURL        string          `yaml:"base_url" json:"base_url"`
	Accounts       []AccountConfig `yaml:"accounts" json:"accounts"`
	MaxSlippage    float64         `yaml:"max_slippage" json:"max_slippage"`
	StopLossRatio  float64         `yaml:"stop_loss_ratio" json:"stop_loss_ratio"`
	ScalingFactor  float64         `yaml:"scaling_factor" json:"scaling_factor"`
	MaxRetries     int             `yaml:"max_retries" json:"max_retries"`
	RetryInterval  int             `yaml:"retry_interval" json:"retry_interval"` // seconds
	QueueBound     int             `yaml:"queue_bound" json:"queue_bound"`
	WorkerPoolSize int             `yaml:"worker_pool_size" json:"worker_pool_size"`
	APIKey         string          `yaml:"api_key" json:"api_key"`
	Telegram       TelegramConfig  `yaml:"telegram" json:"telegram"`
	LogLevel       string          `yaml:"log_level" json:"log_level"`
	LogFile        string          `yaml:"log_file" json:"log_file"`
	ListenAddr     string          `yaml:"listen_addr" json:"listen_addr"`
	DebugAddr      string          `yaml:"debug_addr" json:"debug_addr"`
}

// Load reads the optional config file, then overlays environment variables.
// Env always wins over the file; the file wins over defaults.
func Load(filePath string) (*Config, error) {
	var cf configFile
	if filePath != "" {
		if err := loadConfigFile(filePath, &cf); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", filePath, err)
		}
	}

	accounts := cf.Accounts
	if raw := os.Getenv("ACCOUNTS"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &accounts); err != nil {
			return nil, fmt.Errorf("parse ACCOUNTS: %w", err)
		}
	}

	cfg := &Config{
		BaseURL:        getEnv("BASE_URL", orDefault(cf.BaseURL, "https://mainnet.zklighter.elliot.ai")),
		Accounts:       accounts,
		MaxSlippage:    parseFloatEnv("MAX_SLIPPAGE", orDefaultFloat(cf.MaxSlippage, 0.01)),
		StopLossRatio:  parseFloatEnv("STOP_LOSS_RATIO", orDefaultFloat(cf.StopLossRatio, 0.05)),
		ScalingFactor:  parseFloatEnv("SCALING_FACTOR", orDefaultFloat(cf.ScalingFactor, 1.0)),
		MaxRetries:     parseIntEnv("MAX_RETRIES", orDefaultInt(cf.MaxRetries, 3)),
		RetryInterval:  time.Duration(parseIntEnv("RETRY_INTERVAL", orDefaultInt(cf.RetryInterval, 5))) * time.Second,
		QueueBound:     parseIntEnv("QUEUE_BOUND", orDefaultInt(cf.QueueBound, 32)),
		WorkerPoolSize: parseIntEnv("WORKER_POOL_SIZE", orDefaultInt(cf.WorkerPoolSize, 8)),
		APIKey:         getEnv("API_KEY", cf.APIKey),
		Telegram: TelegramConfig{
			BotAPIKey: getEnv("TELEGRAM_BOT_API_KEY", cf.Telegram.BotAPIKey),
			GroupID:   getEnv("TELEGRAM_GROUP_ID", cf.Telegram.GroupID),
			ThreadID:  parseIntEnv("TELEGRAM_THREAD_ID", cf.Telegram.ThreadID),
		},
		LogLevel:   getEnv("LOG_LEVEL", orDefault(cf.LogLevel, "info")),
		LogFile:    getEnv("LOG_FILE", cf.LogFile),
		ListenAddr: getEnv("LISTEN_ADDR", orDefault(cf.ListenAddr, ":8080")),
		DebugAddr:  getEnv("DEBUG_ADDR", cf.DebugAddr),
	}
	return cfg, nil
}

func loadConfigFile(filePath string, cf *configFile) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cf)
	case ".json":
		return json.Unmarshal(data, cf)
	default:
		// Try YAML first, it is a superset of JSON for our purposes.
		if err := yaml.Unmarshal(data, cf); err != nil {
			return json.Unmarshal(data, cf)
		}
		return nil
	}
}

// Validate enforces ranges. Called once at startup; the service refuses to
// start on a bad config rather than guessing.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("BASE_URL is required")
	}
	if len(c.Accounts) == 0 {
		return fmt.Errorf("at least one account is required")
	}
	seen := make(map[int]bool, len(c.Accounts))
	for _, a := range c.Accounts {
		if a.Index < 0 {
			return fmt.Errorf("account index %d is invalid", a.Index)
		}
		if seen[a.Index] {
			return fmt.Errorf("duplicate account index %d", a.Index)
		}
		seen[a.Index] = true
		if a.PrivateKey == "" {
			return fmt.Errorf("account %d has no private key", a.Index)
		}
	}
	if c.MaxSlippage <= 0 || c.MaxSlippage >= 1 {
		return fmt.Errorf("MAX_SLIPPAGE must be in (0, 1)")
	}
	if c.StopLossRatio <= 0 || c.StopLossRatio >= 1 {
		return fmt.Errorf("STOP_LOSS_RATIO must be in (0, 1)")
	}
	if c.ScalingFactor <= 0 {
		return fmt.Errorf("SCALING_FACTOR must be positive")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("MAX_RETRIES must be at least 1")
	}
	if c.RetryInterval <= 0 {
		return fmt.Errorf("RETRY_INTERVAL must be positive")
	}
	if c.QueueBound < 1 {
		return fmt.Errorf("QUEUE_BOUND must be at least 1")
	}
	if c.WorkerPoolSize < 1 {
		return fmt.Errorf("WORKER_POOL_SIZE must be at least 1")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseFloatEnv(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func orDefault(v, d string) string {
	if v != "" {
		return v
	}
	return d
}

func orDefaultInt(v, d int) int {
	if v != 0 {
		return v
	}
	return d
}

func orDefaultFloat(v, d float64) float64 {
	if v != 0 {
		return v
	}
	return d
}
