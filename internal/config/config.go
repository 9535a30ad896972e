// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token    string  `yaml:"token"`
	Username string  `yaml:"username"`
	AdminIDs []int64 `yaml:"admin_ids"`
	// Debounce is how long the media collector waits for an album to finish
	// arriving before draining it.
	Debounce time.Duration `yaml:"debounce"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	FileTTL  time.Duration `yaml:"file_ttl"` // telegram file bytes cache
}

type GenerationConfig struct {
	KieKey        string        `yaml:"kie_key"`
	APIBase       string        `yaml:"api_base"`
	UploadBase    string        `yaml:"upload_base"`
	Model         string        `yaml:"model"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	PollBudget    time.Duration `yaml:"poll_budget"`
	MaxConcurrent int           `yaml:"max_concurrent"` // poll-loop workers
	MaxInputFiles int           `yaml:"max_input_files"`
}

type PromptConfig struct {
	OpenRouterKey string `yaml:"openrouter_key"`
	Model         string `yaml:"model"`
	BaseURL       string `yaml:"base_url"`
}

type PaymentConfig struct {
	Platega struct {
		BaseURL    string `yaml:"base_url"`
		MerchantID string `yaml:"merchant_id"`
		Secret     string `yaml:"secret"`
		ReturnURL  string `yaml:"return_url"`
		FailedURL  string `yaml:"failed_url"`
	} `yaml:"platega"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	ReconcileBatch    int           `yaml:"reconcile_batch"`
}

type SubscriptionConfig struct {
	DefaultPlan     string        `yaml:"default_plan"`
	ExpirySweep     time.Duration `yaml:"expiry_sweep"`
	ExpiryBatch     int           `yaml:"expiry_batch"`
	RateLimitPerMin int           `yaml:"rate_limit_per_min"`
}

type HTTPConfig struct {
	Port int `yaml:"port"`
}

type Config struct {
	Bot          BotConfig          `yaml:"bot"`
	Log          LogConfig          `yaml:"log"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Generation   GenerationConfig   `yaml:"generation"`
	Prompt       PromptConfig       `yaml:"prompt"`
	Payment      PaymentConfig      `yaml:"payment"`
	Subscription SubscriptionConfig `yaml:"subscription"`
	HTTP         HTTPConfig         `yaml:"http"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Bot.Debounce <= 0 {
		cfg.Bot.Debounce = 800 * time.Millisecond
	}
	if cfg.Redis.FileTTL <= 0 {
		cfg.Redis.FileTTL = 15 * time.Minute
	}
	if cfg.Generation.APIBase == "" {
		cfg.Generation.APIBase = "https://api.kie.ai"
	}
	if cfg.Generation.UploadBase == "" {
		cfg.Generation.UploadBase = "https://kieai.redpandaai.co"
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "nano-banana-pro"
	}
	if cfg.Generation.PollInterval <= 0 {
		cfg.Generation.PollInterval = 10 * time.Second
	}
	if cfg.Generation.PollBudget <= 0 {
		cfg.Generation.PollBudget = 12 * time.Minute
	}
	if cfg.Generation.MaxConcurrent <= 0 {
		cfg.Generation.MaxConcurrent = 16
	}
	if cfg.Generation.MaxInputFiles <= 0 {
		cfg.Generation.MaxInputFiles = 5
	}
	if cfg.Prompt.Model == "" {
		cfg.Prompt.Model = "openai/gpt-oss-120b"
	}
	if cfg.Prompt.BaseURL == "" {
		cfg.Prompt.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Payment.Platega.BaseURL == "" {
		cfg.Payment.Platega.BaseURL = "https://app.platega.io"
	}
	if cfg.Payment.ReconcileInterval <= 0 {
		cfg.Payment.ReconcileInterval = 20 * time.Second
	}
	if cfg.Payment.ReconcileBatch <= 0 {
		cfg.Payment.ReconcileBatch = 50
	}
	if cfg.Subscription.DefaultPlan == "" {
		cfg.Subscription.DefaultPlan = "Base"
	}
	if cfg.Subscription.ExpirySweep <= 0 {
		cfg.Subscription.ExpirySweep = 24 * time.Hour
	}
	if cfg.Subscription.ExpiryBatch <= 0 {
		cfg.Subscription.ExpiryBatch = 200
	}
	if cfg.Subscription.RateLimitPerMin <= 0 {
		cfg.Subscription.RateLimitPerMin = 20
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}

	// Minimal validation
	if cfg.Bot.Token == "" {
		return nil, errors.New("bot.token is required")
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
