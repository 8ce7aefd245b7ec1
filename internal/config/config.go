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

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type RedisConfig struct {
	URL      string `yaml:"url"` // empty disables the rate limiter
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AIConfig struct {
	OpenAIKey       string `yaml:"openai_key"`
	OpenAIBaseURL   string `yaml:"openai_base_url"`
	GeminiKey       string `yaml:"gemini_key"`
	GeminiURL       string `yaml:"gemini_url"`
	DefaultModel    string `yaml:"default_model"`
	MaxOutputTokens int    `yaml:"max_output_tokens"`
}

type PipelineConfig struct {
	ItemTimeout    time.Duration `yaml:"item_timeout"`    // per-card generation deadline
	SummaryTimeout time.Duration `yaml:"summary_timeout"` // final aggregation deadline
	Pacing         time.Duration `yaml:"pacing"`          // delay between cards
	Supersede      bool          `yaml:"supersede"`       // new job cancels the session's previous one
}

type StoreConfig struct {
	Retention     time.Duration `yaml:"retention"`      // how long terminal jobs stay queryable
	SweepInterval time.Duration `yaml:"sweep_interval"` // how often the sweep runs
}

type GatewayConfig struct {
	EventRateLimit  int           `yaml:"event_rate_limit"`  // interaction batches per window per session
	EventRateWindow time.Duration `yaml:"event_rate_window"` //
	SendBuffer      int           `yaml:"send_buffer"`       // per-connection outbound queue
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Redis    RedisConfig    `yaml:"redis"`
	AI       AIConfig       `yaml:"ai"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Store    StoreConfig    `yaml:"store"`
	Gateway  GatewayConfig  `yaml:"gateway"`

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
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "gpt-4o-mini"
	}
	if cfg.AI.MaxOutputTokens <= 0 {
		cfg.AI.MaxOutputTokens = 1024
	}
	if cfg.Pipeline.ItemTimeout <= 0 {
		cfg.Pipeline.ItemTimeout = 15 * time.Second
	}
	if cfg.Pipeline.SummaryTimeout <= 0 {
		cfg.Pipeline.SummaryTimeout = 20 * time.Second
	}
	if cfg.Pipeline.Pacing <= 0 {
		cfg.Pipeline.Pacing = 500 * time.Millisecond
	}
	if cfg.Store.Retention <= 0 {
		cfg.Store.Retention = 24 * time.Hour
	}
	if cfg.Store.SweepInterval <= 0 {
		cfg.Store.SweepInterval = time.Hour
	}
	if cfg.Gateway.EventRateLimit <= 0 {
		cfg.Gateway.EventRateLimit = 30
	}
	if cfg.Gateway.EventRateWindow <= 0 {
		cfg.Gateway.EventRateWindow = time.Minute
	}
	if cfg.Gateway.SendBuffer <= 0 {
		cfg.Gateway.SendBuffer = 64
	}

	// Minimal validation
	if !dev && cfg.AI.OpenAIKey == "" && cfg.AI.GeminiKey == "" {
		return nil, errors.New("ai.openai_key or ai.gemini_key is required outside dev mode")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
