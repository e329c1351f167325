package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Redis       RedisConfig               `json:"redis"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Retriever   RetrieverConfig           `json:"retriever"`
	Session     SessionConfig             `json:"session"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address"`
	// Provider selects the generation backend from Providers.
	Provider string `json:"provider"`
	// InstructionPath points at the prompt instruction text. Empty means
	// the built-in default instruction is used.
	InstructionPath string `json:"instruction_path"`
	MinWorkers      int    `json:"min_workers"`
	MaxWorkers      int    `json:"max_workers"`
	QueueSize       int    `json:"queue_size"`
	// WorkerIdleTimeout is in minutes.
	WorkerIdleTimeout int `json:"worker_idle_timeout"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type RetrieverConfig struct {
	PostgresDSN    string  `json:"postgres_dsn"`
	Table          string  `json:"table"`
	EmbeddingModel string  `json:"embedding_model"`
	TopK           int     `json:"top_k"`
	ScoreThreshold float64 `json:"score_threshold"`
}

type SessionConfig struct {
	Prefix        string `json:"prefix"`
	TTLSeconds    int    `json:"ttl_seconds"`
	HistoryWindow int    `json:"history_window"`
}

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Retriever.PostgresDSN == "" {
		return nil, fmt.Errorf("retriever.postgres_dsn must be configured")
	}
	if cfg.BasicConfig.Provider == "" {
		return nil, fmt.Errorf("basic_config.provider must be configured")
	}
	if _, ok := cfg.Providers[cfg.BasicConfig.Provider]; !ok {
		return nil, fmt.Errorf("provider %s not present in providers", cfg.BasicConfig.Provider)
	}

	if cfg.BasicConfig.InstructionPath != "" && !filepath.IsAbs(cfg.BasicConfig.InstructionPath) {
		cfg.BasicConfig.InstructionPath = filepath.Join(filepath.Dir(absPath), cfg.BasicConfig.InstructionPath)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Retriever.Table == "" {
		c.Retriever.Table = "documents"
	}
	if c.Retriever.EmbeddingModel == "" {
		c.Retriever.EmbeddingModel = "gemini-embedding-001"
	}
	if c.Retriever.TopK <= 0 {
		c.Retriever.TopK = 10
	}
	if c.Session.Prefix == "" {
		c.Session.Prefix = "session"
	}
	if c.Session.TTLSeconds <= 0 {
		c.Session.TTLSeconds = 3600
	}
	if c.Session.HistoryWindow <= 0 {
		c.Session.HistoryWindow = 3
	}
}
