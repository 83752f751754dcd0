package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	GDELTBaseURL  string `yaml:"gdelt_base_url"`
	CountryPrefix string `yaml:"country_prefix"`
	LookbackDays  int    `yaml:"lookback_days"`

	TitleWorkers     int `yaml:"title_workers"`
	TitleTimeoutSecs int `yaml:"title_timeout_secs"`

	EmbeddingBaseURL     string `yaml:"embedding_base_url"`
	EmbeddingModel       string `yaml:"embedding_model"`
	HuggingFaceToken     string `yaml:"huggingface_token"`
	EmbeddingBatchSize   int    `yaml:"embedding_batch_size"`
	EmbeddingTimeoutSecs int    `yaml:"embedding_timeout_secs"`
	WarmupBudgetSecs     int    `yaml:"warmup_budget_secs"`

	TSNEPerplexity   float64 `yaml:"tsne_perplexity"`
	TSNELearningRate float64 `yaml:"tsne_learning_rate"`
	TSNEIterations   int     `yaml:"tsne_iterations"`
	TSNESeed         int64   `yaml:"tsne_seed"`

	ClusterCount    int   `yaml:"cluster_count"`
	ClusterKeywords int   `yaml:"cluster_keywords"`
	ClusterRestarts int   `yaml:"cluster_restarts"`
	ClusterSeed     int64 `yaml:"cluster_seed"`

	EventsPath    string `yaml:"events_path"`
	EnrichedPath  string `yaml:"enriched_path"`
	ClusteredPath string `yaml:"clustered_path"`
	HTMLPath      string `yaml:"html_path"`
	DBPath        string `yaml:"db_path"`

	ScheduleTime string `yaml:"schedule_time"`
	Timezone     string `yaml:"timezone"`

	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`

	LogLevel string `yaml:"log_level"`
}

// scheduleTimeRegex validates HH:MM format with proper ranges.
var scheduleTimeRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// Load reads configuration from a YAML file and applies defaults and
// environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	applyDefaults(cfg)
	applyEnvironmentOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration used when no config file exists.
// Environment overrides still apply.
func Default() (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	applyEnvironmentOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// GetConfigPath returns the config file path from environment or default.
func GetConfigPath() string {
	if path := os.Getenv("GDELT_STARS_CONFIG"); path != "" {
		return path
	}
	return "./config.yaml"
}

func applyDefaults(cfg *Config) {
	if cfg.GDELTBaseURL == "" {
		cfg.GDELTBaseURL = "http://data.gdeltproject.org/gdeltv2"
	}
	if cfg.CountryPrefix == "" {
		cfg.CountryPrefix = "BR"
	}
	if cfg.LookbackDays == 0 {
		cfg.LookbackDays = 7
	}
	if cfg.TitleWorkers == 0 {
		cfg.TitleWorkers = 20
	}
	if cfg.TitleTimeoutSecs == 0 {
		cfg.TitleTimeoutSecs = 5
	}
	if cfg.EmbeddingBaseURL == "" {
		cfg.EmbeddingBaseURL = "https://api-inference.huggingface.co"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "sentence-transformers/all-MiniLM-L6-v2"
	}
	if cfg.EmbeddingBatchSize == 0 {
		cfg.EmbeddingBatchSize = 32
	}
	if cfg.EmbeddingTimeoutSecs == 0 {
		cfg.EmbeddingTimeoutSecs = 60
	}
	if cfg.WarmupBudgetSecs == 0 {
		cfg.WarmupBudgetSecs = 300
	}
	if cfg.TSNEPerplexity == 0 {
		cfg.TSNEPerplexity = 30
	}
	if cfg.TSNELearningRate == 0 {
		cfg.TSNELearningRate = 200
	}
	if cfg.TSNEIterations == 0 {
		cfg.TSNEIterations = 1000
	}
	if cfg.TSNESeed == 0 {
		cfg.TSNESeed = 42
	}
	if cfg.ClusterCount == 0 {
		cfg.ClusterCount = 10
	}
	if cfg.ClusterKeywords == 0 {
		cfg.ClusterKeywords = 3
	}
	if cfg.ClusterRestarts == 0 {
		cfg.ClusterRestarts = 10
	}
	if cfg.ClusterSeed == 0 {
		cfg.ClusterSeed = 42
	}
	if cfg.EventsPath == "" {
		cfg.EventsPath = "data/events.csv"
	}
	if cfg.EnrichedPath == "" {
		cfg.EnrichedPath = "data/events_enriched.csv"
	}
	if cfg.ClusteredPath == "" {
		cfg.ClusteredPath = "data/events_clustered.csv"
	}
	if cfg.HTMLPath == "" {
		cfg.HTMLPath = "docs/index.html"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "data/gdelt-stars.db"
	}
	if cfg.ScheduleTime == "" {
		cfg.ScheduleTime = "06:00"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

func applyEnvironmentOverrides(cfg *Config) {
	if token := os.Getenv("HUGGINGFACE_TOKEN"); token != "" {
		cfg.HuggingFaceToken = token
	}
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		cfg.TelegramToken = token
	}
	if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			cfg.TelegramChatID = id
		}
	}
}

func validate(cfg *Config) error {
	if cfg.LookbackDays < 1 {
		return fmt.Errorf("lookback_days must be positive, got %d", cfg.LookbackDays)
	}
	if cfg.TitleWorkers < 1 {
		return fmt.Errorf("title_workers must be positive, got %d", cfg.TitleWorkers)
	}
	if cfg.TitleTimeoutSecs < 1 {
		return fmt.Errorf("title_timeout_secs must be positive, got %d", cfg.TitleTimeoutSecs)
	}
	if cfg.EmbeddingBatchSize < 1 {
		return fmt.Errorf("embedding_batch_size must be positive, got %d", cfg.EmbeddingBatchSize)
	}
	if cfg.TSNEPerplexity <= 0 {
		return fmt.Errorf("tsne_perplexity must be positive, got %v", cfg.TSNEPerplexity)
	}
	if cfg.TSNELearningRate <= 0 {
		return fmt.Errorf("tsne_learning_rate must be positive, got %v", cfg.TSNELearningRate)
	}
	if cfg.TSNEIterations < 1 {
		return fmt.Errorf("tsne_iterations must be positive, got %d", cfg.TSNEIterations)
	}
	if cfg.ClusterCount < 1 {
		return fmt.Errorf("cluster_count must be positive, got %d", cfg.ClusterCount)
	}
	if cfg.ClusterKeywords < 1 {
		return fmt.Errorf("cluster_keywords must be positive, got %d", cfg.ClusterKeywords)
	}
	if cfg.ClusterRestarts < 1 {
		return fmt.Errorf("cluster_restarts must be positive, got %d", cfg.ClusterRestarts)
	}
	if !scheduleTimeRegex.MatchString(cfg.ScheduleTime) {
		return fmt.Errorf("schedule_time must be in HH:MM format (00:00-23:59), got %q", cfg.ScheduleTime)
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	if (cfg.TelegramToken == "") != (cfg.TelegramChatID == 0) {
		return fmt.Errorf("telegram_token and telegram_chat_id must be set together")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", cfg.LogLevel)
	}
	return nil
}
