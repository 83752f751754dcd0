package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "country_prefix: \"BR\"\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.GDELTBaseURL != "http://data.gdeltproject.org/gdeltv2" {
		t.Errorf("GDELTBaseURL = %q", cfg.GDELTBaseURL)
	}
	if cfg.LookbackDays != 7 {
		t.Errorf("LookbackDays = %d, want 7", cfg.LookbackDays)
	}
	if cfg.TitleWorkers != 20 {
		t.Errorf("TitleWorkers = %d, want 20", cfg.TitleWorkers)
	}
	if cfg.TitleTimeoutSecs != 5 {
		t.Errorf("TitleTimeoutSecs = %d, want 5", cfg.TitleTimeoutSecs)
	}
	if cfg.EmbeddingModel != "sentence-transformers/all-MiniLM-L6-v2" {
		t.Errorf("EmbeddingModel = %q", cfg.EmbeddingModel)
	}
	if cfg.EmbeddingBatchSize != 32 {
		t.Errorf("EmbeddingBatchSize = %d, want 32", cfg.EmbeddingBatchSize)
	}
	if cfg.TSNEPerplexity != 30 {
		t.Errorf("TSNEPerplexity = %v, want 30", cfg.TSNEPerplexity)
	}
	if cfg.TSNEIterations != 1000 {
		t.Errorf("TSNEIterations = %d, want 1000", cfg.TSNEIterations)
	}
	if cfg.TSNESeed != 42 {
		t.Errorf("TSNESeed = %d, want 42", cfg.TSNESeed)
	}
	if cfg.ClusterCount != 10 {
		t.Errorf("ClusterCount = %d, want 10", cfg.ClusterCount)
	}
	if cfg.ClusterKeywords != 3 {
		t.Errorf("ClusterKeywords = %d, want 3", cfg.ClusterKeywords)
	}
	if cfg.ClusterRestarts != 10 {
		t.Errorf("ClusterRestarts = %d, want 10", cfg.ClusterRestarts)
	}
	if cfg.EventsPath != "data/events.csv" {
		t.Errorf("EventsPath = %q", cfg.EventsPath)
	}
	if cfg.HTMLPath != "docs/index.html" {
		t.Errorf("HTMLPath = %q", cfg.HTMLPath)
	}
	if cfg.DBPath != "data/gdelt-stars.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.ScheduleTime != "06:00" {
		t.Errorf("ScheduleTime = %q, want 06:00", cfg.ScheduleTime)
	}
	if cfg.Timezone != "UTC" {
		t.Errorf("Timezone = %q, want UTC", cfg.Timezone)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoadOverrideDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
country_prefix: "AR"
lookback_days: 3
title_workers: 5
title_timeout_secs: 10
embedding_model: "custom/model"
embedding_batch_size: 16
tsne_perplexity: 15
tsne_seed: 7
cluster_count: 5
cluster_keywords: 4
events_path: "/tmp/e.csv"
html_path: "/tmp/out.html"
schedule_time: "18:30"
timezone: "America/Sao_Paulo"
log_level: "debug"
telegram_token: "tok"
telegram_chat_id: 99
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.CountryPrefix != "AR" {
		t.Errorf("CountryPrefix = %q, want AR", cfg.CountryPrefix)
	}
	if cfg.LookbackDays != 3 {
		t.Errorf("LookbackDays = %d, want 3", cfg.LookbackDays)
	}
	if cfg.TitleWorkers != 5 {
		t.Errorf("TitleWorkers = %d, want 5", cfg.TitleWorkers)
	}
	if cfg.EmbeddingModel != "custom/model" {
		t.Errorf("EmbeddingModel = %q", cfg.EmbeddingModel)
	}
	if cfg.TSNEPerplexity != 15 {
		t.Errorf("TSNEPerplexity = %v, want 15", cfg.TSNEPerplexity)
	}
	if cfg.TSNESeed != 7 {
		t.Errorf("TSNESeed = %d, want 7", cfg.TSNESeed)
	}
	if cfg.ClusterCount != 5 {
		t.Errorf("ClusterCount = %d, want 5", cfg.ClusterCount)
	}
	if cfg.ScheduleTime != "18:30" {
		t.Errorf("ScheduleTime = %q, want 18:30", cfg.ScheduleTime)
	}
	if cfg.Timezone != "America/Sao_Paulo" {
		t.Errorf("Timezone = %q", cfg.Timezone)
	}
	if cfg.TelegramChatID != 99 {
		t.Errorf("TelegramChatID = %d, want 99", cfg.TelegramChatID)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"negative lookback", "lookback_days: -1\n"},
		{"negative workers", "title_workers: -3\n"},
		{"negative batch", "embedding_batch_size: -8\n"},
		{"negative clusters", "cluster_count: -2\n"},
		{"bad log level", "log_level: \"loud\"\n"},
		{"bad schedule format", "schedule_time: \"9:00\"\n"},
		{"bad schedule hours", "schedule_time: \"25:00\"\n"},
		{"bad schedule minutes", "schedule_time: \"09:60\"\n"},
		{"token without chat id", "telegram_token: \"tok\"\n"},
		{"chat id without token", "telegram_chat_id: 42\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Errorf("expected error for %s", tt.name)
			}
		})
	}
}

func TestLoadValidScheduleTimes(t *testing.T) {
	for _, tt := range []string{"00:00", "06:00", "12:30", "23:59"} {
		t.Run(tt, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, "schedule_time: \""+tt+"\"\n"))
			if err != nil {
				t.Fatalf("unexpected error for schedule_time %q: %v", tt, err)
			}
			if cfg.ScheduleTime != tt {
				t.Errorf("ScheduleTime = %q, want %q", cfg.ScheduleTime, tt)
			}
		})
	}
}

func TestLoadInvalidTimezone(t *testing.T) {
	if _, err := Load(writeConfig(t, "timezone: \"Invalid/Zone\"\n")); err == nil {
		t.Fatal("expected error for invalid timezone")
	}
}

func TestLoadFileNotFound(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "invalid: yaml: content:")); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestEnvironmentVariableOverrides(t *testing.T) {
	path := writeConfig(t, `
huggingface_token: "file-token"
telegram_token: "file-tg"
telegram_chat_id: 1
`)

	os.Setenv("HUGGINGFACE_TOKEN", "env-token")
	os.Setenv("TELEGRAM_BOT_TOKEN", "env-tg")
	os.Setenv("TELEGRAM_CHAT_ID", "777")
	defer os.Unsetenv("HUGGINGFACE_TOKEN")
	defer os.Unsetenv("TELEGRAM_BOT_TOKEN")
	defer os.Unsetenv("TELEGRAM_CHAT_ID")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HuggingFaceToken != "env-token" {
		t.Errorf("HuggingFaceToken = %q, want env-token", cfg.HuggingFaceToken)
	}
	if cfg.TelegramToken != "env-tg" {
		t.Errorf("TelegramToken = %q, want env-tg", cfg.TelegramToken)
	}
	if cfg.TelegramChatID != 777 {
		t.Errorf("TelegramChatID = %d, want 777", cfg.TelegramChatID)
	}
}

func TestDefaultWithoutConfigFile(t *testing.T) {
	os.Unsetenv("HUGGINGFACE_TOKEN")
	os.Unsetenv("TELEGRAM_BOT_TOKEN")
	os.Unsetenv("TELEGRAM_CHAT_ID")

	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default failed: %v", err)
	}
	if cfg.LookbackDays != 7 || cfg.ClusterCount != 10 {
		t.Errorf("defaults not applied: days=%d clusters=%d", cfg.LookbackDays, cfg.ClusterCount)
	}
	if cfg.TelegramToken != "" || cfg.TelegramChatID != 0 {
		t.Errorf("telegram should be unset by default")
	}
}

func TestGetConfigPath(t *testing.T) {
	os.Unsetenv("GDELT_STARS_CONFIG")
	if path := GetConfigPath(); path != "./config.yaml" {
		t.Errorf("GetConfigPath() = %q, want ./config.yaml", path)
	}

	os.Setenv("GDELT_STARS_CONFIG", "/custom/config.yaml")
	defer os.Unsetenv("GDELT_STARS_CONFIG")
	if path := GetConfigPath(); path != "/custom/config.yaml" {
		t.Errorf("GetConfigPath() = %q, want /custom/config.yaml", path)
	}
}
