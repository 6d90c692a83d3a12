package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all kernel settings.
type Config struct {
	LLM    LLMConfig    `mapstructure:"llm"`
	Output OutputConfig `mapstructure:"output"`
	Job    JobConfig    `mapstructure:"job"`
	Server ServerConfig `mapstructure:"server"`
	Leads  LeadsConfig  `mapstructure:"leads"`
}

// LLMConfig selects and tunes the generation backend.
type LLMConfig struct {
	Provider   string        `mapstructure:"provider"` // ollama | openai
	BaseURL    string        `mapstructure:"base_url"`
	Model      string        `mapstructure:"model"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// OutputConfig controls artifact storage.
type OutputConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// JobConfig bounds the runner and the retention window.
type JobConfig struct {
	MaxConcurrent     int64 `mapstructure:"max_concurrent"`
	LogRetentionHours int   `mapstructure:"log_retention_hours"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LeadsConfig locates the market scraper database.
type LeadsConfig struct {
	DBPath string `mapstructure:"db_path"`
}

func (c Config) Validate() error {
	if c.Job.MaxConcurrent <= 0 {
		return fmt.Errorf("job.max_concurrent must be > 0")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	switch c.LLM.Provider {
	case "ollama", "openai", "lmstudio":
	default:
		return fmt.Errorf("llm.provider must be one of ollama, openai, lmstudio")
	}
	return nil
}

// Load reads default.yaml, an optional local.yaml override, and
// CURUNIR_* environment variables (CURUNIR_LLM_BASE_URL overrides
// llm.base_url).
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("llm.provider", "ollama")
	v.SetDefault("llm.base_url", "http://localhost:11434")
	v.SetDefault("llm.model", "qwen2.5:latest")
	v.SetDefault("llm.timeout", "120s")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("output.base_path", "./storage/artifacts")
	v.SetDefault("job.max_concurrent", 4)
	v.SetDefault("job.log_retention_hours", 24)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("leads.db_path", "./storage/market_scraper.duckdb")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("default")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("CURUNIR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Defaults plus env are a workable configuration on their own.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if path == "" {
		local := viper.New()
		local.SetConfigName("local")
		local.SetConfigType("yaml")
		local.AddConfigPath("./config")
		local.AddConfigPath(".")
		if err := local.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(local.AllSettings()); err != nil {
				return Config{}, fmt.Errorf("merge local config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
