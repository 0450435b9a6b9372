package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig      `toml:"app"`
	Auth     AuthConfig     `toml:"auth"`
	LLM      LLMConfig      `toml:"llm"`
	Search   SearchConfig   `toml:"search"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	RabbitMQ RabbitMQConfig `toml:"rabbitmq"`
}

type AppConfig struct {
	Name        string   `toml:"name"`
	Env         string   `toml:"env"`
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	GinMode     string   `toml:"gin_mode"`
	CORSOrigins []string `toml:"cors_origins"`
}

type AuthConfig struct {
	JWTSecret       string `toml:"jwt_secret"`
	JWTExpireMinute int    `toml:"jwt_expire_minute"`
}

type LLMConfig struct {
	BaseURL    string `toml:"base_url"`
	APIKey     string `toml:"api_key"`
	Model      string `toml:"model"`
	TitleModel string `toml:"title_model"`
}

type SearchConfig struct {
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
	Location string `toml:"location"`
	Country  string `toml:"country"`
	Language string `toml:"language"`
}

type PostgresConfig struct {
	DSN string `toml:"dsn"`
}

type RedisConfig struct {
	Addr                   string `toml:"addr"`
	Password               string `toml:"password"`
	DB                     int    `toml:"db"`
	HistoryTTLSeconds      int    `toml:"history_ttl_seconds"`
	HistoryDirtyTTLSeconds int    `toml:"history_dirty_ttl_seconds"`
}

type RabbitMQConfig struct {
	URL        string `toml:"url"`
	TitleQueue string `toml:"title_queue"`
}

func Load() (*Config, error) {
	// Missing .env is fine; explicit env vars still apply.
	_ = godotenv.Load()

	cfg := defaultConfig()

	configPath := getEnv("CONFIG_FILE", "configs/config.toml")
	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("decode config file failed: %w", err)
		}
	}

	overrideByEnv(cfg)
	return cfg, nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.App.Host, c.App.Port)
}

// LLMConfigured reports whether a completion provider key is present.
func (c *Config) LLMConfigured() bool {
	return c.LLM.APIKey != ""
}

// SearchConfigured reports whether a search provider key is present.
func (c *Config) SearchConfigured() bool {
	return c.Search.APIKey != ""
}

// StoreConfigured reports whether the backing datastore is present.
func (c *Config) StoreConfigured() bool {
	return c.Postgres.DSN != ""
}

// CacheConfigured reports whether the history cache is present.
func (c *Config) CacheConfigured() bool {
	return c.Redis.Addr != ""
}

// BrokerConfigured reports whether the async title queue is present.
func (c *Config) BrokerConfigured() bool {
	return c.RabbitMQ.URL != ""
}

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:    "ai-chat",
			Env:     "dev",
			Host:    "0.0.0.0",
			Port:    8080,
			GinMode: "debug",
		},
		Auth: AuthConfig{
			JWTSecret:       "change-me-in-production",
			JWTExpireMinute: 120,
		},
		LLM: LLMConfig{
			BaseURL:    "https://api.openai.com/v1",
			APIKey:     "",
			Model:      "gpt-4o-mini",
			TitleModel: "gpt-4o-mini",
		},
		Search: SearchConfig{
			APIKey:   "",
			BaseURL:  "https://google.serper.dev",
			Location: "Saudi Arabia",
			Country:  "sa",
			Language: "ar",
		},
		Postgres: PostgresConfig{
			DSN: "",
		},
		Redis: RedisConfig{
			Addr:                   "",
			Password:               "",
			DB:                     0,
			HistoryTTLSeconds:      60,
			HistoryDirtyTTLSeconds: 5,
		},
		RabbitMQ: RabbitMQConfig{
			URL:        "",
			TitleQueue: "chat.title.generate",
		},
	}
}

func overrideByEnv(cfg *Config) {
	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.Host = getEnv("APP_HOST", cfg.App.Host)
	cfg.App.Port = getEnvAsInt("APP_PORT", cfg.App.Port)
	cfg.App.GinMode = getEnv("GIN_MODE", cfg.App.GinMode)

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.JWTExpireMinute = getEnvAsInt("JWT_EXPIRE_MINUTE", cfg.Auth.JWTExpireMinute)

	cfg.LLM.BaseURL = getEnv("OPENAI_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.APIKey = getEnv("OPENAI_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.Model = getEnv("OPENAI_MODEL", cfg.LLM.Model)
	cfg.LLM.TitleModel = getEnv("OPENAI_TITLE_MODEL", cfg.LLM.TitleModel)

	cfg.Search.APIKey = getEnv("SERPER_API_KEY", cfg.Search.APIKey)
	cfg.Search.BaseURL = getEnv("SERPER_BASE_URL", cfg.Search.BaseURL)
	cfg.Search.Location = getEnv("SERPER_LOCATION", cfg.Search.Location)
	cfg.Search.Country = getEnv("SERPER_COUNTRY", cfg.Search.Country)
	cfg.Search.Language = getEnv("SERPER_LANGUAGE", cfg.Search.Language)

	cfg.Postgres.DSN = getEnv("DATABASE_URL", cfg.Postgres.DSN)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.HistoryTTLSeconds = getEnvAsInt("REDIS_HISTORY_TTL_SECONDS", cfg.Redis.HistoryTTLSeconds)
	cfg.Redis.HistoryDirtyTTLSeconds = getEnvAsInt("REDIS_HISTORY_DIRTY_TTL_SECONDS", cfg.Redis.HistoryDirtyTTLSeconds)

	cfg.RabbitMQ.URL = getEnv("RABBITMQ_URL", cfg.RabbitMQ.URL)
	cfg.RabbitMQ.TitleQueue = getEnv("RABBITMQ_TITLE_QUEUE", cfg.RabbitMQ.TitleQueue)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
