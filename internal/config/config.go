package config

import (
	"log/slog"

	"github.com/caarlos0/env/v10"
)

// Config holds runtime configuration for the server and the terminal client.
type Config struct {
	// Server
	Port           int    `env:"PORT" envDefault:"8000"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	StaticDir      string `env:"STATIC_DIR" envDefault:"static"`
	RequestTimeout int    `env:"REQUEST_TIMEOUT" envDefault:"120"` // seconds

	// Upload limits
	MaxUploadSize int64 `env:"MAX_UPLOAD_SIZE" envDefault:"10485760"` // 10MB in bytes

	// Conversation store
	StoreProvider string `env:"STORE_PROVIDER" envDefault:"memory"` // "memory" (single instance) or "redis"
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	SessionTTL    int    `env:"SESSION_TTL" envDefault:"86400"` // seconds
	HistoryLimit  int    `env:"HISTORY_LIMIT" envDefault:"20"`  // messages kept per session

	// LLM
	LLMProvider    string  `env:"LLM_PROVIDER" envDefault:"openai"`
	OpenAIKey      string  `env:"OPENAI_API_KEY"`
	OpenAIBaseURL  string  `env:"OPENAI_BASE_URL"`
	LLMModel       string  `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	LLMTemperature float64 `env:"LLM_TEMPERATURE" envDefault:"0.6"`
	LLMMaxTokens   int64   `env:"LLM_MAX_TOKENS" envDefault:"8192"`
	LLMRetries     int     `env:"LLM_RETRIES" envDefault:"2"`

	// Client
	AssistantURL   string `env:"ASSISTANT_URL" envDefault:"http://127.0.0.1:8000"`
	ClientEncoding string `env:"CLIENT_ENCODING" envDefault:"multipart"` // "multipart" or "json"
	ClientTimeout  int    `env:"CLIENT_TIMEOUT" envDefault:"0"`          // seconds, 0 leaves the transport default
	SessionStore   string `env:"SESSION_STORE" envDefault:"memory"`      // "memory" or "redis"
	SessionKey     string `env:"SESSION_KEY" envDefault:"bengaliChemSessionId"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		slog.Warn("failed to parse env; using defaults where set", "err", err)
	}
	return cfg
}
