package app

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/openai/openai-go/v3"

	"chem-assistant/internal/chat"
	"chem-assistant/internal/config"
	"chem-assistant/internal/llm"
	"chem-assistant/internal/logger"
	"chem-assistant/internal/session"
)

// Deps bundles the runtime dependencies of the server.
type Deps struct {
	Config config.Config
	Log    *slog.Logger
	Store  chat.Store
	LLM    llm.Client
	Chat   *chat.Service
}

// ClientDeps bundles the runtime dependencies of the terminal client.
type ClientDeps struct {
	Config   config.Config
	Log      *slog.Logger
	Sessions session.Store
	HTTP     *http.Client
}

// Build loads env, config, and the server components.
func Build() (Deps, error) {
	if err := loadDotEnv(); err != nil {
		return Deps{}, err
	}
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	st, err := buildStore(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize store: %w", err)
	}
	llmClient, err := buildLLM(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize LLM: %w", err)
	}
	svc := chat.NewService(st, llmClient, chat.Options{
		HistoryLimit: cfg.HistoryLimit,
		Retries:      cfg.LLMRetries,
		Log:          log,
	})
	return Deps{
		Config: cfg,
		Log:    log,
		Store:  st,
		LLM:    llmClient,
		Chat:   svc,
	}, nil
}

// BuildClient loads env, config, and the client components.
func BuildClient() (ClientDeps, error) {
	if err := loadDotEnv(); err != nil {
		return ClientDeps{}, err
	}
	cfg := config.Load()
	log := logger.NewWithWriter(os.Stderr, cfg.LogLevel)

	sessions, err := buildSessionStore(cfg, log)
	if err != nil {
		return ClientDeps{}, fmt.Errorf("failed to initialize session store: %w", err)
	}
	return ClientDeps{
		Config:   cfg,
		Log:      log,
		Sessions: sessions,
		HTTP:     &http.Client{Timeout: time.Duration(cfg.ClientTimeout) * time.Second},
	}, nil
}

// loadDotEnv reads .env when present; a missing file is not an error.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}
	return nil
}

func buildStore(cfg config.Config, log *slog.Logger) (chat.Store, error) {
	ttl := time.Duration(cfg.SessionTTL) * time.Second
	switch cfg.StoreProvider {
	case "memory":
		log.Info("using in-memory conversation store", "ttl", ttl)
		return chat.NewMemoryStore(ttl), nil
	case "redis":
		st, err := chat.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, ttl)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
		log.Info("using Redis conversation store", "addr", cfg.RedisAddr)
		return st, nil
	default:
		return nil, fmt.Errorf("invalid STORE_PROVIDER: %s (valid options: memory, redis)", cfg.StoreProvider)
	}
}

func buildLLM(cfg config.Config, log *slog.Logger) (llm.Client, error) {
	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
		client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:      cfg.OpenAIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       openai.ChatModel(cfg.LLMModel),
			Temperature: cfg.LLMTemperature,
			MaxTokens:   cfg.LLMMaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenAI client: %w", err)
		}
		log.Info("using OpenAI LLM client", "model", cfg.LLMModel)
		return client, nil
	default:
		return nil, fmt.Errorf("invalid LLM_PROVIDER: %s (valid option: openai)", cfg.LLMProvider)
	}
}

func buildSessionStore(cfg config.Config, log *slog.Logger) (session.Store, error) {
	switch cfg.SessionStore {
	case "memory":
		return session.NewMemoryStore(), nil
	case "redis":
		st, err := session.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.SessionKey, time.Duration(cfg.SessionTTL)*time.Second)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
		log.Info("using Redis session store", "addr", cfg.RedisAddr, "key", cfg.SessionKey)
		return st, nil
	default:
		return nil, fmt.Errorf("invalid SESSION_STORE: %s (valid options: memory, redis)", cfg.SessionStore)
	}
}
