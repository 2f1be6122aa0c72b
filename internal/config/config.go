package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App       AppConfig       `yaml:"app"`
	Storage   StorageConfig   `yaml:"storage"`
	Ai        AIConfig        `yaml:"ai"`
	Rag       RAGConfig       `yaml:"rag"`
	Listening ListeningConfig `yaml:"listening"`
	Auth      AuthConfig      `yaml:"auth"`
}

type AppConfig struct {
	Port               string `yaml:"port"`
	Environment        string `yaml:"environment"`
	LogFilePath        string `yaml:"log_file_path"`
	CaptureLogPath     string `yaml:"capture_log_path"`
	CorsAllowedOrigins string `yaml:"cors_allowed_origins"`
	BodyLimitMB        int    `yaml:"body_limit_mb"`
	NatsURL            string `yaml:"nats_url"`
	RedisURL           string `yaml:"redis_url"`
}

type StorageConfig struct {
	Backend        string `yaml:"backend"` // "sqlite" or "postgres"
	VectorStoreDir string `yaml:"vector_store_dir"`
	DatabaseDSN    string `yaml:"database_dsn"`
	CacheSize      int    `yaml:"cache_size"`
}

type AIConfig struct {
	EmbeddingProvider  string        `yaml:"embedding_provider"` // "openai" or "ollama"
	EmbeddingBaseURL   string        `yaml:"embedding_base_url"`
	EmbeddingModel     string        `yaml:"embedding_model"`
	EmbeddingAPIKey    string        `yaml:"embedding_api_key"`
	EmbeddingMode      string        `yaml:"embedding_mode"` // "per_text" or "bound"
	EmbeddingNormalize bool          `yaml:"embedding_normalize"`
	LLMProvider        string        `yaml:"llm_provider"` // "ollama" or "openai"
	LLMModel           string        `yaml:"llm_model"`
	LLMBaseURL         string        `yaml:"llm_base_url"`
	LLMAPIKey          string        `yaml:"llm_api_key"`
	LLMTemperature     float64       `yaml:"llm_temperature"`
	LLMMaxTokens       int           `yaml:"llm_max_tokens"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
}

type RAGConfig struct {
	TopK           int           `yaml:"top_k"`
	HistoryWindow  int           `yaml:"history_window"`
	SplitPolicy    string        `yaml:"split_policy"` // "sentence", "chunk" or "document"
	ChunkSize      int           `yaml:"chunk_size"`
	ChunkOverlap   int           `yaml:"chunk_overlap"`
	SystemPrompt   string        `yaml:"system_prompt"`
	FallbackAnswer string        `yaml:"fallback_answer"`
	ContextRole    string        `yaml:"context_role"` // "system" or "native"
	SessionTTL     time.Duration `yaml:"session_ttl"`
}

type ListeningConfig struct {
	Interval    time.Duration `yaml:"interval"`
	StopTimeout time.Duration `yaml:"stop_timeout"`
	Topic       string        `yaml:"topic"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// Default returns the built-in settings before any file or environment overrides.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Port:               "3000",
			Environment:        "development",
			LogFilePath:        "app.log",
			CaptureLogPath:     "capture.log",
			CorsAllowedOrigins: "*",
			BodyLimitMB:        10,
		},
		Storage: StorageConfig{
			Backend:        "sqlite",
			VectorStoreDir: "./vectorstores",
			CacheSize:      128,
		},
		Ai: AIConfig{
			EmbeddingProvider: "openai",
			EmbeddingBaseURL:  "http://localhost:11434/v1",
			EmbeddingModel:    "nomic-embed-text:latest",
			EmbeddingAPIKey:   "ollama",
			EmbeddingMode:     "per_text",
			LLMProvider:       "ollama",
			LLMModel:          "llama3",
			LLMBaseURL:        "http://localhost:11434",
			LLMTemperature:    0.5,
			LLMMaxTokens:      256,
			RequestTimeout:    120 * time.Second,
		},
		Rag: RAGConfig{
			TopK:           3,
			HistoryWindow:  6,
			SplitPolicy:    "sentence",
			ChunkSize:      500,
			ChunkOverlap:   50,
			SystemPrompt:   "You are a helpful customer support assistant.",
			FallbackAnswer: "Sorry, I couldn't get a response.",
			ContextRole:    "system",
			SessionTTL:     time.Hour,
		},
		Listening: ListeningConfig{
			Interval:    time.Second,
			StopTimeout: 5 * time.Second,
			Topic:       "capture.events",
		},
	}
}

// Load reads .env, then the optional YAML file named by DOCUBOT_CONFIG, then
// environment variables. Later sources win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	cfg := Default()
	if path := getEnv("DOCUBOT_CONFIG", ""); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.App.Port = getEnv("APP_PORT", c.App.Port)
	c.App.Environment = getEnv("GO_ENV", c.App.Environment)
	c.App.LogFilePath = getEnv("LOG_FILE_PATH", c.App.LogFilePath)
	c.App.CaptureLogPath = getEnv("CAPTURE_LOG_PATH", c.App.CaptureLogPath)
	c.App.CorsAllowedOrigins = getEnv("CORS_ALLOWED_ORIGINS", c.App.CorsAllowedOrigins)
	c.App.BodyLimitMB = getEnvAsInt("BODY_LIMIT_MB", c.App.BodyLimitMB)
	c.App.NatsURL = getEnv("NATS_URL", c.App.NatsURL)
	c.App.RedisURL = getEnv("REDIS_URL", c.App.RedisURL)

	c.Storage.Backend = getEnv("VECTOR_STORE_BACKEND", c.Storage.Backend)
	c.Storage.VectorStoreDir = getEnv("VECTOR_STORE_DIR", c.Storage.VectorStoreDir)
	c.Storage.DatabaseDSN = getEnv("DB_CONNECTION_STRING", c.Storage.DatabaseDSN)
	c.Storage.CacheSize = getEnvAsInt("VECTOR_STORE_CACHE_SIZE", c.Storage.CacheSize)

	c.Ai.EmbeddingProvider = getEnv("EMBEDDING_PROVIDER", c.Ai.EmbeddingProvider)
	c.Ai.EmbeddingBaseURL = getEnv("EMBEDDING_BASE_URL", c.Ai.EmbeddingBaseURL)
	c.Ai.EmbeddingModel = getEnv("EMBEDDING_MODEL", c.Ai.EmbeddingModel)
	c.Ai.EmbeddingAPIKey = getEnv("EMBEDDING_API_KEY", c.Ai.EmbeddingAPIKey)
	c.Ai.EmbeddingMode = getEnv("EMBEDDING_MODE", c.Ai.EmbeddingMode)
	c.Ai.EmbeddingNormalize = getEnvAsBool("EMBEDDING_NORMALIZE", c.Ai.EmbeddingNormalize)
	c.Ai.LLMProvider = getEnv("LLM_PROVIDER", c.Ai.LLMProvider)
	c.Ai.LLMModel = getEnv("LLM_MODEL", c.Ai.LLMModel)
	c.Ai.LLMBaseURL = getEnv("LLM_BASE_URL", c.Ai.LLMBaseURL)
	c.Ai.LLMAPIKey = getEnv("LLM_API_KEY", c.Ai.LLMAPIKey)
	c.Ai.LLMTemperature = getEnvAsFloat("LLM_TEMPERATURE", c.Ai.LLMTemperature)
	c.Ai.LLMMaxTokens = getEnvAsInt("LLM_MAX_TOKENS", c.Ai.LLMMaxTokens)
	c.Ai.RequestTimeout = getEnvAsDuration("AI_REQUEST_TIMEOUT", c.Ai.RequestTimeout)

	c.Rag.TopK = getEnvAsInt("RAG_TOP_K", c.Rag.TopK)
	c.Rag.HistoryWindow = getEnvAsInt("HISTORY_WINDOW", c.Rag.HistoryWindow)
	c.Rag.SplitPolicy = getEnv("SPLIT_POLICY", c.Rag.SplitPolicy)
	c.Rag.ChunkSize = getEnvAsInt("CHUNK_SIZE", c.Rag.ChunkSize)
	c.Rag.ChunkOverlap = getEnvAsInt("CHUNK_OVERLAP", c.Rag.ChunkOverlap)
	c.Rag.SystemPrompt = getEnv("SYSTEM_PROMPT", c.Rag.SystemPrompt)
	c.Rag.FallbackAnswer = getEnv("FALLBACK_ANSWER", c.Rag.FallbackAnswer)
	c.Rag.ContextRole = getEnv("LLM_CONTEXT_ROLE", c.Rag.ContextRole)
	c.Rag.SessionTTL = getEnvAsDuration("SESSION_TTL", c.Rag.SessionTTL)

	c.Listening.Interval = getEnvAsDuration("LISTEN_INTERVAL", c.Listening.Interval)
	c.Listening.StopTimeout = getEnvAsDuration("LISTEN_STOP_TIMEOUT", c.Listening.StopTimeout)
	c.Listening.Topic = getEnv("CAPTURE_TOPIC", c.Listening.Topic)

	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
}

// Validate rejects settings the process cannot start with.
func (c *Config) Validate() error {
	var problems []string

	switch c.Storage.Backend {
	case "sqlite":
		if c.Storage.VectorStoreDir == "" {
			problems = append(problems, "VECTOR_STORE_DIR is required for the sqlite backend")
		}
	case "postgres":
		if c.Storage.DatabaseDSN == "" {
			problems = append(problems, "DB_CONNECTION_STRING is required for the postgres backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown VECTOR_STORE_BACKEND %q", c.Storage.Backend))
	}

	if c.Ai.EmbeddingMode != "per_text" && c.Ai.EmbeddingMode != "bound" {
		problems = append(problems, fmt.Sprintf("unknown EMBEDDING_MODE %q", c.Ai.EmbeddingMode))
	}
	if c.Rag.TopK <= 0 {
		problems = append(problems, "RAG_TOP_K must be positive")
	}
	if c.Rag.HistoryWindow <= 0 {
		problems = append(problems, "HISTORY_WINDOW must be positive")
	}
	if c.Listening.Interval <= 0 {
		problems = append(problems, "LISTEN_INTERVAL must be positive")
	}
	if c.Listening.StopTimeout <= 0 {
		problems = append(problems, "LISTEN_STOP_TIMEOUT must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
