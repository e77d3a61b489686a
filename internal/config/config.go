package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Backends  BackendConfig
	Embedding EmbeddingConfig
	Index     IndexConfig
	Session   SessionConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

type AuthConfig struct {
	Enabled   bool
	JWTSecret string
}

type BackendConfig struct {
	OpenAIKey      string
	OpenAIBaseURL  string
	AnthropicKey   string
	AnthropicURL   string
	OllamaBaseURL  string
	DefaultBackend string
}

type EmbeddingConfig struct {
	Provider      string // "ollama" or "gemini"
	OllamaBaseURL string
	OllamaModel   string
	GeminiKey     string
	Dimensions    int
	// Sliding-window admission for the quota-limited embedding API
	RateQuota  int
	RateWindow time.Duration
}

type IndexConfig struct {
	BatchMaxCount   int
	BatchMaxCost    int
	BatchWorkers    int
	UpsertMaxBytes  int
	UpsertMaxCount  int
	EmbedJobTopic   string
}

type SessionConfig struct {
	PingInterval time.Duration
	TurnTTL      time.Duration
	TurnSweep    time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Auth: AuthConfig{
			Enabled:   getEnvAsBool("AUTH_ENABLED", true),
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Backends: BackendConfig{
			OpenAIKey:      getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			AnthropicKey:   getEnv("ANTHROPIC_API_KEY", ""),
			AnthropicURL:   getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com/v1"),
			OllamaBaseURL:  getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			DefaultBackend: getEnv("DEFAULT_BACKEND", "ollama"),
		},
		Embedding: EmbeddingConfig{
			Provider:      getEnv("EMBEDDING_PROVIDER", "ollama"),
			OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:   getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			GeminiKey:     getEnv("GOOGLE_GEMINI_API_KEY", ""),
			Dimensions:    getEnvAsInt("EMBEDDING_DIMENSIONS", 768),
			RateQuota:     getEnvAsInt("EMBEDDING_RATE_QUOTA", 60),
			RateWindow:    getEnvAsDuration("EMBEDDING_RATE_WINDOW", time.Minute),
		},
		Index: IndexConfig{
			BatchMaxCount:  getEnvAsInt("INDEX_BATCH_MAX_COUNT", 32),
			BatchMaxCost:   getEnvAsInt("INDEX_BATCH_MAX_COST", 8000),
			BatchWorkers:   getEnvAsInt("INDEX_BATCH_WORKERS", 4),
			UpsertMaxBytes: getEnvAsInt("INDEX_UPSERT_MAX_BYTES", 2*1024*1024),
			UpsertMaxCount: getEnvAsInt("INDEX_UPSERT_MAX_COUNT", 100),
			EmbedJobTopic:  getEnv("EMBED_JOB_TOPIC_NAME", "EMBED_CHUNK_BATCH"),
		},
		Session: SessionConfig{
			PingInterval: getEnvAsDuration("SESSION_PING_INTERVAL", 20*time.Second),
			TurnTTL:      getEnvAsDuration("TURN_CONTEXT_TTL", 30*time.Minute),
			TurnSweep:    getEnvAsDuration("TURN_CONTEXT_SWEEP", 5*time.Minute),
		},
	}
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
