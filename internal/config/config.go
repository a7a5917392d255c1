package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	pkgRetry "github.com/futig/doctalk-backend/internal/pkg/retry"
	"github.com/joho/godotenv"
)

// Provider names
const (
	ProviderOpenAI     = "openai"
	ProviderPerplexity = "perplexity"
	ProviderOllama     = "ollama"
	ProviderGemini     = "gemini"
	ProviderMock       = "mock"
)

// Config holds the application configuration
type Config struct {
	// Server configuration
	ServerAddr string `env:"SERVER_ADDR" envDefault:":8000"`

	// Logging configuration
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Provider selection, EMBEDDING_PROVIDER falls back to LLM_PROVIDER
	LLMProvider       string `env:"LLM_PROVIDER" envDefault:"mock"`
	EmbeddingProvider string `env:"EMBEDDING_PROVIDER"`

	// External service configurations
	OpenAICfg  OpenAIConfig  `envPrefix:"OPENAI_"`
	OllamaCfg  OllamaConfig  `envPrefix:"OLLAMA_"`
	GeminiCfg  GeminiConfig  `envPrefix:"GEMINI_"`
	MockCfg    MockConfig    `envPrefix:"MOCK_"`
	EventsCfg  EventsConfig  `envPrefix:"EVENTS_"`
	RAGCfg     RAGConfig     `envPrefix:"RAG_"`
	SessionCfg SessionConfig `envPrefix:"SESSION_"`
	AuthCfg    AuthConfig    `envPrefix:"AUTH_"`

	// Guardrail configuration, lists may be overridden by GUARDRAIL_FILE
	GuardrailCfg GuardrailConfig `envPrefix:"GUARDRAIL_"`

	// Office document license, DOCX transcript export needs it
	UnidocCfg UnidocConfig `envPrefix:"UNIDOC_"`

	// File upload configuration
	FileUploadCfg FileUploadConfig `envPrefix:"FILE_UPLOAD_"`

	// Mock configuration, forces the mock provider
	EnableMocks bool `env:"ENABLE_MOCKS" envDefault:"false"`

	// Telegram bot configuration (optional)
	TelegramCfg TelegramConfig `envPrefix:"TELEGRAM_"`

	// Environment (set from flag, not from env var)
	Environment string
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	BotToken           string        `env:"BOT_TOKEN"`
	UpdateTimeout      int           `env:"UPDATE_TIMEOUT" envDefault:"60"`
	RateLimitPerMinute int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"20"`
	RateLimitBurst     int           `env:"RATE_LIMIT_BURST" envDefault:"5"`
	ShutdownTimeout    int           `env:"SHUTDOWN_TIMEOUT" envDefault:"30"` // seconds
	DownloadTimeout    time.Duration `env:"DOWNLOAD_TIMEOUT" envDefault:"30s"`
	// Embedded runs the bot inside the API process, sharing its sessions
	Embedded bool `env:"EMBEDDED" envDefault:"false"`
}

type OpenAIConfig struct {
	HTTPClientConfig
	ChatModel          string               `env:"CHAT_MODEL" envDefault:"gpt-4o-mini"`
	EmbeddingModel     string               `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	EmbeddingDimension int                  `env:"EMBEDDING_DIMENSION" envDefault:"1536"`
	ChatPath           string               `env:"CHAT_PATH" envDefault:"/v1/chat/completions"`
	EmbeddingPath      string               `env:"EMBEDDING_PATH" envDefault:"/v1/embeddings"`
	EmbeddingURL       string               `env:"EMBEDDING_URL"`
	EmbeddingToken     string               `env:"EMBEDDING_TOKEN"`
	Temperature        float64              `env:"TEMPERATURE" envDefault:"0"`
	Retry              pkgRetry.RetryConfig `envPrefix:"RETRY_"`
}

type OllamaConfig struct {
	HTTPClientConfig
	ChatModel          string               `env:"CHAT_MODEL" envDefault:"llama3.1"`
	EmbeddingModel     string               `env:"EMBEDDING_MODEL" envDefault:"nomic-embed-text"`
	EmbeddingDimension int                  `env:"EMBEDDING_DIMENSION" envDefault:"768"`
	Retry              pkgRetry.RetryConfig `envPrefix:"RETRY_"`
}

type GeminiConfig struct {
	HTTPClientConfig
	APIKey             string               `env:"API_KEY"`
	ChatModel          string               `env:"CHAT_MODEL" envDefault:"gemini-1.5-flash"`
	EmbeddingModel     string               `env:"EMBEDDING_MODEL" envDefault:"text-embedding-004"`
	EmbeddingDimension int                  `env:"EMBEDDING_DIMENSION" envDefault:"768"`
	Retry              pkgRetry.RetryConfig `envPrefix:"RETRY_"`
}

type MockConfig struct {
	EmbeddingDimension int `env:"EMBEDDING_DIMENSION" envDefault:"256"`
}

// EventsConfig configures the optional webhook event sink
type EventsConfig struct {
	HTTPClientConfig
	Enabled bool                 `env:"ENABLED" envDefault:"false"`
	Retry   pkgRetry.RetryConfig `envPrefix:"RETRY_"`
}

type HTTPClientConfig struct {
	RequestTimeout        time.Duration `env:"TIMEOUT" envDefault:"60s"`
	ConnTimeout           time.Duration `env:"CONN_TIMEOUT" envDefault:"10s"`
	KeepAlive             time.Duration `env:"KEEP_ALIVE" envDefault:"90s"`
	IdleConnTimeout       time.Duration `env:"IDLE_CONN_TIMEOUT" envDefault:"90s"`
	ResponseHeaderTimeout time.Duration `env:"RESPONSE_HEADER_TIMEOUT" envDefault:"60s"`
	RateLimitPerSecond    float64       `env:"RATE_LIMIT_PER_SECOND" envDefault:"0"`
	RateLimitBurst        int           `env:"RATE_LIMIT_BURST" envDefault:"1"`
	Token                 string        `env:"TOKEN"`
	Url                   string        `env:"SERVICE_URL"`
}

// RAGConfig holds retrieval and generation parameters, fixed at process start
type RAGConfig struct {
	ChunkSize        int     `env:"CHUNK_SIZE" envDefault:"1000"`
	ChunkOverlap     int     `env:"CHUNK_OVERLAP" envDefault:"200"`
	TopK             int     `env:"TOP_K" envDefault:"4"`
	Similarity       string  `env:"SIMILARITY" envDefault:"cosine"`
	MinRelevance     float64 `env:"MIN_RELEVANCE" envDefault:"0.05"`
	MaxContextTokens int     `env:"MAX_CONTEXT_TOKENS" envDefault:"3000"`
	MinSharedTerms   int     `env:"MIN_SHARED_TERMS" envDefault:"2"`
}

type SessionConfig struct {
	TTL             time.Duration `env:"TTL" envDefault:"2h"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"10m"`
}

// AuthConfig holds bearer tokens accepted in production
type AuthConfig struct {
	Tokens []string `env:"TOKENS" envSeparator:","`
}

// UnidocConfig holds the metered unioffice key
type UnidocConfig struct {
	LicenseAPIKey string `env:"LICENSE_API_KEY"`
}

type GuardrailConfig struct {
	File               string   `env:"FILE" envDefault:"guardrail.yaml"`
	Markers            []string `env:"MARKERS" envSeparator:","`
	OverrideCues       []string `env:"OVERRIDE_CUES" envSeparator:","`
	AuthoritativeTypes []string `env:"AUTHORITATIVE_TYPES" envSeparator:","`
}

// FileUploadConfig holds file upload limits
type FileUploadConfig struct {
	MaxFileSize   int64 `env:"MAX_FILE_SIZE" envDefault:"10485760"`  // 10 MiB
	MaxTotalSize  int64 `env:"MAX_TOTAL_SIZE" envDefault:"52428800"` // 50 MiB
	MaxFileCount  int   `env:"MAX_FILE_COUNT" envDefault:"16"`
	MaxUploadSize int64 `env:"MAX_UPLOAD_SIZE" envDefault:"67108864"` // 64 MiB
}

// LoadConfig reads .env.<environment>, environment variables and the guardrail file
func LoadConfig(environment string) (*Config, error) {
	envFile := getEnvFile(environment)
	// Try to load env file, but don't fail if it's missing.
	// In containerized/prod environments variables are usually set externally.
	if err := godotenv.Load(envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load %s file (this is ok if env vars are set externally): %v\n", envFile, err)
	}

	return parse(environment)
}

func parse(environment string) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	cfg.Environment = environment
	cfg.applyDefaults()

	if err := loadGuardrailFile(&cfg.GuardrailCfg); err != nil {
		return nil, fmt.Errorf("load guardrail file: %w", err)
	}

	// Validate configuration
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.LLMProvider = strings.ToLower(c.LLMProvider)
	c.EmbeddingProvider = strings.ToLower(c.EmbeddingProvider)
	if c.EmbeddingProvider == "" {
		c.EmbeddingProvider = c.LLMProvider
	}
	if c.EnableMocks {
		c.LLMProvider = ProviderMock
		c.EmbeddingProvider = ProviderMock
	}

	if c.OpenAICfg.Url == "" {
		c.OpenAICfg.Url = "https://api.openai.com"
	}
	if c.OllamaCfg.Url == "" {
		c.OllamaCfg.Url = "http://localhost:11434"
	}
	if c.GeminiCfg.Url == "" {
		c.GeminiCfg.Url = "https://generativelanguage.googleapis.com"
	}

	for _, rc := range []*pkgRetry.RetryConfig{
		&c.OpenAICfg.Retry, &c.OllamaCfg.Retry, &c.GeminiCfg.Retry, &c.EventsCfg.Retry,
	} {
		rc.FillDefaults()
	}
}

// IsProduction reports whether production-only checks apply
func (c *Config) IsProduction() bool {
	return c.Environment == "prod" || c.Environment == "production"
}

func validateConfig(cfg *Config) error {
	var errors []string

	knownProviders := map[string]bool{
		ProviderOpenAI: true, ProviderPerplexity: true, ProviderOllama: true, ProviderGemini: true, ProviderMock: true,
	}
	if !knownProviders[cfg.LLMProvider] {
		errors = append(errors, fmt.Sprintf("LLM_PROVIDER must be one of openai, perplexity, ollama, gemini, mock, got %q", cfg.LLMProvider))
	}
	if !knownProviders[cfg.EmbeddingProvider] {
		errors = append(errors, fmt.Sprintf("EMBEDDING_PROVIDER must be one of openai, perplexity, ollama, gemini, mock, got %q", cfg.EmbeddingProvider))
	}
	if cfg.EmbeddingProvider == ProviderPerplexity && cfg.OpenAICfg.EmbeddingURL == "" {
		errors = append(errors, "perplexity has no embeddings API, OPENAI_EMBEDDING_URL must point to an OpenAI-compatible embeddings service")
	}

	rag := cfg.RAGCfg
	if rag.ChunkSize < 50 || rag.ChunkSize > 20000 {
		errors = append(errors, fmt.Sprintf("RAG_CHUNK_SIZE must be between 50 and 20000, got %d", rag.ChunkSize))
	}
	if rag.ChunkOverlap < 0 || rag.ChunkOverlap >= rag.ChunkSize {
		errors = append(errors, fmt.Sprintf("RAG_CHUNK_OVERLAP must be between 0 and RAG_CHUNK_SIZE(%d), got %d", rag.ChunkSize, rag.ChunkOverlap))
	}
	if rag.TopK < 1 || rag.TopK > 50 {
		errors = append(errors, fmt.Sprintf("RAG_TOP_K must be between 1 and 50, got %d", rag.TopK))
	}
	if rag.Similarity != "cosine" && rag.Similarity != "dot" {
		errors = append(errors, fmt.Sprintf("RAG_SIMILARITY must be cosine or dot, got %q", rag.Similarity))
	}
	if rag.MaxContextTokens < 100 {
		errors = append(errors, fmt.Sprintf("RAG_MAX_CONTEXT_TOKENS must be at least 100, got %d", rag.MaxContextTokens))
	}

	if cfg.SessionCfg.TTL <= 0 {
		errors = append(errors, fmt.Sprintf("SESSION_TTL must be positive, got %s", cfg.SessionCfg.TTL))
	}

	if cfg.FileUploadCfg.MaxFileCount < 1 || cfg.FileUploadCfg.MaxFileCount > 64 {
		errors = append(errors, fmt.Sprintf("FILE_UPLOAD_MAX_FILE_COUNT must be between 1 and 64, got %d", cfg.FileUploadCfg.MaxFileCount))
	}

	if cfg.TelegramCfg.RateLimitPerMinute < 1 || cfg.TelegramCfg.RateLimitPerMinute > 60 {
		errors = append(errors, fmt.Sprintf("TELEGRAM_RATE_LIMIT_PER_MINUTE must be between 1 and 60, got %d", cfg.TelegramCfg.RateLimitPerMinute))
	}
	if cfg.TelegramCfg.RateLimitBurst < 1 || cfg.TelegramCfg.RateLimitBurst > 20 {
		errors = append(errors, fmt.Sprintf("TELEGRAM_RATE_LIMIT_BURST must be between 1 and 20, got %d", cfg.TelegramCfg.RateLimitBurst))
	}
	if cfg.TelegramCfg.ShutdownTimeout < 1 || cfg.TelegramCfg.ShutdownTimeout > 300 {
		errors = append(errors, fmt.Sprintf("TELEGRAM_SHUTDOWN_TIMEOUT must be between 1 and 300 seconds, got %d", cfg.TelegramCfg.ShutdownTimeout))
	}

	if cfg.IsProduction() && !hasToken(cfg.AuthCfg.Tokens) {
		errors = append(errors, "AUTH_TOKENS must list at least one bearer token in production")
	}

	if cfg.EventsCfg.Enabled && cfg.EventsCfg.Url == "" {
		errors = append(errors, "EVENTS_SERVICE_URL is required when EVENTS_ENABLED is set")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation errors:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

func hasToken(tokens []string) bool {
	for _, t := range tokens {
		if strings.TrimSpace(t) != "" {
			return true
		}
	}
	return false
}

func getEnvFile(environment string) string {
	switch environment {
	case "prod", "production":
		return ".env.prod"
	case "local", "dev", "development":
		return ".env.local"
	default:
		return fmt.Sprintf(".env.%s", environment)
	}
}
