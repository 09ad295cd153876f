package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	GeneratorHeuristic = "heuristic"
	GeneratorChat      = "chat"
	GeneratorGemini    = "gemini"

	minClipChars = 1000
	minMaxTokens = 256
)

type Config struct {
	// Server
	Port             string
	Env              string
	HTTPWriteTimeout time.Duration

	// Logging
	LogLevel string
	LogFile  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Sessions
	SessionTTL   time.Duration
	TicketSecret string

	// Storage
	Storage StorageConfig

	// Question generation
	Generator GeneratorConfig

	// Rate limiting
	AuthRatePerMin int

	// Frontend
	FrontendURL string
}

type StorageConfig struct {
	Type        string
	LocalPath   string
	MaxUploadMB int

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

// GeneratorConfig selects and parameterises the question generator.
type GeneratorConfig struct {
	Kind         string
	DefaultCount int
	StaleAfter   time.Duration

	Chat   ChatLLMConfig
	Gemini GeminiConfig
}

// ChatLLMConfig configures an OpenAI-compatible chat/completions endpoint.
type ChatLLMConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	Timeout      time.Duration
	ClipChars    int
	MaxTokens    int
	MaxRetries   int
	RetryBackoff time.Duration
}

type GeminiConfig struct {
	APIKey         string
	Model          string
	ConcurrentReqs int
	Timeout        time.Duration
	ClipChars      int
	MaxRetries     int
	RetryBackoff   time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:             getEnvOrDefault("PORT", "8080"),
		Env:              getEnvOrDefault("ENV", "development"),
		HTTPWriteTimeout: getEnvAsDurationOrDefault("HTTP_WRITE_TIMEOUT", 5*time.Minute),
		LogLevel:         getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:          getEnvOrDefault("LOG_FILE", ""),
		DatabaseURL:      mustGetEnv("DATABASE_URL"),
		RedisURL:         mustGetEnv("REDIS_URL"),
		SessionTTL:       getEnvAsDurationOrDefault("SESSION_TTL", 7*24*time.Hour),
		TicketSecret:     mustGetEnv("TICKET_SECRET"),
		Storage: StorageConfig{
			Type:           getEnvOrDefault("STORAGE_TYPE", "local"),
			LocalPath:      getEnvOrDefault("STORAGE_PATH", "./uploads"),
			MaxUploadMB:    getEnvAsIntOrDefault("MAX_UPLOAD_MB", 25),
			MinioEndpoint:  getEnvOrDefault("MINIO_ENDPOINT", ""),
			MinioAccessKey: getEnvOrDefault("MINIO_ACCESS_KEY", ""),
			MinioSecretKey: getEnvOrDefault("MINIO_SECRET_KEY", ""),
			MinioBucket:    getEnvOrDefault("MINIO_BUCKET", "momolearn-uploads"),
			MinioUseSSL:    getEnvOrDefault("MINIO_USE_SSL", "false") == "true",
		},
		Generator:      loadGeneratorConfig(),
		AuthRatePerMin: getEnvAsIntOrDefault("AUTH_RATE_PER_MIN", 10),
		FrontendURL:    getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

func loadGeneratorConfig() GeneratorConfig {
	timeout := getEnvAsDurationOrDefault("LLM_TIMEOUT", 90*time.Second)
	clip := getEnvAsIntOrDefault("LLM_CLIP_CHARS", 8000)
	retries := getEnvAsIntOrDefault("LLM_MAX_RETRIES", 2)
	backoff := getEnvAsDurationOrDefault("LLM_RETRY_BACKOFF", 500*time.Millisecond)

	g := GeneratorConfig{
		Kind:         strings.ToLower(getEnvOrDefault("GENERATOR", GeneratorHeuristic)),
		DefaultCount: getEnvAsIntOrDefault("GENERATION_DEFAULT_COUNT", 10),
		StaleAfter:   getEnvAsDurationOrDefault("GENERATION_STALE_AFTER", 10*time.Minute),
		Chat: ChatLLMConfig{
			APIKey:       getEnvOrDefault("LLM_API_KEY", ""),
			BaseURL:      getEnvOrDefault("LLM_BASE_URL", "https://api.deepseek.com"),
			Model:        getEnvOrDefault("LLM_MODEL", "deepseek-chat"),
			Timeout:      timeout,
			ClipChars:    clip,
			MaxTokens:    getEnvAsIntOrDefault("LLM_MAX_TOKENS", 2500),
			MaxRetries:   retries,
			RetryBackoff: backoff,
		},
		Gemini: GeminiConfig{
			APIKey:         getEnvOrDefault("GEMINI_API_KEY", ""),
			Model:          getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
			ConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
			Timeout:        timeout,
			ClipChars:      clip,
			MaxRetries:     retries,
			RetryBackoff:   backoff,
		},
	}
	g.normalize()
	return g
}

func (g *GeneratorConfig) normalize() {
	if g.DefaultCount < 1 {
		g.DefaultCount = 1
	}
	g.Chat.BaseURL = strings.TrimRight(strings.TrimSpace(g.Chat.BaseURL), "/")
	if g.Chat.ClipChars < minClipChars {
		g.Chat.ClipChars = minClipChars
	}
	if g.Chat.MaxTokens < minMaxTokens {
		g.Chat.MaxTokens = minMaxTokens
	}
	if g.Chat.MaxRetries < 0 {
		g.Chat.MaxRetries = 0
	}
	if g.Gemini.ClipChars < minClipChars {
		g.Gemini.ClipChars = minClipChars
	}
	if g.Gemini.MaxRetries < 0 {
		g.Gemini.MaxRetries = 0
	}
	if g.Gemini.ConcurrentReqs < 1 {
		g.Gemini.ConcurrentReqs = 1
	}
}

// Validate reports configuration the selected generator cannot run with.
func (g GeneratorConfig) Validate() error {
	switch g.Kind {
	case GeneratorHeuristic:
		return nil
	case GeneratorChat:
		if strings.TrimSpace(g.Chat.APIKey) == "" {
			return fmt.Errorf("GENERATOR=chat requires LLM_API_KEY")
		}
		if g.Chat.BaseURL == "" {
			return fmt.Errorf("GENERATOR=chat requires LLM_BASE_URL")
		}
		if g.Chat.Timeout <= 0 {
			return fmt.Errorf("LLM_TIMEOUT must be positive")
		}
		return nil
	case GeneratorGemini:
		if strings.TrimSpace(g.Gemini.APIKey) == "" {
			return fmt.Errorf("GENERATOR=gemini requires GEMINI_API_KEY")
		}
		if g.Gemini.Timeout <= 0 {
			return fmt.Errorf("LLM_TIMEOUT must be positive")
		}
		return nil
	default:
		return fmt.Errorf("unknown GENERATOR %q (want heuristic, chat or gemini)", g.Kind)
	}
}

// Validate reports missing settings for the selected storage provider.
func (s StorageConfig) Validate() error {
	switch s.Type {
	case "local":
		if s.LocalPath == "" {
			return fmt.Errorf("STORAGE_PATH is required for local storage")
		}
	case "minio":
		if s.MinioEndpoint == "" || s.MinioAccessKey == "" || s.MinioSecretKey == "" {
			return fmt.Errorf("STORAGE_TYPE=minio requires MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY")
		}
	default:
		return fmt.Errorf("unknown STORAGE_TYPE %q", s.Type)
	}
	if s.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}
	return nil
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}
