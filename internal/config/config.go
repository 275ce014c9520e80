package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	TransformerPlatform = "platform"
	TransformerGemini   = "gemini"

	HistoryBackendMemory = "memory"
	HistoryBackendRedis  = "redis"
	HistoryBackendAzure  = "azure"
)

type Config struct {
	Host            string        `env:"HOST" env-default:"0.0.0.0"`
	Port            string        `env:"PORT" env-default:"8080"`
	PublicURL       string        `env:"PUBLIC_URL" env-default:"http://localhost:8080"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" env-default:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"30s"`
	MaxUploadSize   int64         `env:"MAX_UPLOAD_SIZE" env-default:"10485760"` // 10MB
	LogLevel        string        `env:"LOG_LEVEL" env-default:"info"`
	LogFormat       string        `env:"LOG_FORMAT" env-default:"json"`

	Platform   PlatformConfig
	Auth       AuthConfig
	Generation GenerationConfig
	History    HistoryConfig
	Redis      RedisConfig
	Azure      AzureConfig
	Gemini     GeminiConfig
}

// PlatformConfig points at the hosted platform owning billing and models
type PlatformConfig struct {
	BaseURL string        `env:"PLATFORM_BASE_URL" env-default:"https://api.subscribe.dev"`
	APIKey  string        `env:"PLATFORM_API_KEY"`
	Timeout time.Duration `env:"PLATFORM_TIMEOUT" env-default:"0s"`
}

type AuthConfig struct {
	SessionSecret string        `env:"SESSION_SECRET"`
	SignInURL     string        `env:"SIGNIN_URL" env-default:"https://auth.subscribe.dev/signin"`
	Issuer        string        `env:"SESSION_ISSUER"`
	CookieName    string        `env:"SESSION_COOKIE" env-default:"flying_session"`
	CookieSecure  bool          `env:"SESSION_COOKIE_SECURE" env-default:"false"`
	SessionMaxAge time.Duration `env:"SESSION_MAX_AGE" env-default:"168h"`
}

type GenerationConfig struct {
	Transformer   string        `env:"TRANSFORMER" env-default:"platform"`
	Model         string        `env:"GENERATION_MODEL"`
	Prompt        string        `env:"GENERATION_PROMPT" env-default:"a person flying through the air with arms outstretched, soaring like a superhero, dynamic pose, motion blur background, dramatic lighting, professional photography"`
	Width         int           `env:"GENERATION_WIDTH" env-default:"1024"`
	Height        int           `env:"GENERATION_HEIGHT" env-default:"1024"`
	Timeout       time.Duration `env:"GENERATION_TIMEOUT" env-default:"0s"`
	InlineResults bool          `env:"INLINE_RESULTS" env-default:"true"`
	FetchTimeout  time.Duration `env:"RESULT_FETCH_TIMEOUT" env-default:"30s"`
}

type HistoryConfig struct {
	Backend     string `env:"HISTORY_BACKEND" env-default:"memory"`
	SyncWorkers int    `env:"HISTORY_SYNC_WORKERS" env-default:"4"`
}

type RedisConfig struct {
	Addr      string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password  string `env:"REDIS_PASSWORD"`
	DB        int    `env:"REDIS_DB" env-default:"0"`
	KeyPrefix string `env:"REDIS_KEY_PREFIX" env-default:"flying:"`
}

type AzureConfig struct {
	AccountName string `env:"AZURE_STORAGE_ACCOUNT"`
	AccountKey  string `env:"AZURE_STORAGE_KEY"`
	Container   string `env:"AZURE_STORAGE_CONTAINER" env-default:"flying-history"`
}

type GeminiConfig struct {
	APIKey string `env:"GEMINI_API_KEY"`
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// ModelName returns the configured model or the default of the transformer
func (c *Config) ModelName() string {
	if m := strings.TrimSpace(c.Generation.Model); m != "" {
		return m
	}
	if c.Generation.Transformer == TransformerGemini {
		return "gemini-2.5-flash-image"
	}
	return "black-forest-labs/flux-kontext-max"
}

// LoadFromEnv reads an optional .env file, then the process environment
func LoadFromEnv() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values cleanenv cannot express
func (c *Config) Validate() error {
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be > 0 (got %d)", c.MaxUploadSize)
	}
	if c.RequestTimeout <= 0 || c.ShutdownTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, shutdown=%s)", c.RequestTimeout, c.ShutdownTimeout)
	}
	if c.Generation.Timeout < 0 || c.Platform.Timeout < 0 {
		return fmt.Errorf("generation and platform timeouts must be >= 0")
	}
	if c.Generation.Width <= 0 || c.Generation.Height <= 0 {
		return fmt.Errorf("generation size must be positive (got %dx%d)", c.Generation.Width, c.Generation.Height)
	}
	if c.Auth.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required")
	}

	switch c.Generation.Transformer {
	case TransformerPlatform:
	case TransformerGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when TRANSFORMER=gemini")
		}
	default:
		return fmt.Errorf("unsupported TRANSFORMER: %q", c.Generation.Transformer)
	}

	switch c.History.Backend {
	case HistoryBackendMemory, HistoryBackendRedis:
	case HistoryBackendAzure:
		if c.Azure.AccountName == "" || c.Azure.AccountKey == "" {
			return fmt.Errorf("AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY are required when HISTORY_BACKEND=azure")
		}
	default:
		return fmt.Errorf("unsupported HISTORY_BACKEND: %q", c.History.Backend)
	}
	return nil
}
