package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"advisor/pkg/errors"
)

type Config struct {
	App           AppConfig
	HTTP          HTTPConfig
	AI            AIConfig
	Gateway       GatewayConfig
	Gemini        GeminiConfig
	Tavily        TavilyConfig
	Crew          CrewConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"agentic-investment-advisor"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Version  string `envconfig:"APP_VERSION" default:"0.1.0"`
}

type HTTPConfig struct {
	Port            int           `envconfig:"PORT" default:"8000"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"30s"`
}

func (c HTTPConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

type AIConfig struct {
	// Provider selects the LLM backend: "gateway" (OpenAI-compatible Portkey) or "gemini"
	Provider   string `envconfig:"LLM_PROVIDER" default:"gateway"`
	ProModel   string `envconfig:"LLM_PRO_MODEL" default:"gemini-2.5-pro"`
	FlashModel string `envconfig:"LLM_FLASH_MODEL" default:"gemini-2.5-flash"`
}

type GatewayConfig struct {
	URL         string  `envconfig:"PORTKEY_URL"`
	APIKey      string  `envconfig:"PORTKEY_API_KEY"`
	Provider    string  `envconfig:"PORTKEY_PROVIDER" default:"@dsvertex"`
	Temperature float64 `envconfig:"LLM_TEMPERATURE" default:"0.1"`
}

type GeminiConfig struct {
	APIKey string `envconfig:"GEMINI_API_KEY"`
}

type TavilyConfig struct {
	APIKey            string        `envconfig:"TAVILY_API_KEY"`
	BaseURL           string        `envconfig:"TAVILY_BASE_URL" default:"https://api.tavily.com"`
	RequestsPerMinute int           `envconfig:"TAVILY_REQUESTS_PER_MINUTE" default:"60"`
	CacheTTL          time.Duration `envconfig:"TAVILY_CACHE_TTL" default:"15m"`
	Timeout           time.Duration `envconfig:"TAVILY_TIMEOUT" default:"30s"`
}

type CrewConfig struct {
	Timeout time.Duration `envconfig:"CREW_TIMEOUT" default:"780s"`
	// ParamsPath overrides the embedded params.yaml when set
	ParamsPath string `envconfig:"CREW_PARAMS_PATH"`
	// TemplatesPath overrides the embedded instruction and kickoff templates when set
	TemplatesPath string `envconfig:"CREW_TEMPLATES_PATH"`
}

// RedisConfig is optional: an empty host disables the search cache
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// KafkaConfig is optional: no brokers disables run tracking
type KafkaConfig struct {
	Brokers        []string      `envconfig:"KAFKA_BROKERS"`
	RunTopic       string        `envconfig:"KAFKA_RUN_TOPIC" default:"advisor.crew_runs"`
	PublishTimeout time.Duration `envconfig:"KAFKA_PUBLISH_TIMEOUT" default:"5s"`
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	Provider    string `envconfig:"ERROR_TRACKING_PROVIDER" default:"sentry"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads configuration from environment variables.
// It first tries to load .env file (useful for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the provider-specific settings that envconfig tags cannot express
func (c *Config) Validate() error {
	switch strings.ToLower(c.AI.Provider) {
	case "gateway":
		if c.Gateway.URL == "" || c.Gateway.APIKey == "" {
			return errors.NewValidationError("PORTKEY_URL", "PORTKEY_URL and PORTKEY_API_KEY are required for the gateway provider", c.Gateway.URL)
		}
	case "gemini":
		if c.Gemini.APIKey == "" {
			return errors.NewValidationError("GEMINI_API_KEY", "required for the gemini provider", "")
		}
	default:
		return errors.NewValidationError("LLM_PROVIDER", "must be gateway or gemini", c.AI.Provider)
	}

	if c.Crew.Timeout <= 0 {
		return errors.NewValidationError("CREW_TIMEOUT", "must be positive", c.Crew.Timeout)
	}
	if c.Tavily.RequestsPerMinute <= 0 {
		return errors.NewValidationError("TAVILY_REQUESTS_PER_MINUTE", "must be positive", c.Tavily.RequestsPerMinute)
	}
	return nil
}
