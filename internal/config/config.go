package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"translation-orchestrator/internal/domain"
)

// Built-in settings keys. Global and site settings stored in postgres use
// the same keys and override these.
const (
	SettingProviderType             = "type"
	SettingRetryCommunicationErrors = "retryCommunicationErrors"
	SettingDefaultRetryDelay        = "retry-delay"
	SettingRepositoryRetryDelay     = "repository-retry-delay"
	SettingSendRetryDelay           = "sendTranslationRequestRetryDelay"
	SettingDownloadRetryDelay       = "downloadTranslationRetryDelay"
	SettingDownloadEarlyRetryDelay  = "downloadTranslationEarlyRetryDelay"
	SettingCancelRetryDelay         = "cancelTranslationRetryDelay"
	SettingProviderURL              = "url"
	SettingProviderAPIKey           = "apiKey"
	SettingProviderConnectorKey     = "connectorKey"
	SettingProviderTimeout          = "timeout"
	SettingMockScenario             = "mockScenario"
	SettingMockError                = "mockError"
)

const (
	ProviderTypeDefault  = "default"
	ProviderTypeMock     = "mock"
	ProviderTypeDisabled = "disabled"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	HTTPPort           string `envconfig:"HTTP_PORT" default:"8080"`
	PostgresDSN        string `envconfig:"POSTGRES_DSN" required:"true"`
	TemporalAddress    string `envconfig:"TEMPORAL_ADDRESS" default:"localhost:7233"`
	TemporalNamespace  string `envconfig:"TEMPORAL_NAMESPACE" default:"default"`
	TemporalTaskQueue  string `envconfig:"TEMPORAL_TASK_QUEUE" default:"translation-task-queue"`
	WorkflowIDPrefix   string `envconfig:"WORKFLOW_ID_PREFIX" default:"translation"`
	AllowedUploadBytes int64  `envconfig:"MAX_UPLOAD_BYTES" default:"10485760"`
	TracingEnabled     bool   `envconfig:"TRACING_ENABLED" default:"false"`

	MinioEndpoint  string `envconfig:"MINIO_ENDPOINT" default:"localhost:9000"`
	MinioAccessKey string `envconfig:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `envconfig:"MINIO_SECRET_KEY"`
	MinioBucket    string `envconfig:"MINIO_BUCKET" default:"translations"`
	MinioUseSSL    bool   `envconfig:"MINIO_USE_SSL" default:"false"`

	ProviderType         string        `envconfig:"PROVIDER_TYPE" default:"default"`
	ProviderURL          string        `envconfig:"PROVIDER_URL"`
	ProviderAPIKey       string        `envconfig:"PROVIDER_API_KEY"`
	ProviderConnectorKey string        `envconfig:"PROVIDER_CONNECTOR_KEY"`
	ProviderTimeout      time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"30s"`

	RetryCommunicationErrors int               `envconfig:"RETRY_COMMUNICATION_ERRORS" default:"5"`
	DefaultRetryDelay        domain.RetryDelay `envconfig:"DEFAULT_RETRY_DELAY" default:"15m"`
	RepositoryRetryDelay     domain.RetryDelay `envconfig:"REPOSITORY_RETRY_DELAY" default:"5m"`
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.PostgresDSN) == "" {
		return fmt.Errorf("POSTGRES_DSN is required")
	}
	switch c.ProviderType {
	case ProviderTypeDefault:
		if strings.TrimSpace(c.ProviderURL) == "" {
			return fmt.Errorf("PROVIDER_URL is required for provider type %q", c.ProviderType)
		}
	case ProviderTypeMock, ProviderTypeDisabled:
	default:
		return fmt.Errorf("PROVIDER_TYPE must be one of default, mock, disabled; got %q", c.ProviderType)
	}
	if c.RetryCommunicationErrors < 0 {
		return fmt.Errorf("RETRY_COMMUNICATION_ERRORS must be >= 0")
	}
	if c.AllowedUploadBytes < 1 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be >= 1")
	}
	return nil
}

// StaticSettings are the compiled-in and environment provided settings that
// sit below global and site settings. They never require the repository.
func (c *Config) StaticSettings() map[string]any {
	return map[string]any{
		SettingProviderType:             c.ProviderType,
		SettingProviderURL:              c.ProviderURL,
		SettingProviderAPIKey:           c.ProviderAPIKey,
		SettingProviderConnectorKey:     c.ProviderConnectorKey,
		SettingProviderTimeout:          c.ProviderTimeout.String(),
		SettingRetryCommunicationErrors: c.RetryCommunicationErrors,
		SettingDefaultRetryDelay:        c.DefaultRetryDelay,
		SettingRepositoryRetryDelay:     c.RepositoryRetryDelay,
	}
}

func (c *Config) WorkflowID(requestID string) string {
	return fmt.Sprintf("%s-%s", c.WorkflowIDPrefix, requestID)
}
