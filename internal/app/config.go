package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/Crohnos/dnd-generator/internal/platform/envutil"
	"github.com/Crohnos/dnd-generator/internal/platform/logger"
)

type Config struct {
	Port        string
	Environment string
	Version     string

	GenerationTimeout    time.Duration
	IntrospectionTimeout time.Duration

	AnthropicAPIKey  string
	AnthropicBaseURL string
	AnthropicModel   string

	// SchemaFile, when set, replaces the live introspection of SchemaEndpoint.
	SchemaEndpoint    string
	SchemaAdminSecret string
	SchemaFile        string
}

// LoadConfig reads the environment. Both timeouts and the API key are
// mandatory; the service refuses to start without them.
func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := Config{
		Port:              envutil.String("PORT", "8080"),
		Environment:       envutil.String("APP_ENV", "development"),
		Version:           envutil.String("APP_VERSION", "dev"),
		AnthropicAPIKey:   envutil.String("ANTHROPIC_API_KEY", ""),
		AnthropicBaseURL:  envutil.String("ANTHROPIC_BASE_URL", ""),
		AnthropicModel:    envutil.String("ANTHROPIC_MODEL", ""),
		SchemaEndpoint:    envutil.String("SCHEMA_ENDPOINT", ""),
		SchemaAdminSecret: envutil.String("SCHEMA_ADMIN_SECRET", ""),
		SchemaFile:        envutil.String("SCHEMA_INTROSPECTION_FILE", ""),
	}

	var missing []string
	var ok bool
	if cfg.GenerationTimeout, ok = envutil.Seconds("GENERATION_TIMEOUT_SECONDS"); !ok {
		missing = append(missing, "GENERATION_TIMEOUT_SECONDS")
	}
	if cfg.IntrospectionTimeout, ok = envutil.Seconds("SCHEMA_INTROSPECTION_TIMEOUT_SECONDS"); !ok {
		missing = append(missing, "SCHEMA_INTROSPECTION_TIMEOUT_SECONDS")
	}
	if cfg.AnthropicAPIKey == "" {
		missing = append(missing, "ANTHROPIC_API_KEY")
	}
	if cfg.SchemaEndpoint == "" && cfg.SchemaFile == "" {
		missing = append(missing, "SCHEMA_ENDPOINT or SCHEMA_INTROSPECTION_FILE")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing or invalid configuration: %s", strings.Join(missing, ", "))
	}

	if log != nil {
		log.Info("Configuration loaded",
			"port", cfg.Port,
			"environment", cfg.Environment,
			"generation_timeout", cfg.GenerationTimeout.String(),
			"introspection_timeout", cfg.IntrospectionTimeout.String(),
			"schema_source", cfg.schemaSource(),
		)
	}
	return cfg, nil
}

func (c Config) schemaSource() string {
	if c.SchemaFile != "" {
		return "file"
	}
	return "endpoint"
}
