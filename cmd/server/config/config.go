package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	LLM       LLMConfig
	Execution ExecutionConfig
	Tracing   TracingConfig
}

// TracingConfig controls OpenTelemetry span export. Endpoint empty disables
// tracing entirely (the default for local/dev use).
type TracingConfig struct {
	Endpoint    string
	ServiceName string
	Insecure    bool
}

// LLMConfig holds provider credentials and the default model dispatched to
// when a node doesn't configure one of its own.
type LLMConfig struct {
	OpenAIAPIKey    string
	AnthropicAPIKey string
	DefaultModel    string
}

// ExecutionConfig holds the scheduler defaults and the memory backend to
// wire the long-term Memory Adapter with.
type ExecutionConfig struct {
	MaxNodeExecutions   int
	MaxSubflowDepth     int
	MaxToolIterations   int
	OnMaxToolIterations string
	MemoryBackend       string // "redis" or "memory"
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// AuthConfig holds the credentials the HTTP layer checks incoming requests
// against. Leaving JWTSecret and APIKeys both empty disables auth entirely,
// which is the default for local/dev use.
type AuthConfig struct {
	JWTSecret string
	APIKeys   []string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvInt("PORT", 8080),
			Host: getEnv("HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "appuser"),
			Password: getEnv("DB_PASSWORD", "apppass"),
			Database: getEnv("DB_NAME", "appdb"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 25)),
			MinConns: int32(getEnvInt("DB_MIN_CONNS", 5)),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			APIKeys:   getEnvList("API_KEYS"),
		},
		LLM: LLMConfig{
			OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
			AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
			DefaultModel:    getEnv("DEFAULT_MODEL", "gpt-4o-mini"),
		},
		Execution: ExecutionConfig{
			MaxNodeExecutions:   getEnvInt("MAX_NODE_EXECUTIONS", 100),
			MaxSubflowDepth:     getEnvInt("MAX_SUBFLOW_DEPTH", 10),
			MaxToolIterations:   getEnvInt("MAX_TOOL_ITERATIONS", 10),
			OnMaxToolIterations: getEnv("ON_MAX_TOOL_ITERATIONS", "warning"),
			MemoryBackend:       getEnv("MEMORY_BACKEND", "memory"),
			RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword:       getEnv("REDIS_PASSWORD", ""),
			RedisDB:             getEnvInt("REDIS_DB", 0),
		},
		Tracing: TracingConfig{
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "duragraph"),
			Insecure:    getEnv("OTEL_EXPORTER_OTLP_INSECURE", "true") == "true",
		},
	}

	return cfg, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated environment variable into its parts,
// dropping empty entries. Returns nil if the variable is unset or empty.
func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ServerAddr returns the server address
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
