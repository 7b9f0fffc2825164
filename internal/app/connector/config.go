package connector

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultConfigPath is read when CONNECTOR_CONFIG is unset.
const DefaultConfigPath = "config/connector.yaml"

// Config carries environment-driven settings for the connector process.
type Config struct {
	Port         string
	ConfigPath   string
	LogDir       string
	LogLevel     string
	Environment  string
	OTLPEndpoint string
	OTLPInsecure bool
}

// LoadConfig reads environment variables, applies defaults, and validates basic constraints.
func LoadConfig() (Config, error) {
	cfg := Config{
		Port:         envDefault("PORT", "8080"),
		ConfigPath:   envDefault("CONNECTOR_CONFIG", DefaultConfigPath),
		LogDir:       strings.TrimSpace(os.Getenv("LOG_DIR")),
		LogLevel:     envDefault("LOG_LEVEL", "info"),
		Environment:  envDefault("ENVIRONMENT", "local"),
		OTLPEndpoint: strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		OTLPInsecure: os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") != "0",
	}
	if port, err := strconv.Atoi(cfg.Port); err != nil || port <= 0 || port > 65535 {
		return Config{}, fmt.Errorf("PORT must be a TCP port, got %q", cfg.Port)
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return Config{}, fmt.Errorf("LOG_LEVEL must be debug, info, warn, or error, got %q", cfg.LogLevel)
	}
	return cfg, nil
}

func envDefault(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}
