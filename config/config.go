package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string // default: 8080

	// Database
	PostgresDSN string

	// Cache
	RedisAddr string

	// Chain
	EthNetwork        string            // "mainnet" or "sepolia", default: mainnet
	ProviderOverrides map[string]string // name -> endpoint URL, from ETH_PROVIDERS
	DebugRPC          bool              // detail-level dispatch logging

	// Observability
	OTELExporterType     string // "stdout" or "otlp"
	OTELExporterEndpoint string // default: "localhost:4317"

	// Rate Limiting
	DefaultRateLimitRPM int64 // requests per minute, default: 600

	// Head poller
	HeadPollInterval time.Duration // default: 15s
}

func Load() (*Config, error) {
	// Load .env file if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		PostgresDSN:          os.Getenv("POSTGRES_DSN"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		EthNetwork:           getEnv("ETH_NETWORK", "mainnet"),
		DebugRPC:             os.Getenv("DEBUG_RPC") == "true",
		OTELExporterType:     getEnv("OTEL_EXPORTER_TYPE", "stdout"),
		OTELExporterEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
	}

	// Optional provider overrides: "name=url,name=url"
	if raw := os.Getenv("ETH_PROVIDERS"); raw != "" {
		cfg.ProviderOverrides = make(map[string]string)
		for _, pair := range strings.Split(raw, ",") {
			name, url, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if !ok || name == "" || url == "" {
				return nil, fmt.Errorf("invalid ETH_PROVIDERS entry %q (want name=url)", pair)
			}
			cfg.ProviderOverrides[name] = url
		}
	}

	rpmStr := getEnv("DEFAULT_RATE_LIMIT_RPM", "600")
	rpm, err := strconv.ParseInt(rpmStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_RATE_LIMIT_RPM: %w", err)
	}
	cfg.DefaultRateLimitRPM = rpm

	pollStr := getEnv("HEAD_POLL_INTERVAL", "15s")
	poll, err := time.ParseDuration(pollStr)
	if err != nil {
		return nil, fmt.Errorf("invalid HEAD_POLL_INTERVAL: %w", err)
	}
	cfg.HeadPollInterval = poll

	// Validation
	if cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN is required")
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("REDIS_ADDR is required")
	}
	if cfg.EthNetwork != "mainnet" && cfg.EthNetwork != "sepolia" {
		return nil, fmt.Errorf("unsupported ETH_NETWORK %q", cfg.EthNetwork)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
