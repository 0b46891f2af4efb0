package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config aggregates application configuration values.
type Config struct {
	Server       ServerConfig
	Store        StoreConfig
	Eligibility  EligibilityConfig
	Intermediary IntermediaryConfig
	Logging      LoggingConfig
}

// ServerConfig governs the gRPC and metrics listeners.
type ServerConfig struct {
	GRPCAddr    string
	MetricsAddr string // empty disables the metrics listener
	APIToken    string
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Driver  string // memory|postgres
	ConnStr string
}

// EligibilityConfig selects the backend of the distribution eligibility index.
type EligibilityConfig struct {
	Backend       string // memory|redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string
}

// IntermediaryConfig identifies the account routed through on every fee-bearing transfer.
type IntermediaryConfig struct {
	ID            uuid.UUID
	AccountNumber string
	Name          string
	Trigger       int
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string
	Format        string // text|json
	IncludeCaller bool
}

const (
	StoreDriverMemory   = "memory"
	StoreDriverPostgres = "postgres"

	EligibilityBackendMemory = "memory"
	EligibilityBackendRedis  = "redis"

	defaultGRPCAddr            = ":8080"
	defaultMetricsAddr         = ":9090"
	defaultAPIToken            = "dev-token"
	defaultIntermediaryID      = "00000000-0000-0000-0000-0000000000a1"
	defaultIntermediaryNumber  = "INTERMEDIARY"
	defaultIntermediaryName    = "Intermediary"
	defaultIntermediaryTrigger = 2
	defaultRedisKey            = "linkledger:eligible"
)

// Load reads an optional .env file, then configuration from environment variables, applying defaults.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}
	return FromEnv()
}

// FromEnv reads configuration from environment variables only.
func FromEnv() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			GRPCAddr:    valueOrDefault("GRPC_ADDR", defaultGRPCAddr),
			MetricsAddr: valueOrDefault("METRICS_ADDR", defaultMetricsAddr),
			APIToken:    valueOrDefault("API_TOKEN", defaultAPIToken),
		},
		Store: StoreConfig{
			Driver:  strings.ToLower(valueOrDefault("STORE_DRIVER", StoreDriverMemory)),
			ConnStr: postgresConnString(),
		},
		Eligibility: EligibilityConfig{
			Backend:       strings.ToLower(valueOrDefault("ELIGIBILITY_BACKEND", EligibilityBackendMemory)),
			RedisAddr:     valueOrDefault("REDIS_ADDR", "localhost:6379"),
			RedisPassword: os.Getenv("REDIS_PASSWORD"),
			RedisDB:       parseIntWithDefault("REDIS_DB", 0),
			RedisKey:      valueOrDefault("REDIS_ELIGIBILITY_KEY", defaultRedisKey),
		},
		Intermediary: IntermediaryConfig{
			AccountNumber: valueOrDefault("INTERMEDIARY_ACCOUNT_NUMBER", defaultIntermediaryNumber),
			Name:          valueOrDefault("INTERMEDIARY_NAME", defaultIntermediaryName),
			Trigger:       parseIntWithDefault("INTERMEDIARY_TRIGGER", defaultIntermediaryTrigger),
		},
		Logging: LoggingConfig{
			Level:         valueOrDefault("LOG_LEVEL", "info"),
			Format:        valueOrDefault("LOG_FORMAT", "text"),
			IncludeCaller: parseBoolWithDefault("LOG_INCLUDE_CALLER", false),
		},
	}

	id, err := uuid.Parse(valueOrDefault("INTERMEDIARY_ID", defaultIntermediaryID))
	if err != nil {
		return Config{}, fmt.Errorf("invalid INTERMEDIARY_ID: %w", err)
	}
	cfg.Intermediary.ID = id

	if cfg.Intermediary.Trigger < 0 {
		return Config{}, fmt.Errorf("INTERMEDIARY_TRIGGER must not be negative, got %d", cfg.Intermediary.Trigger)
	}

	switch cfg.Store.Driver {
	case StoreDriverMemory, StoreDriverPostgres:
	default:
		return Config{}, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.Store.Driver)
	}

	switch cfg.Eligibility.Backend {
	case EligibilityBackendMemory, EligibilityBackendRedis:
	default:
		return Config{}, fmt.Errorf("unsupported ELIGIBILITY_BACKEND %q", cfg.Eligibility.Backend)
	}

	return cfg, nil
}

// postgresConnString prefers DB_CONN_STR and otherwise builds one from individual vars (Docker friendly)
func postgresConnString() string {
	if connStr := os.Getenv("DB_CONN_STR"); connStr != "" {
		return connStr
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		valueOrDefault("DB_HOST", "localhost"),
		valueOrDefault("DB_PORT", "5432"),
		valueOrDefault("DB_USER", "postgres"),
		valueOrDefault("DB_PASSWORD", "postgres"),
		valueOrDefault("DB_NAME", "linkledger"),
	)
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolWithDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return val
	}
	return fallback
}

func parseIntWithDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			return val
		}
	}
	return fallback
}
