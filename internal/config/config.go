// Package config provides configuration management for the fairfund scanner
// application. It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/text/language"

	"github.com/fairfund-scanner/internal/types"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Chain   ChainConfig
	Redis   RedisConfig
	Cache   CacheConfig
	Tokens  []TokenConfig
	Logging LoggingConfig
	Locale  string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RequestsPerSec  int
}

// ChainConfig holds RPC and contract configuration
type ChainConfig struct {
	RPCURL        string
	EscrowAddress string
	ChainID       int64
	// SignerKey is the hex-encoded private key used for write actions.
	// Optional: without it the service runs read-only.
	SignerKey string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// CacheConfig holds read-cache configuration
type CacheConfig struct {
	// TTL bounds how long a projection is served without refetching from
	// chain. Explicit invalidation after writes supplements it.
	TTL time.Duration
}

// TokenConfig describes a token eligible for campaign creation forms
type TokenConfig struct {
	Address  string
	Symbol   string
	Decimals *int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env file is optional - environment variables can be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	tokens, err := parseTokenAllowlist(getEnv("TOKEN_ALLOWLIST", ""))
	if err != nil {
		return nil, err
	}

	config := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			RequestsPerSec:  getEnvAsInt("SERVER_REQUESTS_PER_SEC", 20),
		},
		Chain: ChainConfig{
			RPCURL:        getEnv("RPC_URL", ""),
			EscrowAddress: getEnv("FAIRFUND_ADDRESS", ""),
			ChainID:       int64(getEnvAsInt("CHAIN_ID", 0)),
			SignerKey:     getEnv("SIGNER_PRIVATE_KEY", ""),
		},
		Redis: RedisConfig{
			Host:           getEnv("REDIS_HOST", "localhost"),
			Port:           getEnv("REDIS_PORT", "6379"),
			Password:       getEnv("REDIS_PASSWORD", ""),
			DB:             getEnvAsInt("REDIS_DB", 0),
			MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
		},
		Cache: CacheConfig{
			TTL: getEnvAsDuration("CACHE_TTL", 15*time.Second),
		},
		Tokens: tokens,
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Locale: getEnv("DISPLAY_LOCALE", "es"),
	}

	return config, nil
}

// Validate checks that the chain configuration is complete enough to serve
// reads. A missing RPC URL or escrow address is a non-actionable
// "not configured" state, not a retryable failure.
func (c *Config) Validate() error {
	if c.Chain.RPCURL == "" {
		return types.NewServiceError(types.ErrCodeNotConfigured, "RPC_URL is not configured")
	}
	if c.Chain.EscrowAddress == "" {
		return types.NewServiceError(types.ErrCodeNotConfigured, "FAIRFUND_ADDRESS is not configured")
	}
	if c.Chain.ChainID <= 0 {
		return types.NewServiceError(types.ErrCodeNotConfigured, "CHAIN_ID is not configured")
	}
	return nil
}

// CanSign reports whether a signing key is configured for write actions
func (c *Config) CanSign() bool {
	return c.Chain.SignerKey != ""
}

// LocaleTag parses the display locale, falling back to Spanish when the
// configured value is not a valid BCP 47 tag.
func (c *Config) LocaleTag() language.Tag {
	tag, err := language.Parse(c.Locale)
	if err != nil {
		return language.Spanish
	}
	return tag
}

// parseTokenAllowlist parses TOKEN_ALLOWLIST entries of the form
// "address:symbol" or "address:symbol:decimals", comma separated.
func parseTokenAllowlist(raw string) ([]TokenConfig, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var tokens []TokenConfig
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		parts := strings.Split(entry, ":")
		if len(parts) < 2 {
			return nil, fmt.Errorf("invalid TOKEN_ALLOWLIST entry %q: want address:symbol[:decimals]", entry)
		}

		token := TokenConfig{
			Address: strings.ToLower(strings.TrimSpace(parts[0])),
			Symbol:  strings.TrimSpace(parts[1]),
		}
		if len(parts) >= 3 {
			decimals, err := strconv.Atoi(strings.TrimSpace(parts[2]))
			if err != nil || decimals < 0 || decimals > 255 {
				return nil, fmt.Errorf("invalid decimals in TOKEN_ALLOWLIST entry %q", entry)
			}
			token.Decimals = &decimals
		}
		tokens = append(tokens, token)
	}

	return tokens, nil
}

// AllowedToken returns the allowlist entry for an address, if present
func (c *Config) AllowedToken(address string) (*TokenConfig, bool) {
	needle := strings.ToLower(strings.TrimSpace(address))
	for i := range c.Tokens {
		if c.Tokens[i].Address == needle {
			return &c.Tokens[i], true
		}
	}
	return nil, false
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration retrieves an environment variable as a duration
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
