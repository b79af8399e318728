package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"lunchtools/internal/log"
)

const (
	BackendLunchMoney = "lunchmoney"
	BackendMemory     = "memory"

	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

type Config struct {
	// Backend selection
	DataBackend string

	// Lunch Money API
	APIToken    string
	APIBaseURL  string
	HTTPTimeout time.Duration

	// Memory backend seed file
	MemorySeedPath string

	// Transport
	Transport string
	Port      string

	// HTTP transport limits, RateLimitPerMinute 0 disables limiting
	RateLimitPerMinute int
	TrustedProxies     []string

	// Reference cache
	CacheStrict bool

	// Transaction listing cache
	ResponseCacheSize int
	ResponseCacheTTL  time.Duration

	// AMQP invalidation bus, disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
	InstanceID   string

	// Change journal, disabled when JournalDBPath is empty
	JournalDBPath string

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	return &Config{
		DataBackend: getEnv("DATA_BACKEND", BackendLunchMoney),

		APIToken:    getEnv("LUNCHMONEY_API_TOKEN", ""),
		APIBaseURL:  getEnv("LUNCHMONEY_BASE_URL", "https://dev.lunchmoney.app/v1"),
		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 30*time.Second),

		MemorySeedPath: getEnv("MEMORY_SEED_PATH", ""),

		Transport: getEnv("TRANSPORT", TransportStdio),
		Port:      getEnv("PORT", "8081"),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		TrustedProxies:     getEnvList("TRUSTED_PROXIES", []string{"127.0.0.1/32", "::1/128"}),

		CacheStrict: getEnvBool("CACHE_STRICT", false),

		ResponseCacheSize: getEnvInt("RESPONSE_CACHE_SIZE", 64),
		ResponseCacheTTL:  getEnvDuration("RESPONSE_CACHE_TTL", 2*time.Minute),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "lunchtools.invalidate"),
		InstanceID:   getEnv("INSTANCE_ID", ""),

		JournalDBPath: getEnv("JOURNAL_DB_PATH", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// Validate validates the configuration and returns an error listing every
// problem found.
func (c *Config) Validate() error {
	var errors []string

	switch c.DataBackend {
	case BackendLunchMoney:
		if strings.TrimSpace(c.APIToken) == "" {
			errors = append(errors, "LUNCHMONEY_API_TOKEN is required when using the lunchmoney backend")
		}
		if u, err := url.Parse(c.APIBaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid API base URL '%s': %v", c.APIBaseURL, err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid API base URL scheme '%s': must be 'http' or 'https'", u.Scheme))
		}
	case BackendMemory:
		if c.MemorySeedPath != "" {
			if _, err := os.Stat(c.MemorySeedPath); err != nil {
				errors = append(errors, fmt.Sprintf("memory seed file '%s' is not readable: %v", c.MemorySeedPath, err))
			}
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of [%s %s]", c.DataBackend, BackendLunchMoney, BackendMemory))
	}

	if c.HTTPTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid HTTP timeout %v: must be at least 1 second", c.HTTPTimeout))
	} else if c.HTTPTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid HTTP timeout %v: must be at most 5 minutes", c.HTTPTimeout))
	}

	switch c.Transport {
	case TransportStdio:
	case TransportHTTP:
		if port, err := strconv.Atoi(c.Port); err != nil {
			errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
		} else if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
		}
		if c.RateLimitPerMinute < 0 {
			errors = append(errors, fmt.Sprintf("invalid rate limit %d: must not be negative", c.RateLimitPerMinute))
		}
		for _, cidr := range c.TrustedProxies {
			if _, _, err := net.ParseCIDR(cidr); err != nil {
				errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR", cidr))
			}
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid transport '%s': must be one of [%s %s]", c.Transport, TransportStdio, TransportHTTP))
	}

	if c.ResponseCacheSize < 0 {
		errors = append(errors, fmt.Sprintf("invalid response cache size %d: must not be negative", c.ResponseCacheSize))
	}
	if c.ResponseCacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid response cache TTL %v: must be positive", c.ResponseCacheTTL))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if c.JournalDBPath != "" {
		dir := filepath.Dir(c.JournalDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create journal database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of [debug info warn error]", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Addr is the listen address of the HTTP transport.
func (c *Config) Addr() string {
	return ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
