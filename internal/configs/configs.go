/*
Package configs loads and parses the application's configuration settings.

All values come from environment variables, with development defaults where a
missing value is safe and hard errors where it is not (the token signing
secret in production).
*/
package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig contains every configuration parameter the server needs.
type AppConfig struct {
	// General Server Settings
	Environment string
	Port        int

	// Security Settings
	AllowedOrigins []string
	TokenSecret    string

	// Chat Engine Settings
	HistoryLimit int
	SessionTTL   time.Duration
}

// defaults applied when the corresponding environment variable is unset.
const (
	defaultPort         = 8080
	defaultHistoryLimit = 100
	defaultSessionTTL   = 24 * time.Hour
)

// LoadConfig reads and validates the application configuration from
// environment variables and returns the populated AppConfig.
func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}

	// --- General Server Settings ---
	cfg.Environment = os.Getenv("ENVIRONMENT")
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	portStr := os.Getenv("PORT")
	if portStr == "" {
		portStr = strconv.Itoa(defaultPort)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT environment variable: %w", err)
	}
	cfg.Port = port

	if cfg.Port < 1024 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", cfg.Port, 1024, 65535)
	}

	// --- Security Settings ---
	originsStr := os.Getenv("ALLOWED_ORIGINS")
	if originsStr != "" {
		origins := strings.Split(originsStr, ",")
		for _, origin := range origins {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	} else {
		cfg.AllowedOrigins = []string{}
	}

	tokenSecret := os.Getenv("TOKEN_SECRET")
	if cfg.Environment == "development" {
		if tokenSecret == "" {
			tokenSecret = "your_default_insecure_secret_key_change_me"
		}
	} else {
		if tokenSecret == "" {
			return nil, fmt.Errorf("TOKEN_SECRET environment variable is required in %s environment for security", cfg.Environment)
		}
	}
	cfg.TokenSecret = tokenSecret

	// --- Chat Engine Settings ---
	historyStr := os.Getenv("HISTORY_LIMIT")
	if historyStr == "" {
		cfg.HistoryLimit = defaultHistoryLimit
	} else {
		limit, err := strconv.Atoi(historyStr)
		if err != nil {
			return nil, fmt.Errorf("invalid HISTORY_LIMIT environment variable: %w", err)
		}
		if limit <= 0 {
			return nil, fmt.Errorf("HISTORY_LIMIT must be positive, got %d", limit)
		}
		cfg.HistoryLimit = limit
	}

	ttlStr := os.Getenv("SESSION_TTL")
	if ttlStr == "" {
		cfg.SessionTTL = defaultSessionTTL
	} else {
		ttl, err := time.ParseDuration(ttlStr)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_TTL environment variable: %w", err)
		}
		if ttl <= 0 {
			return nil, fmt.Errorf("SESSION_TTL must be positive, got %s", ttl)
		}
		cfg.SessionTTL = ttl
	}

	return cfg, nil
}
