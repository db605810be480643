// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App    AppConfig
	Logger LoggerConfig
	Server ServerConfig
	Data   DataConfig
	Auth   AuthConfig
	Cron   CronConfig
	Email  EmailConfig
	Notion NotionConfig
	AI     AIConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string        // Server port (default: 8080)
	BaseURL      string        // Public base URL, used in OAuth redirects and email links
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
}

// DataConfig holds storage paths.
type DataConfig struct {
	// BasePath is the root directory for all persistent data.
	BasePath string
	// DatabasePath is the sqlite file (default: {data}/unearthed.db).
	DatabasePath string
	// KVPath is the badger directory for user metadata and keys (default: {data}/kv).
	KVPath string
	// SearchIndexPath is the bleve index directory (default: {data}/search.bleve).
	SearchIndexPath string
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	// PASETO v4 symmetric key for access tokens (32 bytes)
	AccessTokenKey []byte
	// AccessTokenDuration is the session token lifetime, e.g. 24h. Long-lived
	// programmatic access goes through API keys instead of refresh tokens.
	AccessTokenDuration time.Duration
}

// CronConfig holds the shared secret that guards the scheduled-job endpoints.
// Each scheduler tick is an HTTP request carrying this secret as a bearer token.
type CronConfig struct {
	Secret string
}

// EmailConfig holds SMTP settings for the daily reflection email.
type EmailConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// NotionConfig holds the Notion OAuth integration credentials.
type NotionConfig struct {
	ClientID     string
	ClientSecret string
}

// AIConfig holds the upstream model API settings and per-user token quotas.
type AIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	// Monthly per-user token budgets for premium AI features.
	InputTokenQuota  int64
	OutputTokenQuota int64
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	// Define command-line flags.
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := flag.String("data-path", "", "Base path for persistent data")

	// Server flags
	serverPort := flag.String("port", "", "Server port (default: 8080)")
	baseURL := flag.String("base-url", "", "Public base URL")
	readTimeout := flag.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := flag.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := flag.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")

	// Auth flags
	accessTokenDuration := flag.String("access-token-duration", "", "Access token lifetime (e.g., 24h)")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	// Parse flags but don't exit on error - we want to handle it gracefully.
	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	// Build config with proper precedence.
	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port:    getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			BaseURL: getConfigValue(*baseURL, "SERVER_BASE_URL", "http://localhost:8080"),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Cron: CronConfig{
			Secret: getConfigValue("", "CRON_SECRET", ""),
		},
		Email: EmailConfig{
			Host:     getConfigValue("", "SMTP_HOST", ""),
			Port:     getConfigValue("", "SMTP_PORT", "587"),
			Username: getConfigValue("", "SMTP_USERNAME", ""),
			Password: getConfigValue("", "SMTP_PASSWORD", ""),
			From:     getConfigValue("", "SMTP_FROM", ""),
		},
		Notion: NotionConfig{
			ClientID:     getConfigValue("", "NOTION_CLIENT_ID", ""),
			ClientSecret: getConfigValue("", "NOTION_CLIENT_SECRET", ""),
		},
		AI: AIConfig{
			BaseURL:          getConfigValue("", "AI_BASE_URL", "https://api.openai.com/v1"),
			APIKey:           getConfigValue("", "AI_API_KEY", ""),
			Model:            getConfigValue("", "AI_MODEL", "gpt-4o-mini"),
			InputTokenQuota:  int64(getIntConfigValue("", "AI_INPUT_TOKEN_QUOTA", 500000)),
			OutputTokenQuota: int64(getIntConfigValue("", "AI_OUTPUT_TOKEN_QUOTA", 100000)),
		},
	}

	// Access token key comes from the environment as base64; a missing key is
	// generated and persisted by auth.LoadOrGenerateKey in main.
	if encoded := os.Getenv("ACCESS_TOKEN_KEY"); encoded != "" {
		key, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("invalid ACCESS_TOKEN_KEY: %w", err)
		}
		cfg.Auth.AccessTokenKey = key
	}

	// Parse auth durations.
	accessDurationStr := getConfigValue(*accessTokenDuration, "ACCESS_TOKEN_DURATION", "24h")
	accessDuration, err := time.ParseDuration(accessDurationStr)
	if err != nil {
		return nil, fmt.Errorf("invalid access token duration %q: %w", accessDurationStr, err)
	}
	cfg.Auth.AccessTokenDuration = accessDuration

	// Parse server timeouts.
	readTimeoutStr := getConfigValue(*readTimeout, "SERVER_READ_TIMEOUT", "15s")
	readTimeoutDuration, err := time.ParseDuration(readTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid read timeout %q: %w", readTimeoutStr, err)
	}
	cfg.Server.ReadTimeout = readTimeoutDuration

	writeTimeoutStr := getConfigValue(*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s")
	writeTimeoutDuration, err := time.ParseDuration(writeTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid write timeout %q: %w", writeTimeoutStr, err)
	}
	cfg.Server.WriteTimeout = writeTimeoutDuration

	idleTimeoutStr := getConfigValue(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s")
	idleTimeoutDuration, err := time.ParseDuration(idleTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid idle timeout %q: %w", idleTimeoutStr, err)
	}
	cfg.Server.IdleTimeout = idleTimeoutDuration

	// Expand and validate the data path, deriving per-store paths from it.
	if err := cfg.expandDataPaths(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	// Validate configuration.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Data.BasePath == "" {
		return errors.New("data base path cannot be empty after expansion")
	}

	if c.App.Environment == "production" && c.Cron.Secret == "" {
		return errors.New("CRON_SECRET is required in production")
	}

	if len(c.Auth.AccessTokenKey) != 0 && len(c.Auth.AccessTokenKey) != 32 {
		return fmt.Errorf("ACCESS_TOKEN_KEY must be 32 bytes, got %d", len(c.Auth.AccessTokenKey))
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDataPaths expands ~ in the base path and derives the database, KV,
// and search index paths under it.
func (c *Config) expandDataPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "Unearthed", "data")

	expanded, err := expandPath(c.Data.BasePath, defaultPath)
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded

	if c.Data.DatabasePath == "" {
		c.Data.DatabasePath = filepath.Join(expanded, "unearthed.db")
	}
	if c.Data.KVPath == "" {
		c.Data.KVPath = filepath.Join(expanded, "kv")
	}
	if c.Data.SearchIndexPath == "" {
		c.Data.SearchIndexPath = filepath.Join(expanded, "search.bleve")
	}
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=value.
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present.
		value = strings.Trim(value, `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
