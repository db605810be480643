package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App: AppConfig{
			Environment: "development",
		},
		Logger: LoggerConfig{
			Level: "info",
		},
		Data: DataConfig{
			BasePath: "/some/path",
		},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	err := validConfig().Validate()
	assert.NoError(t, err)
}

func TestValidate_AllEnvironments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", false}, // production requires CRON_SECRET
		{"test", false},
		{"", false},
		{"DEVELOPMENT", false}, // case sensitive
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := validConfig()
			cfg.App.Environment = tt.env

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_ProductionRequiresCronSecret(t *testing.T) {
	cfg := validConfig()
	cfg.App.Environment = "production"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CRON_SECRET")

	cfg.Cron.Secret = "s3cret"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_AllLogLevels(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"debug", true},
		{"info", true},
		{"warn", true},
		{"error", true},
		{"DEBUG", true},  // case insensitive
		{"trace", false}, // not supported
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := validConfig()
			cfg.Logger.Level = tt.level

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_AccessTokenKeyLength(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.AccessTokenKey = []byte("too short")

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "32 bytes")

	cfg.Auth.AccessTokenKey = make([]byte, 32)
	assert.NoError(t, cfg.Validate())
}

func TestExpandDataPaths_EmptyUsesDefault(t *testing.T) {
	cfg := &Config{}

	err := cfg.expandDataPaths()
	require.NoError(t, err)

	homeDir, _ := os.UserHomeDir() //nolint:errcheck // Test setup
	expected := filepath.Join(homeDir, "Unearthed", "data")
	assert.Equal(t, expected, cfg.Data.BasePath)
	assert.Equal(t, filepath.Join(expected, "unearthed.db"), cfg.Data.DatabasePath)
	assert.Equal(t, filepath.Join(expected, "kv"), cfg.Data.KVPath)
	assert.Equal(t, filepath.Join(expected, "search.bleve"), cfg.Data.SearchIndexPath)
}

func TestExpandDataPaths_TildeExpansion(t *testing.T) {
	cfg := &Config{
		Data: DataConfig{
			BasePath: "~/my-data",
		},
	}

	err := cfg.expandDataPaths()
	require.NoError(t, err)

	homeDir, _ := os.UserHomeDir() //nolint:errcheck // Test setup
	assert.Equal(t, filepath.Join(homeDir, "my-data"), cfg.Data.BasePath)
}

func TestExpandDataPaths_ExplicitPathsKept(t *testing.T) {
	cfg := &Config{
		Data: DataConfig{
			BasePath:     "/data",
			DatabasePath: "/elsewhere/app.db",
		},
	}

	err := cfg.expandDataPaths()
	require.NoError(t, err)

	assert.Equal(t, "/elsewhere/app.db", cfg.Data.DatabasePath)
	assert.Equal(t, filepath.Join("/data", "kv"), cfg.Data.KVPath)
}

func TestGetConfigValue_Precedence(t *testing.T) {
	// Test flag value takes priority.
	result := getConfigValue("flag-value", "ENV_KEY", "default-value")
	assert.Equal(t, "flag-value", result)

	// Test env var when flag is empty.
	os.Setenv("TEST_ENV_KEY", "env-value") //nolint:errcheck // Test setup
	defer os.Unsetenv("TEST_ENV_KEY")      //nolint:errcheck // Test cleanup

	result = getConfigValue("", "TEST_ENV_KEY", "default-value")
	assert.Equal(t, "env-value", result)

	// Test default when both are empty.
	result = getConfigValue("", "NONEXISTENT_KEY", "default-value")
	assert.Equal(t, "default-value", result)
}

func TestLoadEnvFile_ValidFile(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	content := `# Test env file
ENV=staging
LOG_LEVEL=debug
CRON_SECRET="shared secret"
`
	err := os.WriteFile(envFile, []byte(content), 0o644)
	require.NoError(t, err)

	os.Unsetenv("ENV")         //nolint:errcheck // Test cleanup
	os.Unsetenv("LOG_LEVEL")   //nolint:errcheck // Test cleanup
	os.Unsetenv("CRON_SECRET") //nolint:errcheck // Test cleanup
	defer func() {
		os.Unsetenv("ENV")         //nolint:errcheck // Test cleanup
		os.Unsetenv("LOG_LEVEL")   //nolint:errcheck // Test cleanup
		os.Unsetenv("CRON_SECRET") //nolint:errcheck // Test cleanup
	}()

	err = loadEnvFile(envFile)
	require.NoError(t, err)

	assert.Equal(t, "staging", os.Getenv("ENV"))
	assert.Equal(t, "debug", os.Getenv("LOG_LEVEL"))
	assert.Equal(t, "shared secret", os.Getenv("CRON_SECRET"))
}

func TestLoadEnvFile_InvalidFormat(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	content := `VALID_KEY=valid_value
INVALID LINE WITHOUT EQUALS
`
	err := os.WriteFile(envFile, []byte(content), 0o644)
	require.NoError(t, err)

	err = loadEnvFile(envFile)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestLoadEnvFile_ExistingEnvVarsNotOverwritten(t *testing.T) {
	os.Setenv("TEST_VAR", "original-value") //nolint:errcheck // Test setup
	defer os.Unsetenv("TEST_VAR")           //nolint:errcheck // Test cleanup

	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	content := `TEST_VAR=new-value`
	err := os.WriteFile(envFile, []byte(content), 0o644)
	require.NoError(t, err)

	err = loadEnvFile(envFile)
	require.NoError(t, err)

	assert.Equal(t, "original-value", os.Getenv("TEST_VAR"))
}
