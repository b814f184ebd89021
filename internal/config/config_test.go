package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate clears every variable Load reads so the host environment cannot leak in.
func isolate(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SNIPPETS_CONFIG", "PORT", "DB_PATH", "LOG_LEVEL", "JWT_SECRET", "TOKEN_TTL",
		"SECURE_COOKIES", "GITHUB_CLIENT_ID", "GITHUB_CLIENT_SECRET", "GITHUB_CALLBACK_URL",
		"EXECUTOR_ENABLED", "EXECUTOR_TIMEOUT", "EXECUTOR_POOL_SIZE", "EXECUTOR_MEMORY_MB",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Chdir(t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "data/snippets.db", cfg.DBPath)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.True(t, cfg.Executor.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Executor.Timeout)
	assert.False(t, cfg.GitHub.Enabled())

	// Without JWT_SECRET a random development secret is generated.
	assert.True(t, cfg.GeneratedSecret)
	assert.Len(t, cfg.JWTSecret, 64)
}

func TestLoad_Environment(t *testing.T) {
	isolate(t)
	t.Setenv("PORT", "9090")
	t.Setenv("DB_PATH", ":memory:")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("JWT_SECRET", "a-very-long-secret-value")
	t.Setenv("TOKEN_TTL", "30m")
	t.Setenv("EXECUTOR_ENABLED", "false")
	t.Setenv("GITHUB_CLIENT_ID", "id")
	t.Setenv("GITHUB_CLIENT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, ":memory:", cfg.DBPath)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "a-very-long-secret-value", cfg.JWTSecret)
	assert.False(t, cfg.GeneratedSecret)
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL)
	assert.False(t, cfg.Executor.Enabled)
	assert.True(t, cfg.GitHub.Enabled())
	assert.Equal(t, "http://localhost:9090/auth/github/callback", cfg.GitHub.CallbackURL)
}

func TestLoad_YAMLFileUnderEnvironment(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "snippets.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 7000\ndb_path: /var/lib/snippets.db\nexecutor_pool_size: 4\n"), 0o600))
	t.Setenv("SNIPPETS_CONFIG", path)
	t.Setenv("PORT", "7001")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7001, cfg.Port, "environment wins over the file")
	assert.Equal(t, "/var/lib/snippets.db", cfg.DBPath)
	assert.Equal(t, 4, cfg.Executor.PoolSize)
}

func TestLoad_DotEnv(t *testing.T) {
	isolate(t)
	require.NoError(t, os.WriteFile(".env", []byte("PORT=6060\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("PORT") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 6060, cfg.Port)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"port out of range", map[string]string{"PORT": "70000"}},
		{"short secret", map[string]string{"JWT_SECRET": "short"}},
		{"bad log level", map[string]string{"LOG_LEVEL": "chatty"}},
		{"zero ttl", map[string]string{"TOKEN_TTL": "0s"}},
		{"empty pool", map[string]string{"EXECUTOR_POOL_SIZE": "0"}},
		{"missing config file", map[string]string{"SNIPPETS_CONFIG": "/does/not/exist.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
