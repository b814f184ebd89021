// Package config loads the server configuration.
//
// Sources, lowest precedence first: built-in defaults, an optional YAML file
// (SNIPPETS_CONFIG, else ./config.yaml), a .env file, and the process
// environment. Keys are the environment variable names; in YAML they may be
// written in lower case (jwt_secret: ...).
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// minSecretLength mirrors the check in auth.NewTokenService.
const minSecretLength = 16

// Config is the complete server configuration.
type Config struct {
	Port     int
	DBPath   string
	LogLevel slog.Level

	JWTSecret string
	TokenTTL  time.Duration
	// GeneratedSecret is true when JWT_SECRET was unset and a random one was
	// made up. Tokens then do not survive a restart.
	GeneratedSecret bool
	SecureCookies   bool

	GitHub   GitHubConfig
	Executor ExecutorConfig
}

// GitHubConfig enables GitHub login when both ClientID and ClientSecret are set.
type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
}

// Enabled reports whether the OAuth routes should be mounted.
func (g GitHubConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// ExecutorConfig controls the Docker sandbox.
type ExecutorConfig struct {
	Enabled  bool
	Timeout  time.Duration
	PoolSize int
	MemoryMB int64
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", 8080)
	v.SetDefault("DB_PATH", "data/snippets.db")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("TOKEN_TTL", 24*time.Hour)
	v.SetDefault("SECURE_COOKIES", false)
	v.SetDefault("GITHUB_CLIENT_ID", "")
	v.SetDefault("GITHUB_CLIENT_SECRET", "")
	v.SetDefault("GITHUB_CALLBACK_URL", "")
	v.SetDefault("EXECUTOR_ENABLED", true)
	v.SetDefault("EXECUTOR_TIMEOUT", 5*time.Second)
	v.SetDefault("EXECUTOR_POOL_SIZE", 2)
	v.SetDefault("EXECUTOR_MEMORY_MB", 128)
}

// Load reads the configuration and validates it.
func Load() (*Config, error) {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: reading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := readFile(v); err != nil {
		return nil, err
	}

	return fromViper(v)
}

// readFile merges the YAML file named by SNIPPETS_CONFIG, or ./config.yaml if present.
func readFile(v *viper.Viper) error {
	path := os.Getenv("SNIPPETS_CONFIG")
	if path == "" {
		if _, err := os.Stat("config.yaml"); err != nil {
			return nil
		}
		path = "config.yaml"
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	return nil
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:          v.GetInt("PORT"),
		DBPath:        v.GetString("DB_PATH"),
		JWTSecret:     v.GetString("JWT_SECRET"),
		TokenTTL:      v.GetDuration("TOKEN_TTL"),
		SecureCookies: v.GetBool("SECURE_COOKIES"),
		GitHub: GitHubConfig{
			ClientID:     v.GetString("GITHUB_CLIENT_ID"),
			ClientSecret: v.GetString("GITHUB_CLIENT_SECRET"),
			CallbackURL:  v.GetString("GITHUB_CALLBACK_URL"),
		},
		Executor: ExecutorConfig{
			Enabled:  v.GetBool("EXECUTOR_ENABLED"),
			Timeout:  v.GetDuration("EXECUTOR_TIMEOUT"),
			PoolSize: v.GetInt("EXECUTOR_POOL_SIZE"),
			MemoryMB: v.GetInt64("EXECUTOR_MEMORY_MB"),
		},
	}

	var errs []error

	if err := cfg.LogLevel.UnmarshalText([]byte(strings.TrimSpace(v.GetString("LOG_LEVEL")))); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", cfg.Port))
	}
	if cfg.DBPath == "" {
		errs = append(errs, errors.New("DB_PATH must not be empty"))
	}
	if cfg.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("TOKEN_TTL must be positive, got %s", cfg.TokenTTL))
	}
	if cfg.Executor.Enabled {
		if cfg.Executor.Timeout <= 0 {
			errs = append(errs, fmt.Errorf("EXECUTOR_TIMEOUT must be positive, got %s", cfg.Executor.Timeout))
		}
		if cfg.Executor.PoolSize < 1 {
			errs = append(errs, fmt.Errorf("EXECUTOR_POOL_SIZE must be at least 1, got %d", cfg.Executor.PoolSize))
		}
		if cfg.Executor.MemoryMB < 16 {
			errs = append(errs, fmt.Errorf("EXECUTOR_MEMORY_MB must be at least 16, got %d", cfg.Executor.MemoryMB))
		}
	}

	switch {
	case cfg.JWTSecret == "":
		secret, err := randomSecret()
		if err != nil {
			errs = append(errs, err)
		}
		cfg.JWTSecret = secret
		cfg.GeneratedSecret = true
	case len(cfg.JWTSecret) < minSecretLength:
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters", minSecretLength))
	}

	if cfg.GitHub.Enabled() && cfg.GitHub.CallbackURL == "" {
		cfg.GitHub.CallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating JWT secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Addr is the listen address for net/http.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
