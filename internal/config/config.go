// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"genie-audit/internal/engine"
)

// WarehouseConfig holds connection settings for the analytics platform the
// auditor fetches history and conversations from.
type WarehouseConfig struct {
	Host    string // workspace base URL (e.g. https://workspace.example.com)
	Token   string // bearer token for the REST API
	SpaceID string // default space to audit
	// SQLWarehouseID names the warehouse used for audit-log lookups. When
	// empty the audit-log fallback is disabled and reports rely on message
	// timestamps alone.
	SQLWarehouseID string
	RateRPS        float64 // sustained request rate against the platform API (default 5)
	RateBurst      int     // burst capacity (default 10)
}

// Validate checks that the warehouse configuration is usable.
func (w *WarehouseConfig) Validate() error {
	if w.Host == "" {
		return fmt.Errorf("WAREHOUSE_HOST must be set")
	}
	if w.Token == "" {
		return fmt.Errorf("WAREHOUSE_TOKEN must be set")
	}
	return nil
}

// Config holds the configuration for the audit server and CLI.
type Config struct {
	DBPath           string  // path to the SQLite run-snapshot file (default "genie_audit.sqlite")
	ListenAddr       string  // HTTP listen address (default ":8080")
	LogLevel         string  // log level: debug, info, warn, error (default "info")
	Env              string  // environment: "development" (default) or "production"
	TuningFile       string  // optional YAML file overriding engine tuning
	RefreshCron      string  // optional cron expression for periodic report refresh
	WindowHours      float64 // default audit lookback window (default 24)
	MaxConversations int     // cap on conversations fetched per run (default 100)

	// Rate limiting for the HTTP API.
	RateLimitRPS   float64 // sustained requests per second (default 100)
	RateLimitBurst int     // burst capacity (default 200)

	// CORS
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	// Warehouse holds analytics platform connection settings.
	Warehouse WarehouseConfig

	// Tuning holds the correlation engine parameters, merged from defaults
	// and the optional tuning file.
	Tuning engine.Tuning

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadFromEnv loads configuration from environment variables and the optional
// tuning file. Warehouse credentials are not validated here; the server
// validates them at startup while the CLI can run offline commands without
// them.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		DBPath:      os.Getenv("DB_PATH"),
		ListenAddr:  os.Getenv("LISTEN_ADDR"),
		LogLevel:    os.Getenv("LOG_LEVEL"),
		Env:         os.Getenv("ENV"),
		TuningFile:  os.Getenv("TUNING_FILE"),
		RefreshCron: os.Getenv("REFRESH_CRON"),
	}

	cfg.Warehouse = WarehouseConfig{
		Host:           strings.TrimRight(os.Getenv("WAREHOUSE_HOST"), "/"),
		Token:          os.Getenv("WAREHOUSE_TOKEN"),
		SpaceID:        os.Getenv("WAREHOUSE_SPACE_ID"),
		SQLWarehouseID: os.Getenv("WAREHOUSE_SQL_ID"),
	}

	if v := os.Getenv("WINDOW_HOURS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.WindowHours = f
		}
	}
	if v := os.Getenv("MAX_CONVERSATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxConversations = n
		}
	}

	// Rate limiting
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}
	if v := os.Getenv("WAREHOUSE_RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Warehouse.RateRPS = f
		}
	}
	if v := os.Getenv("WAREHOUSE_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Warehouse.RateBurst = n
		}
	}

	// CORS
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = origins
	}

	// Defaults
	if cfg.DBPath == "" {
		cfg.DBPath = "genie_audit.sqlite"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.WindowHours == 0 {
		cfg.WindowHours = 24
	}
	if cfg.MaxConversations == 0 {
		cfg.MaxConversations = 100
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 100
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 200
	}
	if cfg.Warehouse.RateRPS == 0 {
		cfg.Warehouse.RateRPS = 5
	}
	if cfg.Warehouse.RateBurst == 0 {
		cfg.Warehouse.RateBurst = 10
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	tuning, err := loadTuning(cfg.TuningFile)
	if err != nil {
		return nil, err
	}
	cfg.Tuning = tuning

	if cfg.Warehouse.Token == "" {
		cfg.Warnings = append(cfg.Warnings, "WAREHOUSE_TOKEN not set; live fetches will fail until configured")
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
		if err := cfg.Warehouse.Validate(); err != nil {
			return nil, fmt.Errorf("warehouse config: %w", err)
		}
	}

	return cfg, nil
}

// loadTuning reads the optional YAML tuning file and fills unset values with
// the engine defaults. A missing path yields pure defaults.
func loadTuning(path string) (engine.Tuning, error) {
	tuning := engine.DefaultTuning()
	if path == "" {
		return tuning, nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		return tuning, fmt.Errorf("read tuning file %s: %w", path, err)
	}
	var fileTuning engine.Tuning
	if err := yaml.Unmarshal(data, &fileTuning); err != nil {
		return tuning, fmt.Errorf("parse tuning file %s: %w", path, err)
	}
	return fileTuning.Normalize(), nil
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = stripQuotes(value)
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
