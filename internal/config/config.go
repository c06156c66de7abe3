// Package config provides application configuration with support for
// command-line flags, environment variables, and .env files.
package config

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zlibtools/zdl/internal/errors"
)

// Default file locations relative to the working directory or home.
const (
	DefaultCredentialsFile = "zlibrary_credentials.toml"
	DefaultDomain          = "1lib.sk"
)

// Config holds the application configuration.
type Config struct {
	Credentials CredentialsConfig
	Catalog     CatalogConfig
	Upstream    UpstreamConfig
	Logger      LoggerConfig
}

// CredentialsConfig holds credential loading and rotation configuration.
type CredentialsConfig struct {
	File          string // structured credentials file
	StateFile     string // rotation state file (default: ~/.zlibrary/rotation_state.json)
	EagerValidate bool   // validate all credentials at startup
}

// CatalogConfig holds catalog storage configuration.
type CatalogConfig struct {
	DBPath      string // default: ~/.zlibrary/books.db, env ZLIBRARY_DB_PATH
	DownloadDir string // where downloaded files land
}

// UpstreamConfig holds Z-Library API configuration.
type UpstreamConfig struct {
	Domain  string        // API host (default: 1lib.sk)
	Timeout time.Duration // per-call timeout (default: 30s)
	RPS     float64       // per-credential request rate (default: 1)
	Budget  time.Duration // overall budget for multi-attempt operations (default: 5m)
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string
	Format string // "pretty", "json", or empty for auto
}

// Load builds configuration from args with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
//
// Flags are parsed from args, not os.Args, so subcommand dispatch in the
// driver stays independent. The remaining positional arguments are
// returned for the driver.
func Load(args []string) (*Config, []string, error) {
	fs := flag.NewFlagSet("zdl", flag.ContinueOnError)

	credentialsFile := fs.String("credentials", "", "Path to credentials file")
	stateFile := fs.String("state-file", "", "Path to rotation state file")
	eagerValidate := fs.String("eager-validate", "", "Validate all credentials at startup (default: false)")
	dbPath := fs.String("db", "", "Path to catalog database")
	downloadDir := fs.String("download-dir", "", "Directory for downloaded files")
	domain := fs.String("domain", "", "Upstream API host")
	timeout := fs.String("timeout", "", "Per-call upstream timeout (default: 30s)")
	rps := fs.String("rps", "", "Per-credential requests per second (default: 1)")
	budget := fs.String("budget", "", "Overall budget for multi-attempt operations (default: 5m)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "", "Log format (pretty, json)")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, nil, errors.Config("parse flags: %v", err)
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, nil, errors.Config("resolve home directory: %v", err)
	}
	zlibDir := filepath.Join(homeDir, ".zlibrary")

	cfg := &Config{
		Credentials: CredentialsConfig{
			File:          getConfigValue(*credentialsFile, "ZLIBRARY_CREDENTIALS_FILE", DefaultCredentialsFile),
			StateFile:     getConfigValue(*stateFile, "ZLIBRARY_STATE_FILE", filepath.Join(zlibDir, "rotation_state.json")),
			EagerValidate: getBoolConfigValue(*eagerValidate, "ZLIBRARY_EAGER_VALIDATE", false),
		},
		Catalog: CatalogConfig{
			DBPath:      getConfigValue(*dbPath, "ZLIBRARY_DB_PATH", filepath.Join(zlibDir, "books.db")),
			DownloadDir: getConfigValue(*downloadDir, "ZLIBRARY_DOWNLOAD_DIR", "."),
		},
		Upstream: UpstreamConfig{
			Domain: getConfigValue(*domain, "ZLIBRARY_DOMAIN", DefaultDomain),
			RPS:    getFloatConfigValue(*rps, "ZLIBRARY_RPS", 1.0),
		},
		Logger: LoggerConfig{
			Level:  getConfigValue(*logLevel, "LOG_LEVEL", "info"),
			Format: getConfigValue(*logFormat, "LOG_FORMAT", ""),
		},
	}

	timeoutStr := getConfigValue(*timeout, "ZLIBRARY_TIMEOUT", "30s")
	timeoutDur, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, nil, errors.Config("invalid timeout %q: %v", timeoutStr, err)
	}
	cfg.Upstream.Timeout = timeoutDur

	budgetStr := getConfigValue(*budget, "ZLIBRARY_BUDGET", "5m")
	budgetDur, err := time.ParseDuration(budgetStr)
	if err != nil {
		return nil, nil, errors.Config("invalid budget %q: %v", budgetStr, err)
	}
	cfg.Upstream.Budget = budgetDur

	for _, p := range []*string{&cfg.Credentials.File, &cfg.Credentials.StateFile, &cfg.Catalog.DBPath, &cfg.Catalog.DownloadDir} {
		*p = expandPath(*p, homeDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	return cfg, fs.Args(), nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return errors.Config("invalid log level %q (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Upstream.Timeout <= 0 {
		return errors.Config("timeout must be positive")
	}
	if c.Upstream.RPS <= 0 {
		return errors.Config("rps must be positive")
	}
	if c.Upstream.Domain == "" {
		return errors.Config("upstream domain cannot be empty")
	}

	return nil
}

// expandPath expands a leading ~ against the home directory.
// Relative paths stay relative; they resolve against the working directory.
func expandPath(path, homeDir string) string {
	if path == "~" {
		return homeDir
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:])
	}
	return filepath.Clean(path)
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getFloatConfigValue returns a float64 from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result float64
	if _, err := fmt.Sscanf(strValue, "%g", &result); err != nil {
		return defaultValue
	}
	return result
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
// Variables already set in the environment take precedence.
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)

		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
