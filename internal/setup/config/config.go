package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
	ErrUnknownBackend        = errors.New("unknown storage backend")
)

// RepositoryVersion is the repository version tag for config file references.
const RepositoryVersion = "v0.3.0"

// CurrentBotVersion is the current version of the bot config file.
const CurrentBotVersion = 1

// Storage backend names accepted by the storage.backend setting.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config represents the entire application configuration.
type Config struct {
	// Version of the bot config.
	Version   int       `koanf:"version"`
	Debug     Debug     `koanf:"debug"`
	Discord   Discord   `koanf:"discord"`
	Storage   Storage   `koanf:"storage"`
	Telemetry Telemetry `koanf:"telemetry"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
	// Maximum log files to keep.
	MaxLogsToKeep int `koanf:"max_logs_to_keep"`
	// Maximum lines per log file.
	MaxLogLines int `koanf:"max_log_lines"`
}

// Discord contains Discord bot configuration.
type Discord struct {
	// Discord bot token for authentication.
	Token string `koanf:"token"`
	// Prefix that marks a message as a command.
	Prefix string `koanf:"prefix"`
	// Maximum number of commands processed at the same time.
	MaxConcurrentCommands int `koanf:"max_concurrent_commands"`
	// Request timeout in milliseconds for a single command.
	RequestTimeout int `koanf:"request_timeout"`
}

// Storage selects and configures the guild settings backend.
type Storage struct {
	// Backend name (file, sqlite, postgres, redis).
	Backend string `koanf:"backend"`
	// Logical name of the settings document.
	DocumentName string     `koanf:"document_name"`
	File         File       `koanf:"file"`
	SQLite       SQLite     `koanf:"sqlite"`
	PostgreSQL   PostgreSQL `koanf:"postgresql"`
	Redis        Redis      `koanf:"redis"`
}

// File contains the JSON file backend configuration.
type File struct {
	// Directory holding the settings documents.
	Dir string `koanf:"dir"`
}

// SQLite contains the SQLite backend configuration.
type SQLite struct {
	// Path to the database file.
	Path string `koanf:"path"`
}

// PostgreSQL contains database connection configuration.
type PostgreSQL struct {
	// Database hostname.
	Host string `koanf:"host"`
	// Database port.
	Port int `koanf:"port"`
	// Database username.
	User string `koanf:"user"`
	// Database password.
	Password string `koanf:"password"`
	// Database name.
	DBName string `koanf:"db_name"`
	// Maximum open connections.
	MaxOpenConns int `koanf:"max_open_conns"`
	// Maximum idle connections.
	MaxIdleConns int `koanf:"max_idle_conns"`
	// Connection lifetime in minutes.
	MaxLifetime int `koanf:"max_lifetime"`
	// Run pending migrations on startup.
	AutoMigrate bool `koanf:"auto_migrate"`
}

// Redis contains Redis connection configuration.
type Redis struct {
	// Redis hostname.
	Host string `koanf:"host"`
	// Redis port.
	Port int `koanf:"port"`
	// Redis username.
	Username string `koanf:"username"`
	// Redis password.
	Password string `koanf:"password"`
	// Database index.
	DB int `koanf:"db"`
	// Key prefix for stored documents.
	KeyPrefix string `koanf:"key_prefix"`
}

// Telemetry contains tracing export configuration.
type Telemetry struct {
	// Uptrace DSN. Tracing export is disabled when empty.
	UptraceDSN string `koanf:"uptrace_dsn"`
	// Service name reported with spans.
	ServiceName string `koanf:"service_name"`
}

// LoadConfig loads bot.toml from the first config path that has one.
// Returns the config along with the used config directory.
func LoadConfig() (*Config, string, error) {
	// Get user's home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	// List search paths
	configPaths := []string{
		".sentinel",
		homeDir + "/.sentinel/config",
		"/etc/sentinel/config",
		"/app/config",
		"config",
		".",
	}

	for _, path := range configPaths {
		configPath := path + "/bot.toml"
		if _, err := os.Stat(configPath); err != nil {
			continue
		}

		cfg, err := LoadFile(configPath)
		if err != nil {
			return nil, "", err
		}

		return cfg, path, nil
	}

	return nil, "", fmt.Errorf("%w: bot.toml", ErrConfigFileNotFound)
}

// LoadFile loads the configuration from a specific file path.
func LoadFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", configPath, err)
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := checkConfigVersion("bot", config.Version, CurrentBotVersion); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// applyDefaults fills optional settings that were left empty.
func (c *Config) applyDefaults() {
	if c.Debug.LogLevel == "" {
		c.Debug.LogLevel = "info"
	}

	if c.Debug.MaxLogsToKeep <= 0 {
		c.Debug.MaxLogsToKeep = 10
	}

	if c.Debug.MaxLogLines <= 0 {
		c.Debug.MaxLogLines = 10000
	}

	if c.Discord.Prefix == "" {
		c.Discord.Prefix = "!"
	}

	if c.Discord.MaxConcurrentCommands <= 0 {
		c.Discord.MaxConcurrentCommands = 16
	}

	if c.Discord.RequestTimeout <= 0 {
		c.Discord.RequestTimeout = 15000
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendFile
	}

	if c.Storage.DocumentName == "" {
		c.Storage.DocumentName = "server_roles"
	}

	if c.Storage.File.Dir == "" {
		c.Storage.File.Dir = "data"
	}

	if c.Storage.SQLite.Path == "" {
		c.Storage.SQLite.Path = "data/sentinel.db"
	}

	if c.Storage.Redis.KeyPrefix == "" {
		c.Storage.Redis.KeyPrefix = "sentinel:document:"
	}

	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "sentinel"
	}
}

// validate rejects settings that cannot be used.
func (c *Config) validate() error {
	switch c.Storage.Backend {
	case BackendFile, BackendSQLite, BackendPostgres, BackendRedis:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Storage.Backend)
	}
}

// checkConfigVersion checks if the config file version is correct.
func checkConfigVersion(name string, current, expected int) error {
	if current == 0 {
		return fmt.Errorf("%w: %s.toml", ErrConfigVersionMissing, name)
	}

	if current != expected {
		return fmt.Errorf(
			"%w: %s.toml (got: %d, expected: %d)\n"+
				"Please update your config file from: https://github.com/robalyx/sentinel/tree/%s/config/%s.toml",
			ErrConfigVersionMismatch,
			name,
			current,
			expected,
			RepositoryVersion,
			name,
		)
	}

	return nil
}
