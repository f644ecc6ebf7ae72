package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Cloudflare CloudflareConfig `mapstructure:"cloudflare"`
	Pool       PoolConfig       `mapstructure:"pool"`
	Sync       SyncConfig       `mapstructure:"sync"`
	Settings   SettingsConfig   `mapstructure:"settings"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Log        LogConfig        `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// CloudflareConfig holds API client configuration. Credentials live in the settings store.
type CloudflareConfig struct {
	APIBaseURL     string        `mapstructure:"api_base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
}

// PoolConfig holds rule pool sizing
type PoolConfig struct {
	TargetSize               int `mapstructure:"target_size"`
	PageSize                 int `mapstructure:"page_size"`
	ReconcileIntervalMinutes int `mapstructure:"reconcile_interval_minutes"`
}

// SyncConfig controls how long setup waits for routing settings to propagate
type SyncConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// SettingsConfig selects where user settings are persisted
type SettingsConfig struct {
	Backend    string `mapstructure:"backend"`
	FilePath   string `mapstructure:"file_path"`
	UseKeyring bool   `mapstructure:"use_keyring"`
	KeyringDir string `mapstructure:"keyring_dir"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// LogConfig holds logrus settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const (
	BackendFile     = "file"
	BackendDatabase = "database"
)

// LoadConfig loads configuration from environment variables and config file
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Environment variables override config file
	viper.AutomaticEnv()
	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")

	viper.SetDefault("cloudflare.api_base_url", "https://api.cloudflare.com/client/v4")
	viper.SetDefault("cloudflare.request_timeout", "30s")
	viper.SetDefault("cloudflare.max_retries", 3)

	viper.SetDefault("pool.target_size", 180)
	viper.SetDefault("pool.page_size", 50)
	viper.SetDefault("pool.reconcile_interval_minutes", 30)

	viper.SetDefault("sync.interval", "1s")
	viper.SetDefault("sync.timeout", "180s")

	viper.SetDefault("settings.backend", BackendFile)
	viper.SetDefault("settings.file_path", defaultSettingsPath())
	viper.SetDefault("settings.use_keyring", false)
	viper.SetDefault("settings.keyring_dir", "~/.config/hide-mail/keyring")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
}

func bindEnvVars() {
	// Server
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")

	// Cloudflare
	viper.BindEnv("cloudflare.api_base_url", "CLOUDFLARE_API_BASE_URL")
	viper.BindEnv("cloudflare.request_timeout", "CLOUDFLARE_REQUEST_TIMEOUT")
	viper.BindEnv("cloudflare.max_retries", "CLOUDFLARE_MAX_RETRIES")

	// Pool
	viper.BindEnv("pool.target_size", "POOL_TARGET_SIZE")
	viper.BindEnv("pool.page_size", "POOL_PAGE_SIZE")
	viper.BindEnv("pool.reconcile_interval_minutes", "POOL_RECONCILE_INTERVAL_MINUTES")

	// Sync
	viper.BindEnv("sync.interval", "SYNC_INTERVAL")
	viper.BindEnv("sync.timeout", "SYNC_TIMEOUT")

	// Settings
	viper.BindEnv("settings.backend", "SETTINGS_BACKEND")
	viper.BindEnv("settings.file_path", "SETTINGS_FILE_PATH")
	viper.BindEnv("settings.use_keyring", "SETTINGS_USE_KEYRING")
	viper.BindEnv("settings.keyring_dir", "SETTINGS_KEYRING_DIR")

	// Database
	viper.BindEnv("database.host", "DB_HOST")
	viper.BindEnv("database.port", "DB_PORT")
	viper.BindEnv("database.user", "DB_USER")
	viper.BindEnv("database.password", "DB_PASSWORD")
	viper.BindEnv("database.dbname", "DB_NAME")

	// Log
	viper.BindEnv("log.level", "LOG_LEVEL")
	viper.BindEnv("log.format", "LOG_FORMAT")
}

func defaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "settings.yaml")
	}
	return filepath.Join(home, ".config", "hide-mail", "settings.yaml")
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Cloudflare.APIBaseURL == "" {
		return fmt.Errorf("cloudflare API base URL is required")
	}

	if c.Pool.TargetSize <= 0 {
		return fmt.Errorf("pool target size must be greater than 0")
	}
	if c.Pool.PageSize <= 0 {
		return fmt.Errorf("pool page size must be greater than 0")
	}
	if c.Pool.ReconcileIntervalMinutes < 0 {
		return fmt.Errorf("pool reconcile interval must not be negative")
	}

	if c.Sync.Interval <= 0 || c.Sync.Timeout <= 0 {
		return fmt.Errorf("sync interval and timeout must be greater than 0")
	}

	switch c.Settings.Backend {
	case BackendFile:
		if c.Settings.FilePath == "" {
			return fmt.Errorf("settings file path is required for the file backend")
		}
	case BackendDatabase:
		if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
			return fmt.Errorf("database host, user, and dbname are required for the database backend")
		}
	default:
		return fmt.Errorf("unknown settings backend %q", c.Settings.Backend)
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	return nil
}
