package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration sourced from defaults, an optional
// config file and environment variables.
type Config struct {
	Env      string         `mapstructure:"env" yaml:"env"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Admin    AdminConfig    `mapstructure:"admin" yaml:"admin"`
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Pricing  PricingConfig  `mapstructure:"pricing" yaml:"pricing"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port            string        `mapstructure:"port" yaml:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	AutoMigrate     bool          `mapstructure:"auto_migrate" yaml:"auto_migrate"`
	LoginRate       float64       `mapstructure:"login_rate" yaml:"login_rate"`
	LoginBurst      int           `mapstructure:"login_burst" yaml:"login_burst"`
	// SessionIdleTTL is how long an unused project session stays in memory.
	SessionIdleTTL time.Duration `mapstructure:"session_idle_ttl" yaml:"session_idle_ttl"`
}

// DatabaseConfig selects the storage backend.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver" yaml:"driver"`
	Path     string `mapstructure:"path" yaml:"path"`
	URL      string `mapstructure:"url" yaml:"url"`
	MaxConns int32  `mapstructure:"max_conns" yaml:"max_conns"`
}

// AdminConfig holds the bootstrap admin credentials and cookie secret.
type AdminConfig struct {
	Email         string `mapstructure:"email" yaml:"email"`
	Password      string `mapstructure:"password" yaml:"password"`
	SessionSecret string `mapstructure:"session_secret" yaml:"session_secret"`
}

// LoggerConfig configures zap and log file rotation.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// PricingConfig points at an optional catalog file.
type PricingConfig struct {
	CatalogPath string `mapstructure:"catalog_path" yaml:"catalog_path"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SetDefaults registers default values for every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.auto_migrate", true)
	v.SetDefault("server.login_rate", 0.2)
	v.SetDefault("server.login_burst", 5)
	v.SetDefault("server.session_idle_ttl", "30m")

	v.SetDefault("database.driver", "")
	v.SetDefault("database.path", "./dev.db")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("admin.email", "")
	v.SetDefault("admin.password", "")
	v.SetDefault("admin.session_secret", "")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "tillerpro")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	v.SetDefault("pricing.catalog_path", "")
}

// bindEnv maps TILLERPRO_* variables plus the short deployment names.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("TILLERPRO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("env", "TILLERPRO_ENV", "APP_ENV")
	_ = v.BindEnv("server.port", "TILLERPRO_SERVER_PORT", "PORT")
	_ = v.BindEnv("database.path", "TILLERPRO_DATABASE_PATH", "DB_PATH")
	_ = v.BindEnv("database.url", "TILLERPRO_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("admin.email", "TILLERPRO_ADMIN_EMAIL", "ADMIN_EMAIL")
	_ = v.BindEnv("admin.password", "TILLERPRO_ADMIN_PASSWORD", "ADMIN_PASSWORD")
	_ = v.BindEnv("admin.session_secret", "TILLERPRO_ADMIN_SESSION_SECRET", "SESSION_SECRET")
}

// Load reads the local .env file, the optional config file and the
// environment into a validated Config.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	SetDefaults(v)
	bindEnv(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	return NewConfigFromViper(v)
}

// NewConfigFromViper unmarshals and validates a Config.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverSQLite
		if cfg.Database.URL != "" {
			cfg.Database.Driver = DriverPostgres
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// IsDev reports whether the app runs in a development environment.
func (c *Config) IsDev() bool {
	switch strings.ToLower(c.Env) {
	case "", "dev", "development", "local":
		return true
	}
	return false
}

// Validate checks required fields and sane values.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive")
	}
	if c.Server.LoginRate <= 0 || c.Server.LoginBurst <= 0 {
		return fmt.Errorf("server.login_rate and server.login_burst must be positive")
	}
	if c.Server.SessionIdleTTL <= 0 {
		return fmt.Errorf("server.session_idle_ttl must be positive")
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for postgres")
		}
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.Database.Driver)
	}

	switch c.Logger.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logger.format must be json or console, got %q", c.Logger.Format)
	}

	if !c.IsDev() && c.Admin.SessionSecret == "" {
		return fmt.Errorf("admin.session_secret is required outside development")
	}
	return nil
}

// Warnings lists settings that are allowed to be empty but probably should
// not be.
func (c *Config) Warnings() []string {
	var out []string
	if c.Admin.Email == "" {
		out = append(out, "ADMIN_EMAIL is not set")
	}
	if c.Admin.Password == "" {
		out = append(out, "ADMIN_PASSWORD is not set")
	}
	if c.Admin.SessionSecret == "" {
		out = append(out, "SESSION_SECRET is not set")
	}
	return out
}
