package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	DataDir string        `mapstructure:"data_dir"`
	Session SessionConfig `mapstructure:"session"`
	Startup StartupConfig `mapstructure:"startup"`
	Webhook WebhookConfig `mapstructure:"webhook"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Media   MediaConfig   `mapstructure:"media"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig controls the HTTP control surface
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Host string `mapstructure:"host"`
	// SecretKey guards the administrative endpoints (session listing, start-all)
	SecretKey   string   `mapstructure:"secret_key"`
	CorsOrigins []string `mapstructure:"cors_origins"`
}

// SessionConfig controls the lifecycle of a single session
type SessionConfig struct {
	QRWaitTimeout  time.Duration `mapstructure:"qr_wait_timeout"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// StartupConfig controls the boot-time reopening of persisted sessions
type StartupConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Concurrency int           `mapstructure:"concurrency"`
}

// WebhookConfig controls out-of-band event delivery
type WebhookConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
	// Events restricts delivery to these event kinds. Empty means all.
	Events []string `mapstructure:"events"`
}

// NotifyConfig sizes the event queue
type NotifyConfig struct {
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`
}

// MediaConfig controls where retrieved media is materialized
type MediaConfig struct {
	Dir       string `mapstructure:"dir"`
	IndexPath string `mapstructure:"index_path"`
}

// LogConfig controls logging output
type LogConfig struct {
	Dir      string `mapstructure:"dir"`
	Level    string `mapstructure:"level"`
	Console  bool   `mapstructure:"console"`
	KeepDays int    `mapstructure:"keep_days"`
}

// EnvPrefix is the prefix of environment variables overriding configuration
const EnvPrefix = "WAGW"

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.host", "")
	v.SetDefault("server.secret_key", "")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("data_dir", "data")
	v.SetDefault("session.qr_wait_timeout", 60*time.Second)
	v.SetDefault("session.connect_timeout", 30*time.Second)
	v.SetDefault("startup.enabled", true)
	v.SetDefault("startup.timeout", 30*time.Second)
	v.SetDefault("startup.concurrency", 4)
	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.timeout", 10*time.Second)
	v.SetDefault("webhook.events", []string{})
	v.SetDefault("notify.workers", 4)
	v.SetDefault("notify.queue_size", 256)
	v.SetDefault("media.dir", "media")
	v.SetDefault("media.index_path", "")
	v.SetDefault("log.dir", "logs")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)
	v.SetDefault("log.keep_days", 14)
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg := &Config{}
	// Defaults alone always decode
	_ = v.Unmarshal(cfg)
	cfg.derive()
	return cfg
}

// Load reads configuration from defaults, the optional file at path and the
// environment, in increasing order of precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("gateway")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.derive()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IndexFile is the media index file name under data_dir
const IndexFile = "media.db"

// derive fills values that default relative to other keys
func (c *Config) derive() {
	if c.Media.IndexPath == "" {
		c.Media.IndexPath = filepath.Join(c.DataDir, IndexFile)
	}
}

// Validate rejects values the gateway cannot run with
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port must be set")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must be set")
	}
	if c.Session.QRWaitTimeout <= 0 {
		return fmt.Errorf("session.qr_wait_timeout must be positive")
	}
	if c.Session.ConnectTimeout <= 0 {
		return fmt.Errorf("session.connect_timeout must be positive")
	}
	if c.Startup.Timeout <= 0 {
		return fmt.Errorf("startup.timeout must be positive")
	}
	if c.Startup.Concurrency <= 0 {
		return fmt.Errorf("startup.concurrency must be positive")
	}
	if c.Notify.Workers <= 0 || c.Notify.QueueSize <= 0 {
		return fmt.Errorf("notify.workers and notify.queue_size must be positive")
	}
	return nil
}

// Addr returns the listen address of the HTTP server
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// EnsureDataDir ensures the data directory exists
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0755)
}

// GetCorsConfig returns CORS configuration for the application
func (c *Config) GetCorsConfig() cors.Config {
	corsConfig := cors.DefaultConfig()
	if len(c.Server.CorsOrigins) > 0 {
		corsConfig.AllowOrigins = c.Server.CorsOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"}
	corsConfig.ExposeHeaders = []string{"Content-Length", "Content-Type"}
	// Credentials cannot be combined with a wildcard origin
	corsConfig.AllowCredentials = !corsConfig.AllowAllOrigins
	corsConfig.MaxAge = 12 * time.Hour
	return corsConfig
}
