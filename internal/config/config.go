// Package config provides configuration management for toolsy using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort       = 8080
	defaultServerTimeout    = 30 * time.Second
	defaultShutdownTimeout  = 10 * time.Second
	defaultMaxUploadBytes   = 2 * 1024 * 1024 * 1024 // 2GB
	defaultMaxConcurrent    = 2
	defaultJobTimeout       = 30 * time.Minute
	defaultSweepInterval    = time.Minute
	defaultTransformMaxAge  = 30 * time.Minute
	defaultCaptureMaxAge    = 2 * time.Hour
	defaultDeliveryGrace    = 10 * time.Second
	defaultCaptureTimeout   = 60 * time.Second
	defaultHeartbeatPeriod  = 15 * time.Second
	defaultSubscriberBuffer = 32
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Retention RetentionConfig `mapstructure:"retention"`
	FFmpeg    FFmpegConfig    `mapstructure:"ffmpeg"`
	Capture   CaptureConfig   `mapstructure:"capture"`
	Events    EventsConfig    `mapstructure:"events"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// StorageConfig holds file storage configuration.
type StorageConfig struct {
	BaseDir   string `mapstructure:"base_dir"`
	UploadDir string `mapstructure:"upload_dir"`
	OutputDir string `mapstructure:"output_dir"`
	TempDir   string `mapstructure:"temp_dir"`
	// MaxUploadSize is the maximum allowed size for uploaded source files.
	// Supports human-readable values like "500MB", "2GB", or raw byte counts.
	MaxUploadSize ByteSize `mapstructure:"max_upload_size"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// JobsConfig holds job execution configuration.
type JobsConfig struct {
	MaxConcurrent int           `mapstructure:"max_concurrent"` // Number of jobs processed in parallel
	JobTimeout    time.Duration `mapstructure:"job_timeout"`    // Hard deadline for a single job
}

// RetentionConfig holds artifact retention configuration.
type RetentionConfig struct {
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`    // How often the sweeper runs
	TransformMaxAge time.Duration `mapstructure:"transform_max_age"` // Max age for transform job artifacts
	CaptureMaxAge   time.Duration `mapstructure:"capture_max_age"`   // Max age for capture job artifacts
	DeliveryGrace   time.Duration `mapstructure:"delivery_grace"`    // Delay between delivery completion and file removal
}

// FFmpegConfig holds FFmpeg binary configuration.
type FFmpegConfig struct {
	BinaryPath string `mapstructure:"binary_path"` // Path to ffmpeg binary (empty = auto-detect)
	ProbePath  string `mapstructure:"probe_path"`  // Path to ffprobe binary (empty = auto-detect)
}

// CaptureConfig holds remote capture configuration.
type CaptureConfig struct {
	HTTPTimeout time.Duration `mapstructure:"http_timeout"` // Timeout for remote metadata resolution
	MaxDuration time.Duration `mapstructure:"max_duration"` // Reject sources longer than this (0 = unlimited)
}

// EventsConfig holds progress event stream configuration.
type EventsConfig struct {
	HeartbeatPeriod  time.Duration `mapstructure:"heartbeat_period"`  // SSE keepalive comment interval
	SubscriberBuffer int           `mapstructure:"subscriber_buffer"` // Per-subscriber channel depth before drops
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with TOOLSY_ and use underscores for nesting.
// Example: TOOLSY_SERVER_PORT=8080.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	SetDefaults(v)

	// Config file settings
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/toolsy")
		v.AddConfigPath("$HOME/.toolsy")
	}

	// Environment variable settings
	v.SetEnvPrefix("TOOLSY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults are in place.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Storage defaults
	v.SetDefault("storage.base_dir", "./data")
	v.SetDefault("storage.upload_dir", "uploads")
	v.SetDefault("storage.output_dir", "output")
	v.SetDefault("storage.temp_dir", "temp")
	v.SetDefault("storage.max_upload_size", defaultMaxUploadBytes)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Jobs defaults
	v.SetDefault("jobs.max_concurrent", defaultMaxConcurrent)
	v.SetDefault("jobs.job_timeout", defaultJobTimeout)

	// Retention defaults
	v.SetDefault("retention.sweep_interval", defaultSweepInterval)
	v.SetDefault("retention.transform_max_age", defaultTransformMaxAge)
	v.SetDefault("retention.capture_max_age", defaultCaptureMaxAge)
	v.SetDefault("retention.delivery_grace", defaultDeliveryGrace)

	// FFmpeg defaults
	v.SetDefault("ffmpeg.binary_path", "")
	v.SetDefault("ffmpeg.probe_path", "")

	// Capture defaults
	v.SetDefault("capture.http_timeout", defaultCaptureTimeout)
	v.SetDefault("capture.max_duration", 4*time.Hour)

	// Events defaults
	v.SetDefault("events.heartbeat_period", defaultHeartbeatPeriod)
	v.SetDefault("events.subscriber_buffer", defaultSubscriberBuffer)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	// Storage validation
	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}
	if c.Storage.MaxUploadSize < 0 {
		return fmt.Errorf("storage.max_upload_size must not be negative")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	// Jobs validation
	if c.Jobs.MaxConcurrent < 1 {
		return fmt.Errorf("jobs.max_concurrent must be at least 1")
	}

	// Retention validation
	if c.Retention.SweepInterval < time.Second {
		return fmt.Errorf("retention.sweep_interval must be at least 1s")
	}
	if c.Retention.TransformMaxAge < time.Second {
		return fmt.Errorf("retention.transform_max_age must be at least 1s")
	}
	if c.Retention.CaptureMaxAge < time.Second {
		return fmt.Errorf("retention.capture_max_age must be at least 1s")
	}
	if c.Retention.DeliveryGrace < 0 {
		return fmt.Errorf("retention.delivery_grace must not be negative")
	}

	// Events validation
	if c.Events.SubscriberBuffer < 1 {
		return fmt.Errorf("events.subscriber_buffer must be at least 1")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// UploadPath returns the full path to the upload directory.
func (c *StorageConfig) UploadPath() string {
	return fmt.Sprintf("%s/%s", c.BaseDir, c.UploadDir)
}

// OutputPath returns the full path to the output directory.
func (c *StorageConfig) OutputPath() string {
	return fmt.Sprintf("%s/%s", c.BaseDir, c.OutputDir)
}

// TempPath returns the full path to the temp directory.
func (c *StorageConfig) TempPath() string {
	return fmt.Sprintf("%s/%s", c.BaseDir, c.TempDir)
}
