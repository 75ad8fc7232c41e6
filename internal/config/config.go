// Package config provides configuration management for vodarr using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort      = 8080
	defaultServerTimeout   = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 10
	defaultConnMaxIdleTime = 30 * time.Minute

	defaultParallelEncodes  = 2
	defaultWorkerCount      = 2
	defaultPollInterval     = 5 * time.Second
	defaultSweepInterval    = time.Minute
	defaultStuckThreshold   = 2 * time.Hour
	defaultSweepBatchSize   = 10
	defaultAlertInterval    = 5 * time.Minute
	defaultMetricRetention  = 30 * 24 * time.Hour
	defaultMinFreeBytes     = 1 << 30 // 1 GiB
	defaultNotifyTimeout    = 10 * time.Second
	defaultPreviewDuration  = 12
	defaultPreviewSegment   = 2
	defaultPosterDimensionW = 250
	defaultPosterDimensionH = 150
)

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	FFmpeg     FFmpegConfig     `mapstructure:"ffmpeg"`
	Encoding   EncodingConfig   `mapstructure:"encoding"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// StorageConfig holds file storage configuration.
type StorageConfig struct {
	BaseDir    string `mapstructure:"base_dir"`
	EncodedDir string `mapstructure:"encoded_dir"`
	PosterDir  string `mapstructure:"poster_dir"`
	PreviewDir string `mapstructure:"preview_dir"`
	StreamDir  string `mapstructure:"stream_dir"`
	TempDir    string `mapstructure:"temp_dir"`
	// MinFreeBytes is the free-space headroom required before heavy stages run.
	MinFreeBytes uint64 `mapstructure:"min_free_bytes"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// FFmpegConfig holds FFmpeg binary configuration.
type FFmpegConfig struct {
	BinaryPath string `mapstructure:"binary_path"` // Path to ffmpeg binary (empty = auto-detect)
	ProbePath  string `mapstructure:"probe_path"`  // Path to ffprobe binary (empty = auto-detect)
}

// EncodingConfig holds encoding engine configuration.
type EncodingConfig struct {
	// Parallel enables bounded-parallel profile encoding.
	Parallel bool `mapstructure:"parallel"`
	// MaxParallelJobs caps concurrent ffmpeg encodes per pipeline run.
	MaxParallelJobs int `mapstructure:"max_parallel_jobs"`
	// CleanupOnError removes files already written when a pipeline run fails.
	CleanupOnError bool `mapstructure:"cleanup_on_error"`
	// GenerateHLS enables HLS packaging after encoding.
	GenerateHLS bool `mapstructure:"generate_hls"`
	// GenerateDASH enables DASH packaging after encoding.
	GenerateDASH bool `mapstructure:"generate_dash"`
	// DeleteSource removes the uploaded source file once a run completes.
	DeleteSource bool `mapstructure:"delete_source"`
}

// DispatcherConfig holds task dispatch and sweep configuration.
type DispatcherConfig struct {
	WorkerCount    int           `mapstructure:"worker_count"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	StuckThreshold time.Duration `mapstructure:"stuck_threshold"`
	SweepBatchSize int           `mapstructure:"sweep_batch_size"`
}

// MonitorConfig holds health monitoring and alerting configuration.
type MonitorConfig struct {
	CheckInterval   time.Duration `mapstructure:"check_interval"`
	MetricRetention time.Duration `mapstructure:"metric_retention"`
	NotifyTimeout   time.Duration `mapstructure:"notify_timeout"`
	SMTPHost        string        `mapstructure:"smtp_host"`
	SMTPPort        int           `mapstructure:"smtp_port"`
	SMTPFrom        string        `mapstructure:"smtp_from"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with VODARR_ and use underscores for nesting.
// Example: VODARR_SERVER_PORT=8080.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/vodarr")
		v.AddConfigPath("$HOME/.vodarr")
	}

	v.SetEnvPrefix("VODARR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

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
// This should be called before reading the config file so defaults are in place.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "vodarr.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	// Storage defaults
	v.SetDefault("storage.base_dir", "./data")
	v.SetDefault("storage.encoded_dir", "encoded")
	v.SetDefault("storage.poster_dir", "posters")
	v.SetDefault("storage.preview_dir", "previews")
	v.SetDefault("storage.stream_dir", "streams")
	v.SetDefault("storage.temp_dir", "temp")
	v.SetDefault("storage.min_free_bytes", defaultMinFreeBytes)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// FFmpeg defaults
	v.SetDefault("ffmpeg.binary_path", "")
	v.SetDefault("ffmpeg.probe_path", "")

	// Encoding defaults
	v.SetDefault("encoding.parallel", true)
	v.SetDefault("encoding.max_parallel_jobs", defaultParallelEncodes)
	v.SetDefault("encoding.cleanup_on_error", true)
	v.SetDefault("encoding.generate_hls", false)
	v.SetDefault("encoding.generate_dash", false)
	v.SetDefault("encoding.delete_source", true)

	// Dispatcher defaults
	v.SetDefault("dispatcher.worker_count", defaultWorkerCount)
	v.SetDefault("dispatcher.poll_interval", defaultPollInterval)
	v.SetDefault("dispatcher.sweep_interval", defaultSweepInterval)
	v.SetDefault("dispatcher.stuck_threshold", defaultStuckThreshold)
	v.SetDefault("dispatcher.sweep_batch_size", defaultSweepBatchSize)

	// Monitor defaults
	v.SetDefault("monitor.check_interval", defaultAlertInterval)
	v.SetDefault("monitor.metric_retention", defaultMetricRetention)
	v.SetDefault("monitor.notify_timeout", defaultNotifyTimeout)
	v.SetDefault("monitor.smtp_host", "")
	v.SetDefault("monitor.smtp_port", 25)
	v.SetDefault("monitor.smtp_from", "vodarr@localhost")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Encoding.MaxParallelJobs < 1 {
		return fmt.Errorf("encoding.max_parallel_jobs must be at least 1")
	}
	if c.Dispatcher.WorkerCount < 1 {
		return fmt.Errorf("dispatcher.worker_count must be at least 1")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// EncodedPath returns the full path to the encoded output directory.
func (c *StorageConfig) EncodedPath() string {
	return filepath.Join(c.BaseDir, c.EncodedDir)
}

// PosterPath returns the full path to the poster directory.
func (c *StorageConfig) PosterPath() string {
	return filepath.Join(c.BaseDir, c.PosterDir)
}

// PreviewPath returns the full path to the preview directory.
func (c *StorageConfig) PreviewPath() string {
	return filepath.Join(c.BaseDir, c.PreviewDir)
}

// StreamPath returns the full path to the streaming output directory.
func (c *StorageConfig) StreamPath() string {
	return filepath.Join(c.BaseDir, c.StreamDir)
}

// TempPath returns the full path to the temp directory.
func (c *StorageConfig) TempPath() string {
	return filepath.Join(c.BaseDir, c.TempDir)
}
