// Package config loads and validates streamcdp configuration from file,
// environment variables, and defaults.
package config

import (
	"errors"
	"time"
)

// Default values applied when a setting is absent from file and environment.
const (
	DefaultServerAddr            = ":8080"
	DefaultServerReadTimeout     = 10 * time.Second
	DefaultServerShutdownTimeout = 10 * time.Second

	DefaultProcessingWindow = 5 * time.Second
	DefaultGracePeriod      = 120 * time.Second
	DefaultTickInterval     = time.Second
	DefaultDedupTTL         = 10 * time.Minute
	DefaultDedupCapacity    = 4096
	DefaultSegmentBuffer    = 1000
	DefaultSnapshotLimit    = 20
	DefaultSweepInterval    = 5 * time.Minute
	DefaultBucketSize       = time.Minute
	DefaultRollingWindow    = 24 * time.Hour

	DefaultPowerUserThreshold = 5
	DefaultPowerUserWindow    = 24 * time.Hour
	DefaultReengageThreshold  = 10 * time.Minute
)

// Config is the top-level configuration struct for streamcdp.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Segments  SegmentsConfig  `mapstructure:"segments"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// PipelineConfig holds the event processing knobs.
type PipelineConfig struct {
	ProcessingWindow time.Duration `mapstructure:"processing_window"`
	GracePeriod      time.Duration `mapstructure:"grace_period"`
	TickInterval     time.Duration `mapstructure:"tick_interval"`
	DedupTTL         time.Duration `mapstructure:"dedup_ttl"`
	DedupCapacity    int           `mapstructure:"dedup_capacity"`
	SegmentBuffer    int           `mapstructure:"segment_buffer"`
	SnapshotLimit    int           `mapstructure:"snapshot_limit"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
	BucketSize       time.Duration `mapstructure:"bucket_size"`
	RollingWindow    time.Duration `mapstructure:"rolling_window"`
}

// SegmentsConfig holds the segment rule thresholds.
type SegmentsConfig struct {
	PowerUserThreshold int           `mapstructure:"power_user_threshold"`
	PowerUserWindow    time.Duration `mapstructure:"power_user_window"`
	ReengageThreshold  time.Duration `mapstructure:"reengage_threshold"`
}

// TelemetryConfig holds the observability export settings.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	DebugTrace   bool    `mapstructure:"debug_trace"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	LogLevel     string  `mapstructure:"log_level"`
	LogJSON      bool    `mapstructure:"log_json"`
	Environment  string  `mapstructure:"environment"`
}

// Sentinel errors for configuration validation.
var (
	// ErrInvalidProcessingWindow indicates the processing window is not positive.
	ErrInvalidProcessingWindow = errors.New("pipeline.processing_window must be positive")
	// ErrInvalidGracePeriod indicates the grace period is not positive.
	ErrInvalidGracePeriod = errors.New("pipeline.grace_period must be positive")
	// ErrWindowExceedsGrace indicates the processing window is larger than the grace period.
	ErrWindowExceedsGrace = errors.New("pipeline.processing_window must not exceed pipeline.grace_period")
	// ErrInvalidTickInterval indicates the tick interval is not positive.
	ErrInvalidTickInterval = errors.New("pipeline.tick_interval must be positive")
	// ErrInvalidDedupCapacity indicates the dedup capacity is not positive.
	ErrInvalidDedupCapacity = errors.New("pipeline.dedup_capacity must be positive")
	// ErrInvalidBucketSize indicates the counter bucket size is not positive.
	ErrInvalidBucketSize = errors.New("pipeline.bucket_size must be positive")
	// ErrInvalidRollingWindow indicates the rolling window is smaller than the bucket size.
	ErrInvalidRollingWindow = errors.New("pipeline.rolling_window must be at least pipeline.bucket_size")
	// ErrInvalidPowerUserThreshold indicates the power user threshold is not positive.
	ErrInvalidPowerUserThreshold = errors.New("segments.power_user_threshold must be positive")
	// ErrInvalidSampleRatio indicates the trace sample ratio is out of range.
	ErrInvalidSampleRatio = errors.New("telemetry.sample_ratio must be between 0 and 1")
	// ErrMissingServerAddr indicates the server listen address is empty.
	ErrMissingServerAddr = errors.New("server.addr must not be empty")
)

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return ErrMissingServerAddr
	}

	pipelineErr := c.validatePipeline()
	if pipelineErr != nil {
		return pipelineErr
	}

	if c.Segments.PowerUserThreshold <= 0 {
		return ErrInvalidPowerUserThreshold
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return ErrInvalidSampleRatio
	}

	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.ProcessingWindow <= 0 {
		return ErrInvalidProcessingWindow
	}

	if c.Pipeline.GracePeriod <= 0 {
		return ErrInvalidGracePeriod
	}

	if c.Pipeline.ProcessingWindow > c.Pipeline.GracePeriod {
		return ErrWindowExceedsGrace
	}

	if c.Pipeline.TickInterval <= 0 {
		return ErrInvalidTickInterval
	}

	if c.Pipeline.DedupCapacity <= 0 {
		return ErrInvalidDedupCapacity
	}

	if c.Pipeline.BucketSize <= 0 {
		return ErrInvalidBucketSize
	}

	if c.Pipeline.RollingWindow < c.Pipeline.BucketSize {
		return ErrInvalidRollingWindow
	}

	return nil
}
