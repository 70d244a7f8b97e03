package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".streamcdp"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for streamcdp settings.
const envPrefix = "STREAMCDP"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("server.addr", DefaultServerAddr)
	viperCfg.SetDefault("server.read_timeout", DefaultServerReadTimeout)
	viperCfg.SetDefault("server.shutdown_timeout", DefaultServerShutdownTimeout)

	viperCfg.SetDefault("pipeline.processing_window", DefaultProcessingWindow)
	viperCfg.SetDefault("pipeline.grace_period", DefaultGracePeriod)
	viperCfg.SetDefault("pipeline.tick_interval", DefaultTickInterval)
	viperCfg.SetDefault("pipeline.dedup_ttl", DefaultDedupTTL)
	viperCfg.SetDefault("pipeline.dedup_capacity", DefaultDedupCapacity)
	viperCfg.SetDefault("pipeline.segment_buffer", DefaultSegmentBuffer)
	viperCfg.SetDefault("pipeline.snapshot_limit", DefaultSnapshotLimit)
	viperCfg.SetDefault("pipeline.sweep_interval", DefaultSweepInterval)
	viperCfg.SetDefault("pipeline.bucket_size", DefaultBucketSize)
	viperCfg.SetDefault("pipeline.rolling_window", DefaultRollingWindow)

	viperCfg.SetDefault("segments.power_user_threshold", DefaultPowerUserThreshold)
	viperCfg.SetDefault("segments.power_user_window", DefaultPowerUserWindow)
	viperCfg.SetDefault("segments.reengage_threshold", DefaultReengageThreshold)

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.debug_trace", false)
	viperCfg.SetDefault("telemetry.sample_ratio", 0.0)
	viperCfg.SetDefault("telemetry.log_level", "info")
	viperCfg.SetDefault("telemetry.log_json", false)
}

// SlogLevel maps a config log level string to an [slog.Level].
// Unknown values fall back to info.
func SlogLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
