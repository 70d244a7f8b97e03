package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/streamcdp/internal/config"
)

func validConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     config.DefaultServerReadTimeout,
			ShutdownTimeout: config.DefaultServerShutdownTimeout,
		},
		Pipeline: config.PipelineConfig{
			ProcessingWindow: config.DefaultProcessingWindow,
			GracePeriod:      config.DefaultGracePeriod,
			TickInterval:     config.DefaultTickInterval,
			DedupTTL:         config.DefaultDedupTTL,
			DedupCapacity:    config.DefaultDedupCapacity,
			BucketSize:       config.DefaultBucketSize,
			RollingWindow:    config.DefaultRollingWindow,
		},
		Segments: config.SegmentsConfig{
			PowerUserThreshold: config.DefaultPowerUserThreshold,
			PowerUserWindow:    config.DefaultPowerUserWindow,
			ReengageThreshold:  config.DefaultReengageThreshold,
		},
	}
}

func TestValidate_ValidConfig_NoError(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidate_MissingAddr_ReturnsError(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Server.Addr = ""

	assert.ErrorIs(t, cfg.Validate(), config.ErrMissingServerAddr)
}

func TestValidate_WindowExceedsGrace_ReturnsError(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Pipeline.ProcessingWindow = 3 * time.Minute

	assert.ErrorIs(t, cfg.Validate(), config.ErrWindowExceedsGrace)
}

func TestValidate_NonPositiveProcessingWindow_ReturnsError(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Pipeline.ProcessingWindow = 0

	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidProcessingWindow)
}

func TestValidate_NonPositiveGracePeriod_ReturnsError(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Pipeline.GracePeriod = -time.Second

	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidGracePeriod)
}

func TestValidate_RollingWindowSmallerThanBucket_ReturnsError(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Pipeline.RollingWindow = 30 * time.Second

	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidRollingWindow)
}

func TestValidate_NonPositivePowerUserThreshold_ReturnsError(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Segments.PowerUserThreshold = 0

	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidPowerUserThreshold)
}

func TestValidate_SampleRatioOutOfRange_ReturnsError(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Telemetry.SampleRatio = 1.5

	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidSampleRatio)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultServerAddr, cfg.Server.Addr)
	assert.Equal(t, config.DefaultProcessingWindow, cfg.Pipeline.ProcessingWindow)
	assert.Equal(t, config.DefaultGracePeriod, cfg.Pipeline.GracePeriod)
	assert.Equal(t, config.DefaultPowerUserThreshold, cfg.Segments.PowerUserThreshold)
}

func TestLoadConfig_FromFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "streamcdp.yaml")

	content := []byte(`
server:
  addr: ":9090"
pipeline:
  processing_window: 2s
  grace_period: 60s
segments:
  power_user_threshold: 3
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 2*time.Second, cfg.Pipeline.ProcessingWindow)
	assert.Equal(t, 60*time.Second, cfg.Pipeline.GracePeriod)
	assert.Equal(t, 3, cfg.Segments.PowerUserThreshold)

	// Unset keys keep defaults.
	assert.Equal(t, config.DefaultDedupCapacity, cfg.Pipeline.DedupCapacity)
}

func TestLoadConfig_InvalidFileValues(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "streamcdp.yaml")

	content := []byte(`
pipeline:
  processing_window: 5m
  grace_period: 30s
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	_, err := config.LoadConfig(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrWindowExceedsGrace)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("STREAMCDP_SERVER_ADDR", ":7070")

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
}

func TestSlogLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.LevelDebug, config.SlogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, config.SlogLevel("WARN"))
	assert.Equal(t, slog.LevelError, config.SlogLevel("error"))
	assert.Equal(t, slog.LevelInfo, config.SlogLevel("info"))
	assert.Equal(t, slog.LevelInfo, config.SlogLevel("bogus"))
}
