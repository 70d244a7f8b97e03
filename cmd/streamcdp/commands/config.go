package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/streamcdp/internal/config"
)

// ConfigCommand holds configuration for the config command.
type ConfigCommand struct {
	configPath string
}

// NewConfigCommand creates the config command, which prints the effective
// configuration after defaults, file, and environment are merged.
func NewConfigCommand() *cobra.Command {
	cc := &ConfigCommand{}

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cc.run(cmd)
		},
	}

	cmd.Flags().StringVarP(&cc.configPath, "config", "c", "", "config file path")

	return cmd
}

func (cc *ConfigCommand) run(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(cc.configPath)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(configView(cfg))
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	fmt.Fprint(cmd.OutOrStdout(), string(out))

	return nil
}

// configView flattens the config into YAML-friendly keys with durations
// rendered as strings.
func configView(cfg *config.Config) map[string]any {
	return map[string]any{
		"server": map[string]any{
			"addr":             cfg.Server.Addr,
			"read_timeout":     cfg.Server.ReadTimeout.String(),
			"shutdown_timeout": cfg.Server.ShutdownTimeout.String(),
		},
		"pipeline": map[string]any{
			"processing_window": cfg.Pipeline.ProcessingWindow.String(),
			"grace_period":      cfg.Pipeline.GracePeriod.String(),
			"tick_interval":     cfg.Pipeline.TickInterval.String(),
			"dedup_ttl":         cfg.Pipeline.DedupTTL.String(),
			"dedup_capacity":    cfg.Pipeline.DedupCapacity,
			"segment_buffer":    cfg.Pipeline.SegmentBuffer,
			"snapshot_limit":    cfg.Pipeline.SnapshotLimit,
			"sweep_interval":    cfg.Pipeline.SweepInterval.String(),
			"bucket_size":       cfg.Pipeline.BucketSize.String(),
			"rolling_window":    cfg.Pipeline.RollingWindow.String(),
		},
		"segments": map[string]any{
			"power_user_threshold": cfg.Segments.PowerUserThreshold,
			"power_user_window":    cfg.Segments.PowerUserWindow.String(),
			"reengage_threshold":   cfg.Segments.ReengageThreshold.String(),
		},
		"telemetry": map[string]any{
			"otlp_endpoint": cfg.Telemetry.OTLPEndpoint,
			"otlp_insecure": cfg.Telemetry.OTLPInsecure,
			"debug_trace":   cfg.Telemetry.DebugTrace,
			"sample_ratio":  cfg.Telemetry.SampleRatio,
			"log_level":     cfg.Telemetry.LogLevel,
			"log_json":      cfg.Telemetry.LogJSON,
			"environment":   cfg.Telemetry.Environment,
		},
	}
}
