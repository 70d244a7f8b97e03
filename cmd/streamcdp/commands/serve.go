// Package commands implements CLI command handlers for streamcdp.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/streamcdp/internal/clock"
	"github.com/Sumatoshi-tech/streamcdp/internal/config"
	"github.com/Sumatoshi-tech/streamcdp/internal/observability"
	"github.com/Sumatoshi-tech/streamcdp/internal/pipeline"
	"github.com/Sumatoshi-tech/streamcdp/internal/processor"
	"github.com/Sumatoshi-tech/streamcdp/internal/segment"
	"github.com/Sumatoshi-tech/streamcdp/internal/server"
	"github.com/Sumatoshi-tech/streamcdp/pkg/version"
)

// ServeCommand holds configuration for the serve command.
type ServeCommand struct {
	configPath string
	addr       string
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	sc := &ServeCommand{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ingest server",
		Long: `Serve starts the HTTP ingest endpoint, the profile read API, the SSE
streams, and the operational endpoints, processing events through the
reordering pipeline until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return sc.run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&sc.configPath, "config", "c", "", "config file path")
	cmd.Flags().StringVar(&sc.addr, "addr", "", "listen address (overrides config)")

	return cmd
}

func (sc *ServeCommand) run(parent context.Context) error {
	cfg, err := config.LoadConfig(sc.configPath)
	if err != nil {
		return err
	}

	if sc.addr != "" {
		cfg.Server.Addr = sc.addr
	}

	providers, err := observability.Init(observability.Config{
		ServiceName:    "streamcdp",
		ServiceVersion: version.Version,
		Environment:    cfg.Telemetry.Environment,
		Mode:           observability.ModeServe,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPHeaders:    observability.ParseOTLPHeaders(cfg.Telemetry.OTLPHeaders),
		OTLPInsecure:   cfg.Telemetry.OTLPInsecure,
		DebugTrace:     cfg.Telemetry.DebugTrace,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		LogLevel:       config.SlogLevel(cfg.Telemetry.LogLevel),
		LogJSON:        cfg.Telemetry.LogJSON,
	})
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	defer func() {
		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil {
			providers.Logger.Error("telemetry shutdown", "error", shutdownErr)
		}
	}()

	slog.SetDefault(providers.Logger)

	pipe, err := pipeline.New(pipelineConfig(cfg), clock.System(), providers.Logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	srv, err := server.New(server.Config{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, pipe, providers.Logger, providers.Tracer)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}

// pipelineConfig maps the loaded file/env config onto the pipeline's knobs.
func pipelineConfig(cfg *config.Config) pipeline.Config {
	return pipeline.Config{
		Processor: processor.Config{
			ProcessingWindow: cfg.Pipeline.ProcessingWindow,
			GracePeriod:      cfg.Pipeline.GracePeriod,
			TickerInterval:   cfg.Pipeline.TickInterval,
			DedupTTL:         cfg.Pipeline.DedupTTL,
			DedupCapacity:    cfg.Pipeline.DedupCapacity,
		},
		Segments: segment.Config{
			PowerUserThreshold: cfg.Segments.PowerUserThreshold,
			PowerUserWindow:    cfg.Segments.PowerUserWindow,
			ReengageThreshold:  cfg.Segments.ReengageThreshold,
		},
		BucketSize:    cfg.Pipeline.BucketSize,
		RollingWindow: cfg.Pipeline.RollingWindow,
		SegmentBuffer: cfg.Pipeline.SegmentBuffer,
		SnapshotLimit: cfg.Pipeline.SnapshotLimit,
		SweepInterval: cfg.Pipeline.SweepInterval,
	}
}
