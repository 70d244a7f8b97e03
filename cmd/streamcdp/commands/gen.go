package commands

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/streamcdp/internal/clock"
	"github.com/Sumatoshi-tech/streamcdp/internal/event"
	"github.com/Sumatoshi-tech/streamcdp/internal/generator"
)

// GenCommand holds configuration for the gen command.
type GenCommand struct {
	target     string
	users      int
	rate       int
	duration   time.Duration
	seed       int64
	duplicates float64
	aliases    float64
}

// NewGenCommand creates the synthetic traffic generator command.
func NewGenCommand() *cobra.Command {
	gc := &GenCommand{}

	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate synthetic traffic against a running server",
		Long: `Gen produces a stream of identify/track/alias events with realistic
messiness (duplicates, out-of-order timestamps, anonymous-to-known alias
chains) and posts them to a running ingest endpoint.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return gc.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&gc.target, "target", "http://localhost:8080/v1/events", "ingest endpoint URL")
	cmd.Flags().IntVar(&gc.users, "users", generator.DefaultUsers, "simulated user population")
	cmd.Flags().IntVar(&gc.rate, "rate", generator.DefaultRate, "events per second")
	cmd.Flags().DurationVar(&gc.duration, "duration", 0, "how long to run (0 = until interrupted)")
	cmd.Flags().Int64Var(&gc.seed, "seed", 0, "random seed (0 = time-based)")
	cmd.Flags().Float64Var(&gc.duplicates, "duplicates", generator.DefaultDuplicateRatio, "duplicate delivery ratio")
	cmd.Flags().Float64Var(&gc.aliases, "aliases", generator.DefaultAliasRatio, "alias event ratio")

	return cmd
}

func (gc *GenCommand) run(parent context.Context, out io.Writer) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if gc.duration > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, gc.duration)
		defer cancel()
	}

	gen := generator.New(generator.Config{
		Users:          gc.users,
		Rate:           gc.rate,
		DuplicateRatio: gc.duplicates,
		AliasRatio:     gc.aliases,
		Seed:           gc.seed,
	}, clock.System())

	sink := generator.NewHTTPSink(gc.target, nil)

	err := gen.Run(ctx, sink)
	if err != nil {
		return fmt.Errorf("generator: %w", err)
	}

	renderGenSummary(out, gen.Sent())

	return nil
}

// renderGenSummary prints the per-kind delivery counts after a run ends.
func renderGenSummary(out io.Writer, sent map[event.Kind]int64) {
	kinds := make([]event.Kind, 0, len(sent))
	for kind := range sent {
		kinds = append(kinds, kind)
	}

	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	var total int64

	tbl := table.NewWriter()
	tbl.SetOutputMirror(out)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Kind", "Sent"})

	for _, kind := range kinds {
		tbl.AppendRow(table.Row{string(kind), sent[kind]})
		total += sent[kind]
	}

	tbl.AppendFooter(table.Row{"total", total})
	tbl.Render()
}
