package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/streamcdp/internal/pipeline"
	"github.com/Sumatoshi-tech/streamcdp/internal/report"
)

// ReportCommand holds configuration for the report command.
type ReportCommand struct {
	server  string
	out     string
	timeout time.Duration
}

// NewReportCommand creates the report command.
func NewReportCommand() *cobra.Command {
	rc := &ReportCommand{}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render an HTML activity report",
		Long: `Report fetches the current profile snapshots from a running server and
renders an HTML page with usage and plan distribution charts.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rc.run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&rc.server, "server", "http://localhost:8080", "streamcdp server base URL")
	cmd.Flags().StringVarP(&rc.out, "out", "o", "streamcdp-report.html", "output HTML file")
	cmd.Flags().DurationVar(&rc.timeout, "timeout", 5*time.Second, "request timeout")

	return cmd
}

func (rc *ReportCommand) run(ctx context.Context) error {
	client := &http.Client{Timeout: rc.timeout}

	var snaps []pipeline.Snapshot

	err := fetchJSON(ctx, client, rc.server+"/v1/profiles", &snaps)
	if err != nil {
		return err
	}

	if len(snaps) == 0 {
		warnf("no profiles yet; the report will be empty\n")
	}

	f, err := os.Create(rc.out)
	if err != nil {
		return fmt.Errorf("create %s: %w", rc.out, err)
	}

	defer func() { _ = f.Close() }()

	err = report.Generate(snaps, f)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "wrote %s (%d profiles)\n", rc.out, len(snaps))

	return nil
}
