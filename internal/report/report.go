// Package report renders an HTML activity report from profile snapshots:
// top profiles by feature usage plus the plan distribution.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/streamcdp/internal/pipeline"
)

const (
	topProfilesLimit = 20
	xAxisRotate      = 60
	chartWidth       = "100%"
	chartHeight      = "500px"

	planUnknown = "unknown"
)

// Generate renders the full report page for the given snapshots.
func Generate(snaps []pipeline.Snapshot, w io.Writer) error {
	page := components.NewPage()
	page.SetPageTitle("streamcdp activity report")
	page.SetLayout(components.PageCenterLayout)

	page.AddCharts(
		buildUsageChart(snaps),
		buildPlanChart(snaps),
	)

	err := page.Render(w)
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	return nil
}

// buildUsageChart ranks profiles by feature usage within the rolling window.
func buildUsageChart(snaps []pipeline.Snapshot) *charts.Bar {
	ranked := make([]pipeline.Snapshot, len(snaps))
	copy(ranked, snaps)

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].FeatureUsedCount != ranked[j].FeatureUsedCount {
			return ranked[i].FeatureUsedCount > ranked[j].FeatureUsedCount
		}

		return ranked[i].ProfileID < ranked[j].ProfileID
	})

	if len(ranked) > topProfilesLimit {
		ranked = ranked[:topProfilesLimit]
	}

	labels := make([]string, len(ranked))
	data := make([]opts.BarData, len(ranked))

	for i, snap := range ranked {
		labels[i] = snap.ProfileID
		data[i] = opts.BarData{Value: snap.FeatureUsedCount}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Top Profiles by Feature Usage",
			Subtitle: "Feature Used events within the rolling window.",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			AxisLabel: &opts.AxisLabel{Rotate: xAxisRotate, Interval: "0"},
		}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Events"}),
	)
	bar.SetXAxis(labels)
	bar.AddSeries("Feature Used", data)

	return bar
}

// buildPlanChart shows the plan trait distribution across profiles.
func buildPlanChart(snaps []pipeline.Snapshot) *charts.Pie {
	counts := make(map[string]int)

	for _, snap := range snaps {
		plan := planUnknown
		if snap.Plan != nil {
			plan = *snap.Plan
		}

		counts[plan]++
	}

	plans := make([]string, 0, len(counts))
	for plan := range counts {
		plans = append(plans, plan)
	}

	sort.Strings(plans)

	data := make([]opts.PieData, len(plans))
	for i, plan := range plans {
		data[i] = opts.PieData{Name: plan, Value: counts[plan]}
	}

	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Plan Distribution",
			Subtitle: "Current plan trait across stored profiles.",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "item"}),
	)
	pie.AddSeries("Plans", data)

	return pie
}
