package commands

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/streamcdp/internal/pipeline"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestRenderTop_Table(t *testing.T) {
	color.NoColor = true

	plan := "pro"
	snaps := []pipeline.Snapshot{
		{
			ProfileID:        "user:u1",
			Plan:             &plan,
			LastSeen:         testNow.Add(-2 * time.Minute),
			FeatureUsedCount: 7,
		},
		{
			ProfileID:        "anon:a1",
			LastSeen:         testNow.Add(-time.Hour),
			FeatureUsedCount: 0,
		},
	}

	stats := topStats{Profiles: 2, Processed: 10, DedupHits: 1}

	var buf bytes.Buffer

	renderTop(&buf, snaps, stats, testNow)

	out := buf.String()
	assert.Contains(t, out, "profiles: 2")
	assert.Contains(t, out, "processed: 10")
	assert.Contains(t, out, "user:u1")
	assert.Contains(t, out, "pro")
	assert.Contains(t, out, "2 minutes ago")
	assert.Contains(t, out, "anon:a1")

	// Missing traits render as a dash.
	assert.Contains(t, out, "-")
}

func TestRenderTop_Empty(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer

	renderTop(&buf, nil, topStats{}, testNow)

	assert.Contains(t, buf.String(), "profiles: 0")
}
