package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/SergeiKhy/scanme-analytics/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintBuckets(t *testing.T) {
	query := models.AggregateQuery{
		DateRange: models.DateRange{
			StartDate: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2024, time.March, 31, 23, 59, 59, 999_000_000, time.UTC),
		},
		Interval: models.IntervalDay,
		Timezone: "UTC",
	}
	buckets := []models.Bucket{
		{DateKey: "2024-03-10", Label: "2024-03-10", Count: 2},
		{DateKey: "2024-03-12", Label: "2024-03-12", Count: 5},
	}

	var buf bytes.Buffer
	require.NoError(t, printBuckets(&buf, "qr-1", query, buckets))

	out := buf.String()
	assert.Contains(t, out, "Scans for qr-1 (day, UTC)")
	assert.Contains(t, out, "Range: 2024-03-01 00:00:00 UTC .. 2024-03-31 23:59:59 UTC")
	assert.Regexp(t, `2024-03-12\s+2024-03-12\s+5`, out)
	assert.Regexp(t, `Total\s+7`, out)
}

func TestPrintBreakdown(t *testing.T) {
	entries := []models.BreakdownEntry{
		{Dimension: models.DimensionOS, Category: "iOS 17", Count: 3},
		{Dimension: models.DimensionOS, Category: "Android 14", Count: 1},
	}

	var buf bytes.Buffer
	require.NoError(t, printBreakdown(&buf, models.DimensionOS, entries))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Regexp(t, `^OS\s+SCANS\s+SHARE`, lines[0])
	assert.Regexp(t, `^iOS 17\s+3\s+75\.0%`, lines[1])
	assert.Regexp(t, `^Android 14\s+1\s+25\.0%`, lines[2])
}

func TestBreakdownRejectsUnknownDimension(t *testing.T) {
	cmd := newBreakdownCmd()
	cmd.SetArgs([]string{"qr-1", "--by", "country"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "country")
}
