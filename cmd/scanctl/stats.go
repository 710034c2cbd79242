package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/SergeiKhy/scanme-analytics/internal/calendar"
	"github.com/SergeiKhy/scanme-analytics/internal/models"
	"github.com/SergeiKhy/scanme-analytics/internal/repository"
	"github.com/SergeiKhy/scanme-analytics/internal/service"
	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var raw models.RawScanQuery

	cmd := &cobra.Command{
		Use:   "stats <qr-code-id>",
		Short: "Print scan counts bucketed by day, week or month",
		Long: `Print scan counts of a QR code in the given range. Dates accept the same
forms as the API: 7d, 2w, 1m, today or a calendar date such as 2024-03-01.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.close()

			if raw.Timezone == "" {
				raw.Timezone = e.cfg.App.DefaultTimezone
			}

			analytics := service.NewAnalyticsService(repository.NewScanRepository(e.db), calendar.New(), e.logger)
			query, err := analytics.ResolveQuery(raw)
			if err != nil {
				return err
			}

			buckets, err := analytics.Aggregate(cmd.Context(), args[0], query)
			if err != nil {
				return err
			}

			return printBuckets(cmd.OutOrStdout(), args[0], query, buckets)
		},
	}

	cmd.Flags().StringVar(&raw.StartDate, "start", service.DefaultStartDate, "range start")
	cmd.Flags().StringVar(&raw.EndDate, "end", service.DefaultEndDate, "range end")
	cmd.Flags().StringVar(&raw.Interval, "interval", string(models.IntervalDay), "day, week or month")
	cmd.Flags().StringVar(&raw.Timezone, "timezone", "", "IANA timezone (defaults to APP_DEFAULT_TIMEZONE)")

	return cmd
}

func printBuckets(w io.Writer, qrCodeID string, query models.AggregateQuery, buckets []models.Bucket) error {
	fmt.Fprintf(w, "Scans for %s (%s, %s)\n", qrCodeID, query.Interval, query.Timezone)
	fmt.Fprintf(w, "Range: %s .. %s\n\n",
		query.StartDate.Format("2006-01-02 15:04:05 MST"),
		query.EndDate.Format("2006-01-02 15:04:05 MST"),
	)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tPERIOD\tSCANS")

	var total int64
	for _, b := range buckets {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", b.DateKey, b.Label, b.Count)
		total += b.Count
	}
	fmt.Fprintf(tw, "\tTotal\t%d\n", total)

	return tw.Flush()
}
