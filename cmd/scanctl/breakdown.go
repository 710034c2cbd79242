package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/SergeiKhy/scanme-analytics/internal/calendar"
	"github.com/SergeiKhy/scanme-analytics/internal/models"
	"github.com/SergeiKhy/scanme-analytics/internal/repository"
	"github.com/SergeiKhy/scanme-analytics/internal/service"
	"github.com/spf13/cobra"
)

func newBreakdownCmd() *cobra.Command {
	var by string

	cmd := &cobra.Command{
		Use:   "breakdown <qr-code-id>",
		Short: "Print scan counts per device, browser or OS",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dimension := models.Dimension(strings.ToLower(by))
			if !dimension.Valid() {
				return fmt.Errorf("%w: %q", service.ErrInvalidDimension, by)
			}

			e, err := setup()
			if err != nil {
				return err
			}
			defer e.close()

			analytics := service.NewAnalyticsService(repository.NewScanRepository(e.db), calendar.New(), e.logger)
			entries, err := analytics.BreakdownBy(cmd.Context(), args[0], dimension)
			if err != nil {
				return err
			}

			return printBreakdown(cmd.OutOrStdout(), dimension, entries)
		},
	}

	cmd.Flags().StringVar(&by, "by", string(models.DimensionDevice), "device, browser or os")

	return cmd
}

func printBreakdown(w io.Writer, dimension models.Dimension, entries []models.BreakdownEntry) error {
	var total int64
	for _, e := range entries {
		total += e.Count
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\tSCANS\tSHARE\n", strings.ToUpper(string(dimension)))
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%d\t%.1f%%\n", e.Category, e.Count, float64(e.Count)*100/float64(total))
	}

	return tw.Flush()
}
