package main

import (
	"fmt"

	"github.com/SergeiKhy/scanme-analytics/internal/repository"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the qr_codes, scans and users tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.close()

			if err := repository.Migrate(cmd.Context(), e.db); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Database migrations executed successfully.")
			return nil
		},
	}
}
