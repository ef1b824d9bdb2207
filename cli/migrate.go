package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/billbatista/budgetwise/database"
)

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}

			db, err := database.Open(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return WrapExitError(ExitFailure, "database connection", err)
			}
			defer db.Close()

			if err := database.Migrate(cmd.Context(), db); err != nil {
				return WrapExitError(ExitFailure, "running migrations", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}
