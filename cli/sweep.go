package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/billbatista/budgetwise/clock"
)

type SweepOptions struct {
	*RootOptions
	AsOf string
}

func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SweepOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Materialize due recurring transactions once and exit",
		Long: `Run a single sweep: every active recurring transaction due on or before the
given date gets one ledger entry and its schedule advanced.

Example:
  budgetwise sweep
  budgetwise sweep --as-of 2025-03-10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			asOf, err := parseAsOf(opts.AsOf)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --as-of", err)
			}

			cfg, err := loadConfig(opts.RootOptions)
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.close()

			if asOf.IsZero() {
				asOf = clock.Today(a.clock)
			}
			n, err := a.processor.RunSweep(cmd.Context(), asOf)
			if err != nil {
				return WrapExitError(ExitFailure, "sweep", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "processed %d recurring transaction(s) as of %s\n", n, asOf.Format(time.DateOnly))
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.AsOf, "as-of", "", "sweep as of this date (YYYY-MM-DD, default today)")

	return cmd
}

// parseAsOf returns the zero time for an empty value.
func parseAsOf(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, s)
}
