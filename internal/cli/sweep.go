package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"viewly/internal/app"
)

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire stale requests and finalize lapsed no-show claims once",
		Long:  "Runs a single sweep: pending requests older than VIEWING_PENDING_TTL are expired and no-show claims past their dispute deadline are paid out.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Sweeper.SweepOnce(cmd.Context())
			if err != nil {
				return fmt.Errorf("sweep: %w", err)
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), report)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Expired:   %d\nFinalized: %d\nSkipped:   %d\nFailed:    %d\n",
				report.Expired, report.Finalized, report.Skipped, report.Failed)
			return nil
		},
	}
}
