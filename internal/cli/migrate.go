package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"viewly/internal/repositories"
	"viewly/internal/repositories/cache"
)

func newMigrateCmd() *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Long:  "Creates the viewing request, transaction and payout tables and the one-active-request index. With --reset the tables are dropped first and the viewing cache is flushed.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := repositories.InitDB(cfg.Database)
			if err != nil {
				return err
			}
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			defer sqlDB.Close()

			if reset {
				err = repositories.ResetDatabase(db)
			} else {
				err = repositories.AutoMigrate(db)
			}
			if err != nil {
				return err
			}
			if reset && cfg.Redis.Enabled {
				// cached viewings would outlive the dropped rows
				svc := cache.NewCacheService(cache.NewRedisClient(cfg.Redis), time.Minute)
				defer svc.Close()
				if err := svc.FlushAll(cmd.Context()); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: cache not flushed: %v\n", err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema up to date (%s)\n", cfg.Database.Driver)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "drop all escrow tables before migrating")
	return cmd
}
