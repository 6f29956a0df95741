package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"viewly/internal/models"
	"viewly/internal/repositories"
	"viewly/internal/services/viewing"
)

func newPropertyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "property",
		Short: "Manage property ownership and viewing fees",
	}
	cmd.AddCommand(newPropertySetCmd(), newPropertyGetCmd())
	return cmd
}

// withCatalog opens the configured database for the duration of fn.
func withCatalog(fn func(*viewing.PropertyCatalog) error) error {
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

	return fn(viewing.NewPropertyCatalog(repositories.NewPropertyRepository(db), cfg.Viewing.Fee, cfg.Viewing.Currency))
}

func newPropertySetCmd() *cobra.Command {
	var (
		landlord string
		fee      int64
		currency string
	)
	cmd := &cobra.Command{
		Use:   "set <property-id>",
		Short: "Record the owner of a property",
		Long:  "Creates or updates a property. Requests already open keep the landlord they were created with.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := &models.Property{ID: args[0], LandlordID: landlord, ViewingFee: fee, Currency: currency}
			return withCatalog(func(catalog *viewing.PropertyCatalog) error {
				if err := catalog.Register(cmd.Context(), p); err != nil {
					return err
				}
				if isJSON() {
					return printJSON(cmd.OutOrStdout(), p)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Property %s owned by %s\n", p.ID, p.LandlordID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&landlord, "landlord", "", "landlord user id (required)")
	cmd.Flags().Int64Var(&fee, "fee", 0, "viewing fee in minor units (0 uses VIEWING_FEE)")
	cmd.Flags().StringVar(&currency, "currency", "", "ISO currency code (empty uses VIEWING_CURRENCY)")
	_ = cmd.MarkFlagRequired("landlord")
	return cmd
}

func newPropertyGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <property-id>",
		Short: "Show the owner and effective viewing fee of a property",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(func(catalog *viewing.PropertyCatalog) error {
				l, err := catalog.Lookup(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if isJSON() {
					return printJSON(cmd.OutOrStdout(), map[string]interface{}{
						"property_id": args[0],
						"landlord_id": l.LandlordID,
						"amount":      l.Amount,
						"currency":    l.Currency,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tlandlord=%s\tfee=%d %s\n", args[0], l.LandlordID, l.Amount, l.Currency)
				return nil
			})
		},
	}
}
