package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"viewly/internal/models"
	"viewly/internal/utils"
)

func newTokenCmd() *cobra.Command {
	var (
		userID string
		email  string
		role   string
		ttl    time.Duration
		secret string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed access token for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !models.IsKnownRole(role) {
				return fmt.Errorf("role must be one of %s, %s, %s", models.RoleTenant, models.RoleLandlord, models.RoleAdmin)
			}
			if secret == "" {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				secret = cfg.JWTSecret
			}
			token, err := utils.GenerateToken(secret, userID, email, role, ttl)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), map[string]string{"token": token, "user_id": userID, "role": role})
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id to embed (required)")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().StringVar(&role, "role", models.RoleTenant, "tenant, landlord or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (default: JWT_SECRET)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
