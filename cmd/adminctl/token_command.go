package main

import (
	"fmt"

	"character-studio/backend/pkg/jwt"
	"character-studio/backend/pkg/secrets"

	"github.com/spf13/cobra"
)

// newTokenCommand mints a token signed with the server secret, for local
// testing against a dev server
func newTokenCommand(ctx *commandContext) *cobra.Command {
	var subject, email, role string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.config()
			if err := secrets.Init(ctx.logger()); err != nil {
				ctx.logger().Warn("Secrets manager unavailable, reading secrets from the environment", "error", err.Error())
			}
			secret := secrets.JWTSecret(cmd.Context(), cfg.JWT.Secret)
			if secret == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}
			token, err := jwt.NewService(secret, cfg.JWT.Expiry).GenerateToken(subject, email, jwt.Role(role))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "adminctl", "Token subject")
	cmd.Flags().StringVar(&email, "email", "", "Email claim")
	cmd.Flags().StringVar(&role, "role", string(jwt.RoleAdmin), "Role claim")
	return cmd
}
