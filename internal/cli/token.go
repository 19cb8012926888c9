package cli

import (
	"fmt"

	"echo-trivia/internal/auth"
	"echo-trivia/internal/config"
	"github.com/spf13/cobra"
)

// NewTokenCmd prints a signed bearer token, handy for local play and smoke tests.
func NewTokenCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a bearer token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwt_secret not configured")
			}
			svc := auth.NewService(cfg.Auth.JWTSecret, config.TTLDuration(cfg.Auth.TokenTTL, 0))
			tok, err := svc.IssueToken(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
}
