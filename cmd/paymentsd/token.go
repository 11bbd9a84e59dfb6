package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/buildhub-payments/constants"
	"github.com/joseph-ayodele/buildhub-payments/internal/entity"
	"github.com/joseph-ayodele/buildhub-payments/internal/server"
)

var tokenOpts struct {
	actor int64
	role  string
	ttl   time.Duration
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Sign a bearer token for local testing",
	Long: `Sign a bearer token with the configured JWT secret.

Intended for development; production tokens come from the identity service.`,
	Example: `  paymentsd token --actor 29 --role contractor`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		role, err := constants.ParseRole(tokenOpts.role)
		if err != nil {
			return err
		}
		if tokenOpts.actor <= 0 {
			return fmt.Errorf("--actor must be a positive id")
		}
		cfg, _, err := loadConfig(false)
		if err != nil {
			return err
		}
		if cfg.Auth.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is not set")
		}

		tok, expiresAt, err := server.GenerateToken(entity.Actor{ID: tokenOpts.actor, Role: role}, cfg.Auth, tokenOpts.ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.Format(time.RFC3339))
		return nil
	},
}

func init() {
	tokenCmd.Flags().Int64Var(&tokenOpts.actor, "actor", 0, "Actor id (token subject)")
	tokenCmd.Flags().StringVar(&tokenOpts.role, "role", "", "homeowner, contractor or admin")
	tokenCmd.Flags().DurationVar(&tokenOpts.ttl, "ttl", 24*time.Hour, "Token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
