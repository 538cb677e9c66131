package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atoz-auto/autoshop-api/config"
	"github.com/atoz-auto/autoshop-api/identity"
	"github.com/spf13/cobra"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for a customer or staff account",
		Long: "Mint a bearer token signed with JWT_SECRET. The token is printed on stdout " +
			"and its expiry on stderr, so the output can be captured directly.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetUint("id")
			role, _ := cmd.Flags().GetString("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			if id == 0 {
				return errors.New("--id is required")
			}

			jwtCfg, err := config.LoadJWT()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = jwtCfg.TTL
			}

			issuer := identity.NewIssuer(identity.IssuerConfig{
				Secret:   jwtCfg.Secret,
				Issuer:   jwtCfg.Issuer,
				Audience: jwtCfg.Audience,
				TTL:      ttl,
			})

			var (
				token     string
				expiresAt time.Time
			)
			if strings.EqualFold(role, "customer") {
				token, expiresAt, err = issuer.Mint(identity.Customer(id))
			} else {
				token, expiresAt, err = issuer.MintRole(id, role)
			}
			if err != nil {
				return fmt.Errorf("minting token: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().Uint("id", 0, "Customer or employee id")
	cmd.Flags().StringP("role", "r", "customer", "customer, Admin, Manager or Employee; empty means Admin")
	cmd.Flags().Duration("ttl", 0, "Token lifetime (defaults to JWT_TTL)")

	return cmd
}
