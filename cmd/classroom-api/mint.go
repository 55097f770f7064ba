package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/upb/classroom/utils"
)

func newMintCmd(opts *rootOptions) *cobra.Command {
	var (
		email string
		ttl   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Issue a session token for an existing account",
		Long: `mint resolves the account for --email and prints a signed session token.
--ttl overrides the default lifetime but may not exceed the configured maximum.`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				return errors.New("--email is required")
			}
			if err := utils.ValidateEmail(email); err != nil {
				return err
			}
			if ttl < 0 {
				return errors.New("--ttl must be positive")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = deps.Close(ctx)
			}()

			token, err := deps.LoginService.Mint(cmd.Context(), email, ttl)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token.Value)
			fmt.Fprintf(cmd.ErrOrStderr(), "token %s expires at %s\n", token.ID, token.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email of the account to mint a token for")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default: configured default TTL)")
	return cmd
}
