package cmd

import (
	"context"
	"time"

	"github.com/habedi/sparkdoor/auth"
	"github.com/habedi/sparkdoor/db"
	"github.com/habedi/sparkdoor/pkg/clierr"
	"github.com/spf13/cobra"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Inspect and renew the cloud access token",
	}

	cmd.AddCommand(
		tokenRefreshCmd(),
		tokenStatusCmd(),
		tokenPruneCmd(),
	)

	return cmd
}

func tokenRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Make sure a token valid beyond the renewal window is stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(cmd, func(ctx context.Context, s *stack) error {
				if err := s.cfg.RequireCredentials(); err != nil {
					return err
				}
				token, err := s.tokens.Refresh(ctx)
				if err != nil {
					return err
				}
				cmd.Printf("Access token %s is ready.\n", db.TokenPrefix(token))
				return nil
			})
		},
	}
}

func tokenStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of the stored token without contacting the cloud",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(cmd, func(ctx context.Context, s *stack) error {
				state, cred, err := s.tokens.State(ctx)
				if err != nil {
					return err
				}
				total, err := s.creds.Count(ctx)
				if err != nil {
					return clierr.New(clierr.Internal, "Failed to count stored tokens.", err)
				}

				cmd.Println("State:", state)
				if state != auth.NoToken {
					cmd.Println("Token:", db.TokenPrefix(cred.Token))
					cmd.Println("Expires:", cred.ExpiresAt.Local().Format(time.RFC1123))
					cmd.Println("Expires in:", time.Until(cred.ExpiresAt).Round(time.Minute))
				}
				cmd.Println("Renewal window:", s.tokens.RenewWindow())
				cmd.Println("Stored tokens:", total)
				if s.locks != nil {
					held, err := s.locks.Get(ctx, auth.LockKey)
					if err != nil {
						return clierr.New(clierr.Internal, "Failed to read the renewal lock.", err)
					}
					if held != nil && held.ExpiresAt.After(time.Now()) {
						cmd.Printf("Renewal lock: held by %s until %s\n", held.Owner, held.ExpiresAt.Local().Format(time.RFC1123))
					} else {
						cmd.Println("Renewal lock: free")
					}
				}
				return nil
			})
		},
	}
}

func tokenPruneCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete tokens that expired a while ago",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(cmd, func(ctx context.Context, s *stack) error {
				if olderThan <= 0 {
					olderThan = s.cfg.PruneAfter
				}
				n, err := s.tokens.Prune(ctx, olderThan)
				if err != nil {
					return err
				}
				cmd.Printf("Removed %d expired token(s).\n", n)
				return nil
			})
		},
	}

	cmd.Flags().DurationVarP(&olderThan, "older-than", "o", 0, "Only remove tokens expired longer than this (defaults to SPARKDOOR_PRUNE_AFTER)")

	return cmd
}
