package cmd

import (
	"bufio"
	"context"
	"time"

	"github.com/habedi/sparkdoor/db"
	"github.com/habedi/sparkdoor/pkg/clierr"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// loginCmd obtains a token with an operator-supplied account and records it.
func loginCmd() *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login to the Spark cloud",
		Long:  "Login to the Spark cloud with a username and password and store the issued access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			reader := bufio.NewReader(cmd.InOrStdin())
			if username == "" {
				cmd.Println("Please enter your Spark cloud username and password.")
				if username, err = promptForInput(reader, cmd.OutOrStdout(), "Username: "); err != nil {
					return clierr.New(clierr.Validation, "Failed to read the username.", err)
				}
			}
			password, err := promptForPassword(reader, cmd.InOrStdin(), cmd.OutOrStdout(), "Password: ")
			if err != nil {
				return clierr.New(clierr.Validation, "Failed to read the password.", err)
			}
			if err := validateCredentials(username, password); err != nil {
				return clierr.New(clierr.Validation, "Username and password cannot be empty.", err)
			}

			return withStack(cmd, func(ctx context.Context, s *stack) error {
				cred, err := s.tokens.Login(ctx, username, password)
				if err != nil {
					return err
				}
				log.Info().Str("token", db.TokenPrefix(cred.Token)).Msg("Logged in")
				cmd.Printf("Login was successful. Token %s expires %s.\n", db.TokenPrefix(cred.Token), cred.ExpiresAt.Local().Format(time.RFC1123))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Spark cloud username; prompted for when empty")

	return cmd
}
