package cmd

import (
	"context"
	"os"

	"github.com/habedi/sparkdoor/db"
	"github.com/habedi/sparkdoor/pkg/clierr"
	"github.com/habedi/sparkdoor/pkg/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Execute runs the command line. ctx is cancelled on interrupt.
func Execute(ctx context.Context) {
	rootCmd := createRootCmd()
	initializeDatabase()

	rootCmd.PersistentFlags().BoolP("help", "h", false, "Show help for a command")

	err := rootCmd.ExecuteContext(ctx)
	closeDatabase()
	if err != nil {
		log.Error().Err(err).Msg("Command execution failed.")
		rootCmd.PrintErrln("Error:", err)
		os.Exit(clierr.ExitCode(err))
	}
}

func createRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "sparkdoor",
		Short:         "Manage Spark cloud devices and their access tokens",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		loginCmd(),
		tokenCmd(),
		devicesCmd(),
		deviceCmd(),
		doorCmd(),
		scheduleCmd(),
		versionCmd(),
	)

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.SetHelpCommand(&cobra.Command{
		Use:    "no-help",
		Hidden: true,
	})

	return rootCmd
}

func initializeDatabase() {
	db.Path = config.Load().DBPath
	if err := db.InitDB(); err != nil {
		log.Error().Err(err).Msg("Failed to initialize database")
		os.Exit(1)
	}
}

func closeDatabase() {
	if err := db.CloseDB(); err != nil {
		log.Error().Err(err).Msg("Failed to close the database.")
		os.Exit(1)
	}
}

// withStack runs fn with a freshly wired stack and classifies its error.
func withStack(cmd *cobra.Command, fn func(ctx context.Context, s *stack) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := loadStack(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer s.Close()
	return classify(fn(ctx, s))
}
