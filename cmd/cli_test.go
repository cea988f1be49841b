package cmd

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/habedi/sparkdoor/db"
	"github.com/habedi/sparkdoor/pkg/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// TestMain sets up the database once for all tests in this package.
func TestMain(m *testing.M) {
	tmpDir, err := os.MkdirTemp("", "sparkdoor-cmd-test-")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create temp dir for testing")
	}
	os.Setenv(config.EnvDBPath, filepath.Join(tmpDir, "sparkdoor.db"))
	initializeDatabase()

	exitCode := m.Run()

	if err := db.CloseDB(); err != nil {
		log.Error().Err(err).Msg("Failed to close db after testing")
	}
	os.RemoveAll(tmpDir)

	os.Exit(exitCode)
}

// TestCreateRootCmd checks that createRootCmd returns a root command
// with the expected use string, subcommands, and a replaced help command.
func TestCreateRootCmd(t *testing.T) {
	rootCmd := createRootCmd()
	if rootCmd.Use != "sparkdoor" {
		t.Errorf("expected root command use to be 'sparkdoor', got: %s", rootCmd.Use)
	}

	subCommands := rootCmd.Commands()
	if len(subCommands) == 0 {
		t.Error("expected root command to have subcommands, got none")
	}

	want := map[string]bool{"login": false, "token": false, "devices": false, "device": false, "door": false, "schedule": false, "version": false}
	for _, cmd := range subCommands {
		if cmd.Use == "help" {
			t.Error("expected help command to be replaced, but found a subcommand with use 'help'")
		}
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("expected subcommand %q", name)
		}
	}
}

func TestDatabaseUsesConfiguredPath(t *testing.T) {
	if db.Path != os.Getenv(config.EnvDBPath) {
		t.Errorf("db.Path = %q, want %q", db.Path, os.Getenv(config.EnvDBPath))
	}
	if db.GetDB() == nil {
		t.Error("expected the database to be initialized")
	}
}

// TestExecuteFailure runs a subprocess where the root command's RunE is overridden
// to always return an error. In that case Execute (or a call to Execute-like behavior)
// should call os.Exit(1). We capture the exit code via os/exec.
func TestExecuteFailure(t *testing.T) {
	if os.Getenv("TEST_EXECUTE_FAILURE") == "1" {
		rootCmd := createRootCmd()
		rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
			return errors.New("dummy failure")
		}
		if err := rootCmd.Execute(); err != nil {
			os.Exit(1)
		}
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestExecuteFailure")
	cmd.Env = append(os.Environ(), "TEST_EXECUTE_FAILURE=1")
	err := cmd.Run()
	if exitError, ok := err.(*exec.ExitError); ok {
		if exitError.ExitCode() != 1 {
			t.Fatalf("expected exit code 1, got %d", exitError.ExitCode())
		}
	} else if err == nil {
		t.Fatalf("expected an exit error, but command succeeded")
	} else {
		t.Fatalf("unexpected error: %v", err)
	}
}
