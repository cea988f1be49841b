package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/habedi/sparkdoor/cmd"
	"github.com/habedi/sparkdoor/pkg/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// main is the entry point of the application.
// The first interrupt cancels the running command; a second one exits immediately.
func main() {
	configureLogLevelFromEnv()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopChan := setupInterruptListener()
	go handleInterrupt(stopChan, cancel, func(msg string) { log.Error().Msg(msg) }, os.Exit)

	cmd.Execute(ctx)
}

// configureLogLevelFromEnv enables debug logging when DEBUG_SPARKDOOR is set
// to anything other than a false value, and disables logging otherwise.
func configureLogLevelFromEnv() {
	if config.Load().Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.Disabled)
}

func setupInterruptListener() chan os.Signal {
	stopChan := make(chan os.Signal, 2)
	signal.Notify(stopChan, os.Interrupt, syscall.SIGTERM)
	return stopChan
}

// handleInterrupt cancels on the first signal and exits on the second.
func handleInterrupt(stopChan chan os.Signal, cancel context.CancelFunc, fatalLog func(string), exit func(int)) {
	<-stopChan
	log.Warn().Msg("Interrupt signal received. Stopping...")
	cancel()
	<-stopChan
	fatalLog("Interrupt signal received again. Exiting...")
	exit(1)
}
