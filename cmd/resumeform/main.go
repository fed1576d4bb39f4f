package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"resumeform/internal/cli"

	"github.com/spf13/viper"
)

func main() {
	// Create a context that is canceled on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Configuration and logging are set up per command so flags can override them
	if err := cli.Execute(ctx, viper.GetViper()); err != nil {
		if !cli.AlreadyReported(err) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}
