package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/git-pkgs/toolurls/internal/cli"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	cli.Execute(ctx)
}
