package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tunelo-project/tunelo/internal/cliapp"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	os.Exit(cliapp.Run(ctx, os.Args[1:]))
}
