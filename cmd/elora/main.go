// Package main provides the elora CLI process entrypoint.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/app"
)

// main cancels the runner on SIGINT/SIGTERM so an owner releases its socket.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(app.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr))
}
