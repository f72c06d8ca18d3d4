// Command rawhttp sends raw HTTP requests and serves local directories.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/DimaGolomozy/rawhttp/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Main(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
