// Command badgectl drives the badge engine from the shell: one-off
// evaluations, progress previews, migrations and catalog checks.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(newApp()).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
