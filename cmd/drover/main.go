// Command drover runs the autonomous browser task agent.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/droverhq/drover-cli/cmd"
)

func main() {
	// Interrupts cancel the run context; the agent finishes the current
	// step, tears the browser down and still reports a result.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd.ExecuteContext(ctx)
}
