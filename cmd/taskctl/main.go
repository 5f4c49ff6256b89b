// Command taskctl is the repository-local CLI for driving the task graph,
// the persistent task cache, and the multi-agent context store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/taskctl/taskctl/internal/taskerr"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	root := newRootCmd()
	err := root.ExecuteContext(ctx)
	if err == nil {
		os.Exit(0)
	}
	if ctx.Err() != nil {
		fmt.Fprintln(os.Stderr, "interrupted")
		os.Exit(130)
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(taskerr.ExitCode(err))
}
