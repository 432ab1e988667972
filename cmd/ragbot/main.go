// Command ragbot answers questions about insurance documents.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driving/cli"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/runtime"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, closeFn := cli.NewRootCommand(version, runtime.New)
	err := root.ExecuteContext(ctx)
	if cerr := closeFn(); cerr != nil {
		fmt.Fprintf(os.Stderr, "shutdown: %v\n", cerr)
	}
	if err != nil {
		return 1
	}
	return 0
}
