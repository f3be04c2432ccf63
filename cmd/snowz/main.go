package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"Snowz-Migrator/pkg/logger"
)

// main 是 snowz 命令行的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCommand().ExecuteContext(ctx)
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}
