package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/foreseon/IntelXScan/internal/logging"
)

func main() {
	logger := logging.New(false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()

	if err := newRootCmd(logger).ExecuteContext(ctx); err != nil {
		logger.Error("command failed", logging.F("err", err))
		os.Exit(1)
	}
}
