package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yungbote/attendance-backend/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()
	a.Start()

	errCh := make(chan error, 1)
	go func() { errCh <- a.Run() }()

	select {
	case err := <-errCh:
		if err != nil {
			a.Log.Error("Server failed", "error", err)
			a.Close()
			os.Exit(1)
		}
	case <-ctx.Done():
		a.Log.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := a.Shutdown(shutdownCtx); err != nil {
			a.Log.Warn("Graceful shutdown failed", "error", err)
		}
	}
}
