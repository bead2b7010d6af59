// Command demo runs the ledger engine's HTTP surface against an in-memory
// store, with no Postgres or Kafka dependency — for local trials and manual
// smoke-testing of the API shape.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"ledgercore/internal/container"
)

func main() {
	c := container.NewWithMemoryStorage()

	c.Logger.Info("ledger engine demo starting", map[string]interface{}{
		"address": c.Server.Addr,
		"storage": "in-memory",
	})

	go func() {
		if err := c.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.Logger.Error("server stopped unexpectedly", err, nil)
		}
	}()

	waitForShutdown(c)
}

func waitForShutdown(c *container.Container) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	c.Logger.Info("shutting down", nil)

	ctx, cancel := context.WithTimeout(context.Background(), c.Config.Engine.ShutdownTimeout)
	defer cancel()

	if err := c.Shutdown(ctx); err != nil {
		c.Logger.Error("graceful shutdown failed", err, nil)
		return
	}
	c.Logger.Info("shutdown complete", nil)
}
