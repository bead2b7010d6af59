package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"ledgercore/internal/container"
)

func main() {
	c, err := container.New(context.Background())
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	c.Logger.Info("ledger engine starting", map[string]interface{}{
		"address": c.Server.Addr,
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
