// Package routes wires handlers onto a gin.Engine, grounded on the
// teacher's internal/api/routes/routes.go (global middleware first, then
// one route per handler).
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ledgercore/internal/api/handlers"
	"ledgercore/internal/api/middleware"
	"ledgercore/internal/engine"
	"ledgercore/internal/logging"
	"ledgercore/internal/storage"
)

// Register attaches the ledger engine's HTTP surface to router.
func Register(router *gin.Engine, eng *engine.Engine, facade storage.Facade, log *logging.Logger) {
	router.Use(middleware.Prometheus())

	router.POST("/transactions", handlers.ProcessTransaction(eng, log))
	router.GET("/transactions/:id", handlers.GetTransaction(facade, log))
	router.GET("/accounts/:id", handlers.GetAccount(facade, log))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
