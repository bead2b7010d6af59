// Package container wires the application's components together,
// grounded on the teacher's internal/pkg/components/components.go
// (sync.Once singleton, ordered init* steps, graceful Shutdown), adapted
// from a global gin.Default()-per-request-handler bank demo into the
// ledger engine's own storage/engine/event-bus stack. Unlike the teacher,
// this container takes no implicit global state — callers choose the
// storage backend explicitly, which is what makes both the memory-backed
// and Postgres-backed deployment modes share one wiring path.
package container

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"ledgercore/internal/api/routes"
	"ledgercore/internal/config"
	"ledgercore/internal/engine"
	"ledgercore/internal/events"
	"ledgercore/internal/events/kafka"
	"ledgercore/internal/logging"
	"ledgercore/internal/metrics"
	"ledgercore/internal/storage"
	"ledgercore/internal/storage/memory"
	"ledgercore/internal/storage/postgres"
)

// Container holds every long-lived component the process needs.
type Container struct {
	Config  *config.Config
	Logger  *logging.Logger
	Storage storage.Facade
	Engine  *engine.Engine
	Bus     *events.Bus
	Router  *gin.Engine
	Server  *http.Server

	pgPool     *pgxpool.Pool
	kafkaProd  *kafka.Producer
	busCancel  context.CancelFunc
	busStopped chan struct{}
}

// New builds a Container using a Postgres-backed Facade and, unless
// LEDGER_KAFKA_ENABLED=false, a Kafka event sink. It mirrors the teacher's
// newContainer ordering: config, logger, storage, event plumbing, server.
func New(ctx context.Context) (*Container, error) {
	c := &Container{Config: config.Load()}
	c.Logger = logging.New(c.Config)

	pool, err := postgres.NewPool(ctx, postgres.NewConfigFromEnv())
	if err != nil {
		return nil, fmt.Errorf("initialize storage: %w", err)
	}
	c.pgPool = pool
	c.Storage = postgres.New(pool)
	c.Logger.Info("storage initialized", logging.Fields{"backend": "postgres"})

	if err := c.initEventing(); err != nil {
		return nil, fmt.Errorf("initialize eventing: %w", err)
	}

	c.Engine = engine.New(c.Storage, engine.NewLockManager(), c.Bus)
	c.initServer()

	c.Logger.Info("container initialized", nil)
	return c, nil
}

// NewWithMemoryStorage builds a Container backed by the in-memory Facade and
// a RecordingSink event bus, with no Postgres or Kafka dependency. Used by
// cmd/demo, which runs the full HTTP surface against process-local state for
// local trials and manual smoke-testing.
func NewWithMemoryStorage() *Container {
	c := &Container{Config: config.Load()}
	c.Logger = logging.New(c.Config)
	c.Storage = memory.New()
	c.startEventing(events.NewRecordingSink())
	c.Engine = engine.New(c.Storage, engine.NewLockManager(), c.Bus)
	c.initServer()
	return c
}

func (c *Container) initEventing() error {
	var sink events.Sink = events.NoOpSink{}

	if os.Getenv("LEDGER_KAFKA_ENABLED") != "false" {
		kafkaCfg := kafka.NewConfigFromEnv()
		producer, err := kafka.NewProducer(kafkaCfg)
		if err != nil {
			c.Logger.Warn("kafka unavailable, falling back to no-op event sink", logging.Fields{"error": err.Error()})
		} else {
			c.kafkaProd = producer
			sink = events.NewKafkaSink(producer)
			c.Logger.Info("kafka event sink initialized", logging.Fields{"brokers": kafkaCfg.Brokers})
		}
	}

	c.startEventing(sink)
	return nil
}

// startEventing builds the Bus and starts its drain worker plus a periodic
// sampler publishing queue depth and drop count into metrics.EventBusDepth /
// metrics.EventsDroppedTotal (spec'd as part of the Event Bus's ambient
// observability, sampled rather than pushed so a quiet bus still reports an
// accurate depth between scrapes).
func (c *Container) startEventing(sink events.Sink) {
	c.Bus = events.New(c.Config.Engine.EventBusCapacity, sink)

	ctx, cancel := context.WithCancel(context.Background())
	c.busCancel = cancel
	c.busStopped = make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.Bus.Run(ctx, func(event events.Event, err error) {
			c.Logger.Error("event sink delivery failed", err, logging.Fields{"event_id": event.ID, "tx_id": event.TxID})
		})
	}()
	go func() {
		defer wg.Done()
		c.sampleBusMetrics(ctx)
	}()
	go func() {
		wg.Wait()
		close(c.busStopped)
	}()
}

func (c *Container) sampleBusMetrics(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.SetEventBusDepth(c.Bus.Depth())
			metrics.SetEventsDropped(c.Bus.DroppedCount())
		}
	}
}

func (c *Container) initServer() {
	router := gin.New()
	router.Use(gin.Recovery())
	routes.Register(router, c.Engine, c.Storage, c.Logger)
	c.Router = router

	c.Server = &http.Server{
		Addr:           c.Config.Server.Host + ":" + c.Config.Server.Port,
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
}

// Shutdown drains the HTTP server, stops the event bus worker and closes
// any owned storage/Kafka connections.
func (c *Container) Shutdown(ctx context.Context) error {
	if c.Server != nil {
		if err := c.Server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
	}
	if c.busCancel != nil {
		c.busCancel()
		select {
		case <-c.busStopped:
		case <-ctx.Done():
		}
	}
	if c.kafkaProd != nil {
		if err := c.kafkaProd.Close(); err != nil {
			c.Logger.Error("failed to close kafka producer", err, nil)
		}
	}
	if c.pgPool != nil {
		c.pgPool.Close()
	}
	return nil
}
