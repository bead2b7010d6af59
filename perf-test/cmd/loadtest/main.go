package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/core-banking/perf-test/internal/config"
	"github.com/core-banking/perf-test/internal/generator"
	"github.com/core-banking/perf-test/internal/metrics"
)

func main() {
	var (
		apiURL       = flag.String("api-url", "http://localhost:8080", "Ledger engine API URL")
		workers      = flag.Int("workers", 100, "Number of concurrent workers")
		duration     = flag.Duration("duration", 60*time.Second, "Test duration")
		rampUp       = flag.Duration("ramp-up", 10*time.Second, "Ramp-up period")
		scenarioFile = flag.String("scenario", "", "Path to scenario file")
	)
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Shutting down...")
		cancel()
	}()

	cfg := &config.Config{
		APIURL:   *apiURL,
		Workers:  *workers,
		Duration: *duration,
		RampUp:   *rampUp,
	}

	var scenario *generator.Scenario
	var err error
	if *scenarioFile != "" {
		scenario, err = generator.LoadScenario(*scenarioFile)
		if err != nil {
			log.Fatalf("Failed to load scenario: %v", err)
		}
	} else {
		scenario = generator.DefaultScenario()
	}

	log.Printf("Starting load test with %d workers for %v", cfg.Workers, cfg.Duration)
	log.Printf("Scenario: %s", scenario.Name)

	collector := metrics.NewCollector()
	gen := generator.New(cfg, scenario, collector)

	testCtx, testCancel := context.WithTimeout(ctx, cfg.Duration)
	defer testCancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		gen.Run(testCtx)
	}()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				stats := collector.GetStats()
				fmt.Printf("\n=== Live Stats ===\n")
				fmt.Printf("Requests: %d | Success: %.2f%% | P99: %.2fms | RPS: %.2f\n",
					stats.TotalRequests,
					stats.SuccessRate*100,
					stats.P99Latency.Seconds()*1000,
					stats.RequestsPerSecond)
			case <-testCtx.Done():
				return
			}
		}
	}()

	wg.Wait()

	stats := collector.GetStats()
	fmt.Printf("\n=== Final Stats ===\n")
	fmt.Printf("Total requests: %d (success %.2f%%)\n", stats.TotalRequests, stats.SuccessRate*100)
	fmt.Printf("Mean latency: %v | P99: %v\n", stats.MeanLatency, stats.P99Latency)
	for op, opStats := range stats.OperationStats {
		fmt.Printf("  %-10s count=%-8d success=%.2f%% p99=%v\n", op, opStats.Count, opStats.SuccessRate*100, opStats.P99Latency)
	}
}
