package config

import "time"

// Config drives a single load-test run against the ledger engine's HTTP
// surface (internal/executor.Executor).
type Config struct {
	APIURL   string
	Workers  int
	Duration time.Duration
	RampUp   time.Duration
}
