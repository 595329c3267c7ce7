// Package config defines service configuration and its layered loading.
//
// Precedence (low -> high): defaults, optional YAML file, optional .env file,
// process environment.
package config

import (
	"runtime"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Tolerance is the default curvature threshold for requests that omit one.
	Tolerance float64 `koanf:"tolerance"`

	// QueueSize bounds the in-memory job queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of compression workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds the submission idempotency cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxPoints caps the number of points accepted per trajectory.
	MaxPoints int `koanf:"max_points"`

	// MaxListLimit caps GET /trajectories?limit.
	MaxListLimit int `koanf:"max_list_limit"`

	// Store selects the result backend: memory or postgres.
	Store string `koanf:"store"`

	// DatabaseURL is the PostgreSQL DSN used when Store is postgres.
	DatabaseURL string `koanf:"database_url"`

	// StoreMaxEntries bounds the memory store; 0 means unbounded.
	StoreMaxEntries int `koanf:"store_max_entries"`

	// RejectUnordered rejects trajectories whose timestamps decrease.
	RejectUnordered bool `koanf:"reject_unordered"`

	// MetricsNamespace and MetricsSubsystem prefix every metric name.
	MetricsNamespace string `koanf:"metrics_namespace"`
	MetricsSubsystem string `koanf:"metrics_subsystem"`

	// MetricsLatencyBuckets overrides the latency histogram buckets (ms).
	MetricsLatencyBuckets []float64 `koanf:"metrics_latency_buckets"`

	// MetricsLabels are constant labels attached to every metric.
	MetricsLabels map[string]string `koanf:"metrics_labels"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       LogFormatText,
		Addr:            ":9080",
		Tolerance:       0.02,
		QueueSize:       10_000,
		WorkerCount:     runtime.NumCPU() * 2,
		DedupeSize:      100_000,
		MaxPoints:       1_000_000,
		MaxListLimit:    100,
		Store:           StoreMemory,
		StoreMaxEntries: 50_000,

		MetricsNamespace: "stcurve",
		MetricsSubsystem: "compressor",
	}
}
