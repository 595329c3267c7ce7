package config_test

import (
	"context"
	"errors"
	"os"
	"runtime"
	"testing"

	"github.com/okian/stcurve/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Tolerance, convey.ShouldEqual, 0.02)
			convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU()*2)
			convey.So(cfg.Store, convey.ShouldEqual, config.StoreMemory)
			convey.So(cfg.RejectUnordered, convey.ShouldBeFalse)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.Tolerance, convey.ShouldEqual, 0.02)
				convey.So(cfg.MaxPoints, convey.ShouldEqual, 1_000_000)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("STCURVE_ADDR", ":8080")
			_ = os.Setenv("STCURVE_TOLERANCE", "0.5")
			_ = os.Setenv("STCURVE_WORKER_COUNT", "16")
			_ = os.Setenv("STCURVE_REJECT_UNORDERED", "true")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.Tolerance, convey.ShouldEqual, 0.5)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 16)
				convey.So(cfg.RejectUnordered, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with a YAML file and env overrides", func() {
			tmpFile := createTempFile("stcurve-config-*.yaml", `
# service settings
addr: ":9090"
tolerance: 0.001
queue_size: 300
store_max_entries: 10
log_format: json
metrics_namespace: trips
metrics_latency_buckets: [1, 5, 25]
metrics_labels:
  instance: edge-1
`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("STCURVE_CONFIG", tmpFile)
			_ = os.Setenv("STCURVE_QUEUE_SIZE", "42")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should win over file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.Tolerance, convey.ShouldEqual, 0.001)
				convey.So(cfg.QueueSize, convey.ShouldEqual, 42)
				convey.So(cfg.StoreMaxEntries, convey.ShouldEqual, 10)
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 100_000)
				convey.So(cfg.LogFormat, convey.ShouldEqual, config.LogFormatJSON)
				convey.So(cfg.MetricsNamespace, convey.ShouldEqual, "trips")
				convey.So(cfg.MetricsSubsystem, convey.ShouldEqual, "compressor")
				convey.So(cfg.MetricsLatencyBuckets, convey.ShouldResemble, []float64{1, 5, 25})
				convey.So(cfg.MetricsLabels, convey.ShouldResemble, map[string]string{"instance": "edge-1"})
			})
		})

		convey.Convey("When loading config from a dotenv file", func() {
			tmpFile := createTempFile("stcurve-*.env", "STCURVE_MAX_POINTS=500\nSTCURVE_LOG_LEVEL=debug\n")
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("STCURVE_DOTENV", tmpFile)
			_ = os.Setenv("STCURVE_LOG_LEVEL", "warn")

			cfg, err := config.Load(ctx)

			convey.Convey("Then dotenv values should apply without overriding the environment", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.MaxPoints, convey.ShouldEqual, 500)
				convey.So(cfg.LogLevel, convey.ShouldEqual, "warn")
			})
		})

		convey.Convey("When the explicit dotenv file is missing", func() {
			_ = os.Setenv("STCURVE_DOTENV", "/non/existent/.env")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempFile("stcurve-config-*.yaml", `invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("STCURVE_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("STCURVE_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("STCURVE_QUEUE_SIZE", "not_a_number")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestConfigValidate(t *testing.T) {
	convey.Convey("Given invalid configurations", t, func() {
		cases := map[string]func(*config.Config){
			"addr must not be empty":       func(c *config.Config) { c.Addr = "  " },
			"tolerance must not be":        func(c *config.Config) { c.Tolerance = -0.1 },
			"unknown store":                func(c *config.Config) { c.Store = "redis" },
			"database_url is required for": func(c *config.Config) { c.Store = config.StorePostgres },
			"unknown log_format":           func(c *config.Config) { c.LogFormat = "xml" },
			"must be increasing":           func(c *config.Config) { c.MetricsLatencyBuckets = []float64{5, 5, 10} },
		}

		for msg, mutate := range cases {
			cfg := config.New()
			mutate(cfg)
			err := cfg.Validate()

			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, msg)
		}

		convey.Convey("Then a postgres store with a DSN should be valid", func() {
			cfg := config.New()
			cfg.Store = config.StorePostgres
			cfg.DatabaseURL = "postgres://localhost/stcurve"
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"STCURVE_CONFIG",
		"STCURVE_DOTENV",
		"STCURVE_ADDR",
		"STCURVE_LOG_LEVEL",
		"STCURVE_LOG_FORMAT",
		"STCURVE_TOLERANCE",
		"STCURVE_QUEUE_SIZE",
		"STCURVE_WORKER_COUNT",
		"STCURVE_MAX_POINTS",
		"STCURVE_REJECT_UNORDERED",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempFile(pattern, content string) string {
	tmpFile, err := os.CreateTemp("", pattern)
	if err != nil {
		panic(err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	if err := tmpFile.Close(); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}
