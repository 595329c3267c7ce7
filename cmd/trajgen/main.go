package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/stcurve/internal/trajgen"
)

// Default configuration constants.
const (
	defaultTrajectories = 1000
	defaultMinPoints    = 20
	defaultMaxPoints    = 500
	defaultWorkers      = 2 // multiplier for runtime.NumCPU()
	defaultTimeout      = 30 * time.Second
	defaultPollTimeout  = 2 * time.Minute
	defaultRunTimeout   = 10 * time.Minute
)

func main() {
	var (
		baseURL      = flag.String("url", "http://localhost:9080", "Base URL of the service")
		trajectories = flag.Int("trajectories", defaultTrajectories, "Number of trajectories to generate and submit")
		minPoints    = flag.Int("min-points", defaultMinPoints, "Minimum points per trajectory")
		maxPoints    = flag.Int("max-points", defaultMaxPoints, "Maximum points per trajectory")
		tolerance    = flag.Float64("tolerance", -1, "Tolerance per submission; negative uses the server default")
		workers      = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		seed         = flag.Uint64("seed", 0, "Random walk seed; 0 uses the clock")
		timeout      = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		pollTimeout  = flag.Duration("poll-timeout", defaultPollTimeout, "How long to wait for results")
		outputFile   = flag.String("output", "", "Write generated trajectories to this JSON file")
		logFile      = flag.String("log", "", "Also write logs to this file")
		verbose      = flag.Bool("verbose", false, "Enable verbose logging")
		help         = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		trajgen.ShowHelp()
		return
	}

	closeLog, err := trajgen.SetupLogging(*logFile, *verbose)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer closeLog()

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	config := &trajgen.Config{
		BaseURL:         *baseURL,
		NumTrajectories: *trajectories,
		MinPoints:       *minPoints,
		MaxPoints:       *maxPoints,
		Tolerance:       *tolerance,
		Workers:         *workers,
		Seed:            *seed,
		Timeout:         *timeout,
		PollTimeout:     *pollTimeout,
		OutputFile:      *outputFile,
		Verbose:         *verbose,
	}

	if _, err := trajgen.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Load run failed: " + err.Error() + "\n")
		cancel()
		closeLog()
		os.Exit(1) //nolint:gocritic // exitAfterDefer: deferred calls already run above
	}
}
