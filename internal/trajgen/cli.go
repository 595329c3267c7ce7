package trajgen

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/stcurve/pkg/logger"
)

// SetupLogging initializes the logger, teeing output to logFile when set.
// The returned function closes the file.
func SetupLogging(logFile string, verbose bool) (func(), error) {
	var (
		w       io.Writer = os.Stdout
		closeFn           = func() {}
	)
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePermission) //nolint:gosec // operator supplied path
		if err != nil {
			return nil, fmt.Errorf("failed to create log file: %w", err)
		}
		w = io.MultiWriter(os.Stdout, file)
		closeFn = func() { _ = file.Close() }
	}

	if err := logger.Init(logger.WithWriter(w)); err != nil {
		closeFn()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return closeFn, nil
}

// ShowHelp prints usage information for the load tool.
func ShowHelp() {
	os.Stdout.WriteString(`stcurve load tool
=================

Generates random-walk trajectories, submits them to a running stcurve
server, waits for the results and verifies each compressed trajectory.

Usage:
  go run ./cmd/trajgen [options]

Options:
  -url string          Base URL of the service (default "http://localhost:9080")
  -trajectories int    Number of trajectories to generate (default 1000)
  -min-points int      Minimum points per trajectory (default 20)
  -max-points int      Maximum points per trajectory (default 500)
  -tolerance float     Tolerance per submission; negative uses the server default (default -1)
  -workers int         Number of concurrent workers (default CPU cores * 2)
  -seed uint           Random walk seed; 0 uses the clock
  -timeout duration    HTTP request timeout (default 30s)
  -poll-timeout dur    How long to wait for results (default 2m)
  -output string       Write generated trajectories to this JSON file
  -log string          Also write logs to this file
  -verbose             Enable debug logging
  -help                Show this help message

Examples:
  go run ./cmd/trajgen -trajectories 5000 -workers 16
  go run ./cmd/trajgen -tolerance 0.05 -seed 42 -output trips.json
`)
}
