package trajgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/stcurve/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

// ErrIncomplete is returned when fewer results arrive than were accepted.
var ErrIncomplete = errors.New("not every accepted trajectory produced a result")

// Run executes a complete load run and returns its statistics.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	normalize(config)
	stats := &Stats{StartTime: time.Now()}

	logger.Get().Info(ctx, "starting stcurve load run",
		logger.String("baseURL", config.BaseURL),
		logger.Int("trajectories", config.NumTrajectories),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.Float64("tolerance", config.Tolerance),
		logger.Bool("verbose", config.Verbose))

	if err := checkServiceHealth(ctx, config); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	trajectories, err := generateTrajectories(ctx, config, stats)
	if err != nil {
		return stats, fmt.Errorf("trajectory generation failed: %w", err)
	}

	submitTrajectories(ctx, config, trajectories, stats)

	ids := make([]string, 0, len(trajectories))
	for _, t := range trajectories {
		ids = append(ids, t.ID)
	}
	results := pollResults(ctx, config, ids, stats)

	verifyErr := verifyResults(ctx, trajectories, results, stats)

	if config.OutputFile != "" {
		if err := saveTrajectories(ctx, config.OutputFile, trajectories); err != nil {
			logger.Get().Warn(ctx, "failed to save trajectories to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	if verifyErr != nil {
		return stats, fmt.Errorf("result verification failed: %w", verifyErr)
	}
	if stats.ResultsRetrieved < stats.Accepted {
		return stats, fmt.Errorf("%w: %d of %d", ErrIncomplete, stats.ResultsRetrieved, stats.Accepted)
	}
	logger.Get().Info(ctx, "load run completed successfully")
	return stats, nil
}

func normalize(config *Config) {
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.PollTimeout <= 0 {
		config.PollTimeout = DefaultPollTimeout
	}
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	client := newHTTPClient(config.Timeout)
	resp, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	_, _ = readResponseBody(resp)

	if resp.StatusCode != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}
	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveTrajectories writes the generated trajectories as a JSON array.
func saveTrajectories(ctx context.Context, filename string, trajectories []Trajectory) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(trajectories, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal trajectories: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	logger.Get().Info(ctx, "trajectories saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var acceptRate, perSecond float64
	if stats.Submitted > 0 {
		acceptRate = float64(stats.Accepted) / float64(stats.Submitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("trajectoriesGenerated", stats.TrajectoriesGenerated),
		logger.Int("pointsGenerated", stats.PointsGenerated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("rejected", stats.Rejected),
		logger.Int("failed", stats.Failed),
		logger.Int("resultsRetrieved", stats.ResultsRetrieved),
		logger.Int("resultsVerified", stats.ResultsVerified),
		logger.Int("pointsKept", stats.PointsKept),
		logger.Float64("compressionRate", stats.Rate()),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("trajectoriesPerSecond", perSecond))
}
