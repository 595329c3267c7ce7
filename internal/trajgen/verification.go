package trajgen

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/stcurve/internal/domain/model"
	"github.com/okian/stcurve/pkg/logger"
)

// Verification failures.
var (
	ErrLengthBounds = errors.New("compressed length out of bounds")
	ErrEndpoints    = errors.New("endpoints not retained")
	ErrOrder        = errors.New("kept points out of order")
	ErrUnknownPoint = errors.New("kept point not in input")
)

// verifyResult checks that kept is an order-preserving subsequence of
// original that retains both endpoints.
func verifyResult(original, kept []model.Point) error {
	n := len(original)
	if n < 3 {
		if len(kept) != n {
			return fmt.Errorf("%w: short input of %d came back with %d", ErrLengthBounds, n, len(kept))
		}
		return nil
	}
	if len(kept) < 2 || len(kept) > n {
		return fmt.Errorf("%w: %d of %d", ErrLengthBounds, len(kept), n)
	}
	if kept[0] != original[0] || kept[len(kept)-1] != original[n-1] {
		return ErrEndpoints
	}

	index := make(map[string]int, n)
	for i, p := range original {
		index[p.ID] = i
	}
	prev := -1
	for _, p := range kept {
		i, ok := index[p.ID]
		if !ok || original[i] != p {
			return fmt.Errorf("%w: %s", ErrUnknownPoint, p.ID)
		}
		if i <= prev {
			return fmt.Errorf("%w: %s", ErrOrder, p.ID)
		}
		prev = i
	}
	return nil
}

// verifyResults checks every retrieved result against its input.
func verifyResults(ctx context.Context, trajectories []Trajectory, results map[string]model.Result, stats *Stats) error {
	if len(results) == 0 {
		return errors.New("no results to verify")
	}

	var errs []error
	for _, t := range trajectories {
		r, ok := results[t.ID]
		if !ok {
			continue
		}
		stats.PointsKept += len(r.Points)
		if err := verifyResult(t.Points, r.Points); err != nil {
			stats.VerificationFailures++
			errs = append(errs, fmt.Errorf("trajectory %s: %w", t.ID, err))
			continue
		}
		stats.ResultsVerified++
	}

	if len(errs) > 0 {
		logger.Get().Warn(ctx, "verification failures", logger.Int("count", len(errs)))
		return errors.Join(errs...)
	}
	logger.Get().Info(ctx, "results verified", logger.Int("count", stats.ResultsVerified))
	return nil
}
