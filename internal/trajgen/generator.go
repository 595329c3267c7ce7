package trajgen

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/okian/stcurve/internal/domain/model"
	"github.com/okian/stcurve/pkg/logger"
)

// Random walk parameters, in degrees and seconds.
const (
	originLon      = 116.3
	originLat      = 39.9
	originSpread   = 0.2
	minStepDeg     = 0.0002
	stepRangeDeg   = 0.0015
	minStepSeconds = 1
	stepSecondsMax = 30
	gentleTurnRad  = 0.15
	sharpTurnRad   = math.Pi / 2
	sharpTurnOdds  = 0.1
	defaultPoints  = 50
)

// Trajectory is a generated trajectory ready for submission.
type Trajectory struct {
	ID     string        `json:"trajectory_id"`
	Points []model.Point `json:"points"`
}

// generateTrajectories creates config.NumTrajectories random walks with
// unique uuid ids.
func generateTrajectories(ctx context.Context, config *Config, stats *Stats) ([]Trajectory, error) {
	seed := config.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano()) //nolint:gosec // non-negative clock value
	}
	logger.Get().Info(ctx, "generating trajectories",
		logger.Int("count", config.NumTrajectories),
		logger.Int64("seed", int64(seed)), //nolint:gosec // logged only
	)

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // synthetic data
	out := make([]Trajectory, config.NumTrajectories)
	for i := range out {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during generation: %w", err)
		}
		n := pointCount(rng, config.MinPoints, config.MaxPoints)
		out[i] = Trajectory{ID: uuid.NewString(), Points: randomWalk(rng, n)}
		stats.PointsGenerated += n
	}

	stats.TrajectoriesGenerated = len(out)
	logger.Get().Info(ctx, "generated trajectories",
		logger.Int("count", len(out)),
		logger.Int("points", stats.PointsGenerated),
	)
	return out, nil
}

func pointCount(rng *rand.Rand, lo, hi int) int {
	if lo < 1 {
		lo = defaultPoints
	}
	if hi < lo {
		hi = lo
	}
	return lo + rng.IntN(hi-lo+1)
}

// randomWalk returns n points moving at varying speed with mostly gentle
// turns and the occasional sharp one. Timestamps strictly increase.
func randomWalk(rng *rand.Rand, n int) []model.Point {
	points := make([]model.Point, n)
	x := originLon + (rng.Float64()-0.5)*originSpread
	y := originLat + (rng.Float64()-0.5)*originSpread
	heading := rng.Float64() * 2 * math.Pi
	t := time.Date(2008, 2, 2, 0, 0, 0, 0, time.UTC).Unix() + rng.Int64N(86400)

	for i := range points {
		points[i] = model.Point{ID: "p" + strconv.Itoa(i), X: x, Y: y, T: t}

		turn := (rng.Float64()*2 - 1) * gentleTurnRad
		if rng.Float64() < sharpTurnOdds {
			turn = (rng.Float64()*2 - 1) * sharpTurnRad
		}
		heading += turn
		step := minStepDeg + rng.Float64()*stepRangeDeg
		x += step * math.Cos(heading)
		y += step * math.Sin(heading)
		t += minStepSeconds + rng.Int64N(stepSecondsMax)
	}
	return points
}
