// Package curvature implements spatiotemporal curvature based trajectory
// compression.
//
// A point is kept when the circle through it and its two neighbours is
// tight enough, scaled by the time elapsed between the neighbours, to exceed
// the configured tolerance. Endpoints are always kept.
package curvature

import (
	"math"

	"github.com/okian/stcurve/internal/domain/model"
)

// Geometry constants.
const (
	// CollinearEpsilon bounds the circumcenter determinant below which three
	// points are treated as collinear (infinite radius, zero curvature).
	CollinearEpsilon = 1e-12

	// EarthRadiusMeters is the mean earth radius used to convert degrees to meters.
	EarthRadiusMeters = 6371004

	degreesPerTurn = 360
	minTriple      = 3
)

// earthCircumference is the great circle length in meters.
const earthCircumference = 2 * math.Pi * EarthRadiusMeters

// Calc returns the curvature of the circle through p1, p2 and p3 weighted by
// the elapsed time between p1 and p3.
//
// Coordinates are treated as planar degrees. Collinear triples score exactly
// zero. The result is not guarded against tiny radii or negative time spans.
func Calc(p1, p2, p3 model.Point) float64 {
	x1, x2, x3 := p1.X, p2.X, p3.X
	y1, y2, y3 := p1.Y, p2.Y, p3.Y

	a, b, c, d := x1-x2, y1-y2, x1-x3, y1-y3
	e := ((x1*x1 - x2*x2) + (y1*y1 - y2*y2)) / 2
	f := ((x1*x1 - x3*x3) + (y1*y1 - y3*y3)) / 2

	det := b*c - a*d
	if math.Abs(det) < CollinearEpsilon {
		return 0
	}

	x0 := -(d*e - b*f) / det
	y0 := -(a*f - c*e) / det
	radius := math.Sqrt((x1-x0)*(x1-x0) + (y1-y0)*(y1-y0))

	// degrees to meters
	r := radius / degreesPerTurn * earthCircumference
	return (1 / r) * float64(p3.T-p1.T)
}

// Compressor selects the informative subsequence of a trajectory.
type Compressor struct {
	points    []model.Point
	tolerance float64
}

// New creates a Compressor over points. Nothing is validated here; a nil or
// short slice is handled by Compress.
func New(points []model.Point, tolerance float64) *Compressor {
	return &Compressor{points: points, tolerance: tolerance}
}

// Tolerance returns the configured curvature threshold.
func (c *Compressor) Tolerance() float64 { return c.tolerance }

// Len returns the number of input points.
func (c *Compressor) Len() int { return len(c.points) }

// Compress returns the first point, every interior point whose curvature is
// strictly greater than the tolerance, and the last point, in input order.
// Inputs with fewer than three points are returned unchanged.
func (c *Compressor) Compress() []model.Point {
	n := len(c.points)
	if n < minTriple {
		return c.points
	}

	out := make([]model.Point, 0, n)
	out = append(out, c.points[0])
	for i := 1; i < n-1; i++ {
		if Calc(c.points[i-1], c.points[i], c.points[i+1]) > c.tolerance {
			out = append(out, c.points[i])
		}
	}
	return append(out, c.points[n-1])
}

// Rate returns original/compressed, or 0 when nothing was retained.
func Rate(original, compressed int) float64 {
	if compressed == 0 {
		return 0
	}
	return float64(original) / float64(compressed)
}
