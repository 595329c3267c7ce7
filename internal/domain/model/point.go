// Package model contains domain models passed between layers.
package model

import "time"

// Point is a single spatiotemporal sample of a trajectory.
// X is longitude and Y is latitude, both in degrees.
type Point struct {
	ID string  `json:"id"` // opaque identifier, carried through unchanged
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	T  int64   `json:"t"` // timestamp, non-decreasing along a trajectory
}

// Trajectory is an ordered sequence of points submitted under one id.
type Trajectory struct {
	ID     string
	Points []Point
}

// Job is a queued compression request.
type Job struct {
	JobID        string
	TrajectoryID string
	Points       []Point
	Tolerance    float64
	Submitted    time.Time
}

// Result is the outcome of compressing one trajectory.
type Result struct {
	TrajectoryID string    `json:"trajectory_id"`
	JobID        string    `json:"job_id"`
	Tolerance    float64   `json:"tolerance"`
	Original     int       `json:"original"`
	Points       []Point   `json:"points"`
	Rate         float64   `json:"rate"`
	Completed    time.Time `json:"completed"`
}

// Compressed returns the number of retained points.
func (r Result) Compressed() int { return len(r.Points) }

// Ordered reports whether timestamps never decrease along points.
func Ordered(points []Point) bool {
	for i := 1; i < len(points); i++ {
		if points[i].T < points[i-1].T {
			return false
		}
	}
	return true
}
