package trajgen

import (
	"time"

	"github.com/okian/stcurve/internal/domain/model"
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL         string        // Base URL of the service
	NumTrajectories int           // Number of trajectories to generate
	MinPoints       int           // Minimum points per trajectory
	MaxPoints       int           // Maximum points per trajectory
	Tolerance       float64       // Tolerance sent with each submission; negative means server default
	Workers         int           // Number of concurrent submitters and pollers
	Seed            uint64        // Seed for the random walk; 0 picks one from the clock
	Timeout         time.Duration // HTTP request timeout
	PollInterval    time.Duration // Delay between result polls
	PollTimeout     time.Duration // How long to wait for all results
	OutputFile      string        // Output file for generated trajectories; empty skips saving
	Verbose         bool          // Enable verbose logging
}

// SubmitRequest is the body of POST /trajectories.
type SubmitRequest struct {
	TrajectoryID string        `json:"trajectory_id"`
	Tolerance    *float64      `json:"tolerance,omitempty"`
	Points       []model.Point `json:"points"`
}

// AckResponse represents the response from a submission.
type AckResponse struct {
	Status       string `json:"status"`
	Duplicate    bool   `json:"duplicate"`
	TrajectoryID string `json:"trajectory_id"`
	JobID        string `json:"job_id"`
}

// Stats holds run statistics.
type Stats struct {
	TrajectoriesGenerated int
	PointsGenerated       int
	Submitted             int
	Accepted              int
	Duplicate             int
	Rejected              int
	Failed                int
	ResultsRetrieved      int
	ResultsVerified       int
	VerificationFailures  int
	PointsKept            int
	StartTime             time.Time
	EndTime               time.Time
	Duration              time.Duration
}

// Rate returns the overall compression rate of the retrieved results.
func (s *Stats) Rate() float64 {
	if s.PointsKept == 0 {
		return 0
	}
	return float64(s.PointsGenerated) / float64(s.PointsKept)
}
